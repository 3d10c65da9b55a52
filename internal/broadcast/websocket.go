package broadcast

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WSObserver adapts a websocket connection to the Observer interface.
// gorilla allows one concurrent writer per connection, so writes are
// serialized with a mutex.
type WSObserver struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWSObserver(conn *websocket.Conn) *WSObserver {
	return &WSObserver{conn: conn}
}

func (o *WSObserver) Send(payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conn.WriteMessage(websocket.TextMessage, payload)
}

func (o *WSObserver) Close() error {
	return o.conn.Close()
}

// Drain consumes and discards inbound frames until the connection drops.
// Observer channels are receive-only; inbound traffic is keep-alive.
func (o *WSObserver) Drain() {
	for {
		if _, _, err := o.conn.ReadMessage(); err != nil {
			return
		}
	}
}
