package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/feichai0017/docflow/internal/broadcast"
	"github.com/feichai0017/docflow/pkg/logger"
)

// RealtimeHandler upgrades observer connections and parks them in the
// broadcast hubs. Observers only receive; inbound frames are drained
// and dropped.
type RealtimeHandler struct {
	documentHub *broadcast.Hub
	mailboxHub  *broadcast.Hub
	logger      logger.Logger
	upgrader    websocket.Upgrader
}

func NewRealtimeHandler(documentHub, mailboxHub *broadcast.Hub, log logger.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		documentHub: documentHub,
		mailboxHub:  mailboxHub,
		logger:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS middleware already gates the HTTP side.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Documents feeds document state changes to the connection.
func (h *RealtimeHandler) Documents(c *gin.Context) {
	h.serve(c, h.documentHub, "documents")
}

// Mailbox feeds mailbox intake statuses to the connection.
func (h *RealtimeHandler) Mailbox(c *gin.Context) {
	h.serve(c, h.mailboxHub, "mailbox")
}

func (h *RealtimeHandler) serve(c *gin.Context, hub *broadcast.Hub, feed string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed",
			logger.String("feed", feed),
			logger.Error(err),
		)
		return
	}

	observer := broadcast.NewWSObserver(conn)
	hub.Register(observer)
	h.logger.Info("Observer connected",
		logger.String("feed", feed),
		logger.Int("observers", hub.Len()),
	)

	// Drain blocks until the peer goes away, then the hub entry is
	// removed. A dead connection missed here is pruned by the next
	// broadcast pass anyway.
	observer.Drain()
	hub.Unregister(observer)
	h.logger.Info("Observer disconnected",
		logger.String("feed", feed),
		logger.Int("observers", hub.Len()),
	)
}
