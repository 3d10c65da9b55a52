// Package broadcast fans state-change events out to live observer
// connections. Delivery is best-effort: a failed send marks the observer
// dead, and dead observers are pruned after each broadcast pass without
// interrupting delivery to the rest.
package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/feichai0017/docflow/pkg/logger"
)

// Observer is one live push connection. Send must be safe to call from
// the broadcasting goroutine.
type Observer interface {
	Send(payload []byte) error
	Close() error
}

// Hub is a registry of observers for one broadcast channel. It is
// injected into whoever needs to broadcast; there is no package-level
// registry. Membership changes are safe concurrently with an in-flight
// broadcast.
type Hub struct {
	name string
	log  logger.Logger

	mu        sync.Mutex
	observers map[Observer]struct{}
}

func NewHub(name string, log logger.Logger) *Hub {
	return &Hub{
		name:      name,
		log:       log,
		observers: make(map[Observer]struct{}),
	}
}

func (h *Hub) Register(o Observer) {
	h.mu.Lock()
	h.observers[o] = struct{}{}
	n := len(h.observers)
	h.mu.Unlock()

	h.log.Info("Observer registered",
		logger.String("channel", h.name),
		logger.Int("observers", n),
	)
}

func (h *Hub) Unregister(o Observer) {
	h.mu.Lock()
	delete(h.observers, o)
	h.mu.Unlock()
}

// Len returns the current observer count.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Broadcast delivers v (JSON-encoded) to every registered observer and
// prunes the observers whose send failed. The broadcast never aborts
// early: each remaining observer still gets its delivery attempt.
func (h *Hub) Broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error("Failed to encode broadcast payload",
			logger.String("channel", h.name),
			logger.Error(err),
		)
		return
	}

	h.mu.Lock()
	targets := make([]Observer, 0, len(h.observers))
	for o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.Unlock()

	var dead []Observer
	for _, o := range targets {
		if err := o.Send(payload); err != nil {
			dead = append(dead, o)
		}
	}

	if len(dead) == 0 {
		return
	}

	h.mu.Lock()
	for _, o := range dead {
		delete(h.observers, o)
	}
	h.mu.Unlock()

	for _, o := range dead {
		_ = o.Close()
	}
	h.log.Info("Pruned dead observers",
		logger.String("channel", h.name),
		logger.Int("pruned", len(dead)),
	)
}
