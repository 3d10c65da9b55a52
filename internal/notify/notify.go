// Package notify carries stage notifications to the observer hubs. The
// stage workers run in a separate process from the API server, so
// notifications cross over Redis pub/sub and a forwarder on the server
// side replays them into the hubs.
package notify

import (
	"context"

	"github.com/feichai0017/docflow/internal/models"
)

// Notifier is what stage workers and entry points use to report state
// changes. Delivery downstream of the notifier is best-effort.
type Notifier interface {
	DocumentUpdate(ctx context.Context, update models.DocumentUpdate) error
	MailboxStatus(ctx context.Context, status models.MailboxStatus) error
	Close() error
}

// Hubs groups the two broadcast channels the forwarder feeds.
type Hubs interface {
	BroadcastDocument(v interface{})
	BroadcastMailbox(v interface{})
}

// Broadcaster is the hub side of a single channel.
type Broadcaster interface {
	Broadcast(v interface{})
}

// HubPair adapts two broadcast hubs to the Hubs interface.
type HubPair struct {
	documents Broadcaster
	mailbox   Broadcaster
}

func NewHubPair(documents, mailbox Broadcaster) *HubPair {
	return &HubPair{documents: documents, mailbox: mailbox}
}

func (p *HubPair) BroadcastDocument(v interface{}) { p.documents.Broadcast(v) }
func (p *HubPair) BroadcastMailbox(v interface{})  { p.mailbox.Broadcast(v) }
