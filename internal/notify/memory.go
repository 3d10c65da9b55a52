package notify

import (
	"context"
	"sync"

	"github.com/feichai0017/docflow/internal/models"
)

// MemoryNotifier records notifications for assertions in tests.
type MemoryNotifier struct {
	mu       sync.Mutex
	updates  []models.DocumentUpdate
	statuses []models.MailboxStatus
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

func (n *MemoryNotifier) DocumentUpdate(ctx context.Context, update models.DocumentUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, update)
	return nil
}

func (n *MemoryNotifier) MailboxStatus(ctx context.Context, status models.MailboxStatus) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, status)
	return nil
}

func (n *MemoryNotifier) Close() error {
	return nil
}

func (n *MemoryNotifier) Updates() []models.DocumentUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.DocumentUpdate, len(n.updates))
	copy(out, n.updates)
	return out
}

func (n *MemoryNotifier) Statuses() []models.MailboxStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.MailboxStatus, len(n.statuses))
	copy(out, n.statuses)
	return out
}
