package memory

import (
	"context"
	"sync"

	"innkeep/internal/app/services/payments"
)

// PendingRegistry tracks payment links awaiting confirmation.
type PendingRegistry struct {
	mu    sync.RWMutex
	items map[string]payments.PendingConfirmation
}

func NewPendingRegistry() *PendingRegistry {
	return &PendingRegistry{items: make(map[string]payments.PendingConfirmation)}
}

func (r *PendingRegistry) Add(ctx context.Context, entry payments.PendingConfirmation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[entry.LinkID] = entry
	return nil
}

func (r *PendingRegistry) Get(ctx context.Context, linkID string) (payments.PendingConfirmation, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.items[linkID]
	return entry, ok, nil
}

func (r *PendingRegistry) Remove(ctx context.Context, linkID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, linkID)
	return nil
}

func (r *PendingRegistry) List(ctx context.Context) ([]payments.PendingConfirmation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]payments.PendingConfirmation, 0, len(r.items))
	for _, entry := range r.items {
		out = append(out, entry)
	}
	return out, nil
}

var _ payments.PendingRegistry = (*PendingRegistry)(nil)
