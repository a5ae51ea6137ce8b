package memory

import (
	"context"
	"sync"

	"innkeep/internal/domain/ledger"
	"innkeep/internal/domain/shared/money"
)

// LedgerRepository keeps transactions in memory. Appends run under the
// repository lock, which gives the same external-ref compare-and-swap
// guarantee the durable store provides.
type LedgerRepository struct {
	mu    sync.RWMutex
	items map[string]*ledger.Transaction
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{items: make(map[string]*ledger.Transaction)}
}

func (r *LedgerRepository) ByBooking(ctx context.Context, bookingID string) (*ledger.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.items[bookingID]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	return cloneTransaction(tx), nil
}

func (r *LedgerRepository) Ensure(ctx context.Context, bookingID string, payable money.Money) (*ledger.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx, ok := r.items[bookingID]; ok {
		return cloneTransaction(tx), nil
	}
	tx := ledger.NewTransaction(bookingID, payable)
	r.items[bookingID] = tx
	return cloneTransaction(tx), nil
}

func (r *LedgerRepository) AppendPayment(ctx context.Context, bookingID string, p ledger.Payment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.items[bookingID]
	if !ok {
		return false, ledger.ErrTransactionNotFound
	}
	applied, err := tx.Append(p)
	if err != nil {
		return false, err
	}
	if applied {
		tx.Version++
	}
	return applied, nil
}

func cloneTransaction(tx *ledger.Transaction) *ledger.Transaction {
	clone := *tx
	clone.Payments = append([]ledger.Payment(nil), tx.Payments...)
	return &clone
}
