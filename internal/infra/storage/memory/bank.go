package memory

import (
	"context"
	"sync"

	"innkeep/internal/app/policies"
)

// BankLedger collects general-ledger entries in memory.
type BankLedger struct {
	mu      sync.Mutex
	entries []policies.BankEntry
}

func NewBankLedger() *BankLedger {
	return &BankLedger{}
}

func (b *BankLedger) AppendEntry(ctx context.Context, entry policies.BankEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry)
	return nil
}

// Entries returns a snapshot, for tests and debugging.
func (b *BankLedger) Entries() []policies.BankEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]policies.BankEntry(nil), b.entries...)
}

var _ policies.BankLedger = (*BankLedger)(nil)
