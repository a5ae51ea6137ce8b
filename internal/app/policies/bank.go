package policies

import (
	"context"
	"time"

	"innkeep/internal/domain/shared/money"
)

type BankEntryType string

const (
	BankEntryReceipt BankEntryType = "receipt"
	BankEntryRefund  BankEntryType = "refund"
)

// BankEntry is one general-ledger line written after a payment settles.
type BankEntry struct {
	Type       BankEntryType
	Account    string
	Amount     money.Money
	Date       time.Time
	BookingRef string
}

// BankLedger is the external general-ledger collaborator.
type BankLedger interface {
	AppendEntry(ctx context.Context, entry BankEntry) error
}
