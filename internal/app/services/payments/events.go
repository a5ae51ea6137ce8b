package payments

import (
	"time"

	"innkeep/internal/domain/ledger"
	"innkeep/internal/domain/shared/money"
)

type PaymentRecorded struct {
	BookingID   string
	PaymentID   string
	Amount      money.Money
	Method      ledger.PaymentMethod
	ExternalRef string
	FullyPaid   bool
	At          time.Time
}

func (e PaymentRecorded) EventName() string     { return "payment.recorded" }
func (e PaymentRecorded) AggregateID() string   { return e.BookingID }
func (e PaymentRecorded) OccurredAt() time.Time { return e.At }

// ConfirmationTimedOut marks a link that exhausted its polling budget
// without a terminal gateway status. The link is left in the pending
// registry so the reconciliation sweep can pick it up.
type ConfirmationTimedOut struct {
	LinkID    string
	BookingID string
	Budget    time.Duration
	At        time.Time
}

func (e ConfirmationTimedOut) EventName() string     { return "payment.confirmation_timed_out" }
func (e ConfirmationTimedOut) AggregateID() string   { return e.BookingID }
func (e ConfirmationTimedOut) OccurredAt() time.Time { return e.At }

// BankEntryPending marks a settled payment whose secondary bank-ledger
// write failed and awaits manual or swept retry.
type BankEntryPending struct {
	LinkID    string
	BookingID string
	PaymentID string
	Amount    money.Money
	Reason    string
	At        time.Time
}

func (e BankEntryPending) EventName() string     { return "payment.bank_entry_pending" }
func (e BankEntryPending) AggregateID() string   { return e.BookingID }
func (e BankEntryPending) OccurredAt() time.Time { return e.At }

// ConfirmationResolved marks a link that reached a terminal gateway state
// other than paid.
type ConfirmationResolved struct {
	LinkID    string
	BookingID string
	Status    string
	At        time.Time
}

func (e ConfirmationResolved) EventName() string     { return "payment.confirmation_resolved" }
func (e ConfirmationResolved) AggregateID() string   { return e.BookingID }
func (e ConfirmationResolved) OccurredAt() time.Time { return e.At }
