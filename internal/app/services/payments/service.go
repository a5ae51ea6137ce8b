package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appoutbox "innkeep/internal/app/outbox"
	"innkeep/internal/domain/ledger"
	"innkeep/internal/domain/shared/events"
	"innkeep/internal/domain/shared/money"
)

// Repository persists ledger transactions. AppendPayment must be atomic
// with respect to the external reference: a replayed ref yields
// applied=false and no new entry (compare-and-swap at the storage layer).
type Repository interface {
	ByBooking(ctx context.Context, bookingID string) (*ledger.Transaction, error)
	Ensure(ctx context.Context, bookingID string, payable money.Money) (*ledger.Transaction, error)
	AppendPayment(ctx context.Context, bookingID string, p ledger.Payment) (applied bool, err error)
}

// PayableSource supplies the amount owed for a booking; the booking service
// implements it from the invoice total.
type PayableSource interface {
	PayableAmount(ctx context.Context, bookingID string) (money.Money, error)
}

type Service struct {
	Repo    Repository
	Payable PayableSource
	Outbox  appoutbox.Outbox
	Encoder appoutbox.EventEncoder
	Logger  *slog.Logger
	Now     func() time.Time
}

type RecordParams struct {
	BookingID   string
	Amount      money.Money
	Method      ledger.PaymentMethod
	Date        time.Time
	ExternalRef string
}

type RecordResult struct {
	Payment ledger.Payment
	Applied bool
	Summary ledger.Summary
}

// RecordPayment appends a payment to the booking's transaction, creating
// the transaction on first use. A replayed external reference is a no-op
// success with Applied=false.
func (s *Service) RecordPayment(ctx context.Context, params RecordParams) (RecordResult, error) {
	if !params.Amount.IsPositive() {
		return RecordResult{}, ledger.ErrInvalidAmount
	}
	tx, err := s.Repo.ByBooking(ctx, params.BookingID)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		payable, perr := s.Payable.PayableAmount(ctx, params.BookingID)
		if perr != nil {
			return RecordResult{}, perr
		}
		tx, err = s.Repo.Ensure(ctx, params.BookingID, payable)
	}
	if err != nil {
		return RecordResult{}, err
	}

	date := params.Date
	if date.IsZero() {
		date = s.now()
	}
	payment := ledger.Payment{
		ID:          uuid.NewString(),
		Amount:      params.Amount,
		Method:      params.Method,
		ExternalRef: params.ExternalRef,
		Date:        date.UTC(),
		Status:      ledger.PaymentCompleted,
	}
	applied, err := s.Repo.AppendPayment(ctx, params.BookingID, payment)
	if err != nil {
		return RecordResult{}, err
	}

	tx, err = s.Repo.ByBooking(ctx, params.BookingID)
	if err != nil {
		return RecordResult{}, err
	}
	summary := tx.Summarize()
	if applied {
		s.recordEvent(ctx, PaymentRecorded{
			BookingID:   params.BookingID,
			PaymentID:   payment.ID,
			Amount:      payment.Amount,
			Method:      payment.Method,
			ExternalRef: payment.ExternalRef,
			FullyPaid:   summary.FullyPaid,
			At:          payment.Date,
		})
	}
	return RecordResult{Payment: payment, Applied: applied, Summary: summary}, nil
}

// Summary derives payment totals for a booking. A booking with no recorded
// payments yet reports the full payable amount as remaining.
func (s *Service) Summary(ctx context.Context, bookingID string) (ledger.Summary, error) {
	tx, err := s.Repo.ByBooking(ctx, bookingID)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		payable, perr := s.Payable.PayableAmount(ctx, bookingID)
		if perr != nil {
			return ledger.Summary{}, perr
		}
		return ledger.NewTransaction(bookingID, payable).Summarize(), nil
	}
	if err != nil {
		return ledger.Summary{}, err
	}
	return tx.Summarize(), nil
}

func (s *Service) recordEvent(ctx context.Context, ev PaymentRecorded) {
	if err := appoutbox.RecordDomainEvents(ctx, s.Outbox, s.Encoder, []events.DomainEvent{ev}); err != nil {
		s.log().Error("outbox append failed", "booking_id", ev.BookingID, "error", err)
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
