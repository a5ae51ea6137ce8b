package payments_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innkeep/internal/app/services/payments"
	"innkeep/internal/domain/ledger"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/infra/storage/memory"
)

type stubPayable struct {
	amounts map[string]money.Money
	err     error
}

func (s stubPayable) PayableAmount(ctx context.Context, bookingID string) (money.Money, error) {
	if s.err != nil {
		return money.Money{}, s.err
	}
	return s.amounts[bookingID], nil
}

func newService(payable stubPayable) (*payments.Service, *memory.LedgerRepository, *memory.OutboxStore) {
	repo := memory.NewLedgerRepository()
	outbox := memory.NewOutboxStore()
	svc := &payments.Service{
		Repo:    repo,
		Payable: payable,
		Outbox:  outbox,
		Now:     func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
	}
	return svc, repo, outbox
}

func TestRecordPayment_CreatesTransactionOnFirstUse(t *testing.T) {
	svc, repo, outbox := newService(stubPayable{amounts: map[string]money.Money{
		"bk-1": money.Must(50000, "INR"),
	}})
	ctx := context.Background()

	res, err := svc.RecordPayment(ctx, payments.RecordParams{
		BookingID: "bk-1",
		Amount:    money.Must(20000, "INR"),
		Method:    ledger.MethodOnline,
	})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.NotEmpty(t, res.Payment.ID)
	assert.Equal(t, int64(20000), res.Summary.TotalPaid.Amount)
	assert.Equal(t, int64(30000), res.Summary.RemainingBalance.Amount)
	assert.False(t, res.Summary.FullyPaid)

	tx, err := repo.ByBooking(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), tx.Payable.Amount)
	assert.Len(t, tx.Payments, 1)
	assert.Contains(t, outbox.Events(), "payment.recorded")
}

func TestRecordPayment_ReplayedExternalRefIsNoOp(t *testing.T) {
	svc, repo, outbox := newService(stubPayable{amounts: map[string]money.Money{
		"bk-1": money.Must(50000, "INR"),
	}})
	ctx := context.Background()

	params := payments.RecordParams{
		BookingID:   "bk-1",
		Amount:      money.Must(20000, "INR"),
		Method:      ledger.MethodOnline,
		ExternalRef: "utr-42",
	}
	first, err := svc.RecordPayment(ctx, params)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := svc.RecordPayment(ctx, params)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, int64(20000), second.Summary.TotalPaid.Amount)

	tx, err := repo.ByBooking(ctx, "bk-1")
	require.NoError(t, err)
	assert.Len(t, tx.Payments, 1)

	// only the applied record emits an event
	events := 0
	for _, name := range outbox.Events() {
		if name == "payment.recorded" {
			events++
		}
	}
	assert.Equal(t, 1, events)
}

func TestRecordPayment_RejectsNonPositiveAmount(t *testing.T) {
	svc, repo, _ := newService(stubPayable{amounts: map[string]money.Money{
		"bk-1": money.Must(50000, "INR"),
	}})
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, payments.RecordParams{
		BookingID: "bk-1",
		Amount:    money.Zero("INR"),
		Method:    ledger.MethodCash,
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = repo.ByBooking(ctx, "bk-1")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestRecordPayment_Overpayment(t *testing.T) {
	svc, _, _ := newService(stubPayable{amounts: map[string]money.Money{
		"bk-1": money.Must(50000, "INR"),
	}})
	ctx := context.Background()

	res, err := svc.RecordPayment(ctx, payments.RecordParams{
		BookingID: "bk-1",
		Amount:    money.Must(60000, "INR"),
		Method:    ledger.MethodOnline,
	})
	require.NoError(t, err)
	assert.True(t, res.Summary.FullyPaid)
	assert.True(t, res.Summary.Overpaid)
	assert.Equal(t, int64(10000), res.Summary.OverpaidBy.Amount)
	assert.Equal(t, int64(0), res.Summary.RemainingBalance.Amount)
}

func TestSummary_NoPaymentsYet(t *testing.T) {
	svc, _, _ := newService(stubPayable{amounts: map[string]money.Money{
		"bk-1": money.Must(50000, "INR"),
	}})

	summary, err := svc.Summary(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.TotalPaid.Amount)
	assert.Equal(t, int64(50000), summary.RemainingBalance.Amount)
	assert.False(t, summary.FullyPaid)
}
