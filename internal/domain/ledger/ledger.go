package ledger

import (
	"errors"
	"fmt"
	"time"

	"innkeep/internal/domain/shared/money"
)

var (
	ErrInvalidAmount       = errors.New("ledger: payment amount must be positive")
	ErrInvalidMethod       = errors.New("ledger: unknown payment method")
	ErrInvalidStatus       = errors.New("ledger: unknown payment status")
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
)

// PaymentMethod is a closed enumeration; values outside it are rejected at
// the boundary via ParseMethod.
type PaymentMethod string

const (
	MethodOnline      PaymentMethod = "online"
	MethodCash        PaymentMethod = "cash"
	MethodPaymentLink PaymentMethod = "payment_link"
)

func ParseMethod(raw string) (PaymentMethod, error) {
	switch PaymentMethod(raw) {
	case MethodOnline, MethodCash, MethodPaymentLink:
		return PaymentMethod(raw), nil
	case "cod":
		// legacy alias kept for older clients
		return MethodCash, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, raw)
	}
}

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentPending   PaymentStatus = "pending"
	PaymentFailed    PaymentStatus = "failed"
)

func ParseStatus(raw string) (PaymentStatus, error) {
	switch PaymentStatus(raw) {
	case PaymentCompleted, PaymentPending, PaymentFailed:
		return PaymentStatus(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Payment is one entry in a booking's transaction record.
type Payment struct {
	ID          string
	Amount      money.Money
	Method      PaymentMethod
	ExternalRef string
	Date        time.Time
	Status      PaymentStatus
}

// Transaction is the append-only payment record for one booking. It is
// created on the first payment and mutated only by appending.
type Transaction struct {
	BookingID string
	Payable   money.Money
	Payments  []Payment
	Version   int64
}

func NewTransaction(bookingID string, payable money.Money) *Transaction {
	return &Transaction{BookingID: bookingID, Payable: payable}
}

// Append records a payment. When the payment carries an external reference
// already present on this transaction the call is a no-op success and
// applied is false — replays never create duplicate entries.
func (t *Transaction) Append(p Payment) (applied bool, err error) {
	if !p.Amount.IsPositive() {
		return false, ErrInvalidAmount
	}
	if p.Status == "" {
		p.Status = PaymentCompleted
	}
	if p.ExternalRef != "" {
		for _, existing := range t.Payments {
			if existing.ExternalRef == p.ExternalRef {
				return false, nil
			}
		}
	}
	t.Payments = append(t.Payments, p)
	return true, nil
}

// Summary is derived from the payment sequence on every call, never cached.
type Summary struct {
	TotalPaid        money.Money
	RemainingBalance money.Money
	FullyPaid        bool
	Overpaid         bool
	OverpaidBy       money.Money
}

// Summarize derives totals from completed payments only. Remaining balance
// clamps at zero; overpayment is kept visible for reconciliation instead of
// being discarded.
func (t *Transaction) Summarize() Summary {
	paid := money.Zero(t.Payable.Currency)
	for _, p := range t.Payments {
		if p.Status != PaymentCompleted {
			continue
		}
		paid, _ = paid.Add(p.Amount)
	}
	remaining, _ := t.Payable.Sub(paid)
	s := Summary{
		TotalPaid:        paid,
		RemainingBalance: remaining.ClampNonNegative(),
	}
	s.FullyPaid = s.RemainingBalance.IsZero()
	if remaining.Amount < 0 {
		s.Overpaid = true
		s.OverpaidBy = money.Money{Amount: -remaining.Amount, Currency: remaining.Currency}
	} else {
		s.OverpaidBy = money.Zero(t.Payable.Currency)
	}
	return s
}
