package booking

import (
	"errors"
	"fmt"
	"time"

	"innkeep/internal/domain/rates"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/events"
	"innkeep/internal/domain/shared/money"
)

var (
	ErrNotFound       = errors.New("booking: not found")
	ErrGuestRequired  = errors.New("booking: guest id required")
	ErrNoRoomStays    = errors.New("booking: at least one room stay required")
	ErrInvalidStatus  = errors.New("booking: unknown status")
	ErrConcurrentEdit = errors.New("booking: concurrent update detected")
)

type BookingID string

// Status is a closed enumeration over the booking lifecycle.
type Status string

const (
	StatusBooked     Status = "booked"
	StatusCheckedIn  Status = "checkin"
	StatusCheckedOut Status = "checkout"
	StatusCancelled  Status = "cancelled"
)

func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusBooked, StatusCheckedIn, StatusCheckedOut, StatusCancelled:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// allowedEdges is the full transition table. Anything absent fails with
// InvalidTransitionError and must leave booking and inventory untouched.
var allowedEdges = map[Status][]Status{
	StatusBooked:    {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn: {StatusCheckedOut},
}

// InvalidTransitionError names the current state and the attempted target.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("booking: invalid transition from %q to %q", e.From, e.To)
}

// Booking is a reservation of one or more rooms for a date range. It is
// never physically deleted; cancellation is a status, not erasure. Payment
// state lives in the ledger — a booking may check in or out while only
// partially paid.
type Booking struct {
	ID           BookingID
	GuestID      string
	Range        daterange.DateRange
	Stays        []rates.RoomStay
	InvoiceTotal money.Money
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int64
	events.EventRecorder
}

type CreateParams struct {
	ID           BookingID
	GuestID      string
	Range        daterange.DateRange
	Stays        []rates.RoomStay
	InvoiceTotal money.Money
	CreatedAt    time.Time
}

func New(params CreateParams) (*Booking, error) {
	if params.GuestID == "" {
		return nil, ErrGuestRequired
	}
	if len(params.Stays) == 0 {
		return nil, ErrNoRoomStays
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:           params.ID,
		GuestID:      params.GuestID,
		Range:        params.Range,
		Stays:        append([]rates.RoomStay(nil), params.Stays...),
		InvoiceTotal: params.InvoiceTotal,
		Status:       StatusBooked,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	b.Record(Created{BookingID: b.ID, GuestID: b.GuestID, Range: b.Range, Total: b.InvoiceTotal, At: now})
	return b, nil
}

// CanTransition reports whether the edge from the current status to target
// exists, without mutating anything.
func (b *Booking) CanTransition(target Status) bool {
	for _, next := range allowedEdges[b.Status] {
		if next == target {
			return true
		}
	}
	return false
}

// Transition moves the booking along one allowed edge. On a disallowed edge
// nothing changes and an InvalidTransitionError is returned.
func (b *Booking) Transition(target Status, now time.Time) error {
	if !b.CanTransition(target) {
		return InvalidTransitionError{From: b.Status, To: target}
	}
	b.Status = target
	b.UpdatedAt = now.UTC()
	switch target {
	case StatusCheckedIn:
		b.Record(CheckedIn{BookingID: b.ID, At: b.UpdatedAt})
	case StatusCheckedOut:
		b.Record(CheckedOut{BookingID: b.ID, At: b.UpdatedAt})
	case StatusCancelled:
		b.Record(Cancelled{BookingID: b.ID, Range: b.Range, At: b.UpdatedAt})
	}
	return nil
}

// RoomIDs lists the rooms this booking holds, in stay order.
func (b *Booking) RoomIDs() []string {
	ids := make([]string, 0, len(b.Stays))
	for _, s := range b.Stays {
		ids = append(ids, s.RoomID)
	}
	return ids
}
