package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appoutbox "innkeep/internal/app/outbox"
	"innkeep/internal/app/policies"
	domainbooking "innkeep/internal/domain/booking"
	"innkeep/internal/domain/rates"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
)

// Repository persists bookings with optimistic concurrency: Save must fail
// with domainbooking.ErrConcurrentEdit when the stored version moved.
type Repository interface {
	ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error)
	Save(ctx context.Context, b *domainbooking.Booking) error
}

type Service struct {
	Repo      Repository
	Inventory policies.InventoryService
	Offerings policies.OfferingCatalog
	Outbox    appoutbox.Outbox
	Encoder   appoutbox.EventEncoder
	Logger    *slog.Logger
	Now       func() time.Time
}

type CreateParams struct {
	GuestID  string
	CheckIn  time.Time
	CheckOut time.Time
	Stays    []rates.RoomStay
}

// Create quotes the invoice, reserves every room for the stay and persists
// the booking. On an inventory conflict any holds taken so far are released
// before the error is returned, so a failed create leaves nothing behind.
func (s *Service) Create(ctx context.Context, params CreateParams) (*domainbooking.Booking, error) {
	stay, err := daterange.New(params.CheckIn, params.CheckOut)
	if err != nil {
		return nil, err
	}
	offerings, err := s.activeOfferings(ctx)
	if err != nil {
		return nil, err
	}
	invoice, err := rates.Quote(stay, params.Stays, offerings)
	if err != nil {
		return nil, err
	}

	b, err := domainbooking.New(domainbooking.CreateParams{
		ID:           domainbooking.BookingID(uuid.NewString()),
		GuestID:      params.GuestID,
		Range:        stay,
		Stays:        params.Stays,
		InvoiceTotal: invoice.Total,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, err
	}

	var held []string
	for _, roomID := range b.RoomIDs() {
		if err := s.Inventory.ReserveRoom(ctx, roomID, stay, string(b.ID)); err != nil {
			s.releaseHolds(ctx, held, stay, string(b.ID))
			return nil, fmt.Errorf("reserve room %s: %w", roomID, err)
		}
		held = append(held, roomID)
	}

	if err := s.Repo.Save(ctx, b); err != nil {
		s.releaseHolds(ctx, held, stay, string(b.ID))
		return nil, err
	}
	s.flushEvents(ctx, b)
	return b, nil
}

// Transition moves a booking along one lifecycle edge. Serialization against
// concurrent transitions on the same booking relies on the repository's
// version check: the losing writer gets ErrConcurrentEdit and no inventory
// side effect runs. Holds are released only after a cancel has committed.
func (s *Service) Transition(ctx context.Context, id domainbooking.BookingID, target domainbooking.Status) (*domainbooking.Booking, error) {
	b, err := s.Repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.Transition(target, s.now()); err != nil {
		return nil, err
	}
	if err := s.Repo.Save(ctx, b); err != nil {
		return nil, err
	}
	if target == domainbooking.StatusCancelled {
		s.releaseHolds(ctx, b.RoomIDs(), b.Range, string(b.ID))
	}
	s.flushEvents(ctx, b)
	return b, nil
}

func (s *Service) Get(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	return s.Repo.ByID(ctx, id)
}

// Invoice recomputes the per-night rate breakdown for display. Entries are
// ephemeral; only the total is stored on the booking.
func (s *Service) Invoice(ctx context.Context, id domainbooking.BookingID) (rates.Invoice, error) {
	b, err := s.Repo.ByID(ctx, id)
	if err != nil {
		return rates.Invoice{}, err
	}
	offerings, err := s.activeOfferings(ctx)
	if err != nil {
		return rates.Invoice{}, err
	}
	return rates.Quote(b.Range, b.Stays, offerings)
}

// PayableAmount supplies the ledger with a booking's invoice total.
func (s *Service) PayableAmount(ctx context.Context, bookingID string) (money.Money, error) {
	b, err := s.Repo.ByID(ctx, domainbooking.BookingID(bookingID))
	if err != nil {
		return money.Money{}, err
	}
	return b.InvoiceTotal, nil
}

func (s *Service) activeOfferings(ctx context.Context) ([]rates.SpecialOffering, error) {
	if s.Offerings == nil {
		return nil, nil
	}
	return s.Offerings.ActiveOfferings(ctx)
}

func (s *Service) releaseHolds(ctx context.Context, roomIDs []string, stay daterange.DateRange, bookingID string) {
	for _, roomID := range roomIDs {
		if err := s.Inventory.ReleaseRoom(ctx, roomID, stay, bookingID); err != nil {
			s.log().Error("room hold release failed", "room_id", roomID, "booking_id", bookingID, "error", err)
		}
	}
}

func (s *Service) flushEvents(ctx context.Context, b *domainbooking.Booking) {
	if err := appoutbox.RecordDomainEvents(ctx, s.Outbox, s.Encoder, b.PendingEvents()); err != nil {
		s.log().Error("outbox append failed", "booking_id", b.ID, "error", err)
		return
	}
	b.ClearEvents()
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
