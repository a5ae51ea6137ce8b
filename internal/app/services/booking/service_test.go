package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innkeep/internal/app/policies"
	bookingapp "innkeep/internal/app/services/booking"
	domainbooking "innkeep/internal/domain/booking"
	"innkeep/internal/domain/rates"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/infra/storage/memory"
)

type fixture struct {
	service   *bookingapp.Service
	repo      *memory.BookingRepository
	inventory *memory.Inventory
	outbox    *memory.OutboxStore
	offerings *memory.OfferingCatalog
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := memory.NewBookingRepository()
	inventory := memory.NewInventory()
	outbox := memory.NewOutboxStore()
	offerings := memory.NewOfferingCatalog()
	return fixture{
		service: &bookingapp.Service{
			Repo:      repo,
			Inventory: inventory,
			Offerings: offerings,
			Outbox:    outbox,
			Now:       func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
		},
		repo:      repo,
		inventory: inventory,
		outbox:    outbox,
		offerings: offerings,
	}
}

func stayParams(rooms ...string) bookingapp.CreateParams {
	stays := make([]rates.RoomStay, 0, len(rooms))
	for _, id := range rooms {
		stays = append(stays, rates.RoomStay{
			RoomID:       id,
			PropertyType: "deluxe",
			BaseRate:     money.Must(10000, "INR"),
			CGSTPercent:  6,
			SGSTPercent:  6,
		})
	}
	return bookingapp.CreateParams{
		GuestID:  "guest-1",
		CheckIn:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		Stays:    stays,
	}
}

func TestCreate_QuotesReservesAndPersists(t *testing.T) {
	fx := newFixture(t)
	fx.offerings.Seed([]rates.SpecialOffering{{
		Name:            "March Deal",
		PropertyType:    "deluxe",
		DiscountPercent: 10,
		StartDate:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}})
	ctx := context.Background()

	b, err := fx.service.Create(ctx, stayParams("101"))
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusBooked, b.Status)
	// 2 nights at 9000 + 540 + 540
	assert.Equal(t, int64(20160), b.InvoiceTotal.Amount)

	stored, err := fx.repo.ByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.InvoiceTotal, stored.InvoiceTotal)

	night := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, string(b.ID), fx.inventory.HeldBy("101", night))
	assert.Contains(t, fx.outbox.Events(), "booking.created")
}

func TestCreate_ConflictReleasesPartialHolds(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	stay, err := daterange.New(
		time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	require.NoError(t, fx.inventory.ReserveRoom(ctx, "102", stay, "other-booking"))

	_, err = fx.service.Create(ctx, stayParams("101", "102"))
	require.ErrorIs(t, err, policies.ErrRoomConflict)

	// the hold taken on 101 before the conflict must be gone
	night := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Empty(t, fx.inventory.HeldBy("101", night))
	assert.NotContains(t, fx.outbox.Events(), "booking.created")
}

func TestTransition_CheckInThenCheckOut(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	b, err := fx.service.Create(ctx, stayParams("101"))
	require.NoError(t, err)

	b, err = fx.service.Transition(ctx, b.ID, domainbooking.StatusCheckedIn)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusCheckedIn, b.Status)

	b, err = fx.service.Transition(ctx, b.ID, domainbooking.StatusCheckedOut)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusCheckedOut, b.Status)

	// rooms stay held through checkout; only cancellation frees them
	night := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, string(b.ID), fx.inventory.HeldBy("101", night))
}

func TestTransition_InvalidEdgeLeavesEverythingUntouched(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	b, err := fx.service.Create(ctx, stayParams("101"))
	require.NoError(t, err)

	_, err = fx.service.Transition(ctx, b.ID, domainbooking.StatusCheckedOut)
	var invalid domainbooking.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)

	stored, err := fx.repo.ByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusBooked, stored.Status)

	night := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, string(b.ID), fx.inventory.HeldBy("101", night))
}

func TestCancel_ReleasesHolds(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	b, err := fx.service.Create(ctx, stayParams("101", "102"))
	require.NoError(t, err)

	_, err = fx.service.Transition(ctx, b.ID, domainbooking.StatusCancelled)
	require.NoError(t, err)

	for _, night := range []time.Time{
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
	} {
		assert.Empty(t, fx.inventory.HeldBy("101", night))
		assert.Empty(t, fx.inventory.HeldBy("102", night))
	}
	assert.Contains(t, fx.outbox.Events(), "booking.cancelled")

	// the cancelled booking remains readable, not deleted
	stored, err := fx.repo.ByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusCancelled, stored.Status)

	// the freed rooms can be booked again for the same nights
	rebooked, err := fx.service.Create(ctx, stayParams("101", "102"))
	require.NoError(t, err)
	night := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, string(rebooked.ID), fx.inventory.HeldBy("101", night))
}

func TestTransition_StaleWriterLosesOnVersion(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	b, err := fx.service.Create(ctx, stayParams("101"))
	require.NoError(t, err)

	// two callers read the same version; the first commit wins
	first, err := fx.repo.ByID(ctx, b.ID)
	require.NoError(t, err)
	second, err := fx.repo.ByID(ctx, b.ID)
	require.NoError(t, err)

	require.NoError(t, first.Transition(domainbooking.StatusCheckedIn, time.Now().UTC()))
	require.NoError(t, fx.repo.Save(ctx, first))

	require.NoError(t, second.Transition(domainbooking.StatusCancelled, time.Now().UTC()))
	err = fx.repo.Save(ctx, second)
	assert.ErrorIs(t, err, domainbooking.ErrConcurrentEdit)
}

func TestInvoice_RecomputesEntries(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	b, err := fx.service.Create(ctx, stayParams("101"))
	require.NoError(t, err)

	inv, err := fx.service.Invoice(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, inv.Entries, 2)
	assert.Equal(t, b.InvoiceTotal, inv.Total)
}

func TestPayableAmount(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	b, err := fx.service.Create(ctx, stayParams("101"))
	require.NoError(t, err)

	payable, err := fx.service.PayableAmount(ctx, string(b.ID))
	require.NoError(t, err)
	assert.Equal(t, b.InvoiceTotal, payable)

	_, err = fx.service.PayableAmount(ctx, "missing")
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)
}
