package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innkeep/internal/domain/booking"
	"innkeep/internal/domain/rates"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
)

func newBooking(t *testing.T) *booking.Booking {
	t.Helper()
	stay, err := daterange.New(
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	b, err := booking.New(booking.CreateParams{
		ID:      "bk-1",
		GuestID: "guest-1",
		Range:   stay,
		Stays: []rates.RoomStay{{
			RoomID:       "101",
			PropertyType: "deluxe",
			BaseRate:     money.Must(10000, "INR"),
		}},
		InvoiceTotal: money.Must(20000, "INR"),
		CreatedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return b
}

func TestNew_Validation(t *testing.T) {
	stay, err := daterange.New(
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	_, err = booking.New(booking.CreateParams{ID: "bk", Range: stay, Stays: []rates.RoomStay{{RoomID: "101"}}})
	assert.ErrorIs(t, err, booking.ErrGuestRequired)

	_, err = booking.New(booking.CreateParams{ID: "bk", GuestID: "g", Range: stay})
	assert.ErrorIs(t, err, booking.ErrNoRoomStays)

	_, err = booking.New(booking.CreateParams{ID: "bk", GuestID: "g", Stays: []rates.RoomStay{{RoomID: "101"}}})
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)
}

func TestNew_StartsBookedAndRecordsCreated(t *testing.T) {
	b := newBooking(t)
	assert.Equal(t, booking.StatusBooked, b.Status)

	events := b.PendingEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "booking.created", events[0].EventName())
}

func TestTransition_Table(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	cases := []struct {
		from    booking.Status
		to      booking.Status
		allowed bool
	}{
		{booking.StatusBooked, booking.StatusCheckedIn, true},
		{booking.StatusBooked, booking.StatusCancelled, true},
		{booking.StatusBooked, booking.StatusCheckedOut, false},
		{booking.StatusCheckedIn, booking.StatusCheckedOut, true},
		{booking.StatusCheckedIn, booking.StatusCancelled, false},
		{booking.StatusCheckedIn, booking.StatusBooked, false},
		{booking.StatusCheckedOut, booking.StatusCheckedIn, false},
		{booking.StatusCheckedOut, booking.StatusCancelled, false},
		{booking.StatusCancelled, booking.StatusCheckedIn, false},
		{booking.StatusCancelled, booking.StatusBooked, false},
	}
	for _, tc := range cases {
		b := newBooking(t)
		b.Status = tc.from
		before := b.UpdatedAt

		err := b.Transition(tc.to, now)
		if tc.allowed {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
			assert.Equal(t, tc.to, b.Status)
			assert.Equal(t, now, b.UpdatedAt)
			continue
		}
		var invalid booking.InvalidTransitionError
		require.ErrorAs(t, err, &invalid, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.from, invalid.From)
		assert.Equal(t, tc.to, invalid.To)
		// failed transition must leave the booking untouched
		assert.Equal(t, tc.from, b.Status)
		assert.Equal(t, before, b.UpdatedAt)
	}
}

func TestTransition_RecordsLifecycleEvents(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	b := newBooking(t)
	b.ClearEvents()
	require.NoError(t, b.Transition(booking.StatusCheckedIn, now))
	require.NoError(t, b.Transition(booking.StatusCheckedOut, now.Add(time.Hour)))

	events := b.PendingEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "booking.checked_in", events[0].EventName())
	assert.Equal(t, "booking.checked_out", events[1].EventName())

	b = newBooking(t)
	b.ClearEvents()
	require.NoError(t, b.Transition(booking.StatusCancelled, now))
	events = b.PendingEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "booking.cancelled", events[0].EventName())
}

func TestParseStatus(t *testing.T) {
	s, err := booking.ParseStatus("checkin")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCheckedIn, s)

	_, err = booking.ParseStatus("archived")
	assert.ErrorIs(t, err, booking.ErrInvalidStatus)
}
