package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"innkeep/internal/app/policies"
	"innkeep/internal/domain/shared/daterange"
)

// Inventory holds room-date reservations in memory. A reserve call is
// all-or-nothing per room: either every night in the range is taken under
// one lock or the call fails with ErrRoomConflict and nothing is held.
type Inventory struct {
	mu    sync.Mutex
	holds map[string]map[int64]string // room id -> unix day -> booking id
}

func NewInventory() *Inventory {
	return &Inventory{holds: make(map[string]map[int64]string)}
}

func (i *Inventory) ReserveRoom(ctx context.Context, roomID string, stay daterange.DateRange, bookingID string) error {
	nights := stay.Dates()
	i.mu.Lock()
	defer i.mu.Unlock()
	room := i.holds[roomID]
	for _, night := range nights {
		if holder, ok := room[night.Unix()]; ok && holder != bookingID {
			return fmt.Errorf("%w: room %s on %s", policies.ErrRoomConflict, roomID, night.Format("2006-01-02"))
		}
	}
	if room == nil {
		room = make(map[int64]string)
		i.holds[roomID] = room
	}
	for _, night := range nights {
		room[night.Unix()] = bookingID
	}
	return nil
}

func (i *Inventory) ReleaseRoom(ctx context.Context, roomID string, stay daterange.DateRange, bookingID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	room := i.holds[roomID]
	for _, night := range stay.Dates() {
		if room[night.Unix()] == bookingID {
			delete(room, night.Unix())
		}
	}
	return nil
}

// HeldBy reports which booking holds a room on a given night; empty when
// the night is free.
func (i *Inventory) HeldBy(roomID string, night time.Time) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	night = night.UTC()
	day := time.Date(night.Year(), night.Month(), night.Day(), 0, 0, 0, 0, time.UTC)
	return i.holds[roomID][day.Unix()]
}
