package policies

import (
	"context"
	"errors"

	"innkeep/internal/domain/shared/daterange"
)

// ErrRoomConflict is returned by ReserveRoom when any night in the range is
// already held by another booking.
var ErrRoomConflict = errors.New("inventory: room not available for requested dates")

// InventoryService is the external room-inventory collaborator. Holds are
// per room per night; releasing returns the nights to the pool.
type InventoryService interface {
	ReserveRoom(ctx context.Context, roomID string, stay daterange.DateRange, bookingID string) error
	ReleaseRoom(ctx context.Context, roomID string, stay daterange.DateRange, bookingID string) error
}
