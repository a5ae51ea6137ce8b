package policies

import (
	"context"

	"innkeep/internal/domain/rates"
)

// OfferingCatalog exposes the promotional windows owned by the back office.
// Read-only to the engine.
type OfferingCatalog interface {
	ActiveOfferings(ctx context.Context) ([]rates.SpecialOffering, error)
}
