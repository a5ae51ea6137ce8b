package memory

import (
	"context"
	"sync"

	"innkeep/internal/app/policies"
	"innkeep/internal/domain/rates"
)

// OfferingCatalog holds special offerings seeded at startup. Offerings are
// owned outside this system, so the catalog is read-only after seeding.
type OfferingCatalog struct {
	mu    sync.RWMutex
	items []rates.SpecialOffering
}

func NewOfferingCatalog() *OfferingCatalog {
	return &OfferingCatalog{}
}

func (c *OfferingCatalog) Seed(offerings []rates.SpecialOffering) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, offerings...)
}

func (c *OfferingCatalog) ActiveOfferings(ctx context.Context) ([]rates.SpecialOffering, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]rates.SpecialOffering(nil), c.items...), nil
}

var _ policies.OfferingCatalog = (*OfferingCatalog)(nil)
