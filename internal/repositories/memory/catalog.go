package memory

import (
	"context"
	"sync"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/repositories"
)

// Catalog is an in-memory product catalog keyed by product ID. The checkout
// flow resolves unit prices and weights through it so client figures are
// never trusted.
type Catalog struct {
	mu       sync.Mutex
	products map[string]domain.CartItem
}

// NewCatalog constructs an empty in-memory catalog.
func NewCatalog() *Catalog {
	return &Catalog{products: make(map[string]domain.CartItem)}
}

// Put seeds or replaces a product entry.
func (c *Catalog) Put(item domain.CartItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[item.ProductID] = item
}

// Lookup returns the catalog entry for a product.
func (c *Catalog) Lookup(_ context.Context, productID string) (domain.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.products[productID]
	if !ok {
		return domain.CartItem{}, repositories.NewNotFound("memory catalog: lookup", nil)
	}
	return item, nil
}
