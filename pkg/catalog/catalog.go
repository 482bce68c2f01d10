// pkg/catalog/catalog.go
package catalog

import "errors"

// ProductKey is the stable short tag for one external product.
type ProductKey string

// ProductRecord describes one marketplace product from the catalog store.
// Immutable once loaded.
type ProductRecord struct {
	// ExternalID is the vendor-side product identifier.
	ExternalID string `json:"id"`

	// DisplayName is the human-readable product name.
	DisplayName string `json:"name"`

	// Vendor names the product's publisher.
	Vendor string `json:"vendor"`
}

// catalogDocument is the store-side schema.
type catalogDocument struct {
	Products map[ProductKey]ProductRecord `json:"products"`
}

var (
	// ErrProductNotFound means the key is absent from the loaded catalog.
	ErrProductNotFound = errors.New("catalog: product not found")

	// ErrConfigUnavailable means the catalog store is unreachable and no
	// previously loaded catalog exists to fall back on.
	ErrConfigUnavailable = errors.New("catalog: store unavailable and no cached catalog")
)
