package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by point lookups when no row exists.
var ErrNotFound = errors.New("catalog: not found")

// ErrUnavailable wraps store-level failures (connection loss, timeouts).
// Callers treat an unavailable store as "zero candidates", never as a
// document-level failure.
var ErrUnavailable = errors.New("catalog: store unavailable")

// Store is the catalog query and mutation contract required by the identity
// resolution engine. Implementations must support approximate string
// similarity and the phonetic transform; a handle is injected into every
// component at construction so tests can substitute doubles.
type Store interface {
	// FindExact returns products whose name, brand or normalized name equals
	// the given text case-insensitively.
	FindExact(ctx context.Context, text string) ([]Product, error)

	// SearchBrand returns products carrying the given brand word.
	SearchBrand(ctx context.Context, brand string) ([]Product, error)

	// SearchSimilar returns a broad candidate set for approximate matching.
	// Fine-grained weighted similarity is computed by the caller; the store
	// only needs to over-fetch plausible rows.
	SearchSimilar(ctx context.Context, text string, limit int) ([]Product, error)

	// SearchPhonetic returns products whose precomputed phonetic key equals
	// any of the given keys.
	SearchPhonetic(ctx context.Context, keys []string) ([]Product, error)

	// SearchLocationAlias returns products a location has historically used
	// the given name for.
	SearchLocationAlias(ctx context.Context, locationID uuid.UUID, name string) ([]Product, error)

	// GetProduct fetches a single product by id.
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)

	// CreateProduct inserts a new canonical product.
	CreateProduct(ctx context.Context, p *Product) error

	// CreateWithMapping inserts a new canonical product and its supplier
	// mapping atomically: both commit or both roll back.
	CreateWithMapping(ctx context.Context, p *Product, m *Mapping) error

	// UpsertMapping creates or updates a supplier mapping. On a
	// (supplierID, supplierCode) conflict the existing row is updated,
	// never duplicated.
	UpsertMapping(ctx context.Context, m *Mapping) error

	// IncrementUsage atomically bumps a product's usage counter and stamps
	// last-used. Safe under concurrent confirmations.
	IncrementUsage(ctx context.Context, productID uuid.UUID) error

	// RecordAlias stores (or counts up) a location's name for a product,
	// feeding the location-alias search strategy.
	RecordAlias(ctx context.Context, alias LocationAlias) error
}
