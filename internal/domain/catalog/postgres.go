package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of pgxpool.Pool the repository needs. Declared as an
// interface so tests can substitute pgxmock.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// PostgresStore implements Store on Postgres. Approximate search relies on
// the pg_trgm extension; phonetic lookups hit the precomputed phonetic_key
// column.
type PostgresStore struct {
	db PgxPool
}

// NewPostgresStore creates a catalog store backed by Postgres.
func NewPostgresStore(db PgxPool) *PostgresStore {
	return &PostgresStore{db: db}
}

const productColumns = `
	id, name, brand, category, subcategory, unit_size, case_size,
	normalized_name, phonetic_key, search_terms, usage_count, last_used,
	success_rate, locations_used`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Brand, &p.Category, &p.Subcategory, &p.UnitSize,
		&p.CaseSize, &p.NormalizedName, &p.PhoneticKey, &p.SearchTerms,
		&p.UsageCount, &p.LastUsed, &p.SuccessRate, &p.LocationsUsed,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) collect(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *PostgresStore) FindExact(ctx context.Context, text string) ([]Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM canonical_products
		WHERE lower(name) = lower($1)
		   OR lower(brand) = lower($1)
		   OR normalized_name = lower($1)
		ORDER BY usage_count DESC, name, id
	`
	rows, err := s.db.Query(ctx, query, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.collect(rows)
}

func (s *PostgresStore) SearchBrand(ctx context.Context, brand string) ([]Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM canonical_products
		WHERE lower(brand) = lower($1)
		ORDER BY usage_count DESC, name, id
	`
	rows, err := s.db.Query(ctx, query, brand)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.collect(rows)
}

func (s *PostgresStore) SearchSimilar(ctx context.Context, text string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + productColumns + `
		FROM canonical_products
		WHERE similarity(normalized_name, lower($1)) > 0.15
		   OR normalized_name % lower($1)
		ORDER BY similarity(normalized_name, lower($1)) DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, text, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.collect(rows)
}

func (s *PostgresStore) SearchPhonetic(ctx context.Context, keys []string) ([]Product, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	upper := make([]string, len(keys))
	for i, k := range keys {
		upper[i] = strings.ToUpper(k)
	}
	query := `
		SELECT ` + productColumns + `
		FROM canonical_products
		WHERE phonetic_key = ANY($1)
		ORDER BY usage_count DESC, name, id
	`
	rows, err := s.db.Query(ctx, query, upper)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.collect(rows)
}

func (s *PostgresStore) SearchLocationAlias(ctx context.Context, locationID uuid.UUID, name string) ([]Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM canonical_products p
		JOIN location_aliases a ON a.product_id = p.id
		WHERE a.location_id = $1 AND lower(a.alias) = lower($2)
		ORDER BY a.use_count DESC
	`
	rows, err := s.db.Query(ctx, query, locationID, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.collect(rows)
}

func (s *PostgresStore) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM canonical_products WHERE id = $1`
	p, err := scanProduct(s.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return p, nil
}

const insertProductSQL = `
	INSERT INTO canonical_products (
		id, name, brand, category, subcategory, unit_size, case_size,
		normalized_name, phonetic_key, search_terms
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func (s *PostgresStore) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Brand, p.Category, p.Subcategory, p.UnitSize,
		p.CaseSize, p.NormalizedName, p.PhoneticKey, p.SearchTerms,
	)
	return err
}

const upsertMappingSQL = `
	INSERT INTO supplier_mappings (
		supplier_id, supplier_code, canonical_product_id,
		confidence_score, auto_matched, verified
	) VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (supplier_id, supplier_code) DO UPDATE SET
		canonical_product_id = EXCLUDED.canonical_product_id,
		confidence_score = EXCLUDED.confidence_score,
		auto_matched = EXCLUDED.auto_matched,
		verified = EXCLUDED.verified,
		updated_at = now()
`

// CreateWithMapping inserts the product and its supplier mapping in one
// transaction so a mapping can never reference a missing product.
func (s *PostgresStore) CreateWithMapping(ctx context.Context, p *Product, m *Mapping) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.CanonicalProductID = p.ID

	if _, err := tx.Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Brand, p.Category, p.Subcategory, p.UnitSize,
		p.CaseSize, p.NormalizedName, p.PhoneticKey, p.SearchTerms,
	); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	if _, err := tx.Exec(ctx, upsertMappingSQL,
		m.SupplierID, m.SupplierCode, m.CanonicalProductID,
		m.Confidence, m.AutoMatched, m.Verified,
	); err != nil {
		return fmt.Errorf("insert mapping: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) UpsertMapping(ctx context.Context, m *Mapping) error {
	_, err := s.db.Exec(ctx, upsertMappingSQL,
		m.SupplierID, m.SupplierCode, m.CanonicalProductID,
		m.Confidence, m.AutoMatched, m.Verified,
	)
	return err
}

// IncrementUsage is a single UPDATE so concurrent confirmations never lose
// counts to a read-modify-write race.
func (s *PostgresStore) IncrementUsage(ctx context.Context, productID uuid.UUID) error {
	query := `
		UPDATE canonical_products
		SET usage_count = usage_count + 1, last_used = now()
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordAlias(ctx context.Context, alias LocationAlias) error {
	query := `
		INSERT INTO location_aliases (location_id, alias, product_id, use_count)
		VALUES ($1, lower($2), $3, 1)
		ON CONFLICT (location_id, alias) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			use_count = location_aliases.use_count + 1
	`
	_, err := s.db.Exec(ctx, query, alias.LocationID, alias.Alias, alias.ProductID)
	return err
}
