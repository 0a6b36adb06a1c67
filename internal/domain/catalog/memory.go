package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"
)

// searchDoc is the bleve document shape for a catalog product.
type searchDoc struct {
	Name           string `json:"name"`
	Brand          string `json:"brand"`
	NormalizedName string `json:"normalized_name"`
	PhoneticKey    string `json:"phonetic_key"`
	Terms          string `json:"terms"`
}

// MemoryStore is an in-memory Store implementation. Exact, brand, phonetic
// and alias lookups run over maps; approximate search goes through a bleve
// in-memory index with fuzziness enabled. It backs standalone runs and acts
// as the substitutable test double for the Postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[uuid.UUID]*Product
	mappings map[mappingKey]Mapping
	aliases  map[uuid.UUID]map[string]LocationAlias
	index    bleve.Index
}

type mappingKey struct {
	supplierID uuid.UUID
	code       string
}

// NewMemoryStore creates an empty in-memory catalog store.
func NewMemoryStore() (*MemoryStore, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return &MemoryStore{
		products: make(map[uuid.UUID]*Product),
		mappings: make(map[mappingKey]Mapping),
		aliases:  make(map[uuid.UUID]map[string]LocationAlias),
		index:    index,
	}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("brand", textFieldMapping)
	docMapping.AddFieldMappingsAt("normalized_name", textFieldMapping)
	docMapping.AddFieldMappingsAt("phonetic_key", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("terms", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// Load bulk-inserts seeded products.
func (s *MemoryStore) Load(products []Product) error {
	batch := s.index.NewBatch()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range products {
		p := products[i]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		s.products[p.ID] = &p
		if err := batch.Index(p.ID.String(), toSearchDoc(&p)); err != nil {
			return fmt.Errorf("failed to index product %s: %w", p.ID, err)
		}
	}
	return s.index.Batch(batch)
}

func toSearchDoc(p *Product) searchDoc {
	return searchDoc{
		Name:           p.Name,
		Brand:          p.Brand,
		NormalizedName: p.NormalizedName,
		PhoneticKey:    p.PhoneticKey,
		Terms:          strings.Join(p.SearchTerms, " "),
	}
}

func (s *MemoryStore) FindExact(ctx context.Context, text string) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lower := strings.ToLower(text)
	var out []Product
	for _, p := range s.products {
		if strings.ToLower(p.Name) == lower ||
			(p.Brand != "" && strings.ToLower(p.Brand) == lower) ||
			p.NormalizedName == lower {
			out = append(out, *p)
		}
	}
	sortByUsage(out)
	return out, nil
}

func (s *MemoryStore) SearchBrand(ctx context.Context, brand string) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lower := strings.ToLower(brand)
	var out []Product
	for _, p := range s.products {
		if strings.ToLower(p.Brand) == lower {
			out = append(out, *p)
		}
	}
	sortByUsage(out)
	return out, nil
}

func (s *MemoryStore) SearchSimilar(ctx context.Context, text string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 50
	}

	matchQuery := bleve.NewMatchQuery(text)
	matchQuery.SetFuzziness(2)
	searchRequest := bleve.NewSearchRequestOptions(matchQuery, limit, 0, false)

	s.mu.RLock()
	defer s.mu.RUnlock()
	searchResults, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make([]Product, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			continue
		}
		if p, ok := s.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *MemoryStore) SearchPhonetic(ctx context.Context, keys []string) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[strings.ToUpper(k)] = struct{}{}
	}
	var out []Product
	for _, p := range s.products {
		if _, ok := want[p.PhoneticKey]; ok && p.PhoneticKey != "" {
			out = append(out, *p)
		}
	}
	sortByUsage(out)
	return out, nil
}

func (s *MemoryStore) SearchLocationAlias(ctx context.Context, locationID uuid.UUID, name string) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byAlias, ok := s.aliases[locationID]
	if !ok {
		return nil, nil
	}
	alias, ok := byAlias[strings.ToLower(name)]
	if !ok {
		return nil, nil
	}
	p, ok := s.products[alias.ProductID]
	if !ok {
		return nil, nil
	}
	return []Product{*p}, nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(p)
}

func (s *MemoryStore) insertLocked(p *Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	copied := *p
	s.products[p.ID] = &copied
	return s.index.Index(p.ID.String(), toSearchDoc(p))
}

func (s *MemoryStore) CreateWithMapping(ctx context.Context, p *Product, m *Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insertLocked(p); err != nil {
		return err
	}
	m.CanonicalProductID = p.ID
	s.mappings[mappingKey{m.SupplierID, m.SupplierCode}] = *m
	return nil
}

func (s *MemoryStore) UpsertMapping(ctx context.Context, m *Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[mappingKey{m.SupplierID, m.SupplierCode}] = *m
	return nil
}

// GetMapping looks up the mapping for a supplier code. Test and CLI helper.
func (s *MemoryStore) GetMapping(supplierID uuid.UUID, code string) (Mapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mappings[mappingKey{supplierID, code}]
	return m, ok
}

func (s *MemoryStore) IncrementUsage(ctx context.Context, productID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return ErrNotFound
	}
	p.UsageCount++
	now := time.Now()
	p.LastUsed = &now
	return nil
}

func (s *MemoryStore) RecordAlias(ctx context.Context, alias LocationAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byAlias, ok := s.aliases[alias.LocationID]
	if !ok {
		byAlias = make(map[string]LocationAlias)
		s.aliases[alias.LocationID] = byAlias
	}
	key := strings.ToLower(alias.Alias)
	existing, ok := byAlias[key]
	if ok {
		existing.ProductID = alias.ProductID
		existing.UseCount++
		byAlias[key] = existing
		return nil
	}
	alias.Alias = key
	alias.UseCount = 1
	byAlias[key] = alias
	return nil
}

// sortByUsage orders candidates by usage, then name and ID so usage ties do
// not inherit randomized map iteration order.
func sortByUsage(products []Product) {
	sort.Slice(products, func(i, j int) bool {
		a, b := &products[i], &products[j]
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID.String() < b.ID.String()
	})
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)
