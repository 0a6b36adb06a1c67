package match

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow-app/invoice-ingest/internal/domain/catalog"
)

// stubStore implements catalog.Store with fixed per-strategy results so
// engine behavior can be tested without a real catalog.
type stubStore struct {
	exact    []catalog.Product
	brand    []catalog.Product
	similar  []catalog.Product
	phonetic []catalog.Product
	aliased  []catalog.Product

	exactErr   error
	similarErr error
}

func (s *stubStore) FindExact(ctx context.Context, text string) ([]catalog.Product, error) {
	return s.exact, s.exactErr
}

func (s *stubStore) SearchBrand(ctx context.Context, brand string) ([]catalog.Product, error) {
	return s.brand, nil
}

func (s *stubStore) SearchSimilar(ctx context.Context, text string, limit int) ([]catalog.Product, error) {
	return s.similar, s.similarErr
}

func (s *stubStore) SearchPhonetic(ctx context.Context, keys []string) ([]catalog.Product, error) {
	return s.phonetic, nil
}

func (s *stubStore) SearchLocationAlias(ctx context.Context, locationID uuid.UUID, name string) ([]catalog.Product, error) {
	return s.aliased, nil
}

func (s *stubStore) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return nil, catalog.ErrNotFound
}

func (s *stubStore) CreateProduct(ctx context.Context, p *catalog.Product) error { return nil }
func (s *stubStore) CreateWithMapping(ctx context.Context, p *catalog.Product, m *catalog.Mapping) error {
	return nil
}
func (s *stubStore) UpsertMapping(ctx context.Context, m *catalog.Mapping) error { return nil }
func (s *stubStore) IncrementUsage(ctx context.Context, id uuid.UUID) error      { return nil }
func (s *stubStore) RecordAlias(ctx context.Context, a catalog.LocationAlias) error {
	return nil
}

var _ catalog.Store = (*stubStore)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProduct(name, brand string) catalog.Product {
	p := catalog.Product{ID: uuid.New(), Name: name, Brand: brand}
	p.Derive()
	return p
}

func newTestEngine(store catalog.Store, brands []string) *Engine {
	return NewEngine(store, DefaultSimilarityWeights(), brands, nil, true, testLogger())
}

func TestEngine_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("exact hit carries full base confidence", func(t *testing.T) {
		p := testProduct("Coke Zero", "Coca-Cola")
		engine := newTestEngine(&stubStore{exact: []catalog.Product{p}}, nil)

		got, err := engine.Resolve(ctx, NormalizeQuery("Coke Zero"), nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, MatchExact, got[0].MatchType)
		assert.Equal(t, 100, got[0].BaseConfidence)
	})

	t.Run("merge keeps first occurrence per product", func(t *testing.T) {
		p := testProduct("Guinness Draught", "Guinness")
		store := &stubStore{
			exact:    []catalog.Product{p},
			phonetic: []catalog.Product{p},
			similar:  []catalog.Product{p},
		}
		engine := newTestEngine(store, nil)

		got, err := engine.Resolve(ctx, NormalizeQuery("Guinness Draught"), nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, MatchExact, got[0].MatchType)
	})

	t.Run("strategy results merge in descending base confidence order", func(t *testing.T) {
		exact := testProduct("Coke Zero", "Coca-Cola")
		phon := testProduct("Coke Classic", "Coca-Cola")
		store := &stubStore{
			exact:    []catalog.Product{exact},
			phonetic: []catalog.Product{phon},
		}
		engine := newTestEngine(store, nil)

		got, err := engine.Resolve(ctx, NormalizeQuery("Coke Zero"), nil)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, MatchExact, got[0].MatchType)
		assert.Equal(t, MatchPhonetic, got[1].MatchType)
	})

	t.Run("any failing strategy fails the resolution", func(t *testing.T) {
		store := &stubStore{similarErr: errors.New("connection refused")}
		engine := newTestEngine(store, nil)

		_, err := engine.Resolve(ctx, NormalizeQuery("anything"), nil)
		assert.Error(t, err)
	})

	t.Run("alias strategy is inert without a location", func(t *testing.T) {
		p := testProduct("House Red", "")
		engine := newTestEngine(&stubStore{aliased: []catalog.Product{p}}, nil)

		got, err := engine.Resolve(ctx, NormalizeQuery("house red"), nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("alias strategy scores 90 with a location", func(t *testing.T) {
		p := testProduct("House Red", "")
		engine := newTestEngine(&stubStore{aliased: []catalog.Product{p}}, nil)
		loc := uuid.New()

		got, err := engine.Resolve(ctx, NormalizeQuery("the usual red"), &loc)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, MatchLocationAlias, got[0].MatchType)
		assert.Equal(t, 90, got[0].BaseConfidence)
	})
}

func TestEngine_BrandCategory(t *testing.T) {
	ctx := context.Background()

	smirnoff := testProduct("Smirnoff Red Label Vodka", "Smirnoff")
	smirnoff.Category = "spirits"
	smirnoff.UnitSize = "70cl"

	store := &stubStore{brand: []catalog.Product{smirnoff}}
	engine := newTestEngine(store, []string{"Smirnoff"})

	t.Run("brand word plus category word matches at 85", func(t *testing.T) {
		got, err := engine.Resolve(ctx, NormalizeQuery("Smirnoff spirits"), nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, MatchBrandCategory, got[0].MatchType)
		assert.Equal(t, 85, got[0].BaseConfidence)
	})

	t.Run("brand word plus size substring matches", func(t *testing.T) {
		got, err := engine.Resolve(ctx, NormalizeQuery("Smirnoff Original 70cl"), nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, MatchBrandCategory, got[0].MatchType)
	})

	t.Run("brand word alone is not enough", func(t *testing.T) {
		got, err := engine.Resolve(ctx, NormalizeQuery("Smirnoff"), nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("brand products without category or size evidence are excluded", func(t *testing.T) {
		got, err := engine.Resolve(ctx, NormalizeQuery("Smirnoff something"), nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestEngine_PhoneticToggle(t *testing.T) {
	ctx := context.Background()
	p := testProduct("Chardonnay", "")
	store := &stubStore{phonetic: []catalog.Product{p}}

	t.Run("enabled", func(t *testing.T) {
		engine := NewEngine(store, DefaultSimilarityWeights(), nil, nil, true, testLogger())
		got, err := engine.Resolve(ctx, NormalizeQuery("shardonay"), nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, MatchPhonetic, got[0].MatchType)
		assert.Equal(t, 70, got[0].BaseConfidence)
	})

	t.Run("disabled contributes nothing", func(t *testing.T) {
		engine := NewEngine(store, DefaultSimilarityWeights(), nil, nil, false, testLogger())
		got, err := engine.Resolve(ctx, NormalizeQuery("shardonay"), nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestEngine_Approximate(t *testing.T) {
	ctx := context.Background()

	t.Run("close names score above the floor", func(t *testing.T) {
		p := testProduct("Pinot Grigio", "")
		engine := newTestEngine(&stubStore{similar: []catalog.Product{p}}, nil)

		got, err := engine.Resolve(ctx, NormalizeQuery("Pinot Grigio 750ml"), nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, MatchApproximate, got[0].MatchType)
		assert.GreaterOrEqual(t, got[0].BaseConfidence, 30)
		assert.LessOrEqual(t, got[0].BaseConfidence, 100)
	})

	t.Run("unrelated names fall below the floor", func(t *testing.T) {
		p := testProduct("Industrial Bleach Concentrate", "KleenCo")
		engine := newTestEngine(&stubStore{similar: []catalog.Product{p}}, nil)

		got, err := engine.Resolve(ctx, NormalizeQuery("gin"), nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestWeightedSimilarity_Identity(t *testing.T) {
	p := testProduct("Coke Zero", "Coca-Cola")
	engine := newTestEngine(&stubStore{}, nil)
	q := NormalizeQuery("Coke Zero")

	score := engine.weightedSimilarity(q, p)
	assert.Greater(t, score, 60)
	assert.LessOrEqual(t, score, 100)
}
