package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow-app/invoice-ingest/internal/domain/catalog"
	"github.com/stockflow-app/invoice-ingest/internal/domain/extract"
	"github.com/stockflow-app/invoice-ingest/internal/domain/match"
	"github.com/stockflow-app/invoice-ingest/internal/domain/parse"
)

const sampleInvoice = `ACME Beverages Ltd
Invoice No: INV-2024-0042
Invoice Date: 15/03/24

063724	Coke Zero	24 330ml	1	10.95	10.95	59.4%	1.35
063725	Totally Unknown Thing	12 500ml	1	7.20

Subtotal	18.15
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeInvoice(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoice.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestPipeline(t *testing.T, store catalog.Store) (*Pipeline, uuid.UUID) {
	t.Helper()

	supplierID := uuid.New()
	registry := parse.NewRegistry()
	require.NoError(t, registry.Register(&parse.Profile{
		SupplierID: supplierID,
		Name:       "acme",
		Anchor:     regexp.MustCompile(`^(\d{6})\s+`),
		Delimiter:  parse.TabRun,
	}))

	engine := match.NewEngine(store, match.DefaultSimilarityWeights(), nil, nil, true, testLogger())
	matcher := match.NewMatcher(engine, match.NewScorer(), match.NewGate(80, 1, 5), 4, time.Second, testLogger())
	return NewPipeline(extract.FileSource{}, registry, matcher, testLogger()), supplierID
}

func seededCatalog(t *testing.T) *catalog.MemoryStore {
	t.Helper()
	store, err := catalog.NewMemoryStore()
	require.NoError(t, err)
	p := catalog.Product{ID: uuid.New(), Name: "Coke Zero", Brand: "Coca-Cola", UnitSize: "330ml"}
	p.Derive()
	require.NoError(t, store.Load([]catalog.Product{p}))
	return store
}

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()
	store := seededCatalog(t)
	pipeline, supplierID := newTestPipeline(t, store)
	path := writeInvoice(t, sampleInvoice)

	report, err := pipeline.Run(ctx, path, supplierID, nil)
	require.NoError(t, err)

	t.Run("header fields extracted", func(t *testing.T) {
		require.NotNil(t, report.Header.SupplierName)
		assert.Equal(t, "ACME Beverages", *report.Header.SupplierName)
		require.NotNil(t, report.Header.InvoiceNumber)
		assert.Equal(t, "INV-2024-0042", *report.Header.InvoiceNumber)
		require.NotNil(t, report.Header.InvoiceDate)
		assert.Equal(t, 2024, report.Header.InvoiceDate.Year())
	})

	t.Run("known product auto-matches", func(t *testing.T) {
		require.Len(t, report.Items, 2)
		first := report.Items[0]
		assert.Equal(t, "Coke Zero", first.Item.Name)
		assert.Equal(t, match.StateAutoMatched, first.Resolution.State)
		require.NotNil(t, first.BestMatchID)
	})

	t.Run("unknown product routes to creation", func(t *testing.T) {
		second := report.Items[1]
		assert.Equal(t, match.StateNewProduct, second.Resolution.State)
		assert.Nil(t, second.BestMatchID)
	})

	t.Run("noise lines counted not failed", func(t *testing.T) {
		assert.False(t, report.NoAnchorLines)
		assert.Greater(t, report.Discarded, 0)
	})
}

func TestPipeline_Run_NoAnchorLines(t *testing.T) {
	store := seededCatalog(t)
	pipeline, supplierID := newTestPipeline(t, store)
	path := writeInvoice(t, "ACME Beverages Ltd\nInvoice No: INV-1\njust prose, no product lines\n")

	report, err := pipeline.Run(context.Background(), path, supplierID, nil)
	require.NoError(t, err)
	assert.True(t, report.NoAnchorLines)
	assert.Empty(t, report.Items)
	require.NotNil(t, report.Header.InvoiceNumber)
	assert.Equal(t, "INV-1", *report.Header.InvoiceNumber)
}

func TestPipeline_Run_UnknownSupplier(t *testing.T) {
	store := seededCatalog(t)
	pipeline, _ := newTestPipeline(t, store)
	path := writeInvoice(t, sampleInvoice)

	_, err := pipeline.Run(context.Background(), path, uuid.New(), nil)
	assert.Error(t, err)
}

func TestPipeline_Run_MissingFile(t *testing.T) {
	store := seededCatalog(t)
	pipeline, supplierID := newTestPipeline(t, store)

	_, err := pipeline.Run(context.Background(), filepath.Join(t.TempDir(), "absent.txt"), supplierID, nil)
	require.Error(t, err)
	var extractErr *extract.ExtractionError
	assert.ErrorAs(t, err, &extractErr)
}

func TestConfirmer(t *testing.T) {
	ctx := context.Background()
	store := seededCatalog(t)
	pipeline, supplierID := newTestPipeline(t, store)
	path := writeInvoice(t, sampleInvoice)

	report, err := pipeline.Run(ctx, path, supplierID, nil)
	require.NoError(t, err)
	require.Len(t, report.Items, 2)

	confirmer := NewConfirmer(store, catalog.NewMutator(store, catalog.NewDeriver(nil)), testLogger())

	t.Run("confirming bumps usage and writes the mapping", func(t *testing.T) {
		item := &report.Items[0]
		productID := *item.BestMatchID
		locationID := uuid.New()

		require.NoError(t, confirmer.Confirm(ctx, item, supplierID, &locationID, productID))

		p, err := store.GetProduct(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 1, p.UsageCount)

		m, ok := store.GetMapping(supplierID, *item.Item.Code)
		require.True(t, ok)
		assert.Equal(t, productID, m.CanonicalProductID)

		aliased, err := store.SearchLocationAlias(ctx, locationID, item.Query.Text)
		require.NoError(t, err)
		require.Len(t, aliased, 1)
		assert.Equal(t, productID, aliased[0].ID)
	})

	t.Run("new product creation maps the supplier code", func(t *testing.T) {
		item := &report.Items[1]
		created, err := confirmer.CreateNew(ctx, item, supplierID)
		require.NoError(t, err)
		require.NotNil(t, created)

		m, ok := store.GetMapping(supplierID, *item.Item.Code)
		require.True(t, ok)
		assert.Equal(t, created.ID, m.CanonicalProductID)
	})
}
