// Package e2etest provides end-to-end integration tests for the invoice
// ingestion flow: document text to parsed line items to catalog decisions.
package e2etest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow-app/invoice-ingest/internal/domain/catalog"
	"github.com/stockflow-app/invoice-ingest/internal/domain/extract"
	"github.com/stockflow-app/invoice-ingest/internal/domain/ingest"
	"github.com/stockflow-app/invoice-ingest/internal/domain/match"
	"github.com/stockflow-app/invoice-ingest/internal/domain/parse"
)

const seedCSV = `name,brand,category,subcategory,unit_size,case_size
Coke Zero,Coca-Cola,soft-drinks,can,330ml,24
House Chardonnay,Vinters,wine,bottle,750ml,6
Smirnoff Red Label Vodka,Smirnoff,spirits,bottle,70cl,6
Guinness Draught,Guinness,beer,keg,50l,1
`

const invoiceText = `ACME Beverages Ltd
Invoice No: INV-2024-0042
Invoice Date: 15/03/24
Account Ref: ACC-991

063724	Coke Zero	24 330ml	1	10.95	10.95	59.4%	1.35
063801	Shar Don Ay 750ml	6 750ml	2	38.40
063950	Totally New Craft Soda	12 330ml	1	9.60

Subtotal	86.85
VAT @ 20%	17.37
`

type harness struct {
	store      *catalog.MemoryStore
	pipeline   *ingest.Pipeline
	confirmer  *ingest.Confirmer
	supplierID uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := catalog.NewMemoryStore()
	require.NoError(t, err)
	products, err := catalog.LoadCSV(strings.NewReader(seedCSV))
	require.NoError(t, err)
	require.NoError(t, store.Load(products))

	supplierID := uuid.New()
	registry := parse.NewRegistry()
	require.NoError(t, registry.Register(&parse.Profile{
		SupplierID: supplierID,
		Name:       "acme",
		Anchor:     regexp.MustCompile(`^(\d{6})\s+`),
		Delimiter:  parse.TabRun,
		Brands:     []string{"Coca-Cola", "Smirnoff", "Guinness"},
	}))

	engine := match.NewEngine(store, match.DefaultSimilarityWeights(),
		[]string{"Coca-Cola", "Smirnoff", "Guinness"}, nil, true, logger)
	matcher := match.NewMatcher(engine, match.NewScorer(), match.NewGate(80, 1, 5), 4, 2*time.Second, logger)

	return &harness{
		store:      store,
		pipeline:   ingest.NewPipeline(extract.FileSource{}, registry, matcher, logger),
		confirmer:  ingest.NewConfirmer(store, catalog.NewMutator(store, catalog.NewDeriver(nil)), logger),
		supplierID: supplierID,
	}
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoice.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngest_FullFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	path := writeDoc(t, invoiceText)
	locationID := uuid.New()

	report, err := h.pipeline.Run(ctx, path, h.supplierID, &locationID)
	require.NoError(t, err)
	require.Len(t, report.Items, 3)

	t.Run("header", func(t *testing.T) {
		require.NotNil(t, report.Header.InvoiceNumber)
		assert.Equal(t, "INV-2024-0042", *report.Header.InvoiceNumber)
		require.NotNil(t, report.Header.InvoiceDate)
		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *report.Header.InvoiceDate)
		require.NotNil(t, report.Header.CustomerRef)
		assert.Equal(t, "ACC-991", *report.Header.CustomerRef)
	})

	t.Run("exact catalog name auto-matches", func(t *testing.T) {
		item := report.Items[0]
		assert.Equal(t, match.StateAutoMatched, item.Resolution.State)
		require.NotNil(t, item.BestMatchID)
		p, err := h.store.GetProduct(ctx, *item.BestMatchID)
		require.NoError(t, err)
		assert.Equal(t, "Coke Zero", p.Name)
	})

	t.Run("garbled transcription still finds the product", func(t *testing.T) {
		item := report.Items[1]
		assert.Equal(t, "chardonnay", item.Query.Text)
		require.NotNil(t, item.Resolution.Best)
		assert.Equal(t, "House Chardonnay", item.Resolution.Best.Product.Name)
	})

	t.Run("genuinely new product routes to creation", func(t *testing.T) {
		item := report.Items[2]
		assert.Equal(t, match.StateNewProduct, item.Resolution.State)
	})

	t.Run("confirmations feed future matching", func(t *testing.T) {
		item := &report.Items[0]
		productID := *item.BestMatchID
		require.NoError(t, h.confirmer.Confirm(ctx, item, h.supplierID, &locationID, productID))

		p, err := h.store.GetProduct(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, 1, p.UsageCount)

		m, ok := h.store.GetMapping(h.supplierID, "063724")
		require.True(t, ok)
		assert.Equal(t, productID, m.CanonicalProductID)

		aliased, err := h.store.SearchLocationAlias(ctx, locationID, item.Query.Text)
		require.NoError(t, err)
		require.Len(t, aliased, 1)
	})

	t.Run("new product creation is immediately matchable", func(t *testing.T) {
		item := &report.Items[2]
		created, err := h.confirmer.CreateNew(ctx, item, h.supplierID)
		require.NoError(t, err)

		rerun, err := h.pipeline.Run(ctx, writeDoc(t, invoiceText), h.supplierID, &locationID)
		require.NoError(t, err)
		require.Len(t, rerun.Items, 3)
		require.NotNil(t, rerun.Items[2].BestMatchID)
		assert.Equal(t, created.ID, *rerun.Items[2].BestMatchID)
		assert.Equal(t, match.StateAutoMatched, rerun.Items[2].Resolution.State)
	})
}

func TestIngest_GarbledNameWithMatchingSizeScoresHigh(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	chardonnay := catalog.Product{Name: "Chardonnay", Brand: "Vinters", Category: "wine", UnitSize: "750ml"}
	chardonnay.Derive()
	require.NoError(t, h.store.CreateProduct(ctx, &chardonnay))

	doc := `ACME Beverages Ltd
Invoice No: INV-2024-0099
Invoice Date: 16/03/24

063801	Shar Don Ay 750ml	6 750ml	2	38.40
`
	report, err := h.pipeline.Run(ctx, writeDoc(t, doc), h.supplierID, nil)
	require.NoError(t, err)
	require.Len(t, report.Items, 1)

	item := report.Items[0]
	assert.Equal(t, "chardonnay", item.Query.Text)
	assert.Equal(t, "750ml", item.Query.Size)
	assert.Equal(t, match.StateAutoMatched, item.Resolution.State)
	require.NotNil(t, item.Resolution.Best)
	assert.Equal(t, "Chardonnay", item.Resolution.Best.Product.Name)
	assert.GreaterOrEqual(t, item.Resolution.Best.Confidence, 95)
}

func TestIngest_ReprocessingIsDeterministic(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	path := writeDoc(t, invoiceText)

	first, err := h.pipeline.Run(ctx, path, h.supplierID, nil)
	require.NoError(t, err)
	second, err := h.pipeline.Run(ctx, path, h.supplierID, nil)
	require.NoError(t, err)

	require.Equal(t, len(first.Items), len(second.Items))
	for i := range first.Items {
		assert.Equal(t, first.Items[i].Resolution.State, second.Items[i].Resolution.State, "item %d", i)
		assert.Equal(t, first.Items[i].BestMatchID, second.Items[i].BestMatchID, "item %d", i)
		if first.Items[i].Resolution.Best != nil {
			assert.Equal(t, first.Items[i].Resolution.Best.Confidence,
				second.Items[i].Resolution.Best.Confidence, "item %d", i)
		}
	}
}
