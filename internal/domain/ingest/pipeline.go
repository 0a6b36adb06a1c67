// Package ingest orchestrates the document pipeline: text acquisition,
// segmentation, header extraction, line-item parsing and identity
// resolution, plus invoice-level persistence and confirmation.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stockflow-app/invoice-ingest/internal/domain/catalog"
	"github.com/stockflow-app/invoice-ingest/internal/domain/extract"
	"github.com/stockflow-app/invoice-ingest/internal/domain/match"
	"github.com/stockflow-app/invoice-ingest/internal/domain/parse"
)

// Report is the outcome of one document run. Line-level problems are
// diagnostics; only upstream extraction failure aborts a document.
type Report struct {
	Header    extract.InvoiceHeader
	Items     []match.ItemResult
	Discarded int
	Skipped   int

	// NoAnchorLines warns that zero candidate product lines parsed; header
	// extraction may still have succeeded.
	NoAnchorLines bool
}

// Pipeline runs documents for one supplier profile end to end.
type Pipeline struct {
	source   extract.TextSource
	registry *parse.Registry
	matcher  *match.Matcher
	logger   *slog.Logger
}

// NewPipeline wires the document pipeline. The matcher already carries the
// catalog store handle.
func NewPipeline(source extract.TextSource, registry *parse.Registry, matcher *match.Matcher, logger *slog.Logger) *Pipeline {
	return &Pipeline{source: source, registry: registry, matcher: matcher, logger: logger}
}

// Run processes one document for the given supplier. Extraction failure is
// fatal for the document; everything downstream degrades per line.
func (p *Pipeline) Run(ctx context.Context, path string, supplierID uuid.UUID, locationID *uuid.UUID) (*Report, error) {
	profile := p.registry.Get(supplierID)
	if profile == nil {
		return nil, fmt.Errorf("no supplier profile registered for %s", supplierID)
	}

	text, err := p.source.Extract(path)
	if err != nil {
		return nil, err
	}

	lines := extract.Segment(text)
	header := extract.ExtractHeader(lines)

	parser := parse.NewParser(profile, p.logger)
	parsed := parser.ParseLines(lines)

	report := &Report{
		Header:    header,
		Discarded: parsed.Discarded,
		Skipped:   parsed.Skipped,
	}
	if len(parsed.Items) == 0 {
		report.NoAnchorLines = true
		p.logger.Warn("no anchor lines found",
			slog.String("path", path),
			slog.String("profile", profile.Name))
		return report, nil
	}

	report.Items = p.matcher.MatchItems(ctx, parsed.Items, locationID)
	return report, nil
}

// Confirmer applies confirmed selections to the catalog: usage counters,
// supplier mappings and location aliases.
type Confirmer struct {
	store   catalog.Store
	mutator *catalog.Mutator
	logger  *slog.Logger
}

// NewConfirmer creates the confirmation flow over a catalog store.
func NewConfirmer(store catalog.Store, mutator *catalog.Mutator, logger *slog.Logger) *Confirmer {
	return &Confirmer{store: store, mutator: mutator, logger: logger}
}

// Confirm finalizes one line item against a chosen product: transitions the
// resolution, bumps the product's usage atomically, upserts the supplier
// mapping and records the location alias for future matching.
func (c *Confirmer) Confirm(ctx context.Context, r *match.ItemResult, supplierID uuid.UUID, locationID *uuid.UUID, productID uuid.UUID) error {
	ev, err := r.Resolution.Confirm(productID)
	if err != nil {
		return err
	}
	if ev != nil {
		c.logger.Info("auto-match overridden",
			slog.Int("source_index", r.Item.SourceIndex),
			slog.String("product_id", productID.String()))
	}

	if err := c.store.IncrementUsage(ctx, productID); err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}

	if r.Item.Code != nil {
		confidence := 0
		if r.Resolution.Best != nil {
			confidence = r.Resolution.Best.Confidence
		}
		mapping := catalog.Mapping{
			SupplierID:         supplierID,
			SupplierCode:       *r.Item.Code,
			CanonicalProductID: productID,
			Confidence:         confidence,
			AutoMatched:        r.Resolution.AutoMatched && ev == nil,
			Verified:           true,
		}
		if err := c.store.UpsertMapping(ctx, &mapping); err != nil {
			return fmt.Errorf("upsert mapping: %w", err)
		}
	}

	if locationID != nil {
		alias := catalog.LocationAlias{
			LocationID: *locationID,
			Alias:      r.Query.Text,
			ProductID:  productID,
		}
		if err := c.store.RecordAlias(ctx, alias); err != nil {
			return fmt.Errorf("record alias: %w", err)
		}
	}
	return nil
}

// CreateNew routes a rejected or unmatched line item to catalog mutation:
// a new canonical product plus its supplier mapping, written atomically.
func (c *Confirmer) CreateNew(ctx context.Context, r *match.ItemResult, supplierID uuid.UUID) (*catalog.Product, error) {
	code := ""
	if r.Item.Code != nil {
		code = *r.Item.Code
	}
	unitSize := ""
	if r.Item.UnitSize != nil {
		unitSize = *r.Item.UnitSize
	}

	p, err := c.mutator.CreateFromLineItem(ctx, supplierID, code, r.Item.Name, unitSize)
	if err != nil {
		return nil, err
	}

	if _, err := r.Resolution.Confirm(p.ID); err != nil {
		return nil, err
	}
	return p, nil
}
