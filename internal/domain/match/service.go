package match

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stockflow-app/invoice-ingest/internal/domain/parse"
)

// ItemResult pairs one parsed line item with its resolution. BestMatchID is
// nil unless a best candidate exists.
type ItemResult struct {
	Item        parse.LineItem
	Query       Query
	BestMatchID *uuid.UUID
	Resolution  *Resolution
}

// Matcher resolves a whole invoice's line items. Items are matched
// concurrently up to a bounded limit so the catalog store is not saturated;
// results are reassembled in original source order regardless of completion
// order.
type Matcher struct {
	engine      *Engine
	scorer      *Scorer
	gate        *Gate
	concurrency int
	itemTimeout time.Duration
	logger      *slog.Logger
}

// NewMatcher wires the engine, scorer and gate into an invoice-level
// matching service.
func NewMatcher(engine *Engine, scorer *Scorer, gate *Gate, concurrency int, itemTimeout time.Duration, logger *slog.Logger) *Matcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if itemTimeout <= 0 {
		itemTimeout = 5 * time.Second
	}
	return &Matcher{
		engine:      engine,
		scorer:      scorer,
		gate:        gate,
		concurrency: concurrency,
		itemTimeout: itemTimeout,
		logger:      logger,
	}
}

// MatchItems resolves every line item. A per-item timeout or store failure
// routes that single item to manual review with zero candidates; sibling
// items are unaffected.
func (m *Matcher) MatchItems(ctx context.Context, items []parse.LineItem, locationID *uuid.UUID) []ItemResult {
	results := make([]ItemResult, len(items))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < m.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = m.matchOne(ctx, items[idx], locationID)
			}
		}()
	}

	for i := range items {
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			m.fillCancelled(items, results)
			return results
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

// MatchOne resolves a single line item.
func (m *Matcher) MatchOne(ctx context.Context, item parse.LineItem, locationID *uuid.UUID) ItemResult {
	return m.matchOne(ctx, item, locationID)
}

func (m *Matcher) matchOne(parent context.Context, item parse.LineItem, locationID *uuid.UUID) ItemResult {
	q := NormalizeQuery(item.Name)
	result := ItemResult{Item: item, Query: q}

	ctx, cancel := context.WithTimeout(parent, m.itemTimeout)
	defer cancel()

	candidates, err := m.engine.Resolve(ctx, q, locationID)
	if err != nil {
		// Timed-out or unreachable catalog: zero candidates, manual
		// review, never left hanging.
		m.logger.Warn("match unavailable for line item",
			slog.Int("source_index", item.SourceIndex),
			slog.String("name", item.Name),
			slog.Any("error", err))
		result.Resolution = m.gate.Unavailable()
		return result
	}

	ranked := m.scorer.Rank(q, candidates)
	result.Resolution = m.gate.Decide(ranked)
	if result.Resolution.Best != nil {
		id := result.Resolution.Best.Product.ID
		result.BestMatchID = &id
	}
	return result
}

func (m *Matcher) fillCancelled(items []parse.LineItem, results []ItemResult) {
	for i := range results {
		if results[i].Resolution == nil {
			results[i] = ItemResult{
				Item:       items[i],
				Query:      NormalizeQuery(items[i].Name),
				Resolution: m.gate.Unavailable(),
			}
		}
	}
}
