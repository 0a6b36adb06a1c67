package match

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/stockflow-app/invoice-ingest/internal/domain/catalog"
)

// Match types, one per search strategy.
const (
	MatchExact         = "exact"
	MatchLocationAlias = "location_alias"
	MatchBrandCategory = "brand_category"
	MatchPhonetic      = "phonetic"
	MatchApproximate   = "approximate"
)

// Base confidence per strategy.
const (
	confExact         = 100
	confLocationAlias = 90
	confBrandCategory = 85
	confPhonetic      = 70
)

// approximateFloor filters weak similarity candidates.
const approximateFloor = 30

// Candidate is one possible canonical product for a line item.
type Candidate struct {
	Product        catalog.Product
	MatchType      string
	BaseConfidence int
	Confidence     int
}

// SimilarityWeights splits the approximate-similarity score across signals.
// The four weights must sum to 1.0.
type SimilarityWeights struct {
	NormalizedName float64
	RawName        float64
	Brand          float64
	TermOverlap    float64
}

// DefaultSimilarityWeights mirror the documented 40/30/20/10 split.
func DefaultSimilarityWeights() SimilarityWeights {
	return SimilarityWeights{NormalizedName: 0.4, RawName: 0.3, Brand: 0.2, TermOverlap: 0.1}
}

// Engine fans a normalized query out to the search strategies and merges
// their candidate sets.
type Engine struct {
	store           catalog.Store
	weights         SimilarityWeights
	phoneticEnabled bool
	brands          []string
	categories      []string
	logger          *slog.Logger
}

// NewEngine creates a resolution engine over the given catalog store. The
// brand and category tables come from the supplier profile. Phonetic
// matching is pluggable; when disabled its strategy contributes nothing.
func NewEngine(store catalog.Store, weights SimilarityWeights, brands, categories []string, phoneticEnabled bool, logger *slog.Logger) *Engine {
	return &Engine{
		store:           store,
		weights:         weights,
		phoneticEnabled: phoneticEnabled,
		brands:          brands,
		categories:      categories,
		logger:          logger,
	}
}

// Resolve runs all strategies concurrently over the same query and merges
// the results. The merge waits for every strategy (join barrier) so ranking
// stays deterministic; candidate sets are then joined by product id with
// the first occurrence kept, in fixed strategy order of descending base
// confidence.
func (e *Engine) Resolve(ctx context.Context, q Query, locationID *uuid.UUID) ([]Candidate, error) {
	type strategyFn func(context.Context, Query) ([]Candidate, error)

	strategies := []struct {
		name string
		run  strategyFn
	}{
		{MatchExact, e.searchExact},
		{MatchLocationAlias, func(ctx context.Context, q Query) ([]Candidate, error) {
			return e.searchLocationAlias(ctx, q, locationID)
		}},
		{MatchBrandCategory, e.searchBrandCategory},
		{MatchPhonetic, e.searchPhonetic},
		{MatchApproximate, e.searchApproximate},
	}

	results := make([][]Candidate, len(strategies))
	errs := make([]error, len(strategies))

	var wg sync.WaitGroup
	for i, s := range strategies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.run(ctx, q)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			// One failing strategy fails the whole resolution; the caller
			// routes the line item to manual review.
			e.logger.Warn("search strategy failed",
				slog.String("strategy", strategies[i].name),
				slog.String("query", q.Text),
				slog.Any("error", err))
			return nil, err
		}
	}

	seen := make(map[uuid.UUID]struct{})
	var merged []Candidate
	for _, set := range results {
		for _, c := range set {
			if _, ok := seen[c.Product.ID]; ok {
				continue
			}
			seen[c.Product.ID] = struct{}{}
			merged = append(merged, c)
		}
	}
	return merged, nil
}

func (e *Engine) searchExact(ctx context.Context, q Query) ([]Candidate, error) {
	products, err := e.store.FindExact(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	return asCandidates(products, MatchExact, confExact), nil
}

func (e *Engine) searchLocationAlias(ctx context.Context, q Query, locationID *uuid.UUID) ([]Candidate, error) {
	if locationID == nil {
		return nil, nil
	}
	products, err := e.store.SearchLocationAlias(ctx, *locationID, q.Text)
	if err != nil {
		return nil, err
	}
	return asCandidates(products, MatchLocationAlias, confLocationAlias), nil
}

// searchBrandCategory requires at least two query words: a known brand word
// plus either a category/subcategory word or a size substring match.
func (e *Engine) searchBrandCategory(ctx context.Context, q Query) ([]Candidate, error) {
	if len(q.Words) < 2 {
		return nil, nil
	}
	brand := ""
	for _, w := range q.Words {
		for _, b := range e.brands {
			if strings.EqualFold(w, b) {
				brand = b
				break
			}
		}
		if brand != "" {
			break
		}
	}
	if brand == "" {
		return nil, nil
	}

	products, err := e.store.SearchBrand(ctx, brand)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, p := range products {
		if e.categoryWordMatch(q, p) || sizeSubstringMatch(q, p) {
			out = append(out, Candidate{Product: p, MatchType: MatchBrandCategory, BaseConfidence: confBrandCategory, Confidence: confBrandCategory})
		}
	}
	return out, nil
}

func (e *Engine) categoryWordMatch(q Query, p catalog.Product) bool {
	for _, w := range q.Words {
		if w == "" {
			continue
		}
		if strings.EqualFold(w, p.Category) || strings.EqualFold(w, p.Subcategory) {
			return true
		}
	}
	return false
}

func sizeSubstringMatch(q Query, p catalog.Product) bool {
	if q.Size == "" {
		return false
	}
	size := strings.ToLower(q.Size)
	return strings.Contains(strings.ToLower(p.UnitSize), size) ||
		strings.Contains(p.NormalizedName, size)
}

func (e *Engine) searchPhonetic(ctx context.Context, q Query) ([]Candidate, error) {
	if !e.phoneticEnabled || len(q.PhoneticKeys) == 0 {
		return nil, nil
	}
	products, err := e.store.SearchPhonetic(ctx, q.PhoneticKeys)
	if err != nil {
		return nil, err
	}
	return asCandidates(products, MatchPhonetic, confPhonetic), nil
}

// searchApproximate over-fetches broad candidates from the store and ranks
// them with a weighted similarity across normalized name, raw name, brand
// and search-term overlap. Candidates under the floor are dropped.
func (e *Engine) searchApproximate(ctx context.Context, q Query) ([]Candidate, error) {
	products, err := e.store.SearchSimilar(ctx, q.Text, 50)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, p := range products {
		score := e.weightedSimilarity(q, p)
		if score < approximateFloor {
			continue
		}
		out = append(out, Candidate{Product: p, MatchType: MatchApproximate, BaseConfidence: score, Confidence: score})
	}
	return out, nil
}

func (e *Engine) weightedSimilarity(q Query, p catalog.Product) int {
	raw := strings.ToLower(strings.TrimSpace(q.Raw))
	score := e.weights.NormalizedName*similarity(q.Text, p.NormalizedName) +
		e.weights.RawName*similarity(raw, strings.ToLower(p.Name)) +
		e.weights.Brand*similarity(q.Text, strings.ToLower(p.Brand)) +
		e.weights.TermOverlap*termOverlap(q.Terms, p.SearchTerms)
	return int(score)
}

// similarity converts Levenshtein distance into a 0..100 closeness score.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	return 100 * float64(maxLen-dist) / float64(maxLen)
}

// termOverlap scores how much of the query's expanded term set appears in
// the product's stored search terms.
func termOverlap(queryTerms, productTerms []string) float64 {
	if len(queryTerms) == 0 || len(productTerms) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(productTerms))
	for _, t := range productTerms {
		set[strings.ToLower(t)] = struct{}{}
	}
	hits := 0
	for _, t := range queryTerms {
		if _, ok := set[t]; ok {
			hits++
		}
	}
	return 100 * float64(hits) / float64(len(queryTerms))
}

func asCandidates(products []catalog.Product, matchType string, confidence int) []Candidate {
	out := make([]Candidate, 0, len(products))
	for _, p := range products {
		out = append(out, Candidate{Product: p, MatchType: matchType, BaseConfidence: confidence, Confidence: confidence})
	}
	return out
}
