// Package catalog owns the canonical product catalog: the shared set of
// products that supplier-specific invoice names resolve to, plus the
// persistent mappings from supplier codes to canonical entries.
package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Product is a canonical catalog entry. NormalizedName, PhoneticKey and
// SearchTerms are derived from Name/Brand at creation time so that search
// strategies never have to recompute them per query.
type Product struct {
	ID             uuid.UUID
	Name           string
	Brand          string
	Category       string
	Subcategory    string
	UnitSize       string
	CaseSize       string
	NormalizedName string
	PhoneticKey    string
	SearchTerms    []string
	UsageCount     int
	LastUsed       *time.Time
	SuccessRate    float64
	LocationsUsed  int
}

// Mapping links a supplier's own product code to a canonical product.
// Unique per (SupplierID, SupplierCode); writes use upsert semantics.
type Mapping struct {
	SupplierID         uuid.UUID
	SupplierCode       string
	CanonicalProductID uuid.UUID
	Confidence         int
	AutoMatched        bool
	Verified           bool
}

// LocationAlias records how one venue historically named a product.
type LocationAlias struct {
	LocationID uuid.UUID
	Alias      string
	ProductID  uuid.UUID
	UseCount   int
}

// Derive fills the search-derived fields from Name and Brand.
func (p *Product) Derive() {
	p.NormalizedName = NormalizeName(p.Name)
	p.PhoneticKey = PhoneticKey(firstWord(p.NormalizedName))
	p.SearchTerms = DeriveSearchTerms(p.NormalizedName, p.Brand)
}

// NormalizeName lowercases, trims and collapses whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// DeriveSearchTerms builds the stored term set for a product: every word of
// the normalized name and brand, deduplicated.
func DeriveSearchTerms(normalizedName, brand string) []string {
	seen := make(map[string]struct{})
	var terms []string
	add := func(w string) {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			return
		}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	for _, w := range strings.Fields(normalizedName) {
		add(w)
	}
	for _, w := range strings.Fields(brand) {
		add(w)
	}
	return terms
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}
