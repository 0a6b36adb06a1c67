// Package parse decomposes raw invoice lines into structured line items.
// Parsing is driven by supplier profiles: each supplier registers the
// structural quirks of its invoices (anchor pattern, delimiter style, pack
// size shape, brand and category vocabulary) instead of branching code.
package parse

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"
)

// DelimiterStrategy selects how an anchor-stripped line is split into
// fields.
type DelimiterStrategy int

const (
	// TabRun splits on runs of tab characters.
	TabRun DelimiterStrategy = iota
	// MultiSpaceRun splits on runs of two or more spaces.
	MultiSpaceRun
)

// PriceConvention selects which price-like token on a line is the unit
// cost. Suppliers print unit cost first or last; there is no way to infer
// it per line, so the profile states it explicitly.
type PriceConvention int

const (
	FirstPrice PriceConvention = iota
	LastPrice
)

// DefaultPackSizePattern matches "<pack> <size><unit>" fields such as
// "24 330ml" or "6 70cl". Group 1 is the pack count, group 2 the unit size.
var DefaultPackSizePattern = regexp.MustCompile(`^(\d+)\s*[xX]?\s*(\d+(?:\.\d+)?\s?(?:ml|cl|l|g|kg|s|pk|cm))$`)

// Profile describes one supplier's invoice line structure.
type Profile struct {
	SupplierID uuid.UUID
	Name       string

	// Anchor identifies candidate product lines. Lines not matching are
	// discarded regardless of content. If the pattern has a capture group,
	// the group is the supplier product code.
	Anchor *regexp.Regexp

	Delimiter DelimiterStrategy
	PackSize  *regexp.Regexp
	Prices    PriceConvention

	// MinColumns is the minimum viable field count after splitting; lines
	// below it are skipped with a diagnostic count.
	MinColumns int

	// Brands and CategoryKeywords feed the brand+category match strategy
	// and new-product derivation.
	Brands           []string
	CategoryKeywords []string
}

func (p *Profile) packPattern() *regexp.Regexp {
	if p.PackSize != nil {
		return p.PackSize
	}
	return DefaultPackSizePattern
}

func (p *Profile) minColumns() int {
	if p.MinColumns > 0 {
		return p.MinColumns
	}
	return 2
}

var (
	tabRunRe     = regexp.MustCompile(`\t+`)
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
)

func (p *Profile) split(s string) []string {
	var parts []string
	switch p.Delimiter {
	case MultiSpaceRun:
		parts = multiSpaceRe.Split(s, -1)
	default:
		parts = tabRunRe.Split(s, -1)
	}
	out := parts[:0]
	for _, f := range parts {
		if f = trim(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Registry holds supplier profiles keyed by supplier id. New suppliers
// register a profile; nothing else in the parser changes per supplier.
type Registry struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]*Profile
}

// NewRegistry creates an empty profile registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[uuid.UUID]*Profile)}
}

// Register adds or replaces a supplier's profile.
func (r *Registry) Register(p *Profile) error {
	if p.SupplierID == uuid.Nil {
		return fmt.Errorf("profile %q has no supplier id", p.Name)
	}
	if p.Anchor == nil {
		return fmt.Errorf("profile %q has no anchor pattern", p.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.SupplierID] = p
	return nil
}

// Get returns the profile for a supplier, or nil.
func (r *Registry) Get(supplierID uuid.UUID) *Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[supplierID]
}
