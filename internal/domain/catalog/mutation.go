package catalog

import (
	"context"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/google/uuid"
)

// categoryGroup is one entry of the ordered category scan. Order matters:
// the first group with a keyword hit wins.
type categoryGroup struct {
	name     string
	keywords []string
}

var defaultCategoryGroups = []categoryGroup{
	{"wine", []string{"wine", "merlot", "chardonnay", "sauvignon", "rioja", "pinot", "shiraz", "malbec", "prosecco", "champagne", "rose"}},
	{"beer", []string{"beer", "lager", "ale", "stout", "ipa", "pilsner", "cider"}},
	{"spirits", []string{"vodka", "gin", "whiskey", "whisky", "rum", "tequila", "brandy", "liqueur", "bourbon"}},
	{"draught", []string{"keg", "draught", "draft", "cask"}},
	{"soft-drinks", []string{"cola", "coke", "lemonade", "juice", "water", "tonic", "soda", "squash", "cordial"}},
}

var containerKeywords = []string{"can", "bottle", "keg", "box", "bag"}

// Deriver builds new canonical products from supplier line-item names when
// no acceptable catalog match exists. Keyword scans use a precompiled
// Aho-Corasick matcher so one pass covers every keyword.
type Deriver struct {
	containerMatcher *ahocorasick.Matcher
	categoryMatchers []*ahocorasick.Matcher
	categoryNames    []string
	knownBrands      []string
}

// NewDeriver creates a product deriver. knownBrands is the supplier
// profile's brand table; it is scanned before falling back to the first
// word of the name.
func NewDeriver(knownBrands []string) *Deriver {
	d := &Deriver{knownBrands: knownBrands}
	d.containerMatcher = ahocorasick.NewStringMatcher(containerKeywords)
	for _, g := range defaultCategoryGroups {
		d.categoryMatchers = append(d.categoryMatchers, ahocorasick.NewStringMatcher(g.keywords))
		d.categoryNames = append(d.categoryNames, g.name)
	}
	return d
}

// Derive builds a canonical product from a raw supplier item name plus the
// parsed unit size.
func (d *Deriver) Derive(rawName, unitSize string) Product {
	lower := strings.ToLower(rawName)

	p := Product{
		Name:        strings.TrimSpace(rawName),
		Brand:       d.deriveBrand(lower),
		Category:    d.deriveCategory(lower),
		Subcategory: d.deriveContainer(lower),
		UnitSize:    unitSize,
	}
	p.Derive()
	return p
}

// deriveContainer scans for a container-type keyword; "bottle" is the
// default when nothing hits.
func (d *Deriver) deriveContainer(lower string) string {
	hits := d.containerMatcher.Match([]byte(lower))
	if len(hits) > 0 {
		return containerKeywords[hits[0]]
	}
	return "bottle"
}

// deriveCategory walks the ordered group list; first group with a hit wins.
func (d *Deriver) deriveCategory(lower string) string {
	for i, m := range d.categoryMatchers {
		if len(m.Match([]byte(lower))) > 0 {
			return d.categoryNames[i]
		}
	}
	return ""
}

// deriveBrand looks the name up against the known-brand table, falling back
// to the first word.
func (d *Deriver) deriveBrand(lower string) string {
	for _, b := range d.knownBrands {
		if strings.Contains(lower, strings.ToLower(b)) {
			return b
		}
	}
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return ""
	}
	word := fields[0]
	return strings.ToUpper(word[:1]) + word[1:]
}

// Mutator performs catalog writes for line items resolved as new products.
type Mutator struct {
	store   Store
	deriver *Deriver
}

// NewMutator creates a catalog mutator over the given store.
func NewMutator(store Store, deriver *Deriver) *Mutator {
	return &Mutator{store: store, deriver: deriver}
}

// CreateFromLineItem derives a canonical product from the supplier's naming
// and writes product + supplier mapping atomically. Returns the created
// product.
func (m *Mutator) CreateFromLineItem(ctx context.Context, supplierID uuid.UUID, supplierCode, rawName, unitSize string) (*Product, error) {
	p := m.deriver.Derive(rawName, unitSize)
	mapping := Mapping{
		SupplierID:   supplierID,
		SupplierCode: supplierCode,
		Confidence:   100,
		AutoMatched:  false,
		Verified:     true,
	}
	if err := m.store.CreateWithMapping(ctx, &p, &mapping); err != nil {
		return nil, err
	}
	return &p, nil
}
