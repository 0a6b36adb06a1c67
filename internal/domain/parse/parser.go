package parse

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/stockflow-app/invoice-ingest/internal/domain/extract"
)

// LineItem is one parsed invoice line. PackSize, UnitSize, UnitCost and
// LineTotal stay nil when the line does not carry them; a missing size never
// drops the item.
type LineItem struct {
	SourceIndex int
	Code        *string
	Name        string
	PackSize    *string
	UnitSize    *string
	Quantity    int
	UnitCost    *decimal.Decimal
	LineTotal   *decimal.Decimal
}

// Result is the outcome of parsing one document's lines. Discarded counts
// lines rejected by the anchor pattern, Skipped counts anchor lines with too
// few columns. Both are diagnostics, never errors.
type Result struct {
	Items     []LineItem
	Discarded int
	Skipped   int
}

// Parser parses raw lines under a single supplier profile.
type Parser struct {
	profile *Profile
	logger  *slog.Logger
}

// NewParser creates a parser for the given supplier profile.
func NewParser(profile *Profile, logger *slog.Logger) *Parser {
	return &Parser{profile: profile, logger: logger}
}

// ParseLines identifies candidate product lines and decomposes each into
// structured fields. Line-level problems degrade to diagnostics; the parse
// of a document never fails as a whole.
func (p *Parser) ParseLines(lines []extract.RawLine) *Result {
	result := &Result{}
	for _, line := range lines {
		item, ok := p.parseLine(line, result)
		if !ok {
			continue
		}
		result.Items = append(result.Items, *item)
	}
	if result.Discarded > 0 {
		p.logger.Debug("discarded non-anchor lines",
			slog.String("profile", p.profile.Name),
			slog.Int("count", result.Discarded))
	}
	return result
}

func (p *Parser) parseLine(line extract.RawLine, result *Result) (*LineItem, bool) {
	m := p.profile.Anchor.FindStringSubmatch(line.Text)
	if m == nil {
		// Continuation and noise lines are dropped here even when they
		// carry price-like tokens.
		result.Discarded++
		return nil, false
	}

	item := &LineItem{SourceIndex: line.SourceIndex, Quantity: 1}
	if len(m) > 1 && m[1] != "" {
		code := m[1]
		item.Code = &code
	}

	remainder := trim(line.Text[len(m[0]):])
	fields := p.profile.split(remainder)
	if len(fields) < p.profile.minColumns() {
		result.Skipped++
		p.logger.Debug("skipped line with too few columns",
			slog.Int("source_index", line.SourceIndex),
			slog.Int("columns", len(fields)))
		return nil, false
	}

	packIdx := p.findPackField(fields)
	if packIdx >= 0 {
		g := p.profile.packPattern().FindStringSubmatch(fields[packIdx])
		pack, size := g[1], strings.ReplaceAll(g[2], " ", "")
		item.PackSize = &pack
		item.UnitSize = &size
		// Product names may themselves contain the delimiter, so the name
		// is every field before the pack field, not just field zero.
		item.Name = strings.Join(fields[:packIdx], " ")

		if packIdx+1 < len(fields) {
			if qty, err := strconv.Atoi(fields[packIdx+1]); err == nil && qty > 0 {
				item.Quantity = qty
			}
		}
	} else {
		item.Name = fields[0]
	}

	priceFields := fields
	if packIdx >= 0 {
		priceFields = fields[packIdx+1:]
	} else {
		priceFields = fields[1:]
	}
	p.applyPrices(item, priceFields)

	if item.Name == "" {
		result.Skipped++
		return nil, false
	}
	return item, true
}

// findPackField scans fields in order and returns the index of the first
// one matching the profile's pack/size pattern, or -1.
func (p *Parser) findPackField(fields []string) int {
	pattern := p.profile.packPattern()
	for i, f := range fields {
		if pattern.MatchString(f) {
			return i
		}
	}
	return -1
}

var priceTokenRe = regexp.MustCompile(`\d+(?:,\d{3})*\.\d{2}`)

// extractPrices pulls currency-shaped tokens out of the given fields,
// ignoring percentages.
func extractPrices(fields []string) []decimal.Decimal {
	var prices []decimal.Decimal
	for _, f := range fields {
		for _, loc := range priceTokenRe.FindAllStringIndex(f, -1) {
			// A token immediately followed by a digit or '%' is part of a
			// larger number or a percentage, not a price.
			if loc[1] < len(f) {
				next := f[loc[1]]
				if next == '%' || (next >= '0' && next <= '9') {
					continue
				}
			}
			tok := strings.ReplaceAll(f[loc[0]:loc[1]], ",", "")
			d, err := decimal.NewFromString(tok)
			if err != nil {
				continue
			}
			prices = append(prices, d)
		}
	}
	return prices
}

func (p *Parser) applyPrices(item *LineItem, fields []string) {
	prices := extractPrices(fields)
	if len(prices) == 0 {
		return
	}

	var unit decimal.Decimal
	switch p.profile.Prices {
	case LastPrice:
		unit = prices[len(prices)-1]
	default:
		unit = prices[0]
	}
	item.UnitCost = &unit

	total := unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
	item.LineTotal = &total
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
