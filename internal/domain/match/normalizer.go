// Package match resolves parsed line items to canonical catalog products.
// Five search strategies run concurrently over a normalized query; a scorer
// folds their signals into one confidence per candidate and a gate decides
// auto-accept versus manual review.
package match

import (
	"regexp"
	"strings"

	"github.com/stockflow-app/invoice-ingest/internal/domain/catalog"
)

// Query is the normalized form of a line item's raw name, shared by all
// search strategies.
type Query struct {
	Raw     string
	Text    string // corrected, size/percent-stripped search text
	Size    string // extracted size token, e.g. "750ml"
	Percent string // extracted strength token, e.g. "13.5%"

	Words        []string
	Terms        []string // words plus prefix/variant expansions
	PhoneticKeys []string
}

var (
	sizeTokenRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(ml|cl|l|g|kg)\b`)
	percentTokenRe = regexp.MustCompile(`\d+(?:\.\d+)?\s*%`)
	nonWordRe      = regexp.MustCompile(`[^a-z0-9\s]`)
)

type correction struct {
	garbled, fixed string
}

// transcriptionCorrections fixes common multi-word garbles produced by OCR
// and phonetic data entry. Applied in order as plain substring substitution
// on the lowercased query, so normalization stays deterministic.
var transcriptionCorrections = []correction{
	{"shar don ay", "chardonnay"},
	{"shardonay", "chardonnay"},
	{"sav blanc", "sauvignon blanc"},
	{"cab sav", "cabernet sauvignon"},
	{"pino grigio", "pinot grigio"},
	{"pino noir", "pinot noir"},
	{"proseco", "prosecco"},
	{"champaign", "champagne"},
	{"riocha", "rioja"},
	{"guiness", "guinness"},
	{"hiney ken", "heineken"},
	{"budwiser", "budweiser"},
	{"con treau", "cointreau"},
	{"stella art ", "stella artois "},
}

// variantSpellings maps known phonetic spellings to the catalog's term.
var variantSpellings = map[string]string{
	"wiskey": "whiskey",
	"wisky":  "whisky",
	"vodker": "vodka",
	"larger": "lager",
	"coka":   "coke",
}

// NormalizeQuery builds the shared query form: lowercase and trim, extract
// and strip size and percentage tokens, apply the transcription-correction
// table, then tokenize and expand.
func NormalizeQuery(raw string) Query {
	q := Query{Raw: raw}

	text := strings.ToLower(strings.TrimSpace(raw))

	if m := sizeTokenRe.FindStringSubmatch(text); m != nil {
		q.Size = m[1] + m[2]
		text = sizeTokenRe.ReplaceAllString(text, " ")
	}
	if m := percentTokenRe.FindString(text); m != "" {
		q.Percent = strings.ReplaceAll(m, " ", "")
		text = percentTokenRe.ReplaceAllString(text, " ")
	}

	for _, c := range transcriptionCorrections {
		text = strings.ReplaceAll(text, c.garbled, c.fixed)
	}

	text = nonWordRe.ReplaceAllString(text, " ")
	text = strings.Join(strings.Fields(text), " ")
	q.Text = text
	q.Words = strings.Fields(text)
	q.Terms = expandTerms(q.Words)
	q.PhoneticKeys = phoneticKeys(q.Words)
	return q
}

// expandTerms derives the expanded term set: every word, a short prefix for
// long words, and known variant spellings resolved to their catalog form.
func expandTerms(words []string) []string {
	seen := make(map[string]struct{})
	var terms []string
	add := func(t string) {
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	for _, w := range words {
		add(w)
		if len(w) >= 6 {
			add(w[:4])
		}
		if v, ok := variantSpellings[w]; ok {
			add(v)
		}
	}
	return terms
}

func phoneticKeys(words []string) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		k := catalog.PhoneticKey(w)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
