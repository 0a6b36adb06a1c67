package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// InvoiceHeader holds document-level metadata. Every field is optional and
// populated independently; a field that never matches stays nil.
type InvoiceHeader struct {
	SupplierName   *string
	InvoiceNumber  *string
	InvoiceDate    *time.Time
	CustomerRef    *string
	DeliveryNumber *string
}

// headerWindow bounds how many leading lines are scanned for header fields.
const headerWindow = 25

// fieldPattern is one acceptable label for a header field. Patterns are
// tried in declaration order; the first line matching any pattern for a
// field wins and later lines are not searched for that field.
type fieldPattern struct {
	re *regexp.Regexp
}

var (
	supplierPatterns = []fieldPattern{
		{regexp.MustCompile(`(?i)^supplier[:\s]+(.+)$`)},
		{regexp.MustCompile(`(?i)^from[:\s]+(.+)$`)},
		{regexp.MustCompile(`(?i)^(.+?)\s+(?:ltd|limited|plc|llp)\b.*$`)},
	}
	invoiceNoPatterns = []fieldPattern{
		{regexp.MustCompile(`(?i)invoice\s*(?:no|number|#)[.:\s]*([A-Z0-9][A-Z0-9-]*)`)},
		{regexp.MustCompile(`(?i)^inv[.:\s]+([A-Z0-9][A-Z0-9-]*)`)},
	}
	datePatterns = []fieldPattern{
		{regexp.MustCompile(`(?i)(?:invoice\s+)?date[.:\s]*(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)},
		{regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{2,4})\b`)},
	}
	customerRefPatterns = []fieldPattern{
		{regexp.MustCompile(`(?i)(?:customer|account)\s*(?:ref|reference|no|number)[.:\s]*([A-Z0-9][A-Z0-9-]*)`)},
		{regexp.MustCompile(`(?i)a/c[.:\s]*([A-Z0-9][A-Z0-9-]*)`)},
	}
	deliveryNoPatterns = []fieldPattern{
		{regexp.MustCompile(`(?i)delivery\s*(?:no|number|note)[.:\s]*([A-Z0-9][A-Z0-9-]*)`)},
	}
)

// ExtractHeader scans a bounded prefix of the document for header fields.
// Each field is resolved independently, first match wins. A field with no
// match is left nil, never an error.
func ExtractHeader(lines []RawLine) InvoiceHeader {
	window := lines
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}

	var h InvoiceHeader
	h.SupplierName = firstCapture(window, supplierPatterns)
	h.InvoiceNumber = firstCapture(window, invoiceNoPatterns)
	h.CustomerRef = firstCapture(window, customerRefPatterns)
	h.DeliveryNumber = firstCapture(window, deliveryNoPatterns)

	if raw := firstCapture(window, datePatterns); raw != nil {
		if t, err := ParseInvoiceDate(*raw); err == nil {
			h.InvoiceDate = &t
		}
	}
	return h
}

func firstCapture(lines []RawLine, patterns []fieldPattern) *string {
	for _, line := range lines {
		for _, p := range patterns {
			if m := p.re.FindStringSubmatch(line.Text); m != nil {
				v := strings.TrimSpace(m[1])
				if v != "" {
					return &v
				}
			}
		}
	}
	return nil
}

// ParseInvoiceDate parses day-first dates with explicit two-digit-year
// disambiguation: years <= 30 resolve to the 2000s, years > 30 to the
// 1900s. "15/03/24" is 2024-03-15; "15/03/87" is 1987-03-15.
func ParseInvoiceDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	sep := "/"
	switch {
	case strings.Contains(raw, "-"):
		sep = "-"
	case strings.Contains(raw, "."):
		sep = "."
	}
	parts := strings.Split(raw, sep)
	if len(parts) != 3 {
		return time.Time{}, &time.ParseError{Layout: "dd/mm/yy", Value: raw}
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, err
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, err
	}

	if year < 100 {
		if year <= 30 {
			year += 2000
		} else {
			year += 1900
		}
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, &time.ParseError{Layout: "dd/mm/yy", Value: raw}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}
