// Package patterns holds the Fingerprinter's pattern catalog: a fixed set
// of named patterns, each a compiled regex plus an optional validator and a
// diagnostic weight (spec.md §4.1, §9 — "Regex compilation on every call...
// must be compiled once at construction time and shared read-only").
package patterns

import (
	"regexp"
	"strconv"
	"strings"
)

// Validator further constrains a regex match, e.g. Luhn-checking a
// credit-card-shaped string. A nil Validator means the regex alone decides.
type Validator func(value string) bool

// Pattern is one entry in the catalog.
type Pattern struct {
	Name      string
	Regex     *regexp.Regexp
	Validator Validator
	// Weight expresses how diagnostic this pattern is (spec.md §4.1).
	Weight float64
}

// Match reports whether value satisfies this pattern's regex and (if
// present) its validator.
func (p Pattern) Match(value string) bool {
	if !p.Regex.MatchString(value) {
		return false
	}
	if p.Validator != nil {
		return p.Validator(value)
	}
	return true
}

// Catalog is the compiled-once, read-only set of patterns the Fingerprinter
// and Inferrer share.
var Catalog = buildCatalog()

func buildCatalog() []Pattern {
	return []Pattern{
		{Name: "email", Regex: regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`), Weight: 0.95},
		{Name: "phone", Regex: regexp.MustCompile(`^\+?\d{1,3}?[\s.\-]?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}$`), Weight: 0.8},
		{Name: "iso_date", Regex: regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), Validator: validDate, Weight: 0.9},
		{Name: "iso_datetime", Regex: regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+\-]\d{2}:?\d{2})?$`), Weight: 0.9},
		{Name: "unix_timestamp", Regex: regexp.MustCompile(`^\d{10}(\d{3})?$`), Validator: validUnixTimestamp, Weight: 0.7},
		{Name: "uuid", Regex: regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`), Weight: 0.97},
		{Name: "auto_increment_id", Regex: regexp.MustCompile(`^[1-9]\d*$`), Weight: 0.3},
		{Name: "prefixed_id", Regex: regexp.MustCompile(`^[A-Z]{2,6}_[A-Za-z0-9]+$`), Weight: 0.5},
		{Name: "us_zip", Regex: regexp.MustCompile(`^\d{5}(-\d{4})?$`), Weight: 0.7},
		{Name: "postal_code", Regex: regexp.MustCompile(`^([A-Za-z]\d[A-Za-z][ \-]?\d[A-Za-z]\d|[A-Za-z]{1,2}\d[A-Za-z\d]? ?\d[A-Za-z]{2})$`), Weight: 0.6},
		{Name: "ipv4", Regex: regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`), Validator: validIPv4, Weight: 0.9},
		{Name: "ipv6", Regex: regexp.MustCompile(`^([0-9a-fA-F]{0,4}:){2,7}[0-9a-fA-F]{0,4}$`), Weight: 0.9},
		{Name: "url", Regex: regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://[^\s]+$`), Weight: 0.9},
		{Name: "ssn", Regex: regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`), Weight: 0.85},
		{Name: "credit_card", Regex: regexp.MustCompile(`^\d{13,19}$`), Validator: validLuhn, Weight: 0.9},
		{Name: "percentage", Regex: regexp.MustCompile(`^\d+(\.\d+)?\s?%$`), Weight: 0.85},
		{Name: "currency", Regex: regexp.MustCompile(`^[$€£]?\s?\d{1,3}(,\d{3})*(\.\d{1,2})?$`), Weight: 0.7},
		{Name: "boolean", Regex: regexp.MustCompile(`(?i)^(true|false|yes|no|y|n|0|1)$`), Weight: 0.5},
	}
}

// NameMorphology holds a compiled regex over a column *name* (not its
// values) plus the pattern it implies and a smaller weight, used when
// value sampling alone is inconclusive (spec.md §4.1).
type NameMorphology struct {
	Regex          *regexp.Regexp
	ImpliedPattern string
	Weight         float64
}

var NameMorphologies = []NameMorphology{
	{Regex: regexp.MustCompile(`(?i)(^|_)id$`), ImpliedPattern: "auto_increment_id", Weight: 0.2},
	{Regex: regexp.MustCompile(`(?i)^(cust|customer|user|person)(_id)?$`), ImpliedPattern: "auto_increment_id", Weight: 0.2},
	{Regex: regexp.MustCompile(`(?i)(email|mail)$`), ImpliedPattern: "email", Weight: 0.3},
	{Regex: regexp.MustCompile(`(?i)(phone|tel)(_number)?$`), ImpliedPattern: "phone", Weight: 0.25},
	{Regex: regexp.MustCompile(`(?i)(zip|postal)(_code)?$`), ImpliedPattern: "us_zip", Weight: 0.2},
	{Regex: regexp.MustCompile(`(?i)(url|link|href)$`), ImpliedPattern: "url", Weight: 0.2},
}

func validDate(s string) bool {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return false
	}
	month, err1 := strconv.Atoi(parts[1])
	day, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return false
	}
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}

func validUnixTimestamp(s string) bool {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return false
	}
	switch len(s) {
	case 10: // seconds
		return n >= 946684800 && n <= 4102444800 // [2000,2100)
	case 13: // milliseconds
		return n >= 946684800000 && n <= 4102444800000
	default:
		return false
	}
}

func validIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

// validLuhn implements the Luhn checksum for credit-card-shaped strings.
func validLuhn(s string) bool {
	sum := 0
	alt := false
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}
