// Package fingerprint implements the Fingerprint value type and its
// canonical serialization (spec.md §3, §4.1, §6, §9).
package fingerprint

import (
	"sort"
	"strconv"
	"strings"
)

// Dtype is the Fingerprinter's inferred primitive type for a column's
// values, distinct from the caller-declared column.Kind.
type Dtype string

const (
	DtypeInt64   Dtype = "int64"
	DtypeFloat64 Dtype = "float64"
	DtypeBool    Dtype = "bool"
	DtypeTime    Dtype = "timestamp"
	DtypeString  Dtype = "string"
	DtypeUnknown Dtype = "unknown"
)

// Fingerprint is a content signature of a column (spec.md §3). Two
// Fingerprints with identical semantic content must serialize to the same
// canonical string.
type Fingerprint struct {
	Dtype       Dtype
	Cardinality int
	NullRatio   float64
	UniqueRatio float64

	// HasRange is true for ordered primitives (int64, float64, timestamp)
	// where Min/Max are meaningful.
	HasRange bool
	Min      float64
	Max      float64

	// Patterns is the sorted, deduplicated list of detected pattern
	// names (spec.md §4.1).
	Patterns []string

	// Sample is the first K distinct non-null values in iteration order,
	// K bounded by FingerprintOptions.MaxSampleValues.
	Sample []string
}

// Canonical renders the fingerprint's canonical serialized string: fixed
// key order (dtype, min, max, card, null_ratio, unique_ratio, patterns,
// sample), locale-independent, shortest round-trip float formatting, pipe
// delimited. Two fingerprints with identical semantic content produce
// byte-identical output (spec.md §3, §9).
func (f Fingerprint) Canonical() string {
	var b strings.Builder

	patterns := append([]string(nil), f.Patterns...)
	sort.Strings(patterns)
	sample := append([]string(nil), f.Sample...)

	parts := []string{
		"dtype=" + string(f.Dtype),
	}
	if f.HasRange {
		parts = append(parts,
			"min="+formatFloat(f.Min),
			"max="+formatFloat(f.Max),
		)
	}
	parts = append(parts,
		"card="+strconv.Itoa(f.Cardinality),
		"null_ratio="+formatRatio(f.NullRatio),
		"unique_ratio="+formatRatio(f.UniqueRatio),
		"patterns="+strings.Join(patterns, ","),
		"sample="+strings.Join(sample, ","),
	)

	b.WriteString(strings.Join(parts, "|"))
	return b.String()
}

// formatFloat renders with the shortest round-trip representation, as an
// integer when the value has no fractional part (so integer-typed ranges
// like min=1|max=999999 don't grow a spurious ".0").
func formatFloat(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// formatRatio renders a [0,1] ratio with up to 6 significant digits, no
// trailing zeros beyond that (spec.md §6).
func formatRatio(v float64) string {
	s := strconv.FormatFloat(v, 'g', 6, 64)
	return s
}

// Parse reconstructs a Fingerprint from its canonical string (spec.md §6).
// The Anchor Store only ever persists the canonical form, so any component
// that needs to compare a stored baseline against a freshly computed
// Fingerprint (the Reconciler, the Drift Detector) must parse it back.
// Parse is the single inverse of Canonical; the two must agree
// byte-for-byte on any value produced by this package (spec.md §9).
func Parse(s string) (Fingerprint, error) {
	var fp Fingerprint
	for _, part := range strings.Split(s, "|") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return Fingerprint{}, &ParseError{Input: s, Reason: "missing '=' in segment " + part}
		}
		switch key {
		case "dtype":
			fp.Dtype = Dtype(value)
		case "min":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Fingerprint{}, &ParseError{Input: s, Reason: "bad min: " + err.Error()}
			}
			fp.Min = f
			fp.HasRange = true
		case "max":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Fingerprint{}, &ParseError{Input: s, Reason: "bad max: " + err.Error()}
			}
			fp.Max = f
			fp.HasRange = true
		case "card":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Fingerprint{}, &ParseError{Input: s, Reason: "bad card: " + err.Error()}
			}
			fp.Cardinality = n
		case "null_ratio":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Fingerprint{}, &ParseError{Input: s, Reason: "bad null_ratio: " + err.Error()}
			}
			fp.NullRatio = f
		case "unique_ratio":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Fingerprint{}, &ParseError{Input: s, Reason: "bad unique_ratio: " + err.Error()}
			}
			fp.UniqueRatio = f
		case "patterns":
			if value != "" {
				fp.Patterns = strings.Split(value, ",")
			}
		case "sample":
			if value != "" {
				fp.Sample = strings.Split(value, ",")
			}
		}
	}
	if fp.Dtype == "" {
		return Fingerprint{}, &ParseError{Input: s, Reason: "missing dtype"}
	}
	return fp, nil
}

// ParseError reports a malformed canonical fingerprint string.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return "fingerprint: parse error: " + e.Reason
}
