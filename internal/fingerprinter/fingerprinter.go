// Package fingerprinter implements the Fingerprinter component (spec.md
// §4.1): derives a structural signature from a column's values. Pure, no
// I/O, fails only on out-of-memory.
//
// Grounded on the teacher's adapters/datareadiness/profiler_adapter.go
// (profileField / inferTypeWithConfidence / computeCardinalityStats shape)
// and adapters/datareadiness/coercer/coercer.go (threshold-based primitive
// type detection), adapted from the teacher's dynamically-typed
// []interface{} profiling to this module's typed column.Column input.
package fingerprinter

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"sac/domain/column"
	"sac/domain/fingerprint"
	"sac/internal/config"
	"sac/internal/patterns"
)

// Fingerprinter computes Fingerprints from columns under a fixed set of
// options and a shared, read-only pattern catalog.
type Fingerprinter struct {
	opts config.FingerprintOptions
}

// New constructs a Fingerprinter. The pattern catalog (patterns.Catalog) is
// compiled once at package init and shared read-only across every instance.
func New(opts config.FingerprintOptions) *Fingerprinter {
	return &Fingerprinter{opts: opts}
}

// Fingerprint derives a Fingerprint from a column's values (spec.md §4.1).
func (f *Fingerprinter) Fingerprint(col column.Column) fingerprint.Fingerprint {
	n := col.Len()
	sampleN := n
	if !f.opts.Thorough && sampleN > f.opts.SamplePrefix {
		sampleN = f.opts.SamplePrefix
	} else if f.opts.Thorough && sampleN > f.opts.ThoroughRowCap {
		sampleN = f.opts.ThoroughRowCap
	}

	if n == 0 {
		return fingerprint.Fingerprint{Dtype: fingerprint.DtypeUnknown}
	}

	nullCount := 0
	seen := make(map[string]struct{}, n)
	var sample []string
	var nonNullStrings []string

	for i := 0; i < n; i++ {
		if col.IsNull(i) {
			nullCount++
			continue
		}
		s := col.StringAt(i)
		nonNullStrings = append(nonNullStrings, s)
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			if len(sample) < f.opts.MaxSampleValues && i < sampleN {
				sample = append(sample, s)
			}
		}
	}

	cardinality := len(seen)
	nullRatio := float64(nullCount) / float64(n)
	uniqueRatio := 0.0
	if n > 0 {
		uniqueRatio = float64(cardinality) / float64(n)
	}

	var sampled []string
	if len(nonNullStrings) > sampleN {
		sampled = nonNullStrings[:sampleN]
	} else {
		sampled = nonNullStrings
	}

	dtype := inferDtype(sampled)

	fp := fingerprint.Fingerprint{
		Dtype:       dtype,
		Cardinality: cardinality,
		NullRatio:   nullRatio,
		UniqueRatio: uniqueRatio,
		Sample:      sample,
	}

	if isOrdered(dtype) {
		if min, max, ok := minMax(sampled, dtype); ok {
			fp.HasRange = true
			fp.Min = min
			fp.Max = max
		}
	}

	fp.Patterns = f.detectPatterns(sampled, col.Name)

	return fp
}

// inferDtype classifies non-null sampled values per spec.md §4.1: all
// integers → integer; all integers-or-finite-floats with at least one
// non-integer → floating; all true/false case-insensitive → boolean; all
// ISO-8601 date/datetime → timestamp; otherwise string. Empty → unknown.
func inferDtype(values []string) fingerprint.Dtype {
	if len(values) == 0 {
		return fingerprint.DtypeUnknown
	}

	allInt, allNumeric, hasNonInt := true, true, false
	allBool, allTimestamp := true, true

	for _, v := range values {
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			allInt = false
		}
		if fv, err := strconv.ParseFloat(v, 64); err != nil || math.IsInf(fv, 0) || math.IsNaN(fv) {
			allNumeric = false
		} else if fv != math.Trunc(fv) {
			hasNonInt = true
		}
		lower := strings.ToLower(v)
		if lower != "true" && lower != "false" {
			allBool = false
		}
		if !looksLikeTimestamp(v) {
			allTimestamp = false
		}
	}

	switch {
	case allInt:
		return fingerprint.DtypeInt64
	case allNumeric && hasNonInt:
		return fingerprint.DtypeFloat64
	case allBool:
		return fingerprint.DtypeBool
	case allTimestamp:
		return fingerprint.DtypeTime
	default:
		return fingerprint.DtypeString
	}
}

func looksLikeTimestamp(v string) bool {
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
	for _, l := range layouts {
		if _, err := time.Parse(l, v); err == nil {
			return true
		}
	}
	return false
}

func isOrdered(d fingerprint.Dtype) bool {
	switch d {
	case fingerprint.DtypeInt64, fingerprint.DtypeFloat64, fingerprint.DtypeTime:
		return true
	default:
		return false
	}
}

func minMax(values []string, dtype fingerprint.Dtype) (min, max float64, ok bool) {
	first := true
	for _, v := range values {
		var f float64
		switch dtype {
		case fingerprint.DtypeInt64:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				continue
			}
			f = float64(n)
		case fingerprint.DtypeFloat64:
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			f = n
		case fingerprint.DtypeTime:
			t, err := parseAnyTimestamp(v)
			if err != nil {
				continue
			}
			f = float64(t.Unix())
		default:
			return 0, 0, false
		}
		if first {
			min, max, first = f, f, false
		} else {
			if f < min {
				min = f
			}
			if f > max {
				max = f
			}
		}
	}
	return min, max, !first
}

func parseAnyTimestamp(v string) (time.Time, error) {
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
	var lastErr error
	for _, l := range layouts {
		t, err := time.Parse(l, v)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// detectPatterns runs the catalog over the sampled values plus the column
// name morphology check (spec.md §4.1).
func (f *Fingerprinter) detectPatterns(values []string, columnName string) []string {
	if len(values) == 0 {
		return nil
	}
	found := make(map[string]struct{})
	for _, p := range patterns.Catalog {
		matches := 0
		for _, v := range values {
			if p.Match(v) {
				matches++
			}
		}
		if float64(matches)/float64(len(values)) > f.opts.PatternMatchThreshold {
			found[p.Name] = struct{}{}
		}
	}
	for _, m := range patterns.NameMorphologies {
		if m.Regex.MatchString(columnName) {
			found[m.ImpliedPattern] = struct{}{}
		}
	}
	out := make([]string, 0, len(found))
	for name := range found {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
