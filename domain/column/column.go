// Package column implements the tagged-variant column abstraction called
// for by spec.md §9 Design Notes ("Dynamic 'any' values in columns"): a
// column is constructed once by the external reader (out of scope for this
// module) as one of a small set of typed sequences plus a null mask, and
// the core never does runtime type sniffing on scalar cells beyond the
// primitive-type inference the Fingerprinter itself performs.
package column

import "strconv"

// Kind enumerates the primitive backing representation of a Column's
// values. This is the caller's declared shape, distinct from the
// Fingerprinter's *inferred* primitive type (domain/fingerprint.Dtype),
// which may disagree (e.g. a KindString column of all-digit strings still
// infers DtypeInt64).
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Column is an ordered, named sequence of values of one logical Kind, plus
// a null mask. It is immutable: callers must not mutate a Column instance
// shared across reconciliation calls.
type Column struct {
	Name string
	Kind Kind

	Ints    []int64
	Floats  []float64
	Bools   []bool
	Strings []string

	// Null marks absent values, indexed in parallel with the backing
	// slice for Kind. len(Null) == Len().
	Null []bool
}

// NewIntColumn builds an integer column. null may be nil, meaning no nulls.
func NewIntColumn(name string, values []int64, null []bool) Column {
	return Column{Name: name, Kind: KindInt, Ints: values, Null: normalizeMask(null, len(values))}
}

// NewFloatColumn builds a floating-point column.
func NewFloatColumn(name string, values []float64, null []bool) Column {
	return Column{Name: name, Kind: KindFloat, Floats: values, Null: normalizeMask(null, len(values))}
}

// NewBoolColumn builds a boolean column.
func NewBoolColumn(name string, values []bool, null []bool) Column {
	return Column{Name: name, Kind: KindBool, Bools: values, Null: normalizeMask(null, len(values))}
}

// NewStringColumn builds a string column.
func NewStringColumn(name string, values []string, null []bool) Column {
	return Column{Name: name, Kind: KindString, Strings: values, Null: normalizeMask(null, len(values))}
}

func normalizeMask(null []bool, n int) []bool {
	if null == nil {
		return make([]bool, n)
	}
	return null
}

// Len returns the number of rows, null or not.
func (c Column) Len() int {
	switch c.Kind {
	case KindInt:
		return len(c.Ints)
	case KindFloat:
		return len(c.Floats)
	case KindBool:
		return len(c.Bools)
	default:
		return len(c.Strings)
	}
}

// IsNull reports whether row i is absent. An empty string is also treated
// as null for string columns, per spec.md §3 ("null count (null or empty
// string)").
func (c Column) IsNull(i int) bool {
	if i < len(c.Null) && c.Null[i] {
		return true
	}
	if c.Kind == KindString && i < len(c.Strings) && c.Strings[i] == "" {
		return true
	}
	return false
}

// StringAt renders row i as a string, the common representation used for
// uniqueness counting, sampling, and pattern matching regardless of Kind.
// Returns "" for a null row.
func (c Column) StringAt(i int) string {
	if c.IsNull(i) {
		return ""
	}
	switch c.Kind {
	case KindInt:
		return strconv.FormatInt(c.Ints[i], 10)
	case KindFloat:
		return strconv.FormatFloat(c.Floats[i], 'g', -1, 64)
	case KindBool:
		if c.Bools[i] {
			return "true"
		}
		return "false"
	default:
		return c.Strings[i]
	}
}

// Values returns every row rendered as a string via StringAt, in order.
// Convenience for components that only need the string view.
func (c Column) Values() []string {
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.StringAt(i)
	}
	return out
}
