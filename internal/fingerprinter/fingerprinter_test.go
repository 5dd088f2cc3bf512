package fingerprinter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sac/domain/column"
	"sac/domain/fingerprint"
	"sac/internal/config"
)

func newFingerprinter() *Fingerprinter {
	return New(config.DefaultFingerprintOptions())
}

func TestFingerprint_EmptyColumnIsUnknown(t *testing.T) {
	f := newFingerprinter()
	fp := f.Fingerprint(column.NewIntColumn("x", nil, nil))
	assert.Equal(t, fingerprint.DtypeUnknown, fp.Dtype)
}

func TestFingerprint_IntColumnInfersInt64AndRange(t *testing.T) {
	f := newFingerprinter()
	fp := f.Fingerprint(column.NewIntColumn("customer_id", []int64{1001, 1002, 1003, 1004, 1005}, nil))

	assert.Equal(t, fingerprint.DtypeInt64, fp.Dtype)
	assert.Equal(t, 5, fp.Cardinality)
	assert.Equal(t, 0.0, fp.NullRatio)
	assert.Equal(t, 1.0, fp.UniqueRatio)
	require.True(t, fp.HasRange)
	assert.Equal(t, 1001.0, fp.Min)
	assert.Equal(t, 1005.0, fp.Max)
}

func TestFingerprint_StringColumnOfDigitsStillInfersInt64(t *testing.T) {
	f := newFingerprinter()
	fp := f.Fingerprint(column.NewStringColumn("code", []string{"10", "20", "30"}, nil))
	assert.Equal(t, fingerprint.DtypeInt64, fp.Dtype)
}

func TestFingerprint_FloatColumnWithNonIntegerValueInfersFloat64(t *testing.T) {
	f := newFingerprinter()
	fp := f.Fingerprint(column.NewStringColumn("amount", []string{"10", "20.5", "30"}, nil))
	assert.Equal(t, fingerprint.DtypeFloat64, fp.Dtype)
}

func TestFingerprint_BoolColumnInfersBool(t *testing.T) {
	f := newFingerprinter()
	fp := f.Fingerprint(column.NewStringColumn("active", []string{"true", "false", "TRUE"}, nil))
	assert.Equal(t, fingerprint.DtypeBool, fp.Dtype)
	assert.False(t, fp.HasRange)
}

func TestFingerprint_IsoDateColumnInfersTimestamp(t *testing.T) {
	f := newFingerprinter()
	fp := f.Fingerprint(column.NewStringColumn("created_at", []string{"2024-01-01", "2024-06-15", "2025-02-20"}, nil))
	assert.Equal(t, fingerprint.DtypeTime, fp.Dtype)
	assert.True(t, fp.HasRange)
	assert.Less(t, fp.Min, fp.Max)
}

func TestFingerprint_MixedValuesInferString(t *testing.T) {
	f := newFingerprinter()
	fp := f.Fingerprint(column.NewStringColumn("misc", []string{"abc", "123", "true"}, nil))
	assert.Equal(t, fingerprint.DtypeString, fp.Dtype)
}

func TestFingerprint_NullRatioCountsNullsAndEmptyStrings(t *testing.T) {
	f := newFingerprinter()
	fp := f.Fingerprint(column.NewStringColumn("notes", []string{"a", "", "b", "c"}, []bool{false, false, false, true}))
	// row 1 is "" (empty string null), row 3 is explicitly masked null.
	assert.InDelta(t, 0.5, fp.NullRatio, 1e-9)
}

func TestFingerprint_DetectsEmailPatternFromValues(t *testing.T) {
	f := newFingerprinter()
	emails := []string{"alice@example.com", "bob@example.com", "carol@example.com", "dave@example.com"}
	fp := f.Fingerprint(column.NewStringColumn("contact", emails, nil))
	assert.Contains(t, fp.Patterns, "email")
}

func TestFingerprint_ColumnNameMorphologyImpliesPatternEvenWithoutValueMatch(t *testing.T) {
	f := newFingerprinter()
	// Values alone don't look like emails, but the column name does.
	fp := f.Fingerprint(column.NewStringColumn("user_email", []string{"x", "y", "z"}, nil))
	assert.Contains(t, fp.Patterns, "email")
}

func TestFingerprint_SampleIsCappedAtMaxSampleValues(t *testing.T) {
	opts := config.DefaultFingerprintOptions()
	opts.MaxSampleValues = 2
	f := New(opts)

	fp := f.Fingerprint(column.NewStringColumn("many", []string{"a", "b", "c", "d", "e"}, nil))
	assert.Len(t, fp.Sample, 2)
	assert.Equal(t, 5, fp.Cardinality, "cardinality counts every distinct value, not just the capped sample")
}
