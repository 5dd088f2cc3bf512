package inferrer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sac/domain/column"
	"sac/domain/fingerprint"
	"sac/domain/semtype"
	"sac/internal/config"
	"sac/internal/matcher"
)

func newInferrer() *Inferrer {
	return New(matcher.New(config.DefaultMatcherWeights()), ModeFast)
}

func TestInfer_EmailPatternPlusExactNameMatch(t *testing.T) {
	inf := newInferrer()
	col := column.NewStringColumn("email", []string{"a@example.com", "b@example.com"}, nil)
	fp := fingerprint.Fingerprint{Dtype: fingerprint.DtypeString, Patterns: []string{"email"}}

	result := inf.Infer(col, fp)
	require.Equal(t, semtype.Email, result.SemanticType)
	// pattern 0.6 + exact canonical name match 1.0*0.3 = 0.9
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	assert.Contains(t, result.Evidence, "pattern:email")
}

func TestInfer_BooleanDtypePlusExactNameMatch(t *testing.T) {
	inf := newInferrer()
	col := column.NewStringColumn("active", []string{"true", "false"}, nil)
	fp := fingerprint.Fingerprint{Dtype: fingerprint.DtypeBool}

	result := inf.Infer(col, fp)
	require.Equal(t, semtype.Boolean, result.SemanticType)
	// dtype_bool 0.4 + exact canonical name match 1.0*0.3 = 0.7
	assert.InDelta(t, 0.7, result.Confidence, 1e-9)
}

func TestInfer_ScoreOverflowClampsAtPointNineNine(t *testing.T) {
	inf := newInferrer()
	col := column.NewStringColumn("is_active", []string{"true", "false"}, nil)
	fp := fingerprint.Fingerprint{Dtype: fingerprint.DtypeBool, Patterns: []string{"boolean"}}

	result := inf.Infer(col, fp)
	require.Equal(t, semtype.Boolean, result.SemanticType)
	// pattern 0.6 + name 0.3 + dtype_bool 0.4 = 1.3, clamped to 0.99
	assert.Equal(t, 0.99, result.Confidence)
}

func TestInfer_TimestampDtypeWinsOverRangeCongruencePercentage(t *testing.T) {
	inf := newInferrer()
	col := column.NewStringColumn("created_at", []string{"2024-01-01", "2024-06-15"}, nil)
	fp := fingerprint.Fingerprint{
		Dtype:    fingerprint.DtypeTime,
		Patterns: []string{"iso_date"},
		HasRange: true,
		Min:      0,
		Max:      50,
	}

	result := inf.Infer(col, fp)
	assert.Equal(t, semtype.Timestamp, result.SemanticType)
	for _, alt := range result.Alternatives {
		assert.NotEqual(t, semtype.Timestamp, alt.Type, "the winner must not also appear among the alternatives")
	}
}

func TestInfer_HighCardinalityIntColumnLeansIdentifier(t *testing.T) {
	inf := newInferrer()
	col := column.NewIntColumn("id", []int64{1, 2, 3, 4, 5}, nil)
	fp := fingerprint.Fingerprint{
		Dtype:       fingerprint.DtypeInt64,
		Patterns:    []string{"auto_increment_id"},
		UniqueRatio: 1.0,
	}

	result := inf.Infer(col, fp)
	assert.Equal(t, semtype.Identifier, result.SemanticType)
}

func TestInfer_NoPatternsOrDtypeSignalStillReturnsAResult(t *testing.T) {
	inf := newInferrer()
	col := column.NewStringColumn("blob_column_xyz", []string{"q", "w", "e"}, nil)
	fp := fingerprint.Fingerprint{Dtype: fingerprint.DtypeString}

	result := inf.Infer(col, fp)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 0.99)
}

func TestInfer_AlternativesAreSortedDescendingByConfidence(t *testing.T) {
	inf := newInferrer()
	col := column.NewStringColumn("contact_info", []string{"a@example.com"}, nil)
	fp := fingerprint.Fingerprint{Dtype: fingerprint.DtypeString, Patterns: []string{"email", "phone", "uuid"}}

	result := inf.Infer(col, fp)
	for i := 1; i < len(result.Alternatives); i++ {
		assert.GreaterOrEqual(t, result.Alternatives[i-1].Confidence, result.Alternatives[i].Confidence)
	}
}
