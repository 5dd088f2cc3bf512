package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sac/domain/column"
	"sac/domain/fingerprint"
	"sac/internal/config"
	"sac/internal/fingerprinter"
)

func newDetector() *Detector {
	return New(config.DefaultDriftOptions())
}

func fingerprintOf(t *testing.T, col column.Column) fingerprint.Fingerprint {
	t.Helper()
	fp := fingerprinter.New(config.DefaultFingerprintOptions()).Fingerprint(col)
	parsed, err := fingerprint.Parse(fp.Canonical())
	require.NoError(t, err)
	return parsed
}

func TestDetect_IdenticalDistributionIsSeverityNone(t *testing.T) {
	d := newDetector()
	values := make([]int64, 200)
	for i := range values {
		values[i] = int64(i % 17)
	}
	baseline := fingerprintOf(t, column.NewIntColumn("x", values, nil))
	current := column.NewIntColumn("x", values, nil)
	currentFP := fingerprintOf(t, current)

	res := d.Detect(baseline, current, currentFP)
	assert.False(t, res.DriftDetected)
	assert.Equal(t, SeverityNone, res.Severity)
}

func TestDetect_EmptyCurrentColumnIsSeverityNone(t *testing.T) {
	d := newDetector()
	baseline := fingerprintOf(t, column.NewIntColumn("x", []int64{1, 2, 3}, nil))
	empty := column.NewIntColumn("x", nil, nil)
	currentFP := fingerprintOf(t, empty)

	res := d.Detect(baseline, empty, currentFP)
	assert.False(t, res.DriftDetected)
	assert.Equal(t, SeverityNone, res.Severity)
	assert.Equal(t, "empty current column", res.Details["reason"])
}

func TestDetect_DtypeMismatchIsHighSeverityWithNoStatTests(t *testing.T) {
	d := newDetector()
	baseline := fingerprintOf(t, column.NewIntColumn("x", []int64{1, 2, 3, 4, 5}, nil))
	current := column.NewStringColumn("x", []string{"a", "b", "c", "d", "e"}, nil)
	currentFP := fingerprintOf(t, current)

	res := d.Detect(baseline, current, currentFP)
	assert.True(t, res.DriftDetected)
	assert.Equal(t, SeverityHigh, res.Severity)
	assert.Contains(t, res.DriftTypes, "type_drift")
	assert.Empty(t, res.TestsRun, "a type mismatch must short-circuit before any statistical test runs")
}

func TestDetect_DistributionShiftIsDetected(t *testing.T) {
	d := newDetector()
	baselineValues := make([]int64, 300)
	for i := range baselineValues {
		baselineValues[i] = int64(100 + i%10)
	}
	baseline := fingerprintOf(t, column.NewIntColumn("latency_ms", baselineValues, nil))

	shiftedValues := make([]int64, 300)
	for i := range shiftedValues {
		shiftedValues[i] = int64(400 + i%10)
	}
	shifted := column.NewIntColumn("latency_ms", shiftedValues, nil)
	shiftedFP := fingerprintOf(t, shifted)

	res := d.Detect(baseline, shifted, shiftedFP)
	assert.True(t, res.DriftDetected)
	assert.NotEqual(t, SeverityNone, res.Severity)

	var ks TestResult
	found := false
	for _, tr := range res.TestsRun {
		if tr.Name == "kolmogorov_smirnov" {
			ks, found = tr, true
		}
	}
	require.True(t, found, "kolmogorov_smirnov must run for a numeric column with enough samples")
	assert.True(t, ks.IsSignificant)
	assert.Less(t, ks.PValue, config.DefaultDriftOptions().SignificanceLevel)
}

func TestDetect_PatternShiftFlaggedViaJaccardDistance(t *testing.T) {
	d := newDetector()
	baselineCol := column.NewStringColumn("contact", []string{
		"a@example.com", "b@example.com", "c@example.com", "d@example.com", "e@example.com", "f@example.com",
	}, nil)
	baseline := fingerprintOf(t, baselineCol)

	current := column.NewStringColumn("contact", []string{
		"555-0100", "555-0101", "555-0102", "555-0103", "555-0104", "555-0105",
	}, nil)
	currentFP := fingerprintOf(t, current)

	res := d.Detect(baseline, current, currentFP)
	assert.Contains(t, res.DriftTypes, "pattern_shift")
	assert.Greater(t, res.Details["pattern_jaccard_distance"].(float64), config.DefaultDriftOptions().PatternJaccardThreshold)
}

func TestDetect_CategoricalFrequencyShiftRunsChiSquare(t *testing.T) {
	d := newDetector()
	baselineValues := make([]string, 0, 200)
	for i := 0; i < 180; i++ {
		baselineValues = append(baselineValues, "active")
	}
	for i := 0; i < 20; i++ {
		baselineValues = append(baselineValues, "inactive")
	}
	baseline := fingerprintOf(t, column.NewStringColumn("status", baselineValues, nil))

	currentValues := make([]string, 0, 200)
	for i := 0; i < 20; i++ {
		currentValues = append(currentValues, "active")
	}
	for i := 0; i < 180; i++ {
		currentValues = append(currentValues, "inactive")
	}
	current := column.NewStringColumn("status", currentValues, nil)
	currentFP := fingerprintOf(t, current)

	res := d.Detect(baseline, current, currentFP)
	assert.True(t, res.DriftDetected)
	assert.Contains(t, res.DriftTypes, "frequency_shift")

	var chi TestResult
	found := false
	for _, tr := range res.TestsRun {
		if tr.Name == "chi_square" {
			chi, found = tr, true
		}
	}
	require.True(t, found)
	assert.True(t, chi.IsSignificant)
}
