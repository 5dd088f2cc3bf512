package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions_AreValid(t *testing.T) {
	assert.NoError(t, DefaultFingerprintOptions().Validate())
	assert.NoError(t, DefaultMatcherWeights().Validate())
	assert.NoError(t, DefaultReconcileOptions().Validate())
	assert.NoError(t, DefaultDriftOptions().Validate())
	assert.NoError(t, DefaultConfidenceRules().Validate())
	assert.NoError(t, DefaultStateMachineRules().Validate())
}

func TestFingerprintOptions_Validate(t *testing.T) {
	valid := DefaultFingerprintOptions()

	bad := valid
	bad.SamplePrefix = 0
	assert.Error(t, bad.Validate())

	bad = valid
	bad.MaxSampleValues = -1
	assert.Error(t, bad.Validate())

	bad = valid
	bad.PatternMatchThreshold = 1.5
	assert.Error(t, bad.Validate())

	bad = valid
	bad.ThoroughRowCap = 0
	assert.Error(t, bad.Validate())
}

func TestMatcherWeights_Validate(t *testing.T) {
	valid := DefaultMatcherWeights()

	bad := valid
	bad.JaroWinklerWeight = -1
	assert.Error(t, bad.Validate())

	allZero := MatcherWeights{}
	assert.Error(t, allZero.Validate())

	bad = valid
	bad.JaroWinklerMaxPrefix = -1
	assert.Error(t, bad.Validate())
}

func TestReconcileOptions_Validate(t *testing.T) {
	valid := DefaultReconcileOptions()

	bad := valid
	bad.ConfidenceThreshold = 1.5
	assert.Error(t, bad.Validate())

	bad = valid
	bad.DriftTolerance = -0.1
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Strategy = "unknown"
	assert.Error(t, bad.Validate())
}

func TestReconcileOptions_ScoreWeightsSumToOne(t *testing.T) {
	for _, strategy := range []ReconcileStrategy{StrategyConservative, StrategyBalanced, StrategyAggressive} {
		opts := DefaultReconcileOptions()
		opts.Strategy = strategy
		dtype, name, fp, sample := opts.ScoreWeights()
		assert.InDelta(t, 1.0, dtype+name+fp+sample, 1e-9, "weights for strategy %q must sum to 1", strategy)
	}
}

func TestDriftOptions_Validate(t *testing.T) {
	valid := DefaultDriftOptions()

	bad := valid
	bad.SignificanceLevel = 0
	assert.Error(t, bad.Validate())

	bad = valid
	bad.PSIBins = 0
	assert.Error(t, bad.Validate())

	bad = valid
	bad.PSIMediumThreshold = 0.05
	bad.PSILowThreshold = 0.1
	assert.Error(t, bad.Validate(), "medium threshold below low threshold must be rejected")
}

func TestConfidenceRules_Validate(t *testing.T) {
	valid := DefaultConfidenceRules()

	bad := valid.Clone()
	bad.DecayFactor = 0
	assert.Error(t, bad.Validate())

	bad = valid.Clone()
	bad.KindWeights = nil
	assert.Error(t, bad.Validate())

	bad = valid.Clone()
	bad.SourceWeights = map[string]float64{}
	assert.Error(t, bad.Validate())

	bad = valid.Clone()
	bad.MonitorLow, bad.MonitorHigh = 0.8, 0.4
	assert.Error(t, bad.Validate())
}

func TestConfidenceRules_CloneIsIndependent(t *testing.T) {
	original := DefaultConfidenceRules()
	clone := original.Clone()
	clone.KindWeights["human_approval"] = 0

	assert.NotEqual(t, original.KindWeights["human_approval"], clone.KindWeights["human_approval"])
}

func TestStateMachineRules_Validate(t *testing.T) {
	valid := DefaultStateMachineRules()

	bad := valid
	bad.AcceptThreshold = bad.RejectThreshold
	assert.Error(t, bad.Validate())

	bad = valid
	bad.MonitoringDuration = 0
	assert.Error(t, bad.Validate())
}
