package confidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sac/domain/core"
	"sac/domain/evidence"
	"sac/internal/config"
)

func newCalc() *Calculator {
	return New(config.DefaultConfidenceRules())
}

func recordAt(kind evidence.Kind, source evidence.Source, at time.Time) evidence.Record {
	return evidence.New(core.AnchorID("sca_0000000000000001"), kind, source, core.NewTimestamp(at))
}

func TestConfidence_ZeroEvidenceIsNeutral(t *testing.T) {
	c := newCalc()
	result := c.Confidence(nil, time.Now().UnixMilli())
	assert.Equal(t, 0.5, result.Value)
	assert.Equal(t, 0.5, result.Components.Baseline)
	assert.Equal(t, 0.5, result.Components.Consistency)
	assert.Equal(t, 0, result.EvidenceCount)
}

func TestConfidence_SingleFreshAnchorCreation(t *testing.T) {
	c := newCalc()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []evidence.Record{recordAt(evidence.KindAnchorCreation, evidence.SourceAutomatedAnalysis, now)}

	result := c.Confidence(records, now.UnixMilli())
	// kind_weight 0.1 * source_multiplier 0.7 * decay(age=0)=1 -> effective 0.07
	// baseline = 0.5 + 0.3*0.07 = 0.521; afterDecayReliability = 0.521*1*0.7 = 0.3647
	// consistency = 0.8 (100% positive); value = (0.3647+0.8)/2
	assert.InDelta(t, 0.58235, result.Value, 1e-4)
}

func TestConfidence_DecaysWithAge(t *testing.T) {
	c := newCalc()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := []evidence.Record{recordAt(evidence.KindStatisticalMatch, evidence.SourceStatisticalModel, now)}
	stale := []evidence.Record{recordAt(evidence.KindStatisticalMatch, evidence.SourceStatisticalModel, now.Add(-30*24*time.Hour))}

	freshResult := c.Confidence(fresh, now.UnixMilli())
	staleResult := c.Confidence(stale, now.UnixMilli())
	assert.Greater(t, freshResult.Value, staleResult.Value)
}

func TestConfidence_NegativeEvidenceLowersValue(t *testing.T) {
	c := newCalc()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	positive := []evidence.Record{recordAt(evidence.KindHumanApproval, evidence.SourceHumanFeedback, now)}
	negative := []evidence.Record{recordAt(evidence.KindHumanRejection, evidence.SourceHumanFeedback, now)}

	posResult := c.Confidence(positive, now.UnixMilli())
	negResult := c.Confidence(negative, now.UnixMilli())
	assert.Greater(t, posResult.Value, negResult.Value)
}

func TestRecommend_PriorityOrder(t *testing.T) {
	c := newCalc()
	rules := c.Rules()

	// Conflict without human resolution always wins, regardless of value.
	assert.Equal(t, RecReview, c.Recommend(Result{Value: rules.AcceptConfidence}, true, false, true, false, 1))

	// High confidence plus human approval accepts even with a conflict flag
	// cleared by human resolution having already happened upstream.
	assert.Equal(t, RecAccept, c.Recommend(Result{Value: rules.AcceptConfidence}, false, false, true, false, 1))

	// Cross-validation/temporal stability accepts at a lower bar than a
	// lone human approval.
	assert.Equal(t, RecAccept, c.Recommend(Result{Value: rules.AcceptCrossValidation}, false, false, false, true, 1))

	assert.Equal(t, RecReject, c.Recommend(Result{Value: rules.RejectConfidence}, false, false, false, false, 1))
	assert.Equal(t, RecDeprecate, c.Recommend(Result{Value: rules.DeprecateConfidence}, false, false, false, false, 11))
	assert.Equal(t, RecMonitor, c.Recommend(Result{Value: (rules.MonitorLow + rules.MonitorHigh) / 2}, false, false, false, false, 1))
}

func TestHasConflict_RequiresBothSignsWithinWindow(t *testing.T) {
	rules := config.DefaultConfidenceRules()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := rules.ConflictWindow.Milliseconds()

	onlyPositive := []evidence.Record{recordAt(evidence.KindStatisticalMatch, evidence.SourceStatisticalModel, now)}
	assert.False(t, HasConflict(rules, onlyPositive, now.UnixMilli(), window))

	both := []evidence.Record{
		recordAt(evidence.KindStatisticalMatch, evidence.SourceStatisticalModel, now),
		recordAt(evidence.KindHumanRejection, evidence.SourceHumanFeedback, now),
	}
	assert.True(t, HasConflict(rules, both, now.UnixMilli(), window))

	outsideWindow := []evidence.Record{
		recordAt(evidence.KindStatisticalMatch, evidence.SourceStatisticalModel, now),
		recordAt(evidence.KindHumanRejection, evidence.SourceHumanFeedback, now.Add(-48*time.Hour)),
	}
	assert.False(t, HasConflict(rules, outsideWindow, now.UnixMilli(), window))
}

func TestUpdateRules_AffectsSubsequentCalls(t *testing.T) {
	c := newCalc()
	rules := c.Rules()
	rules.DecayFactor = 1.0
	c.UpdateRules(rules)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	old := []evidence.Record{recordAt(evidence.KindStatisticalMatch, evidence.SourceStatisticalModel, now.Add(-365*24*time.Hour))}
	result := c.Confidence(old, now.UnixMilli())
	assert.Equal(t, 1.0, result.Components.MeanDecay, "a decay factor of 1.0 must not discount old evidence")
}
