// Package confidence implements the Confidence Calculator & Aggregator
// (spec.md §4.8): weighted, time-decayed confidence from an evidence set,
// plus a recommendation derived from thresholds and conflict detection.
//
// Grounded on the teacher's internal/referee/referee.go and
// referee_const.go (threshold-table, rules-struct pattern with named
// constants and doc comments explaining the statistical rationale for each
// threshold), generalized from the teacher's fixed Referee interface to
// this module's evidence-weighted formula.
//
// Package note (Open Question #2, see DESIGN.md): the formula below
// combines a baseline score with a consistency score via arithmetic mean,
// as spec.md §4.8 specifies. Because the consistency score is averaged in
// rather than multiplied, a lone low-weight positive item already scores
// above 0.5 (a single anchor_creation record gives about 0.58), while a
// lone negative item scores at most 0.35.
package confidence

import (
	"math"
	"sync/atomic"

	"sac/domain/evidence"
	"sac/internal/config"
)

// Components breaks down how a confidence value was derived, returned
// alongside the scalar so callers can audit or display it.
type Components struct {
	Baseline        float64
	PositiveWeight  float64
	NegativeWeight  float64
	MeanDecay       float64
	MeanReliability float64
	Consistency     float64
}

// Result is the Calculator's output (spec.md §4.8).
type Result struct {
	Value         float64
	Components    Components
	EvidenceCount int
	LastUpdated   int64 // unix millis of the clock reading used for decay
}

// Calculator computes confidence from an evidence list and a clock
// reading. Rules are held behind an atomic.Pointer so UpdateRules can swap
// them without readers observing a half-updated table (SPEC_FULL
// Supplemental Feature #1; spec.md §9 Design Notes).
type Calculator struct {
	rules atomic.Pointer[config.ConfidenceRules]
}

// New constructs a Calculator with the given initial rules.
func New(rules config.ConfidenceRules) *Calculator {
	c := &Calculator{}
	r := rules.Clone()
	c.rules.Store(&r)
	return c
}

// UpdateRules atomically swaps the rules table.
func (c *Calculator) UpdateRules(rules config.ConfidenceRules) {
	r := rules.Clone()
	c.rules.Store(&r)
}

// Rules returns the currently active rules (a clone, safe to mutate).
func (c *Calculator) Rules() config.ConfidenceRules {
	return c.rules.Load().Clone()
}

// Confidence computes confidence for records as of `nowMillis` (unix
// millis). With zero evidence, returns confidence 0.5 and neutral
// components, per spec.md §4.8.
func (c *Calculator) Confidence(records []evidence.Record, nowMillis int64) Result {
	rules := c.rules.Load()

	if len(records) == 0 {
		return Result{
			Value:         0.5,
			Components:    Components{Baseline: 0.5, Consistency: 0.5},
			EvidenceCount: 0,
			LastUpdated:   nowMillis,
		}
	}

	var posSum, negSum float64
	var decaySum, relSum, weightSum float64
	posCount, negCount := 0, 0

	for _, r := range records {
		kindWeight := rules.KindWeights[string(r.Kind)]
		sourceMult := rules.SourceWeights[string(r.Source)]
		ageDays := float64(nowMillis-r.Timestamp.Time().UnixMilli()) / 86400000.0
		if ageDays < 0 {
			ageDays = 0
		}
		decay := math.Pow(rules.DecayFactor, ageDays)

		effective := math.Abs(kindWeight) * sourceMult * decay
		if kindWeight >= 0 {
			posSum += effective
			posCount++
		} else {
			negSum += effective
			negCount++
		}
		decaySum += decay
		relSum += sourceMult
		weightSum++
	}

	baseline := 0.5 + 0.3*(posSum-negSum)

	meanDecay := decaySum / weightSum
	meanReliability := relSum / weightSum

	afterDecayReliability := baseline * meanDecay * meanReliability

	var consistency float64
	total := posCount + negCount
	switch {
	case total > 0 && float64(posCount)/float64(total) >= 0.6:
		consistency = 0.8
	case total > 0 && float64(negCount)/float64(total) >= 0.6:
		consistency = 0.2
	default:
		consistency = 0.5
	}

	value := (afterDecayReliability + consistency) / 2
	value = clamp01(value)

	return Result{
		Value: value,
		Components: Components{
			Baseline:        baseline,
			PositiveWeight:  posSum,
			NegativeWeight:  negSum,
			MeanDecay:       meanDecay,
			MeanReliability: meanReliability,
			Consistency:     consistency,
		},
		EvidenceCount: len(records),
		LastUpdated:   nowMillis,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Recommendation is the Aggregator's output (spec.md §4.8).
type Recommendation string

const (
	RecAccept    Recommendation = "accept"
	RecReview    Recommendation = "review"
	RecReject    Recommendation = "reject"
	RecDeprecate Recommendation = "deprecate"
	RecMonitor   Recommendation = "monitor"
)

// Recommend derives a Recommendation from a confidence Result plus the
// conflict signal (>=1 positive and >=1 negative evidence within the
// configured conflict window) and whether human input resolved it,
// applying spec.md §4.8's rules in priority order.
func (c *Calculator) Recommend(result Result, hasConflict bool, humanResolved bool, hasHumanApproval bool, hasCrossValidationOrTemporalStability bool, evidenceCount int) Recommendation {
	rules := c.rules.Load()
	v := result.Value

	switch {
	case hasConflict && !humanResolved:
		return RecReview
	case v >= rules.AcceptConfidence && hasHumanApproval:
		return RecAccept
	case v >= rules.AcceptCrossValidation && hasCrossValidationOrTemporalStability:
		return RecAccept
	case v <= rules.RejectConfidence, hasConflict && humanResolved:
		return RecReject
	case v <= rules.DeprecateConfidence && evidenceCount > 10:
		return RecDeprecate
	case v >= rules.MonitorLow && v <= rules.MonitorHigh:
		return RecMonitor
	default:
		return RecReview
	}
}

// HasConflict reports whether records contains at least one positive and
// one negative-weighted evidence item within window (milliseconds) before
// nowMillis (spec.md §4.8: "conflict defined as >=1 positive and >=1
// negative evidence within the last 24 hours").
func HasConflict(rules config.ConfidenceRules, records []evidence.Record, nowMillis int64, windowMillis int64) bool {
	pos, neg := false, false
	for _, r := range records {
		age := nowMillis - r.Timestamp.Time().UnixMilli()
		if age < 0 || age > windowMillis {
			continue
		}
		w := rules.KindWeights[string(r.Kind)]
		if w >= 0 {
			pos = true
		} else {
			neg = true
		}
	}
	return pos && neg
}
