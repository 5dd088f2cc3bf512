// Package config holds the option structs the core's components take as
// constructor arguments. Unlike the teacher's config package, this is a
// library, not a process: there are no environment variables to read. Each
// struct follows the teacher's one-struct-per-concern shape, with a
// Default*() constructor and a Validate() method in place of the teacher's
// single process-wide Load().
package config

import (
	"time"

	"sac/internal/errs"
)

// FingerprintOptions controls the Fingerprinter and Pattern & Statistical
// Inferrer (spec §4.1, §4.2).
type FingerprintOptions struct {
	// SamplePrefix bounds how many leading values are inspected for type
	// inference and statistics. Default 1000.
	SamplePrefix int
	// MaxSampleValues bounds the number of distinct sample values kept in
	// a fingerprint. Default 1000.
	MaxSampleValues int
	// PatternMatchThreshold: a pattern is emitted only when the fraction
	// of sampled non-null values matching it (and its validator) is
	// strictly greater than this value. Default 0.6.
	PatternMatchThreshold float64
	// Thorough disables the fast-mode cap and runs every validator over
	// up to ThoroughRowCap rows instead of SamplePrefix.
	Thorough bool
	// ThoroughRowCap bounds thorough mode. Default 1_000_000.
	ThoroughRowCap int
}

// DefaultFingerprintOptions returns the spec's stated defaults.
func DefaultFingerprintOptions() FingerprintOptions {
	return FingerprintOptions{
		SamplePrefix:           1000,
		MaxSampleValues:        1000,
		PatternMatchThreshold:  0.6,
		Thorough:               false,
		ThoroughRowCap:         1_000_000,
	}
}

func (o FingerprintOptions) Validate() error {
	if o.SamplePrefix <= 0 {
		return errs.Input("fingerprint options: sample prefix must be positive")
	}
	if o.MaxSampleValues <= 0 {
		return errs.Input("fingerprint options: max sample values must be positive")
	}
	if o.PatternMatchThreshold < 0 || o.PatternMatchThreshold > 1 {
		return errs.Input("fingerprint options: pattern match threshold must be in [0,1]")
	}
	if o.ThoroughRowCap <= 0 {
		return errs.Input("fingerprint options: thorough row cap must be positive")
	}
	return nil
}

// MatcherWeights controls the hybrid Matcher (spec §4.3).
type MatcherWeights struct {
	JaroWinklerWeight float64
	LevenshteinWeight float64
	PhoneticWeight    float64

	// JaroWinklerThreshold is smetrics.JaroWinkler's boostThreshold: the
	// minimum Jaro similarity above which the common-prefix boost applies.
	JaroWinklerThreshold float64
	// JaroWinklerMaxPrefix is smetrics.JaroWinkler's prefixSize: how many
	// leading characters count toward the boost.
	JaroWinklerMaxPrefix int

	LevenshteinInsertCost int
	LevenshteinDeleteCost int
	LevenshteinSubstCost  int
}

// DefaultMatcherWeights returns equal weighting across the three algorithms,
// auto-normalized by the Matcher at call time.
func DefaultMatcherWeights() MatcherWeights {
	return MatcherWeights{
		JaroWinklerWeight:     1,
		LevenshteinWeight:     1,
		PhoneticWeight:        1,
		JaroWinklerThreshold:  0.7,
		JaroWinklerMaxPrefix:  4,
		LevenshteinInsertCost: 1,
		LevenshteinDeleteCost: 1,
		LevenshteinSubstCost:  1,
	}
}

func (w MatcherWeights) Validate() error {
	if w.JaroWinklerWeight < 0 || w.LevenshteinWeight < 0 || w.PhoneticWeight < 0 {
		return errs.Input("matcher weights: weights must be non-negative")
	}
	if w.JaroWinklerWeight+w.LevenshteinWeight+w.PhoneticWeight == 0 {
		return errs.Input("matcher weights: at least one weight must be positive")
	}
	if w.JaroWinklerMaxPrefix < 0 {
		return errs.Input("matcher weights: max prefix must be non-negative")
	}
	return nil
}

// ReconcileStrategy selects the Reconciler's weighting profile.
type ReconcileStrategy string

const (
	StrategyConservative ReconcileStrategy = "conservative"
	StrategyBalanced      ReconcileStrategy = "balanced"
	StrategyAggressive    ReconcileStrategy = "aggressive"
)

// ReconcileOptions controls the Reconciler (spec §4.5).
type ReconcileOptions struct {
	ConfidenceThreshold float64
	DriftTolerance      float64
	AllowMultipleMatches bool
	CreateNewAnchors     bool
	Strategy             ReconcileStrategy
}

// DefaultReconcileOptions returns the spec's stated defaults.
func DefaultReconcileOptions() ReconcileOptions {
	return ReconcileOptions{
		ConfidenceThreshold:  0.7,
		DriftTolerance:       0.1,
		AllowMultipleMatches: false,
		CreateNewAnchors:     true,
		Strategy:             StrategyBalanced,
	}
}

func (o ReconcileOptions) Validate() error {
	if o.ConfidenceThreshold < 0 || o.ConfidenceThreshold > 1 {
		return errs.Input("reconcile options: confidence threshold must be in [0,1]")
	}
	if o.DriftTolerance < 0 || o.DriftTolerance > 1 {
		return errs.Input("reconcile options: drift tolerance must be in [0,1]")
	}
	switch o.Strategy {
	case StrategyConservative, StrategyBalanced, StrategyAggressive:
	default:
		return errs.Input("reconcile options: unknown strategy %q", o.Strategy)
	}
	return nil
}

// ScoreWeights returns the per-component weighting for the Reconciler's four
// score components (dtype_match, name_similarity, fingerprint_similarity,
// sample_overlap), normalized to sum to 1.
func (o ReconcileOptions) ScoreWeights() (dtype, name, fingerprint, sample float64) {
	switch o.Strategy {
	case StrategyConservative:
		return 0.35, 0.10, 0.40, 0.15
	case StrategyAggressive:
		return 0.15, 0.45, 0.25, 0.15
	default: // balanced
		return 0.25, 0.25, 0.30, 0.20
	}
}

// DriftOptions controls the Drift Detector (spec §4.6).
type DriftOptions struct {
	SignificanceLevel float64 // alpha for KS and chi-square, default 0.05
	PSIBins           int     // default 10
	PSIMediumThreshold float64 // default 0.25
	PSILowThreshold    float64 // default 0.1
	PatternJaccardThreshold float64 // default 0.3
	MinChiSquareSample int     // minimum baseline and current value counts to run the numeric chi-square test
}

// DefaultDriftOptions returns the spec's stated thresholds.
func DefaultDriftOptions() DriftOptions {
	return DriftOptions{
		SignificanceLevel:      0.05,
		PSIBins:                10,
		PSIMediumThreshold:     0.25,
		PSILowThreshold:        0.1,
		PatternJaccardThreshold: 0.3,
		MinChiSquareSample:     5,
	}
}

func (o DriftOptions) Validate() error {
	if o.SignificanceLevel <= 0 || o.SignificanceLevel >= 1 {
		return errs.Input("drift options: significance level must be in (0,1)")
	}
	if o.PSIBins <= 0 {
		return errs.Input("drift options: psi bins must be positive")
	}
	if o.PSILowThreshold < 0 || o.PSIMediumThreshold < o.PSILowThreshold {
		return errs.Input("drift options: psi thresholds must be ordered and non-negative")
	}
	return nil
}

// ConfidenceRules holds the weighted, time-decayed confidence formula's
// tunables (spec §4.8). Swapped atomically via Calculator.UpdateRules.
type ConfidenceRules struct {
	KindWeights   map[string]float64
	SourceWeights map[string]float64
	DecayFactor   float64 // default 0.95, per day

	AcceptConfidence      float64 // 0.9
	AcceptCrossValidation float64 // 0.8
	RejectConfidence      float64 // 0.2
	DeprecateConfidence   float64 // 0.3
	DeprecateMinEvidence  int     // 10
	MonitorLow            float64 // 0.4
	MonitorHigh           float64 // 0.7
	ConflictWindow        time.Duration // 24h
}

// DefaultConfidenceRules returns the spec's stated weights and thresholds.
func DefaultConfidenceRules() ConfidenceRules {
	return ConfidenceRules{
		KindWeights: map[string]float64{
			"human_approval":      0.8,
			"human_rejection":     -0.9,
			"statistical_match":   0.4,
			"schema_consistency":  0.3,
			"temporal_stability":  0.2,
			"cross_validation":    0.5,
			"anchor_creation":     0.1,
			"anchor_deprecation":  -0.3,
			"state_transition":    0.1,
		},
		SourceWeights: map[string]float64{
			"human_feedback":      1.0,
			"automated_analysis":  0.7,
			"cross_reference":     0.8,
			"statistical_model":   0.6,
			"system_validation":   0.5,
		},
		DecayFactor:           0.95,
		AcceptConfidence:      0.9,
		AcceptCrossValidation: 0.8,
		RejectConfidence:      0.2,
		DeprecateConfidence:   0.3,
		DeprecateMinEvidence:  10,
		MonitorLow:            0.4,
		MonitorHigh:           0.7,
		ConflictWindow:        24 * time.Hour,
	}
}

func (r ConfidenceRules) Validate() error {
	if r.DecayFactor <= 0 || r.DecayFactor > 1 {
		return errs.Input("confidence rules: decay factor must be in (0,1]")
	}
	if len(r.KindWeights) == 0 {
		return errs.Input("confidence rules: kind weights must not be empty")
	}
	if len(r.SourceWeights) == 0 {
		return errs.Input("confidence rules: source weights must not be empty")
	}
	if r.MonitorLow > r.MonitorHigh {
		return errs.Input("confidence rules: monitor range inverted")
	}
	return nil
}

// Clone returns a deep copy so callers can swap rules via UpdateRules
// without aliasing the maps of a rules struct still in use by readers.
func (r ConfidenceRules) Clone() ConfidenceRules {
	out := r
	out.KindWeights = make(map[string]float64, len(r.KindWeights))
	for k, v := range r.KindWeights {
		out.KindWeights[k] = v
	}
	out.SourceWeights = make(map[string]float64, len(r.SourceWeights))
	for k, v := range r.SourceWeights {
		out.SourceWeights[k] = v
	}
	return out
}

// StateMachineRules holds the anchor lifecycle's thresholds and review
// durations (spec §4.9). Swapped atomically via Machine.UpdateRules.
type StateMachineRules struct {
	AcceptThreshold     float64 // 0.8
	RejectThreshold     float64 // 0.2
	MonitoringDuration  time.Duration // default 30 days
	ProposedReviewAfter time.Duration // 7 days
	AcceptedReviewAfter time.Duration // 60 days
	OverrideConfidence  float64 // 0.5, for manual override out of deprecated/rejected
}

// DefaultStateMachineRules returns the spec's stated thresholds.
func DefaultStateMachineRules() StateMachineRules {
	return StateMachineRules{
		AcceptThreshold:     0.8,
		RejectThreshold:     0.2,
		MonitoringDuration:  30 * 24 * time.Hour,
		ProposedReviewAfter: 7 * 24 * time.Hour,
		AcceptedReviewAfter: 60 * 24 * time.Hour,
		OverrideConfidence:  0.5,
	}
}

func (r StateMachineRules) Validate() error {
	if r.AcceptThreshold <= r.RejectThreshold {
		return errs.Input("state machine rules: accept threshold must exceed reject threshold")
	}
	if r.MonitoringDuration <= 0 {
		return errs.Input("state machine rules: monitoring duration must be positive")
	}
	return nil
}
