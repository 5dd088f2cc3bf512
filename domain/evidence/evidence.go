// Package evidence defines the Evidence record type (spec.md §3, §4.7).
package evidence

import "sac/domain/core"

// Kind enumerates the event types an Evidence record can carry.
//
// The source spec's state machine occasionally reused anchor_creation to
// signal a state transition; this module resolves that open question (see
// DESIGN.md) by introducing KindStateTransition as a distinct kind rather
// than overloading KindAnchorCreation.
type Kind string

const (
	KindAnchorCreation    Kind = "anchor_creation"
	KindAnchorDeprecation Kind = "anchor_deprecation"
	KindStatisticalMatch  Kind = "statistical_match"
	KindSchemaConsistency Kind = "schema_consistency"
	KindTemporalStability Kind = "temporal_stability"
	KindCrossValidation   Kind = "cross_validation"
	KindHumanApproval     Kind = "human_approval"
	KindHumanRejection    Kind = "human_rejection"
	KindStateTransition   Kind = "state_transition"
)

// Positive reports whether this kind, by default, contributes positively
// to confidence. The Aggregator's conflict detection
// (confidence.HasConflict) does not call it: it takes the sign from
// ConfidenceRules.KindWeights, which also supplies the signed magnitude.
func (k Kind) Positive() bool {
	switch k {
	case KindHumanRejection, KindAnchorDeprecation:
		return false
	default:
		return true
	}
}

// Source enumerates where an Evidence record originated.
type Source string

const (
	SourceHumanFeedback     Source = "human_feedback"
	SourceAutomatedAnalysis Source = "automated_analysis"
	SourceCrossReference    Source = "cross_reference"
	SourceStatisticalModel  Source = "statistical_model"
	SourceSystemValidation  Source = "system_validation"
)

// Record is an append-only, immutable-once-written record about one
// anchor (spec.md §3).
type Record struct {
	ID        core.ID
	Timestamp core.Timestamp
	Kind      Kind
	Source    Source

	// AnchorID is always present in Data (spec.md §6: "data always
	// contains anchor_id").
	AnchorID core.AnchorID

	// Confidence is an optional score carried by this specific record,
	// e.g. a statistical_match's match confidence.
	Confidence    float64
	HasConfidence bool

	// Details is the opaque free-form payload, e.g. {"from": "proposed",
	// "to": "accepted"} for a state_transition record.
	Details map[string]any

	// Metadata is optional and not interpreted by the core.
	Metadata map[string]any
}

// New builds a Record, stamping a fresh time-sortable ID and the given
// timestamp. Confidence is left unset; callers set it via WithConfidence.
func New(anchorID core.AnchorID, kind Kind, source Source, now core.Timestamp) Record {
	return Record{
		ID:        core.NewID(),
		Timestamp: now,
		Kind:      kind,
		Source:    source,
		AnchorID:  anchorID,
		Details:   map[string]any{},
	}
}

// WithConfidence attaches a confidence score to the record and returns it,
// for call-site chaining.
func (r Record) WithConfidence(c float64) Record {
	r.Confidence = c
	r.HasConfidence = true
	return r
}

// WithDetail sets a key in Details and returns the record.
func (r Record) WithDetail(key string, value any) Record {
	if r.Details == nil {
		r.Details = map[string]any{}
	}
	r.Details[key] = value
	return r
}
