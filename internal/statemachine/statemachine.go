// Package statemachine implements the anchor lifecycle state machine
// (spec.md §4.9): proposed -> accepted / monitoring / deprecated / rejected,
// driven by evidence kind and the current confidence/recommendation.
//
// Grounded on the teacher's internal/referee package for the
// rules-struct-with-atomic-swap pattern (referee.go's threshold constants,
// referee_const.go's documented rationale per threshold), generalized to a
// full transition table rather than the teacher's flat pass/fail gate.
package statemachine

import (
	"sync/atomic"

	"sac/domain/anchor"
	"sac/domain/core"
	"sac/domain/evidence"
	"sac/internal/confidence"
	"sac/internal/config"
	"sac/internal/errs"
)

// Machine evaluates and applies state transitions under a swappable rules
// table, held behind an atomic.Pointer so UpdateRules never exposes a
// half-updated table to a concurrent reader (SPEC_FULL Supplemental
// Feature #1; spec.md §9 Design Notes).
type Machine struct {
	rules atomic.Pointer[config.StateMachineRules]
}

// New constructs a Machine with the given initial rules.
func New(rules config.StateMachineRules) *Machine {
	m := &Machine{}
	m.rules.Store(&rules)
	return m
}

// UpdateRules atomically swaps the active rules table.
func (m *Machine) UpdateRules(rules config.StateMachineRules) {
	m.rules.Store(&rules)
}

// Rules returns the active rules.
func (m *Machine) Rules() config.StateMachineRules {
	return *m.rules.Load()
}

// Trigger is the input driving one transition evaluation: the evidence
// kind that arrived, plus the confidence/recommendation computed from the
// full evidence set after that arrival.
type Trigger struct {
	Kind           evidence.Kind
	Confidence     float64
	Recommendation confidence.Recommendation
	// MonitoringElapsed is true once an anchor in `monitoring` has sat
	// there for at least rules.MonitoringDuration.
	MonitoringElapsed bool
}

// Next computes the next state for `current` given trigger, or ok=false if
// no rule fires (the anchor stays in its current state). This is a pure
// function; it does not mutate the anchor. Next + Apply together give
// the "a state transition writes exactly one evidence record; unsuccessful
// transitions write none" invariant (spec.md §3) its natural shape: Next
// decides, Apply commits only when Next said yes.
func (m *Machine) Next(current anchor.State, t Trigger) (anchor.State, bool) {
	r := m.Rules()

	switch current {
	case anchor.StateProposed:
		switch {
		case t.Kind == evidence.KindHumanApproval:
			return anchor.StateAccepted, true
		case t.Kind == evidence.KindHumanRejection:
			return anchor.StateRejected, true
		case t.Confidence >= r.AcceptThreshold:
			return anchor.StateAccepted, true
		case t.Confidence <= r.RejectThreshold:
			return anchor.StateRejected, true
		case t.Recommendation == confidence.RecMonitor:
			return anchor.StateMonitoring, true
		}

	case anchor.StateMonitoring:
		switch {
		case t.Kind == evidence.KindHumanApproval:
			return anchor.StateAccepted, true
		case t.Kind == evidence.KindHumanRejection:
			return anchor.StateRejected, true
		case t.Confidence >= r.AcceptThreshold:
			return anchor.StateAccepted, true
		case t.Confidence <= r.RejectThreshold:
			return anchor.StateRejected, true
		case t.MonitoringElapsed && t.Confidence < 0.5:
			return anchor.StateDeprecated, true
		case t.MonitoringElapsed && t.Confidence >= 0.5:
			return anchor.StateAccepted, true
		}

	case anchor.StateAccepted:
		switch {
		case t.Kind == evidence.KindHumanRejection:
			return anchor.StateDeprecated, true
		case t.Confidence <= r.RejectThreshold:
			return anchor.StateDeprecated, true
		case t.Recommendation == confidence.RecDeprecate:
			return anchor.StateDeprecated, true
		}

	case anchor.StateDeprecated, anchor.StateRejected:
		if t.Kind == evidence.KindHumanApproval && t.Confidence > r.OverrideConfidence {
			return anchor.StateMonitoring, true
		}
	}

	return current, false
}

// NextReviewDue computes the next_review_due timestamp for a state,
// relative to `at` (spec.md §4.9: "proposed -> 7 days, monitoring ->
// configured duration, accepted -> 60 days, others -> none").
func (m *Machine) NextReviewDue(state anchor.State, at core.Timestamp) (core.Timestamp, bool) {
	r := m.Rules()
	switch state {
	case anchor.StateProposed:
		return at.Add(r.ProposedReviewAfter), true
	case anchor.StateMonitoring:
		return at.Add(r.MonitoringDuration), true
	case anchor.StateAccepted:
		return at.Add(r.AcceptedReviewAfter), true
	default:
		return core.Timestamp{}, false
	}
}

// Apply commits a transition onto a (copy of an) anchor: updates
// State/StateSince/History/NextReviewDue. Callers are responsible for
// persisting the anchor and appending exactly one state_transition
// evidence record when ok was true from Next.
func (m *Machine) Apply(a anchor.Anchor, to anchor.State, at core.Timestamp, reason string) anchor.Anchor {
	a.ApplyTransition(to, at, reason)
	if due, ok := m.NextReviewDue(to, at); ok {
		a.NextReviewDue = due
		a.HasNextReview = true
	} else {
		a.HasNextReview = false
	}
	return a
}

// ValidateTransition is a defensive check available to Apply's callers: an
// anchor whose current state does not match what the caller believes it to
// be is an invariant violation (spec.md §7), never silently corrected.
func ValidateTransition(a anchor.Anchor, expectedCurrent anchor.State) error {
	if a.State != expectedCurrent {
		return errs.Invariant("anchor %s expected state %s, found %s", a.ID, expectedCurrent, a.State)
	}
	return nil
}
