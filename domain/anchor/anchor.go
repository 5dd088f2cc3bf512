// Package anchor defines the Anchor and AnchorState value types (spec.md §3).
package anchor

import "sac/domain/core"

// State is one of the anchor lifecycle states (spec.md §3, §4.9).
type State string

const (
	StateProposed   State = "proposed"
	StateAccepted   State = "accepted"
	StateMonitoring State = "monitoring"
	StateDeprecated State = "deprecated"
	StateRejected   State = "rejected"
)

// Transition records one state change in an anchor's history.
type Transition struct {
	From      State
	To        State
	At        core.Timestamp
	Reason    string
}

// Anchor is a long-lived identity for a column-shaped-thing across
// datasets and time (spec.md §3).
type Anchor struct {
	ID         core.AnchorID
	Dataset    string
	ColumnName string

	// Fingerprint is the canonical serialized baseline fingerprint
	// string, stored verbatim (domain/fingerprint.Fingerprint.Canonical()).
	Fingerprint string

	FirstSeen core.Day
	LastSeen  core.Day

	// MappedConcept is an optional dotted semantic concept id, e.g.
	// "identity.email".
	MappedConcept string
	HasConcept    bool

	Confidence    float64
	HasConfidence bool

	State          State
	StateSince     core.Timestamp
	History        []Transition
	NextReviewDue  core.Timestamp
	HasNextReview  bool
}

// New creates a freshly proposed anchor. anchor_id must already have been
// computed by the caller via core.NewAnchorID(dataset, columnName,
// fingerprint) — this constructor does not recompute it, keeping the
// invariant "anchor_id is a pure function of (dataset, column_name,
// fingerprint) at creation time" explicit at the call site.
func New(id core.AnchorID, dataset, columnName, fingerprintCanonical string, now core.Timestamp) Anchor {
	day := core.NewDay(now.Time())
	return Anchor{
		ID:          id,
		Dataset:     dataset,
		ColumnName:  columnName,
		Fingerprint: fingerprintCanonical,
		FirstSeen:   day,
		LastSeen:    day,
		State:       StateProposed,
		StateSince:  now,
	}
}

// Touch advances LastSeen to now without changing state, used whenever an
// anchor is re-observed during reconciliation (spec.md §3: "updated (only
// last_seen and confidence) by the State Machine").
func (a *Anchor) Touch(now core.Timestamp) {
	day := core.NewDay(now.Time())
	if a.LastSeen.Before(day) {
		a.LastSeen = day
	}
}

// ApplyTransition appends a Transition and updates State/StateSince. The
// caller (internal/statemachine) is responsible for ensuring the
// transition is legal under the current rules table.
func (a *Anchor) ApplyTransition(to State, at core.Timestamp, reason string) {
	a.History = append(a.History, Transition{From: a.State, To: to, At: at, Reason: reason})
	a.State = to
	a.StateSince = at
}
