// Package replay implements the Replay Engine (spec.md §4.10): a pure,
// chronological re-evaluation of an evidence log for audit. It folds each
// record into a running cumulative set, recomputes confidence after every
// step with internal/confidence, and simulates state transitions with the
// same internal/statemachine logic the live system uses — Replay never
// mutates the Anchor Store or Evidence Log.
//
// Grounded on the teacher's internal/analysis/sequence_manager.go (folding
// a time-ordered sequence of steps into a running, inspectable state) and
// internal/referee/referee.go's rules-driven evaluation, generalized from
// the teacher's single-pass analysis to a step-by-step timeline with a
// delta at each step.
package replay

import (
	"context"
	"sort"

	"sac/domain/anchor"
	"sac/domain/core"
	"sac/domain/evidence"
	"sac/internal/confidence"
	"sac/internal/config"
	"sac/internal/statemachine"
)

// Step is one folded point in an anchor's timeline.
type Step struct {
	Index                int
	Record               evidence.Record
	CumulativeConfidence confidence.Result
	Delta                float64
	State                anchor.State
	Transitioned         bool
}

// AnchorTimeline is the Replay Engine's per-anchor result (spec.md §4.10).
type AnchorTimeline struct {
	AnchorID        core.AnchorID
	Timeline        []Step
	EvidenceCount   int
	FinalConfidence float64
	FinalState      anchor.State
}

// Options selects the window and anchors to replay (spec.md §4.10).
type Options struct {
	From                      core.Timestamp
	HasFrom                   bool
	To                        core.Timestamp
	HasTo                     bool
	AnchorIDs                 []core.AnchorID // empty means every anchor present in the records
	IncludeConfidenceEvolution bool
}

// Result is the overall Replay Engine output: one AnchorTimeline per anchor
// touched by the filtered record set.
type Result struct {
	Anchors   []AnchorTimeline
	Cancelled bool
}

// Engine replays evidence records through the same confidence formula and
// state machine rules the live system uses.
type Engine struct {
	calc    *confidence.Calculator
	machine *statemachine.Machine
}

// New constructs an Engine sharing calc and machine with the live system,
// so a replay's numbers are reproducible against the same rules tables.
func New(calc *confidence.Calculator, machine *statemachine.Machine) *Engine {
	return &Engine{calc: calc, machine: machine}
}

// Replay folds records (any order; Replay re-sorts) into per-anchor
// timelines (spec.md §4.10). Replaying an empty slice of records for a
// requested anchor id yields an AnchorTimeline with EvidenceCount 0 and
// FinalConfidence 0.5, matching the Confidence Calculator's own
// zero-evidence convention (spec.md §8).
func (e *Engine) Replay(ctx context.Context, records []evidence.Record, opts Options) Result {
	select {
	case <-ctx.Done():
		return Result{Cancelled: true}
	default:
	}

	filtered := make([]evidence.Record, 0, len(records))
	for _, r := range records {
		if opts.HasFrom && r.Timestamp.Before(opts.From) {
			continue
		}
		if opts.HasTo && r.Timestamp.After(opts.To) {
			continue
		}
		filtered = append(filtered, r)
	}

	byAnchor := map[core.AnchorID][]evidence.Record{}
	order := []core.AnchorID{}
	for _, r := range filtered {
		if _, ok := byAnchor[r.AnchorID]; !ok {
			order = append(order, r.AnchorID)
		}
		byAnchor[r.AnchorID] = append(byAnchor[r.AnchorID], r)
	}

	if len(opts.AnchorIDs) > 0 {
		wanted := make(map[core.AnchorID]bool, len(opts.AnchorIDs))
		for _, id := range opts.AnchorIDs {
			wanted[id] = true
			if _, ok := byAnchor[id]; !ok {
				byAnchor[id] = nil
				order = append(order, id)
			}
		}
		filteredOrder := order[:0:0]
		for _, id := range order {
			if wanted[id] {
				filteredOrder = append(filteredOrder, id)
			}
		}
		order = filteredOrder
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	rules := e.machine.Rules()
	out := make([]AnchorTimeline, 0, len(order))
	for _, id := range order {
		select {
		case <-ctx.Done():
			return Result{Cancelled: true}
		default:
		}
		out = append(out, e.replayAnchor(id, byAnchor[id], rules))
	}

	return Result{Anchors: out}
}

func (e *Engine) replayAnchor(id core.AnchorID, records []evidence.Record, rules config.StateMachineRules) AnchorTimeline {
	sorted := append([]evidence.Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	if len(sorted) == 0 {
		return AnchorTimeline{
			AnchorID:        id,
			EvidenceCount:   0,
			FinalConfidence: 0.5,
			FinalState:      anchor.StateProposed,
		}
	}

	state := anchor.StateProposed
	stateSince := sorted[0].Timestamp
	prevConfidence := 0.5
	timeline := make([]Step, 0, len(sorted))

	for i, rec := range sorted {
		cumulative := sorted[:i+1]
		nowMillis := rec.Timestamp.Time().UnixMilli()
		result := e.calc.Confidence(cumulative, nowMillis)

		confRules := e.calc.Rules()
		conflict := confidence.HasConflict(confRules, cumulative, nowMillis, confRules.ConflictWindow.Milliseconds())
		humanResolved := hasHumanFeedback(cumulative)
		hasApproval := hasKind(cumulative, evidence.KindHumanApproval)
		hasCrossOrTemporal := hasKind(cumulative, evidence.KindCrossValidation) || hasKind(cumulative, evidence.KindTemporalStability)
		recommendation := e.calc.Recommend(result, conflict, humanResolved, hasApproval, hasCrossOrTemporal, len(cumulative))

		elapsed := state == anchor.StateMonitoring && rec.Timestamp.Sub(stateSince) >= rules.MonitoringDuration

		trigger := statemachine.Trigger{
			Kind:              rec.Kind,
			Confidence:        result.Value,
			Recommendation:    recommendation,
			MonitoringElapsed: elapsed,
		}

		next, transitioned := e.machine.Next(state, trigger)
		if transitioned {
			state = next
			stateSince = rec.Timestamp
		}

		timeline = append(timeline, Step{
			Index:                i,
			Record:               rec,
			CumulativeConfidence: result,
			Delta:                result.Value - prevConfidence,
			State:                state,
			Transitioned:         transitioned,
		})
		prevConfidence = result.Value
	}

	last := timeline[len(timeline)-1]
	return AnchorTimeline{
		AnchorID:        id,
		Timeline:        timeline,
		EvidenceCount:   len(sorted),
		FinalConfidence: last.CumulativeConfidence.Value,
		FinalState:      state,
	}
}

func hasKind(records []evidence.Record, kind evidence.Kind) bool {
	for _, r := range records {
		if r.Kind == kind {
			return true
		}
	}
	return false
}

func hasHumanFeedback(records []evidence.Record) bool {
	for _, r := range records {
		if r.Source == evidence.SourceHumanFeedback {
			return true
		}
	}
	return false
}
