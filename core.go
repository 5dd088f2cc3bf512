// Package sac wires the Semantic Anchor Core's components into a single
// explicit Core value — no package-level singleton, per spec.md §9 Design
// Notes ("Module-level global API singletons... replace with explicit
// context values (Core, Store, Log) passed to every operation"). This
// mirrors the teacher's internal/container/container.go: one struct
// holding every dependency, constructed once by the caller and threaded
// through every call instead of resolved lazily from global state.
package sac

import (
	"context"

	"sac/domain/anchor"
	"sac/domain/column"
	"sac/domain/core"
	"sac/domain/evidence"
	"sac/domain/fingerprint"
	"sac/domain/semtype"
	"sac/internal/config"
	"sac/internal/confidence"
	"sac/internal/drift"
	"sac/internal/errs"
	"sac/internal/evidencelog"
	"sac/internal/fingerprinter"
	"sac/internal/inferrer"
	"sac/internal/log"
	"sac/internal/matcher"
	"sac/internal/reconciler"
	"sac/internal/replay"
	"sac/internal/statemachine"
	"sac/internal/store"
)

// Options configures every component a Core wires together. Each config
// field has a corresponding Default*() constructor in internal/config.
type Options struct {
	Fingerprint  config.FingerprintOptions
	Matcher      config.MatcherWeights
	Reconcile    config.ReconcileOptions
	Drift        config.DriftOptions
	Confidence   config.ConfidenceRules
	StateMachine config.StateMachineRules
	InferrerMode inferrer.Mode
	Logger       *log.Logger
}

// DefaultOptions returns every component's spec-stated defaults.
func DefaultOptions() Options {
	return Options{
		Fingerprint:  config.DefaultFingerprintOptions(),
		Matcher:      config.DefaultMatcherWeights(),
		Reconcile:    config.DefaultReconcileOptions(),
		Drift:        config.DefaultDriftOptions(),
		Confidence:   config.DefaultConfidenceRules(),
		StateMachine: config.DefaultStateMachineRules(),
		InferrerMode: inferrer.ModeFast,
		Logger:       log.Noop(),
	}
}

func (o Options) validate() error {
	if err := o.Fingerprint.Validate(); err != nil {
		return err
	}
	if err := o.Matcher.Validate(); err != nil {
		return err
	}
	if err := o.Reconcile.Validate(); err != nil {
		return err
	}
	if err := o.Drift.Validate(); err != nil {
		return err
	}
	if err := o.Confidence.Validate(); err != nil {
		return err
	}
	if err := o.StateMachine.Validate(); err != nil {
		return err
	}
	return nil
}

// Core holds every SAC component and the options they were built from.
type Core struct {
	Store       *store.Store
	EvidenceLog *evidencelog.Log

	Fingerprinter *fingerprinter.Fingerprinter
	Matcher       *matcher.Matcher
	Inferrer      *inferrer.Inferrer
	Reconciler    *reconciler.Reconciler
	Drift         *drift.Detector
	Confidence    *confidence.Calculator
	StateMachine  *statemachine.Machine
	Replay        *replay.Engine

	logger           *log.Logger
	reconcileOptions config.ReconcileOptions
}

// New constructs a Core backed by an anchor store rooted at storeDir and an
// evidence log at evidenceLogPath. Both are created lazily on first write.
func New(storeDir, evidenceLogPath string, opts Options) (*Core, error) {
	if opts.Logger == nil {
		opts.Logger = log.Noop()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	m := matcher.New(opts.Matcher)
	fp := fingerprinter.New(opts.Fingerprint)
	calc := confidence.New(opts.Confidence)
	machine := statemachine.New(opts.StateMachine)

	return &Core{
		Store:            store.New(storeDir),
		EvidenceLog:      evidencelog.New(evidenceLogPath, opts.Logger),
		Fingerprinter:    fp,
		Matcher:          m,
		Inferrer:         inferrer.New(m, opts.InferrerMode),
		Reconciler:       reconciler.New(fp, m),
		Drift:            drift.New(opts.Drift),
		Confidence:       calc,
		StateMachine:     machine,
		Replay:           replay.New(calc, machine),
		logger:           opts.Logger,
		reconcileOptions: opts.Reconcile,
	}, nil
}

// UpdateConfidenceRules atomically swaps the confidence formula's weight
// table (SPEC_FULL Supplemental Feature #1).
func (c *Core) UpdateConfidenceRules(rules config.ConfidenceRules) {
	c.Confidence.UpdateRules(rules)
}

// UpdateStateMachineRules atomically swaps the state machine's thresholds.
func (c *Core) UpdateStateMachineRules(rules config.StateMachineRules) {
	c.StateMachine.UpdateRules(rules)
}

// ColumnOutcome is the per-column result of one Ingest call.
type ColumnOutcome struct {
	ColumnName   string
	AnchorID     core.AnchorID
	Created      bool
	DriftWarning bool
	SemanticType semtype.Result
	Confidence   float64
	State        anchor.State
	Transitioned bool
}

// IngestResult is the output of reconciling one dataset's columns against
// its stored anchors (spec.md §2's per-dataset data flow: Fingerprinter ->
// Inferrer -> Reconciler -> Evidence -> Confidence Aggregator -> State
// Machine -> Anchor Store).
type IngestResult struct {
	Dataset           string
	Outcomes          []ColumnOutcome
	UnmatchedColumns  []string
	ReconcileStrategy config.ReconcileStrategy
	Cancelled         bool
}

// Ingest runs one full reconciliation pass for dataset's columns: it reads
// the dataset's existing anchors, reconciles the new columns against them,
// and for every match or newly created anchor appends evidence, recomputes
// confidence, evaluates a state transition, and persists the anchor —
// exactly the sequence spec.md §2 describes. On context cancellation it
// returns a partial IngestResult with Cancelled=true and persists nothing
// further (spec.md §5).
func (c *Core) Ingest(ctx context.Context, dataset string, columns []column.Column) (IngestResult, error) {
	if dataset == "" {
		return IngestResult{}, errs.Input("ingest: dataset must not be empty")
	}

	existing, err := c.Store.AnchorsForDataset(dataset)
	if err != nil {
		return IngestResult{}, err
	}

	rr, err := c.Reconciler.Reconcile(ctx, dataset, columns, existing, c.Reconcile())
	if err != nil {
		return IngestResult{}, err
	}
	if rr.Cancelled {
		return IngestResult{Dataset: dataset, Cancelled: true}, nil
	}

	colByName := make(map[string]column.Column, len(columns))
	for _, col := range columns {
		colByName[col.Name] = col
	}

	var outcomes []ColumnOutcome

	for _, m := range rr.Matched {
		outcome, err := c.applyMatch(ctx, m, colByName[m.ColumnName])
		if err != nil {
			return IngestResult{}, err
		}
		outcomes = append(outcomes, outcome)
	}

	for _, na := range rr.NewAnchors {
		outcome, err := c.createAnchor(ctx, dataset, na.ColumnName, na.Fingerprint, colByName[na.ColumnName])
		if err != nil {
			return IngestResult{}, err
		}
		outcomes = append(outcomes, outcome)
	}

	return IngestResult{
		Dataset:           dataset,
		Outcomes:          outcomes,
		UnmatchedColumns:  rr.UnmatchedColumns,
		ReconcileStrategy: rr.StrategyUsed,
	}, nil
}

func (c *Core) applyMatch(_ context.Context, m reconciler.Match, col column.Column) (ColumnOutcome, error) {
	a, ok, err := c.Store.Get(m.AnchorID)
	if err != nil {
		return ColumnOutcome{}, err
	}
	if !ok {
		return ColumnOutcome{}, errs.Invariant("reconciler matched unknown anchor %s", m.AnchorID)
	}

	now := core.Now()
	a.Touch(now)
	a.Fingerprint = m.Fingerprint.Canonical()

	conf := m.Confidence
	details := map[string]any{"column_name": m.ColumnName}
	if m.DriftWarning {
		details["drift_warning"] = true
	}
	if _, err := c.EvidenceLog.Append(m.AnchorID, evidence.KindStatisticalMatch, evidence.SourceStatisticalModel, &conf, details); err != nil {
		return ColumnOutcome{}, err
	}

	a, result, transitioned, err := c.evaluateAndTransition(a, evidence.KindStatisticalMatch, now)
	if err != nil {
		return ColumnOutcome{}, err
	}

	if err := c.Store.Save(a); err != nil {
		return ColumnOutcome{}, err
	}

	sem := c.Inferrer.Infer(col, m.Fingerprint)

	return ColumnOutcome{
		ColumnName:   m.ColumnName,
		AnchorID:     m.AnchorID,
		DriftWarning: m.DriftWarning,
		SemanticType: sem,
		Confidence:   result.Value,
		State:        a.State,
		Transitioned: transitioned,
	}, nil
}

func (c *Core) createAnchor(_ context.Context, dataset, columnName string, fp fingerprint.Fingerprint, col column.Column) (ColumnOutcome, error) {
	now := core.Now()
	canonical := fp.Canonical()
	id := core.NewAnchorID(dataset, columnName, canonical)
	a := anchor.New(id, dataset, columnName, canonical, now)

	if _, err := c.EvidenceLog.Append(id, evidence.KindAnchorCreation, evidence.SourceAutomatedAnalysis, nil, map[string]any{"column_name": columnName}); err != nil {
		return ColumnOutcome{}, err
	}

	a, result, transitioned, err := c.evaluateAndTransition(a, evidence.KindAnchorCreation, now)
	if err != nil {
		return ColumnOutcome{}, err
	}

	if err := c.Store.Save(a); err != nil {
		return ColumnOutcome{}, err
	}

	sem := c.Inferrer.Infer(col, fp)

	return ColumnOutcome{
		ColumnName:   columnName,
		AnchorID:     id,
		Created:      true,
		SemanticType: sem,
		Confidence:   result.Value,
		State:        a.State,
		Transitioned: transitioned,
	}, nil
}

// evaluateAndTransition recomputes confidence from the anchor's full
// evidence history, evaluates whether the state machine fires a
// transition, and — only when it does — applies the transition and writes
// exactly one state_transition evidence record (spec.md §3: "A state
// transition writes exactly one evidence record; unsuccessful transitions
// write none").
func (c *Core) evaluateAndTransition(a anchor.Anchor, triggerKind evidence.Kind, now core.Timestamp) (anchor.Anchor, confidence.Result, bool, error) {
	records, _, err := c.EvidenceLog.Load()
	if err != nil {
		return anchor.Anchor{}, confidence.Result{}, false, err
	}
	var forAnchor []evidence.Record
	for _, r := range records {
		if r.AnchorID == a.ID {
			forAnchor = append(forAnchor, r)
		}
	}

	nowMillis := now.Time().UnixMilli()
	result := c.Confidence.Confidence(forAnchor, nowMillis)

	rules := c.Confidence.Rules()
	conflict := confidence.HasConflict(rules, forAnchor, nowMillis, rules.ConflictWindow.Milliseconds())
	humanResolved := hasHumanFeedback(forAnchor)
	hasApproval := hasKind(forAnchor, evidence.KindHumanApproval)
	hasCrossOrTemporal := hasKind(forAnchor, evidence.KindCrossValidation) || hasKind(forAnchor, evidence.KindTemporalStability)
	recommendation := c.Confidence.Recommend(result, conflict, humanResolved, hasApproval, hasCrossOrTemporal, len(forAnchor))

	smRules := c.StateMachine.Rules()
	elapsed := a.State == anchor.StateMonitoring && now.Sub(a.StateSince) >= smRules.MonitoringDuration

	trigger := statemachine.Trigger{
		Kind:              triggerKind,
		Confidence:        result.Value,
		Recommendation:    recommendation,
		MonitoringElapsed: elapsed,
	}

	next, transitioned := c.StateMachine.Next(a.State, trigger)
	if transitioned {
		from := a.State
		a = c.StateMachine.Apply(a, next, now, "trigger:"+string(triggerKind))
		transitionRecord, err := c.EvidenceLog.Append(a.ID, evidence.KindStateTransition, evidence.SourceSystemValidation, &result.Value, map[string]any{
			"from": string(from),
			"to":   string(next),
		})
		if err != nil {
			return anchor.Anchor{}, confidence.Result{}, false, err
		}
		// Fold the transition record itself back in before reporting, so the
		// confidence this call returns is computed over exactly the record
		// set a later Replay will see — spec.md §4.10's reproducibility
		// guarantee requires the two never diverge.
		forAnchor = append(forAnchor, transitionRecord)
		result = c.Confidence.Confidence(forAnchor, nowMillis)
	}

	a.Confidence = result.Value
	a.HasConfidence = true
	return a, result, transitioned, nil
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

// DetectDrift compares anchorID's stored baseline fingerprint against a
// freshly observed column (spec.md §4.6). Pure aside from the anchor
// lookup; it does not write evidence — callers decide whether a drift
// result is worth recording, via RecordEvidence.
func (c *Core) DetectDrift(anchorID core.AnchorID, current column.Column) (drift.Result, error) {
	a, ok, err := c.Store.Get(anchorID)
	if err != nil {
		return drift.Result{}, err
	}
	if !ok {
		return drift.Result{}, errs.Input("detect drift: anchor %s not found", anchorID)
	}

	baseline, err := fingerprint.Parse(a.Fingerprint)
	if err != nil {
		return drift.Result{}, errs.Invariant("detect drift: anchor %s has an unparseable baseline fingerprint: %v", anchorID, err)
	}

	currentFP := c.Fingerprinter.Fingerprint(current)
	return c.Drift.Detect(baseline, current, currentFP), nil
}

// RecordEvidence appends one evidence record and, when the anchor it names
// is already in the Store, immediately evaluates a state transition off the
// back of it (spec.md §8 scenario 5: a lone human_approval record must by
// itself carry a proposed anchor to accepted). Ingest takes the same path
// through evaluateAndTransition for matched/created anchors; this is the
// entry point for evidence that arrives outside a reconciliation pass —
// human approval, human rejection, a drift finding a caller decided to
// record.
func (c *Core) RecordEvidence(anchorID core.AnchorID, kind evidence.Kind, source evidence.Source, confidenceScore *float64, details map[string]any) (evidence.Record, error) {
	rec, err := c.EvidenceLog.Append(anchorID, kind, source, confidenceScore, details)
	if err != nil {
		return evidence.Record{}, err
	}

	a, ok, err := c.Store.Get(anchorID)
	if err != nil {
		return evidence.Record{}, err
	}
	if !ok {
		return rec, nil
	}

	now := core.Now()
	a.Touch(now)
	a, _, _, err = c.evaluateAndTransition(a, kind, now)
	if err != nil {
		return evidence.Record{}, err
	}
	if err := c.Store.Save(a); err != nil {
		return evidence.Record{}, err
	}

	return rec, nil
}

// ReplayAll replays the entire evidence log (spec.md §4.10).
func (c *Core) ReplayAll(ctx context.Context, opts replay.Options) (replay.Result, error) {
	records, _, err := c.EvidenceLog.Load()
	if err != nil {
		return replay.Result{}, err
	}
	return c.Replay.Replay(ctx, records, opts), nil
}

// Reconcile exposes the underlying reconcile options in effect, so callers
// assembling a manual reconciliation call do not need to reach into
// internal/config directly.
func (c *Core) Reconcile() config.ReconcileOptions {
	return c.reconcileOptions
}

// UpdateReconcileOptions swaps the options Ingest passes to the Reconciler
// on every subsequent call. Unlike ConfidenceRules and StateMachineRules,
// this is plain field assignment, not an atomic.Pointer: ReconcileOptions
// is read once per Ingest call as a value copy, never held across a
// concurrent read the way the rules tables are.
func (c *Core) UpdateReconcileOptions(opts config.ReconcileOptions) {
	c.reconcileOptions = opts
}
