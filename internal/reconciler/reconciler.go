// Package reconciler implements the Reconciler (spec.md §4.5): matches new
// columns to existing anchors under a scoring policy, greedily assigning
// the highest-confidence pairs first.
//
// Grounded on the teacher's internal/dataset/relationship_discovery.go
// (pairwise scoring across candidate column/column pairs, greedy
// highest-score-first assignment with a claimed-set to prevent double
// matching) and internal/referee/referee.go's strategy-keyed weight table,
// generalized from the teacher's single name+type heuristic to the four
// weighted score components spec.md §4.5 requires. Reconciler itself takes
// existing_anchors as a plain argument rather than reading the Anchor Store
// directly, keeping it a pure function of its inputs; the caller (the root
// sac.Core facade) is responsible for the store read/write and evidence
// append around this call.
package reconciler

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sac/domain/anchor"
	"sac/domain/column"
	"sac/domain/core"
	"sac/domain/fingerprint"
	"sac/internal/config"
	"sac/internal/errs"
	"sac/internal/fingerprinter"
	"sac/internal/matcher"
)

// Components is the four-score breakdown for one (column, anchor) pair
// (spec.md §4.5).
type Components struct {
	DtypeMatch            float64
	NameSimilarity        float64
	FingerprintSimilarity float64
	SampleOverlap         float64
}

// Match is one column assigned to one anchor.
type Match struct {
	AnchorID     core.AnchorID
	ColumnName   string
	Confidence   float64
	Components   Components
	Fingerprint  fingerprint.Fingerprint
	DriftWarning bool
}

// NewAnchorCandidate describes a column that did not match any existing
// anchor but is eligible to become one (CreateNewAnchors is true).
type NewAnchorCandidate struct {
	ColumnName  string
	Fingerprint fingerprint.Fingerprint
}

// ConfidenceMetrics summarizes the confidence distribution across every
// emitted match.
type ConfidenceMetrics struct {
	Mean  float64
	Min   float64
	Max   float64
	Count int
}

// Result is the Reconciler's output (spec.md §4.5).
type Result struct {
	Matched           []Match
	UnmatchedColumns  []string
	NewAnchors        []NewAnchorCandidate
	StrategyUsed      config.ReconcileStrategy
	ConfidenceMetrics ConfidenceMetrics
	TimeMs            int64
	Cancelled         bool
}

// Reconciler scores and assigns candidate columns to existing anchors.
type Reconciler struct {
	fingerprinter *fingerprinter.Fingerprinter
	matcher       *matcher.Matcher
}

// New constructs a Reconciler backed by fp (for fingerprinting incoming
// columns) and m (for name similarity scoring).
func New(fp *fingerprinter.Fingerprinter, m *matcher.Matcher) *Reconciler {
	return &Reconciler{fingerprinter: fp, matcher: m}
}

// Reconcile matches columns against existingAnchors under opts (spec.md
// §4.5). Fingerprinting of distinct columns and scoring of distinct
// (column, anchor) pairs are parallelized across worker goroutines; the
// result is observationally identical to a sequential run (spec.md §5).
// On ctx cancellation, returns a partial result with Cancelled=true and no
// side effects — Reconcile itself has none, being a pure function of its
// inputs.
func (r *Reconciler) Reconcile(ctx context.Context, dataset string, columns []column.Column, existingAnchors []anchor.Anchor, opts config.ReconcileOptions) (Result, error) {
	start := time.Now()

	if dataset == "" {
		return Result{}, errs.Input("reconcile: dataset must not be empty")
	}
	if len(columns) == 0 {
		return Result{}, errs.Input("reconcile: no columns to reconcile")
	}
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}

	select {
	case <-ctx.Done():
		return Result{Cancelled: true, StrategyUsed: opts.Strategy}, nil
	default:
	}

	fps, err := r.fingerprintAll(ctx, columns)
	if err != nil {
		return Result{Cancelled: true, StrategyUsed: opts.Strategy}, nil
	}

	baselines := make([]fingerprint.Fingerprint, len(existingAnchors))
	for i, a := range existingAnchors {
		bf, perr := fingerprint.Parse(a.Fingerprint)
		if perr != nil {
			return Result{}, errs.Invariant("reconcile: anchor %s has an unparseable baseline fingerprint: %v", a.ID, perr)
		}
		baselines[i] = bf
	}

	scores, err := r.scoreAll(ctx, columns, fps, existingAnchors, baselines, opts)
	if err != nil {
		return Result{Cancelled: true, StrategyUsed: opts.Strategy}, nil
	}

	res := r.assign(columns, fps, existingAnchors, scores, opts)
	res.StrategyUsed = opts.Strategy
	res.TimeMs = time.Since(start).Milliseconds()
	return res, nil
}

func (r *Reconciler) fingerprintAll(ctx context.Context, columns []column.Column) ([]fingerprint.Fingerprint, error) {
	out := make([]fingerprint.Fingerprint, len(columns))
	g, gctx := errgroup.WithContext(ctx)
	for i := range columns {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			out[i] = r.fingerprinter.Fingerprint(columns[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type pairScore struct {
	colIdx    int
	anchorIdx int
	score     float64
	comp      Components
}

func (r *Reconciler) scoreAll(ctx context.Context, columns []column.Column, fps []fingerprint.Fingerprint, anchors []anchor.Anchor, baselines []fingerprint.Fingerprint, opts config.ReconcileOptions) ([]pairScore, error) {
	dtypeW, nameW, fpW, sampleW := opts.ScoreWeights()

	var mu sync.Mutex
	var out []pairScore
	g, gctx := errgroup.WithContext(ctx)
	for ci := range columns {
		for ai := range anchors {
			ci, ai := ci, ai
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				comp := r.score(columns[ci], fps[ci], anchors[ai], baselines[ai])
				total := comp.DtypeMatch*dtypeW + comp.NameSimilarity*nameW + comp.FingerprintSimilarity*fpW + comp.SampleOverlap*sampleW
				mu.Lock()
				out = append(out, pairScore{colIdx: ci, anchorIdx: ai, score: total, comp: comp})
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// score computes the four components for one (column, anchor) pair
// (spec.md §4.5).
func (r *Reconciler) score(col column.Column, fp fingerprint.Fingerprint, a anchor.Anchor, baseline fingerprint.Fingerprint) Components {
	return Components{
		DtypeMatch:            dtypeMatch(fp.Dtype, baseline.Dtype),
		NameSimilarity:        r.matcher.NormalizedSimilarity(col.Name, a.ColumnName).Similarity,
		FingerprintSimilarity: fingerprintSimilarity(fp, baseline),
		SampleOverlap:         jaccard(toSet(fp.Sample), toSet(baseline.Sample)),
	}
}

// dtypeMatch: 1.0 if the primitive types are equal, 0.5 if numerically
// compatible (int vs float), 0.0 otherwise (spec.md §4.5).
func dtypeMatch(a, b fingerprint.Dtype) float64 {
	if a == b {
		return 1.0
	}
	numeric := func(d fingerprint.Dtype) bool {
		return d == fingerprint.DtypeInt64 || d == fingerprint.DtypeFloat64
	}
	if numeric(a) && numeric(b) {
		return 0.5
	}
	return 0.0
}

// fingerprintSimilarity combines cardinality ratio agreement, null-ratio
// distance, unique-ratio distance, min/max overlap (for ordered
// primitives), and Jaccard overlap of pattern sets into a single [0,1]
// similarity (spec.md §4.5). Each constituent signal is mapped into a
// similarity (not a distance) and the result is their unweighted mean, so
// the overall score degrades gracefully when one signal (e.g. min/max) does
// not apply to the pair's dtype.
func fingerprintSimilarity(a, b fingerprint.Fingerprint) float64 {
	terms := make([]float64, 0, 5)

	terms = append(terms, ratioAgreement(a.Cardinality, b.Cardinality))
	terms = append(terms, 1-absDiff(a.NullRatio, b.NullRatio))
	terms = append(terms, 1-absDiff(a.UniqueRatio, b.UniqueRatio))

	if a.HasRange && b.HasRange {
		terms = append(terms, rangeOverlap(a.Min, a.Max, b.Min, b.Max))
	}

	terms = append(terms, jaccard(toSet(a.Patterns), toSet(b.Patterns)))

	sum := 0.0
	for _, t := range terms {
		sum += clamp01(t)
	}
	return sum / float64(len(terms))
}

func ratioAgreement(a, b int) float64 {
	if a == 0 && b == 0 {
		return 1
	}
	lo, hi := float64(a), float64(b)
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		return 1
	}
	return lo / hi
}

func absDiff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}

// rangeOverlap returns the Jaccard-style overlap of two closed intervals:
// intersection length over union length. Two identical single-point ranges
// overlap fully; two disjoint ranges overlap 0.
func rangeOverlap(min1, max1, min2, max2 float64) float64 {
	lo := max(min1, min2)
	hi := min(max1, max2)
	interLen := hi - lo
	if interLen < 0 {
		interLen = 0
	}
	unionLo := min(min1, min2)
	unionHi := max(max1, max2)
	unionLen := unionHi - unionLo
	if unionLen <= 0 {
		// both ranges collapse to the same point.
		if min1 == min2 && max1 == max2 {
			return 1
		}
		return 0
	}
	return interLen / unionLen
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter, union := 0, len(a)
	for k := range b {
		if _, ok := a[k]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
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

// assign performs the greedy, descending-confidence assignment (spec.md
// §4.5): highest score first, stable tie-break on (anchor_id, column_name),
// each anchor and column claimed at most once unless AllowMultipleMatches.
// A candidate within DriftTolerance of the rejection boundary is still
// emitted, flagged via DriftWarning (spec.md §4.5, Open Question #3 in
// DESIGN.md: "accept with warning" was the chosen semantics).
func (r *Reconciler) assign(columns []column.Column, fps []fingerprint.Fingerprint, anchors []anchor.Anchor, scores []pairScore, opts config.ReconcileOptions) Result {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		ai, aj := anchors[scores[i].anchorIdx].ID, anchors[scores[j].anchorIdx].ID
		if ai != aj {
			return ai < aj
		}
		return columns[scores[i].colIdx].Name < columns[scores[j].colIdx].Name
	})

	claimedAnchors := make(map[int]bool, len(anchors))
	claimedColumns := make(map[int]bool, len(columns))
	var matched []Match

	for _, ps := range scores {
		if ps.comp.DtypeMatch < 0.5 {
			continue
		}
		if !opts.AllowMultipleMatches {
			if claimedAnchors[ps.anchorIdx] || claimedColumns[ps.colIdx] {
				continue
			}
		}

		driftWarning := false
		accept := ps.score >= opts.ConfidenceThreshold
		if !accept {
			gap := opts.ConfidenceThreshold - ps.score
			if gap <= opts.DriftTolerance {
				accept = true
				driftWarning = true
			}
		}
		if !accept {
			continue
		}

		matched = append(matched, Match{
			AnchorID:     anchors[ps.anchorIdx].ID,
			ColumnName:   columns[ps.colIdx].Name,
			Confidence:   ps.score,
			Components:   ps.comp,
			Fingerprint:  fps[ps.colIdx],
			DriftWarning: driftWarning,
		})
		claimedAnchors[ps.anchorIdx] = true
		claimedColumns[ps.colIdx] = true
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ColumnName < matched[j].ColumnName })

	var unmatched []string
	var newAnchors []NewAnchorCandidate
	for ci, col := range columns {
		if claimedColumns[ci] {
			continue
		}
		if opts.CreateNewAnchors {
			newAnchors = append(newAnchors, NewAnchorCandidate{ColumnName: col.Name, Fingerprint: fps[ci]})
		} else {
			unmatched = append(unmatched, col.Name)
		}
	}

	return Result{
		Matched:           matched,
		UnmatchedColumns:  unmatched,
		NewAnchors:        newAnchors,
		ConfidenceMetrics: confidenceMetrics(matched),
	}
}

func confidenceMetrics(matched []Match) ConfidenceMetrics {
	if len(matched) == 0 {
		return ConfidenceMetrics{}
	}
	m := ConfidenceMetrics{Min: matched[0].Confidence, Max: matched[0].Confidence, Count: len(matched)}
	sum := 0.0
	for _, mm := range matched {
		sum += mm.Confidence
		if mm.Confidence < m.Min {
			m.Min = mm.Confidence
		}
		if mm.Confidence > m.Max {
			m.Max = mm.Confidence
		}
	}
	m.Mean = sum / float64(len(matched))
	return m
}
