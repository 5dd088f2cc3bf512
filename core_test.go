package sac

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sac/domain/column"
	"sac/domain/evidence"
	"sac/internal/evidencelog"
	"sac/internal/inferrer"
	"sac/internal/replay"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	dir := t.TempDir()
	c, err := New(dir+"/anchors", dir+"/evidence.jsonl", DefaultOptions())
	require.NoError(t, err)
	return c
}

func TestIngest_RenameSurvival(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	original := column.NewIntColumn("customer_id", []int64{1001, 1002, 1003, 1004, 1005}, nil)
	first, err := c.Ingest(ctx, "orders", []column.Column{original})
	require.NoError(t, err)
	require.Len(t, first.Outcomes, 1)
	require.True(t, first.Outcomes[0].Created)
	anchorID := first.Outcomes[0].AnchorID

	renamed := column.NewIntColumn("cust_pk", []int64{1001, 1002, 1003, 1004, 1005}, nil)
	second, err := c.Ingest(ctx, "orders", []column.Column{renamed})
	require.NoError(t, err)
	require.Len(t, second.Outcomes, 1)

	outcome := second.Outcomes[0]
	assert.False(t, outcome.Created, "a renamed but otherwise identical column must reconcile onto the existing anchor")
	assert.Equal(t, anchorID, outcome.AnchorID)
	assert.Equal(t, "cust_pk", outcome.ColumnName)

	stored, ok, err := c.Store.Get(anchorID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "customer_id", stored.ColumnName)
}

func TestIngest_TypeMismatchCreatesNewAnchor(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	original := column.NewIntColumn("customer_id", []int64{1001, 1002, 1003, 1004, 1005}, nil)
	first, err := c.Ingest(ctx, "orders", []column.Column{original})
	require.NoError(t, err)
	originalID := first.Outcomes[0].AnchorID

	stringified := column.NewStringColumn("customer_id", []string{"abc", "def", "ghi", "jkl", "mno"}, nil)
	second, err := c.Ingest(ctx, "orders", []column.Column{stringified})
	require.NoError(t, err)
	require.Len(t, second.Outcomes, 1)

	outcome := second.Outcomes[0]
	assert.True(t, outcome.Created, "a dtype mismatch below the reconciler's floor must spawn a new anchor, not reuse the old one")
	assert.NotEqual(t, originalID, outcome.AnchorID)
}

func TestIngest_PatternInferenceDetectsEmail(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	emails := []string{
		"alice@example.com", "bob@example.com", "carol@example.com",
		"dave@example.com", "erin@example.com", "frank@example.com",
	}
	col := column.NewStringColumn("email", emails, nil)

	res, err := c.Ingest(ctx, "users", []column.Column{col})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)

	sem := res.Outcomes[0].SemanticType
	assert.Equal(t, "email", string(sem.SemanticType))
	assert.GreaterOrEqual(t, sem.Confidence, 0.85)
}

func TestDetectDrift_FlagsDistributionShift(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(42))
	baselineValues := make([]int64, 200)
	for i := range baselineValues {
		baselineValues[i] = int64(100 + rng.NormFloat64()*15)
	}
	baseline := column.NewIntColumn("latency_ms", baselineValues, nil)

	res, err := c.Ingest(ctx, "metrics", []column.Column{baseline})
	require.NoError(t, err)
	anchorID := res.Outcomes[0].AnchorID

	shiftedValues := make([]int64, 200)
	for i := range shiftedValues {
		shiftedValues[i] = int64(200 + rng.NormFloat64()*10)
	}
	shifted := column.NewIntColumn("latency_ms", shiftedValues, nil)

	drift, err := c.DetectDrift(anchorID, shifted)
	require.NoError(t, err)
	assert.True(t, drift.DriftDetected)
	assert.NotEqual(t, "none", string(drift.Severity))
	assert.NotEqual(t, "low", string(drift.Severity))
}

func TestRecordEvidence_HumanApprovalTransitionsExactlyOnce(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	col := column.NewIntColumn("account_id", []int64{1, 2, 3, 4, 5}, nil)
	res, err := c.Ingest(ctx, "accounts", []column.Column{col})
	require.NoError(t, err)
	anchorID := res.Outcomes[0].AnchorID

	before, err := c.EvidenceLog.Query(evidencelog.Query{AnchorID: anchorID, Kind: evidence.KindStateTransition, HasAnchorID: true, HasKind: true})
	require.NoError(t, err)

	conf := 1.0
	_, err = c.RecordEvidence(anchorID, evidence.KindHumanApproval, evidence.SourceHumanFeedback, &conf, nil)
	require.NoError(t, err)

	stored, ok, err := c.Store.Get(anchorID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "accepted", string(stored.State))

	after, err := c.EvidenceLog.Query(evidencelog.Query{AnchorID: anchorID, Kind: evidence.KindStateTransition, HasAnchorID: true, HasKind: true})
	require.NoError(t, err)
	assert.Equal(t, 1, len(after)-len(before), "the human_approval record must drive exactly one new transition")
}

func TestReplayAll_MatchesLiveIngestOutcome(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	col := column.NewIntColumn("order_total", []int64{10, 20, 30, 40, 50}, nil)
	res, err := c.Ingest(ctx, "orders", []column.Column{col})
	require.NoError(t, err)
	anchorID := res.Outcomes[0].AnchorID

	replayResult, err := c.ReplayAll(ctx, replay.Options{})
	require.NoError(t, err)
	require.Len(t, replayResult.Anchors, 1)

	timeline := replayResult.Anchors[0]
	assert.Equal(t, anchorID, timeline.AnchorID)
	assert.InDelta(t, res.Outcomes[0].Confidence, timeline.FinalConfidence, 1e-9)
	assert.Equal(t, string(res.Outcomes[0].State), string(timeline.FinalState))
}

func TestIngest_RejectsEmptyDataset(t *testing.T) {
	c := newTestCore(t)
	_, err := c.Ingest(context.Background(), "", []column.Column{column.NewIntColumn("x", []int64{1}, nil)})
	assert.Error(t, err)
}

func TestNew_RejectsInvalidOptions(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Reconcile.ConfidenceThreshold = -1
	_, err := New(dir+"/anchors", dir+"/evidence.jsonl", opts)
	assert.Error(t, err)
}

func TestDefaultOptions_InferrerModeIsFast(t *testing.T) {
	assert.Equal(t, inferrer.ModeFast, DefaultOptions().InferrerMode)
}

func TestReconcileAccessors(t *testing.T) {
	c := newTestCore(t)
	original := c.Reconcile()
	updated := original
	updated.ConfidenceThreshold = original.ConfidenceThreshold - 0.05
	c.UpdateReconcileOptions(updated)
	assert.Equal(t, updated.ConfidenceThreshold, c.Reconcile().ConfidenceThreshold)
}

