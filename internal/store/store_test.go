package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sac/domain/anchor"
	"sac/domain/core"
)

func newAnchor(id, dataset, column string) anchor.Anchor {
	now := core.Now()
	return anchor.New(core.AnchorID(id), dataset, column, "fp:int64:5:0:1-1005:abc", now)
}

func TestSaveAndGet_RoundTrips(t *testing.T) {
	s := New(t.TempDir())
	a := newAnchor("sca_0000000000000001", "orders", "customer_id")

	require.NoError(t, s.Save(a))

	got, ok, err := s.Get(a.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.Dataset, got.Dataset)
	assert.Equal(t, a.ColumnName, got.ColumnName)
	assert.Equal(t, a.Fingerprint, got.Fingerprint)
}

func TestGet_UnknownAnchorReturnsNotOK(t *testing.T) {
	s := New(t.TempDir())
	_, ok, err := s.Get(core.AnchorID("sca_0000000000000099"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSave_OverwritesExistingAnchor(t *testing.T) {
	s := New(t.TempDir())
	a := newAnchor("sca_0000000000000002", "orders", "customer_id")
	require.NoError(t, s.Save(a))

	a.ColumnName = "cust_pk"
	require.NoError(t, s.Save(a))

	got, ok, err := s.Get(a.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cust_pk", got.ColumnName)

	anchors, err := s.AnchorsForDataset("orders")
	require.NoError(t, err)
	assert.Len(t, anchors, 1, "overwriting must not duplicate the index entry")
}

func TestAnchorsForDataset_ReturnsOnlyThatDatasets(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Save(newAnchor("sca_0000000000000003", "orders", "customer_id")))
	require.NoError(t, s.Save(newAnchor("sca_0000000000000004", "orders", "order_total")))
	require.NoError(t, s.Save(newAnchor("sca_0000000000000005", "users", "email")))

	orders, err := s.AnchorsForDataset("orders")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	users, err := s.AnchorsForDataset("users")
	require.NoError(t, err)
	assert.Len(t, users, 1)

	empty, err := s.AnchorsForDataset("nonexistent")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFindByPattern_MatchesColumnNameRegex(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Save(newAnchor("sca_0000000000000006", "orders", "customer_id")))
	require.NoError(t, s.Save(newAnchor("sca_0000000000000007", "users", "user_id")))
	require.NoError(t, s.Save(newAnchor("sca_0000000000000008", "users", "email")))

	matches, err := s.FindByPattern(`_id$`)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestDelete_RemovesFromShardAndIndex(t *testing.T) {
	s := New(t.TempDir())
	a := newAnchor("sca_0000000000000009", "orders", "customer_id")
	require.NoError(t, s.Save(a))

	deleted, err := s.Delete(a.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, ok, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	anchors, err := s.AnchorsForDataset("orders")
	require.NoError(t, err)
	assert.Empty(t, anchors)

	deletedAgain, err := s.Delete(a.ID)
	require.NoError(t, err)
	assert.False(t, deletedAgain)
}

func TestStats_AggregatesAcrossDatasets(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Save(newAnchor("sca_000000000000000a", "orders", "customer_id")))
	require.NoError(t, s.Save(newAnchor("sca_000000000000000b", "users", "email")))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAnchors)
	assert.Equal(t, 2, stats.Datasets)
	assert.Equal(t, 2, stats.ByState["proposed"])
}

func TestNew_RebuildsIndexFromShardsWhenIndexMissing(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	a := newAnchor("sca_000000000000000c", "orders", "customer_id")
	require.NoError(t, s.Save(a))

	require.NoError(t, os.Remove(filepath.Join(dir, "index.yml")))

	reopened := New(dir)
	anchors, err := reopened.AnchorsForDataset("orders")
	require.NoError(t, err)
	require.Len(t, anchors, 1, "a missing index.yml must be rebuilt by scanning shard files")
	assert.Equal(t, a.ColumnName, anchors[0].ColumnName)
}
