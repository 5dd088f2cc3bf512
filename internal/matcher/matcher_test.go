package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sac/internal/config"
)

func newMatcher() *Matcher {
	return New(config.DefaultMatcherWeights())
}

func TestJaroWinkler_IdenticalStringsScoreOne(t *testing.T) {
	m := newMatcher()
	assert.Equal(t, 1.0, m.JaroWinkler("customer_id", "customer_id"))
	assert.Equal(t, 1.0, m.JaroWinkler("", ""))
}

func TestJaroWinkler_CompletelyDifferentScoresLower(t *testing.T) {
	m := newMatcher()
	assert.Less(t, m.JaroWinkler("customer_id", "zzz"), 1.0)
}

func TestLevenshtein_IdenticalStringsScoreOne(t *testing.T) {
	m := newMatcher()
	assert.Equal(t, 1.0, m.Levenshtein("cust_pk", "cust_pk"))
	assert.Equal(t, 1.0, m.Levenshtein("", ""))
}

func TestLevenshtein_OneEditIsCloserThanMany(t *testing.T) {
	m := newMatcher()
	oneEdit := m.Levenshtein("customer_id", "customer_i")
	manyEdits := m.Levenshtein("customer_id", "zzzzzzzzzzz")
	assert.Greater(t, oneEdit, manyEdits)
}

func TestPhoneticSimilarity_IdenticalStringsMatchFully(t *testing.T) {
	m := newMatcher()
	assert.Equal(t, 1.0, m.PhoneticSimilarity("smith", "smith"))
}

func TestPhoneticSimilarity_SimilarSoundingNamesPartiallyMatch(t *testing.T) {
	m := newMatcher()
	sim := m.PhoneticSimilarity("smith", "smyth")
	assert.Greater(t, sim, 0.0)
}

func TestSimilarity_IdenticalStringsAreMaximallySimilarAndConsistent(t *testing.T) {
	m := newMatcher()
	res := m.Similarity("customer_id", "customer_id")
	assert.Equal(t, 1.0, res.Similarity)
	assert.InDelta(t, 1.0, res.Consistency, 1e-9)
}

func TestNormalizedSimilarity_IgnoresCaseAndPunctuation(t *testing.T) {
	m := newMatcher()
	res := m.NormalizedSimilarity("Cust-PK", "cust_pk")
	assert.Equal(t, 1.0, res.Similarity)
}

func TestNormalizedSimilarity_RenamedColumnStillScoresHigherThanUnrelated(t *testing.T) {
	m := newMatcher()
	renamed := m.NormalizedSimilarity("customer_id", "cust_pk")
	unrelated := m.NormalizedSimilarity("customer_id", "warehouse_zone")
	assert.Greater(t, renamed.Similarity, unrelated.Similarity)
}
