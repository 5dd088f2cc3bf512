// Package matcher implements the Matcher component (spec.md §4.3): pure
// string-similarity functions for column-name comparison and value
// fuzzy-join, plus a hybrid combiner.
//
// Jaro-Winkler, Levenshtein (via Ukkonen's early-exit variant), and Soundex
// are provided by github.com/xrash/smetrics (found as an indirect
// dependency of the corpus's AKJUS-bsc-erigon/go.mod). Metaphone and NYSIIS
// have no library anywhere in the corpus and are hand-rolled here, the same
// way the teacher hand-rolls calculateSkewness/calculateKurtosis in
// internal/profiling/distribution.go rather than reaching for a stats
// library for every computation (documented in DESIGN.md).
package matcher

import (
	"math"
	"strings"

	"github.com/xrash/smetrics"

	"sac/internal/config"
)

// Matcher holds the configured weights and thresholds for its string
// similarity functions.
type Matcher struct {
	weights config.MatcherWeights
}

// New constructs a Matcher from weights (config.DefaultMatcherWeights() for
// the spec's stated defaults).
func New(weights config.MatcherWeights) *Matcher {
	return &Matcher{weights: weights}
}

// JaroWinkler returns Jaro-Winkler similarity in [0,1]. smetrics.JaroWinkler's
// signature is (s1, s2, boostThreshold, prefixSize): boostThreshold is the
// minimum Jaro similarity above which the common-prefix boost applies, not a
// scaling factor, so it takes JaroWinklerThreshold, not a "prefix scale".
func (m *Matcher) JaroWinkler(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	boostThreshold := m.weights.JaroWinklerThreshold
	prefixSize := m.weights.JaroWinklerMaxPrefix
	return smetrics.JaroWinkler(a, b, boostThreshold, prefixSize)
}

// Levenshtein returns normalized similarity in [0,1]: 1 - distance/maxLen,
// using Ukkonen's early-exit bounded edit distance under the configured
// substitution/insertion/deletion costs. smetrics.Ukkonen's signature is
// (s1, s2, icost, scost, dcost) — insert, substitute, delete — not
// insert/delete/subst, so the costs are named locally to keep that order
// from silently transposing substitution and deletion the next time these
// are configured to non-unit values.
func (m *Matcher) Levenshtein(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	icost := m.weights.LevenshteinInsertCost
	scost := m.weights.LevenshteinSubstCost
	dcost := m.weights.LevenshteinDeleteCost
	dist := smetrics.Ukkonen(a, b, icost, scost, dcost)
	maxCost := len(a)
	if len(b) > maxCost {
		maxCost = len(b)
	}
	maxCost *= maxInt(m.weights.LevenshteinInsertCost, maxInt(m.weights.LevenshteinDeleteCost, m.weights.LevenshteinSubstCost))
	if maxCost == 0 {
		return 1
	}
	sim := 1 - float64(dist)/float64(maxCost)
	if sim < 0 {
		sim = 0
	}
	return sim
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// PhoneticCodes is the Soundex/Metaphone/NYSIIS code triple for one string.
type PhoneticCodes struct {
	Soundex   string
	Metaphone string
	NYSIIS    string
}

// Phonetic computes all three phonetic codes for s.
func (m *Matcher) Phonetic(s string) PhoneticCodes {
	return PhoneticCodes{
		Soundex:   smetrics.Soundex(s),
		Metaphone: metaphone(s),
		NYSIIS:    nysiis(s),
	}
}

// PhoneticSimilarity returns 1.0 if a and b's codes are identical across
// all three algorithms that apply, scaled down per disagreeing algorithm,
// so the hybrid combiner below has a smooth value rather than a single
// boolean. Two strings are "phonetically equal" per spec.md §4.3 iff all
// three codes match, which corresponds to a return value of exactly 1.0.
func (m *Matcher) PhoneticSimilarity(a, b string) float64 {
	ca, cb := m.Phonetic(a), m.Phonetic(b)
	matches := 0
	if ca.Soundex == cb.Soundex {
		matches++
	}
	if ca.Metaphone == cb.Metaphone {
		matches++
	}
	if ca.NYSIIS == cb.NYSIIS {
		matches++
	}
	return float64(matches) / 3.0
}

// Result is the hybrid Matcher's combined output.
type Result struct {
	Similarity  float64
	Consistency float64
	JaroWinkler float64
	Levenshtein float64
	Phonetic    float64
}

// Similarity computes the weighted hybrid similarity of a and b, with
// weights auto-normalized to sum to 1, plus a consistency score (1 minus
// the standard deviation across the three components) per spec.md §4.3.
func (m *Matcher) Similarity(a, b string) Result {
	jw := m.JaroWinkler(a, b)
	lv := m.Levenshtein(a, b)
	ph := m.PhoneticSimilarity(a, b)

	total := m.weights.JaroWinklerWeight + m.weights.LevenshteinWeight + m.weights.PhoneticWeight
	if total == 0 {
		total = 1
	}
	wJW := m.weights.JaroWinklerWeight / total
	wLV := m.weights.LevenshteinWeight / total
	wPH := m.weights.PhoneticWeight / total

	sim := jw*wJW + lv*wLV + ph*wPH

	mean := (jw + lv + ph) / 3
	variance := (sq(jw-mean) + sq(lv-mean) + sq(ph-mean)) / 3
	stddev := math.Sqrt(variance)
	consistency := 1 - stddev
	if consistency < 0 {
		consistency = 0
	}

	return Result{
		Similarity:  sim,
		Consistency: consistency,
		JaroWinkler: jw,
		Levenshtein: lv,
		Phonetic:    ph,
	}
}

func sq(x float64) float64 { return x * x }

// normalizeForMatch lower-cases and strips non-alphanumeric characters, the
// normalization the Reconciler applies before comparing column names
// (spec.md §4.5: "hybrid matcher similarity of lower-cased,
// punctuation-stripped column names").
func normalizeForMatch(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizedSimilarity applies normalizeForMatch to both inputs before
// scoring; this is what the Reconciler's name_similarity component uses.
func (m *Matcher) NormalizedSimilarity(a, b string) Result {
	return m.Similarity(normalizeForMatch(a), normalizeForMatch(b))
}
