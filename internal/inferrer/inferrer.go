// Package inferrer implements the Pattern & Statistical Inferrer (spec.md
// §4.2): infers a semantic type from a fingerprint's pattern hits, the
// column's name, and statistical signals.
//
// Grounded on the teacher's inferTypeWithConfidence /
// looksLikeCategoricalCodes (adapters/datareadiness/profiler_adapter.go),
// generalized from the teacher's numeric/boolean/timestamp/categorical
// split to the full semantic-type vocabulary this module targets, and
// using internal/matcher for name-similarity against canonical field names
// as spec.md §4.2 requires.
package inferrer

import (
	"math"
	"sort"

	"sac/domain/column"
	"sac/domain/fingerprint"
	"sac/domain/semtype"
	"sac/internal/matcher"
)

// canonicalNames maps each semantic type to a short list of canonical
// field names used for the name-similarity scoring component.
var canonicalNames = map[semtype.Type][]string{
	semtype.Email:      {"email", "email_address", "mail"},
	semtype.Phone:       {"phone", "phone_number", "telephone", "mobile"},
	semtype.Identifier:  {"id", "identifier", "key", "pk"},
	semtype.Currency:    {"amount", "price", "cost", "total", "balance"},
	semtype.Timestamp:   {"created_at", "updated_at", "timestamp", "date"},
	semtype.URL:         {"url", "link", "website", "href"},
	semtype.Percentage:  {"rate", "percent", "percentage", "ratio"},
	semtype.Boolean:     {"is_active", "enabled", "flag", "active"},
	semtype.UUID:        {"uuid", "guid"},
	semtype.IPAddress:   {"ip", "ip_address"},
	semtype.PostalCode:  {"zip", "postal_code", "zipcode"},
	semtype.SSN:         {"ssn", "social_security_number"},
	semtype.CreditCard:  {"card_number", "credit_card", "cc_number"},
}

// patternToType maps pattern catalog names onto the semantic type they
// imply most directly.
var patternToType = map[string]semtype.Type{
	"email":             semtype.Email,
	"phone":              semtype.Phone,
	"iso_date":           semtype.Timestamp,
	"iso_datetime":       semtype.Timestamp,
	"unix_timestamp":     semtype.Timestamp,
	"uuid":               semtype.UUID,
	"auto_increment_id":  semtype.Identifier,
	"prefixed_id":        semtype.Identifier,
	"us_zip":             semtype.PostalCode,
	"postal_code":        semtype.PostalCode,
	"ipv4":                semtype.IPAddress,
	"ipv6":                semtype.IPAddress,
	"url":                 semtype.URL,
	"ssn":                 semtype.SSN,
	"credit_card":         semtype.CreditCard,
	"percentage":          semtype.Percentage,
	"currency":            semtype.Currency,
	"boolean":             semtype.Boolean,
}

// Mode toggles between the fast and thorough performance modes (spec.md
// §4.2). The Inferrer stores Mode but its scoring does not read it: both
// modes produce the same inferences; sampling depth is the
// Fingerprinter's responsibility via config.FingerprintOptions.Thorough.
type Mode int

const (
	ModeFast Mode = iota
	ModeThorough
)

// Inferrer scores candidate semantic types for a column given its
// fingerprint.
type Inferrer struct {
	matcher *matcher.Matcher
	mode    Mode
}

// New constructs an Inferrer backed by m for name-similarity scoring.
func New(m *matcher.Matcher, mode Mode) *Inferrer {
	return &Inferrer{matcher: m, mode: mode}
}

// Infer scores every candidate semantic type implied by fp.Patterns plus a
// handful of statistically-plausible fallbacks, and returns the winner
// with its confidence, local evidence, and ranked alternatives (spec.md
// §4.2). Never fails: unknown is a valid outcome at confidence 0.5.
func (inf *Inferrer) Infer(col column.Column, fp fingerprint.Fingerprint) semtype.Result {
	scores := map[semtype.Type]float64{}
	evidenceByType := map[semtype.Type][]string{}

	for _, p := range fp.Patterns {
		t, ok := patternToType[p]
		if !ok {
			continue
		}
		scores[t] += 0.6
		evidenceByType[t] = append(evidenceByType[t], "pattern:"+p)
	}

	for t, names := range canonicalNames {
		best := 0.0
		for _, name := range names {
			r := inf.matcher.NormalizedSimilarity(col.Name, name)
			if r.Similarity > best {
				best = r.Similarity
			}
		}
		if best > 0 {
			scores[t] += best * 0.3
			evidenceByType[t] = append(evidenceByType[t], "name_similarity")
		}
	}

	applyStatisticalCongruence(scores, evidenceByType, col, fp)

	if len(scores) == 0 {
		return semtype.Result{SemanticType: semtype.Unknown, Confidence: 0.5}
	}

	type candidate struct {
		t     semtype.Type
		score float64
	}
	var cands []candidate
	for t, s := range scores {
		cands = append(cands, candidate{t, s})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].t < cands[j].t // lexicographic tie-break, spec.md §4.2
	})

	winner := cands[0]
	confidence := math.Min(winner.score, 0.99)
	if confidence <= 0 {
		return semtype.Result{SemanticType: semtype.Unknown, Confidence: 0.5}
	}

	var alternatives []semtype.Alternative
	for _, c := range cands[1:] {
		alternatives = append(alternatives, semtype.Alternative{Type: c.t, Confidence: math.Min(c.score, 0.99)})
	}

	return semtype.Result{
		SemanticType: winner.t,
		Confidence:   confidence,
		Evidence:     evidenceByType[winner.t],
		Alternatives: alternatives,
	}
}

// applyStatisticalCongruence adds or penalizes scores based on numeric
// ranges plausible for the type (e.g. percentage in [0,100]), cardinality
// vs row count for identifier-likeness, and uniformity for enum-likeness
// (spec.md §4.2).
func applyStatisticalCongruence(scores map[semtype.Type]float64, evidence map[semtype.Type][]string, col column.Column, fp fingerprint.Fingerprint) {
	n := col.Len()
	if n == 0 {
		return
	}

	if fp.HasRange {
		if fp.Min >= 0 && fp.Max <= 100 {
			scores[semtype.Percentage] += 0.1
			evidence[semtype.Percentage] = append(evidence[semtype.Percentage], "range_in_[0,100]")
		}
		if fp.Min >= 0 {
			scores[semtype.Currency] += 0.05
		}
	}

	if fp.UniqueRatio > 0.95 && (fp.Dtype == fingerprint.DtypeInt64 || fp.Dtype == fingerprint.DtypeString) {
		scores[semtype.Identifier] += 0.2
		evidence[semtype.Identifier] = append(evidence[semtype.Identifier], "high_cardinality_ratio")
	}

	if fp.Dtype == fingerprint.DtypeBool {
		scores[semtype.Boolean] += 0.4
		evidence[semtype.Boolean] = append(evidence[semtype.Boolean], "dtype_bool")
	}

	if fp.Dtype == fingerprint.DtypeTime {
		scores[semtype.Timestamp] += 0.3
		evidence[semtype.Timestamp] = append(evidence[semtype.Timestamp], "dtype_timestamp")
	}
}
