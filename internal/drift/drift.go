// Package drift implements the Drift Detector (spec.md §4.6): statistical
// comparison of a current column against an anchor's baseline fingerprint.
//
// Grounded on the teacher's adapters/api/schema_drift.go (FieldChange /
// ChangeType / DriftSeverity shape, the overall detect-and-classify flow)
// and adapters/stats/senses/chi_square.go (discretizeForChiSquare /
// buildContingencyTable / chiSquareCDF via the Wilson-Hilferty
// transform), plus internal/profiling/distribution.go for the
// montanaflynn/stats + gonum.org/v1/gonum/stat/distuv pairing used for
// every numeric statistic here.
package drift

import (
	"math"
	"sort"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"sac/domain/column"
	"sac/domain/fingerprint"
	"sac/internal/config"
)

// Severity is the Drift Detector's overall verdict (spec.md §4.6).
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func maxSeverity(a, b Severity) Severity {
	rank := map[Severity]int{SeverityNone: 0, SeverityLow: 1, SeverityMedium: 2, SeverityHigh: 3}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// TestResult is one statistical test's outcome (spec.md §4.6: "Every test
// reports statistic, p-value (where defined), and a boolean
// is_significant").
type TestResult struct {
	Name          string
	Statistic     float64
	PValue        float64
	HasPValue     bool
	IsSignificant bool
}

// Result is the Drift Detector's output (spec.md §4.6).
type Result struct {
	DriftDetected bool
	DriftTypes    []string
	Severity      Severity
	TestsRun      []TestResult
	Details       map[string]any
}

// Detector runs the configured statistical tests against a baseline
// fingerprint and a current column.
type Detector struct {
	opts config.DriftOptions
}

// New constructs a Detector.
func New(opts config.DriftOptions) *Detector {
	return &Detector{opts: opts}
}

// Detect compares a.Fingerprint (already parsed into baseline by the
// caller, since the Anchor Store only holds the canonical string) against
// currentFingerprint/currentColumn (spec.md §4.6).
func (d *Detector) Detect(baseline fingerprint.Fingerprint, current column.Column, currentFingerprint fingerprint.Fingerprint) Result {
	if current.Len() == 0 {
		return Result{DriftDetected: false, Severity: SeverityNone, Details: map[string]any{"reason": "empty current column"}}
	}

	if baseline.Dtype != currentFingerprint.Dtype {
		return Result{
			DriftDetected: true,
			DriftTypes:    []string{"type_drift"},
			Severity:      SeverityHigh,
			Details: map[string]any{
				"baseline_dtype": string(baseline.Dtype),
				"current_dtype":  string(currentFingerprint.Dtype),
			},
		}
	}

	res := Result{Severity: SeverityNone, Details: map[string]any{}}

	if isNumericDtype(baseline.Dtype) {
		baselineValues := parseNumeric(baseline.Sample)
		currentValues := numericColumnValues(current)
		if len(baselineValues) >= 2 && len(currentValues) >= 2 {
			ks := d.kolmogorovSmirnov(baselineValues, currentValues)
			res.TestsRun = append(res.TestsRun, ks)
			if ks.IsSignificant {
				res.DriftDetected = true
				res.DriftTypes = append(res.DriftTypes, "distribution_shift")
				res.Severity = maxSeverity(res.Severity, SeverityMedium)
			}

			psi, psiSeverity := d.populationStabilityIndex(baselineValues, currentValues)
			res.TestsRun = append(res.TestsRun, psi)
			if psiSeverity != SeverityNone {
				res.DriftDetected = true
				res.DriftTypes = append(res.DriftTypes, "population_shift")
				res.Severity = maxSeverity(res.Severity, psiSeverity)
			}

			w := d.wasserstein1(baselineValues, currentValues)
			res.TestsRun = append(res.TestsRun, w)
			res.Details["wasserstein_1"] = w.Statistic

			if len(baselineValues) >= d.opts.MinChiSquareSample && len(currentValues) >= d.opts.MinChiSquareSample {
				chi := d.chiSquareNumeric(baselineValues, currentValues)
				res.TestsRun = append(res.TestsRun, chi)
				if chi.IsSignificant {
					res.DriftDetected = true
					res.DriftTypes = append(res.DriftTypes, "frequency_shift")
					res.Severity = maxSeverity(res.Severity, SeverityMedium)
				}
			}
		}
	} else {
		baselineFreq := frequency(baseline.Sample)
		currentFreq := frequency(current.Values())
		if len(baselineFreq) > 0 && len(currentFreq) > 0 {
			chi := d.chiSquareCategorical(baselineFreq, currentFreq)
			res.TestsRun = append(res.TestsRun, chi)
			if chi.IsSignificant {
				res.DriftDetected = true
				res.DriftTypes = append(res.DriftTypes, "frequency_shift")
				res.Severity = maxSeverity(res.Severity, SeverityMedium)
			}
		}
	}

	jaccardDist := patternJaccardDistance(baseline.Patterns, currentFingerprint.Patterns)
	res.Details["pattern_jaccard_distance"] = jaccardDist
	if jaccardDist > d.opts.PatternJaccardThreshold {
		res.DriftDetected = true
		res.DriftTypes = append(res.DriftTypes, "pattern_shift")
		res.Severity = maxSeverity(res.Severity, SeverityLow)
	}

	return res
}

func isNumericDtype(dt fingerprint.Dtype) bool {
	return dt == fingerprint.DtypeInt64 || dt == fingerprint.DtypeFloat64
}

func parseNumeric(values []string) []float64 {
	var out []float64
	for _, v := range values {
		if f, err := mstats.LoadRawData([]interface{}{v}); err == nil && len(f) == 1 {
			out = append(out, f[0])
		}
	}
	return out
}

func numericColumnValues(col column.Column) []float64 {
	n := col.Len()
	out := make([]float64, 0, n)
	switch col.Kind {
	case column.KindInt:
		for i, v := range col.Ints {
			if !col.IsNull(i) {
				out = append(out, float64(v))
			}
		}
	case column.KindFloat:
		for i, v := range col.Floats {
			if !col.IsNull(i) {
				out = append(out, v)
			}
		}
	default:
		for i := 0; i < n; i++ {
			if col.IsNull(i) {
				continue
			}
			if f, err := mstats.LoadRawData([]interface{}{col.StringAt(i)}); err == nil && len(f) == 1 {
				out = append(out, f[0])
			}
		}
	}
	return out
}

// kolmogorovSmirnov computes the two-sample KS statistic and an
// asymptotic p-value approximation (spec.md §4.6).
func (d *Detector) kolmogorovSmirnov(a, b []float64) TestResult {
	sa := append([]float64(nil), a...)
	sb := append([]float64(nil), b...)
	sort.Float64s(sa)
	sort.Float64s(sb)

	combined := append(append([]float64(nil), sa...), sb...)
	sort.Float64s(combined)

	maxDiff := 0.0
	for _, x := range combined {
		fa := ecdf(sa, x)
		fb := ecdf(sb, x)
		diff := math.Abs(fa - fb)
		if diff > maxDiff {
			maxDiff = diff
		}
	}

	n1, n2 := float64(len(sa)), float64(len(sb))
	ne := n1 * n2 / (n1 + n2)
	lambda := (math.Sqrt(ne) + 0.12 + 0.11/math.Sqrt(ne)) * maxDiff

	pValue := kolmogorovAsymptoticP(lambda)

	return TestResult{
		Name:          "kolmogorov_smirnov",
		Statistic:     maxDiff,
		PValue:        pValue,
		HasPValue:     true,
		IsSignificant: pValue < d.opts.SignificanceLevel,
	}
}

func ecdf(sorted []float64, x float64) float64 {
	idx := sort.SearchFloat64s(sorted, x+1e-12)
	return float64(idx) / float64(len(sorted))
}

// kolmogorovAsymptoticP approximates the two-sided Kolmogorov
// distribution's tail probability via its standard alternating series.
func kolmogorovAsymptoticP(lambda float64) float64 {
	if lambda <= 0 {
		return 1
	}
	sum := 0.0
	for k := 1; k <= 100; k++ {
		term := math.Exp(-2 * float64(k) * float64(k) * lambda * lambda)
		if k%2 == 1 {
			sum += term
		} else {
			sum -= term
		}
	}
	p := 2 * sum
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

// populationStabilityIndex bins baseline and current into opts.PSIBins
// equal-width bins over their combined range (spec.md §4.6).
func (d *Detector) populationStabilityIndex(baseline, current []float64) (TestResult, Severity) {
	bins := d.opts.PSIBins
	min, max := combinedRange(baseline, current)
	if max <= min {
		return TestResult{Name: "psi", Statistic: 0}, SeverityNone
	}

	baseCounts := histogram(baseline, min, max, bins)
	curCounts := histogram(current, min, max, bins)

	psi := 0.0
	for i := 0; i < bins; i++ {
		bp := proportion(baseCounts[i], len(baseline))
		cp := proportion(curCounts[i], len(current))
		psi += (cp - bp) * math.Log(cp/bp)
	}

	severity := SeverityNone
	switch {
	case psi >= d.opts.PSIMediumThreshold:
		severity = SeverityHigh
	case psi >= d.opts.PSILowThreshold:
		severity = SeverityMedium
	}

	return TestResult{
		Name:          "psi",
		Statistic:     psi,
		IsSignificant: severity != SeverityNone,
	}, severity
}

func proportion(count, total int) float64 {
	const epsilon = 1e-4
	if total == 0 {
		return epsilon
	}
	p := float64(count) / float64(total)
	if p < epsilon {
		return epsilon
	}
	return p
}

func combinedRange(a, b []float64) (min, max float64) {
	first := true
	for _, s := range [][]float64{a, b} {
		for _, v := range s {
			if first {
				min, max, first = v, v, false
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	return min, max
}

func histogram(values []float64, min, max float64, bins int) []int {
	counts := make([]int, bins)
	width := (max - min) / float64(bins)
	if width <= 0 {
		return counts
	}
	for _, v := range values {
		idx := int((v - min) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}
	return counts
}

// wasserstein1 computes the 1-Wasserstein (earth-mover's) distance between
// two 1D samples via order-statistic interpolation onto a shared quantile
// grid (spec.md §4.6: "reported, not thresholded alone").
func (d *Detector) wasserstein1(a, b []float64) TestResult {
	sa := append([]float64(nil), a...)
	sb := append([]float64(nil), b...)
	sort.Float64s(sa)
	sort.Float64s(sb)

	const grid = 100
	sum := 0.0
	for i := 0; i < grid; i++ {
		p := (float64(i) + 0.5) / float64(grid)
		qa := quantile(sa, p)
		qb := quantile(sb, p)
		sum += math.Abs(qa - qb)
	}
	dist := sum / float64(grid)

	return TestResult{Name: "wasserstein_1", Statistic: dist}
}

func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// chiSquareNumeric bins both numeric samples identically and runs a
// chi-square goodness-of-fit test, mirroring chiSquareCategorical's
// contingency-table math over numeric bins instead of category labels.
func (d *Detector) chiSquareNumeric(a, b []float64) TestResult {
	bins := d.opts.PSIBins
	min, max := combinedRange(a, b)
	if max <= min {
		return TestResult{Name: "chi_square", Statistic: 0}
	}
	observed := histogram(b, min, max, bins)
	expectedFreq := histogram(a, min, max, bins)

	total := len(b)
	baseTotal := len(a)
	stat := 0.0
	dof := 0
	for i := 0; i < bins; i++ {
		expectedCount := float64(expectedFreq[i]) / float64(baseTotal) * float64(total)
		if expectedCount < 1 {
			continue
		}
		diff := float64(observed[i]) - expectedCount
		stat += diff * diff / expectedCount
		dof++
	}
	if dof > 1 {
		dof--
	}
	return chiSquareResult(stat, dof, d.opts.SignificanceLevel)
}

// chiSquareCategorical runs chi-square over frequency vectors aligned on
// the union of levels (spec.md §4.6), grounded on the teacher's
// buildContingencyTable / computeChiSquare
// (adapters/stats/senses/chi_square.go).
func (d *Detector) chiSquareCategorical(baseline, current map[string]int) TestResult {
	levels := make(map[string]struct{}, len(baseline)+len(current))
	for k := range baseline {
		levels[k] = struct{}{}
	}
	for k := range current {
		levels[k] = struct{}{}
	}

	baseTotal, curTotal := sumValues(baseline), sumValues(current)
	if baseTotal == 0 || curTotal == 0 {
		return TestResult{Name: "chi_square", Statistic: 0}
	}

	stat := 0.0
	dof := 0
	for level := range levels {
		expectedCount := float64(baseline[level]) / float64(baseTotal) * float64(curTotal)
		if expectedCount < 1 {
			continue
		}
		diff := float64(current[level]) - expectedCount
		stat += diff * diff / expectedCount
		dof++
	}
	if dof > 1 {
		dof--
	}
	return chiSquareResult(stat, dof, d.opts.SignificanceLevel)
}

// chiSquareResult derives a p-value from a chi-square statistic via
// gonum's ChiSquared distribution, the same library pairing the teacher
// uses for its normality test (internal/profiling/distribution.go) and
// its own chi-square sense (adapters/stats/senses/chi_square.go's
// Wilson-Hilferty transform, which this uses distuv directly in place of).
func chiSquareResult(stat float64, dof int, alpha float64) TestResult {
	if dof < 1 {
		return TestResult{Name: "chi_square", Statistic: stat}
	}
	dist := distuv.ChiSquared{K: float64(dof)}
	p := 1 - dist.CDF(stat)
	return TestResult{
		Name:          "chi_square",
		Statistic:     stat,
		PValue:        p,
		HasPValue:     true,
		IsSignificant: p < alpha,
	}
}

func sumValues(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

func frequency(values []string) map[string]int {
	out := map[string]int{}
	for _, v := range values {
		if v == "" {
			continue
		}
		out[v]++
	}
	return out
}

// patternJaccardDistance is 1 - |A∩B|/|A∪B| over two pattern-name sets
// (spec.md §4.6).
func patternJaccardDistance(a, b []string) float64 {
	sa := toSet(a)
	sb := toSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0
	}
	inter, union := 0, len(sa)
	for k := range sb {
		if _, ok := sa[k]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return 1 - float64(inter)/float64(union)
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
