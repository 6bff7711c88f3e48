package service

import (
	"fmt"
	"math"
	"sort"
)

// PSI stability bands.
const (
	psiGreenBelow  = 0.10
	psiYellowBelow = 0.20
)

const (
	PSIGreen  = "green"
	PSIYellow = "yellow"
	PSIRed    = "red"
)

// Calibration targets for a production scorecard.
const (
	targetECE   = 0.02
	targetBrier = 0.07
)

func psiStatus(psi float64) string {
	switch {
	case psi < psiGreenBelow:
		return PSIGreen
	case psi < psiYellowBelow:
		return PSIYellow
	default:
		return PSIRed
	}
}

// PSIBin is the per-bin detail of a PSI computation. Lower and Upper
// are nil on the open outer edges.
type PSIBin struct {
	Bin          int      `json:"bin"`
	Label        string   `json:"label,omitempty"`
	Lower        *float64 `json:"lower,omitempty"`
	Upper        *float64 `json:"upper,omitempty"`
	RefPct       float64  `json:"refPct"`
	CurPct       float64  `json:"curPct"`
	Contribution float64  `json:"psiContribution"`
}

// PSIResult is one population-stability measurement.
type PSIResult struct {
	Value      float64  `json:"value"`
	Status     string   `json:"status"`
	NReference int      `json:"nReference"`
	NCurrent   int      `json:"nCurrent"`
	Bins       []PSIBin `json:"bins,omitempty"`
	DataSource string   `json:"dataSource,omitempty"`
}

// ComputePSI measures distribution drift between a reference and a
// current sample. Bin edges default to the reference percentiles with
// the outer edges opened to ±Inf; counts are Laplace-smoothed so empty
// bins cannot produce infinities.
func ComputePSI(reference, current []float64, nBins int, edges []float64) PSIResult {
	if len(reference) == 0 || len(current) == 0 {
		return PSIResult{Status: PSIGreen}
	}
	if nBins <= 0 {
		nBins = 10
	}
	if edges == nil {
		edges = percentileEdges(reference, nBins)
	}
	nBins = len(edges) - 1

	refCounts := histogram(reference, edges)
	curCounts := histogram(current, edges)

	refDen := float64(len(reference)) + 0.5*float64(nBins)
	curDen := float64(len(current)) + 0.5*float64(nBins)

	var psi float64
	bins := make([]PSIBin, 0, nBins)
	for i := 0; i < nBins; i++ {
		refPct := (float64(refCounts[i]) + 0.5) / refDen
		curPct := (float64(curCounts[i]) + 0.5) / curDen
		contribution := (curPct - refPct) * math.Log(curPct/refPct)
		psi += contribution

		b := PSIBin{
			Bin:          i + 1,
			RefPct:       round4(refPct),
			CurPct:       round4(curPct),
			Contribution: round4(contribution),
		}
		if !math.IsInf(edges[i], 0) {
			lo := round4(edges[i])
			b.Lower = &lo
		}
		if !math.IsInf(edges[i+1], 0) {
			hi := round4(edges[i+1])
			b.Upper = &hi
		}
		bins = append(bins, b)
	}

	return PSIResult{
		Value:      round4(psi),
		Status:     psiStatus(psi),
		NReference: len(reference),
		NCurrent:   len(current),
		Bins:       bins,
	}
}

// scorePSIEdges splits the 300-900 score range into fixed 60-point
// bins, with open outer edges so clamped extremes still land inside.
func scorePSIEdges() []float64 {
	edges := []float64{math.Inf(-1)}
	for s := 360.0; s <= 840; s += 60 {
		edges = append(edges, s)
	}
	return append(edges, math.Inf(1))
}

// ComputeScorePSI measures credit-score drift over the fixed scorecard
// bins.
func ComputeScorePSI(reference, current []float64) PSIResult {
	return ComputePSI(reference, current, 10, scorePSIEdges())
}

// ComputeTargetPSI measures bad-rate stability as a two-bin Bernoulli
// distribution.
func ComputeTargetPSI(badRateReference, badRateCurrent float64, nReference, nCurrent int) PSIResult {
	ref := [2]float64{clampRange(badRateReference, 1e-6, 1-1e-6), 0}
	cur := [2]float64{clampRange(badRateCurrent, 1e-6, 1-1e-6), 0}
	ref[1] = 1 - ref[0]
	cur[1] = 1 - cur[0]

	var psi float64
	for i := 0; i < 2; i++ {
		psi += (cur[i] - ref[i]) * math.Log(cur[i]/ref[i])
	}
	psi = math.Abs(psi)

	return PSIResult{
		Value:      round4(psi),
		Status:     psiStatus(psi),
		NReference: nReference,
		NCurrent:   nCurrent,
		Bins: []PSIBin{
			{Bin: 1, Label: "bad", RefPct: round4(badRateReference), CurPct: round4(badRateCurrent)},
			{Bin: 2, Label: "good", RefPct: round4(1 - badRateReference), CurPct: round4(1 - badRateCurrent)},
		},
	}
}

// ReliabilityBand is one equal-width probability bin of the
// reliability diagram. FractionPositive is nil for empty bins.
type ReliabilityBand struct {
	Bin              int      `json:"bin"`
	Lower            float64  `json:"lower"`
	Upper            float64  `json:"upper"`
	MeanPredicted    float64  `json:"meanPredictedProb"`
	FractionPositive *float64 `json:"fractionOfPositives,omitempty"`
	NSamples         int      `json:"nSamples"`
	CalibrationGap   *float64 `json:"calibrationGap,omitempty"`
}

// CalibrationResult carries the expected calibration error and Brier
// score of a scored-and-observed sample.
type CalibrationResult struct {
	ECE         float64           `json:"ece"`
	Brier       float64           `json:"brierScore"`
	NBins       int               `json:"nBins"`
	NSamples    int               `json:"nSamples"`
	Reliability []ReliabilityBand `json:"reliabilityDiagram,omitempty"`
	DataSource  string            `json:"dataSource,omitempty"`
	TargetECE   float64           `json:"targetEce"`
	TargetBrier float64           `json:"targetBrier"`
}

// ECEStatus grades the calibration error: pass at the 0.02 target,
// warning up to 0.05, fail beyond.
func (c CalibrationResult) ECEStatus() string {
	switch {
	case c.ECE <= targetECE:
		return "pass"
	case c.ECE <= 0.05:
		return "warning"
	default:
		return "fail"
	}
}

// ComputeCalibration computes ECE over equal-width probability bins
// and the Brier score of the sample.
func ComputeCalibration(probs []float64, defaulted []bool, nBins int) CalibrationResult {
	if nBins <= 0 {
		nBins = 10
	}
	result := CalibrationResult{NBins: nBins, TargetECE: targetECE, TargetBrier: targetBrier}
	n := len(probs)
	if n == 0 || n != len(defaulted) {
		return result
	}
	result.NSamples = n

	var brier float64
	sums := make([]float64, nBins)
	positives := make([]int, nBins)
	counts := make([]int, nBins)
	for i, p := range probs {
		y := 0.0
		if defaulted[i] {
			y = 1.0
		}
		brier += (p - y) * (p - y)

		b := int(p * float64(nBins))
		if b >= nBins {
			b = nBins - 1
		}
		if b < 0 {
			b = 0
		}
		sums[b] += p
		counts[b]++
		if defaulted[i] {
			positives[b]++
		}
	}
	result.Brier = round4(brier / float64(n))

	width := 1.0 / float64(nBins)
	var ece float64
	bands := make([]ReliabilityBand, 0, nBins)
	for b := 0; b < nBins; b++ {
		lower := float64(b) * width
		upper := lower + width
		band := ReliabilityBand{
			Bin:           b + 1,
			Lower:         round4(lower),
			Upper:         round4(upper),
			MeanPredicted: round4((lower + upper) / 2),
		}
		if counts[b] > 0 {
			meanProb := sums[b] / float64(counts[b])
			fracPos := float64(positives[b]) / float64(counts[b])
			gap := math.Abs(meanProb - fracPos)
			ece += float64(counts[b]) / float64(n) * gap

			band.MeanPredicted = round4(meanProb)
			fp := round4(fracPos)
			band.FractionPositive = &fp
			g := round4(gap)
			band.CalibrationGap = &g
			band.NSamples = counts[b]
		}
		bands = append(bands, band)
	}
	result.ECE = round4(ece)
	result.Reliability = bands
	return result
}

// VintageObservation is one booked loan prepared for cohort analysis.
type VintageObservation struct {
	Cohort       string
	MonthsOnBook int
	Bad          bool
}

// ComputeVintage reports the cumulative bad rate per origination
// cohort at each month-on-book checkpoint. A loan enters a checkpoint
// only once it has been on book at least that long.
func ComputeVintage(observations []VintageObservation, checkpoints []int) map[string]map[string]float64 {
	cohorts := make(map[string]map[string]float64)
	if len(observations) == 0 {
		return cohorts
	}

	type tally struct{ total, bad int }
	counts := make(map[string]map[int]*tally)
	for _, obs := range observations {
		byMob, ok := counts[obs.Cohort]
		if !ok {
			byMob = make(map[int]*tally)
			counts[obs.Cohort] = byMob
		}
		for _, mob := range checkpoints {
			if obs.MonthsOnBook < mob {
				continue
			}
			t, ok := byMob[mob]
			if !ok {
				t = &tally{}
				byMob[mob] = t
			}
			t.total++
			if obs.Bad {
				t.bad++
			}
		}
	}

	for cohort, byMob := range counts {
		rates := make(map[string]float64, len(byMob))
		for mob, t := range byMob {
			if t.total == 0 {
				continue
			}
			rates[checkpointKey(mob)] = round4(float64(t.bad) / float64(t.total))
		}
		if len(rates) > 0 {
			cohorts[cohort] = rates
		}
	}
	return cohorts
}

func checkpointKey(mob int) string {
	return fmt.Sprintf("dpd_%dm", mob)
}

// demoRollRates is the observed annual transition matrix used until
// enough booked performance accumulates.
func demoRollRates() map[string]float64 {
	return map[string]float64{
		"current_to_dpd30": 0.028,
		"dpd30_to_dpd60":   0.450,
		"dpd60_to_dpd90":   0.600,
		"dpd90_to_default": 0.750,
	}
}

// percentileEdges derives nBins+1 edges from the reference
// distribution's percentiles, opening the outer edges to ±Inf.
func percentileEdges(reference []float64, nBins int) []float64 {
	sorted := make([]float64, len(reference))
	copy(sorted, reference)
	sort.Float64s(sorted)

	edges := make([]float64, nBins+1)
	edges[0] = math.Inf(-1)
	edges[nBins] = math.Inf(1)
	for i := 1; i < nBins; i++ {
		edges[i] = percentile(sorted, float64(i)*100/float64(nBins))
	}
	return edges
}

// percentile interpolates linearly between order statistics; the input
// must be sorted ascending.
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	rank := q / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if hi >= n {
		hi = n - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// histogram counts values into half-open bins [edges[i], edges[i+1]),
// with the last bin closed on the right.
func histogram(values []float64, edges []float64) []int {
	nBins := len(edges) - 1
	counts := make([]int, nBins)
	for _, v := range values {
		idx := sort.SearchFloat64s(edges, v)
		// SearchFloat64s returns the insertion point; values equal to
		// an edge belong to the bin starting at that edge.
		if idx < len(edges) && edges[idx] == v {
			idx++
		}
		bin := idx - 1
		if bin < 0 {
			bin = 0
		}
		if bin >= nBins {
			bin = nBins - 1
		}
		counts[bin]++
	}
	return counts
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
