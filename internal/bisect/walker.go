// Package bisect implements the shared bisection walker C4 (version
// bisection) and C5 (pass bisection) are both built on: test both
// endpoints of a sequence, classify the result into a closed
// disposition before touching any search state, then binary-search the
// interior with an explicit good/bad index pair, treating an
// indeterminate probe as skip-and-retry-adjacent up to a bounded
// budget. Modeled on the example pack's commit-bisection control flow
// (bad/good commit pair, predicate callback, disposition-tagged
// result) generalized from git commits to an arbitrary ordered
// sequence.
package bisect

import "github.com/trace2pass/core/internal/model"

// Probe classifies sequence element i, returning its pass/fail/
// indeterminate verdict, the raw outcome it was derived from, and a
// human-readable label for the audit trail.
type Probe func(i int) (result model.ProbeResult, outcome model.TestOutcome, label string)

// Result is the disposition-tagged outcome of walking a sequence of
// length n. GoodIndex and BadIndex are -1 when not established.
type Result struct {
	Disposition model.Disposition
	GoodIndex   int
	BadIndex    int
	Trace       []model.ProbeTrace
}

// Walk bisects a sequence of n elements (indices 0..n-1) assuming the
// probe is monotone: every index < some k passes and every index ≥ k
// fails. skipBudget bounds how many indeterminate probes the walk will
// absorb in total before giving up with DispositionUnbisectable.
func Walk(n int, probe Probe, skipBudget int) Result {
	if n == 0 {
		return Result{Disposition: model.DispositionAllPass, GoodIndex: -1, BadIndex: -1}
	}

	var trace []model.ProbeTrace
	budget := skipBudget

	lowRes, lowIdx, ok := resolveRange(0, n-1, probe, &budget, &trace)
	if !ok {
		return Result{Disposition: model.DispositionUnbisectable, GoodIndex: -1, BadIndex: -1, Trace: trace}
	}
	highRes, highIdx, ok := resolveRange(n-1, 0, probe, &budget, &trace)
	if !ok {
		return Result{Disposition: model.DispositionUnbisectable, GoodIndex: -1, BadIndex: -1, Trace: trace}
	}

	switch {
	case lowRes == model.ProbePass && highRes == model.ProbePass:
		return Result{Disposition: model.DispositionAllPass, GoodIndex: highIdx, BadIndex: -1, Trace: trace}
	case lowRes == model.ProbeFail && highRes == model.ProbeFail:
		return Result{Disposition: model.DispositionAllFail, GoodIndex: -1, BadIndex: lowIdx, Trace: trace}
	case lowRes == model.ProbeFail && highRes == model.ProbePass:
		return Result{Disposition: model.DispositionNonMonotonic, GoodIndex: highIdx, BadIndex: lowIdx, Trace: trace}
	}

	good, bad := lowIdx, highIdx
	for bad-good > 1 {
		mid := good + (bad-good)/2
		res, idx, ok := resolveRange(mid, bad-1, probe, &budget, &trace)
		if !ok {
			return Result{Disposition: model.DispositionUnbisectable, GoodIndex: good, BadIndex: bad, Trace: trace}
		}
		if res == model.ProbePass {
			good = idx
		} else {
			bad = idx
		}
	}

	return Result{Disposition: model.DispositionBisected, GoodIndex: good, BadIndex: bad, Trace: trace}
}

// resolveRange scans indices from start to end (inclusive, in whichever
// direction start..end implies) looking for the first determinate
// probe result, skipping indeterminate ones and charging each skip
// against budget. ok is false when budget or the range is exhausted
// before a determinate result is found.
func resolveRange(start, end int, probe Probe, budget *int, trace *[]model.ProbeTrace) (model.ProbeResult, int, bool) {
	step := 1
	if end < start {
		step = -1
	}
	for i := start; ; i += step {
		result, outcome, label := probe(i)
		*trace = append(*trace, model.ProbeTrace{Label: label, Outcome: outcome, Result: result})

		if result != model.ProbeIndeterminate {
			return result, i, true
		}
		*budget--
		if *budget < 0 {
			return "", 0, false
		}
		if i == end {
			return "", 0, false
		}
	}
}
