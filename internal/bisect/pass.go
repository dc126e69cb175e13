package bisect

import (
	"context"
	"strconv"
	"time"

	"github.com/trace2pass/core/internal/model"
)

// PassRunner compiles and runs source using exactly the first n passes
// of the reference pipeline (n == 0 means the unoptimized baseline,
// n == len(passes) means the full pipeline).
type PassRunner func(ctx context.Context, prefix []string) (model.TestOutcome, error)

// BisectPass implements C5: a delta-debugging style 1-minimal prefix
// search over the ordered pass list of the reference -O2 pipeline,
// finding the smallest prefix whose inclusion makes the test fail.
//
// Unlike C4, any sanity-check violation (both ends pass, both ends
// fail, or non-monotonic) collapses to a single DispositionUnbisectable
// result rather than distinguishing the three cases, per the pass
// bisector's sanity-check contract.
func BisectPass(ctx context.Context, passes []string, run PassRunner, predicate Predicate, skipBudget int) model.PassBisectionResult {
	start := time.Now()

	probe := func(n int) (model.ProbeResult, model.TestOutcome, string) {
		outcome, err := run(ctx, passes[:n])
		label := "prefix[0:" + strconv.Itoa(n) + "]"
		if err != nil {
			return model.ProbeIndeterminate, outcome, label
		}
		if outcome.Indeterminate() {
			return model.ProbeIndeterminate, outcome, label
		}
		return predicate(outcome), outcome, label
	}

	res := Walk(len(passes)+1, probe, skipBudget)

	out := model.PassBisectionResult{
		TotalPasses:      len(passes),
		CandidatesTested: res.Trace,
		WallTime:         time.Since(start),
	}

	if res.Disposition != model.DispositionBisected {
		out.Disposition = model.DispositionUnbisectable
		return out
	}

	out.Disposition = model.DispositionBisected
	out.PassIndex = res.BadIndex - 1
	out.SuspectedPass = passes[out.PassIndex]
	return out
}
