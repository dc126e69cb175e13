package bisect

import (
	"context"
	"time"

	"github.com/trace2pass/core/internal/model"
)

// VersionRunner executes source under a specific compiler version and
// returns the raw outcome, without interpreting pass/fail.
type VersionRunner func(ctx context.Context, version string) (model.TestOutcome, error)

// Predicate folds a TestOutcome into pass/fail/indeterminate, the
// caller-supplied oracle distinguishing "the bug reproduced" from
// "the build or run could not establish an answer" (§4.4 step 3, §7).
type Predicate func(model.TestOutcome) model.ProbeResult

// BisectVersion implements C4: given a totally ordered list of compiler
// versions (oldest to newest), find the boundary between the last
// version the bug does not reproduce on and the first it does.
func BisectVersion(ctx context.Context, versions []string, run VersionRunner, predicate Predicate, skipBudget int) model.VersionBisectionResult {
	start := time.Now()

	probe := func(i int) (model.ProbeResult, model.TestOutcome, string) {
		outcome, err := run(ctx, versions[i])
		if err != nil {
			return model.ProbeIndeterminate, outcome, versions[i]
		}
		if outcome.Indeterminate() {
			return model.ProbeIndeterminate, outcome, versions[i]
		}
		return predicate(outcome), outcome, versions[i]
	}

	res := Walk(len(versions), probe, skipBudget)

	out := model.VersionBisectionResult{
		Disposition:    res.Disposition,
		VersionsTested: res.Trace,
		WallTime:       time.Since(start),
	}
	if res.GoodIndex >= 0 {
		out.LastGood = versions[res.GoodIndex]
	}
	if res.BadIndex >= 0 {
		out.FirstBad = versions[res.BadIndex]
	}
	return out
}
