package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/trace2pass/core/internal/model"
	"github.com/trace2pass/core/internal/toolchain"
)

// ubsanDiagnosticMarker is the prefix UBSan prints to stderr when a
// sanitizer check fires, with -fno-sanitize-recover ensuring the
// process then exits nonzero instead of limping on.
const ubsanDiagnosticMarker = "runtime error:"

// ubsanClean implements S1: recompile at -O0 with the undefined
// behavior sanitizer enabled and execute. A clean exit with no
// sanitizer diagnostic is strong evidence the program itself is well
// defined; a fired diagnostic is strong evidence it is not.
func ubsanClean(ctx context.Context, runner toolchain.Runner, source string, base, _ model.Recipe) (model.TriState, []model.TestOutcome) {
	recipe := base
	recipe.OptLevel = "-O0"
	recipe.Flags = append(append([]string{}, base.Flags...), "-fsanitize=undefined", "-fno-sanitize-recover=undefined")

	outcome, err := runner.Run(ctx, source, recipe)
	outcomes := []model.TestOutcome{outcome}
	if err != nil || outcome.Indeterminate() {
		return model.TriUnknown, outcomes
	}

	fired := strings.Contains(outcome.Stderr, ubsanDiagnosticMarker)
	if fired {
		return model.TriFalse, outcomes
	}
	if outcome.RunStatus == model.RunExitOK {
		return model.TriTrue, outcomes
	}
	return model.TriUnknown, outcomes
}

// optimizationLevels are the four levels S2 compiles at to probe
// sensitivity to optimization.
var optimizationLevels = []string{"-O0", "-O1", "-O2", "-O3"}

// optimizationSensitive implements S2: compile and run source at each
// of -O0..-O3 with the same compiler, and compare the (exit code,
// stdout) signature across every level that produced a runnable
// binary. Disagreement anywhere in that set is reported as sensitive;
// fewer than two runnable levels leaves the signal unknown.
func optimizationSensitive(ctx context.Context, runner toolchain.Runner, source string, base, _ model.Recipe) (model.TriState, []model.TestOutcome) {
	var outcomes []model.TestOutcome
	signatures := make(map[string]bool)
	runnable := 0

	for _, level := range optimizationLevels {
		recipe := base
		recipe.OptLevel = level
		outcome, err := runner.Run(ctx, source, recipe)
		outcomes = append(outcomes, outcome)
		if err != nil || !outcome.Succeeded() {
			continue
		}
		runnable++
		signatures[fmt.Sprintf("%d:%s", outcome.ExitCode, outcome.Stdout)] = true
	}

	if runnable < 2 {
		return model.TriUnknown, outcomes
	}
	if len(signatures) > 1 {
		return model.TriTrue, outcomes
	}
	return model.TriFalse, outcomes
}

// multiCompilerDiffers implements S3: compile and run source with both
// the primary (base) and an alternate compiler family at -O2, and
// compare their outputs. Either side failing to produce a runnable
// binary leaves the signal unknown rather than conflating "didn't run"
// with "ran and agreed."
func multiCompilerDiffers(ctx context.Context, runner toolchain.Runner, source string, base, alternate model.Recipe) (model.TriState, []model.TestOutcome) {
	primary := base
	primary.OptLevel = "-O2"
	other := alternate
	other.OptLevel = "-O2"

	outPrimary, errPrimary := runner.Run(ctx, source, primary)
	outOther, errOther := runner.Run(ctx, source, other)
	outcomes := []model.TestOutcome{outPrimary, outOther}

	if errPrimary != nil || errOther != nil || !outPrimary.Succeeded() || !outOther.Succeeded() {
		return model.TriUnknown, outcomes
	}
	if outPrimary.ExitCode == outOther.ExitCode && outPrimary.Stdout == outOther.Stdout {
		return model.TriFalse, outcomes
	}
	return model.TriTrue, outcomes
}
