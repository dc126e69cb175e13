// Package detect implements C3, the UB Detector: a multi-signal
// classifier distinguishing a genuine compiler bug from undefined
// behavior in the user's program, with a calibrated confidence score.
// Each signal independently probes a toolchain.Runner and is testable
// against a fake, mirroring the example pack's tiered collector shape
// generalized from "sample a system metric" to "probe a source under
// one build variation and classify true/false/unknown."
package detect

import (
	"context"

	"github.com/trace2pass/core/internal/model"
	"github.com/trace2pass/core/internal/toolchain"
)

// Result is C3's full output: the fused verdict and confidence, each
// individual signal, and every raw TestOutcome consulted along the way
// for auditability.
type Result struct {
	Verdict    model.Verdict
	Confidence float64
	Signals    model.UBSignals
	Outcomes   []model.TestOutcome
}

// Detect runs S1/S2/S3 against source under primary (the recipe the
// bug was originally observed under) and alternate (a different
// compiler family, used only by S3's differential), then fuses the
// three signals into a verdict and confidence score.
func Detect(ctx context.Context, runner toolchain.Runner, source string, primary, alternate model.Recipe) Result {
	var outcomes []model.TestOutcome

	ubsan, o1 := ubsanClean(ctx, runner, source, primary, alternate)
	outcomes = append(outcomes, o1...)

	optSensitive, o2 := optimizationSensitive(ctx, runner, source, primary, alternate)
	outcomes = append(outcomes, o2...)

	differs, o3 := multiCompilerDiffers(ctx, runner, source, primary, alternate)
	outcomes = append(outcomes, o3...)

	signals := model.UBSignals{
		UBSanClean:            ubsan,
		OptimizationSensitive: optSensitive,
		MultiCompilerDiffers:  differs,
	}
	confidence := fuseConfidence(signals)

	return Result{
		Verdict:    partitionVerdict(confidence),
		Confidence: confidence,
		Signals:    signals,
		Outcomes:   outcomes,
	}
}
