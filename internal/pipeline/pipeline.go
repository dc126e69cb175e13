// Package pipeline implements the Pipeline Orchestrator: the component
// that pulls a fingerprint from C1, runs C3 → C4 → C5 subject to §4.6's
// confidence gates, and writes the resulting Diagnosis back via
// store.UpdateStatus. It is the only writer of terminal BugRecord status
// values.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trace2pass/core/internal/bisect"
	"github.com/trace2pass/core/internal/config"
	"github.com/trace2pass/core/internal/detect"
	"github.com/trace2pass/core/internal/model"
	"github.com/trace2pass/core/internal/store"
	"github.com/trace2pass/core/internal/toolchain"
)

// pipelinePrinter is the minimal collaborator C5 needs to obtain the
// reference pass pipeline for a recipe, split out from the concrete
// *toolchain.Driver so tests can exercise gate logic against a fake
// without a real compiler.
type pipelinePrinter interface {
	PrintPipeline(ctx context.Context, recipe model.Recipe) ([]string, error)
}

// Orchestrator sequences C3, C4, and C5 for one fingerprint at a time.
// Per job it is single-threaded and deterministic (§4.6); concurrency
// across independent fingerprints is the caller's responsibility (see
// RunQueue).
type Orchestrator struct {
	store   *store.Store
	runner  toolchain.Runner
	printer pipelinePrinter
	cfg     config.Config
	log     *zap.Logger
}

// New builds an Orchestrator. driver doubles as the toolchain.Runner
// passed to C3/C4/C5 and as the collaborator C5 asks for a pass
// pipeline listing.
func New(st *store.Store, driver *toolchain.Driver, cfg config.Config, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{store: st, runner: driver, printer: driver, cfg: cfg, log: log}
}

// ErrNoSource is returned when a BugRecord has no reproducer attached,
// so the pipeline has nothing to compile.
var ErrNoSource = fmt.Errorf("pipeline: canonical event has no source attached")

// Diagnose runs the full gated pipeline for fingerprint and writes the
// resulting status (and, where produced, Diagnosis) back to the store.
// It returns the Diagnosis whenever one was synthesized, even for a
// non-diagnosed terminal status (user_ub and inconclusive both carry a
// partial Diagnosis with their signal trace, per §7 "no silent
// downgrades").
func (o *Orchestrator) Diagnose(ctx context.Context, fp model.Fingerprint) (*model.Diagnosis, error) {
	rec, err := o.store.Get(fp)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load record %s: %w", fp, err)
	}

	if rec.Canonical.Source == "" {
		return nil, ErrNoSource
	}

	if rec.Status == model.StatusNew {
		if err := o.store.UpdateStatus(fp, model.StatusTriaged, nil); err != nil {
			return nil, fmt.Errorf("pipeline: triage %s: %w", fp, err)
		}
	}
	if err := o.store.UpdateStatus(fp, model.StatusDiagnosing, nil); err != nil {
		return nil, fmt.Errorf("pipeline: mark diagnosing %s: %w", fp, err)
	}

	primary := recipeFor(rec.Canonical, o.cfg)
	alternate := o.alternateRecipe(rec.Canonical, primary)

	diag := &model.Diagnosis{Fingerprint: fp, Timestamp: time.Now().UTC()}

	det := detect.Detect(ctx, o.runner, rec.Canonical.Source, primary, alternate)
	diag.Verdict = det.Verdict
	diag.Confidence = det.Confidence
	diag.Signals = det.Signals
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: diagnosis of %s aborted: %w", fp, err)
	}

	switch det.Verdict {
	case model.VerdictUserUB:
		return diag, o.finish(fp, model.StatusUserUB, diag)
	case model.VerdictInconclusive:
		return diag, o.finish(fp, model.StatusInconclusive, diag)
	}

	ladder := o.cfg.VersionLadder(primary.Family)
	if len(ladder) == 0 {
		o.log.Warn("no version ladder configured for family, cannot bisect",
			zap.String("family", string(primary.Family)))
		return diag, o.finish(fp, model.StatusInconclusive, diag)
	}

	vb := bisect.BisectVersion(ctx, ladder, o.versionRunner(rec.Canonical.Source, primary), crashPredicate, o.cfg.SkipBudget)
	diag.VersionBisection = &vb
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: diagnosis of %s aborted: %w", fp, err)
	}

	switch vb.Disposition {
	case model.DispositionAllPass, model.DispositionAllFail, model.DispositionNonMonotonic, model.DispositionUnbisectable:
		return diag, o.finish(fp, model.StatusInconclusive, diag)
	}

	passRecipe := primary
	passRecipe.Version = vb.FirstBad

	passes, err := o.printer.PrintPipeline(ctx, passRecipe)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("pipeline: diagnosis of %s aborted: %w", fp, ctxErr)
	}
	if err != nil {
		o.log.Error("pipeline print failed, cannot run pass bisection", zap.Error(err))
		return diag, o.finish(fp, model.StatusInconclusive, diag)
	}

	pb := bisect.BisectPass(ctx, passes, o.passRunner(rec.Canonical.Source, passRecipe), crashPredicate, o.cfg.SkipBudget)
	diag.PassBisection = &pb
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: diagnosis of %s aborted: %w", fp, err)
	}

	diag.Workaround = buildWorkaround(passRecipe.Family, &pb, "-O1")

	// §4.6: any disposition other than a single suspected pass still
	// yields "diagnosed with partial result" rather than inconclusive,
	// since the version bisection alone is actionable.
	return diag, o.finish(fp, model.StatusDiagnosed, diag)
}

func (o *Orchestrator) finish(fp model.Fingerprint, status model.Status, diag *model.Diagnosis) error {
	if err := o.store.UpdateStatus(fp, status, diag); err != nil {
		return fmt.Errorf("pipeline: write diagnosis %s: %w", fp, err)
	}
	return nil
}

// crashPredicate is the pass/fail oracle every bisection stage uses: a
// nonzero exit or a fatal signal means the instrumented check fired and
// the probe reproduces the bug.
func crashPredicate(o model.TestOutcome) model.ProbeResult {
	if o.RunStatus == model.RunExitNonzero || o.RunStatus == model.RunSignal {
		return model.ProbeFail
	}
	return model.ProbePass
}

func (o *Orchestrator) versionRunner(source string, base model.Recipe) bisect.VersionRunner {
	return func(ctx context.Context, version string) (model.TestOutcome, error) {
		recipe := base
		recipe.Version = version
		return o.runner.Run(ctx, source, recipe)
	}
}

func (o *Orchestrator) passRunner(source string, base model.Recipe) bisect.PassRunner {
	return func(ctx context.Context, prefix []string) (model.TestOutcome, error) {
		recipe := base
		// A non-nil, possibly zero-length slice keeps the driver on the
		// pass-specific pipeline even for the "empty prefix" sanity
		// probe (nil would be read as "no pass list requested").
		recipe.Passes = append([]string{}, prefix...)
		return o.runner.Run(ctx, source, recipe)
	}
}

// recipeFor builds C3/C4's primary Recipe from the canonical event that
// first reported this fingerprint.
func recipeFor(e model.AnomalyEvent, cfg config.Config) model.Recipe {
	return model.Recipe{
		Family:         model.CompilerFamily(e.Compiler.Name),
		Version:        e.Compiler.Version,
		OptLevel:       e.BuildInfo.OptimizationLevel,
		Flags:          append([]string(nil), e.BuildInfo.Flags...),
		CompileTimeout: cfg.CompileTimeout(),
		RunTimeout:     cfg.RunTimeout(),
	}
}

// alternateRecipe builds S3's differential recipe: the configured
// partner family at whatever version the toolchain registry has on
// hand. An unconfigured or unresolvable partner yields a zero-value
// Recipe, which the resolver reports as toolchain_missing and S3
// correctly folds into "unknown" rather than a false agreement.
func (o *Orchestrator) alternateRecipe(e model.AnomalyEvent, primary model.Recipe) model.Recipe {
	family, ok := o.cfg.AlternateFamily(primary.Family)
	if !ok {
		return model.Recipe{}
	}
	version, ok := o.cfg.ToolchainRegistry.AnyVersion(family)
	if !ok {
		return model.Recipe{}
	}
	return model.Recipe{
		Family:         family,
		Version:        version,
		OptLevel:       primary.OptLevel,
		CompileTimeout: primary.CompileTimeout,
		RunTimeout:     primary.RunTimeout,
	}
}
