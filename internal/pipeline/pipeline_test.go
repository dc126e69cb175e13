package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/trace2pass/core/internal/config"
	"github.com/trace2pass/core/internal/model"
	"github.com/trace2pass/core/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path, nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleEvent(source string) model.AnomalyEvent {
	return model.AnomalyEvent{
		ReportID:  "r1",
		Timestamp: time.Now().UTC(),
		CheckType: model.CheckArithmeticOverflow,
		Location:  model.Location{File: "a.c", Line: 10, Function: "f"},
		Compiler:  model.CompilerID{Name: "clang", Version: "18.0.0"},
		BuildInfo: model.BuildInfo{OptimizationLevel: "-O2", Flags: []string{"-Wall"}},
		Source:    source,
	}
}

// fakeRunner dispatches on recipe shape so each test can script an
// entire bisection without any real compiler or toolchain.
type fakeRunner struct {
	run func(ctx context.Context, source string, recipe model.Recipe) (model.TestOutcome, error)
}

func (f fakeRunner) Run(ctx context.Context, source string, recipe model.Recipe) (model.TestOutcome, error) {
	return f.run(ctx, source, recipe)
}

type fakePrinter struct {
	passes []string
	err    error
}

func (f fakePrinter) PrintPipeline(_ context.Context, _ model.Recipe) ([]string, error) {
	return f.passes, f.err
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.VersionLadders = map[model.CompilerFamily][]string{
		model.FamilyClang: {"16.0.0", "17.0.0", "18.0.0"},
	}
	return cfg
}

func hasFlag(recipe model.Recipe, flag string) bool {
	for _, f := range recipe.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

func okOutcome() model.TestOutcome {
	return model.TestOutcome{CompileStatus: model.CompileOK, RunStatus: model.RunExitOK, ExitCode: 0, Stdout: "ok"}
}

func crashOutcome() model.TestOutcome {
	return model.TestOutcome{CompileStatus: model.CompileOK, RunStatus: model.RunExitNonzero, ExitCode: 1}
}

func TestDiagnose_CleanSignalsGateToCompilerBugThenDiagnosed(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("int main(){return 0;}")
	if _, _, err := s.Submit(e); err != nil {
		t.Fatal(err)
	}
	fp := model.ComputeFingerprint(e)

	runner := fakeRunner{run: func(_ context.Context, _ string, recipe model.Recipe) (model.TestOutcome, error) {
		if hasFlag(recipe, "-fsanitize=undefined") {
			return okOutcome(), nil // UBSan never fires: clean signal
		}
		if recipe.Passes != nil {
			if len(recipe.Passes) >= 2 {
				return crashOutcome(), nil
			}
			return okOutcome(), nil
		}
		// The regression is present only in clang 18.0.0 at -O2/-O3.
		if recipe.Family == model.FamilyClang && recipe.Version == "18.0.0" &&
			(recipe.OptLevel == "-O2" || recipe.OptLevel == "-O3") {
			return crashOutcome(), nil
		}
		return okOutcome(), nil
	}}
	printer := fakePrinter{passes: []string{"simplifycfg", "instcombine", "gvn"}}

	o := &Orchestrator{store: s, runner: runner, printer: printer, cfg: testConfig(), log: zap.NewNop()}

	diag, err := o.Diagnose(context.Background(), fp)
	if err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	if diag.Verdict != model.VerdictCompilerBug {
		t.Fatalf("Verdict = %v, want compiler_bug (confidence=%v)", diag.Verdict, diag.Confidence)
	}
	if diag.VersionBisection == nil || diag.VersionBisection.Disposition != model.DispositionBisected {
		t.Fatalf("VersionBisection = %+v, want bisected", diag.VersionBisection)
	}
	if diag.VersionBisection.FirstBad != "18.0.0" {
		t.Errorf("FirstBad = %q, want 18.0.0", diag.VersionBisection.FirstBad)
	}
	if diag.PassBisection == nil || diag.PassBisection.Disposition != model.DispositionBisected {
		t.Fatalf("PassBisection = %+v, want bisected", diag.PassBisection)
	}
	if diag.PassBisection.SuspectedPass != "instcombine" {
		t.Errorf("SuspectedPass = %q, want instcombine", diag.PassBisection.SuspectedPass)
	}

	rec, err := s.Get(fp)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != model.StatusDiagnosed {
		t.Errorf("Status = %v, want diagnosed", rec.Status)
	}
	if rec.Diagnosis == nil || rec.Diagnosis.Verdict != model.VerdictCompilerBug {
		t.Errorf("persisted Diagnosis missing or wrong: %+v", rec.Diagnosis)
	}
}

func TestDiagnose_UserUBStopsBeforeBisection(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("int main(){ int x = 1<<31; return x; }")
	if _, _, err := s.Submit(e); err != nil {
		t.Fatal(err)
	}
	fp := model.ComputeFingerprint(e)

	runner := fakeRunner{run: func(_ context.Context, _ string, recipe model.Recipe) (model.TestOutcome, error) {
		if hasFlag(recipe, "-fsanitize=undefined") {
			return model.TestOutcome{CompileStatus: model.CompileOK, RunStatus: model.RunExitNonzero, Stderr: "runtime error: overflow"}, nil
		}
		return okOutcome(), nil
	}}
	printer := fakePrinter{err: fmt.Errorf("PrintPipeline must not be called once C3 gates to user_ub")}
	o := &Orchestrator{store: s, runner: runner, printer: printer, cfg: testConfig(), log: zap.NewNop()}

	diag, err := o.Diagnose(context.Background(), fp)
	if err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	if diag.Verdict != model.VerdictUserUB {
		t.Fatalf("Verdict = %v, want user_ub", diag.Verdict)
	}
	if diag.VersionBisection != nil {
		t.Error("VersionBisection should be nil: C4 must not run after a user_ub verdict")
	}
	if diag.PassBisection != nil {
		t.Error("PassBisection should be nil: C5 must not run after a user_ub verdict")
	}

	rec, err := s.Get(fp)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != model.StatusUserUB {
		t.Errorf("Status = %v, want user_ub", rec.Status)
	}
}

func TestDiagnose_InconclusiveSignalsStopBeforeBisection(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("int main(){}")
	if _, _, err := s.Submit(e); err != nil {
		t.Fatal(err)
	}
	fp := model.ComputeFingerprint(e)

	runner := fakeRunner{run: func(_ context.Context, _ string, _ model.Recipe) (model.TestOutcome, error) {
		return model.TestOutcome{}, context.DeadlineExceeded
	}}
	o := &Orchestrator{store: s, runner: runner, printer: fakePrinter{}, cfg: testConfig(), log: zap.NewNop()}

	diag, err := o.Diagnose(context.Background(), fp)
	if err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	if diag.Verdict != model.VerdictInconclusive {
		t.Fatalf("Verdict = %v, want inconclusive", diag.Verdict)
	}

	rec, err := s.Get(fp)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != model.StatusInconclusive {
		t.Errorf("Status = %v, want inconclusive", rec.Status)
	}
}

func TestDiagnose_NoVersionLadderConfiguredIsInconclusive(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("int main(){return 0;}")
	if _, _, err := s.Submit(e); err != nil {
		t.Fatal(err)
	}
	fp := model.ComputeFingerprint(e)

	runner := fakeRunner{run: func(_ context.Context, _ string, _ model.Recipe) (model.TestOutcome, error) {
		return okOutcome(), nil
	}}
	cfg := config.Defaults() // no VersionLadders entries
	o := &Orchestrator{store: s, runner: runner, printer: fakePrinter{}, cfg: cfg, log: zap.NewNop()}

	diag, err := o.Diagnose(context.Background(), fp)
	if err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	if diag.Verdict != model.VerdictCompilerBug {
		t.Fatalf("Verdict = %v, want compiler_bug", diag.Verdict)
	}

	rec, err := s.Get(fp)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != model.StatusInconclusive {
		t.Errorf("Status = %v, want inconclusive (no version ladder to bisect over)", rec.Status)
	}
}

func TestDiagnose_VersionAllPassDispositionIsInconclusive(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("int main(){return 0;}")
	if _, _, err := s.Submit(e); err != nil {
		t.Fatal(err)
	}
	fp := model.ComputeFingerprint(e)

	runner := fakeRunner{run: func(_ context.Context, _ string, _ model.Recipe) (model.TestOutcome, error) {
		return okOutcome(), nil
	}}
	o := &Orchestrator{store: s, runner: runner, printer: fakePrinter{}, cfg: testConfig(), log: zap.NewNop()}

	diag, err := o.Diagnose(context.Background(), fp)
	if err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	if diag.VersionBisection.Disposition != model.DispositionAllPass {
		t.Fatalf("Disposition = %v, want all_pass", diag.VersionBisection.Disposition)
	}

	rec, err := s.Get(fp)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != model.StatusInconclusive {
		t.Errorf("Status = %v, want inconclusive", rec.Status)
	}
}

func TestDiagnose_NoSourceReturnsErrNoSource(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("")
	if _, _, err := s.Submit(e); err != nil {
		t.Fatal(err)
	}
	fp := model.ComputeFingerprint(e)

	o := &Orchestrator{store: s, runner: fakeRunner{}, printer: fakePrinter{}, cfg: testConfig(), log: zap.NewNop()}
	if _, err := o.Diagnose(context.Background(), fp); err != ErrNoSource {
		t.Errorf("Diagnose() error = %v, want ErrNoSource", err)
	}
}

func TestAlternateRecipe_FallsBackToZeroValueWhenUnresolvable(t *testing.T) {
	cfg := config.Defaults()
	cfg.AlternatePairing = map[model.CompilerFamily]model.CompilerFamily{}
	o := &Orchestrator{cfg: cfg}

	alt := o.alternateRecipe(sampleEvent("x"), model.Recipe{Family: model.FamilyClang})
	if alt.Family != "" {
		t.Errorf("Family = %q, want empty when no pairing is configured", alt.Family)
	}
}
