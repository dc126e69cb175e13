// Package toolchain implements C2, the Toolchain Driver: a stateless
// façade over external compilers that compiles and runs a source under
// a given recipe and reports the raw outcome, never interpreting
// pass/fail itself. Subprocess lifecycle, binary resolution, and
// environment sanitization follow the example pack's BCC-tool executor,
// generalized from "run a fixed BCC tool" to "compile and run an
// arbitrary source under an arbitrary compiler recipe."
package toolchain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trace2pass/core/internal/model"
)

// Runner is the minimal interface C3/C4/C5 depend on, so they can be
// tested against a fake without pulling in the real subprocess executor.
type Runner interface {
	Run(ctx context.Context, source string, recipe model.Recipe) (model.TestOutcome, error)
}

// Driver is C2's concrete implementation.
type Driver struct {
	resolver   *Resolver
	tracker    *PIDTracker
	scratchDir string
	log        *zap.Logger

	mu    sync.Mutex
	cache map[string]model.TestOutcome
}

// NewDriver builds a Driver. scratchDir is the parent directory
// per-invocation scratch directories are created under.
func NewDriver(resolver *Resolver, scratchDir string, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		resolver:   resolver,
		tracker:    NewPIDTracker(),
		scratchDir: scratchDir,
		log:        log,
		cache:      make(map[string]model.TestOutcome),
	}
}

// Tracker exposes the driver's child-PID tracker for inspection. The
// Orchestrator does not call it.
func (d *Driver) Tracker() *PIDTracker { return d.tracker }

func cacheKey(source string, recipe model.Recipe) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte("\x00"))
	fmt.Fprintf(h, "%+v", recipe)
	h.Write([]byte("\x00"))
	h.Write([]byte(recipe.Stdin))
	return hex.EncodeToString(h.Sum(nil))
}

// Run implements §4.2's single primary operation: compile source under
// recipe, execute it, and return the raw TestOutcome. Outcomes are
// memoized per (source-hash, recipe-hash, stdin-hash) for the process
// lifetime (§4.2 Caching).
func (d *Driver) Run(ctx context.Context, source string, recipe model.Recipe) (model.TestOutcome, error) {
	key := cacheKey(source, recipe)

	d.mu.Lock()
	if cached, ok := d.cache[key]; ok {
		d.mu.Unlock()
		return cached, nil
	}
	d.mu.Unlock()

	outcome, err := d.run(ctx, source, recipe)
	if err != nil {
		return model.TestOutcome{}, err
	}

	d.mu.Lock()
	d.cache[key] = outcome
	d.mu.Unlock()

	return outcome, nil
}

func (d *Driver) run(ctx context.Context, source string, recipe model.Recipe) (model.TestOutcome, error) {
	binPath, ok := d.resolver.Resolve(recipe.Family, recipe.Version)
	if !ok {
		return model.TestOutcome{
			CompileStatus: model.CompileToolchainMissing,
			RunStatus:     model.RunNotRun,
		}, nil
	}
	if err := VerifyBinary(binPath); err != nil {
		return model.TestOutcome{}, fmt.Errorf("toolchain: binary verification failed: %w", err)
	}

	scratch, err := NewScratch(d.scratchDir)
	if err != nil {
		return model.TestOutcome{}, err
	}
	defer func() {
		if cerr := scratch.Close(); cerr != nil {
			d.log.Warn("scratch cleanup failed", zap.Error(cerr), zap.String("dir", scratch.Dir))
		}
	}()

	sourcePath := scratch.Dir + "/source" + sourceExtension()
	if err := os.WriteFile(sourcePath, []byte(source), 0o600); err != nil {
		return model.TestOutcome{}, fmt.Errorf("toolchain: write source: %w", err)
	}

	compileCtx, cancel := context.WithTimeout(ctx, nonZero(recipe.CompileTimeout, 60*time.Second))
	defer cancel()

	outcome := model.TestOutcome{}
	var compileRes *processResult

	// recipe.Passes == nil (not merely empty) selects the ordinary
	// default-pipeline compile; a non-nil, possibly zero-length slice
	// requests the pass-specific three-stage pipeline with exactly that
	// subsequence, including C5's "empty prefix" sanity probe.
	if recipe.Passes == nil {
		args := buildCompileArgs(recipe, sourcePath, scratch.BinaryPath())
		compileRes, err = runProcess(compileCtx, d.tracker, "compile", binPath, args, SanitizeEnv(), "", d.log)
	} else {
		compileRes, err = d.runPassSpecificCompile(compileCtx, binPath, recipe, sourcePath, scratch)
	}
	if err != nil {
		return model.TestOutcome{}, err
	}

	outcome.CompileStatus, outcome.CompileErrType = classifyCompile(compileRes)
	outcome.Stderr = compileRes.Stderr
	outcome.WallTime = compileRes.Duration

	if outcome.CompileStatus != model.CompileOK {
		outcome.RunStatus = model.RunNotRun
		return outcome, nil
	}

	runCtx, cancelRun := context.WithTimeout(ctx, nonZero(recipe.RunTimeout, 10*time.Second))
	defer cancelRun()

	runRes, err := runProcess(runCtx, d.tracker, "run", scratch.BinaryPath(), recipe.Argv, SanitizeEnv(), recipe.Stdin, d.log)
	if err != nil {
		return model.TestOutcome{}, err
	}

	outcome.RunStatus = classifyRun(runRes)
	outcome.Stdout = runRes.Stdout
	outcome.Stderr = compileRes.Stderr + runRes.Stderr
	outcome.ExitCode = runRes.ExitCode
	outcome.WallTime += runRes.Duration

	return outcome, nil
}

// runPassSpecificCompile implements C5's three-stage pipeline: emit
// unoptimized IR, apply the explicit ordered pass list via `opt`, then
// compile the resulting IR to a linked executable (§4.5, §6).
func (d *Driver) runPassSpecificCompile(ctx context.Context, binPath string, recipe model.Recipe, sourcePath string, scratch *Scratch) (*processResult, error) {
	if recipe.Family != model.FamilyClang {
		return nil, fmt.Errorf("toolchain: pass-specific compilation is only supported for clang, got %s", recipe.Family)
	}

	emitArgs := buildEmitIRArgs(sourcePath, scratch.IRPath())
	res, err := runProcess(ctx, d.tracker, "emit-ir", binPath, emitArgs, SanitizeEnv(), "", d.log)
	if err != nil || res.ExitCode != 0 {
		return res, err
	}

	optimizedIR := scratch.Dir + "/optimized.ll"
	optArgs := buildOptArgs(recipe.Passes, scratch.IRPath(), optimizedIR)
	res, err = runProcess(ctx, d.tracker, "opt", optBinaryFor(binPath), optArgs, SanitizeEnv(), "", d.log)
	if err != nil || res.ExitCode != 0 {
		return res, err
	}

	codegenArgs := buildCodegenArgs(recipe, optimizedIR, scratch.BinaryPath())
	return runProcess(ctx, d.tracker, "codegen", binPath, codegenArgs, SanitizeEnv(), "", d.log)
}

// optBinaryFor derives the `opt` tool path from a resolved clang path,
// assuming the conventional LLVM install layout where opt lives
// alongside clang in the same bin directory.
func optBinaryFor(clangPath string) string {
	return filepath.Join(filepath.Dir(clangPath), "opt")
}

// sourceExtension names the scratch file every recipe's source is
// written to. Every reproducer handled by this pipeline is C, including
// the clang ones — S3's multi-compiler comparison and C4/C5's bisection
// depend on clang and gcc parsing the identical source language, and a
// .cpp extension would silently hand clang to its C++ front end instead.
func sourceExtension() string {
	return ".c"
}

func nonZero(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
