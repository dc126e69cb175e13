package model

import "time"

// Recipe is the full specification of how C2 should compile and run a
// source: compiler, version, optimization level, flags, and an optional
// explicit pass list consumed only by C5.
type Recipe struct {
	Family CompilerFamily `json:"family"`
	// Version is the version token the resolver maps, together with
	// Family, to an executable path.
	Version string `json:"version"`
	// OptLevel is one of "-O0", "-O1", "-O2", "-O3", "-Os", etc.
	OptLevel string `json:"opt_level"`
	Flags    []string `json:"flags,omitempty"`
	// Passes, when non-nil, requests compilation through the pass driver
	// with exactly this ordered pass subsequence instead of the
	// compiler's default -O2 pipeline. Used by C5.
	Passes []string `json:"passes,omitempty"`

	Stdin string `json:"stdin,omitempty"`
	Argv  []string `json:"argv,omitempty"`

	CompileTimeout time.Duration `json:"compile_timeout"`
	RunTimeout     time.Duration `json:"run_timeout"`
}

// TestOutcome is the atomic, transient result of one C2 invocation for a
// (source, recipe) pair. The caller folds it into pass/fail/indeterminate
// via its own oracle; C2 itself never interprets it.
type TestOutcome struct {
	CompileStatus   CompileStatus    `json:"compile_status"`
	CompileErrType  CompileErrorType `json:"compile_error_type,omitempty"`
	RunStatus       RunStatus        `json:"run_status"`

	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	ExitCode int           `json:"exit_code"`
	WallTime time.Duration `json:"wall_time"`
}

// Indeterminate reports whether this outcome should be treated as a
// skip-eligible probe by a bisector rather than conflated with pass/fail
// (§4.4 step 3, §7 "Toolchain-missing").
func (o TestOutcome) Indeterminate() bool {
	switch o.CompileStatus {
	case CompileToolchainMissing, CompileICE, CompileTimeout:
		return true
	}
	return o.RunStatus == RunTimeout
}

// Succeeded reports whether compilation and execution both completed
// cleanly with a zero exit status, independent of any output oracle.
func (o TestOutcome) Succeeded() bool {
	return o.CompileStatus == CompileOK && o.RunStatus == RunExitOK
}
