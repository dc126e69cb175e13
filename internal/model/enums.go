// Package model defines the data types shared by every Trace2Pass component:
// ingested events, deduplicated bug records, diagnoses, and the closed
// enumerations that tag their dispositions.
package model

// CheckKind identifies the runtime check that fired to produce an AnomalyEvent.
type CheckKind string

const (
	CheckArithmeticOverflow CheckKind = "arithmetic_overflow"
	CheckUnreachable        CheckKind = "unreachable"
	CheckBoundsViolation    CheckKind = "bounds_violation"
	CheckDivisionByZero     CheckKind = "division_by_zero"
	CheckSignConversion     CheckKind = "sign_conversion"
	CheckPureInconsistency  CheckKind = "pure_inconsistency"
	CheckLoopBoundExceeded  CheckKind = "loop_bound_exceeded"
)

// Valid reports whether k is one of the recognized check kinds.
func (k CheckKind) Valid() bool {
	switch k {
	case CheckArithmeticOverflow, CheckUnreachable, CheckBoundsViolation,
		CheckDivisionByZero, CheckSignConversion, CheckPureInconsistency, CheckLoopBoundExceeded:
		return true
	}
	return false
}

// Status is a BugRecord's position in its lifecycle state machine (I2).
type Status string

const (
	StatusNew           Status = "new"
	StatusTriaged       Status = "triaged"
	StatusDiagnosing    Status = "diagnosing"
	StatusDiagnosed     Status = "diagnosed"
	StatusUserUB        Status = "user_ub"
	StatusFalsePositive Status = "false_positive"
	StatusInconclusive  Status = "inconclusive"
)

// terminal reports whether s has no further transitions except explicit
// operator action.
func (s Status) terminal() bool {
	switch s {
	case StatusDiagnosed, StatusUserUB, StatusFalsePositive, StatusInconclusive:
		return true
	}
	return false
}

// CanTransition reports whether the BugRecord status machine permits
// moving from s to next without operator override, enforcing (I2).
func (s Status) CanTransition(next Status) bool {
	if s.terminal() {
		return false
	}
	switch s {
	case StatusNew:
		return next == StatusTriaged || next == StatusDiagnosing
	case StatusTriaged:
		return next == StatusDiagnosing
	case StatusDiagnosing:
		return next == StatusDiagnosed || next == StatusUserUB || next == StatusInconclusive
	}
	return false
}

// CanOperatorTransition reports whether an explicit operator action (the
// PATCH /reports/{fingerprint} path, as opposed to the automatic
// C3-C5-driven transitions CanTransition gates) may move s to next. An
// operator can mark any non-false-positive record false_positive, and
// can reopen a terminal record back to triaged for re-diagnosis;
// everything else falls back to the automatic transition graph.
func (s Status) CanOperatorTransition(next Status) bool {
	if next == StatusFalsePositive {
		return s != StatusFalsePositive
	}
	if s.terminal() && next == StatusTriaged {
		return true
	}
	return s.CanTransition(next)
}

// Verdict is C3's top-level classification of an anomaly.
type Verdict string

const (
	VerdictCompilerBug  Verdict = "compiler_bug"
	VerdictUserUB       Verdict = "user_ub"
	VerdictInconclusive Verdict = "inconclusive"
)

// TriState is a three-valued observation: true, false, or unknown.
// Used for each of C3's signals, where unknown means the toolchain
// required to compute the signal was unavailable or failed on both sides.
type TriState string

const (
	TriTrue    TriState = "true"
	TriFalse   TriState = "false"
	TriUnknown TriState = "unknown"
)

// CompileStatus is the closed set of outcomes a C2 compile stage can report.
type CompileStatus string

const (
	CompileOK                CompileStatus = "ok"
	CompileToolchainMissing  CompileStatus = "toolchain_missing"
	CompileErrorDiagnostic   CompileStatus = "compile_error_diagnostic"
	CompileICE               CompileStatus = "compile_ice"
	CompileTimeout           CompileStatus = "timeout"
)

// RunStatus is the closed set of outcomes a C2 run stage can report.
type RunStatus string

const (
	RunExitOK      RunStatus = "exit_ok"
	RunExitNonzero RunStatus = "exit_nonzero"
	RunSignal      RunStatus = "signal"
	RunTimeout     RunStatus = "timeout"
	RunNotRun      RunStatus = "not_run"
)

// CompileErrorType further classifies a non-ok CompileStatus for the
// diagnosis audit trail, distinguishing an ICE from a plain diagnostic
// rejection and from a timeout (§7).
type CompileErrorType string

const (
	CompileErrorNone           CompileErrorType = ""
	CompileErrorTypeICE        CompileErrorType = "ice"
	CompileErrorTypeDiagnostic CompileErrorType = "diagnostic"
	CompileErrorTypeTimeout    CompileErrorType = "timeout"
)

// Disposition is the closed outcome tag of a bisection stage (C4 or C5).
type Disposition string

const (
	// DispositionBisected is returned when the walker found a clean
	// good/bad boundary within the sequence.
	DispositionBisected Disposition = "bisected"
	// DispositionAllPass means every probed element passed: no regression
	// is present in the searched range.
	DispositionAllPass Disposition = "all_pass"
	// DispositionAllFail means every probed element failed: the regression
	// predates the first element of the searched range.
	DispositionAllFail Disposition = "all_fail"
	// DispositionNonMonotonic means the first element failed while the
	// last passed, violating the monotonicity precondition for bisection.
	DispositionNonMonotonic Disposition = "non_monotonic"
	// DispositionUnbisectable means the indeterminate-probe skip budget
	// was exhausted before a boundary could be established, or, for C5,
	// that a sanity run on the empty or full pass list went the wrong way.
	DispositionUnbisectable Disposition = "unbisectable"
)

// ProbeResult is the tri-state outcome a predicate assigns to one probe:
// pass, fail, or indeterminate (toolchain missing, unrelated ICE, timeout).
type ProbeResult string

const (
	ProbePass          ProbeResult = "pass"
	ProbeFail          ProbeResult = "fail"
	ProbeIndeterminate ProbeResult = "indeterminate"
)

// CompilerFamily is the closed set of compiler families C2 resolves.
type CompilerFamily string

const (
	FamilyClang CompilerFamily = "clang"
	FamilyGCC   CompilerFamily = "gcc"
)
