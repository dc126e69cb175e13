package model

import "time"

// UBSignals bundles the three C3 signal observations, each a TriState.
type UBSignals struct {
	UBSanClean            TriState `json:"ubsan_clean"`
	OptimizationSensitive TriState `json:"optimization_sensitive"`
	MultiCompilerDiffers  TriState `json:"multi_compiler_differs"`
}

// VersionBisectionResult is C4's output.
type VersionBisectionResult struct {
	Disposition    Disposition `json:"disposition"`
	FirstBad       string      `json:"first_bad,omitempty"`
	LastGood       string      `json:"last_good,omitempty"`
	VersionsTested []ProbeTrace `json:"versions_tested,omitempty"`
	WallTime       time.Duration `json:"wall_time"`
}

// PassBisectionResult is C5's output.
type PassBisectionResult struct {
	Disposition      Disposition  `json:"disposition"`
	SuspectedPass    string       `json:"suspected_pass,omitempty"`
	PassIndex        int          `json:"pass_index"`
	TotalPasses      int          `json:"total_passes"`
	CandidatesTested []ProbeTrace `json:"candidates_tested,omitempty"`
	WallTime         time.Duration `json:"wall_time"`
}

// ProbeTrace records one bisection probe for auditability: what was
// tested, what the raw TestOutcome was, and how the oracle classified it.
type ProbeTrace struct {
	Label    string      `json:"label"`
	Outcome  TestOutcome `json:"outcome"`
	Result   ProbeResult `json:"result"`
}

// Workaround is the orchestrator's structured mitigation suggestion.
type Workaround struct {
	// Flag is the recommended compiler flag, e.g. "-mllvm -disable-instcombine"
	// or "-fno-tree-ccp". Empty if no pass-specific flag is known.
	Flag string `json:"flag,omitempty"`
	// FallbackOptLevel is the optimization-level downgrade to suggest
	// when no pass-specific flag is known.
	FallbackOptLevel string `json:"fallback_opt_level,omitempty"`
	// Caveat is set whenever the pass-specific form is not known to
	// exist, so the suggestion is not silently downgraded (§7).
	Caveat string `json:"caveat,omitempty"`
}

// Diagnosis is the final synthesized record the Orchestrator writes back
// to the store via update_status.
type Diagnosis struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Verdict     Verdict     `json:"verdict"`
	Confidence  float64     `json:"confidence"`

	Signals UBSignals `json:"signals"`

	VersionBisection *VersionBisectionResult `json:"version_bisection,omitempty"`
	PassBisection    *PassBisectionResult    `json:"pass_bisection,omitempty"`

	Workaround Workaround `json:"suggested_workaround,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
