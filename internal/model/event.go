package model

import "time"

// Location pinpoints the source site an AnomalyEvent was raised at.
type Location struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// CompilerID identifies the compiler that produced the binary under test.
type CompilerID struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Target  string `json:"target,omitempty"`
}

// BuildInfo records the recipe the instrumented binary was built with.
type BuildInfo struct {
	OptimizationLevel string   `json:"optimization_level"`
	Flags             []string `json:"flags"`
	SourceHash        string   `json:"source_hash,omitempty"`
	BinaryChecksum    string   `json:"binary_checksum,omitempty"`
}

// SystemInfo is best-effort host context attached to an event.
type SystemInfo struct {
	OS       string `json:"os,omitempty"`
	Arch     string `json:"arch,omitempty"`
	Hostname string `json:"hostname,omitempty"`
}

// AnomalyEvent is an immutable record of one runtime detection, as
// submitted over the §6 ingestion interface. Once stored it is never
// mutated; only a BugRecord's counters change in response to it.
type AnomalyEvent struct {
	ReportID  string    `json:"report_id"`
	Timestamp time.Time `json:"timestamp"`
	CheckType CheckKind `json:"check_type"`
	Location  Location  `json:"location"`

	PC         uint64   `json:"pc,omitempty"`
	Stacktrace []string `json:"stacktrace,omitempty"`

	Compiler  CompilerID `json:"compiler"`
	BuildInfo BuildInfo  `json:"build_info"`

	// Source is the reproducer program text the diagnosis pipeline
	// compiles and runs. It is opaque to C1 (never hashed, inspected, or
	// validated beyond presence) and is supplied by the out-of-scope
	// instrumented-binary runtime alongside BuildInfo.SourceHash. A
	// record with no Source can still be stored, counted, and queued;
	// the Orchestrator simply cannot run C3/C4/C5 against it: Diagnose
	// returns ErrNoSource and leaves its status unchanged.
	Source string `json:"source,omitempty"`

	// CheckDetails holds kind-specific payload (operands, computed and
	// expected values). Left as a raw map since its shape varies by
	// CheckType and the core never interprets it beyond passing it
	// through to the diagnosis audit trail.
	CheckDetails map[string]any `json:"check_details,omitempty"`

	SystemInfo SystemInfo `json:"system_info,omitempty"`
}

// Validate checks the required fields listed in §6. It does not check
// CheckDetails, whose shape is kind-specific and opaque to the core.
func (e AnomalyEvent) Validate() error {
	if e.Timestamp.IsZero() {
		return fieldError("timestamp")
	}
	if !e.CheckType.Valid() {
		return fieldError("check_type")
	}
	if e.Location.File == "" {
		return fieldError("location.file")
	}
	if e.Location.Line <= 0 {
		return fieldError("location.line")
	}
	if e.Compiler.Name == "" {
		return fieldError("compiler.name")
	}
	if e.Compiler.Version == "" {
		return fieldError("compiler.version")
	}
	if e.BuildInfo.OptimizationLevel == "" {
		return fieldError("build_info.optimization_level")
	}
	if e.BuildInfo.Flags == nil {
		return fieldError("build_info.flags")
	}
	return nil
}

// ValidationError reports a single malformed or missing required field
// (§7 "Input errors").
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "invalid event: missing or malformed field " + e.Field
}

func fieldError(field string) error {
	return &ValidationError{Field: field}
}
