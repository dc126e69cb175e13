// Package config loads and validates Trace2Pass-Core's process-wide
// configuration.
//
// Every setting lives in this explicit Config value object and is
// passed to component constructors; nothing here is read from a
// package-level global.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/trace2pass/core/internal/model"
)

// StoreConfig configures the C1 Report Store.
type StoreConfig struct {
	// Path is the bbolt database file location.
	Path string `yaml:"path"`
	// RetentionDays is the retention window, in days, for terminal-status
	// records. Validate rejects negative values; nothing in this module
	// prunes records, so the store keeps every record whatever its value.
	RetentionDays int `yaml:"retention_days"`
}

// ToolchainRegistry maps a (family, version) pair to an executable path,
// keyed as "family:version" (§9's toolchain_registry option).
type ToolchainRegistry map[string]string

// Lookup resolves a compiler binary path for (family, version).
func (r ToolchainRegistry) Lookup(family model.CompilerFamily, version string) (string, bool) {
	path, ok := r[string(family)+":"+version]
	return path, ok
}

// AnyVersion returns the lexicographically smallest registered version
// for family, for callers (S3's differential) that need *some* concrete
// version of an alternate family rather than a specific one.
func (r ToolchainRegistry) AnyVersion(family model.CompilerFamily) (string, bool) {
	prefix := string(family) + ":"
	best := ""
	for key := range r {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		version := strings.TrimPrefix(key, prefix)
		if best == "" || version < best {
			best = version
		}
	}
	return best, best != ""
}

// HTTPConfig configures the §6 HTTP ingress/query server.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// MCPConfig configures the optional MCP stdio transport.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the single explicit value object carrying every recognized
// process-wide option named in §9: sample_rate, output_sink,
// compile_timeout_s, run_timeout_s, skip_budget, severity_weights,
// toolchain_registry — plus the ambient storage/transport/logging
// settings a complete implementation also needs.
type Config struct {
	// SampleRate ∈ [0,1] is checked by Validate. Neither the store nor
	// the Orchestrator reads it: every submitted event is stored and
	// every queued record is eligible for diagnosis.
	SampleRate float64 `yaml:"sample_rate"`

	// OutputSink is either a file path or the literal "stderr".
	OutputSink string `yaml:"output_sink"`

	CompileTimeoutS int `yaml:"compile_timeout_s"`
	RunTimeoutS     int `yaml:"run_timeout_s"`

	// SkipBudget bounds how many indeterminate probes a single bisection
	// stage tolerates before returning DispositionUnbisectable.
	SkipBudget int `yaml:"skip_budget"`

	// SeverityWeights overrides model.SeverityWeights when non-empty.
	SeverityWeights map[model.CheckKind]float64 `yaml:"severity_weights"`

	ToolchainRegistry ToolchainRegistry `yaml:"toolchain_registry"`

	Store   StoreConfig `yaml:"store"`
	HTTP    HTTPConfig  `yaml:"http"`
	MCP     MCPConfig   `yaml:"mcp"`
	LogLevel string     `yaml:"log_level"`

	// ScratchDir is the parent directory C2 creates per-invocation
	// scratch directories under.
	ScratchDir string `yaml:"scratch_dir"`

	// MaxConcurrentJobs bounds how many diagnosis jobs the Orchestrator's
	// worker pool runs at once (§5: independent jobs may run in parallel).
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs"`

	// VersionLadders is the totally ordered, oldest-to-newest version
	// list C4 bisects over, keyed by compiler family. A family with no
	// entry cannot be version-bisected; the Orchestrator marks the record
	// inconclusive without running C4 rather than guessing a range.
	VersionLadders map[model.CompilerFamily][]string `yaml:"version_ladders"`

	// AlternatePairing maps a compiler family to the family C3's S3
	// differential compiles the same source with. A family absent from
	// this map has no configured differential partner, and S3 reports
	// unknown for events observed under it.
	AlternatePairing map[model.CompilerFamily]model.CompilerFamily `yaml:"alternate_pairing"`
}

// CompileTimeout returns CompileTimeoutS as a time.Duration.
func (c Config) CompileTimeout() time.Duration {
	return time.Duration(c.CompileTimeoutS) * time.Second
}

// RunTimeout returns RunTimeoutS as a time.Duration.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutS) * time.Second
}

// Defaults returns a fully populated Config with sensible defaults,
// matching §5's stated default timeouts (compile 60s, run 10s).
func Defaults() Config {
	return Config{
		SampleRate:        1.0,
		OutputSink:        "stderr",
		CompileTimeoutS:   60,
		RunTimeoutS:       10,
		SkipBudget:        3,
		SeverityWeights:   nil,
		ToolchainRegistry: ToolchainRegistry{},
		Store: StoreConfig{
			Path:          "/var/lib/trace2pass/store.db",
			RetentionDays: 0,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Addr:    ":8080",
		},
		MCP:               MCPConfig{Enabled: false},
		LogLevel:          "info",
		ScratchDir:        os.TempDir(),
		MaxConcurrentJobs: 4,
		VersionLadders:    map[model.CompilerFamily][]string{},
		AlternatePairing: map[model.CompilerFamily]model.CompilerFamily{
			model.FamilyClang: model.FamilyGCC,
			model.FamilyGCC:   model.FamilyClang,
		},
	}
}

// Load reads a YAML config file at path, starting from Defaults() so
// unset fields retain their default value, then validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate accumulates every violation it finds and returns them as a
// single multi-line error, rather than failing fast on the first one.
func (c Config) Validate() error {
	var problems []string

	if c.SampleRate < 0 || c.SampleRate > 1 {
		problems = append(problems, fmt.Sprintf("sample_rate must be in [0,1], got %v", c.SampleRate))
	}
	if c.OutputSink == "" {
		problems = append(problems, "output_sink must not be empty")
	}
	if c.CompileTimeoutS <= 0 {
		problems = append(problems, "compile_timeout_s must be positive")
	}
	if c.RunTimeoutS <= 0 {
		problems = append(problems, "run_timeout_s must be positive")
	}
	if c.SkipBudget < 0 {
		problems = append(problems, "skip_budget must not be negative")
	}
	for kind, weight := range c.SeverityWeights {
		if weight < 0 {
			problems = append(problems, fmt.Sprintf("severity_weights[%s] must not be negative", kind))
		}
	}
	if c.Store.Path == "" {
		problems = append(problems, "store.path must not be empty")
	}
	if c.Store.RetentionDays < 0 {
		problems = append(problems, "store.retention_days must not be negative")
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		problems = append(problems, "http.addr must not be empty when http.enabled is true")
	}
	if c.MaxConcurrentJobs <= 0 {
		problems = append(problems, "max_concurrent_jobs must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// EffectiveSeverityWeights returns c.SeverityWeights if set, else falls
// back to model.SeverityWeights (§4.1's built-in table).
func (c Config) EffectiveSeverityWeights() map[model.CheckKind]float64 {
	if len(c.SeverityWeights) > 0 {
		return c.SeverityWeights
	}
	return model.SeverityWeights
}

// VersionLadder returns the configured oldest-to-newest version list for
// family, or nil if none is configured.
func (c Config) VersionLadder(family model.CompilerFamily) []string {
	return c.VersionLadders[family]
}

// AlternateFamily returns the configured S3 differential partner for
// family and whether one is configured at all.
func (c Config) AlternateFamily(family model.CompilerFamily) (model.CompilerFamily, bool) {
	alt, ok := c.AlternatePairing[family]
	return alt, ok
}
