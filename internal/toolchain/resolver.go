package toolchain

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/trace2pass/core/internal/config"
	"github.com/trace2pass/core/internal/model"
)

// ContainerAdapter resolves a (family, version) pair to an executable
// path by consulting a containerized-toolchain provider (e.g. a pinned
// image per compiler release) rather than the host filesystem. Kept as
// an interface so the containerized adapter can be swapped or stubbed in
// tests; a nil ContainerAdapter simply means that stage is skipped.
type ContainerAdapter interface {
	Resolve(family model.CompilerFamily, version string) (string, bool)
}

// Resolver implements §4.2 step 1: map (family, version) to an
// executable path by consulting, in order, an explicit registry, a
// containerized-toolchain adapter, and finally a PATH-based lookup.
// Generalized from the example pack's allowed-directory BCC tool
// resolver to a (family, version) keyed compiler resolver.
type Resolver struct {
	registry  config.ToolchainRegistry
	container ContainerAdapter
	lookPath  func(string) (string, error)
}

// NewResolver builds a Resolver over the given registry and optional
// container adapter. A nil container disables the containerized stage.
func NewResolver(registry config.ToolchainRegistry, container ContainerAdapter) *Resolver {
	return &Resolver{
		registry:  registry,
		container: container,
		lookPath:  exec.LookPath,
	}
}

// Resolve finds the compiler executable for (family, version). It
// returns ok=false (not an error) when no mapping exists anywhere in the
// resolution chain — callers translate that into
// model.CompileToolchainMissing rather than an internal error, since a
// missing toolchain is an expected, first-class outcome (§7).
func (r *Resolver) Resolve(family model.CompilerFamily, version string) (path string, ok bool) {
	if path, found := r.registry.Lookup(family, version); found {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}

	if r.container != nil {
		if path, found := r.container.Resolve(family, version); found {
			return path, true
		}
	}

	// PATH-based lookup as a last resort: try "<family>-<version>" (the
	// conventional Debian/Ubuntu alternatives naming, e.g. "clang-17")
	// then the bare family name.
	candidates := []string{
		string(family) + "-" + version,
		string(family),
	}
	for _, name := range candidates {
		if path, err := r.lookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

// VerifyBinary checks that a resolved compiler binary is safe to invoke:
// it exists, is a regular executable file, and is not world-writable.
// It does not require root ownership — compiler toolchains are
// routinely installed and owned by the invoking user or a package
// manager under $HOME, and requiring root ownership here would reject
// every non-system toolchain install.
func VerifyBinary(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat %q: %w", absPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory", absPath)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%q is not executable", absPath)
	}
	if info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("binary %q is world-writable (mode=%s)", absPath, info.Mode())
	}
	return nil
}

// safeEnvVars are the only environment variables propagated to a
// compiler/run subprocess, an allowlist that prevents environment
// injection from an untrusted recipe.
var safeEnvVars = map[string]bool{
	"PATH":   true,
	"HOME":   true,
	"LANG":   true,
	"LC_ALL": true,
	"TERM":   true,
	"TMPDIR": true,
}

// SanitizeEnv returns a minimal, safe subprocess environment for a
// toolchain invocation.
func SanitizeEnv() []string {
	var env []string
	hasPath := false
	for _, e := range os.Environ() {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 && safeEnvVars[parts[0]] {
			env = append(env, e)
			if parts[0] == "PATH" {
				hasPath = true
			}
		}
	}
	if !hasPath {
		env = append(env, "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin")
	}
	return env
}
