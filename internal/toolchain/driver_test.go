package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/trace2pass/core/internal/config"
	"github.com/trace2pass/core/internal/model"
)

// fakeCompilerScript writes a shell script masquerading as a compiler: it
// locates the "-o <path>" pair among its arguments and writes an
// executable stub there that just echoes stdin back to stdout, letting
// driver_test.go exercise the full compile-then-run pipeline without a
// real clang or gcc installed.
func fakeCompilerScript(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-clang")
	body := `#!/bin/sh
prev=""
out=""
for arg in "$@"; do
  if [ "$prev" = "-o" ]; then
    out="$arg"
  fi
  prev="$arg"
done
if [ -z "$out" ]; then
  echo "fake-clang: no -o argument" 1>&2
  exit 1
fi
cat > "$out" <<'EOF2'
#!/bin/sh
cat
exit 0
EOF2
chmod +x "$out"
exit 0
`
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func failingCompilerScript(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-clang-broken")
	body := "#!/bin/sh\necho 'error: stray garbage in program' 1>&2\nexit 1\n"
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestDriver(t *testing.T, registry config.ToolchainRegistry) *Driver {
	t.Helper()
	resolver := NewResolver(registry, nil)
	return NewDriver(resolver, t.TempDir(), nil)
}

func TestDriver_Run_CompileAndRunSucceed(t *testing.T) {
	compiler := fakeCompilerScript(t, t.TempDir())
	d := newTestDriver(t, config.ToolchainRegistry{"clang:17.0.0": compiler})

	recipe := model.Recipe{
		Family:   model.FamilyClang,
		Version:  "17.0.0",
		OptLevel: "-O2",
		Stdin:    "round trip",
	}

	outcome, err := d.Run(context.Background(), "int main() { return 0; }", recipe)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.CompileStatus != model.CompileOK {
		t.Fatalf("CompileStatus = %v, want %v (stderr=%q)", outcome.CompileStatus, model.CompileOK, outcome.Stderr)
	}
	if outcome.RunStatus != model.RunExitOK {
		t.Fatalf("RunStatus = %v, want %v", outcome.RunStatus, model.RunExitOK)
	}
	if outcome.Stdout != "round trip" {
		t.Errorf("Stdout = %q, want %q", outcome.Stdout, "round trip")
	}
	if !outcome.Succeeded() {
		t.Error("expected Succeeded() to be true")
	}
}

func TestDriver_Run_ToolchainMissing(t *testing.T) {
	d := newTestDriver(t, config.ToolchainRegistry{})

	recipe := model.Recipe{Family: model.FamilyClang, Version: "999.0.0", OptLevel: "-O2"}
	outcome, err := d.Run(context.Background(), "int main() {}", recipe)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.CompileStatus != model.CompileToolchainMissing {
		t.Errorf("CompileStatus = %v, want %v", outcome.CompileStatus, model.CompileToolchainMissing)
	}
	if outcome.RunStatus != model.RunNotRun {
		t.Errorf("RunStatus = %v, want %v", outcome.RunStatus, model.RunNotRun)
	}
	if !outcome.Indeterminate() {
		t.Error("a missing toolchain must be reported as an indeterminate probe")
	}
}

func TestDriver_Run_CompileErrorSkipsRunStage(t *testing.T) {
	compiler := failingCompilerScript(t, t.TempDir())
	d := newTestDriver(t, config.ToolchainRegistry{"clang:17.0.0": compiler})

	recipe := model.Recipe{Family: model.FamilyClang, Version: "17.0.0", OptLevel: "-O2"}
	outcome, err := d.Run(context.Background(), "garbage", recipe)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.CompileStatus != model.CompileErrorDiagnostic {
		t.Errorf("CompileStatus = %v, want %v", outcome.CompileStatus, model.CompileErrorDiagnostic)
	}
	if outcome.RunStatus != model.RunNotRun {
		t.Errorf("RunStatus = %v, want %v (run stage must be skipped after a failed compile)", outcome.RunStatus, model.RunNotRun)
	}
}

func TestDriver_Run_IsMemoizedPerProcessLifetime(t *testing.T) {
	dir := t.TempDir()
	compiler := fakeCompilerScript(t, dir)
	d := newTestDriver(t, config.ToolchainRegistry{"clang:17.0.0": compiler})

	recipe := model.Recipe{Family: model.FamilyClang, Version: "17.0.0", OptLevel: "-O2", Stdin: "x"}

	first, err := d.Run(context.Background(), "int main(){}", recipe)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Remove the compiler so a second, uncached invocation would fail to
	// resolve; a cache hit must return the identical outcome anyway.
	if err := os.Remove(compiler); err != nil {
		t.Fatal(err)
	}

	second, err := d.Run(context.Background(), "int main(){}", recipe)
	if err != nil {
		t.Fatalf("Run() (cached) error = %v", err)
	}
	if second.CompileStatus != first.CompileStatus || second.Stdout != first.Stdout {
		t.Errorf("second Run() = %+v, want identical cached result %+v", second, first)
	}
}

func TestDriver_Run_DistinctRecipesAreNotConflated(t *testing.T) {
	compiler := fakeCompilerScript(t, t.TempDir())
	d := newTestDriver(t, config.ToolchainRegistry{"clang:17.0.0": compiler})

	base := model.Recipe{Family: model.FamilyClang, Version: "17.0.0", OptLevel: "-O2"}
	withStdin := base
	withStdin.Stdin = "alpha"
	other := base
	other.Stdin = "beta"

	a, err := d.Run(context.Background(), "src", withStdin)
	if err != nil {
		t.Fatal(err)
	}
	b, err := d.Run(context.Background(), "src", other)
	if err != nil {
		t.Fatal(err)
	}
	if a.Stdout == b.Stdout {
		t.Errorf("expected distinct recipes to produce distinct outcomes, both returned %q", a.Stdout)
	}
}

func TestOptBinaryFor(t *testing.T) {
	got := optBinaryFor("/usr/lib/llvm-17/bin/clang")
	want := "/usr/lib/llvm-17/bin/opt"
	if got != want {
		t.Errorf("optBinaryFor() = %q, want %q", got, want)
	}
}

func TestSourceExtension(t *testing.T) {
	if got := sourceExtension(); got != ".c" {
		t.Errorf("sourceExtension() = %q, want .c", got)
	}
}
