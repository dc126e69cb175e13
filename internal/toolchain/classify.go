package toolchain

import (
	"strings"

	"github.com/trace2pass/core/internal/model"
)

// iceMarkers are substrings that reliably appear in clang/gcc stderr
// when the compiler itself has crashed, as opposed to having rejected
// the program with an ordinary diagnostic. Distinguishing the two is
// required by §4.2 step 1 (compile_ice vs compile_error_diagnostic).
var iceMarkers = []string{
	"internal compiler error",
	"PLEASE submit a full bug report",
	"clang: error: unable to execute command",
	"Segmentation fault",
	"Aborted (core dumped)",
	"LLVM ERROR:",
	"Stack dump:",
}

// classifyCompile turns a raw compile-stage processResult into a
// CompileStatus/CompileErrorType pair. It never returns
// CompileToolchainMissing — that is decided earlier, by the resolver.
func classifyCompile(r *processResult) (model.CompileStatus, model.CompileErrorType) {
	if r.TimedOut {
		return model.CompileTimeout, model.CompileErrorTypeTimeout
	}
	if r.ExitCode == 0 && !r.Signaled {
		return model.CompileOK, model.CompileErrorNone
	}
	if r.Signaled || looksLikeICE(r.Stderr) {
		return model.CompileICE, model.CompileErrorTypeICE
	}
	return model.CompileErrorDiagnostic, model.CompileErrorTypeDiagnostic
}

func looksLikeICE(stderr string) bool {
	for _, marker := range iceMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// classifyRun turns a raw run-stage processResult into a RunStatus.
func classifyRun(r *processResult) model.RunStatus {
	if r.TimedOut {
		return model.RunTimeout
	}
	if r.Signaled {
		return model.RunSignal
	}
	if r.ExitCode == 0 {
		return model.RunExitOK
	}
	return model.RunExitNonzero
}
