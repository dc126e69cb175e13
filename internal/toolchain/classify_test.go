package toolchain

import (
	"testing"
	"time"

	"github.com/trace2pass/core/internal/model"
)

func TestClassifyCompile(t *testing.T) {
	tests := []struct {
		name       string
		res        *processResult
		wantStatus model.CompileStatus
		wantErr    model.CompileErrorType
	}{
		{
			name:       "clean exit",
			res:        &processResult{ExitCode: 0},
			wantStatus: model.CompileOK,
			wantErr:    model.CompileErrorNone,
		},
		{
			name:       "timed out",
			res:        &processResult{TimedOut: true, ExitCode: -1},
			wantStatus: model.CompileTimeout,
			wantErr:    model.CompileErrorTypeTimeout,
		},
		{
			name:       "signaled process looks like a crash",
			res:        &processResult{Signaled: true, ExitCode: -1},
			wantStatus: model.CompileICE,
			wantErr:    model.CompileErrorTypeICE,
		},
		{
			name:       "stderr carries an ICE marker",
			res:        &processResult{ExitCode: 1, Stderr: "clang: internal compiler error: Segmentation fault (core dumped)"},
			wantStatus: model.CompileICE,
			wantErr:    model.CompileErrorTypeICE,
		},
		{
			name:       "ordinary diagnostic",
			res:        &processResult{ExitCode: 1, Stderr: "error: expected ';' after expression"},
			wantStatus: model.CompileErrorDiagnostic,
			wantErr:    model.CompileErrorTypeDiagnostic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotStatus, gotErr := classifyCompile(tt.res)
			if gotStatus != tt.wantStatus || gotErr != tt.wantErr {
				t.Errorf("classifyCompile() = (%v, %v), want (%v, %v)", gotStatus, gotErr, tt.wantStatus, tt.wantErr)
			}
		})
	}
}

func TestClassifyRun(t *testing.T) {
	tests := []struct {
		name string
		res  *processResult
		want model.RunStatus
	}{
		{"timed out", &processResult{TimedOut: true}, model.RunTimeout},
		{"signaled", &processResult{Signaled: true}, model.RunSignal},
		{"clean exit", &processResult{ExitCode: 0}, model.RunExitOK},
		{"nonzero exit", &processResult{ExitCode: 1}, model.RunExitNonzero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyRun(tt.res); got != tt.want {
				t.Errorf("classifyRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLooksLikeICE(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   bool
	}{
		{"empty", "", false},
		{"ordinary diagnostic", "foo.c:3:1: error: unknown type name 'bar'", false},
		{"gcc ICE", "internal compiler error: Segmentation fault", true},
		{"clang crash banner", "PLEASE submit a full bug report", true},
		{"llvm fatal error", "LLVM ERROR: out of memory", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeICE(tt.stderr); got != tt.want {
				t.Errorf("looksLikeICE(%q) = %v, want %v", tt.stderr, got, tt.want)
			}
		})
	}
}

func TestProcessResult_DurationIsPositiveAfterUse(t *testing.T) {
	// Sanity check that the struct composes as expected; runProcess's
	// actual timing behavior is exercised in run_test.go.
	r := &processResult{Duration: 5 * time.Millisecond}
	if r.Duration <= 0 {
		t.Fatal("expected a positive duration")
	}
}
