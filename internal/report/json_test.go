package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/trace2pass/core/internal/model"
)

func sampleRecord() *model.BugRecord {
	return &model.BugRecord{
		Fingerprint: "fp-1",
		Canonical: model.AnomalyEvent{
			ReportID:  "r1",
			CheckType: model.CheckArithmeticOverflow,
			Location:  model.Location{File: "a.c", Line: 10},
			Compiler:  model.CompilerID{Name: "clang", Version: "18.0.0"},
		},
		Count:     3,
		FirstSeen: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		LastSeen:  time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Status:    model.StatusDiagnosed,
		Diagnosis: &model.Diagnosis{
			Fingerprint: "fp-1",
			Verdict:     model.VerdictCompilerBug,
			Confidence:  0.8,
		},
	}
}

func TestWriteJSONToFile(t *testing.T) {
	rec := sampleRecord()
	rec.Canonical.Location.Function = "operator<"
	outPath := filepath.Join(t.TempDir(), "report.json")

	if err := WriteJSON(rec, outPath); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"fingerprint": "fp-1"`) {
		t.Error("output missing fingerprint")
	}
	if !strings.Contains(content, `"verdict": "compiler_bug"`) {
		t.Error("output missing diagnosis verdict")
	}
	// SetEscapeHTML(false) must leave raw angle brackets untouched.
	if !strings.Contains(content, `"function": "operator<"`) {
		t.Error("output HTML-escaped despite SetEscapeHTML(false)")
	}
}

func TestWriteJSONStdout(t *testing.T) {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := WriteJSON(sampleRecord(), "-")

	w.Close()
	os.Stdout = oldStdout

	if err != nil {
		t.Fatalf("WriteJSON to stdout: %v", err)
	}

	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	if n == 0 {
		t.Error("no output to stdout")
	}
}

func TestWriteJSONBatch(t *testing.T) {
	records := []model.BugRecord{*sampleRecord(), *sampleRecord()}
	outPath := filepath.Join(t.TempDir(), "queue.json")

	if err := WriteJSONBatch(records, outPath); err != nil {
		t.Fatalf("WriteJSONBatch: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	// "count" appears once per record; "fingerprint" would appear twice
	// per record (the record's own and its diagnosis's).
	if strings.Count(string(data), `"count": 3`) != 2 {
		t.Error("expected two records in the batch output")
	}
}
