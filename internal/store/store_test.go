package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/trace2pass/core/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleEvent(reportID string, line int) model.AnomalyEvent {
	return model.AnomalyEvent{
		ReportID:  reportID,
		Timestamp: time.Now().UTC(),
		CheckType: model.CheckArithmeticOverflow,
		Location:  model.Location{File: "a.c", Line: line, Function: "f"},
		Compiler:  model.CompilerID{Name: "clang", Version: "17.0.3"},
		BuildInfo: model.BuildInfo{OptimizationLevel: "-O2", Flags: []string{"-Wall"}},
	}
}

func TestSubmit_CreatesNewRecord(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("r1", 10)

	status, created, err := s.Submit(e)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if status != model.StatusNew {
		t.Errorf("status = %v, want new", status)
	}
	if !created {
		t.Error("created = false, want true for a brand-new fingerprint")
	}

	rec, err := s.Get(model.ComputeFingerprint(e))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Count != 1 {
		t.Errorf("Count = %d, want 1", rec.Count)
	}
}

func TestSubmit_IncrementsOnSameFingerprint(t *testing.T) {
	s := openTestStore(t)
	e1 := sampleEvent("r1", 10)
	e2 := sampleEvent("r2", 10)

	_, created1, err := s.Submit(e1)
	if err != nil {
		t.Fatal(err)
	}
	if !created1 {
		t.Error("created = false for the first submission, want true")
	}
	_, created2, err := s.Submit(e2)
	if err != nil {
		t.Fatal(err)
	}
	if created2 {
		t.Error("created = true for a repeat fingerprint, want false")
	}

	rec, err := s.Get(model.ComputeFingerprint(e1))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Count != 2 {
		t.Errorf("Count = %d, want 2", rec.Count)
	}
}

func TestSubmit_IdempotentOnDuplicateReportID(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("dup-id", 10)

	for i := 0; i < 1000; i++ {
		if _, _, err := s.Submit(e); err != nil {
			t.Fatal(err)
		}
	}

	rec, err := s.Get(model.ComputeFingerprint(e))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Count != 1 {
		t.Errorf("Count = %d, want 1 after resubmitting the same report_id", rec.Count)
	}
}

func TestSubmit_DistinctLinesProduceDistinctRecords(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 1000; i++ {
		e := sampleEvent("", i)
		if _, _, err := s.Submit(e); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalRecords != 1000 {
		t.Errorf("TotalRecords = %d, want 1000", stats.TotalRecords)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(model.Fingerprint("nonexistent"))
	if err != ErrNotFound {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatus_EnforcesTransitionGraph(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("r1", 10)
	if _, _, err := s.Submit(e); err != nil {
		t.Fatal(err)
	}
	fp := model.ComputeFingerprint(e)

	if err := s.UpdateStatus(fp, model.StatusDiagnosed, nil); err == nil {
		t.Fatal("expected illegal transition new -> diagnosed to fail")
	}

	if err := s.UpdateStatus(fp, model.StatusDiagnosing, nil); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	diag := &model.Diagnosis{Fingerprint: fp, Verdict: model.VerdictCompilerBug, Confidence: 0.9}
	if err := s.UpdateStatus(fp, model.StatusDiagnosed, diag); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	rec, err := s.Get(fp)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != model.StatusDiagnosed {
		t.Errorf("Status = %v, want diagnosed", rec.Status)
	}
	if rec.Diagnosis == nil || rec.Diagnosis.Verdict != model.VerdictCompilerBug {
		t.Errorf("Diagnosis not persisted correctly: %+v", rec.Diagnosis)
	}
}

func TestUpdateStatus_RepeatedApplicationIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("r1", 10)
	if _, _, err := s.Submit(e); err != nil {
		t.Fatal(err)
	}
	fp := model.ComputeFingerprint(e)

	if err := s.UpdateStatus(fp, model.StatusTriaged, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateStatus(fp, model.StatusTriaged, nil); err != nil {
		t.Fatalf("repeating the same status transition should be a no-op, got error: %v", err)
	}
}

func TestQueue_OrdersByDescendingPriority(t *testing.T) {
	s := openTestStore(t)

	low := sampleEvent("", 1)
	low.CheckType = model.CheckSignConversion // weight 0.5
	high := sampleEvent("", 2)
	high.CheckType = model.CheckArithmeticOverflow // weight 1.0

	if _, _, err := s.Submit(low); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Submit(high); err != nil {
		t.Fatal(err)
	}

	queue, err := s.Queue(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(queue) != 2 {
		t.Fatalf("len(queue) = %d, want 2", len(queue))
	}
	if queue[0].Canonical.CheckType != model.CheckArithmeticOverflow {
		t.Errorf("expected arithmetic_overflow first, got %v", queue[0].Canonical.CheckType)
	}
}

func TestQueue_ExcludesTerminalStatuses(t *testing.T) {
	s := openTestStore(t)
	e := sampleEvent("r1", 10)
	if _, _, err := s.Submit(e); err != nil {
		t.Fatal(err)
	}
	fp := model.ComputeFingerprint(e)
	if err := s.UpdateStatus(fp, model.StatusDiagnosing, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateStatus(fp, model.StatusUserUB, nil); err != nil {
		t.Fatal(err)
	}

	queue, err := s.Queue(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(queue) != 0 {
		t.Errorf("len(queue) = %d, want 0 (terminal status should not be queueable)", len(queue))
	}
}
