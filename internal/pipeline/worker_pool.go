package pipeline

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/trace2pass/core/internal/model"
)

// RunQueue drains up to limit records from the triage queue and runs
// Diagnose for each one as an independent goroutine, bounded by
// cfg.MaxConcurrentJobs (§5: "multiple diagnosis jobs may run in
// parallel as independent processes/tasks, each owning its scratch
// directory and toolchain handles"). It follows the same
// derive-context/install-signal-handler/sync.WaitGroup shape the
// example pack's orchestrator uses for parallel collector execution,
// generalized from "run all collectors" to "run all queued jobs."
//
// An operator SIGINT/SIGTERM cancels ctx; in-flight jobs abort their
// current probe and return without writing a terminal status, leaving
// the record in diagnosing for a safe retry (§7).
func (o *Orchestrator) RunQueue(ctx context.Context, limit int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			o.log.Info("received signal, aborting in-flight diagnosis jobs", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
	defer signal.Stop(sigCh)

	records, err := o.store.Queue(limit)
	if err != nil {
		return err
	}

	concurrency := o.cfg.MaxConcurrentJobs
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(fp model.Fingerprint) {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := o.Diagnose(ctx, fp); err != nil {
				o.log.Error("diagnosis job failed", zap.String("fingerprint", string(fp)), zap.Error(err))
			}
		}(rec.Fingerprint)
	}
	wg.Wait()

	return nil
}
