// trace2passd — automated compiler-bug diagnosis pipeline.
//
// Ingests anomaly events reported by an instrumented-binary runtime,
// deduplicates them into bug records, and runs the C3/C4/C5 diagnosis
// pipeline to classify each as a user UB bug, a compiler bug (with a
// bisected version/pass and a suggested workaround), or inconclusive.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trace2pass/core/internal/config"
	"github.com/trace2pass/core/internal/logging"
	"github.com/trace2pass/core/internal/model"
	"github.com/trace2pass/core/internal/pipeline"
	"github.com/trace2pass/core/internal/report"
	"github.com/trace2pass/core/internal/store"
	"github.com/trace2pass/core/internal/toolchain"
)

var version = "0.1.0"

// components bundles every long-lived collaborator a subcommand needs,
// built once from the resolved config.
type components struct {
	cfg    config.Config
	log    *zap.Logger
	store  *store.Store
	driver *toolchain.Driver
	orch   *pipeline.Orchestrator
}

func buildComponents(cfgPath string) (*components, error) {
	cfg := config.Defaults()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	log := logging.New(cfg.LogLevel)

	st, err := store.Open(cfg.Store.Path, cfg.EffectiveSeverityWeights(), log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	resolver := toolchain.NewResolver(cfg.ToolchainRegistry, nil)
	driver := toolchain.NewDriver(resolver, cfg.ScratchDir, log)

	orch := pipeline.New(st, driver, cfg, log)

	return &components{cfg: cfg, log: log, store: st, driver: driver, orch: orch}, nil
}

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:     "trace2passd",
		Short:   "Automated compiler-bug diagnosis pipeline",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file (defaults built in if omitted)")

	rootCmd.AddCommand(
		newServeCmd(&cfgPath),
		newSubmitCmd(&cfgPath),
		newQueueCmd(&cfgPath),
		newStatsCmd(&cfgPath),
		newDiagnoseCmd(&cfgPath),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newSubmitCmd implements `trace2passd submit <event.json>`: a one-shot
// event submission from a file, for scripting and manual testing.
func newSubmitCmd(cfgPath *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "submit <event.json>",
		Short: "Submit a single anomaly event from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(*cfgPath)
			if err != nil {
				return err
			}
			defer c.store.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read event file: %w", err)
			}
			var e model.AnomalyEvent
			if err := json.Unmarshal(data, &e); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			if err := e.Validate(); err != nil {
				return err
			}

			status, created, err := c.store.Submit(e)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}

			fp := model.ComputeFingerprint(e)
			rec, err := c.store.Get(fp)
			if err != nil {
				return err
			}
			c.log.Info("event submitted", zap.String("fingerprint", string(fp)), zap.String("status", string(status)), zap.Bool("created", created))
			return report.WriteJSON(rec, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file path (- for stdout)")
	return cmd
}

// newQueueCmd implements `trace2passd queue`: list the triage queue.
func newQueueCmd(cfgPath *string) *cobra.Command {
	var limit int
	var output string

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List the triage queue, ordered by descending priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(*cfgPath)
			if err != nil {
				return err
			}
			defer c.store.Close()

			records, err := c.store.Queue(limit)
			if err != nil {
				return err
			}
			out := make([]model.BugRecord, len(records))
			for i, r := range records {
				out[i] = *r
			}
			return report.WriteJSONBatch(out, output)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of records to return (0 for no limit)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file path (- for stdout)")
	return cmd
}

// newStatsCmd implements `trace2passd stats`: aggregate counters.
func newStatsCmd(cfgPath *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate counters over every stored bug record",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(*cfgPath)
			if err != nil {
				return err
			}
			defer c.store.Close()

			st, err := c.store.Stats()
			if err != nil {
				return err
			}

			var w *os.File = os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file path (- for stdout)")
	return cmd
}

// newDiagnoseCmd implements `trace2passd diagnose <fingerprint>`: force
// a synchronous pipeline run, bypassing the worker pool.
func newDiagnoseCmd(cfgPath *string) *cobra.Command {
	var output string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "diagnose <fingerprint>",
		Short: "Force a synchronous C3/C4/C5 diagnosis run for one fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(*cfgPath)
			if err != nil {
				return err
			}
			defer c.store.Close()

			progress := report.NewProgress(!quiet)
			progress.Log("diagnosing %s", args[0])

			diag, err := c.orch.Diagnose(cmd.Context(), model.Fingerprint(args[0]))
			if err != nil {
				return fmt.Errorf("diagnose: %w", err)
			}
			progress.Log("verdict: %s (confidence %.2f)", diag.Verdict, diag.Confidence)

			rec, err := c.store.Get(model.Fingerprint(args[0]))
			if err != nil {
				return err
			}
			if err := report.WriteJSON(rec, output); err != nil {
				return err
			}
			if diag.Verdict == model.VerdictInconclusive {
				return fmt.Errorf("diagnosis was inconclusive for %s", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file path (- for stdout)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	return cmd
}
