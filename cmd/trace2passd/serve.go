package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trace2pass/core/internal/httpapi"
	"github.com/trace2pass/core/internal/mcpserver"
)

// newServeCmd implements `trace2passd serve`: runs the HTTP ingress/query
// surface and, if configured, the MCP stdio server, until SIGINT/SIGTERM.
func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and (optionally) MCP servers",
		Long: `Starts the §6 HTTP submission/query surface and, if mcp.enabled is
set, a Model Context Protocol stdio server in the same process.

Both servers stop on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(*cfgPath)
			if err != nil {
				return err
			}
			defer c.store.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var wg sync.WaitGroup
			errs := make(chan error, 2)

			if c.cfg.HTTP.Enabled {
				srv := httpapi.New(c.store, httpapi.NewMetrics(), c.log, c.cfg.HTTP.Addr)
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := srv.Start(ctx); err != nil {
						errs <- err
					}
				}()
			}

			if c.cfg.MCP.Enabled {
				mcpSrv := mcpserver.NewServer(version, c.store, c.orch)
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := mcpSrv.Start(ctx); err != nil {
						errs <- err
					}
				}()
			}

			c.log.Info("trace2passd serving", zap.Bool("http", c.cfg.HTTP.Enabled), zap.Bool("mcp", c.cfg.MCP.Enabled))
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}
