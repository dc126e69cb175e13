// Package mcpserver exposes the Report Store and pipeline as MCP tools,
// so an AI agent can submit events and drive diagnosis over stdio.
package mcpserver

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/trace2pass/core/internal/model"
	"github.com/trace2pass/core/internal/store"
)

// Store is the subset of *store.Store the MCP tools need.
type Store interface {
	Submit(e model.AnomalyEvent) (model.Status, bool, error)
	Get(fp model.Fingerprint) (*model.BugRecord, error)
	Queue(limit int) ([]*model.BugRecord, error)
	Stats() (store.Stats, error)
}

// Pipeline is the subset of *pipeline.Orchestrator the run_diagnosis
// tool needs.
type Pipeline interface {
	Diagnose(ctx context.Context, fp model.Fingerprint) (*model.Diagnosis, error)
}

// toolServer holds the collaborators every tool handler closes over.
type toolServer struct {
	store Store
	pipe  Pipeline
}

// Server wraps the MCP server instance.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server with every Trace2Pass-Core tool registered.
func NewServer(version string, st Store, pipe Pipeline) *Server {
	s := server.NewMCPServer("trace2pass-core", version, server.WithLogging())

	ts := &toolServer{store: st, pipe: pipe}
	registerTools(s, ts)

	return &Server{mcpServer: s}
}

// Start runs the server in stdio mode (blocking).
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools adds every supported tool to the server.
func registerTools(s *server.MCPServer, ts *toolServer) {
	submitTool := mcp.NewTool("submit_event",
		mcp.WithDescription("Submit an anomaly event reported by the instrumented-binary runtime. Returns the deduplicated fingerprint and resulting status."),
		mcp.WithString("event_json",
			mcp.Required(),
			mcp.Description("The AnomalyEvent, JSON-encoded (check_type, location, compiler, build_info, source, ...)."),
		),
	)
	s.AddTool(submitTool, ts.handleSubmitEvent)

	getTool := mcp.NewTool("get_report",
		mcp.WithDescription("Fetch the BugRecord (including any Diagnosis) for a fingerprint."),
		mcp.WithString("fingerprint",
			mcp.Required(),
			mcp.Description("The fingerprint returned by submit_event."),
		),
	)
	s.AddTool(getTool, ts.handleGetReport)

	queueTool := mcp.NewTool("list_queue",
		mcp.WithDescription("List the triage queue, ordered by descending priority."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of records to return (0 or omitted for no limit)."),
			mcp.DefaultNumber(0),
		),
	)
	s.AddTool(queueTool, ts.handleListQueue)

	statsTool := mcp.NewTool("get_stats",
		mcp.WithDescription("Aggregate counters: total records, by check kind, by status, by compiler."),
	)
	s.AddTool(statsTool, ts.handleGetStats)

	diagnoseTool := mcp.NewTool("run_diagnosis",
		mcp.WithDescription("Force a synchronous C3/C4/C5 diagnosis run for a fingerprint and return the resulting Diagnosis."),
		mcp.WithString("fingerprint",
			mcp.Required(),
			mcp.Description("The fingerprint to diagnose."),
		),
	)
	s.AddTool(diagnoseTool, ts.handleRunDiagnosis)
}
