package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/trace2pass/core/internal/model"
)

// handleSubmitEvent implements the submit_event tool.
func (ts *toolServer) handleSubmitEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	eventJSON := stringArg(args, "event_json", "")
	if eventJSON == "" {
		return errResult("event_json is required"), nil
	}

	var e model.AnomalyEvent
	if err := json.Unmarshal([]byte(eventJSON), &e); err != nil {
		return errResult(fmt.Sprintf("invalid event_json: %v", err)), nil
	}
	if err := e.Validate(); err != nil {
		return errResult(err.Error()), nil
	}

	status, created, err := ts.store.Submit(e)
	if err != nil {
		return errResult(fmt.Sprintf("submit failed: %v", err)), nil
	}

	result := map[string]interface{}{
		"fingerprint": string(model.ComputeFingerprint(e)),
		"status":      string(status),
		"created":     created,
	}
	return jsonResult(result)
}

// handleGetReport implements the get_report tool.
func (ts *toolServer) handleGetReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	fp := stringArg(args, "fingerprint", "")
	if fp == "" {
		return errResult("fingerprint is required"), nil
	}

	rec, err := ts.store.Get(model.Fingerprint(fp))
	if err != nil {
		return errResult(fmt.Sprintf("no such report: %v", err)), nil
	}
	return jsonResult(rec)
}

// handleListQueue implements the list_queue tool.
func (ts *toolServer) handleListQueue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	limit := intArg(args, "limit", 0)

	records, err := ts.store.Queue(limit)
	if err != nil {
		return errResult(fmt.Sprintf("queue failed: %v", err)), nil
	}
	return jsonResult(records)
}

// handleGetStats implements the get_stats tool.
func (ts *toolServer) handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := ts.store.Stats()
	if err != nil {
		return errResult(fmt.Sprintf("stats failed: %v", err)), nil
	}
	return jsonResult(st)
}

// handleRunDiagnosis implements the run_diagnosis tool.
func (ts *toolServer) handleRunDiagnosis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	fp := stringArg(args, "fingerprint", "")
	if fp == "" {
		return errResult("fingerprint is required"), nil
	}

	diag, err := ts.pipe.Diagnose(ctx, model.Fingerprint(fp))
	if err != nil {
		return errResult(fmt.Sprintf("diagnosis failed: %v", err)), nil
	}
	return jsonResult(diag)
}

// getArgs safely extracts the arguments map from a CallToolRequest.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

func stringArg(args map[string]interface{}, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

func intArg(args map[string]interface{}, key string, defaultVal int) int {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	f, ok := val.(float64)
	if !ok {
		return defaultVal
	}
	return int(f)
}

// jsonResult marshals v and wraps it as a successful MCP text result.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(data)), nil
}

// newTextResult creates a successful MCP tool result with text content.
func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// errResult creates a tool-level error result (IsError=true), not a
// transport-level JSON-RPC error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
	}
}
