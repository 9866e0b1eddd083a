package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hyeongsuk/RBDtector/internal/config"
	"github.com/hyeongsuk/RBDtector/internal/errors"
	"github.com/hyeongsuk/RBDtector/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg}
}

// Request types for each tool

// DetectRequest represents the arguments for detect.
type DetectRequest struct {
	Path string `json:"path"`
}

// ConvertRequest represents the arguments for convert.
type ConvertRequest struct {
	Path      string `json:"path"`
	OutputDir string `json:"output_dir,omitempty"`
}

// BatchRequest represents the arguments for batch.
type BatchRequest struct {
	Root      string `json:"root"`
	OutputDir string `json:"output_dir,omitempty"`
}

// InspectRequest represents the arguments for inspect.
type InspectRequest struct {
	Path string `json:"path"`
}

// FixRangesRequest represents the arguments for fix_ranges.
type FixRangesRequest struct {
	Path       string `json:"path"`
	OutputPath string `json:"output_path,omitempty"`
}

// HistoryRequest represents the arguments for history.
type HistoryRequest struct {
	RunID string `json:"run_id,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// decode round-trips the raw tool arguments through JSON into one of the
// request types above, so handlers never type-assert individual fields.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal args: %w", err)
	}
	return result, nil
}

// HandleDetect handles the detect tool call.
func (h *Handlers) HandleDetect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DetectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Detect(ctx, h.cfg, ops.DetectInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleConvert handles the convert tool call.
func (h *Handlers) HandleConvert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ConvertRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Convert(ctx, h.cfg, ops.ConvertInput{
		Path:      input.Path,
		OutputDir: input.OutputDir,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleBatch handles the batch tool call.
func (h *Handlers) HandleBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BatchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Batch(ctx, h.db, h.cfg, ops.BatchInput{
		Root:      input.Root,
		OutputDir: input.OutputDir,
	}, nil)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleInspect handles the inspect tool call.
func (h *Handlers) HandleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InspectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Inspect(ctx, h.cfg, ops.InspectInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFixRanges handles the fix_ranges tool call.
func (h *Handlers) HandleFixRanges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FixRangesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.FixRanges(ctx, h.cfg, ops.FixRangesInput{
		Path:       input.Path,
		OutputPath: input.OutputPath,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistory handles the history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.History(ctx, h.db, h.cfg, ops.HistoryInput{
		RunID: input.RunID,
		Limit: input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// errorResult creates an MCP error result from any error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if convErr, ok := errors.AsConvError(err); ok {
		errorObj := map[string]any{
			"code":    convErr.Code,
			"message": convErr.Message,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like SQL errors
		if convErr.Code != errors.ErrInternal && convErr.Details != nil {
			errorObj["details"] = convErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
