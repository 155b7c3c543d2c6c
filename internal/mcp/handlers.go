package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/medscan/internal/config"
	"github.com/hpungsan/medscan/internal/errors"
	"github.com/hpungsan/medscan/internal/history"
	"github.com/hpungsan/medscan/internal/scan"
	"github.com/hpungsan/medscan/internal/session"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	logger *log.Logger

	// newBackend builds the recognition client per call so config reloads
	// and tests can point it elsewhere.
	newBackend func(cfg *config.Config, logger *log.Logger) session.Backend
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{
		db:     db,
		cfg:    cfg,
		logger: log.Default(),
		newBackend: func(cfg *config.Config, logger *log.Logger) session.Backend {
			return scan.NewBackend(cfg, logger)
		},
	}
}

func (h *Handlers) deps() scan.Deps {
	return scan.Deps{
		DB:      h.db,
		Config:  h.cfg,
		Backend: h.newBackend(h.cfg, h.logger),
		Logger:  h.logger,
	}
}

// Request types for each tool

// ScanRequest represents the arguments for drug_scan.
type ScanRequest struct {
	ImagePaths []string `json:"image_paths"`
	Flash      bool     `json:"flash,omitempty"`
	Fallback   bool     `json:"fallback,omitempty"`
	Save       bool     `json:"save,omitempty"`
	Debug      bool     `json:"debug,omitempty"`
}

// ListRequest represents the arguments for history_list.
type ListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// FetchRequest represents the arguments for history_fetch.
type FetchRequest struct {
	ID int64 `json:"id"`
}

// ExportRequest represents the arguments for history_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
}

// Handler implementations

// HandleHealth handles the drug_health tool call.
func (h *Handlers) HandleHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(scan.Health(ctx, h.deps(), h.cfg.BaseURL))
}

// HandleScan handles the drug_scan tool call. A run that ends without a
// result is still a success; its notifications explain what the user
// would have been told.
func (h *Handlers) HandleScan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScanRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if len(input.ImagePaths) == 0 {
		return errorResult(errors.NewInvalidRequest("image_paths is required")), nil
	}

	result, err := scan.Run(ctx, h.deps(), scan.Input{
		Images:   input.ImagePaths,
		Flash:    input.Flash,
		Fallback: input.Fallback,
		Save:     input.Save,
		Debug:    input.Debug,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the history_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := history.List(ctx, h.db, history.ListInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFetch handles the history_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := history.Fetch(ctx, h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleClear handles the history_clear tool call.
func (h *Handlers) HandleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := history.Clear(ctx, h.db)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the history_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := history.Export(ctx, h.db, h.cfg, history.ExportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var medErr *errors.MedError
	if stderrors.As(err, &medErr) {
		msg := medErr.Message
		// Keep any wrapper context, e.g. "save: PERSISTENCE_FAILED: ..." -> "save: ...".
		if outer := err.Error(); outer != medErr.Error() {
			msg = strings.Replace(outer, medErr.Error(), medErr.Message, 1)
		}
		errorObj := map[string]any{
			"code":    medErr.Code,
			"message": msg,
			"status":  medErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if medErr.Code != errors.ErrInternal && medErr.Details != nil {
			errorObj["details"] = medErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
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
