package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dmoskov/shadowsky-sub002/internal/errors"
	"github.com/dmoskov/shadowsky-sub002/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps ops.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps ops.Deps) *Handlers {
	return &Handlers{deps: deps}
}

// Request types for each tool

// SyncRequest represents the arguments for sky_sync.
type SyncRequest struct {
	MaxPages int `json:"max_pages,omitempty"`
	PageSize int `json:"page_size,omitempty"`
}

// TimelineRequest represents the arguments for sky_timeline.
type TimelineRequest struct {
	Limit        int  `json:"limit,omitempty"`
	IncludePosts bool `json:"include_posts,omitempty"`
}

// ProfilesRequest represents the arguments for sky_profiles.
type ProfilesRequest struct {
	Actors []string `json:"actors"`
}

// TopAccountsRequest represents the arguments for sky_top_accounts.
type TopAccountsRequest struct {
	By           string `json:"by,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	MinFollowers int64  `json:"min_followers,omitempty"`
}

// InteractionsRequest represents the arguments for sky_interactions.
type InteractionsRequest struct {
	Actor string `json:"actor"`
}

// ClearRequest represents the arguments for sky_clear.
type ClearRequest struct {
	Confirm bool `json:"confirm"`
}

// Handler implementations

// HandleSync handles the sky_sync tool call.
func (h *Handlers) HandleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SyncRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Sync(ctx, h.deps, ops.SyncInput{
		MaxPages: input.MaxPages,
		PageSize: input.PageSize,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTimeline handles the sky_timeline tool call.
func (h *Handlers) HandleTimeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TimelineRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Timeline(ctx, h.deps, ops.TimelineInput{
		Limit:        input.Limit,
		IncludePosts: input.IncludePosts,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleProfiles handles the sky_profiles tool call.
func (h *Handlers) HandleProfiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProfilesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Profiles(ctx, h.deps, ops.ProfilesInput{
		Actors: input.Actors,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTopAccounts handles the sky_top_accounts tool call.
func (h *Handlers) HandleTopAccounts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TopAccountsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.TopAccounts(h.deps, ops.TopAccountsInput{
		By:           input.By,
		Limit:        input.Limit,
		MinFollowers: input.MinFollowers,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInteractions handles the sky_interactions tool call.
func (h *Handlers) HandleInteractions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InteractionsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Interactions(h.deps, ops.InteractionsInput{
		Actor: input.Actor,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStats handles the sky_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Stats(h.deps)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSweep handles the sky_sweep tool call.
func (h *Handlers) HandleSweep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Sweep(h.deps)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleClear handles the sky_clear tool call.
func (h *Handlers) HandleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClearRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Clear(h.deps, ops.ClearInput{
		Confirm: input.Confirm,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult converts an error into an MCP error result with IsError set
// so clients treat it as a failure. Internal errors are reported without
// their details.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if skyErr, ok := err.(*errors.SkyError); ok {
		errorObj := map[string]any{
			"code":    skyErr.Code,
			"message": skyErr.Message,
			"status":  skyErr.Status,
		}
		// INTERNAL details carry raw driver errors and file paths,
		// which stay server-side
		if skyErr.Code != errors.ErrInternal && skyErr.Details != nil {
			errorObj["details"] = skyErr.Details
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
