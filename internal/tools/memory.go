package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/karolinaw/hippocampus/internal/engine"
)

// MemoryTools holds references needed by the memory tool handlers.
type MemoryTools struct {
	Engine *engine.Engine
}

// --- Input types ---

type RememberInput struct {
	Content string `json:"content" jsonschema:"The fact to remember (max 2000 characters)"`
	Entity  string `json:"entity,omitempty" jsonschema:"Entity to attach the fact to (defaults to general)"`
	Type    string `json:"type,omitempty" jsonschema:"Entity type (e.g., person, project, preference)"`
	Source  string `json:"source,omitempty" jsonschema:"Where the fact came from"`
}

type RecallInput struct {
	Query string `json:"query" jsonschema:"Search query (max 500 characters)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results, 1-50 (default 10)"`
	Type  string `json:"type,omitempty" jsonschema:"Filter by entity type"`
	Since string `json:"since,omitempty" jsonschema:"Only memories created at or after this ISO-8601 timestamp"`
}

type ContextInput struct {
	Topic string `json:"topic" jsonschema:"Entity name or free-text topic (max 200 characters)"`
	Depth *int   `json:"depth,omitempty" jsonschema:"Relationship hops to expand, 0-3 (default 1)"`
}

type UpdateInput struct {
	Entity     string `json:"entity" jsonschema:"Entity owning the observation"`
	OldContent string `json:"old_content" jsonschema:"Exact content of the observation to replace"`
	NewContent string `json:"new_content" jsonschema:"Replacement content"`
}

type ForgetInput struct {
	Entity        string `json:"entity,omitempty" jsonschema:"Entity to forget entirely (mutually exclusive with observation_id)"`
	ObservationID string `json:"observation_id,omitempty" jsonschema:"Single observation to forget"`
}

type MergeInput struct {
	ObservationIDs []string `json:"observation_ids" jsonschema:"Observations to merge (same entity)"`
	Content        string   `json:"content" jsonschema:"Content of the merged observation"`
}

type ConsolidateInput struct {
	Entity    string  `json:"entity,omitempty" jsonschema:"Limit clustering to one entity"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"Similarity threshold, 0.5-1.0 (default 0.8)"`
}

type ExportInput struct {
	Format string `json:"format" jsonschema:"Export format: claude-md, markdown or json"`
	Entity string `json:"entity,omitempty" jsonschema:"Limit export to one entity"`
	Type   string `json:"type,omitempty" jsonschema:"Limit export to one entity type"`
}

// --- Handlers ---

func (t *MemoryTools) Remember(ctx context.Context, _ *mcp.CallToolRequest, input RememberInput) (*mcp.CallToolResult, any, error) {
	result, err := t.Engine.Remember(ctx, engine.RememberInput{
		Content: input.Content,
		Entity:  input.Entity,
		Type:    input.Type,
		Source:  input.Source,
	})
	if err != nil {
		return toolError("Failed to remember: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (t *MemoryTools) Recall(ctx context.Context, _ *mcp.CallToolRequest, input RecallInput) (*mcp.CallToolResult, any, error) {
	result, err := t.Engine.Recall(ctx, engine.RecallInput{
		Query: input.Query,
		Limit: input.Limit,
		Type:  input.Type,
		Since: input.Since,
	})
	if err != nil {
		return toolError("Failed to recall: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (t *MemoryTools) Context(ctx context.Context, _ *mcp.CallToolRequest, input ContextInput) (*mcp.CallToolResult, any, error) {
	depth := 1
	if input.Depth != nil {
		depth = *input.Depth
	}
	result, err := t.Engine.Context(ctx, engine.ContextInput{Topic: input.Topic, Depth: depth})
	if err != nil {
		return toolError("Failed to build context: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (t *MemoryTools) Update(ctx context.Context, _ *mcp.CallToolRequest, input UpdateInput) (*mcp.CallToolResult, any, error) {
	result, err := t.Engine.Update(ctx, input.Entity, input.OldContent, input.NewContent)
	if err != nil {
		return toolError("Failed to update: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (t *MemoryTools) Forget(_ context.Context, _ *mcp.CallToolRequest, input ForgetInput) (*mcp.CallToolResult, any, error) {
	result, err := t.Engine.Forget(input.Entity, input.ObservationID)
	if err != nil {
		return toolError("Failed to forget: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (t *MemoryTools) Merge(ctx context.Context, _ *mcp.CallToolRequest, input MergeInput) (*mcp.CallToolResult, any, error) {
	result, err := t.Engine.Merge(ctx, input.ObservationIDs, input.Content)
	if err != nil {
		return toolError("Failed to merge: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (t *MemoryTools) Consolidate(_ context.Context, _ *mcp.CallToolRequest, input ConsolidateInput) (*mcp.CallToolResult, any, error) {
	result, err := t.Engine.Consolidate(engine.ConsolidateInput{
		Entity:    input.Entity,
		Threshold: input.Threshold,
	})
	if err != nil {
		return toolError("Failed to consolidate: %v", err), nil, nil
	}
	return toolJSON(result)
}

func (t *MemoryTools) Export(_ context.Context, _ *mcp.CallToolRequest, input ExportInput) (*mcp.CallToolResult, any, error) {
	result, err := t.Engine.Export(engine.ExportInput{
		Format: input.Format,
		Entity: input.Entity,
		Type:   input.Type,
	})
	if err != nil {
		return toolError("Failed to export: %v", err), nil, nil
	}
	return toolJSON(result)
}

// --- Helpers ---

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
