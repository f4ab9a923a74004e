package server

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/karolinaw/hippocampus/internal/engine"
	"github.com/karolinaw/hippocampus/internal/tools"
)

// New creates a fully configured MCP server with all memory tools and the
// read-only resources registered.
func New(eng *engine.Engine) *mcp.Server {
	mt := &tools.MemoryTools{Engine: eng}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "hippocampus",
		Version: "0.1.0",
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "remember",
		Description: "Store a fact about an entity; near-duplicate facts are deduplicated automatically",
	}, mt.Remember)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "recall",
		Description: "Search memories by meaning and by text, fused into one ranked list",
	}, mt.Recall)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "context",
		Description: "Assemble everything known about a topic: observations, relationships and related entities",
	}, mt.Context)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update",
		Description: "Replace an observation's content (exact-match on the old content)",
	}, mt.Update)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "forget",
		Description: "Delete a single observation or an entire entity with all its data",
	}, mt.Forget)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "merge",
		Description: "Replace several observations of one entity with a single combined observation",
	}, mt.Merge)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "consolidate",
		Description: "Find clusters of similar observations that are candidates for merging",
	}, mt.Consolidate)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "export",
		Description: "Export the knowledge graph as json, claude-md or markdown",
	}, mt.Export)

	srv.AddResource(&mcp.Resource{
		URI:         "context://",
		Name:        "memory-context",
		Description: "The full knowledge graph in claude-md format",
		MIMEType:    "text/markdown",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		result, err := eng.Export(engine.ExportInput{Format: "claude-md"})
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "text/markdown",
				Text:     result.Data,
			}},
		}, nil
	})

	srv.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "entity://{name}",
		Name:        "entity-context",
		Description: "Per-entity context: observations, relationships and direct neighbors",
		MIMEType:    "text/markdown",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		name, err := url.PathUnescape(strings.TrimPrefix(req.Params.URI, "entity://"))
		if err != nil {
			return nil, fmt.Errorf("decode entity name: %w", err)
		}
		result, err := eng.Context(ctx, engine.ContextInput{Topic: name, Depth: 1})
		if err != nil {
			return nil, err
		}
		if !result.Success {
			return nil, fmt.Errorf("%s", result.Message)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "text/markdown",
				Text:     renderEntityContext(result),
			}},
		}, nil
	})

	return srv
}

// renderEntityContext formats a context result as Markdown for the
// entity:// resource.
func renderEntityContext(c *engine.ContextResult) string {
	var b strings.Builder
	if c.Entity.EntityType != "" {
		fmt.Fprintf(&b, "# %s (%s)\n\n", c.Entity.Name, c.Entity.EntityType)
	} else {
		fmt.Fprintf(&b, "# %s\n\n", c.Entity.Name)
	}

	for _, o := range c.Observations {
		b.WriteString("- " + o.Content + "\n")
	}

	if len(c.Relationships) > 0 {
		b.WriteString("\n## Relationships\n\n")
		for _, r := range c.Relationships {
			fmt.Fprintf(&b, "- %s %s %s\n", r.From, r.RelationType, r.To)
		}
	}

	if len(c.RelatedEntities) > 0 {
		b.WriteString("\n## Related\n\n")
		for _, n := range c.RelatedEntities {
			fmt.Fprintf(&b, "- %s", n.Name)
			if n.Type != "" {
				fmt.Fprintf(&b, " (%s)", n.Type)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
