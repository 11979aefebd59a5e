// Package mcp exposes the engine over the Model Context Protocol so
// LLM hosts can drive ingest, retrieval, and inference as tool calls.
// The tool surface covers a subset of the REST API (ingest, neuron
// lookup, search, inference, causal chain, stats) and adds no engine
// semantics of its own; synapse and attractor operations and neuron
// deletion are REST-only.
package mcp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Backend is the capability contract the tool surface calls through.
// pkg/api adapts a core.Engine to it; every method returns the same
// document shape its REST counterpart serializes.
type Backend interface {
	Ingest(ctx context.Context, text, sourceType string, tags []string) (map[string]any, error)
	GetNeuron(ctx context.Context, id string) (map[string]any, error)
	Search(ctx context.Context, query string, k int) (map[string]any, error)
	Infer(ctx context.Context, neuronID, direction string) (map[string]any, error)
	CausalChain(ctx context.Context, from, to string, includeTemporal bool, maxDepth int) (map[string]any, error)
	Stats(ctx context.Context) (map[string]any, error)
}

// Config controls MCP handler construction.
type Config struct {
	APIKey       string
	Stateless    bool
	AllowedTools []string // empty allows every tool
}

// NewHandler builds a streamable-HTTP MCP handler over backend, with
// optional bearer-key auth.
func NewHandler(cfg Config, backend Backend) (http.Handler, error) {
	if backend == nil {
		return nil, fmt.Errorf("mcp: backend is required")
	}

	s := mcpserver.NewMCPServer(
		"graphdb",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	allowed := make(map[string]bool, len(cfg.AllowedTools))
	for _, name := range cfg.AllowedTools {
		if name = strings.TrimSpace(name); name != "" {
			allowed[name] = true
		}
	}
	for _, td := range toolTable(backend) {
		if len(allowed) == 0 || allowed[td.tool.Name] {
			s.AddTool(td.tool, td.handle)
		}
	}

	var h http.Handler = mcpserver.NewStreamableHTTPServer(s, mcpserver.WithStateLess(cfg.Stateless))
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		h = requireKey(key, h)
	}
	return h, nil
}

type toolDef struct {
	tool   mcpproto.Tool
	handle func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error)
}

// toolTable declares one tool per exposed operation. Parameter names
// match the REST request fields so a host can switch transports
// without relearning the surface.
func toolTable(backend Backend) []toolDef {
	return []toolDef{
		{
			tool: mcpproto.NewTool("graphdb_ingest",
				mcpproto.WithDescription("Ingest text as a new neuron: chunked, content-addressed, Merkle-sealed, and indexed for similarity search."),
				mcpproto.WithString("text", mcpproto.Required(), mcpproto.Description("Raw text to ingest.")),
				mcpproto.WithString("source_type", mcpproto.Description("Origin label, e.g. \"doc\" or \"chat\".")),
				mcpproto.WithString("tags", mcpproto.Description("Comma-separated tags to attach.")),
			),
			handle: func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
				args := req.GetArguments()
				text := argString(args, "text")
				if strings.TrimSpace(text) == "" {
					return toolError("text is required"), nil
				}
				doc, err := backend.Ingest(ctx, text, argString(args, "source_type"), splitTags(argString(args, "tags")))
				if err != nil {
					return toolError(err.Error()), nil
				}
				return jsonResult(doc)
			},
		},
		{
			tool: mcpproto.NewTool("graphdb_get_neuron",
				mcpproto.WithDescription("Fetch one neuron by id: access metadata, chunk hashes, Merkle root, tags."),
				mcpproto.WithString("id", mcpproto.Required(), mcpproto.Description("Neuron id.")),
			),
			handle: func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
				id := argString(req.GetArguments(), "id")
				if id == "" {
					return toolError("id is required"), nil
				}
				doc, err := backend.GetNeuron(ctx, id)
				if err != nil {
					return toolError(err.Error()), nil
				}
				return jsonResult(doc)
			},
		},
		{
			tool: mcpproto.NewTool("graphdb_search",
				mcpproto.WithDescription("Embed a query and return the k most similar neurons by cosine similarity."),
				mcpproto.WithString("query", mcpproto.Required(), mcpproto.Description("Search query text.")),
				mcpproto.WithNumber("k", mcpproto.Description("Result count (default 10).")),
			),
			handle: func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
				args := req.GetArguments()
				query := argString(args, "query")
				if strings.TrimSpace(query) == "" {
					return toolError("query is required"), nil
				}
				doc, err := backend.Search(ctx, query, argInt(args, "k", 0))
				if err != nil {
					return toolError(err.Error()), nil
				}
				return jsonResult(doc)
			},
		},
		{
			tool: mcpproto.NewTool("graphdb_infer",
				mcpproto.WithDescription("Run weighted inference from a neuron over its synapses: forward deduction, backward abduction, or both."),
				mcpproto.WithString("neuron_id", mcpproto.Required(), mcpproto.Description("Starting neuron id.")),
				mcpproto.WithString("direction", mcpproto.Description("\"forward\", \"backward\", or \"both\" (default \"both\").")),
			),
			handle: func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
				args := req.GetArguments()
				id := argString(args, "neuron_id")
				if id == "" {
					return toolError("neuron_id is required"), nil
				}
				doc, err := backend.Infer(ctx, id, argString(args, "direction"))
				if err != nil {
					return toolError(err.Error()), nil
				}
				return jsonResult(doc)
			},
		},
		{
			tool: mcpproto.NewTool("graphdb_causal_chain",
				mcpproto.WithDescription("Search for a chain of causal edges connecting two neurons and report its per-link and overall strength."),
				mcpproto.WithString("from", mcpproto.Required(), mcpproto.Description("Source neuron id.")),
				mcpproto.WithString("to", mcpproto.Required(), mcpproto.Description("Target neuron id.")),
				mcpproto.WithBoolean("include_temporal", mcpproto.Description("Also follow TEMPORAL edges.")),
				mcpproto.WithNumber("max_depth", mcpproto.Description("Hop budget per direction.")),
			),
			handle: func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
				args := req.GetArguments()
				from, to := argString(args, "from"), argString(args, "to")
				if from == "" || to == "" {
					return toolError("from and to are required"), nil
				}
				doc, err := backend.CausalChain(ctx, from, to, argBool(args, "include_temporal"), argInt(args, "max_depth", 0))
				if err != nil {
					return toolError(err.Error()), nil
				}
				return jsonResult(doc)
			},
		},
		{
			tool: mcpproto.NewTool("graphdb_stats",
				mcpproto.WithDescription("Report store population: chunk totals, live neurons, tombstones, compaction and attractor stats."),
			),
			handle: func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
				doc, err := backend.Stats(ctx)
				if err != nil {
					return toolError(err.Error()), nil
				}
				return jsonResult(doc)
			},
		},
	}
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func argInt(args map[string]any, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func argBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// jsonResult serializes data as a single JSON text content block.
func jsonResult(data any) (*mcpproto.CallToolResult, error) {
	blob, err := json.Marshal(data)
	if err != nil {
		return toolError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{mcpproto.TextContent{Type: "text", Text: string(blob)}},
	}, nil
}

func toolError(msg string) *mcpproto.CallToolResult {
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{mcpproto.TextContent{Type: "text", Text: msg}},
		IsError: true,
	}
}

// requireKey gates every request on a bearer key (Authorization:
// Bearer or X-API-Key), compared in constant time.
func requireKey(key string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(got), "bearer ") {
			got = strings.TrimSpace(got[len("bearer "):])
		} else {
			got = strings.TrimSpace(r.Header.Get("X-API-Key"))
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
