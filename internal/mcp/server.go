package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docrag/internal/index"
	"github.com/Aman-CERP/docrag/internal/search"
	"github.com/Aman-CERP/docrag/pkg/version"
)

// Retriever runs one retrieval request.
type Retriever interface {
	Retrieve(ctx context.Context, req search.Request) (*search.Response, error)
}

// StatusFunc reports the state of the served index.
type StatusFunc func(ctx context.Context) (*index.Status, error)

// Options configures a Server.
type Options struct {
	// DefaultK is used when a call omits k.
	DefaultK int
	// DefaultStrategy is used when a call omits strategy.
	DefaultStrategy search.Strategy
	// Status backs the index_status tool; nil leaves the tool unregistered.
	Status StatusFunc
	// EmbeddingModel is reported by index_status.
	EmbeddingModel string
}

// Server exposes retrieval to MCP clients.
type Server struct {
	mcp       *mcp.Server
	retriever Retriever
	opts      Options
	logger    *slog.Logger
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

const (
	retrieveDescription = "Retrieve the documentation passages most relevant to a question. " +
		"Combines keyword (BM25) and semantic ranking. Use strategy to force one signal and alpha to weight hybrid ranking."
	indexStatusDescription = "Report whether the documentation index is built and whether semantic retrieval is available."
)

// RetrieveInput is the retrieve tool's argument schema.
type RetrieveInput struct {
	Query    string   `json:"query" jsonschema:"the question or keywords to retrieve passages for"`
	K        int      `json:"k,omitempty" jsonschema:"number of passages to return, default from configuration, max 50"`
	Strategy string   `json:"strategy,omitempty" jsonschema:"auto, bm25, semantic or hybrid"`
	Alpha    *float64 `json:"alpha,omitempty" jsonschema:"lexical weight in [0,1] for the hybrid strategy"`
}

// RetrieveOutput is the retrieve tool's structured result.
type RetrieveOutput struct {
	Query    string          `json:"query"`
	Strategy string          `json:"strategy"`
	Route    string          `json:"route" jsonschema:"bm25_heavy, semantic_heavy or balanced"`
	Alpha    float64         `json:"alpha" jsonschema:"lexical weight used for fusion"`
	Passages []PassageOutput `json:"passages"`
}

// IndexStatusInput takes no parameters.
type IndexStatusInput struct{}

// IndexStatusOutput is the index_status tool's structured result.
type IndexStatusOutput struct {
	Built          bool   `json:"built"`
	Documents      int    `json:"documents"`
	Chunks         int    `json:"chunks"`
	EmbeddedChunks int    `json:"embedded_chunks"`
	SemanticReady  bool   `json:"semantic_ready" jsonschema:"true when the semantic and hybrid strategies can run"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	LastIndexed    string `json:"last_indexed,omitempty"`
}

// NewServer creates an MCP server over retriever.
func NewServer(retriever Retriever, opts Options) (*Server, error) {
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if opts.DefaultK <= 0 {
		opts.DefaultK = 5
	}
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = search.StrategyAuto
	}

	s := &Server{
		retriever: retriever,
		opts:      opts,
		logger:    slog.Default(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: version.Name, Version: version.Version}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	tools := []ToolInfo{{Name: "retrieve", Description: retrieveDescription}}
	if s.opts.Status != nil {
		tools = append(tools, ToolInfo{Name: "index_status", Description: indexStatusDescription})
	}
	return tools
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "retrieve", Description: retrieveDescription}, s.retrieveHandler)
	if s.opts.Status != nil {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: "index_status", Description: indexStatusDescription}, s.indexStatusHandler)
	}
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(s.ListTools())))
}

func (s *Server) retrieveHandler(ctx context.Context, _ *mcp.CallToolRequest, input RetrieveInput) (
	*mcp.CallToolResult,
	RetrieveOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, RetrieveOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	strategy := search.Strategy(input.Strategy)
	if strategy == "" {
		strategy = s.opts.DefaultStrategy
	}
	req := search.Request{
		Query:    input.Query,
		K:        clampK(input.K, s.opts.DefaultK),
		Strategy: strategy,
		Alpha:    input.Alpha,
	}

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("retrieve_started",
		slog.String("request_id", requestID),
		slog.String("query", req.Query),
		slog.Int("k", req.K),
		slog.String("strategy", string(req.Strategy)))

	resp, err := s.retriever.Retrieve(ctx, req)
	if err != nil {
		s.logger.Error("retrieve_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, RetrieveOutput{}, MapError(err)
	}

	s.logger.Info("retrieve_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(resp.Results)))

	out := RetrieveOutput{
		Query:    resp.Query,
		Strategy: string(resp.Strategy),
		Route:    string(resp.Route.Kind),
		Alpha:    resp.Route.Alpha,
		Passages: make([]PassageOutput, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		out.Passages = append(out.Passages, ToPassageOutput(r))
	}

	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatResults(resp.Query, resp.Route, resp.Results)}},
	}
	return result, out, nil
}

func (s *Server) indexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	st, err := s.opts.Status(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}
	out := IndexStatusOutput{
		Built:          st.Built,
		Documents:      st.Documents,
		Chunks:         st.Chunks,
		EmbeddedChunks: st.EmbeddedChunks,
		SemanticReady:  st.SemanticReady(),
		EmbeddingModel: s.opts.EmbeddingModel,
	}
	if !st.LastIndexed.IsZero() {
		out.LastIndexed = st.LastIndexed.Format(time.RFC3339)
	}
	return nil, out, nil
}

// Serve runs the server over the named transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
