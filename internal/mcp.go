package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer wraps the MCP server and application dependencies
type MCPServer struct {
	app       *App
	mcpServer *server.MCPServer
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(app *App) *MCPServer {
	mcpServer := server.NewMCPServer(
		"topicdrift-server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		app:       app,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s
}

// registerTools registers all available MCP tools
func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_video_transcript",
		mcp.WithDescription("Get the stored transcript for a video already extracted into the local database. Fails if the video is unknown or has no transcript."),
		mcp.WithString("video_id",
			mcp.Description("Platform video ID"),
			mcp.Required(),
		),
	), s.handleGetTranscript)

	s.mcpServer.AddTool(mcp.NewTool("classify_video",
		mcp.WithDescription("Classify one stored transcript into the configured topic taxonomy using the LLM (may incur API costs). The video must be in transcript_available or classification_failed state."),
		mcp.WithString("video_id",
			mcp.Description("Platform video ID"),
			mcp.Required(),
		),
	), s.handleClassifyVideo)

	s.mcpServer.AddTool(mcp.NewTool("analyze_drift",
		mcp.WithDescription("Run the manifold drift analysis over classified videos (computes embeddings, may incur API costs). Returns per-bucket centroids, dispersion, and the inter-bucket drift sequence as markdown."),
		mcp.WithString("topics",
			mcp.Description("Comma-separated topic labels to filter by (empty for all)"),
		),
		mcp.WithString("bucket",
			mcp.Description("Time bucket granularity: monthly or quarterly (default monthly)"),
		),
	), s.handleAnalyzeDrift)
}

// handleGetTranscript implements the get_video_transcript tool
func (s *MCPServer) handleGetTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, err := request.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError("video_id parameter is required and must be a string"), nil
	}

	transcript, err := s.app.Store().GetTranscript(ctx, videoID)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("no stored transcript - run extract first", err), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(transcript.Text)},
	}, nil
}

// handleClassifyVideo implements the classify_video tool
func (s *MCPServer) handleClassifyVideo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, err := request.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError("video_id parameter is required and must be a string"), nil
	}

	video, err := s.app.Store().GetVideo(ctx, videoID)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("unknown video", err), nil
	}
	if video.Status != StatusTranscriptAvailable && video.Status != StatusClassificationFailed {
		return mcp.NewToolResultError(fmt.Sprintf("video %s is %s, not classifiable", videoID, video.Status)), nil
	}

	outcome := s.app.classifyOne(ctx, video)
	if outcome.Outcome != OutcomeSuccess {
		return mcp.NewToolResultError(fmt.Sprintf("classification %s: %s", outcome.Outcome, outcome.Detail)), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("Classified %s as %q", videoID, outcome.Detail))},
	}, nil
}

// handleAnalyzeDrift implements the analyze_drift tool
func (s *MCPServer) handleAnalyzeDrift(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var labels []string
	if topics := request.GetString("topics", ""); topics != "" {
		for _, label := range strings.Split(topics, ",") {
			if trimmed := strings.TrimSpace(label); trimmed != "" {
				labels = append(labels, trimmed)
			}
		}
	}

	granularity, err := ParseGranularity(request.GetString("bucket", string(GranularityMonthly)))
	if err != nil {
		return mcp.NewToolResultErrorFromErr("bad bucket granularity", err), nil
	}

	snapshot, err := s.app.AnalyzeDrift(ctx, labels, granularity)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("drift analysis failed", err), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(SnapshotMarkdown(snapshot))},
	}, nil
}

// Start starts the MCP server using the specified transport
func (s *MCPServer) Start(ctx context.Context, transport string, port int) error {
	if transport == "http" {
		httpServer := server.NewStreamableHTTPServer(s.mcpServer)
		addr := fmt.Sprintf(":%d", port)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return httpServer.Start(addr)
	}

	// Default to stdio transport
	return server.ServeStdio(s.mcpServer)
}
