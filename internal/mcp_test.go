package internal

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func classifyToolRequest(videoID string) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = "classify_video"
	req.Params.Arguments = map[string]any{"video_id": videoID}
	return req
}

func TestClassifyVideoToolRejectsNonClassifiableStates(t *testing.T) {
	llm := &fakeLLM{respond: classifyByID}
	app := newTestApp(t, testConfig(t), &fakePlatform{}, llm)
	server := NewMCPServer(app)
	ctx := context.Background()
	store := app.Store()

	if _, err := store.UpsertVideo(ctx, ChannelVideo{VideoID: "eco1", Title: "t", URL: "u", PublishedAt: mustDate(t, "2024-01-08")}); err != nil {
		t.Fatalf("UpsertVideo: %v", err)
	}
	if err := store.AttachTranscript(ctx, "eco1", TranscriptResult{Text: "talk about inflation"}); err != nil {
		t.Fatalf("AttachTranscript: %v", err)
	}
	if err := store.MarkClassified(ctx, Classification{VideoID: "eco1", Label: "economics", Confidence: 0.9, Model: "m"}); err != nil {
		t.Fatalf("MarkClassified: %v", err)
	}
	if _, err := store.UpsertVideo(ctx, ChannelVideo{VideoID: "eco2", Title: "t", URL: "u", PublishedAt: mustDate(t, "2024-02-14")}); err != nil {
		t.Fatalf("UpsertVideo: %v", err)
	}

	// Already classified, and not yet extracted: both refused before any
	// model call is made.
	for _, videoID := range []string{"eco1", "eco2"} {
		result, err := server.handleClassifyVideo(ctx, classifyToolRequest(videoID))
		if err != nil {
			t.Fatalf("handleClassifyVideo(%s): %v", videoID, err)
		}
		if !result.IsError {
			t.Errorf("classify_video on %s succeeded, want tool error", videoID)
		}
	}
	if calls := llm.chatCalls(); calls != 0 {
		t.Errorf("LLM called %d times for non-classifiable videos, want 0", calls)
	}
}

func TestClassifyVideoToolClassifiesStoredTranscript(t *testing.T) {
	llm := &fakeLLM{respond: classifyByID}
	app := newTestApp(t, testConfig(t), &fakePlatform{}, llm)
	server := NewMCPServer(app)
	ctx := context.Background()
	store := app.Store()

	if _, err := store.UpsertVideo(ctx, ChannelVideo{VideoID: "pol1", Title: "t", URL: "u", PublishedAt: mustDate(t, "2024-01-22")}); err != nil {
		t.Fatalf("UpsertVideo: %v", err)
	}
	if err := store.AttachTranscript(ctx, "pol1", TranscriptResult{Text: "talk about the election"}); err != nil {
		t.Fatalf("AttachTranscript: %v", err)
	}

	result, err := server.handleClassifyVideo(ctx, classifyToolRequest("pol1"))
	if err != nil {
		t.Fatalf("handleClassifyVideo: %v", err)
	}
	if result.IsError {
		t.Fatalf("classify_video failed: %+v", result.Content)
	}

	video, err := store.GetVideo(ctx, "pol1")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if video.Status != StatusClassified {
		t.Errorf("status = %s, want %s", video.Status, StatusClassified)
	}
}
