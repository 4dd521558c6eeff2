package internal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		Channel:          "https://www.youtube.com/@example",
		DatabasePath:     filepath.Join(dir, "topicdrift.db"),
		LLMProvider:      "openai",
		ClassifyModel:    "test-chat-model",
		EmbeddingModel:   "test-embedding-model",
		OpenAIAPIKey:     "test-key",
		Taxonomy:         DefaultTaxonomy,
		MaxVideos:        100,
		Workers:          2,
		MaxAttempts:      3,
		BackoffBase:      time.Millisecond,
		RequestTimeout:   5 * time.Second,
		RequestsPerSec:   1000,
		ReduceDims:       2,
		ReduceSeed:       42,
		MinBucketSize:    2,
		EmbedExcerptSize: 6000,
		Quiet:            true,
		ConfigDir:        dir,
		DataDir:          dir,
		CacheDir:         dir,
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "topicdrift.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// llmStep is one scripted chat response.
type llmStep struct {
	text string
	err  error
}

// fakeLLM satisfies LLMClient. Chat responses come either from a per-prompt
// function or from an ordered queue; embeddings come from embedFn.
type fakeLLM struct {
	mu      sync.Mutex
	calls   int
	respond func(prompt string) (string, error)
	steps   []llmStep
	embedFn func(input string) ([]float64, error)
}

func (f *fakeLLM) CreateChatCompletion(_ context.Context, _, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.respond != nil {
		return f.respond(prompt)
	}
	if len(f.steps) == 0 {
		return "", errors.New("no scripted response left")
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	return step.text, step.err
}

func (f *fakeLLM) CreateEmbedding(_ context.Context, _, input string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.embedFn == nil {
		return nil, errors.New("no embedding function configured")
	}
	return f.embedFn(input)
}

func (f *fakeLLM) chatCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newFakeAI(client LLMClient) *AI {
	return NewAI(client, 5*time.Second, 1000, false)
}

// fakePlatform satisfies Platform with a fixed catalog and in-memory transcripts.
type fakePlatform struct {
	videos      []ChannelVideo
	transcripts map[string]string // video id -> text; absent means no captions
	fetchErr    map[string]error
}

func (p *fakePlatform) ChannelVideos(_ context.Context, _ string, maxVideos int) ([]ChannelVideo, error) {
	if maxVideos > 0 && maxVideos < len(p.videos) {
		return p.videos[:maxVideos], nil
	}
	return p.videos, nil
}

func (p *fakePlatform) FetchTranscript(_ context.Context, video ChannelVideo) (*TranscriptResult, error) {
	if err := p.fetchErr[video.VideoID]; err != nil {
		return nil, err
	}
	text, ok := p.transcripts[video.VideoID]
	if !ok {
		return nil, nil
	}
	return &TranscriptResult{Text: text, Language: "en", AutoGenerated: true}, nil
}

func classificationJSON(label string, confidence float64) string {
	return fmt.Sprintf(`{"label": %q, "confidence": %v, "rationale": "test rationale"}`, label, confidence)
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return parsed
}
