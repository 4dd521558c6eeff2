package internal

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func channelFixture(t *testing.T) *fakePlatform {
	t.Helper()
	return &fakePlatform{
		videos: []ChannelVideo{
			{VideoID: "eco1", Title: "Inflation outlook", URL: "u/eco1", PublishedAt: mustDate(t, "2024-01-08")},
			{VideoID: "pol1", Title: "Election night", URL: "u/pol1", PublishedAt: mustDate(t, "2024-01-22")},
			{VideoID: "eco2", Title: "Rate cuts ahead", URL: "u/eco2", PublishedAt: mustDate(t, "2024-02-14")},
			{VideoID: "pol2", Title: "Cabinet reshuffle", URL: "u/pol2", PublishedAt: mustDate(t, "2024-02-20")},
			{VideoID: "eco3", Title: "Jobs report special", URL: "u/eco3", PublishedAt: mustDate(t, "2024-03-05")},
		},
		transcripts: map[string]string{
			"eco1": "talk about inflation and prices",
			"pol1": "talk about the election results",
			"eco2": "talk about interest rates",
			"pol2": "talk about the new cabinet",
			"eco3": "talk about unemployment figures",
		},
		fetchErr: map[string]error{},
	}
}

// classifyByID answers with a label derived from the video id embedded in the
// prompt, so concurrent workers get consistent verdicts.
func classifyByID(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Video ID: eco"):
		return classificationJSON("economics", 0.9), nil
	case strings.Contains(prompt, "Video ID: pol"):
		return classificationJSON("politics", 0.85), nil
	default:
		return "", errors.New("unknown video in prompt")
	}
}

func newTestApp(t *testing.T, config *Config, platform Platform, llm LLMClient) *App {
	t.Helper()
	app, err := NewApp(config, WithPlatform(platform), WithAI(newFakeAI(llm)))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestExtractAttachesTranscripts(t *testing.T) {
	platform := channelFixture(t)
	delete(platform.transcripts, "pol2") // no captions
	platform.fetchErr["eco3"] = errors.New("network down")

	app := newTestApp(t, testConfig(t), platform, &fakeLLM{})
	ctx := context.Background()

	summary, err := app.Extract(ctx)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	success, skipped, failed := summary.Counts()
	if success != 4 || skipped != 0 || failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 4 success, 0 skipped, 1 failed", success, skipped, failed)
	}

	// pol2 has no captions and is terminal; eco3 failed transiently and
	// stays discovered for the next run.
	pol2, err := app.Store().GetVideo(ctx, "pol2")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if pol2.Status != StatusTranscriptMissing {
		t.Errorf("pol2 status = %s, want %s", pol2.Status, StatusTranscriptMissing)
	}
	eco3, err := app.Store().GetVideo(ctx, "eco3")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if eco3.Status != StatusDiscovered {
		t.Errorf("eco3 status = %s, want %s", eco3.Status, StatusDiscovered)
	}

	// The caption source reported by the platform lands in the stored row.
	transcript, err := app.Store().GetTranscript(ctx, "eco1")
	if err != nil {
		t.Fatalf("GetTranscript: %v", err)
	}
	if !transcript.AutoGenerated {
		t.Error("eco1 transcript not flagged as auto-generated captions")
	}

	// Re-running only retries the transiently failed fetch.
	delete(platform.fetchErr, "eco3")
	summary, err = app.Extract(ctx)
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	success, skipped, failed = summary.Counts()
	if success != 1 || skipped != 4 || failed != 0 {
		t.Errorf("second run counts = %d/%d/%d, want 1 success, 4 skipped", success, skipped, failed)
	}
}

func TestClassifyPendingMovesVideosToClassified(t *testing.T) {
	platform := channelFixture(t)
	llm := &fakeLLM{respond: classifyByID}
	app := newTestApp(t, testConfig(t), platform, llm)
	ctx := context.Background()

	if _, err := app.Extract(ctx); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	summary, err := app.ClassifyPending(ctx)
	if err != nil {
		t.Fatalf("ClassifyPending: %v", err)
	}
	success, _, failed := summary.Counts()
	if success != 5 || failed != 0 {
		t.Errorf("counts = %d success, %d failed, want 5/0", success, failed)
	}

	classified, err := app.Store().VideosByStatus(ctx, StatusClassified)
	if err != nil {
		t.Fatalf("VideosByStatus: %v", err)
	}
	if len(classified) != 5 {
		t.Errorf("classified videos = %d, want 5", len(classified))
	}

	// Nothing left to do on a second run.
	summary, err = app.ClassifyPending(ctx)
	if err != nil {
		t.Fatalf("second ClassifyPending: %v", err)
	}
	if len(summary.Outcomes) != 0 {
		t.Errorf("second run produced %d outcomes, want 0", len(summary.Outcomes))
	}
}

func TestClassifyPendingRecordsFailuresAndRetries(t *testing.T) {
	platform := channelFixture(t)
	broken := true
	llm := &fakeLLM{respond: func(prompt string) (string, error) {
		if broken && strings.Contains(prompt, "Video ID: eco1") {
			return "I cannot classify this", nil
		}
		return classifyByID(prompt)
	}}

	config := testConfig(t)
	config.Workers = 1
	app := newTestApp(t, config, platform, llm)
	ctx := context.Background()

	if _, err := app.Extract(ctx); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	summary, err := app.ClassifyPending(ctx)
	if err != nil {
		t.Fatalf("ClassifyPending: %v", err)
	}
	success, _, failed := summary.Counts()
	if success != 4 || failed != 1 {
		t.Errorf("counts = %d success, %d failed, want 4/1", success, failed)
	}

	eco1, err := app.Store().GetVideo(ctx, "eco1")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if eco1.Status != StatusClassificationFailed {
		t.Errorf("eco1 status = %s, want %s", eco1.Status, StatusClassificationFailed)
	}

	// Fix the model; the next run picks up only the failed video.
	broken = false
	summary, err = app.ClassifyPending(ctx)
	if err != nil {
		t.Fatalf("retry ClassifyPending: %v", err)
	}
	success, _, failed = summary.Counts()
	if success != 1 || failed != 0 {
		t.Errorf("retry counts = %d success, %d failed, want 1/0", success, failed)
	}
}

func TestPipelineEndToEndDriftAnalysis(t *testing.T) {
	platform := channelFixture(t)
	llm := &fakeLLM{
		respond: classifyByID,
		embedFn: func(input string) ([]float64, error) {
			// Distinct axis per topic keyword so economics buckets move.
			switch {
			case strings.Contains(input, "inflation"):
				return []float64{1, 0, 0, 0}, nil
			case strings.Contains(input, "interest"):
				return []float64{0, 1, 0, 0}, nil
			case strings.Contains(input, "unemployment"):
				return []float64{0, 0, 1, 0}, nil
			default:
				return []float64{0, 0, 0, 1}, nil
			}
		},
	}

	config := testConfig(t)
	config.MinBucketSize = 1
	app := newTestApp(t, config, platform, llm)
	ctx := context.Background()

	if _, err := app.Extract(ctx); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, err := app.ClassifyPending(ctx); err != nil {
		t.Fatalf("ClassifyPending: %v", err)
	}

	snapshot, err := app.AnalyzeDrift(ctx, []string{"economics"}, GranularityMonthly)
	if err != nil {
		t.Fatalf("AnalyzeDrift: %v", err)
	}

	if len(snapshot.Points) != 3 {
		t.Fatalf("got %d points, want 3 economics videos", len(snapshot.Points))
	}
	for _, p := range snapshot.Points {
		if p.Label != "economics" {
			t.Errorf("point %s label = %q", p.VideoID, p.Label)
		}
	}
	wantBuckets := []string{"2024-01", "2024-02", "2024-03"}
	if len(snapshot.Buckets) != len(wantBuckets) {
		t.Fatalf("got %d buckets, want %d", len(snapshot.Buckets), len(wantBuckets))
	}
	for i, b := range snapshot.Buckets {
		if b.Bucket != wantBuckets[i] {
			t.Errorf("bucket[%d] = %s, want %s", i, b.Bucket, wantBuckets[i])
		}
	}
	if len(snapshot.Drifts) != 2 {
		t.Fatalf("got %d drifts, want 2", len(snapshot.Drifts))
	}
	for _, d := range snapshot.Drifts {
		if !d.Defined || d.Value <= 0 {
			t.Errorf("drift %s -> %s = %+v, want defined and positive", d.From, d.To, d)
		}
	}

	// Quarterly bucketing folds all three into one quarter.
	quarterly, err := app.AnalyzeDrift(ctx, []string{"economics"}, GranularityQuarterly)
	if err != nil {
		t.Fatalf("quarterly AnalyzeDrift: %v", err)
	}
	if len(quarterly.Buckets) != 1 || quarterly.Buckets[0].Bucket != "2024-Q1" {
		t.Errorf("quarterly buckets = %+v", quarterly.Buckets)
	}
	if len(quarterly.Drifts) != 0 {
		t.Errorf("quarterly drifts = %+v, want none", quarterly.Drifts)
	}
}
