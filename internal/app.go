package internal

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// App holds the application state and dependencies
type App struct {
	store      *Store
	platform   Platform
	ai         *AI
	classifier *Classifier
	analyzer   *Analyzer
	config     *Config
	ui         UIManager
}

// NewApp initializes the application. Fatal configuration and database
// problems surface here, before any per-video work.
func NewApp(config *Config, options ...AppOption) (*App, error) {
	store, err := OpenStore(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", config.DatabasePath, err)
	}

	ai := NewAIFromConfig(config)
	promptManager := NewPromptManager(config.ConfigDir, config.Prompt, config.Taxonomy)

	app := &App{
		store:      store,
		platform:   NewYouTube(config.CacheDir, config.Verbose),
		ai:         ai,
		classifier: NewClassifier(ai, promptManager, config),
		config:     config,
		ui:         NewUIManager(config.Verbose, config.Quiet),
	}
	app.analyzer = NewAnalyzer(store, ai, config)

	// Apply any custom options
	for _, option := range options {
		option(app)
	}

	return app, nil
}

// Close releases the store.
func (app *App) Close() error {
	return app.store.Close()
}

// Store exposes the transcript store to commands that read it directly.
func (app *App) Store() *Store {
	return app.store
}

// AppOption customizes App creation
type AppOption func(*App)

// WithPlatform sets a custom platform collaborator
func WithPlatform(platform Platform) AppOption {
	return func(a *App) {
		a.platform = platform
	}
}

// WithAI sets a custom AI processor and rebuilds the components that hold it
func WithAI(ai *AI) AppOption {
	return func(a *App) {
		a.ai = ai
		pm := NewPromptManager(a.config.ConfigDir, a.config.Prompt, a.config.Taxonomy)
		a.classifier = NewClassifier(ai, pm, a.config)
		a.analyzer = NewAnalyzer(a.store, ai, a.config)
	}
}

// WithClassifier sets a custom classification engine
func WithClassifier(classifier *Classifier) AppOption {
	return func(a *App) {
		a.classifier = classifier
	}
}

// Extract enumerates the channel catalog, upserts every video, and attaches
// transcripts where the platform has them. Safe to re-run: known videos keep
// their status, terminal videos are skipped.
func (app *App) Extract(ctx context.Context) (*BatchSummary, error) {
	videos, err := app.platform.ChannelVideos(ctx, app.config.Channel, app.config.MaxVideos)
	if err != nil {
		return nil, err
	}
	app.ui.Printf("Discovered %d videos on the channel\n", len(videos))

	summary := &BatchSummary{}
	bar := app.ui.NewProgressBar(len(videos), "Extracting transcripts")
	defer bar.Finish()

	for i, cv := range videos {
		bar.Set(i)
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		video, err := app.store.UpsertVideo(ctx, cv)
		if err != nil {
			summary.Add(VideoOutcome{VideoID: cv.VideoID, Title: cv.Title, Outcome: OutcomeFailed, Detail: err.Error()})
			continue
		}

		if video.Status != StatusDiscovered {
			summary.Add(VideoOutcome{VideoID: cv.VideoID, Title: cv.Title, Outcome: OutcomeSkipped, Detail: string(video.Status)})
			continue
		}

		result, err := app.platform.FetchTranscript(ctx, cv)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			// Leave the video discovered so the next run retries the fetch.
			summary.Add(VideoOutcome{VideoID: cv.VideoID, Title: cv.Title, Outcome: OutcomeFailed, Detail: err.Error()})
			continue
		}

		if result == nil {
			if err := app.store.MarkTranscriptMissing(ctx, cv.VideoID); err != nil {
				summary.Add(VideoOutcome{VideoID: cv.VideoID, Title: cv.Title, Outcome: OutcomeFailed, Detail: err.Error()})
				continue
			}
			summary.Add(VideoOutcome{VideoID: cv.VideoID, Title: cv.Title, Outcome: OutcomeSuccess, Detail: "no captions"})
			continue
		}

		if err := app.store.AttachTranscript(ctx, cv.VideoID, *result); err != nil {
			summary.Add(VideoOutcome{VideoID: cv.VideoID, Title: cv.Title, Outcome: OutcomeFailed, Detail: err.Error()})
			continue
		}
		summary.Add(VideoOutcome{VideoID: cv.VideoID, Title: cv.Title, Outcome: OutcomeSuccess, Detail: "transcript attached"})
	}

	return summary, nil
}

// ClassifyPending runs the classification engine over every video awaiting a
// verdict, including previously failed ones. One video's failure never aborts
// the batch.
func (app *App) ClassifyPending(ctx context.Context) (*BatchSummary, error) {
	videos, err := app.store.VideosByStatus(ctx, StatusTranscriptAvailable, StatusClassificationFailed)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		app.ui.Println("No videos awaiting classification")
		return &BatchSummary{}, nil
	}

	app.ui.Printf("Classifying %d video(s) with %d worker(s)\n", len(videos), app.config.Workers)
	bar := app.ui.NewProgressBar(len(videos), "Classifying")
	defer bar.Finish()

	var done atomic.Int64
	summary := runPool(ctx, app.config.Workers, videos, func(ctx context.Context, video *Video) VideoOutcome {
		outcome := app.classifyOne(ctx, video)
		bar.Set(int(done.Add(1)))
		return outcome
	})

	return summary, ctx.Err()
}

// classifyOne runs the strictly sequential per-video pipeline:
// classify, then exactly one status write.
func (app *App) classifyOne(ctx context.Context, video *Video) VideoOutcome {
	transcript, err := app.store.GetTranscript(ctx, video.VideoID)
	if err != nil {
		return VideoOutcome{VideoID: video.VideoID, Title: video.Title, Outcome: OutcomeFailed, Detail: err.Error()}
	}

	classification, err := app.classifier.Classify(ctx, video, transcript.Text)
	if err != nil {
		if ctx.Err() != nil {
			// Interrupted: leave the video in its current resumable state.
			return VideoOutcome{VideoID: video.VideoID, Title: video.Title, Outcome: OutcomeSkipped, Detail: "canceled"}
		}
		if markErr := app.store.MarkClassificationFailed(ctx, video.VideoID, err.Error()); markErr != nil {
			return VideoOutcome{VideoID: video.VideoID, Title: video.Title, Outcome: OutcomeFailed, Detail: markErr.Error()}
		}
		return VideoOutcome{VideoID: video.VideoID, Title: video.Title, Outcome: OutcomeFailed, Detail: err.Error()}
	}

	if err := app.store.MarkClassified(ctx, *classification); err != nil {
		if errors.Is(err, ErrInvalidState) {
			return VideoOutcome{VideoID: video.VideoID, Title: video.Title, Outcome: OutcomeSkipped, Detail: err.Error()}
		}
		return VideoOutcome{VideoID: video.VideoID, Title: video.Title, Outcome: OutcomeFailed, Detail: err.Error()}
	}

	return VideoOutcome{VideoID: video.VideoID, Title: video.Title, Outcome: OutcomeSuccess, Detail: classification.Label}
}

// AnalyzeDrift runs the manifold analyzer over classified videos matching the
// label filter.
func (app *App) AnalyzeDrift(ctx context.Context, labels []string, granularity Granularity) (*Snapshot, error) {
	return app.analyzer.Analyze(ctx, labels, granularity)
}
