package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Classifier turns transcripts into taxonomy labels via the LLM, with retry
// and validation discipline. It does not touch the store; the caller owns the
// status transition that follows.
type Classifier struct {
	ai            *AI
	promptManager *PromptManager
	taxonomy      []string
	model         string
	modelID       string
	maxAttempts   int
	backoffBase   time.Duration
	verbose       bool

	// sleep is swappable so tests do not wait out real backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClassifier creates a classification engine.
func NewClassifier(ai *AI, pm *PromptManager, config *Config) *Classifier {
	return &Classifier{
		ai:            ai,
		promptManager: pm,
		taxonomy:      config.Taxonomy,
		model:         config.ClassifyModel,
		modelID:       config.ModelIdentifier(config.ClassifyModel),
		maxAttempts:   config.MaxAttempts,
		backoffBase:   config.BackoffBase,
		verbose:       config.Verbose,
		sleep:         sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classificationResponse is the JSON shape the model is asked to produce.
// Confidence is a pointer so an absent field is distinguishable from 0.0.
type classificationResponse struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

// Classify produces a Classification for one video. Transient failures are
// retried with exponential backoff; schema violations are retried with a
// corrective prompt. After maxAttempts the last error is returned and the
// caller records the video as classification_failed.
func (c *Classifier) Classify(ctx context.Context, video *Video, transcript string) (*Classification, error) {
	var lastErr error
	strict := false

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.backoffBase * (1 << (attempt - 2))
			if c.verbose {
				fmt.Printf("Retrying %s (attempt %d/%d) after %s\n", video.VideoID, attempt, c.maxAttempts, backoff)
			}
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		prompt, err := c.promptManager.CreatePrompt(video, transcript, strict)
		if err != nil {
			return nil, fmt.Errorf("creating prompt: %w", err)
		}

		raw, err := c.ai.Complete(ctx, c.model, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		result, err := c.parseResponse(raw)
		if err != nil {
			// Schema trouble: tighten the instruction for the next attempt.
			strict = true
			lastErr = err
			continue
		}

		return &Classification{
			VideoID:    video.VideoID,
			Label:      result.Label,
			Confidence: *result.Confidence,
			Rationale:  result.Rationale,
			Model:      c.modelID,
		}, nil
	}

	return nil, fmt.Errorf("classification failed after %d attempts: %w", c.maxAttempts, lastErr)
}

// ModelIdentifier returns the provider-qualified model recorded on classifications.
func (c *Classifier) ModelIdentifier() string {
	return c.modelID
}

// parseResponse validates the model output against the taxonomy and required
// fields. Anything outside the contract is a schema violation, not a crash.
func (c *Classifier) parseResponse(raw string) (*classificationResponse, error) {
	cleaned := stripCodeFences(raw)

	var resp classificationResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("unparseable response %q: %w", truncate(raw, 120), ErrSchemaViolation)
	}

	resp.Label = strings.ToLower(strings.TrimSpace(resp.Label))
	if resp.Label == "" {
		return nil, fmt.Errorf("missing label: %w", ErrSchemaViolation)
	}
	if !labelInTaxonomy(resp.Label, c.taxonomy) {
		return nil, fmt.Errorf("label %q not in taxonomy: %w", resp.Label, ErrSchemaViolation)
	}
	if resp.Confidence == nil {
		return nil, fmt.Errorf("missing confidence: %w", ErrSchemaViolation)
	}
	if *resp.Confidence < 0 || *resp.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range: %w", *resp.Confidence, ErrSchemaViolation)
	}
	return &resp, nil
}

func labelInTaxonomy(label string, taxonomy []string) bool {
	for _, t := range taxonomy {
		if strings.EqualFold(t, label) {
			return true
		}
	}
	return false
}

// stripCodeFences removes a surrounding markdown code fence and any prose
// around the outermost JSON object.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// IsSchemaViolation reports whether an error chain contains a schema violation.
func IsSchemaViolation(err error) bool {
	return errors.Is(err, ErrSchemaViolation)
}
