package internal

import (
	"errors"
	"strings"
	"time"
)

// Status represents where a video sits in the pipeline
type Status string

const (
	StatusDiscovered           Status = "discovered"
	StatusTranscriptAvailable  Status = "transcript_available"
	StatusTranscriptMissing    Status = "transcript_missing"
	StatusClassified           Status = "classified"
	StatusClassificationFailed Status = "classification_failed"
)

var allStatuses = []Status{
	StatusDiscovered,
	StatusTranscriptAvailable,
	StatusTranscriptMissing,
	StatusClassified,
	StatusClassificationFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the pipeline for a run.
// classification_failed is retryable and therefore not terminal.
func (s Status) IsTerminal() bool {
	return s == StatusTranscriptMissing || s == StatusClassified
}

// Sentinel errors shared across the pipeline.
var (
	// ErrInvalidState marks an illegal status transition; caller misuse, never retried.
	ErrInvalidState = errors.New("invalid video state for operation")
	// ErrSchemaViolation marks an LLM response outside the taxonomy or malformed.
	ErrSchemaViolation = errors.New("response violates classification schema")
	// ErrNotFound is returned when a video or transcript does not exist.
	ErrNotFound = errors.New("not found")
)

// Video is a single talk-show episode tracked in the store.
type Video struct {
	VideoID     string
	Title       string
	PublishedAt time.Time
	URL         string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Transcript is the text for one video, present when status >= transcript_available.
type Transcript struct {
	VideoID       string
	Text          string
	Language      string
	AutoGenerated bool
	FetchedAt     time.Time
}

// Classification is one topic-label verdict for a video.
// Rows are append-only per model so historical versions stay comparable.
type Classification struct {
	ID         int64
	VideoID    string
	Label      string
	Confidence float64
	Rationale  string
	Model      string
	CreatedAt  time.Time
}

// ClassifiedVideo joins a video, its transcript, and its latest classification.
type ClassifiedVideo struct {
	Video      Video
	Transcript Transcript
	Label      string
	Confidence float64
	Model      string
}

// ChannelVideo is the platform collaborator's view of one catalog entry.
type ChannelVideo struct {
	VideoID     string
	Title       string
	URL         string
	PublishedAt time.Time
}

// TranscriptResult is what the platform returns for a caption fetch.
type TranscriptResult struct {
	Text          string
	Language      string
	AutoGenerated bool
}

// Outcome labels one video's result within a batch command.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// VideoOutcome reports a single video's result within a batch command.
type VideoOutcome struct {
	VideoID string
	Title   string
	Outcome Outcome
	Detail  string
}

// BatchSummary aggregates per-video outcomes for user-facing reporting.
type BatchSummary struct {
	Outcomes []VideoOutcome
}

// Counts returns (success, skipped, failed) totals.
func (b *BatchSummary) Counts() (success, skipped, failed int) {
	for _, o := range b.Outcomes {
		switch o.Outcome {
		case OutcomeSuccess:
			success++
		case OutcomeSkipped:
			skipped++
		case OutcomeFailed:
			failed++
		}
	}
	return success, skipped, failed
}

// Add appends one outcome.
func (b *BatchSummary) Add(o VideoOutcome) {
	b.Outcomes = append(b.Outcomes, o)
}
