package internal

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the durable record of videos, transcripts, classifications, and
// cached embeddings. It is the single source of truth for pipeline state.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS videos (
    video_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    published_at TEXT,
    url TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transcripts (
    video_id TEXT PRIMARY KEY REFERENCES videos (video_id),
    text TEXT NOT NULL,
    language TEXT,
    auto_generated INTEGER NOT NULL DEFAULT 0,
    fetched_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS classifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id TEXT NOT NULL REFERENCES videos (video_id),
    label TEXT NOT NULL,
    confidence REAL NOT NULL,
    rationale TEXT,
    model TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_classifications_video ON classifications (video_id);

CREATE TABLE IF NOT EXISTS embeddings (
    video_id TEXT NOT NULL,
    model TEXT NOT NULL,
    vector BLOB NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (video_id, model)
);

CREATE TABLE IF NOT EXISTS failures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id TEXT NOT NULL,
    reason TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

// OpenStore initializes or connects to the database and applies the schema.
func OpenStore(databasePath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(databasePath), 0755); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}

	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: databasePath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullableTimeStr(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// UpsertVideo records a catalog entry. Re-running extraction on a known video
// refreshes mutable metadata (title, url) without touching its status.
func (s *Store) UpsertVideo(ctx context.Context, v ChannelVideo) (*Video, error) {
	if strings.TrimSpace(v.VideoID) == "" {
		return nil, errors.New("video id is required")
	}
	now := timestamp()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO videos (video_id, title, published_at, url, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(video_id) DO UPDATE SET
             title = excluded.title,
             published_at = excluded.published_at,
             url = excluded.url,
             updated_at = excluded.updated_at`,
		v.VideoID,
		v.Title,
		nullableTimeStr(v.PublishedAt),
		v.URL,
		StatusDiscovered,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert video: %w", err)
	}
	return s.GetVideo(ctx, v.VideoID)
}

const videoColumns = `video_id, title, published_at, url, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*Video, error) {
	var v Video
	var published sql.NullString
	var status, created, updated string
	if err := row.Scan(&v.VideoID, &v.Title, &published, &v.URL, &status, &created, &updated); err != nil {
		return nil, err
	}
	v.Status = Status(status)
	if published.Valid {
		if t, err := time.Parse(time.RFC3339Nano, published.String); err == nil {
			v.PublishedAt = t
		} else if t, err := time.Parse("2006-01-02", published.String); err == nil {
			v.PublishedAt = t
		}
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	v.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &v, nil
}

// GetVideo fetches a video by platform ID, or ErrNotFound.
func (s *Store) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE video_id = ?`, videoID)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return v, nil
}

// VideosByStatus returns videos in any of the given statuses, oldest published first.
func (s *Store) VideosByStatus(ctx context.Context, statuses ...Status) ([]*Video, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+videoColumns+` FROM videos WHERE status IN (`+placeholders+`)
         ORDER BY published_at IS NULL, published_at, video_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// transition moves a video between statuses, failing with ErrInvalidState when
// the current status is not in the allowed set. The UPDATE carries the
// precondition in its WHERE clause so concurrent writers for the same row
// cannot both win.
func transitionTx(ctx context.Context, tx *sql.Tx, videoID string, to Status, from ...Status) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	args := []any{to, timestamp(), videoID}
	for _, f := range from {
		args = append(args, f)
	}
	res, err := tx.ExecContext(
		ctx,
		`UPDATE videos SET status = ?, updated_at = ? WHERE video_id = ? AND status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("transition to %s: %w", to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows affected: %w", err)
	}
	if affected == 0 {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT status FROM videos WHERE video_id = ?`, videoID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("video %s: %w", videoID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read current status: %w", err)
		}
		return fmt.Errorf("video %s is %s, cannot move to %s: %w", videoID, current, to, ErrInvalidState)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// AttachTranscript stores a transcript and moves the video from discovered to
// transcript_available in one transaction.
func (s *Store) AttachTranscript(ctx context.Context, videoID string, result TranscriptResult) error {
	if strings.TrimSpace(result.Text) == "" {
		return errors.New("transcript text is empty")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := transitionTx(ctx, tx, videoID, StatusTranscriptAvailable, StatusDiscovered); err != nil {
			return err
		}
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO transcripts (video_id, text, language, auto_generated, fetched_at)
             VALUES (?, ?, ?, ?, ?)
             ON CONFLICT(video_id) DO UPDATE SET
                 text = excluded.text,
                 language = excluded.language,
                 auto_generated = excluded.auto_generated,
                 fetched_at = excluded.fetched_at`,
			videoID,
			result.Text,
			result.Language,
			boolToInt(result.AutoGenerated),
			timestamp(),
		)
		if err != nil {
			return fmt.Errorf("insert transcript: %w", err)
		}
		return nil
	})
}

// MarkTranscriptMissing records that the platform has no captions for a video.
func (s *Store) MarkTranscriptMissing(ctx context.Context, videoID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return transitionTx(ctx, tx, videoID, StatusTranscriptMissing, StatusDiscovered)
	})
}

// GetTranscript returns the transcript for a video, or ErrNotFound.
func (s *Store) GetTranscript(ctx context.Context, videoID string) (*Transcript, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT video_id, text, language, auto_generated, fetched_at FROM transcripts WHERE video_id = ?`,
		videoID,
	)
	var t Transcript
	var language sql.NullString
	var auto int
	var fetched string
	err := row.Scan(&t.VideoID, &t.Text, &language, &auto, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transcript for %s: %w", videoID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	t.Language = language.String
	t.AutoGenerated = auto != 0
	t.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetched)
	return &t, nil
}

// MarkClassified appends a classification row and moves the video to
// classified in the same transaction. Prior classification rows are retained.
func (s *Store) MarkClassified(ctx context.Context, c Classification) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := transitionTx(ctx, tx, c.VideoID, StatusClassified, StatusTranscriptAvailable, StatusClassificationFailed); err != nil {
			return err
		}
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO classifications (video_id, label, confidence, rationale, model, created_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			c.VideoID,
			c.Label,
			c.Confidence,
			c.Rationale,
			c.Model,
			timestamp(),
		)
		if err != nil {
			return fmt.Errorf("insert classification: %w", err)
		}
		return nil
	})
}

// MarkClassificationFailed records the failure reason and degrades the video
// to classification_failed. The reason log is append-only.
func (s *Store) MarkClassificationFailed(ctx context.Context, videoID, reason string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := transitionTx(ctx, tx, videoID, StatusClassificationFailed, StatusTranscriptAvailable, StatusClassificationFailed); err != nil {
			return err
		}
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO failures (video_id, reason, created_at) VALUES (?, ?, ?)`,
			videoID,
			reason,
			timestamp(),
		)
		if err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
		return nil
	})
}

// ClassifiedVideos returns classified videos whose latest classification for
// the given model carries one of the wanted labels, joined to transcripts,
// ordered by publication date. Empty labels means every label; empty model
// means the latest classification regardless of model.
func (s *Store) ClassifiedVideos(ctx context.Context, labels []string, model string) ([]*ClassifiedVideo, error) {
	query := `
        SELECT ` + prefixColumns("v", videoColumns) + `,
               t.text, t.language, t.auto_generated, t.fetched_at,
               c.label, c.confidence, c.model
        FROM videos v
        JOIN transcripts t ON t.video_id = v.video_id
        JOIN classifications c ON c.video_id = v.video_id
        WHERE v.status = ?
          AND c.id = (
              SELECT c2.id FROM classifications c2
              WHERE c2.video_id = v.video_id AND (? = '' OR c2.model = ?)
              ORDER BY c2.id DESC LIMIT 1
          )`
	args := []any{StatusClassified, model, model}
	if len(labels) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(labels)), ",")
		query += ` AND c.label IN (` + placeholders + `)`
		for _, label := range labels {
			args = append(args, label)
		}
	}
	query += ` ORDER BY v.published_at IS NULL, v.published_at, v.video_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query classified videos: %w", err)
	}
	defer rows.Close()

	var result []*ClassifiedVideo
	for rows.Next() {
		var cv ClassifiedVideo
		var published, language sql.NullString
		var status, created, updated, fetched string
		var auto int
		err := rows.Scan(
			&cv.Video.VideoID, &cv.Video.Title, &published, &cv.Video.URL, &status, &created, &updated,
			&cv.Transcript.Text, &language, &auto, &fetched,
			&cv.Label, &cv.Confidence, &cv.Model,
		)
		if err != nil {
			return nil, fmt.Errorf("scan classified video: %w", err)
		}
		cv.Video.Status = Status(status)
		if published.Valid {
			if t, perr := time.Parse(time.RFC3339Nano, published.String); perr == nil {
				cv.Video.PublishedAt = t
			}
		}
		cv.Video.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		cv.Video.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		cv.Transcript.VideoID = cv.Video.VideoID
		cv.Transcript.Language = language.String
		cv.Transcript.AutoGenerated = auto != 0
		cv.Transcript.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetched)
		result = append(result, &cv)
	}
	return result, rows.Err()
}

// PutEmbedding caches an embedding vector keyed by (video_id, model).
func (s *Store) PutEmbedding(ctx context.Context, videoID, model string, vector []float64) error {
	if len(vector) == 0 {
		return errors.New("embedding vector is empty")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO embeddings (video_id, model, vector, created_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(video_id, model) DO NOTHING`,
		videoID,
		model,
		encodeVector(vector),
		timestamp(),
	)
	if err != nil {
		return fmt.Errorf("put embedding: %w", err)
	}
	return nil
}

// GetEmbedding returns a cached embedding, or ErrNotFound.
func (s *Store) GetEmbedding(ctx context.Context, videoID, model string) ([]float64, error) {
	var blob []byte
	err := s.db.QueryRowContext(
		ctx,
		`SELECT vector FROM embeddings WHERE video_id = ? AND model = ?`,
		videoID,
		model,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("embedding for %s/%s: %w", videoID, model, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding: %w", err)
	}
	return decodeVector(blob)
}

// LabelCount is one row of the category distribution report.
type LabelCount struct {
	Label string
	Count int
}

// StatusCount is one row of the per-status video distribution.
type StatusCount struct {
	Status Status
	Count  int
}

// StatusCounts reports how many videos sit in each pipeline state.
func (s *Store) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT status, COUNT(*) AS n FROM videos GROUP BY status ORDER BY n DESC, status`,
	)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var sc StatusCount
		var raw string
		if err := rows.Scan(&raw, &sc.Count); err != nil {
			return nil, err
		}
		sc.Status = Status(raw)
		counts = append(counts, sc)
	}
	return counts, rows.Err()
}

// CategoryCounts aggregates latest-classification labels across all videos.
func (s *Store) CategoryCounts(ctx context.Context) ([]LabelCount, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT c.label, COUNT(*) AS n
         FROM classifications c
         WHERE c.id = (SELECT MAX(c2.id) FROM classifications c2 WHERE c2.video_id = c.video_id)
         GROUP BY c.label
         ORDER BY n DESC, c.label`,
	)
	if err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	defer rows.Close()

	var counts []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, lc)
	}
	return counts, rows.Err()
}

// MonthLabelCount is one row of the per-month category distribution.
type MonthLabelCount struct {
	YearMonth string
	Label     string
	Count     int
}

// CategoryCountsByMonth aggregates latest-classification labels per YYYY-MM bucket.
func (s *Store) CategoryCountsByMonth(ctx context.Context) ([]MonthLabelCount, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT substr(v.published_at, 1, 7) AS ym, c.label, COUNT(*) AS n
         FROM classifications c
         JOIN videos v ON v.video_id = c.video_id
         WHERE v.published_at IS NOT NULL
           AND c.id = (SELECT MAX(c2.id) FROM classifications c2 WHERE c2.video_id = c.video_id)
         GROUP BY ym, c.label
         ORDER BY ym, c.label`,
	)
	if err != nil {
		return nil, fmt.Errorf("category counts by month: %w", err)
	}
	defer rows.Close()

	var counts []MonthLabelCount
	for rows.Next() {
		var mc MonthLabelCount
		if err := rows.Scan(&mc.YearMonth, &mc.Label, &mc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, mc)
	}
	return counts, rows.Err()
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// encodeVector stores float64s as little-endian bytes.
func encodeVector(vector []float64) []byte {
	buf := make([]byte, 8*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 8", len(blob))
	}
	vector := make([]float64, len(blob)/8)
	for i := range vector {
		vector[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return vector, nil
}
