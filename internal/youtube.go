package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// Platform enumerates a channel's catalog and fetches captions. The pipeline
// treats it as an external collaborator with a fixed interface.
type Platform interface {
	ChannelVideos(ctx context.Context, channelURL string, maxVideos int) ([]ChannelVideo, error)
	// FetchTranscript returns (nil, nil) when the platform has no captions.
	FetchTranscript(ctx context.Context, video ChannelVideo) (*TranscriptResult, error)
}

// YouTube implements Platform using yt-dlp.
type YouTube struct {
	cacheDir string
	verbose  bool
}

// NewYouTube creates a new YouTube collaborator.
func NewYouTube(cacheDir string, verbose bool) *YouTube {
	return &YouTube{cacheDir: cacheDir, verbose: verbose}
}

// channelEntry is the slice of yt-dlp playlist JSON we care about.
type channelEntry struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	URL        string         `json:"url"`
	WebpageURL string         `json:"webpage_url"`
	UploadDate string         `json:"upload_date"`
	Entries    []channelEntry `json:"entries"`
}

// ChannelVideos lists a channel's videos using a flat playlist dump.
func (yt *YouTube) ChannelVideos(ctx context.Context, channelURL string, maxVideos int) ([]ChannelVideo, error) {
	// Channel handles need the /videos tab to avoid mixing in shorts/live sections.
	if strings.Contains(channelURL, "youtube.com/@") && !strings.Contains(channelURL, "/videos") {
		channelURL = strings.TrimRight(channelURL, "/") + "/videos"
	}

	if yt.verbose {
		fmt.Printf("Listing videos for %s\n", channelURL)
	}

	dl := ytdlp.New().
		DumpSingleJSON().
		FlatPlaylist().
		SkipDownload().
		IgnoreErrors()
	if maxVideos > 0 {
		dl = dl.PlaylistEnd(maxVideos)
	}

	result, err := dl.Run(ctx, channelURL)
	if err != nil {
		if yt.verbose {
			fmt.Printf("Channel listing error: %v\nStderr: %s\n", err, result.Stderr)
		}
		return nil, fmt.Errorf("listing channel videos: %w", err)
	}

	var root channelEntry
	if err := json.Unmarshal([]byte(result.Stdout), &root); err != nil {
		return nil, fmt.Errorf("parsing channel listing: %w", err)
	}

	var videos []ChannelVideo
	collectEntries(root.Entries, &videos)
	if maxVideos > 0 && len(videos) > maxVideos {
		videos = videos[:maxVideos]
	}
	return videos, nil
}

// collectEntries flattens the possibly nested entries structure (channels with
// Videos/Live/Shorts sections nest one level deeper).
func collectEntries(entries []channelEntry, videos *[]ChannelVideo) {
	for _, entry := range entries {
		if len(entry.Entries) > 0 {
			collectEntries(entry.Entries, videos)
			continue
		}
		if entry.ID == "" {
			continue
		}
		url := entry.WebpageURL
		if url == "" {
			url = entry.URL
		}
		if url == "" {
			url = "https://www.youtube.com/watch?v=" + entry.ID
		}
		*videos = append(*videos, ChannelVideo{
			VideoID:     entry.ID,
			Title:       entry.Title,
			URL:         url,
			PublishedAt: parseUploadDate(entry.UploadDate),
		})
	}
}

// parseUploadDate converts yt-dlp's YYYYMMDD upload_date to a time.Time.
func parseUploadDate(s string) time.Time {
	t, err := time.Parse("20060102", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

// FetchTranscript downloads captions for a video and cleans them into plain
// text. Manual subtitles are tried first, auto-generated captions second, so
// the AutoGenerated flag reflects which source produced the text. (nil, nil)
// means the platform has neither.
func (yt *YouTube) FetchTranscript(ctx context.Context, video ChannelVideo) (*TranscriptResult, error) {
	if err := EnsureDirs(yt.cacheDir); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	text, err := yt.downloadSubtitles(ctx, video, false)
	if err != nil {
		return nil, err
	}
	auto := false
	if text == "" {
		text, err = yt.downloadSubtitles(ctx, video, true)
		if err != nil {
			return nil, err
		}
		auto = true
	}
	if text == "" {
		if yt.verbose {
			fmt.Printf("No captions available for %s\n", video.VideoID)
		}
		return nil, nil
	}

	return &TranscriptResult{
		Text:          text,
		Language:      "en",
		AutoGenerated: auto,
	}, nil
}

// downloadSubtitles fetches one caption source (manual or auto-generated) and
// returns its cleaned text, or "" when the source does not exist.
func (yt *YouTube) downloadSubtitles(ctx context.Context, video ChannelVideo, auto bool) (string, error) {
	dl := ytdlp.New().
		SubLangs("en").
		ConvertSubs("srt").
		SkipDownload().
		Output(filepath.Join(yt.cacheDir, "%(id)s"))
	if auto {
		dl = dl.WriteAutoSubs()
	} else {
		dl = dl.WriteSubs()
	}

	result, err := dl.Run(ctx, video.URL)
	if err != nil {
		if yt.verbose {
			fmt.Printf("Subtitle download error for %s: %v\nStderr: %s\n", video.VideoID, err, result.Stderr)
		}
		return "", fmt.Errorf("downloading subtitles: %w", err)
	}

	srtPath := yt.findSubtitleFile(video.VideoID)
	if srtPath == "" {
		return "", nil
	}
	return yt.processSrtTranscript(srtPath)
}

// findSubtitleFile locates an SRT file downloaded for a video.
func (yt *YouTube) findSubtitleFile(videoID string) string {
	entries, err := os.ReadDir(yt.cacheDir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, videoID) && strings.HasSuffix(name, ".srt") {
			return filepath.Join(yt.cacheDir, name)
		}
	}
	return ""
}

// processSrtTranscript converts SRT to clean plain text and removes the cache file.
func (yt *YouTube) processSrtTranscript(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading SRT file: %w", err)
	}

	lines := parseSRT(string(content))
	deduplicated := removeDuplicates(lines)
	text := strings.TrimSpace(strings.Join(deduplicated, "\n"))

	if err := os.Remove(filePath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to remove SRT file from cache: %v\n", err)
	}

	return text, nil
}

// parseSRT extracts text content from SRT format
func parseSRT(content string) []string {
	var lines []string

	for block := range strings.SplitSeq(content, "\n\n") {
		blockLines := strings.Split(block, "\n")
		if len(blockLines) >= 3 {
			// Skip sequence number and timestamp, get text lines
			for i := 2; i < len(blockLines); i++ {
				if strings.TrimSpace(blockLines[i]) != "" {
					lines = append(lines, strings.TrimSpace(blockLines[i]))
				}
			}
		}
	}

	return lines
}

// removeDuplicates eliminates consecutive repeated lines
func removeDuplicates(lines []string) []string {
	result := make([]string, 0, len(lines))
	prevLine := ""

	for _, line := range lines {
		isDuplicate := prevLine != "" && (strings.Contains(line, prevLine) || strings.Contains(prevLine, line))
		if !isDuplicate {
			result = append(result, line)
		}
		prevLine = line
	}

	return result
}

// EnsureYtdlp installs yt-dlp if it is not already available.
func EnsureYtdlp(ctx context.Context) {
	ytdlp.MustInstall(ctx, nil)
}
