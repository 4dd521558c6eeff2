package internal

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseSRT(t *testing.T) {
	content := `1
00:00:00,000 --> 00:00:02,000
welcome back to the show

2
00:00:02,000 --> 00:00:05,000
tonight we talk about the economy
and what comes next

3
00:00:05,000 --> 00:00:07,000

`
	got := parseSRT(content)
	want := []string{
		"welcome back to the show",
		"tonight we talk about the economy",
		"and what comes next",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseSRT = %q, want %q", got, want)
	}
}

func TestRemoveDuplicates(t *testing.T) {
	lines := []string{
		"welcome back",
		"welcome back",
		"welcome back to the show",
		"a different line",
	}
	got := removeDuplicates(lines)
	// Consecutive repeats and overlapping roll-up captions collapse.
	want := []string{"welcome back", "a different line"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("removeDuplicates = %q, want %q", got, want)
	}
}

func TestProcessSrtTranscriptCleansAndRemovesFile(t *testing.T) {
	yt := NewYouTube(t.TempDir(), false)
	srtPath := filepath.Join(yt.cacheDir, "vid1.en.srt")
	content := "1\n00:00:00,000 --> 00:00:02,000\nhello there\n\n2\n00:00:02,000 --> 00:00:04,000\nhello there\n"
	if err := os.WriteFile(srtPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	text, err := yt.processSrtTranscript(srtPath)
	if err != nil {
		t.Fatalf("processSrtTranscript: %v", err)
	}
	if text != "hello there" {
		t.Errorf("text = %q, want %q", text, "hello there")
	}
	if FileExists(srtPath) {
		t.Error("SRT file not removed from cache")
	}
}

func TestFindSubtitleFile(t *testing.T) {
	yt := NewYouTube(t.TempDir(), false)
	for _, name := range []string{"vid1.en.srt", "vid2.info.json", "other.en.srt"} {
		if err := os.WriteFile(filepath.Join(yt.cacheDir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
	}

	if got := yt.findSubtitleFile("vid1"); got != filepath.Join(yt.cacheDir, "vid1.en.srt") {
		t.Errorf("findSubtitleFile(vid1) = %q", got)
	}
	if got := yt.findSubtitleFile("vid2"); got != "" {
		t.Errorf("findSubtitleFile(vid2) = %q, want no match", got)
	}
}
