package formatter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/medx/internal/models"
)

var episode = models.Episode{
	ID:          "4rOoJ6Egrf8K2IrywzwOMk",
	Name:        "Meditation: Coming Home to the Body",
	DurationMs:  905000,
	Description: "A guided body scan.",
	ReleaseDate: "2024-03-13",
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{59 * time.Second, "0:59"},
		{15*time.Minute + 5*time.Second, "15:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{1500 * time.Millisecond, "0:02"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatters(t *testing.T) {
	t.Run("EpisodeToText", func(t *testing.T) {
		output := string(EpisodeToText(episode))

		if !strings.Contains(output, "Meditation: Coming Home to the Body\n") {
			t.Errorf("text missing title, got: %s", output)
		}
		if !strings.Contains(output, "Duration: 15:05") {
			t.Errorf("text missing duration, got: %s", output)
		}
		if !strings.Contains(output, "https://open.spotify.com/embed/episode/4rOoJ6Egrf8K2IrywzwOMk") {
			t.Errorf("text missing embed URL, got: %s", output)
		}
	})

	t.Run("EpisodeToMarkdown", func(t *testing.T) {
		output := string(EpisodeToMarkdown(episode))

		if !strings.HasPrefix(output, "# Meditation: Coming Home to the Body\n") {
			t.Errorf("markdown missing heading, got: %s", output)
		}
		if !strings.Contains(output, "**Released**: 2024-03-13") {
			t.Errorf("markdown missing release date")
		}
		if !strings.Contains(output, "A guided body scan.") {
			t.Errorf("markdown missing description")
		}
		if !strings.Contains(output, "[Open player](https://open.spotify.com/embed/episode/4rOoJ6Egrf8K2IrywzwOMk)") {
			t.Errorf("markdown missing player link")
		}
	})

	t.Run("EpisodeToEmbedHTML", func(t *testing.T) {
		data, err := EpisodeToEmbedHTML(episode)
		if err != nil {
			t.Fatalf("EpisodeToEmbedHTML failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			`src="https://open.spotify.com/embed/episode/4rOoJ6Egrf8K2IrywzwOMk"`,
			`width="300"`,
			`height="380"`,
			`allow="encrypted-media"`,
		} {
			if !strings.Contains(output, want) {
				t.Errorf("embed missing %s, got: %s", want, output)
			}
		}
	})

	t.Run("EpisodeToHTMLPage escapes names", func(t *testing.T) {
		ep := episode
		ep.Name = "Meditation: <script>alert(1)</script>"

		data, err := EpisodeToHTMLPage(ep)
		if err != nil {
			t.Fatalf("EpisodeToHTMLPage failed: %v", err)
		}
		output := string(data)

		if strings.Contains(output, "<script>") {
			t.Errorf("page did not escape the episode name")
		}
		if !strings.Contains(output, "<iframe") {
			t.Errorf("page missing player")
		}
	})

	t.Run("NewEpisodeView", func(t *testing.T) {
		data, err := json.Marshal(NewEpisodeView(episode))
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded["embed_url"] != "https://open.spotify.com/embed/episode/4rOoJ6Egrf8K2IrywzwOMk" {
			t.Errorf("embed_url = %v", decoded["embed_url"])
		}
		if decoded["external_url"] != "https://open.spotify.com/episode/4rOoJ6Egrf8K2IrywzwOMk" {
			t.Errorf("external_url = %v", decoded["external_url"])
		}
		if decoded["duration_ms"] != float64(905000) {
			t.Errorf("duration_ms = %v", decoded["duration_ms"])
		}
		if decoded["duration"] != "15:05" {
			t.Errorf("duration = %v", decoded["duration"])
		}
	})
}

func TestWriteHTMLPage(t *testing.T) {
	t.Run("custom path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "player.html")

		got, err := WriteHTMLPage(episode, path)
		if err != nil {
			t.Fatalf("WriteHTMLPage failed: %v", err)
		}
		if got != path {
			t.Errorf("WriteHTMLPage() = %q, want %q", got, path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read page: %v", err)
		}
		if !strings.Contains(string(data), "encrypted-media") {
			t.Errorf("page missing player")
		}
	})

	t.Run("default path", func(t *testing.T) {
		t.Chdir(t.TempDir())

		got, err := WriteHTMLPage(episode, "")
		if err != nil {
			t.Fatalf("WriteHTMLPage failed: %v", err)
		}
		if got != "4rOoJ6Egrf8K2IrywzwOMk.html" {
			t.Errorf("WriteHTMLPage() = %q", got)
		}
	})

	t.Run("unwritable path", func(t *testing.T) {
		if _, err := WriteHTMLPage(episode, filepath.Join(t.TempDir(), "missing", "player.html")); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}
