// package formatter renders a selected meditation as plain text, Markdown, JSON, or an embeddable player page
package formatter

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/medx/internal/models"
)

const (
	EmbedWidth  = 300
	EmbedHeight = 380
)

// FormatDuration renders d as m:ss, or h:mm:ss from one hour up. Negative durations render as 0:00.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// EpisodeToText renders an episode for terminal output.
func EpisodeToText(ep models.Episode) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Meditation: %s\n", strings.TrimSpace(strings.TrimPrefix(ep.Name, "Meditation:"))))
	buf.WriteString(fmt.Sprintf("Duration: %s\n", FormatDuration(ep.Duration())))
	if ep.ReleaseDate != "" {
		buf.WriteString(fmt.Sprintf("Released: %s\n", ep.ReleaseDate))
	}
	buf.WriteString(fmt.Sprintf("Player: %s\n", ep.EmbedURL()))
	buf.WriteString(fmt.Sprintf("Listen: %s\n", ep.ExternalURL()))

	return buf.Bytes()
}

// EpisodeToMarkdown renders an episode as a short Markdown section.
func EpisodeToMarkdown(ep models.Episode) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", ep.Name))
	buf.WriteString(fmt.Sprintf("**Duration**: %s\n", FormatDuration(ep.Duration())))
	if ep.ReleaseDate != "" {
		buf.WriteString(fmt.Sprintf("**Released**: %s\n", ep.ReleaseDate))
	}
	buf.WriteString("\n")

	if desc := strings.TrimSpace(ep.Description); desc != "" {
		buf.WriteString(desc + "\n\n")
	}

	buf.WriteString(fmt.Sprintf("[Open player](%s)\n", ep.EmbedURL()))

	return buf.Bytes()
}

// EpisodeView is the JSON shape of a selected episode: its catalog fields plus the derived
// duration and URLs.
type EpisodeView struct {
	models.Episode
	Duration    string `json:"duration"`
	EmbedURL    string `json:"embed_url"`
	ExternalURL string `json:"external_url"`
}

// NewEpisodeView fills in the derived fields for ep.
func NewEpisodeView(ep models.Episode) EpisodeView {
	return EpisodeView{
		Episode:     ep,
		Duration:    FormatDuration(ep.Duration()),
		EmbedURL:    ep.EmbedURL(),
		ExternalURL: ep.ExternalURL(),
	}
}

var embedTemplate = template.Must(template.New("embed").Parse(
	`<iframe src="{{.URL}}" width="{{.Width}}" height="{{.Height}}" frameborder="0" allowtransparency="true" allow="encrypted-media"></iframe>`,
))

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Name}}</title>
</head>
<body>
    <h1>{{.Name}}</h1>
    <p>{{.Duration}}</p>
    {{.Player}}
</body>
</html>
`))

// EpisodeToEmbedHTML renders the player iframe for an episode.
func EpisodeToEmbedHTML(ep models.Episode) ([]byte, error) {
	var buf bytes.Buffer
	err := embedTemplate.Execute(&buf, map[string]any{
		"URL":    ep.EmbedURL(),
		"Width":  EmbedWidth,
		"Height": EmbedHeight,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render embed: %w", err)
	}
	return buf.Bytes(), nil
}

// EpisodeToHTMLPage renders a standalone page hosting the player.
func EpisodeToHTMLPage(ep models.Episode) ([]byte, error) {
	player, err := EpisodeToEmbedHTML(ep)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, map[string]any{
		"Name":     ep.Name,
		"Duration": FormatDuration(ep.Duration()),
		"Player":   template.HTML(player),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteHTMLPage writes the player page for ep to path.
//
// Defaults to {episode.ID}.html as the filename.
func WriteHTMLPage(ep models.Episode, path string) (string, error) {
	if path == "" {
		path = ep.ID + ".html"
	}

	data, err := EpisodeToHTMLPage(ep)
	if err != nil {
		return "", fmt.Errorf("failed to generate page: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write page: %w", err)
	}

	return path, nil
}
