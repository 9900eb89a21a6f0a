package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/medx/internal/formatter"
	"github.com/desertthunder/medx/internal/models"
	"github.com/desertthunder/medx/internal/shared"
	"github.com/desertthunder/medx/internal/tasks"
	"github.com/urfave/cli/v3"
)

const (
	formatText     = "text"
	formatMarkdown = "markdown"
	formatHTML     = "html"
	formatJSON     = "json"
)

func parseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", formatText:
		return formatText, nil
	case "md", formatMarkdown:
		return formatMarkdown, nil
	case formatHTML, formatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (use text, markdown, html, or json)", shared.ErrInvalidArgument, s)
	}
}

// Find searches for a meditation close to --minutes and prints it in the requested format.
//
// Without --token the browser login runs first. Progress is printed only for text output so that
// the other formats stay machine-readable.
func (r *Runner) Find(ctx context.Context, cmd *cli.Command) error {
	minutes := cmd.Int("minutes")
	if err := models.ValidateMinutes(minutes); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	format, err := parseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	chatty := format == formatText

	sess := r.newSession(nil)
	defer sess.Close()

	if token := cmd.String("token"); token != "" {
		sess.SetCredential(models.NewCredential(token))
	} else {
		if err := r.doLogin(ctx, sess, chatty); err != nil {
			return err
		}
	}

	if chatty {
		r.writePlain("Finding a %d minute meditation...\n", minutes)
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for update := range progressCh {
			if !chatty {
				r.logger.Debug(update.Message, "phase", update.Phase)
				continue
			}
			switch update.Phase {
			case tasks.ValidateSession, tasks.ProbeCatalog:
				r.writePlain("→ %s\n", update.Message)
			case tasks.FetchBatch, tasks.FilterEpisodes:
				r.writePlain("   %s\n", update.Message)
			case tasks.SelectEpisode:
				r.writePlain("✓ %s\n", update.Message)
			}
		}
	}()

	ep, err := sess.FindMeditation(ctx, minutes, progressCh)
	close(progressCh)
	<-drained

	if err != nil {
		if chatty {
			r.writePlainln("✗ %s", sess.Message())
		}
		return err
	}

	if err := r.writeEpisode(*ep, format, cmd.Bool("pretty")); err != nil {
		return err
	}

	if path := cmd.String("save"); path != "" {
		saved, err := formatter.WriteHTMLPage(*ep, path)
		if err != nil {
			return err
		}
		r.logger.Info("player page saved", "file", saved)
		if chatty {
			r.writePlain("Saved player page to %s\n", saved)
		}
	}

	if cmd.Bool("open") {
		if err := r.opener(ep.EmbedURL()); err != nil {
			r.logger.Warn("failed to open player", "error", err)
			if chatty {
				r.writePlain("⚠ Could not open the player. Open %s in your browser.\n", ep.EmbedURL())
			}
		}
	}

	return nil
}

func (r *Runner) writeEpisode(ep models.Episode, format string, pretty bool) error {
	switch format {
	case formatJSON:
		return r.writeJSON(formatter.NewEpisodeView(ep), pretty)
	case formatHTML:
		data, err := formatter.EpisodeToEmbedHTML(ep)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	case formatMarkdown:
		return r.writePlain("%s", formatter.EpisodeToMarkdown(ep))
	default:
		r.writePlain("\n")
		r.writePlainHeader("Your meditation")
		return r.writePlain("%s", formatter.EpisodeToText(ep))
	}
}
