package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/medx/internal/models"
	"github.com/desertthunder/medx/internal/shared"
	"github.com/desertthunder/medx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/medx-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	sess := r.newSession(nil)
	defer sess.Close()

	if token := cmd.String("token"); token != "" {
		sess.SetCredential(models.NewCredential(token))
	}
	sess.Start()

	opts := ui.Options{
		Opener:         r.opener,
		DefaultMinutes: r.config.Search.DefaultMinutes,
	}
	if r.config.ValidateCredentials() == nil {
		opts.Login = func(ctx context.Context) error {
			return r.doLogin(ctx, sess, false)
		}
	}

	return ui.Run(ctx, sess, opts)
}
