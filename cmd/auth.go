package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/medx/internal/models"
	"github.com/desertthunder/medx/internal/server"
	"github.com/desertthunder/medx/internal/services"
	"github.com/desertthunder/medx/internal/session"
	"github.com/desertthunder/medx/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthURL prints the authorization URL for the configured (or given) location without opening it.
func (r *Runner) AuthURL(ctx context.Context, cmd *cli.Command) error {
	location := cmd.String("location")
	if location == "" {
		location = r.config.Server.Location
	}

	sess := r.newSession(func(string) error { return nil })
	defer sess.Close()

	authURL, err := sess.InitiateLogin(location)
	if err != nil {
		return err
	}

	return r.writePlain("%s\n", authURL)
}

// AuthLogin runs the implicit grant in the browser and reports the authorized user.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	sess := r.newSession(nil)
	defer sess.Close()

	if err := r.doLogin(ctx, sess, true); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writeUser(sess.User())

	cred := sess.Credential()
	if cmd.Bool("print-token") {
		if cred.ExpiresIn > 0 {
			r.writePlain("\nAccess token (valid until %s):\n", cred.ObtainedAt.Add(cred.ExpiresIn).Format("15:04:05"))
		} else {
			r.writePlain("\nAccess token:\n")
		}
		r.writePlain("%s\n", cred.Token)
		r.writePlain("\nYou can now use: medx find --token <token>\n")
	}
	return nil
}

// AuthStatus validates an access token against the profile endpoint.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	token := cmd.String("token")
	if token == "" {
		return fmt.Errorf("%w: pass --token or set SPOTIFY_ACCESS_TOKEN", shared.ErrMissingArgument)
	}

	sess := r.newSession(nil)
	defer sess.Close()
	sess.SetCredential(models.NewCredential(token))

	r.logger.Info("checking auth status", "token", shared.Redact(token))

	if !sess.ValidateCredential(ctx) {
		r.writePlain("Authentication: ✗ Not authenticated\n")
		return fmt.Errorf("%w: token rejected", shared.ErrAuthExpired)
	}

	r.writePlain("Authentication: ✓ Authenticated\n")
	r.writeUser(sess.User())
	return nil
}

func (r *Runner) writeUser(user *services.SpotifyUser) {
	if user == nil {
		return
	}
	name := user.DisplayName
	if name == "" {
		name = user.ID
	}
	r.writePlain("User: %s\n", name)
	if user.Product != "" {
		r.writePlain("Plan: %s\n", user.Product)
	}
}

// doLogin starts a temporary callback server, opens the authorization page, and stores the token
// captured from the redirect in sess. The credential is validated before doLogin returns.
//
// When interactive is false nothing is written to the output, so the TUI can drive the same flow.
func (r *Runner) doLogin(ctx context.Context, sess *session.Session, interactive bool) error {
	handler := server.NewImplicitHandler(r.logger)
	srv := server.NewCallbackServer(r.config.Server.Addr(), server.NewCallbackRouter(handler, r.logger), r.logger)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer srv.Shutdown()

	say := func(format string, args ...any) {
		if interactive {
			r.writePlain(format, args...)
		}
	}

	say("→ Opening browser for Spotify authorization...\n")
	authURL, err := sess.InitiateLogin(r.config.Server.Location)
	if authURL == "" {
		return err
	}
	if err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.logger.Info("authorization URL", "url", authURL)
		say("\n⚠ Could not open browser automatically.\n")
		say("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	say("→ Waiting for authorization (2 minute timeout)...\n")

	loc, err := server.AwaitRedirect(ctx, handler, srv, r.loginTimeout())
	if err != nil {
		return err
	}

	if !sess.ConsumeRedirectFragment(loc) {
		return fmt.Errorf("%w: redirect did not carry a usable access token", shared.ErrAuthFailed)
	}

	if !sess.ValidateCredential(ctx) {
		return fmt.Errorf("%w: Spotify rejected the new access token", shared.ErrAuthFailed)
	}
	return nil
}

func (r *Runner) loginTimeout() time.Duration {
	if r.authTimeout > 0 {
		return r.authTimeout
	}
	return server.DefaultLoginTimeout
}
