package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/medx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the embedded example configuration to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file already exists", "path", configPath)
		r.writePlain("Config already exists at %s\n", configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.logger.Info("config file created", "path", configPath)
		r.writePlain("✓ Config written to %s\n", configPath)
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return err
	}
	config.ApplyEnv()

	r.writePlainln("Next steps:")
	if err := config.ValidateCredentials(); err != nil {
		r.writePlain("1. Register an app at https://developer.spotify.com/dashboard and add %s as a redirect URI\n",
			config.Credentials.Spotify.LocalRedirectURI)
		r.writePlain("2. Set credentials.spotify.client_id in %s (or export %s)\n", configPath, shared.ClientIDEnv)
		r.writePlain("3. Run 'medx find --minutes 15'\n")
		return nil
	}

	r.writePlain("1. Run 'medx auth login' to check the login flow\n")
	r.writePlain("2. Run 'medx find --minutes 15' or 'medx tui'\n")
	return nil
}

// SetupCheck validates the loaded configuration and reports what is missing.
func (r *Runner) SetupCheck(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	r.writePlainHeader("Configuration")
	if r.configPath != "" {
		r.writePlain("File: %s\n", r.configPath)
	}
	r.writePlain("Callback server: %s\n", r.config.Server.Addr())
	r.writePlain("Search: %q, prefix %q, ±%v, up to %d attempts\n",
		r.config.Search.Query, r.config.Search.NamePrefix, r.config.Search.Tolerance(), r.config.Search.MaxAttempts)

	if err := r.config.ValidateCredentials(); err != nil {
		r.writePlain("Client ID: ✗ not set\n")
		return fmt.Errorf("configuration incomplete: %w", err)
	}
	r.writePlain("Client ID: ✓ %s\n", shared.Redact(r.config.Credentials.Spotify.ClientID))
	return nil
}
