// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// tokenFlag accepts an access token obtained earlier, for example from `medx auth login --print-token`.
func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "token",
		Aliases: []string{"t"},
		Usage:   "Spotify access token (skips the browser login)",
		Sources: cli.EnvVars("SPOTIFY_ACCESS_TOKEN"),
	}
}

// setupCommand handles setup operations for configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write the example configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "check",
				Usage:  "Validate the loaded configuration",
				Action: r.SetupCheck,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:  "url",
				Usage: "Print the Spotify authorization URL without opening it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "location",
						Usage: "URL the app is served from; picks the hosted or local redirect",
					},
				},
				Action: r.AuthURL,
			},
			{
				Name:  "login",
				Usage: "Log in through the browser and capture the access token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "print-token",
						Usage: "Print the access token so it can be reused with --token",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Check whether an access token is still valid",
				Flags:  []cli.Flag{tokenFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// findCommand runs one meditation search.
func findCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "find",
		Aliases: []string{"f"},
		Usage:   "Find a meditation close to the requested length",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "minutes",
				Aliases: []string{"m"},
				Usage:   "Target length in minutes (5-30)",
				Value:   r.config.Search.DefaultMinutes,
			},
			tokenFlag(),
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: text, markdown, html, or json",
				Value: "text",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the embedded player in the browser",
			},
			&cli.StringFlag{
				Name:  "save",
				Usage: "Write an HTML page with the embedded player to this path",
			},
		},
		Action: r.Find,
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive meditation picker",
		Flags:   []cli.Flag{tokenFlag()},
		Action:  r.TUI,
	}
}
