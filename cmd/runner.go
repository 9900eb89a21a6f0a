package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/medx/internal/services"
	"github.com/desertthunder/medx/internal/session"
	"github.com/desertthunder/medx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config         *shared.Config
	configPath     string
	logger         *log.Logger
	output         io.Writer
	opener         shared.Opener
	catalogFactory services.CatalogFactory
	authTimeout    time.Duration
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config         *shared.Config
	ConfigPath     string
	HTTPClient     *http.Client // transport for the default Spotify client
	Logger         *log.Logger
	Output         io.Writer
	Opener         shared.Opener
	CatalogFactory services.CatalogFactory // overrides the Spotify client built from Config
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Opener == nil {
		opts.Opener = shared.OpenBrowser
	}
	if opts.CatalogFactory == nil {
		clientOpts := services.ClientOptionsFromConfig(opts.Config)
		clientOpts.HTTPClient = opts.HTTPClient
		opts.CatalogFactory = services.NewCatalogFactory(clientOpts)
	}

	return &Runner{
		config:         opts.Config,
		configPath:     opts.ConfigPath,
		logger:         opts.Logger,
		output:         opts.Output,
		opener:         opts.Opener,
		catalogFactory: opts.CatalogFactory,
	}
}

// SetLogger replaces the logger used by the runner and every session it creates afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// newSession builds a session from the runner's config. A nil opener keeps the runner's.
func (r *Runner) newSession(opener shared.Opener) *session.Session {
	opts := session.OptionsFromConfig(r.config, r.logger)
	opts.CatalogFactory = r.catalogFactory
	opts.Opener = r.opener
	if opener != nil {
		opts.Opener = opener
	}
	return session.New(opts)
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, findCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// writeJSON marshals data, indented when pretty is set, and writes it followed by a newline.
func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return r.writeBytes(output)
}

// writeBytes writes pre-rendered output followed by a newline.
func (r *Runner) writeBytes(output []byte) error {
	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
