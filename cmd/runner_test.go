package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/medx/internal/models"
	"github.com/desertthunder/medx/internal/services"
	"github.com/desertthunder/medx/internal/session"
	"github.com/desertthunder/medx/internal/shared"
	tu "github.com/desertthunder/medx/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			catalog := &tu.StubCatalog{}

			runner := NewRunner(RunnerOpts{
				Config:         config,
				Logger:         logger,
				Output:         output,
				Opener:         func(string) error { return nil },
				CatalogFactory: func(models.Credential) services.Catalog { return catalog },
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if got := runner.catalogFactory(models.NewCredential("tok")); got != catalog {
				t.Error("expected catalog factory to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil opener and factory uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.opener == nil {
				t.Error("expected opener to default to the system browser")
			}
			if runner.catalogFactory == nil {
				t.Fatal("expected a Spotify catalog factory")
			}
			if _, ok := runner.catalogFactory(models.NewCredential("tok")).(*services.SpotifyClient); !ok {
				t.Error("expected the default factory to build Spotify clients")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("SetLogger", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		original := runner.logger

		runner.SetLogger(nil)
		if runner.logger != original {
			t.Error("expected nil logger to be ignored")
		}

		replacement := shared.NewLogger(&bytes.Buffer{})
		runner.SetLogger(replacement)
		if runner.logger != replacement {
			t.Error("expected logger to be replaced")
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, true)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("writePlainln wraps in newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlainln("Next steps:"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "\nNext steps:\n" {
				t.Errorf("unexpected output %q", result)
			}
		})

		t.Run("writePlainHeader", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			runner.writePlainHeader("Your meditation")
			if lines := strings.Split(strings.TrimSpace(output.String()), "\n"); len(lines) != 3 || lines[1] != "Your meditation" {
				t.Errorf("unexpected header %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := make([]string, 0, len(commands))
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names = append(names, cmd.Name)
		}

		expected := []string{"setup", "auth", "find", "tui"}
		if strings.Join(names, ",") != strings.Join(expected, ",") {
			t.Errorf("expected commands %v, got %v", expected, names)
		}
	})

	t.Run("parseFormat", func(t *testing.T) {
		tests := []struct {
			in      string
			want    string
			wantErr bool
		}{
			{"", formatText, false},
			{"text", formatText, false},
			{"MD", formatMarkdown, false},
			{"markdown", formatMarkdown, false},
			{"html", formatHTML, false},
			{" json ", formatJSON, false},
			{"yaml", "", true},
		}

		for _, tt := range tests {
			got, err := parseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("parseFormat(%q): expected ErrInvalidArgument, got %v", tt.in, err)
				}
				continue
			}
			if err != nil || got != tt.want {
				t.Errorf("parseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		}
	})
}

type fixture struct {
	runner  *Runner
	out     *bytes.Buffer
	catalog *tu.StubCatalog
	config  *shared.Config

	mu     sync.Mutex
	opened []string
}

func newFixture(t *testing.T, catalog *tu.StubCatalog) *fixture {
	t.Helper()

	config := shared.DefaultConfig()
	config.Credentials.Spotify.ClientID = "test-client"

	f := &fixture{out: &bytes.Buffer{}, catalog: catalog, config: config}
	f.runner = NewRunner(RunnerOpts{
		Config: config,
		Logger: shared.NewLogger(&bytes.Buffer{}),
		Output: f.out,
		Opener: func(u string) error {
			f.mu.Lock()
			f.opened = append(f.opened, u)
			f.mu.Unlock()
			return nil
		},
		CatalogFactory: func(models.Credential) services.Catalog { return catalog },
	})
	return f
}

func (f *fixture) run(args ...string) error {
	app := &cli.Command{Name: "medx", Commands: f.runner.register()}
	return app.Run(context.Background(), append([]string{"medx"}, args...))
}

func (f *fixture) openedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

func meditationCatalog() *tu.StubCatalog {
	return &tu.StubCatalog{
		Total: 2,
		Episodes: []models.Episode{
			{ID: "talk1", Name: "Talk: On Presence", DurationMs: 600000},
			{ID: "m10", Name: "Meditation: Resting in Awareness", DurationMs: 610000, ReleaseDate: "2024-03-01"},
		},
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestFind(t *testing.T) {
	t.Setenv("SPOTIFY_ACCESS_TOKEN", "")

	t.Run("text output with progress", func(t *testing.T) {
		f := newFixture(t, meditationCatalog())

		require.NoError(t, f.run("find", "--minutes", "10", "--token", "tok"))

		out := f.out.String()
		assert.Contains(t, out, "Finding a 10 minute meditation...")
		assert.Contains(t, out, "→ Checking your Spotify session...")
		assert.Contains(t, out, "Found 2 total episodes")
		assert.Contains(t, out, "Your meditation")
		assert.Contains(t, out, "Meditation: Resting in Awareness")
		assert.Contains(t, out, "https://open.spotify.com/embed/episode/m10")
		assert.NotContains(t, out, "talk1")
		assert.Empty(t, f.openedURLs())
	})

	t.Run("json output stays machine-readable", func(t *testing.T) {
		f := newFixture(t, meditationCatalog())

		require.NoError(t, f.run("find", "-m", "10", "--token", "tok", "--format", "json"))

		var got map[string]any
		require.NoError(t, json.Unmarshal(f.out.Bytes(), &got))
		assert.Equal(t, "m10", got["id"])
		assert.Equal(t, "https://open.spotify.com/embed/episode/m10", got["embed_url"])
		assert.Equal(t, "10:10", got["duration"])
		assert.True(t, bytes.HasSuffix(f.out.Bytes(), []byte("}\n")), "compact JSON ends in one newline")
	})

	t.Run("pretty json output is indented", func(t *testing.T) {
		f := newFixture(t, meditationCatalog())

		require.NoError(t, f.run("find", "-m", "10", "--token", "tok", "--format", "json", "--pretty"))
		assert.Contains(t, f.out.String(), "\n  \"id\": \"m10\"")
	})

	t.Run("html output renders the player iframe", func(t *testing.T) {
		f := newFixture(t, meditationCatalog())

		require.NoError(t, f.run("find", "-m", "10", "--token", "tok", "--format", "html"))

		out := f.out.String()
		assert.True(t, strings.HasPrefix(out, "<iframe"))
		assert.Contains(t, out, `src="https://open.spotify.com/embed/episode/m10"`)
		assert.Contains(t, out, `allow="encrypted-media"`)
	})

	t.Run("markdown output", func(t *testing.T) {
		f := newFixture(t, meditationCatalog())

		require.NoError(t, f.run("find", "-m", "10", "--token", "tok", "--format", "markdown"))
		assert.True(t, strings.HasPrefix(f.out.String(), "# Meditation: Resting in Awareness"))
	})

	t.Run("open and save", func(t *testing.T) {
		f := newFixture(t, meditationCatalog())
		path := filepath.Join(t.TempDir(), "player.html")

		require.NoError(t, f.run("find", "-m", "10", "--token", "tok", "--open", "--save", path))

		assert.Equal(t, []string{"https://open.spotify.com/embed/episode/m10"}, f.openedURLs())
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "Resting in Awareness")
		assert.Contains(t, f.out.String(), "Saved player page to "+path)
	})

	t.Run("minutes out of range never reach the catalog", func(t *testing.T) {
		catalog := meditationCatalog()
		f := newFixture(t, catalog)

		err := f.run("find", "-m", "45", "--token", "tok")
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		assert.Zero(t, catalog.UserCalls())
		assert.Empty(t, catalog.Searches())
	})

	t.Run("unknown format", func(t *testing.T) {
		f := newFixture(t, meditationCatalog())

		err := f.run("find", "-m", "10", "--token", "tok", "--format", "yaml")
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("no match prints the user message", func(t *testing.T) {
		catalog := &tu.StubCatalog{
			Total:    1,
			Episodes: []models.Episode{{ID: "m25", Name: "Meditation: Long Sit", DurationMs: 1500000}},
		}
		f := newFixture(t, catalog)
		f.config.Search.MaxAttempts = 2

		err := f.run("find", "-m", "10", "--token", "tok")
		assert.ErrorIs(t, err, shared.ErrNoMatchFound)
		assert.Contains(t, f.out.String(), "✗ No meditations found close to 10 minutes.")
	})

	t.Run("empty catalog", func(t *testing.T) {
		f := newFixture(t, &tu.StubCatalog{})

		err := f.run("find", "-m", "10", "--token", "tok")
		assert.ErrorIs(t, err, shared.ErrNoCatalogAccess)
		assert.Contains(t, f.out.String(), session.MessageNoCatalogAccess)
	})

	t.Run("rejected token", func(t *testing.T) {
		catalog := meditationCatalog()
		catalog.UserErr = &services.APIError{StatusCode: http.StatusUnauthorized}
		f := newFixture(t, catalog)

		err := f.run("find", "-m", "10", "--token", "stale", "--format", "json")
		assert.ErrorIs(t, err, shared.ErrAuthExpired)
		assert.Empty(t, f.out.String())
		assert.Empty(t, catalog.Searches())
	})
}

func TestAuth(t *testing.T) {
	t.Setenv("SPOTIFY_ACCESS_TOKEN", "")

	t.Run("url prints without opening", func(t *testing.T) {
		f := newFixture(t, &tu.StubCatalog{})

		require.NoError(t, f.run("auth", "url"))

		u, err := url.Parse(strings.TrimSpace(f.out.String()))
		require.NoError(t, err)
		q := u.Query()
		assert.Equal(t, "test-client", q.Get("client_id"))
		assert.Equal(t, "token", q.Get("response_type"))
		assert.Equal(t, "http://localhost:3000/callback", q.Get("redirect_uri"))
		assert.NotEmpty(t, q.Get("state"))
		assert.Empty(t, f.openedURLs())
	})

	t.Run("url for the hosted location", func(t *testing.T) {
		f := newFixture(t, &tu.StubCatalog{})

		require.NoError(t, f.run("auth", "url", "--location", "https://seanstews.github.io/Tara-Brach-Meditation-App/"))

		u, err := url.Parse(strings.TrimSpace(f.out.String()))
		require.NoError(t, err)
		assert.Equal(t, "https://seanstews.github.io/Tara-Brach-Meditation-App", u.Query().Get("redirect_uri"))
	})

	t.Run("url without client id", func(t *testing.T) {
		f := newFixture(t, &tu.StubCatalog{})
		f.config.Credentials.Spotify.ClientID = ""

		err := f.run("auth", "url")
		assert.ErrorIs(t, err, shared.ErrMissingCredentials)
	})

	t.Run("status with a valid token", func(t *testing.T) {
		catalog := &tu.StubCatalog{}
		f := newFixture(t, catalog)

		require.NoError(t, f.run("auth", "status", "--token", "tok"))
		assert.Contains(t, f.out.String(), "Authentication: ✓ Authenticated")
		assert.Contains(t, f.out.String(), "User: stub")
		assert.Equal(t, 1, catalog.UserCalls())
	})

	t.Run("status with a rejected token", func(t *testing.T) {
		catalog := &tu.StubCatalog{UserErr: &services.APIError{StatusCode: http.StatusUnauthorized}}
		f := newFixture(t, catalog)

		err := f.run("auth", "status", "--token", "tok")
		assert.ErrorIs(t, err, shared.ErrAuthExpired)
		assert.Contains(t, f.out.String(), "✗ Not authenticated")
	})

	t.Run("status without a token", func(t *testing.T) {
		f := newFixture(t, &tu.StubCatalog{})

		err := f.run("auth", "status")
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
	})

	t.Run("login captures the redirect fragment", func(t *testing.T) {
		catalog := &tu.StubCatalog{}
		f := newFixture(t, catalog)
		port := freePort(t)
		f.config.Server.Port = port

		posted := make(chan int, 1)
		f.runner.opener = func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			loc := fmt.Sprintf("http://127.0.0.1:%d/callback#access_token=tok123&token_type=Bearer&expires_in=3600&state=%s",
				port, u.Query().Get("state"))
			go func() {
				resp, err := http.PostForm(fmt.Sprintf("http://127.0.0.1:%d/token", port), url.Values{"location": {loc}})
				if err != nil {
					posted <- 0
					return
				}
				resp.Body.Close()
				posted <- resp.StatusCode
			}()
			return nil
		}

		require.NoError(t, f.run("auth", "login", "--print-token"))
		assert.Equal(t, http.StatusOK, <-posted)

		out := f.out.String()
		assert.Contains(t, out, "→ Waiting for authorization (2 minute timeout)...")
		assert.Contains(t, out, "✓ Authorization successful")
		assert.Contains(t, out, "User: stub")
		assert.Contains(t, out, "tok123")
		assert.Equal(t, 1, catalog.UserCalls())
	})

	t.Run("login rejects a mismatched state", func(t *testing.T) {
		f := newFixture(t, &tu.StubCatalog{})
		port := freePort(t)
		f.config.Server.Port = port

		f.runner.opener = func(string) error {
			loc := fmt.Sprintf("http://127.0.0.1:%d/callback#access_token=tok123&state=forged", port)
			go func() {
				if resp, err := http.PostForm(fmt.Sprintf("http://127.0.0.1:%d/token", port), url.Values{"location": {loc}}); err == nil {
					resp.Body.Close()
				}
			}()
			return nil
		}

		err := f.run("auth", "login")
		assert.ErrorIs(t, err, shared.ErrAuthFailed)
		assert.NotContains(t, f.out.String(), "✓ Authorization successful")
	})

	t.Run("login prints the URL when the browser cannot open", func(t *testing.T) {
		f := newFixture(t, &tu.StubCatalog{})
		f.config.Server.Port = freePort(t)
		f.runner.opener = func(string) error { return errors.New("no display") }
		f.runner.authTimeout = 50 * time.Millisecond

		err := f.run("auth", "login")
		assert.ErrorIs(t, err, shared.ErrTimeout)

		out := f.out.String()
		assert.Contains(t, out, "⚠ Could not open browser automatically.")
		assert.Contains(t, out, "https://accounts.spotify.com/authorize?")
	})

	t.Run("login fails when the port is taken", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		f := newFixture(t, &tu.StubCatalog{})
		f.config.Server.Port = ln.Addr().(*net.TCPAddr).Port

		err = f.run("auth", "login")
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
		assert.Empty(t, f.openedURLs())
	})
}

func TestSetup(t *testing.T) {
	t.Run("config writes the example file once", func(t *testing.T) {
		t.Setenv(shared.ClientIDEnv, "")
		f := newFixture(t, &tu.StubCatalog{})
		path := filepath.Join(t.TempDir(), "config.toml")

		require.NoError(t, f.run("setup", "config", "--config", path))
		assert.FileExists(t, path)
		assert.Contains(t, f.out.String(), "✓ Config written to "+path)
		assert.Contains(t, f.out.String(), "Set credentials.spotify.client_id")

		f.out.Reset()
		require.NoError(t, f.run("setup", "config", "-c", path))
		assert.Contains(t, f.out.String(), "Config already exists at "+path)
	})

	t.Run("config with client id from the environment", func(t *testing.T) {
		t.Setenv(shared.ClientIDEnv, "env-client")
		f := newFixture(t, &tu.StubCatalog{})
		path := filepath.Join(t.TempDir(), "config.toml")

		require.NoError(t, f.run("setup", "config", "--config", path))
		assert.Contains(t, f.out.String(), "medx auth login")
	})

	t.Run("check reports a missing client id", func(t *testing.T) {
		f := newFixture(t, &tu.StubCatalog{})
		f.config.Credentials.Spotify.ClientID = ""

		err := f.run("setup", "check")
		assert.ErrorIs(t, err, shared.ErrMissingCredentials)
		assert.Contains(t, f.out.String(), "Client ID: ✗ not set")
	})

	t.Run("check passes with a client id", func(t *testing.T) {
		f := newFixture(t, &tu.StubCatalog{})

		require.NoError(t, f.run("setup", "check"))
		assert.Contains(t, f.out.String(), "Client ID: ✓")
		assert.Contains(t, f.out.String(), "127.0.0.1:3000")
	})

	t.Run("check rejects invalid search settings", func(t *testing.T) {
		f := newFixture(t, &tu.StubCatalog{})
		f.config.Search.BatchSize = 500

		err := f.run("setup", "check")
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
	})
}
