package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/medx/internal/models"
	"github.com/desertthunder/medx/internal/services"
	"github.com/desertthunder/medx/internal/shared"
	"github.com/desertthunder/medx/internal/tasks"
)

const DefaultValidateInterval = 30 * time.Minute

// Options wires a [Session] to its collaborators.
type Options struct {
	Authorizer       *services.Authorizer    // required for InitiateLogin
	CatalogFactory   services.CatalogFactory // builds one client per credential
	Finder           tasks.FinderOptions
	Opener           shared.Opener // defaults to shared.OpenBrowser
	Logger           *log.Logger
	ValidateInterval time.Duration
}

// Session holds the credential, catalog client, and current selection for one user.
type Session struct {
	id     string
	opts   Options
	logger *log.Logger

	mu           sync.RWMutex
	cred         models.Credential
	catalog      services.Catalog
	user         *services.SpotifyUser
	current      *models.Episode
	message      string
	pendingState string
	onChange     func(models.Phase)

	inflight atomic.Bool
	loading  atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// New creates an anonymous session.
func New(opts Options) *Session {
	if opts.CatalogFactory == nil {
		opts.CatalogFactory = services.NewCatalogFactory(services.ClientOptions{})
	}
	if opts.Opener == nil {
		opts.Opener = shared.OpenBrowser
	}
	if opts.ValidateInterval <= 0 {
		opts.ValidateInterval = DefaultValidateInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	id := shared.GenerateID()
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		id:     id,
		opts:   opts,
		logger: shared.WithLogger(logger, "session", id[:8]),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the session identifier used in log output.
func (s *Session) ID() string { return s.id }

// OnChange registers fn to be called after the phase or credential changes. Only one hook is kept.
func (s *Session) OnChange(fn func(models.Phase)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Session) notify() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn(s.Phase())
	}
}

// Phase reports the coarse state: searching while a search holds the loading flag,
// idle with a credential, anonymous otherwise.
func (s *Session) Phase() models.Phase {
	if s.loading.Load() {
		return models.PhaseSearching
	}
	if s.Authenticated() {
		return models.PhaseIdle
	}
	return models.PhaseAnonymous
}

// Authenticated reports whether a credential is present.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Present()
}

// Credential returns a copy of the active credential.
func (s *Session) Credential() models.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// User returns the profile from the last successful validation, or nil.
func (s *Session) User() *services.SpotifyUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Current returns the selected episode, or nil.
func (s *Session) Current() *models.Episode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	ep := *s.current
	return &ep
}

// Message returns the last user-facing error message, or "".
func (s *Session) Message() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.message
}

// Loading reports whether a search is running.
func (s *Session) Loading() bool {
	return s.loading.Load()
}

func (s *Session) setMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

// SetCredential replaces the active credential and rebuilds the catalog client for it.
// The zero credential signs the session out.
func (s *Session) SetCredential(cred models.Credential) {
	s.mu.Lock()
	s.cred = cred
	s.user = nil
	if cred.Present() {
		s.catalog = s.opts.CatalogFactory(cred)
	} else {
		s.catalog = nil
	}
	s.mu.Unlock()

	if cred.Present() {
		s.logger.Info("credential stored", "token", shared.Redact(cred.Token))
	}
	s.notify()
}

// clearCredential signs out only if token is still the active credential, so a stale failure
// cannot sign out a newer login.
func (s *Session) clearCredential(token, reason string) {
	s.mu.Lock()
	if s.cred.Token != token {
		s.mu.Unlock()
		s.logger.Debug("ignoring failure for a replaced credential", "reason", reason)
		return
	}
	had := s.cred.Present()
	s.cred = models.Credential{}
	s.catalog = nil
	s.user = nil
	s.mu.Unlock()

	if had {
		s.logger.Warn("credential cleared", "reason", reason)
		s.notify()
	}
}

// InitiateLogin builds the authorization URL for location and opens it.
//
// The URL is returned even when the opener fails so callers can print it instead.
func (s *Session) InitiateLogin(location string) (string, error) {
	if s.opts.Authorizer == nil {
		return "", fmt.Errorf("%w: no authorizer configured", shared.ErrMissingCredentials)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.pendingState = state
	s.mu.Unlock()

	authURL := s.opts.Authorizer.AuthURL(location, state)
	s.logger.Debug("initiating login", "redirect_uri", s.opts.Authorizer.RedirectURI(location))

	if err := s.opts.Opener(authURL); err != nil {
		return authURL, fmt.Errorf("failed to open authorization page: %w", err)
	}
	return authURL, nil
}

// ConsumeRedirectFragment reads an access token from the fragment of loc, stores it, and clears the fragment.
//
// It returns false when loc carries no fragment, no token, or an authorization error. Once InitiateLogin
// has generated a state, a fragment whose state is missing or different is rejected too. Any fragment present is cleared regardless.
func (s *Session) ConsumeRedirectFragment(loc *url.URL) bool {
	if loc == nil || loc.Fragment == "" {
		return false
	}
	fragment := loc.Fragment
	loc.Fragment = ""
	loc.RawFragment = ""

	values := services.ParseFragment(fragment)

	s.mu.Lock()
	expected := s.pendingState
	s.mu.Unlock()

	if expected != "" && values["state"] != expected {
		s.logger.Warn("ignoring redirect", "error", shared.ErrInvalidState)
		return false
	}

	cred, err := services.TokenFromFragment(fragment)
	if err != nil {
		if errors.Is(err, shared.ErrAuthFailed) {
			s.logger.Warn("authorization denied", "error", err)
		}
		return false
	}

	s.mu.Lock()
	s.pendingState = ""
	s.mu.Unlock()

	s.SetCredential(cred)
	return true
}

// ValidateCredential checks the credential against the profile endpoint.
//
// An absent credential returns false without a network call. A failure clears the credential it checked,
// unless a newer one has replaced it in the meantime.
func (s *Session) ValidateCredential(ctx context.Context) bool {
	s.mu.RLock()
	catalog := s.catalog
	cred := s.cred
	s.mu.RUnlock()

	if !cred.Present() || catalog == nil {
		return false
	}

	user, err := catalog.CurrentUser(ctx)
	if err != nil {
		s.logger.Info("token expired or invalid", "error", err)
		s.clearCredential(cred.Token, "validation failed")
		return false
	}

	s.mu.Lock()
	if s.cred.Token == cred.Token {
		s.user = user
	}
	s.mu.Unlock()

	s.logger.Debug("credential valid", "user", user.ID)
	return true
}

// Start runs validation immediately and then every ValidateInterval until Close.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.validateLoop()
	})
}

func (s *Session) validateLoop() {
	defer s.wg.Done()

	s.ValidateCredential(s.ctx)

	ticker := time.NewTicker(s.opts.ValidateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.ValidateCredential(s.ctx)
		}
	}
}

// Close stops the validation loop and cancels in-flight searches, then waits for the loop to exit.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}

func sendProgress(progress chan<- tasks.ProgressUpdate, update tasks.ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// FindMeditation re-validates the credential and searches for a meditation close to minutes.
//
// On success the episode becomes the current selection. Every failure records one user-facing message,
// and the loading flag is cleared on every path. A call made while another is running returns
// [shared.ErrSearchInProgress] without touching state.
func (s *Session) FindMeditation(ctx context.Context, minutes int, progress chan<- tasks.ProgressUpdate) (*models.Episode, error) {
	if !s.inflight.CompareAndSwap(false, true) {
		return nil, shared.ErrSearchInProgress
	}
	defer s.inflight.Store(false)

	if err := models.ValidateMinutes(minutes); err != nil {
		err = fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		s.setMessage(UserMessage(err, minutes))
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	sendProgress(progress, tasks.ValidateSessionUpdate())
	if !s.ValidateCredential(ctx) {
		err := fmt.Errorf("%w: log in again", shared.ErrAuthExpired)
		s.setMessage(UserMessage(err, minutes))
		return nil, err
	}

	s.mu.Lock()
	catalog := s.catalog
	token := s.cred.Token
	s.message = ""
	s.mu.Unlock()

	s.loading.Store(true)
	s.notify()
	defer func() {
		s.loading.Store(false)
		s.notify()
	}()

	finder := tasks.NewMeditationFinder(catalog, s.opts.Finder, s.logger)
	result, err := finder.Find(ctx, minutes, progress)
	if err != nil {
		err = s.classify(token, err)
		s.logger.Error("search failed", "minutes", minutes, "error", err)

		s.mu.Lock()
		s.message = UserMessage(err, minutes)
		if errors.Is(err, shared.ErrNoMatchFound) {
			s.current = nil
		}
		s.mu.Unlock()
		return nil, err
	}

	ep := result.Episode
	s.mu.Lock()
	s.current = &ep
	s.mu.Unlock()

	s.logger.Info("found meditation",
		"name", ep.Name,
		"minutes", ep.DurationMs/60000,
		"attempts", result.Attempts,
		"offset", result.Offset,
	)

	found := ep
	return &found, nil
}

// classify maps a search error onto the outcome taxonomy, clearing token on 401 and 403.
func (s *Session) classify(token string, err error) error {
	switch {
	case services.IsAuthError(err):
		s.clearCredential(token, "search rejected credential")
		return fmt.Errorf("%w: %w", shared.ErrAuthExpired, err)
	case errors.Is(err, shared.ErrNoCatalogAccess),
		errors.Is(err, shared.ErrNoMatchFound),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", shared.ErrTransport, err)
	}
}

// OptionsFromConfig derives [Options] from the application config. The authorizer is left nil when no
// client ID is configured so that search-only use with a pasted token still works.
func OptionsFromConfig(cfg *shared.Config, logger *log.Logger) Options {
	opts := Options{
		CatalogFactory:   services.NewCatalogFactory(services.ClientOptionsFromConfig(cfg)),
		Finder:           tasks.FinderOptionsFromConfig(cfg.Search),
		Logger:           logger,
		ValidateInterval: cfg.Search.ValidateInterval(),
	}
	if cfg.ValidateCredentials() == nil {
		if a, err := services.NewAuthorizer(cfg.Credentials.Spotify); err == nil {
			opts.Authorizer = a
		}
	}
	return opts
}
