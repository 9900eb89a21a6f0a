package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/medx/internal/formatter"
	"github.com/desertthunder/medx/internal/models"
	"github.com/desertthunder/medx/internal/session"
	"github.com/desertthunder/medx/internal/shared"
	"github.com/desertthunder/medx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	AnonymousView ViewState = iota
	IdleView
	SearchingView
)

const sliderWidth = models.MaxMinutes - models.MinMinutes + 1

// LoginFunc runs the browser login and stores the credential in the session.
type LoginFunc func(ctx context.Context) error

// Options configures a [Model].
type Options struct {
	Login          LoginFunc
	Opener         shared.Opener // defaults to shared.OpenBrowser
	DefaultMinutes int
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	session      *session.Session
	login        LoginFunc
	opener       shared.Opener
	minutes      int
	loggingIn    bool
	notice       string
	progressChan chan tasks.ProgressUpdate
	doneChan     chan searchResult
	progress     tasks.ProgressUpdate
	spinner      spinner.Model
	help         help.Model
	keys         keyMap
	width        int
}

// NewModel creates a new TUI model bound to sess.
func NewModel(ctx context.Context, sess *session.Session, opts Options) *Model {
	if opts.Opener == nil {
		opts.Opener = shared.OpenBrowser
	}
	minutes := opts.DefaultMinutes
	if minutes == 0 {
		minutes = 15
	}

	m := &Model{
		ctx:     ctx,
		session: sess,
		login:   opts.Login,
		opener:  opts.Opener,
		minutes: models.ClampMinutes(minutes),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.filled)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
	m.view = m.viewFor(sess.Phase())
	return m
}

// Minutes returns the slider value.
func (m *Model) Minutes() int { return m.minutes }

// State returns the current view state.
func (m *Model) State() ViewState { return m.view }

func (m *Model) viewFor(phase models.Phase) ViewState {
	switch phase {
	case models.PhaseSearching:
		return SearchingView
	case models.PhaseIdle:
		return IdleView
	default:
		return AnonymousView
	}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		switch m.view {
		case AnonymousView:
			return m.handleAnonymousKeys(msg)
		case IdleView:
			return m.handleIdleKeys(msg)
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgLoginComplete:
		m.loggingIn = false
		if err := msg.err(); err != nil {
			m.notice = fmt.Sprintf("Login failed: %v", err)
			return m, nil
		}
		m.notice = ""
		m.view = m.viewFor(m.session.Phase())
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSearchComplete:
		m.progressChan = nil
		m.doneChan = nil
		m.progress = tasks.ProgressUpdate{}
		m.notice = m.session.Message()
		m.view = m.viewFor(m.session.Phase())
		return m, nil

	case MsgPhaseChanged:
		phase := msg.data.(models.Phase)
		if phase == models.PhaseAnonymous && m.view != AnonymousView {
			m.notice = session.MessageSessionExpired
		}
		if m.progressChan == nil {
			m.view = m.viewFor(phase)
		}
		return m, nil

	case MsgPlayerOpened:
		if err := msg.err(); err != nil {
			m.notice = fmt.Sprintf("Could not open the player: %v", err)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleAnonymousKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.login) && !m.loggingIn {
		return m, m.startLogin()
	}
	return m, nil
}

func (m *Model) handleIdleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.shorter):
		m.minutes = models.ClampMinutes(m.minutes - 1)
	case key.Matches(msg, m.keys.longer):
		m.minutes = models.ClampMinutes(m.minutes + 1)
	case key.Matches(msg, m.keys.find):
		return m, m.startSearch()
	case key.Matches(msg, m.keys.open):
		if current := m.session.Current(); current != nil {
			return m, m.openPlayer(current.EmbedURL())
		}
	case key.Matches(msg, m.keys.logout):
		m.session.SetCredential(models.Credential{})
		m.notice = ""
		m.view = AnonymousView
	}
	return m, nil
}

func (m *Model) startLogin() tea.Cmd {
	if m.login == nil {
		m.notice = "Login is not configured. Set credentials.spotify.client_id in config.toml."
		return nil
	}
	m.loggingIn = true
	m.notice = ""

	return func() tea.Msg {
		return loginCompleteMsg(m.login(m.ctx))
	}
}

func (m *Model) startSearch() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.doneChan = make(chan searchResult, 1)
	m.view = SearchingView
	m.notice = ""

	progress, done, minutes := m.progressChan, m.doneChan, m.minutes
	go func() {
		ep, err := m.session.FindMeditation(m.ctx, minutes, progress)
		done <- searchResult{episode: ep, err: err}
		close(progress)
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progress == nil {
			return searchCompleteMsg(nil, errors.New("no search running"))
		}

		update, ok := <-progress
		if !ok {
			result := <-done
			return searchCompleteMsg(result.episode, result.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) openPlayer(url string) tea.Cmd {
	opener := m.opener
	return func() tea.Msg {
		return playerOpenedMsg(opener(url))
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Tara Brach Meditations"))
	b.WriteString("\n")

	switch m.view {
	case AnonymousView:
		b.WriteString(m.renderAnonymous())
	case IdleView:
		b.WriteString(m.renderIdle())
	case SearchingView:
		b.WriteString(m.renderSearching())
	}
	return b.String()
}

func (m *Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	return "\n" + styles.err.Render(m.notice) + "\n"
}

func (m *Model) renderAnonymous() string {
	var body string
	if m.loggingIn {
		body = fmt.Sprintf("%s Waiting for authorization in your browser (2 minute timeout)...\n", m.spinner.View())
	} else {
		body = "Log in with Spotify to find a guided meditation.\n"
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.login, m.keys.quit})
	return fmt.Sprintf("%s%s\n%s", body, m.renderNotice(), helpView)
}

func (m *Model) renderIdle() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Duration: %s\n", styles.ok.Render(fmt.Sprintf("%d minutes", m.minutes))))
	b.WriteString(renderSlider(m.minutes))
	b.WriteString("\n")
	b.WriteString(m.renderNotice())

	keys := []key.Binding{m.keys.shorter, m.keys.longer, m.keys.find}
	if current := m.session.Current(); current != nil {
		b.WriteString("\n")
		b.WriteString(styles.box.Render(renderEpisode(*current)))
		b.WriteString("\n")
		keys = append(keys, m.keys.open)
	}
	keys = append(keys, m.keys.logout, m.keys.quit)

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(keys))
	return b.String()
}

func (m *Model) renderSearching() string {
	message := m.progress.Message
	if message == "" {
		message = "Finding meditation..."
	}
	step := ""
	if m.progress.Total > 0 {
		step = styles.help.Render(fmt.Sprintf(" attempt %d of %d", m.progress.Step, m.progress.Total))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s %s%s\n\n%s", m.spinner.View(), message, step, helpView)
}

// renderSlider draws one cell per selectable minute with the handle at minutes.
func renderSlider(minutes int) string {
	pos := models.ClampMinutes(minutes) - models.MinMinutes

	var b strings.Builder
	b.WriteString(styles.help.Render(fmt.Sprintf("%d ", models.MinMinutes)))
	b.WriteString(styles.filled.Render(strings.Repeat("━", pos)))
	b.WriteString(styles.ok.Render("●"))
	b.WriteString(styles.empty.Render(strings.Repeat("─", sliderWidth-pos-1)))
	b.WriteString(styles.help.Render(fmt.Sprintf(" %d", models.MaxMinutes)))
	return b.String()
}

func renderEpisode(ep models.Episode) string {
	return fmt.Sprintf("%s\n%s\n%s",
		styles.ok.Render(ep.Name),
		formatter.FormatDuration(ep.Duration()),
		styles.help.Render(ep.EmbedURL()),
	)
}

// Run starts the program and forwards session phase changes into it until the program exits.
func Run(ctx context.Context, sess *session.Session, opts Options) error {
	model := NewModel(ctx, sess, opts)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	// Send blocks until the event loop reads it, and the hook can fire from inside Update.
	sess.OnChange(func(phase models.Phase) { go p.Send(PhaseChangedMsg(phase)) })
	defer sess.OnChange(nil)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
