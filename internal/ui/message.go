package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/medx/internal/models"
	"github.com/desertthunder/medx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgLoginComplete MsgKind = iota
	MsgProgressUpdate
	MsgSearchComplete
	MsgPhaseChanged
	MsgPlayerOpened
)

type searchResult struct {
	episode *models.Episode
	err     error
}

// loginCompleteMsg is the constructor for [MsgLoginComplete]
func loginCompleteMsg(err error) Msg {
	return Msg{kind: MsgLoginComplete, data: err}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// searchCompleteMsg is the constructor for [MsgSearchComplete]
func searchCompleteMsg(episode *models.Episode, err error) Msg {
	return Msg{kind: MsgSearchComplete, data: searchResult{episode, err}}
}

// PhaseChangedMsg is the constructor for [MsgPhaseChanged]. It is exported so the session's
// change hook can post it into a running program.
func PhaseChangedMsg(phase models.Phase) Msg {
	return Msg{kind: MsgPhaseChanged, data: phase}
}

// playerOpenedMsg is the constructor for [MsgPlayerOpened]
func playerOpenedMsg(err error) Msg {
	return Msg{kind: MsgPlayerOpened, data: err}
}

func (m Msg) err() error {
	if err, ok := m.data.(error); ok {
		return err
	}
	return nil
}
