// Package ui implements the interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI follows the session through its phases:
//  1. [AnonymousView] : Prompt to log in; enter starts the browser login
//  2. [IdleView] : Duration slider (5-30 minutes), last error, and the current meditation
//  3. [SearchingView] : Spinner with live progress from the search
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the session's search, and session phase changes (such as
// the validation loop expiring the credential) arrive as [PhaseChangedMsg] values posted by [Run].
//
// Keyboard navigation uses ←/→ (or h/l) for the slider, enter to log in or search, o to open the player,
// x to log out, and q to quit, with contextual help displayed via charmbracelet/bubbles/help.
package ui
