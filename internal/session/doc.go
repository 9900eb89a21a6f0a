// Package session owns the signed-in state of one user: the credential obtained from the implicit grant,
// the catalog client built for it, the periodic validation loop, and the current meditation selection.
//
// A [Session] is safe for concurrent use. Presentation layers (the TUI and the CLI commands) read its
// state through accessors and subscribe to phase changes with [Session.OnChange].
//
// # Lifetime
//
// [Session.Start] validates the credential once and then every ValidateInterval until [Session.Close].
// Searches started with [Session.FindMeditation] are bound to the session lifetime as well as to the
// caller's context, so Close aborts in-flight requests.
//
// # Errors
//
// FindMeditation never panics on remote failures. Every failure path records exactly one user-facing
// message (see [UserMessage]) and clears the loading flag before returning.
package session
