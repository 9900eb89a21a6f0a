// Package models defines the domain entities for the meditation player.
//
// The package contains:
//   - [Credential] : an ephemeral bearer token obtained from the implicit grant redirect
//   - [SearchQuery] : a per-invocation description of what to look for
//   - [Episode] : a podcast episode as returned by the catalog, read-only
//   - [Phase] : the coarse state of a session (anonymous, idle, searching)
//
// None of these types are persisted. Credentials live in memory for the lifetime of a session.
package models
