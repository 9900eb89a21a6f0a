// Package server runs the short-lived local HTTP server that completes the implicit grant login.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] uses
// [http.ServeMux] with method filtering; [DefaultMiddleware] adds chi's Recoverer and NoCache
// plus a charmbracelet request logger.
//
// # Implicit Grant Callback
//
// Spotify returns the access token in the URL fragment, which never reaches a server. [ImplicitHandler]
// serves a page at /callback whose script posts window.location.href to /token and clears the fragment
// from the address bar with history.replaceState. The handler accepts one location and delivers it
// through a channel; the session parses the fragment.
//
// # Lifetime
//
// [CallbackServer] binds before the browser is opened and is shut down with a five second grace
// period once [AwaitRedirect] returns.
package server
