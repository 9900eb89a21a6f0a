// Package services implements the Spotify Web API collaborator behind the [Catalog] interface.
//
// # Catalog
//
// The meditation search only needs two calls: a "who am I" probe used to validate a credential,
// and an episode search with limit and offset.
//
// # Spotify Implementation
//
// [SpotifyClient] is constructed per [models.Credential] through a [CatalogFactory].
// There is no shared client mutated in place; a new credential means a new client.
// Requests carry the bearer token through an [oauth2.Transport] built from a static token source
// and are paced by a token bucket limiter.
//
// # Implicit Grant
//
// [Authorizer] builds the authorization redirect for the implicit grant (response_type=token)
// and picks the redirect URI by comparing the application's location against the deployment host.
// [ParseFragment] and [TokenFromFragment] read the token the authorization server appends to the
// redirect URI fragment.
//
// # Error Handling
//
// Non-2xx responses become [*APIError]:
//   - 401 and 403 unwrap to [shared.ErrTokenExpired]
//   - 429 unwraps to [shared.ErrRateLimited]
//   - everything else unwraps to [shared.ErrAPIRequest]
package services
