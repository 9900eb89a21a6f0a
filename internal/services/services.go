// package services defines interface Catalog for interacting with the streaming API
package services

import (
	"context"

	"github.com/desertthunder/medx/internal/models"
)

// Catalog is the remote collaborator consumed by the meditation search.
type Catalog interface {
	// CurrentUser fetches the profile bound to the credential. Used as a cheap validity check.
	CurrentUser(ctx context.Context) (*SpotifyUser, error)

	// SearchEpisodes runs an episode search and returns one page of results.
	SearchEpisodes(ctx context.Context, query string, limit, offset int) (*EpisodeSearch, error)
}

// CatalogFactory builds a [Catalog] bound to a credential.
type CatalogFactory func(cred models.Credential) Catalog

// EpisodeSearch is one page of an episode search.
type EpisodeSearch struct {
	Episodes EpisodePage `json:"episodes"`
}

// EpisodePage holds the total match count and the returned items.
type EpisodePage struct {
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Items  []models.Episode `json:"items"`
}
