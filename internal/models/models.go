// package models defines the data model for the meditation player
package models

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	MinMinutes = 5
	MaxMinutes = 30

	embedBaseURL   = "https://open.spotify.com/embed/episode/"
	episodeBaseURL = "https://open.spotify.com/episode/"
)

// Credential is an opaque bearer token. The zero value is the anonymous credential.
type Credential struct {
	Token      string
	TokenType  string
	ExpiresIn  time.Duration // hint from the redirect fragment; never used for refresh
	ObtainedAt time.Time
}

// NewCredential returns a present credential for token.
func NewCredential(token string) Credential {
	return Credential{Token: token, TokenType: "Bearer", ObtainedAt: time.Now()}
}

// Present reports whether the credential holds a token.
func (c Credential) Present() bool {
	return strings.TrimSpace(c.Token) != ""
}

// OAuth2Token adapts the credential for [oauth2.StaticTokenSource].
func (c Credential) OAuth2Token() *oauth2.Token {
	tokenType := c.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{AccessToken: c.Token, TokenType: tokenType}
}

// SearchQuery describes one meditation search.
type SearchQuery struct {
	Query         string
	NamePrefix    string
	TargetMinutes int
}

// NewSearchQuery validates minutes and builds a [SearchQuery].
func NewSearchQuery(query, prefix string, minutes int) (SearchQuery, error) {
	if err := ValidateMinutes(minutes); err != nil {
		return SearchQuery{}, err
	}
	return SearchQuery{Query: query, NamePrefix: prefix, TargetMinutes: minutes}, nil
}

// TargetDurationMs returns the requested length in milliseconds.
func (q SearchQuery) TargetDurationMs() int {
	return MinutesToMs(q.TargetMinutes)
}

// MinutesToMs converts whole minutes to milliseconds.
func MinutesToMs(minutes int) int {
	return minutes * 60000
}

// ValidateMinutes checks minutes against [MinMinutes] and [MaxMinutes].
func ValidateMinutes(minutes int) error {
	if minutes < MinMinutes || minutes > MaxMinutes {
		return fmt.Errorf("duration must be between %d and %d minutes, got %d", MinMinutes, MaxMinutes, minutes)
	}
	return nil
}

// ClampMinutes bounds minutes to the selectable range.
func ClampMinutes(minutes int) int {
	return max(MinMinutes, min(MaxMinutes, minutes))
}

// Episode is a podcast episode from the catalog.
type Episode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DurationMs  int    `json:"duration_ms"`
	Description string `json:"description,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
}

// Duration returns the episode length.
func (e Episode) Duration() time.Duration {
	return time.Duration(e.DurationMs) * time.Millisecond
}

// EmbedURL returns the player embed address for the episode.
func (e Episode) EmbedURL() string {
	return embedBaseURL + e.ID
}

// ExternalURL returns the public web address for the episode.
func (e Episode) ExternalURL() string {
	return episodeBaseURL + e.ID
}

// Phase is the coarse state of a session.
type Phase int

const (
	PhaseAnonymous Phase = iota
	PhaseIdle
	PhaseSearching
)

func (p Phase) String() string {
	switch p {
	case PhaseAnonymous:
		return "anonymous"
	case PhaseIdle:
		return "idle"
	case PhaseSearching:
		return "searching"
	default:
		return ""
	}
}
