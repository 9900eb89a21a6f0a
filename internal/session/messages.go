package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/medx/internal/models"
	"github.com/desertthunder/medx/internal/services"
	"github.com/desertthunder/medx/internal/shared"
)

const (
	MessageSessionExpired  = "Your session has expired. Please log in again."
	MessageNoCatalogAccess = "Unable to access Spotify podcast content. Please make sure you have a valid Spotify account with podcast access."
)

// UserMessage converts a search error into the message shown to the user. A nil error yields "".
func UserMessage(err error, minutes int) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrAuthExpired), errors.Is(err, shared.ErrTokenExpired), errors.Is(err, shared.ErrNotAuthenticated):
		return MessageSessionExpired
	case errors.Is(err, shared.ErrNoCatalogAccess):
		return MessageNoCatalogAccess
	case errors.Is(err, shared.ErrNoMatchFound):
		return fmt.Sprintf("No meditations found close to %d minutes. "+
			"This might be due to Spotify access restrictions. Please try again or try a different duration.", minutes)
	case errors.Is(err, shared.ErrSearchInProgress):
		return "A search is already running."
	case errors.Is(err, shared.ErrInvalidArgument):
		return fmt.Sprintf("Choose a duration between %d and %d minutes.", models.MinMinutes, models.MaxMinutes)
	case errors.Is(err, context.Canceled):
		return "Search cancelled."
	case errors.Is(err, shared.ErrRateLimited):
		return rateLimitMessage(err)
	default:
		return fmt.Sprintf("Error finding meditation: %s. Please try logging in again.", reason(err))
	}
}

func rateLimitMessage(err error) string {
	var apiErr *services.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return fmt.Sprintf("Spotify is limiting requests. Please try again in %s.", apiErr.RetryAfter)
	}
	return "Spotify is limiting requests. Please try again in a moment."
}

// reason prefers the API's own description over the wrap chain.
func reason(err error) string {
	var apiErr *services.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}
