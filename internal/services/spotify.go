// Spotify Web API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/medx/internal/models"
	"github.com/desertthunder/medx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// MaxSearchLimit is the largest page size the search endpoint accepts.
	MaxSearchLimit = 50
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Country     string    `json:"country"`
	Product     string    `json:"product"` // premium, free, etc.
	Followers   followers `json:"followers"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyEpisode represents a simplified episode object from search results.
type SpotifyEpisode struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	DurationMS   int          `json:"duration_ms"`
	Explicit     bool         `json:"explicit"`
	Language     string       `json:"language"`
	ReleaseDate  string       `json:"release_date"`
	ExternalURLs externalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

func (e SpotifyEpisode) toModel() models.Episode {
	return models.Episode{
		ID:          e.ID,
		Name:        e.Name,
		DurationMs:  e.DurationMS,
		Description: e.Description,
		ReleaseDate: e.ReleaseDate,
	}
}

type spotifyEpisodePage struct {
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
	Next   *string           `json:"next"`
	Items  []*SpotifyEpisode `json:"items"`
}

type spotifySearchResponse struct {
	Episodes *spotifyEpisodePage `json:"episodes"`
}

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is returned for non-2xx responses from the Web API.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto the shared error taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.IsAuth():
		return shared.ErrTokenExpired
	case e.StatusCode == http.StatusTooManyRequests:
		return shared.ErrRateLimited
	default:
		return shared.ErrAPIRequest
	}
}

// IsAuth reports whether the response indicates an unusable credential.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsAuthError reports whether err carries a 401 or 403 from the API.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsAuth()
}

// ClientOptions configures a [SpotifyClient].
type ClientOptions struct {
	BaseURL    string
	Market     string
	RateLimit  float64 // requests per second; zero or less disables limiting
	Timeout    time.Duration
	HTTPClient *http.Client // base client wrapped by the oauth2 transport
}

// SpotifyClient implements [Catalog] against the Spotify Web API for a single credential.
type SpotifyClient struct {
	baseURL    string
	market     string
	cred       models.Credential
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewSpotifyClient creates a client that authenticates every request with cred.
func NewSpotifyClient(cred models.Credential, opts ClientOptions) *SpotifyClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(cred.OAuth2Token()))
	if opts.Timeout > 0 {
		httpClient.Timeout = opts.Timeout
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &SpotifyClient{
		baseURL:    baseURL,
		market:     opts.Market,
		cred:       cred,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// NewCatalogFactory returns a [CatalogFactory] producing [SpotifyClient] values with opts.
func NewCatalogFactory(opts ClientOptions) CatalogFactory {
	return func(cred models.Credential) Catalog {
		return NewSpotifyClient(cred, opts)
	}
}

// ClientOptionsFromConfig derives [ClientOptions] from the application config.
func ClientOptionsFromConfig(cfg *shared.Config) ClientOptions {
	return ClientOptions{
		BaseURL:   cfg.API.BaseURL,
		Market:    cfg.Search.Market,
		RateLimit: cfg.API.RateLimit,
		Timeout:   cfg.API.Timeout(),
	}
}

// doRequest performs an authenticated GET against the Web API and decodes the JSON body into result.
func (s *SpotifyClient) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	if !s.cred.Present() {
		return fmt.Errorf("%w: no access token", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed spotifyErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
	}

	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	return apiErr
}

// CurrentUser retrieves the current authenticated user's profile.
func (s *SpotifyClient) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchEpisodes searches the episode catalog. Null items in the page are dropped.
func (s *SpotifyClient) SearchEpisodes(ctx context.Context, query string, limit, offset int) (*EpisodeSearch, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	if offset < 0 {
		offset = 0
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "episode")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if s.market != "" {
		params.Set("market", s.market)
	}

	var response spotifySearchResponse
	if err := s.doRequest(ctx, "/search", params, &response); err != nil {
		return nil, err
	}

	result := &EpisodeSearch{}
	if response.Episodes == nil {
		return result, nil
	}

	result.Episodes = EpisodePage{
		Total:  response.Episodes.Total,
		Limit:  response.Episodes.Limit,
		Offset: response.Episodes.Offset,
		Items:  make([]models.Episode, 0, len(response.Episodes.Items)),
	}
	for _, item := range response.Episodes.Items {
		if item == nil || item.ID == "" {
			continue
		}
		result.Episodes.Items = append(result.Episodes.Items, item.toModel())
	}

	return result, nil
}
