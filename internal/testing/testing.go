// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/desertthunder/medx/internal/models"
	"github.com/desertthunder/medx/internal/services"
	"github.com/stretchr/testify/mock"
)

// MockCatalog is a testify test double for [services.Catalog]
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) CurrentUser(ctx context.Context) (*services.SpotifyUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SpotifyUser), args.Error(1)
}

func (m *MockCatalog) SearchEpisodes(ctx context.Context, query string, limit, offset int) (*services.EpisodeSearch, error) {
	args := m.Called(ctx, query, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.EpisodeSearch), args.Error(1)
}

// SearchCall records the arguments of one SearchEpisodes call.
type SearchCall struct {
	Query  string
	Limit  int
	Offset int
}

// StubCatalog is a scripted [services.Catalog] that serves a fixed episode list and records calls.
//
// Batch results are the slice of Episodes starting at the requested offset. It is safe for concurrent use.
type StubCatalog struct {
	Total     int
	Episodes  []models.Episode
	UserErr   error
	SearchErr error
	Block     chan struct{} // when set, SearchEpisodes waits on it or the context
	UserBlock chan struct{} // when set, CurrentUser waits on it or the context

	mu        sync.Mutex
	userCalls int
	searches  []SearchCall
}

func (s *StubCatalog) CurrentUser(ctx context.Context) (*services.SpotifyUser, error) {
	s.mu.Lock()
	s.userCalls++
	block := s.UserBlock
	err := s.UserErr
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return &services.SpotifyUser{ID: "stub"}, nil
}

func (s *StubCatalog) SearchEpisodes(ctx context.Context, query string, limit, offset int) (*services.EpisodeSearch, error) {
	s.mu.Lock()
	s.searches = append(s.searches, SearchCall{Query: query, Limit: limit, Offset: offset})
	block := s.Block
	err := s.SearchErr
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}

	page := services.EpisodePage{Total: s.Total, Limit: limit, Offset: offset}
	if offset < len(s.Episodes) {
		end := min(len(s.Episodes), offset+limit)
		page.Items = append(page.Items, s.Episodes[offset:end]...)
	}
	return &services.EpisodeSearch{Episodes: page}, nil
}

// UserCalls returns how many times CurrentUser was called.
func (s *StubCatalog) UserCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userCalls
}

// Searches returns a copy of the recorded SearchEpisodes calls.
func (s *StubCatalog) Searches() []SearchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SearchCall(nil), s.searches...)
}

// SequenceRandom returns scripted values from IntN, clamped to [0, n). It repeats the last value when exhausted.
type SequenceRandom struct {
	Values []int

	mu    sync.Mutex
	i     int
	Calls []int // the n passed to each IntN call
}

func (r *SequenceRandom) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, n)

	v := 0
	if len(r.Values) > 0 {
		idx := min(r.i, len(r.Values)-1)
		v = r.Values[idx]
		r.i++
	}
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}
