// package tasks implements the meditation search against a streaming catalog.
//
// The core abstraction is MeditationFinder, which probes the catalog, samples random batches, and filters them.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/medx/internal/models"
	"github.com/desertthunder/medx/internal/services"
	"github.com/desertthunder/medx/internal/shared"
)

const (
	DefaultQuery       = "Tara Brach Meditation:"
	DefaultNamePrefix  = "Meditation:"
	DefaultBatchSize   = 50
	DefaultTolerance   = 2 * time.Minute
	DefaultMaxAttempts = 10
)

// FindResult describes a successful search.
type FindResult struct {
	Episode    models.Episode // Selected episode
	Total      int            // Total reported by the probe search
	Offset     int            // Offset of the batch the episode came from
	Attempts   int            // Batches fetched, including the successful one
	Candidates int            // Episodes that satisfied both filters in the final batch
}

// Finder defines the meditation search.
type Finder interface {
	// Find probes the catalog, then samples random batches until one yields an episode matching minutes.
	Find(ctx context.Context, minutes int, progress chan<- ProgressUpdate) (*FindResult, error)
}

// FinderOptions tunes a [MeditationFinder].
type FinderOptions struct {
	Query       string
	NamePrefix  string
	BatchSize   int
	Tolerance   time.Duration
	MaxAttempts int        // 1 disables retries
	Random      Randomizer // defaults to math/rand/v2
}

// FinderOptionsFromConfig derives [FinderOptions] from the search config.
func FinderOptionsFromConfig(cfg shared.SearchConfig) FinderOptions {
	return FinderOptions{
		Query:       cfg.Query,
		NamePrefix:  cfg.NamePrefix,
		BatchSize:   cfg.BatchSize,
		Tolerance:   cfg.Tolerance(),
		MaxAttempts: cfg.MaxAttempts,
	}
}

// MeditationFinder implements [Finder] against a [services.Catalog].
type MeditationFinder struct {
	catalog services.Catalog
	opts    FinderOptions
	logger  *log.Logger
}

// NewMeditationFinder creates a new MeditationFinder. Zero options fall back to the package defaults
// and a nil logger discards output.
func NewMeditationFinder(catalog services.Catalog, opts FinderOptions, logger *log.Logger) *MeditationFinder {
	if strings.TrimSpace(opts.Query) == "" {
		opts.Query = DefaultQuery
	}
	if strings.TrimSpace(opts.NamePrefix) == "" {
		opts.NamePrefix = DefaultNamePrefix
	}
	if opts.BatchSize <= 0 || opts.BatchSize > services.MaxSearchLimit {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Random == nil {
		opts.Random = globalRandom{}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &MeditationFinder{catalog: catalog, opts: opts, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
func (f *MeditationFinder) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Find runs the probe search, then up to MaxAttempts random-offset batches.
//
// Returns [shared.ErrNoCatalogAccess] when the probe reports no episodes (no batch is fetched) and
// [shared.ErrNoMatchFound] when every attempt filters down to nothing. Catalog errors are wrapped unchanged.
func (f *MeditationFinder) Find(ctx context.Context, minutes int, progress chan<- ProgressUpdate) (*FindResult, error) {
	if f.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	query, err := models.NewSearchQuery(f.opts.Query, f.opts.NamePrefix, minutes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	f.sendProgress(progress, probeCatalogUpdate(-1))

	probe, err := f.catalog.SearchEpisodes(ctx, query.Query, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("probe search: %w", err)
	}

	total := probe.Episodes.Total
	f.logger.Debug("probe search complete", "total", total)
	f.sendProgress(progress, probeCatalogUpdate(total))

	if total == 0 {
		return nil, fmt.Errorf("%w: probe search for %q returned no episodes", shared.ErrNoCatalogAccess, query.Query)
	}

	target := query.TargetDurationMs()
	attempts := f.opts.MaxAttempts

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		offset := RandomOffset(f.opts.Random, total, f.opts.BatchSize)
		f.logger.Debug("fetching batch", "attempt", attempt, "offset", offset)
		f.sendProgress(progress, fetchBatchUpdate(attempt, attempts, offset))

		batch, err := f.catalog.SearchEpisodes(ctx, query.Query, f.opts.BatchSize, offset)
		if err != nil {
			return nil, fmt.Errorf("batch search at offset %d: %w", offset, err)
		}

		prefixed := FilterByPrefix(batch.Episodes.Items, query.NamePrefix)
		matches := FilterByDuration(prefixed, target, f.opts.Tolerance)

		f.logger.Debug("filtered batch",
			"attempt", attempt,
			"retrieved", len(batch.Episodes.Items),
			"prefixed", len(prefixed),
			"matched", len(matches),
			"minutes", minutes,
		)
		f.sendProgress(progress, filterEpisodesUpdate(attempt, attempts, len(prefixed), len(matches), minutes))

		if len(matches) == 0 {
			continue
		}

		selected := Pick(f.opts.Random, matches)
		f.logger.Debug("selected meditation", "id", selected.ID, "name", selected.Name, "minutes", selected.DurationMs/60000)
		f.sendProgress(progress, selectEpisodeUpdate(attempt, attempts, selected))

		return &FindResult{
			Episode:    selected,
			Total:      total,
			Offset:     offset,
			Attempts:   attempt,
			Candidates: len(matches),
		}, nil
	}

	return nil, fmt.Errorf("%w: nothing within %v of %d minutes after %d attempts",
		shared.ErrNoMatchFound, f.opts.Tolerance, minutes, attempts)
}
