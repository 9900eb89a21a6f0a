package tasks

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/desertthunder/medx/internal/models"
)

// Randomizer picks integers in [0, n). [*rand.Rand] satisfies it.
type Randomizer interface {
	IntN(n int) int
}

// globalRandom uses the goroutine-safe top-level generator of math/rand/v2.
type globalRandom struct{}

func (globalRandom) IntN(n int) int { return rand.IntN(n) }

// FilterByPrefix keeps episodes whose name starts with prefix. Matching is case-sensitive.
func FilterByPrefix(episodes []models.Episode, prefix string) []models.Episode {
	kept := make([]models.Episode, 0, len(episodes))
	for _, ep := range episodes {
		if strings.HasPrefix(ep.Name, prefix) {
			kept = append(kept, ep)
		}
	}
	return kept
}

// WithinTolerance reports whether |durationMs - targetMs| <= tolerance. The boundary is inclusive.
func WithinTolerance(durationMs, targetMs int, tolerance time.Duration) bool {
	diff := durationMs - targetMs
	if diff < 0 {
		diff = -diff
	}
	return int64(diff) <= tolerance.Milliseconds()
}

// FilterByDuration keeps episodes within tolerance of targetMs in either direction.
func FilterByDuration(episodes []models.Episode, targetMs int, tolerance time.Duration) []models.Episode {
	kept := make([]models.Episode, 0, len(episodes))
	for _, ep := range episodes {
		if WithinTolerance(ep.DurationMs, targetMs, tolerance) {
			kept = append(kept, ep)
		}
	}
	return kept
}

// RandomOffset returns an offset in [0, max(0, total-batch)). A collapsed range yields 0.
func RandomOffset(r Randomizer, total, batch int) int {
	span := max(0, total-batch)
	if span == 0 {
		return 0
	}
	return r.IntN(span)
}

// Pick returns a uniformly random element of episodes. It panics on an empty slice.
func Pick(r Randomizer, episodes []models.Episode) models.Episode {
	return episodes[r.IntN(len(episodes))]
}
