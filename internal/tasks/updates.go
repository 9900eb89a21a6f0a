package tasks

import (
	"fmt"

	"github.com/desertthunder/medx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current attempt within the search
	Total   int    // Attempt ceiling
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ValidateSession Phase = iota
	ProbeCatalog
	FetchBatch
	FilterEpisodes
	SelectEpisode
)

func (p Phase) String() string {
	switch p {
	case ValidateSession:
		return "validate_session"
	case ProbeCatalog:
		return "probe_catalog"
	case FetchBatch:
		return "fetch_batch"
	case FilterEpisodes:
		return "filter_episodes"
	case SelectEpisode:
		return "select_episode"
	default:
		return ""
	}
}

// ValidateSessionUpdate is emitted by callers that check the credential before searching.
func ValidateSessionUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ValidateSession,
		Message: "Checking your Spotify session...",
	}
}

func probeCatalogUpdate(total int) ProgressUpdate {
	if total < 0 {
		return ProgressUpdate{Phase: ProbeCatalog, Message: "Counting meditation episodes..."}
	}
	return ProgressUpdate{
		Phase:   ProbeCatalog,
		Message: fmt.Sprintf("Found %d total episodes", total),
		Data:    total,
	}
}

func fetchBatchUpdate(step, total, offset int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchBatch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Searching from offset %d...", step, total, offset),
		Data:    offset,
	}
}

func filterEpisodesUpdate(step, total, prefixed, matched, minutes int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FilterEpisodes,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %d meditations in batch, %d close to %d minutes", step, total, prefixed, matched, minutes),
		Data:    matched,
	}
}

func selectEpisodeUpdate(step, total int, ep models.Episode) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SelectEpisode,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Selected %s (%d min)", ep.Name, ep.DurationMs/60000),
		Data:    ep,
	}
}
