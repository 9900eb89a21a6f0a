// Package tasks runs the meditation search with real-time progress reporting.
//
// # Core Operation
//
// [MeditationFinder.Find] implements the search in four steps:
//
//  1. Probe: search the catalog with limit 1 to learn the total number of matching episodes.
//     A total of zero means the account cannot see podcast content and the search stops there.
//  2. Sample: pick a random offset in [0, max(0, total-batch)) and fetch one batch.
//  3. Filter: keep episodes whose name starts with the configured prefix and whose duration is
//     within the tolerance of the requested minutes (inclusive on both sides).
//  4. Select: pick one survivor uniformly at random.
//
// Steps 2-4 repeat up to MaxAttempts times before giving up with [shared.ErrNoMatchFound].
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, attempt counters, messages, and optional data for UI rendering.
// Updates use select with default so a slow consumer never blocks the search.
//
// # Randomness
//
// Offsets and picks come from a [Randomizer]; tests inject a seeded [*rand.Rand] or a scripted sequence.
package tasks
