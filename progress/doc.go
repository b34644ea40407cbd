// Package progress keeps per batch task counters.  Trackers are fed with
// deltas derived from task transitions and notify an OnChange callback that
// persists the aggregated batch.
package progress
