package ops

import (
	"github.com/dmoskov/shadowsky-sub002/internal/cache"
	"github.com/dmoskov/shadowsky-sub002/internal/ratelimit"
)

// StatsOutput contains the result of the Stats operation.
type StatsOutput struct {
	Cache      cache.Stats       `json:"cache"`
	RateLimits []ratelimit.Stats `json:"rate_limits"`
	LastSync   *cache.SyncRun    `json:"last_sync,omitempty"`
	Runs       []cache.SyncRun   `json:"runs,omitempty"`
}

// Stats reports cache occupancy, rate limiter state, and recent sync runs.
func Stats(d Deps) (*StatsOutput, error) {
	out := &StatsOutput{
		Cache:      d.Store.Stats(),
		RateLimits: d.Limiter.StatsAll(),
	}
	runs := d.Store.ListSyncRuns(DefaultRunsLimit)
	if len(runs) > 0 {
		out.LastSync = &runs[0]
		out.Runs = runs
	}
	return out, nil
}
