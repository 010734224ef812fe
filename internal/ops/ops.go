// Package ops implements the operations behind the CLI, MCP tools, and
// web dashboard: syncing notifications into the local cache, building the
// aggregated timeline, and reading back profiles, top accounts, and
// interaction history.
package ops

import (
	"strings"
	"time"

	"github.com/dmoskov/shadowsky-sub002/internal/bsky"
	"github.com/dmoskov/shadowsky-sub002/internal/cache"
	"github.com/dmoskov/shadowsky-sub002/internal/config"
	"github.com/dmoskov/shadowsky-sub002/internal/enrich"
	"github.com/dmoskov/shadowsky-sub002/internal/ratelimit"
)

// Operation limits.
const (
	DefaultTimelineLimit = 50
	MaxTimelineLimit     = 200
	DefaultTopLimit      = 10
	MaxTopLimit          = 100
	MaxProfileRequest    = 50
	DefaultRunsLimit     = 10
)

// Deps bundles the collaborators every operation draws from. Clock is
// optional; nil means time.Now.
type Deps struct {
	Store    *cache.Store
	Client   bsky.Client
	Enricher *enrich.Service
	Limiter  *ratelimit.Limiter
	Cfg      *config.Config
	Clock    func() time.Time
}

func (d Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

// isDID reports whether an identifier names an actor by id rather than
// by handle.
func isDID(s string) bool {
	return strings.HasPrefix(s, "did:")
}
