// Package enrich resolves actor ids and post URIs to display-ready
// records, serving from the local cache when it is fresh and going
// upstream, rate limited and coalesced, when it is not.
package enrich

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmoskov/shadowsky-sub002/internal/bsky"
	"github.com/dmoskov/shadowsky-sub002/internal/cache"
	"github.com/dmoskov/shadowsky-sub002/internal/dedupe"
	"github.com/dmoskov/shadowsky-sub002/internal/errors"
	"github.com/dmoskov/shadowsky-sub002/internal/ratelimit"
)

// Store is the slice of the cache the enricher needs.
type Store interface {
	GetProfiles(actorIDs []string) map[string]*cache.Profile
	GetProfileByHandle(handle string) (*cache.Profile, bool)
	IsStale(actorID string) bool
	PutProfile(p *cache.Profile)
}

// Limiter gates upstream calls by traffic class.
type Limiter interface {
	Acquire(ctx context.Context, class string) error
}

// EnrichedProfile is a cached profile tagged with where it came from.
type EnrichedProfile struct {
	cache.Profile
	FromCache bool `json:"from_cache"`
}

// Service answers profile and post lookups for the rest of the app.
type Service struct {
	store   Store
	client  bsky.Client
	limiter Limiter

	profiles dedupe.Group[cache.Profile]
	posts    dedupe.Group[[]bsky.PostSnapshot]

	clock func() time.Time
}

func New(store Store, client bsky.Client, limiter Limiter) *Service {
	return &Service{
		store:   store,
		client:  client,
		limiter: limiter,
		clock:   time.Now,
	}
}

// GetProfiles resolves actor ids to profiles. Fresh cache entries are
// served as-is; missing or stale ids are fetched upstream one call per id,
// concurrently, with concurrent requests for the same id coalesced into a
// single upstream call. Each successful fetch lands in the cache before
// its waiters are released.
//
// Ids the service no longer knows are omitted from the result. A fetch
// that fails in transit falls back to the stale copy when one exists and
// is otherwise omitted. An authorization failure aborts the whole lookup.
func (s *Service) GetProfiles(ctx context.Context, actorIDs []string) (map[string]EnrichedProfile, error) {
	ids := dedupStrings(actorIDs)
	if len(ids) == 0 {
		return map[string]EnrichedProfile{}, nil
	}

	cached := s.store.GetProfiles(ids)

	out := make(map[string]EnrichedProfile, len(ids))
	var misses []string
	for _, id := range ids {
		if p, ok := cached[id]; ok && !s.store.IsStale(id) {
			out[id] = EnrichedProfile{Profile: *p, FromCache: true}
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	var (
		mu    sync.Mutex
		fatal error
		wg    sync.WaitGroup
	)
	for _, id := range misses {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			p, err, _ := s.profiles.Do("profile:"+id, func() (cache.Profile, error) {
				return s.fetchProfile(ctx, id)
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				out[id] = EnrichedProfile{Profile: p}
			case errors.Is(err, errors.ErrUnauthorized):
				if fatal == nil {
					fatal = err
				}
			case errors.Is(err, errors.ErrNotFound):
				// Gone upstream; nothing to show.
			default:
				// Transport trouble: a stale copy beats a hole in the
				// timeline.
				if prior, ok := cached[id]; ok {
					out[id] = EnrichedProfile{Profile: *prior, FromCache: true}
				}
			}
		}(id)
	}
	wg.Wait()

	if fatal != nil {
		return nil, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// fetchProfile is the coalesced unit of work: one rate-limited upstream
// call whose result is written to the cache before returning, so waiters
// on the same key and the next cache read both see it.
func (s *Service) fetchProfile(ctx context.Context, actorID string) (cache.Profile, error) {
	if err := s.limiter.Acquire(ctx, ratelimit.ClassProfile); err != nil {
		return cache.Profile{}, err
	}
	snap, err := s.client.GetProfile(ctx, actorID)
	if err != nil {
		return cache.Profile{}, err
	}
	p := fromSnapshot(*snap, s.clock())
	s.store.PutProfile(&p)
	return p, nil
}

// GetProfilesByHandles resolves handles to profiles, keyed by the
// normalized handle. Cache misses and stale entries are fetched upstream
// in batches of at most bsky.MaxBatchActors per call.
func (s *Service) GetProfilesByHandles(ctx context.Context, handles []string) (map[string]EnrichedProfile, error) {
	var hs []string
	seen := make(map[string]bool)
	for _, h := range handles {
		h = NormalizeHandle(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		hs = append(hs, h)
	}
	if len(hs) == 0 {
		return map[string]EnrichedProfile{}, nil
	}

	out := make(map[string]EnrichedProfile, len(hs))
	var misses []string
	prior := make(map[string]*cache.Profile)
	for _, h := range hs {
		p, ok := s.store.GetProfileByHandle(h)
		if ok && !s.store.IsStale(p.ActorID) {
			out[h] = EnrichedProfile{Profile: *p, FromCache: true}
			continue
		}
		if ok {
			prior[h] = p
		}
		misses = append(misses, h)
	}

	for start := 0; start < len(misses); start += bsky.MaxBatchActors {
		chunk := misses[start:min(start+bsky.MaxBatchActors, len(misses))]
		if err := s.limiter.Acquire(ctx, ratelimit.ClassProfile); err != nil {
			return nil, err
		}
		snaps, err := s.client.GetProfiles(ctx, chunk)
		if err != nil {
			if errors.Is(err, errors.ErrUnauthorized) {
				return nil, err
			}
			for _, h := range chunk {
				if p, ok := prior[h]; ok {
					out[h] = EnrichedProfile{Profile: *p, FromCache: true}
				}
			}
			continue
		}
		now := s.clock()
		for _, snap := range snaps {
			p := fromSnapshot(snap, now)
			s.store.PutProfile(&p)
			out[NormalizeHandle(p.Handle)] = EnrichedProfile{Profile: p}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPosts fetches post snapshots in batches of at most
// bsky.MaxBatchPosts per call, preserving input order and omitting URIs
// the service no longer knows. Posts are never cached.
func (s *Service) GetPosts(ctx context.Context, uris []string) ([]bsky.PostSnapshot, error) {
	us := dedupStrings(uris)
	if len(us) == 0 {
		return nil, nil
	}

	byURI := make(map[string]bsky.PostSnapshot, len(us))
	for start := 0; start < len(us); start += bsky.MaxBatchPosts {
		chunk := us[start:min(start+bsky.MaxBatchPosts, len(us))]
		snaps, err, _ := s.posts.Do("posts:"+strings.Join(chunk, ","), func() ([]bsky.PostSnapshot, error) {
			if err := s.limiter.Acquire(ctx, ratelimit.ClassPost); err != nil {
				return nil, err
			}
			return s.client.GetPosts(ctx, chunk)
		})
		if err != nil {
			return nil, err
		}
		for _, p := range snaps {
			byURI[p.URI] = p
		}
	}

	out := make([]bsky.PostSnapshot, 0, len(byURI))
	for _, u := range us {
		if p, ok := byURI[u]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// NormalizeHandle lowercases a handle and strips any leading @.
func NormalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}

func fromSnapshot(snap bsky.ProfileSnapshot, now time.Time) cache.Profile {
	return cache.Profile{
		ActorID:     snap.DID,
		Handle:      snap.Handle,
		DisplayName: snap.DisplayName,
		AvatarURL:   snap.AvatarURL,
		Bio:         snap.Bio,
		Followers:   snap.Followers,
		Following:   snap.Following,
		Posts:       snap.Posts,
		LastFetched: now.Unix(),
	}
}

func dedupStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
