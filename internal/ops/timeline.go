package ops

import (
	"context"
	"log"

	"github.com/dmoskov/shadowsky-sub002/internal/aggregate"
	"github.com/dmoskov/shadowsky-sub002/internal/bsky"
	"github.com/dmoskov/shadowsky-sub002/internal/enrich"
	"github.com/dmoskov/shadowsky-sub002/internal/ratelimit"
)

// TimelineInput contains parameters for the Timeline operation.
type TimelineInput struct {
	Limit        int  // notifications to pull; 0 means DefaultTimelineLimit
	IncludePosts bool // hydrate the posts events are about
}

// TimelineOutput contains the result of the Timeline operation.
type TimelineOutput struct {
	Events   []aggregate.Event                 `json:"events"`
	Profiles map[string]enrich.EnrichedProfile `json:"profiles"`
	Posts    map[string]bsky.PostSnapshot      `json:"posts,omitempty"`
	Fetched  int                               `json:"fetched"`
}

// Timeline pulls the latest notifications live, aggregates them into
// events, and enriches the actors involved. Post hydration is best
// effort: if the post fetch fails the timeline still renders, just
// without excerpt bodies.
func Timeline(ctx context.Context, d Deps, input TimelineInput) (*TimelineOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultTimelineLimit
	}
	if limit > MaxTimelineLimit {
		limit = MaxTimelineLimit
	}

	var ns []bsky.Notification
	cursor := ""
	for len(ns) < limit {
		pageSize := d.Cfg.PageSize
		if remaining := limit - len(ns); remaining < pageSize {
			pageSize = remaining
		}
		if err := d.Limiter.Acquire(ctx, ratelimit.ClassAPI); err != nil {
			return nil, err
		}
		page, next, err := d.Client.ListNotifications(ctx, pageSize, cursor)
		if err != nil {
			return nil, err
		}
		ns = append(ns, page...)
		if next == "" || len(page) == 0 {
			break
		}
		cursor = next
	}

	events := aggregate.Aggregate(ns)

	var actorIDs []string
	seen := make(map[string]bool)
	for _, e := range events {
		for _, id := range e.Actors {
			if !seen[id] {
				seen[id] = true
				actorIDs = append(actorIDs, id)
			}
		}
	}

	profiles, err := d.Enricher.GetProfiles(ctx, actorIDs)
	if err != nil {
		return nil, err
	}

	out := &TimelineOutput{
		Events:   events,
		Profiles: profiles,
		Fetched:  len(ns),
	}

	if input.IncludePosts {
		var uris []string
		seenURI := make(map[string]bool)
		for _, e := range events {
			if e.SubjectURI == "" || seenURI[e.SubjectURI] {
				continue
			}
			seenURI[e.SubjectURI] = true
			uris = append(uris, e.SubjectURI)
		}
		posts, err := d.Enricher.GetPosts(ctx, uris)
		if err != nil {
			log.Printf("timeline: post hydration failed: %v", err)
		} else if len(posts) > 0 {
			out.Posts = make(map[string]bsky.PostSnapshot, len(posts))
			for _, p := range posts {
				out.Posts[p.URI] = p
			}
		}
	}

	return out, nil
}
