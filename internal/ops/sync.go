package ops

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dmoskov/shadowsky-sub002/internal/bsky"
	"github.com/dmoskov/shadowsky-sub002/internal/cache"
	"github.com/dmoskov/shadowsky-sub002/internal/errors"
	"github.com/dmoskov/shadowsky-sub002/internal/ratelimit"
)

// SyncInput contains parameters for the Sync operation.
type SyncInput struct {
	MaxPages int // 0 means the configured default
	PageSize int // 0 means the configured default
}

// SyncOutput contains the result of the Sync operation.
type SyncOutput struct {
	RunID   string `json:"run_id"`
	Pages   int    `json:"pages"`
	Fetched int    `json:"fetched"`
	Folded  int    `json:"folded"`
	Actors  int    `json:"actors"`
	Mark    int64  `json:"mark,omitempty"`
	Partial bool   `json:"partial,omitempty"`
}

// Sync pages the account's notifications newest-first until it reaches
// the previous finished run's high-water mark, the end of the feed, or
// the page budget, then folds everything strictly newer than the mark
// into per-actor interaction history.
//
// Nothing is folded until paging succeeds, so a run that fails in transit
// leaves the counters untouched and the mark where it was; the next run
// simply re-pages. A run that exhausts its page budget before reaching
// the mark is reported Partial: its mark still advances, and the unpaged
// middle window is skipped rather than risk folding anything twice.
func Sync(ctx context.Context, d Deps, input SyncInput) (*SyncOutput, error) {
	maxPages := input.MaxPages
	if maxPages <= 0 {
		maxPages = d.Cfg.SyncMaxPages
	}
	pageSize := input.PageSize
	if pageSize <= 0 {
		pageSize = d.Cfg.PageSize
	}

	runID, err := generateULID(d.now())
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	mark, hasMark := d.Store.LastSyncMark()
	started := d.now()
	d.Store.BeginSyncRun(runID, started.Unix())

	var (
		collected      []bsky.Notification
		fetched, pages int
		cursor         string
	)
	partial := true
	for pages < maxPages {
		if err := d.Limiter.Acquire(ctx, ratelimit.ClassAPI); err != nil {
			return nil, err
		}
		ns, next, err := d.Client.ListNotifications(ctx, pageSize, cursor)
		if err != nil {
			return nil, err
		}
		pages++
		fetched += len(ns)

		reachedMark := false
		for _, n := range ns {
			if hasMark && n.IndexedAt.UnixNano() <= mark {
				reachedMark = true
				continue
			}
			collected = append(collected, n)
		}
		if reachedMark || next == "" {
			partial = false
			break
		}
		cursor = next
	}

	byActor := make(map[string][]bsky.Notification)
	var order []string
	var newMark int64
	for _, n := range collected {
		id := n.Author.DID
		if _, ok := byActor[id]; !ok {
			order = append(order, id)
		}
		byActor[id] = append(byActor[id], n)
		if ts := n.IndexedAt.UnixNano(); ts > newMark {
			newMark = ts
		}
	}

	for _, id := range order {
		st, ok := d.Store.GetInteractions(id)
		if !ok {
			st = &cache.InteractionStats{ActorID: id}
		}
		st.Fold(byActor[id])
		d.Store.PutInteractions(st)
	}

	d.Store.FinishSyncRun(cache.SyncRun{
		ID:         runID,
		StartedAt:  started.Unix(),
		FinishedAt: d.now().Unix(),
		Fetched:    int64(fetched),
		Folded:     int64(len(collected)),
		Mark:       newMark,
	})

	return &SyncOutput{
		RunID:   runID,
		Pages:   pages,
		Fetched: fetched,
		Folded:  len(collected),
		Actors:  len(order),
		Mark:    newMark,
		Partial: partial,
	}, nil
}

// generateULID generates a new ULID seeded from the given time.
func generateULID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
