package ops

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmoskov/shadowsky-sub002/internal/bsky"
	"github.com/dmoskov/shadowsky-sub002/internal/cache"
	"github.com/dmoskov/shadowsky-sub002/internal/config"
	"github.com/dmoskov/shadowsky-sub002/internal/enrich"
	"github.com/dmoskov/shadowsky-sub002/internal/ratelimit"
)

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeClient serves scripted notification pages and canned profiles.
type fakeClient struct {
	mu        sync.Mutex
	pages     [][]bsky.Notification
	profiles  map[string]bsky.ProfileSnapshot
	posts     map[string]bsky.PostSnapshot
	listErr   error
	listCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		profiles: make(map[string]bsky.ProfileSnapshot),
		posts:    make(map[string]bsky.PostSnapshot),
	}
}

func (f *fakeClient) ListNotifications(ctx context.Context, limit int, cursor string) ([]bsky.Notification, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, "", f.listErr
	}

	idx := 0
	if cursor != "" {
		idx, _ = strconv.Atoi(strings.TrimPrefix(cursor, "page-"))
	}
	if idx >= len(f.pages) {
		return nil, "", nil
	}
	next := ""
	if idx+1 < len(f.pages) {
		next = fmt.Sprintf("page-%d", idx+1)
	}
	return f.pages[idx], next, nil
}

func (f *fakeClient) GetProfile(ctx context.Context, actor string) (*bsky.ProfileSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, snap := range f.profiles {
		if snap.DID == actor || snap.Handle == actor {
			cp := snap
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no such actor %q", actor)
}

func (f *fakeClient) GetProfiles(ctx context.Context, actors []string) ([]bsky.ProfileSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bsky.ProfileSnapshot
	for _, a := range actors {
		for _, snap := range f.profiles {
			if snap.DID == a || snap.Handle == a {
				out = append(out, snap)
			}
		}
	}
	return out, nil
}

func (f *fakeClient) GetPosts(ctx context.Context, uris []string) ([]bsky.PostSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bsky.PostSnapshot
	for _, u := range uris {
		if p, ok := f.posts[u]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeClient) addProfile(id int) bsky.ProfileSnapshot {
	snap := bsky.ProfileSnapshot{
		DID:       fmt.Sprintf("did:plc:%04d", id),
		Handle:    fmt.Sprintf("user%04d.test", id),
		Followers: int64(id * 100),
	}
	f.mu.Lock()
	f.profiles[snap.DID] = snap
	f.mu.Unlock()
	return snap
}

func notif(reason bsky.Reason, actor, subject string, at time.Time) bsky.Notification {
	return bsky.Notification{
		URI:        fmt.Sprintf("at://%s/rec/%d", actor, at.UnixNano()),
		Reason:     reason,
		Author:     bsky.Actor{DID: actor, Handle: actor + ".test"},
		SubjectURI: subject,
		IndexedAt:  at,
	}
}

// testDeps wires a real store, limiter, and enricher around a fake client.
// Limits are wide open so tests never wait on the limiter.
func testDeps(t *testing.T, client bsky.Client) Deps {
	t.Helper()
	store, err := cache.Open(t.TempDir(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	limiter := ratelimit.New(map[string]ratelimit.Class{
		ratelimit.ClassProfile: {Capacity: 1000, RefillPerSec: 1000},
		ratelimit.ClassPost:    {Capacity: 1000, RefillPerSec: 1000},
		ratelimit.ClassAPI:     {Capacity: 1000, RefillPerSec: 1000},
	})

	return Deps{
		Store:    store,
		Client:   client,
		Enricher: enrich.New(store, client, limiter),
		Limiter:  limiter,
		Cfg:      config.DefaultConfig(),
	}
}
