package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestPutProfile_WholesaleOverwrite(t *testing.T) {
	s := testStore(t)
	now := time.Now().Unix()

	s.PutProfile(&Profile{
		ActorID: "did:plc:alice", Handle: "alice.test", DisplayName: "Alice",
		Bio: "first bio", Followers: 10, Following: 5, Posts: 3, LastFetched: now,
	})
	// A later fetch replaces every attribute, including clearing ones the
	// service no longer returns.
	s.PutProfile(&Profile{
		ActorID: "did:plc:alice", Handle: "alice.test",
		Followers: 12, Following: 5, Posts: 4, LastFetched: now + 10,
	})

	p, ok := s.GetProfile("did:plc:alice")
	if !ok {
		t.Fatal("GetProfile() ok = false")
	}
	if p.DisplayName != "" || p.Bio != "" {
		t.Errorf("stale attributes survived overwrite: %+v", p)
	}
	if p.Followers != 12 || p.Posts != 4 {
		t.Errorf("counts = %d/%d, want 12/4", p.Followers, p.Posts)
	}
	if p.LastFetched != now+10 {
		t.Errorf("LastFetched = %d, want %d", p.LastFetched, now+10)
	}
}

func TestPutProfile_LastFetchedMonotonic(t *testing.T) {
	s := testStore(t)
	now := time.Now().Unix()

	s.PutProfile(&Profile{ActorID: "did:plc:alice", Handle: "alice.test", LastFetched: now})
	// An out-of-order write (older fetch landing late) must not move
	// LastFetched backwards.
	s.PutProfile(&Profile{ActorID: "did:plc:alice", Handle: "alice.test", LastFetched: now - 100})

	p, _ := s.GetProfile("did:plc:alice")
	if p.LastFetched != now {
		t.Errorf("LastFetched = %d, want %d (never decreases)", p.LastFetched, now)
	}
}

func TestGetProfileByHandle(t *testing.T) {
	s := testStore(t)
	now := time.Now().Unix()

	s.PutProfile(&Profile{ActorID: "did:plc:alice", Handle: "alice.test", LastFetched: now})

	p, ok := s.GetProfileByHandle("alice.test")
	if !ok {
		t.Fatal("GetProfileByHandle() ok = false")
	}
	if p.ActorID != "did:plc:alice" {
		t.Errorf("ActorID = %s", p.ActorID)
	}

	if _, ok := s.GetProfileByHandle("nobody.test"); ok {
		t.Error("GetProfileByHandle() ok = true for unknown handle")
	}
}

func TestPutProfile_HandleReassignment(t *testing.T) {
	s := testStore(t)
	now := time.Now().Unix()

	s.PutProfile(&Profile{ActorID: "did:plc:old", Handle: "coolname.test", LastFetched: now - 1000})
	// The handle moved to a different actor; the old claim must yield so
	// the unique index stays truthful.
	s.PutProfile(&Profile{ActorID: "did:plc:new", Handle: "coolname.test", LastFetched: now})

	p, ok := s.GetProfileByHandle("coolname.test")
	if !ok {
		t.Fatal("GetProfileByHandle() ok = false after reassignment")
	}
	if p.ActorID != "did:plc:new" {
		t.Errorf("handle resolves to %s, want did:plc:new", p.ActorID)
	}
	if _, ok := s.GetProfile("did:plc:old"); ok {
		t.Error("evicted record still present")
	}
}

func TestIsStale_Boundary(t *testing.T) {
	s := testStore(t)
	now := time.Unix(1_700_000_000, 0)
	s.clock = func() time.Time { return now }

	horizon := int64(s.staleAfter.Seconds())

	cases := []struct {
		name        string
		lastFetched int64
		want        bool
	}{
		{"fetched one second ago", now.Unix() - 1, false},
		{"exactly at the horizon", now.Unix() - horizon, false},
		{"one second past the horizon", now.Unix() - horizon - 1, true},
		{"eight days old", now.Unix() - int64(8*24*time.Hour/time.Second), true},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := fmt.Sprintf("did:plc:actor%d", i)
			s.PutProfile(&Profile{ActorID: id, Handle: fmt.Sprintf("h%d.test", i), LastFetched: tc.lastFetched})
			if got := s.IsStale(id); got != tc.want {
				t.Errorf("IsStale() = %v, want %v", got, tc.want)
			}
		})
	}

	if !s.IsStale("did:plc:never-seen") {
		t.Error("IsStale() = false for missing actor, want true")
	}
}

func TestSweepStale(t *testing.T) {
	s := testStore(t)
	now := time.Unix(1_700_000_000, 0)
	s.clock = func() time.Time { return now }

	horizon := int64(s.staleAfter.Seconds())

	s.PutProfile(&Profile{ActorID: "did:plc:fresh", Handle: "fresh.test", LastFetched: now.Unix() - 60})
	s.PutProfile(&Profile{ActorID: "did:plc:edge", Handle: "edge.test", LastFetched: now.Unix() - horizon})
	s.PutProfile(&Profile{ActorID: "did:plc:old1", Handle: "old1.test", LastFetched: now.Unix() - horizon - 1})
	s.PutProfile(&Profile{ActorID: "did:plc:old2", Handle: "old2.test", LastFetched: now.Unix() - 2*horizon})

	s.PutInteractions(&InteractionStats{ActorID: "did:plc:old1", Total: 5, Likes: 5, FirstSeen: 1, LastSeen: 2})

	if got := s.SweepStale(); got != 2 {
		t.Errorf("SweepStale() = %d, want 2", got)
	}
	if _, ok := s.GetProfile("did:plc:fresh"); !ok {
		t.Error("fresh profile swept")
	}
	if _, ok := s.GetProfile("did:plc:edge"); !ok {
		t.Error("profile exactly at the horizon swept; it is still fresh")
	}
	if _, ok := s.GetProfile("did:plc:old1"); ok {
		t.Error("stale profile survived sweep")
	}
	// Interaction stats never expire, even when the profile goes.
	if _, ok := s.GetInteractions("did:plc:old1"); !ok {
		t.Error("interaction stats swept along with profile")
	}
}

func TestTopByFollowers(t *testing.T) {
	s := testStore(t)
	now := time.Now().Unix()

	s.PutProfile(&Profile{ActorID: "did:plc:a", Handle: "a.test", Followers: 50, LastFetched: now})
	s.PutProfile(&Profile{ActorID: "did:plc:b", Handle: "b.test", Followers: 200, LastFetched: now})
	s.PutProfile(&Profile{ActorID: "did:plc:c", Handle: "c.test", Followers: 200, LastFetched: now})
	s.PutProfile(&Profile{ActorID: "did:plc:d", Handle: "d.test", Followers: 5, LastFetched: now})

	got := s.TopByFollowers(10, 10)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (min followers filter)", len(got))
	}
	// Descending by followers; the 200-200 tie breaks on actor id.
	wantOrder := []string{"did:plc:b", "did:plc:c", "did:plc:a"}
	for i, want := range wantOrder {
		if got[i].ActorID != want {
			t.Errorf("got[%d] = %s, want %s", i, got[i].ActorID, want)
		}
	}

	// Limit applies after ordering.
	got = s.TopByFollowers(0, 2)
	if len(got) != 2 || got[0].ActorID != "did:plc:b" {
		t.Errorf("limit 2 = %v", got)
	}
}

func TestGetProfiles_Batch(t *testing.T) {
	s := testStore(t)
	now := time.Now().Unix()

	for i := 0; i < 5; i++ {
		s.PutProfile(&Profile{
			ActorID:     fmt.Sprintf("did:plc:actor%d", i),
			Handle:      fmt.Sprintf("actor%d.test", i),
			LastFetched: now,
		})
	}

	got := s.GetProfiles([]string{"did:plc:actor0", "did:plc:actor3", "did:plc:missing"})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (missing actor omitted)", len(got))
	}
	if got["did:plc:actor0"] == nil || got["did:plc:actor3"] == nil {
		t.Errorf("batch result = %v", got)
	}

	if got := s.GetProfiles(nil); len(got) != 0 {
		t.Errorf("GetProfiles(nil) = %v, want empty", got)
	}
}
