package ops

import (
	"context"
	"testing"
	"time"

	"github.com/dmoskov/shadowsky-sub002/internal/bsky"
)

func TestSync_FirstRunFoldsEverything(t *testing.T) {
	client := newFakeClient()
	client.pages = [][]bsky.Notification{
		{
			notif(bsky.ReasonLike, "did:plc:a", "at://me/post/1", testBase.Add(4*time.Minute)),
			notif(bsky.ReasonReply, "did:plc:b", "at://me/post/1", testBase.Add(3*time.Minute)),
		},
		{
			notif(bsky.ReasonLike, "did:plc:a", "at://me/post/2", testBase.Add(2*time.Minute)),
			notif(bsky.ReasonFollow, "did:plc:c", "", testBase.Add(time.Minute)),
		},
	}
	d := testDeps(t, client)

	out, err := Sync(context.Background(), d, SyncInput{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if out.RunID == "" {
		t.Error("RunID is empty")
	}
	if out.Pages != 2 || out.Fetched != 4 || out.Folded != 4 {
		t.Errorf("Pages/Fetched/Folded = %d/%d/%d, want 2/4/4", out.Pages, out.Fetched, out.Folded)
	}
	if out.Actors != 3 {
		t.Errorf("Actors = %d, want 3", out.Actors)
	}
	if out.Partial {
		t.Error("Partial = true, want false: the feed ended")
	}
	wantMark := testBase.Add(4 * time.Minute).UnixNano()
	if out.Mark != wantMark {
		t.Errorf("Mark = %d, want %d", out.Mark, wantMark)
	}

	st, ok := d.Store.GetInteractions("did:plc:a")
	if !ok {
		t.Fatal("no interactions recorded for did:plc:a")
	}
	if st.Total != 2 || st.Likes != 2 {
		t.Errorf("did:plc:a Total/Likes = %d/%d, want 2/2", st.Total, st.Likes)
	}

	mark, ok := d.Store.LastSyncMark()
	if !ok || mark != wantMark {
		t.Errorf("LastSyncMark = %d (ok=%v), want %d", mark, ok, wantMark)
	}
}

func TestSync_IncrementalStopsAtMark(t *testing.T) {
	client := newFakeClient()
	old := []bsky.Notification{
		notif(bsky.ReasonLike, "did:plc:a", "at://me/post/1", testBase.Add(2*time.Minute)),
		notif(bsky.ReasonLike, "did:plc:b", "at://me/post/1", testBase.Add(time.Minute)),
	}
	client.pages = [][]bsky.Notification{old}
	d := testDeps(t, client)

	if _, err := Sync(context.Background(), d, SyncInput{}); err != nil {
		t.Fatalf("first Sync: %v", err)
	}

	// The service now lists two new notifications above the old ones.
	client.mu.Lock()
	client.pages = [][]bsky.Notification{
		{
			notif(bsky.ReasonReply, "did:plc:a", "at://me/post/2", testBase.Add(10*time.Minute)),
			notif(bsky.ReasonLike, "did:plc:c", "at://me/post/2", testBase.Add(9*time.Minute)),
			old[0],
			old[1],
		},
		{old[1]}, // never reached: the mark is on page one
	}
	client.mu.Unlock()

	out, err := Sync(context.Background(), d, SyncInput{})
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if out.Folded != 2 {
		t.Errorf("Folded = %d, want 2 strictly-newer notifications", out.Folded)
	}
	if out.Pages != 1 {
		t.Errorf("Pages = %d, want 1: the mark was on the first page", out.Pages)
	}
	if out.Partial {
		t.Error("Partial = true, want false")
	}

	// Counters accumulate; nothing was double counted.
	st, _ := d.Store.GetInteractions("did:plc:a")
	if st.Total != 2 || st.Likes != 1 || st.Replies != 1 {
		t.Errorf("did:plc:a Total/Likes/Replies = %d/%d/%d, want 2/1/1",
			st.Total, st.Likes, st.Replies)
	}
	st, _ = d.Store.GetInteractions("did:plc:b")
	if st.Total != 1 {
		t.Errorf("did:plc:b Total = %d, want 1 (not refolded)", st.Total)
	}

	wantMark := testBase.Add(10 * time.Minute).UnixNano()
	if mark, _ := d.Store.LastSyncMark(); mark != wantMark {
		t.Errorf("LastSyncMark = %d, want %d", mark, wantMark)
	}
}

func TestSync_PageBudgetReportsPartial(t *testing.T) {
	client := newFakeClient()
	client.pages = [][]bsky.Notification{
		{notif(bsky.ReasonLike, "did:plc:a", "at://me/post/1", testBase.Add(3*time.Minute))},
		{notif(bsky.ReasonLike, "did:plc:b", "at://me/post/1", testBase.Add(2*time.Minute))},
		{notif(bsky.ReasonLike, "did:plc:c", "at://me/post/1", testBase.Add(time.Minute))},
	}
	d := testDeps(t, client)

	out, err := Sync(context.Background(), d, SyncInput{MaxPages: 2})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if out.Pages != 2 || out.Folded != 2 {
		t.Errorf("Pages/Folded = %d/%d, want 2/2", out.Pages, out.Folded)
	}
	if !out.Partial {
		t.Error("Partial = false, want true: budget ran out with pages left")
	}
	// The mark still advances so the next run never refolds these.
	if mark, ok := d.Store.LastSyncMark(); !ok || mark != testBase.Add(3*time.Minute).UnixNano() {
		t.Errorf("LastSyncMark = %d (ok=%v)", mark, ok)
	}
}

func TestSync_TransportErrorFoldsNothing(t *testing.T) {
	client := newFakeClient()
	client.pages = [][]bsky.Notification{
		{notif(bsky.ReasonLike, "did:plc:a", "at://me/post/1", testBase)},
	}
	d := testDeps(t, client)

	if _, err := Sync(context.Background(), d, SyncInput{}); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	before, _ := d.Store.GetInteractions("did:plc:a")

	client.mu.Lock()
	client.listErr = context.DeadlineExceeded
	client.mu.Unlock()

	if _, err := Sync(context.Background(), d, SyncInput{}); err == nil {
		t.Fatal("expected error from failed paging")
	}

	after, _ := d.Store.GetInteractions("did:plc:a")
	if after.Total != before.Total {
		t.Errorf("Total changed across failed sync: %d -> %d", before.Total, after.Total)
	}
	if mark, _ := d.Store.LastSyncMark(); mark != testBase.UnixNano() {
		t.Errorf("mark moved on failed sync: %d", mark)
	}
	// The failed run never finished, so it is not listed.
	for _, run := range d.Store.ListSyncRuns(10) {
		if run.FinishedAt == 0 {
			t.Errorf("unfinished run listed: %+v", run)
		}
	}
}

func TestSync_EmptyFeed(t *testing.T) {
	client := newFakeClient()
	d := testDeps(t, client)

	out, err := Sync(context.Background(), d, SyncInput{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if out.Fetched != 0 || out.Folded != 0 || out.Mark != 0 {
		t.Errorf("Fetched/Folded/Mark = %d/%d/%d, want zeros", out.Fetched, out.Folded, out.Mark)
	}
	if out.Partial {
		t.Error("Partial = true, want false")
	}
	if _, ok := d.Store.LastSyncMark(); ok {
		t.Error("LastSyncMark set after empty sync")
	}
}
