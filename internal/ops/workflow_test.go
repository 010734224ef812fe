package ops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmoskov/shadowsky-sub002/internal/aggregate"
	"github.com/dmoskov/shadowsky-sub002/internal/bsky"
)

// TestFullWorkflow exercises the complete dashboard lifecycle:
// sync → timeline → profiles → top → interactions → stats → sweep → clear
func TestFullWorkflow(t *testing.T) {
	client := newFakeClient()
	alice := client.addProfile(1)
	bob := client.addProfile(2)
	carol := client.addProfile(3)

	post := "at://did:plc:me/app.bsky.feed.post/hello"
	client.posts[post] = bsky.PostSnapshot{URI: post, Text: "hello world"}
	client.pages = [][]bsky.Notification{{
		notif(bsky.ReasonLike, alice.DID, post, testBase.Add(4*time.Minute)),
		notif(bsky.ReasonLike, bob.DID, post, testBase.Add(3*time.Minute)),
		notif(bsky.ReasonLike, carol.DID, post, testBase.Add(2*time.Minute)),
		notif(bsky.ReasonFollow, bob.DID, "", testBase.Add(time.Minute)),
	}}
	d := testDeps(t, client)
	ctx := context.Background()

	// 1. Sync folds the notification history into interaction counters.
	syncOut, err := Sync(ctx, d, SyncInput{})
	require.NoError(t, err)
	require.NotEmpty(t, syncOut.RunID)
	require.Equal(t, 4, syncOut.Folded)
	require.Equal(t, 3, syncOut.Actors)

	// 2. Timeline aggregates and enriches.
	tl, err := Timeline(ctx, d, TimelineInput{IncludePosts: true})
	require.NoError(t, err)
	require.Len(t, tl.Events, 2)
	require.Equal(t, aggregate.KindPostBurst, tl.Events[0].Kind)
	require.Len(t, tl.Profiles, 3)
	require.Contains(t, tl.Posts, post)

	// 3. Profiles answers by handle, now from cache.
	profOut, err := Profiles(ctx, d, ProfilesInput{Actors: []string{"user0002.test"}})
	require.NoError(t, err)
	require.True(t, profOut.Profiles["user0002.test"].FromCache)

	// 4. Top accounts by interaction volume.
	topOut, err := TopAccounts(d, TopAccountsInput{By: ByInteractions})
	require.NoError(t, err)
	require.NotEmpty(t, topOut.Items)
	require.Equal(t, bob.DID, topOut.Items[0].Stats.ActorID)
	require.Equal(t, int64(2), topOut.Items[0].Stats.Total)

	// 5. Interactions for one account.
	intOut, err := Interactions(d, InteractionsInput{Actor: alice.Handle})
	require.NoError(t, err)
	require.Equal(t, int64(1), intOut.Stats.Likes)

	// 6. Stats sees the cache and the finished run.
	statsOut, err := Stats(d)
	require.NoError(t, err)
	require.Equal(t, int64(3), statsOut.Cache.TotalProfiles)
	require.Equal(t, int64(3), statsOut.Cache.TotalInteractions)
	require.NotNil(t, statsOut.LastSync)
	require.Equal(t, syncOut.RunID, statsOut.LastSync.ID)

	// 7. Sweep finds nothing stale yet.
	sweepOut, err := Sweep(d)
	require.NoError(t, err)
	require.Zero(t, sweepOut.Removed)

	// 8. Clear wipes everything; the next stats read is empty.
	clearOut, err := Clear(d, ClearInput{Confirm: true})
	require.NoError(t, err)
	require.Equal(t, int64(3), clearOut.Profiles)
	require.Equal(t, int64(3), clearOut.Interactions)

	statsOut, err = Stats(d)
	require.NoError(t, err)
	require.Zero(t, statsOut.Cache.TotalProfiles)
	require.Nil(t, statsOut.LastSync)
}
