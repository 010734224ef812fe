package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dmoskov/shadowsky-sub002/internal/ops"
)

var syncToolDef = mcp.NewTool("sky_sync",
	mcp.WithDescription("Pull new notifications from the account's service and fold them into local interaction history. Stops at the previous sync's high-water mark."),
	mcp.WithNumber("max_pages",
		mcp.Description("Page budget for this run (default from config)"),
		mcp.Min(1),
	),
	mcp.WithNumber("page_size",
		mcp.Description("Notifications per page (default from config)"),
		mcp.Min(1),
	),
)

var timelineToolDef = mcp.NewTool("sky_timeline",
	mcp.WithDescription("Fetch the latest notifications live, aggregated into events (post bursts, follow bursts, singles) with enriched actor profiles."),
	mcp.WithNumber("limit",
		mcp.Description("Notifications to pull (default 50, max 200)"),
		mcp.Min(1),
		mcp.Max(float64(ops.MaxTimelineLimit)),
	),
	mcp.WithBoolean("include_posts",
		mcp.Description("Also fetch the posts events are about"),
	),
)

var profilesToolDef = mcp.NewTool("sky_profiles",
	mcp.WithDescription("Resolve actor ids or handles to profiles, cache-first. Results carry from_cache so you can tell a live fetch from a cached one."),
	mcp.WithArray("actors",
		mcp.Description("Actor ids (did:...) or handles, mixed"),
		mcp.Required(),
		mcp.Items(map[string]any{"type": "string"}),
	),
)

var topAccountsToolDef = mcp.NewTool("sky_top_accounts",
	mcp.WithDescription("Rank cached accounts by follower count or interaction volume. Reads only the local cache."),
	mcp.WithString("by",
		mcp.Description("Ranking mode"),
		mcp.Enum(ops.ByFollowers, ops.ByInteractions),
	),
	mcp.WithNumber("limit",
		mcp.Description("Entries to return (default 10, max 100)"),
		mcp.Min(1),
		mcp.Max(float64(ops.MaxTopLimit)),
	),
	mcp.WithNumber("min_followers",
		mcp.Description("Follower floor, followers mode only"),
		mcp.Min(0),
	),
)

var interactionsToolDef = mcp.NewTool("sky_interactions",
	mcp.WithDescription("Interaction history one account has with this one: per-reason counters, first and last contact, touched posts."),
	mcp.WithString("actor",
		mcp.Description("Actor id (did:...) or handle"),
		mcp.Required(),
	),
)

var statsToolDef = mcp.NewTool("sky_stats",
	mcp.WithDescription("Cache occupancy, rate limiter state, and recent sync runs."),
)

var sweepToolDef = mcp.NewTool("sky_sweep",
	mcp.WithDescription("Delete cached profiles past the staleness horizon. Interaction history is never swept."),
)

var clearToolDef = mcp.NewTool("sky_clear",
	mcp.WithDescription("Wipe all cached profiles, interaction history, and sync runs. Irreversible."),
	mcp.WithBoolean("confirm",
		mcp.Description("Must be true"),
		mcp.Required(),
	),
)
