package web

import (
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmoskov/shadowsky-sub002/internal/aggregate"
	"github.com/dmoskov/shadowsky-sub002/internal/ops"
)

// Handlers contains HTTP route handlers for the dashboard.
type Handlers struct {
	deps     ops.Deps
	renderer *Renderer
}

// eventView joins one aggregated event with its resolved profiles and, when
// hydrated, its subject post, so templates never index the output maps.
type eventView struct {
	Event  aggregate.Event
	Actors []actorView
	Post   *postView
}

type actorView struct {
	ID        string
	Name      string
	AvatarURL string
}

type postView struct {
	URI     string
	Excerpt template.HTML
	Likes   int64
	Reposts int64
	Replies int64
}

// HandleTimeline handles GET /timeline, the aggregated notification feed.
func (h *Handlers) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", ops.DefaultTimelineLimit)
	includePosts := parseBoolParam(r, "posts", true)

	result, err := ops.Timeline(r.Context(), h.deps, ops.TimelineInput{
		Limit:        limit,
		IncludePosts: includePosts,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "timeline", TimelinePageData{
		PageData: PageData{
			Title:   "Timeline",
			Version: h.renderer.version,
			Nav:     "timeline",
		},
		Events:       eventViews(result),
		Fetched:      result.Fetched,
		Limit:        limit,
		IncludePosts: includePosts,
	})
}

// HandleAccounts handles GET /accounts: cached accounts ranked by
// follower count or interaction total.
func (h *Handlers) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("by")
	if by == "" {
		by = ops.ByFollowers
	}
	limit := parseIntParam(r, "limit", ops.DefaultTopLimit)
	minFollowers := int64(parseIntParam(r, "min_followers", 0))

	result, err := ops.TopAccounts(h.deps, ops.TopAccountsInput{
		By:           by,
		Limit:        limit,
		MinFollowers: minFollowers,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "accounts", AccountsPageData{
		PageData: PageData{
			Title:   "Top accounts",
			Version: h.renderer.version,
			Nav:     "accounts",
		},
		By:           result.By,
		MinFollowers: minFollowers,
		Limit:        limit,
		Items:        result.Items,
	})
}

// HandleInteractions handles GET /interactions. Without an actor it lists
// the top interactors; with ?actor= it shows that account's history.
func (h *Handlers) HandleInteractions(w http.ResponseWriter, r *http.Request) {
	actor := strings.TrimSpace(r.URL.Query().Get("actor"))

	data := InteractionsPageData{
		PageData: PageData{
			Title:   "Interactions",
			Version: h.renderer.version,
			Nav:     "interactions",
		},
		Actor:    actor,
		HasActor: actor != "",
		Limit:    parseIntParam(r, "limit", ops.DefaultTopLimit),
	}

	if actor == "" {
		result, err := ops.TopAccounts(h.deps, ops.TopAccountsInput{
			By:    ops.ByInteractions,
			Limit: data.Limit,
		})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		data.Items = result.Items
		h.renderer.renderPage(w, "interactions", data)
		return
	}

	result, err := ops.Interactions(h.deps, ops.InteractionsInput{Actor: actor})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data.Detail = result
	if result.Profile != nil && result.Profile.Bio != "" {
		data.Bio = renderMarkdown(result.Profile.Bio)
	}
	h.renderer.renderPage(w, "interactions", data)
}

// HandleStats handles GET /stats: cache occupancy, limiter state, sync runs.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Stats(h.deps)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "stats", StatsPageData{
		PageData: PageData{
			Title:   "Stats",
			Version: h.renderer.version,
			Nav:     "stats",
		},
		Stats: result,
	})
}

// eventViews resolves every event's actor ids against the enriched profile
// map and attaches the subject post when it was hydrated. Actors with no
// profile fall back to their raw id.
func eventViews(result *ops.TimelineOutput) []eventView {
	views := make([]eventView, 0, len(result.Events))
	for _, ev := range result.Events {
		v := eventView{Event: ev}
		for _, id := range ev.Actors {
			av := actorView{ID: id, Name: id}
			if p, ok := result.Profiles[id]; ok {
				av.AvatarURL = p.AvatarURL
				av.Name = p.Handle
				if p.DisplayName != "" {
					av.Name = p.DisplayName
				}
			}
			v.Actors = append(v.Actors, av)
		}
		if ev.SubjectURI != "" {
			if p, ok := result.Posts[ev.SubjectURI]; ok {
				v.Post = &postView{
					URI:     p.URI,
					Excerpt: renderMarkdown(p.Text),
					Likes:   p.Likes,
					Reposts: p.Reposts,
					Replies: p.Replies,
				}
			}
		}
		views = append(views, v)
	}
	return views
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter, keeping the default when
// the parameter is absent or unrecognized.
func parseBoolParam(r *http.Request, name string, defaultVal bool) bool {
	switch r.URL.Query().Get(name) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return defaultVal
	}
}
