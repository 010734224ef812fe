// Package aggregate clusters a flat notification stream into the events a
// timeline actually shows: bursts of activity on one post, waves of new
// followers, and the individually important rest. Aggregation is pure;
// the same input always yields the same output.
package aggregate

import (
	"sort"
	"time"

	"github.com/dmoskov/shadowsky-sub002/internal/bsky"
)

// Kind classifies an event.
type Kind string

const (
	KindSingle      Kind = "single"
	KindFollowBurst Kind = "follow-burst"
	KindPostBurst   Kind = "post-burst"
	KindMixed       Kind = "mixed"
)

// Intensity grades post bursts by how much activity landed how fast.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// Grouping thresholds.
const (
	postBurstMin   = 3
	followBurstMin = 2
	followChainGap = 2 * time.Hour

	highCount   = 10
	highSpan    = 6 * time.Hour
	mediumCount = 5
	mediumSpan  = 12 * time.Hour
)

// Event is one timeline entry built from one or more notifications.
type Event struct {
	// Time is the representative timestamp: the latest member's.
	Time time.Time `json:"time"`

	Kind Kind `json:"kind"`

	// Reasons and Actors are distinct, in order of first appearance
	// within the group.
	Reasons []bsky.Reason `json:"reasons"`
	Actors  []string      `json:"actors"`

	// SubjectURI is the post the event is about, when there is one.
	SubjectURI string `json:"subject_uri,omitempty"`

	// Intensity is set for post bursts (including mixed ones).
	Intensity Intensity `json:"intensity,omitempty"`

	// Notifications are the members, newest first.
	Notifications []bsky.Notification `json:"notifications"`
}

// Aggregate clusters notifications into events, newest first. Ties on the
// representative timestamp keep their grouping-pass order, so output is
// deterministic for identical input.
func Aggregate(ns []bsky.Notification) []Event {
	if len(ns) == 0 {
		return nil
	}

	var events []Event

	// Likes, reposts, and quotes group by the post they are about.
	// Follows collect for the chain pass. Replies and mentions (and any
	// reason the service invents later) stay individually important and
	// are never grouped.
	type postGroup struct {
		subject string
		members []bsky.Notification
	}
	groups := make(map[string]*postGroup)
	var groupOrder []string
	var follows []bsky.Notification

	for _, n := range ns {
		switch n.Reason {
		case bsky.ReasonLike, bsky.ReasonRepost, bsky.ReasonQuote:
			subj := subjectOf(n)
			g, ok := groups[subj]
			if !ok {
				g = &postGroup{subject: subj}
				groups[subj] = g
				groupOrder = append(groupOrder, subj)
			}
			g.members = append(g.members, n)
		case bsky.ReasonFollow:
			follows = append(follows, n)
		default:
			events = append(events, single(n))
		}
	}

	for _, subj := range groupOrder {
		g := groups[subj]
		if len(g.members) >= postBurstMin {
			events = append(events, postBurst(g.subject, g.members))
		} else {
			// Too small to be a burst; each member stands alone.
			for _, n := range g.members {
				events = append(events, single(n))
			}
		}
	}

	events = append(events, followEvents(follows)...)

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.After(events[j].Time)
	})
	return events
}

// subjectOf picks the post a notification is about: the declared subject
// when the service provides one, otherwise the triggering record itself.
// Follows are about no post at all.
func subjectOf(n bsky.Notification) string {
	if n.SubjectURI != "" {
		return n.SubjectURI
	}
	if n.Reason == bsky.ReasonFollow {
		return ""
	}
	return n.URI
}

func single(n bsky.Notification) Event {
	return Event{
		Time:          n.IndexedAt,
		Kind:          KindSingle,
		Reasons:       []bsky.Reason{n.Reason},
		Actors:        []string{n.Author.DID},
		SubjectURI:    subjectOf(n),
		Notifications: []bsky.Notification{n},
	}
}

func postBurst(subject string, members []bsky.Notification) Event {
	e := Event{
		Kind:       KindPostBurst,
		SubjectURI: subject,
	}

	seenActor := make(map[string]bool)
	seenReason := make(map[bsky.Reason]bool)
	earliest, latest := members[0].IndexedAt, members[0].IndexedAt
	for _, n := range members {
		if !seenActor[n.Author.DID] {
			seenActor[n.Author.DID] = true
			e.Actors = append(e.Actors, n.Author.DID)
		}
		if !seenReason[n.Reason] {
			seenReason[n.Reason] = true
			e.Reasons = append(e.Reasons, n.Reason)
		}
		if n.IndexedAt.Before(earliest) {
			earliest = n.IndexedAt
		}
		if n.IndexedAt.After(latest) {
			latest = n.IndexedAt
		}
	}
	if len(e.Reasons) > 1 {
		e.Kind = KindMixed
	}
	e.Time = latest

	span := latest.Sub(earliest)
	switch {
	case len(members) >= highCount && span <= highSpan:
		e.Intensity = IntensityHigh
	case len(members) >= mediumCount && span <= mediumSpan:
		e.Intensity = IntensityMedium
	default:
		e.Intensity = IntensityLow
	}

	e.Notifications = newestFirst(members)
	return e
}

// followEvents chains follows whose consecutive gaps stay within
// followChainGap; long enough chains become one follow-burst event,
// everything else falls back to singles.
func followEvents(follows []bsky.Notification) []Event {
	if len(follows) == 0 {
		return nil
	}

	asc := make([]bsky.Notification, len(follows))
	copy(asc, follows)
	sort.SliceStable(asc, func(i, j int) bool {
		return asc[i].IndexedAt.Before(asc[j].IndexedAt)
	})

	var events []Event
	flush := func(chain []bsky.Notification) {
		if len(chain) == 0 {
			return
		}
		if len(chain) < followBurstMin {
			for _, n := range chain {
				events = append(events, single(n))
			}
			return
		}

		e := Event{
			Kind:    KindFollowBurst,
			Time:    chain[len(chain)-1].IndexedAt,
			Reasons: []bsky.Reason{bsky.ReasonFollow},
		}
		seen := make(map[string]bool)
		for _, n := range chain {
			if !seen[n.Author.DID] {
				seen[n.Author.DID] = true
				e.Actors = append(e.Actors, n.Author.DID)
			}
		}
		e.Notifications = newestFirst(chain)
		events = append(events, e)
	}

	var chain []bsky.Notification
	for _, n := range asc {
		if len(chain) > 0 && n.IndexedAt.Sub(chain[len(chain)-1].IndexedAt) > followChainGap {
			flush(chain)
			chain = nil
		}
		chain = append(chain, n)
	}
	flush(chain)

	return events
}

func newestFirst(ns []bsky.Notification) []bsky.Notification {
	out := make([]bsky.Notification, len(ns))
	copy(out, ns)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IndexedAt.After(out[j].IndexedAt)
	})
	return out
}
