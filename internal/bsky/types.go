// Package bsky models the read surface of an AT-protocol service:
// the notification stream plus actor and post lookups.
package bsky

import (
	"context"
	"time"
)

// Reason identifies why a notification was generated.
type Reason string

const (
	ReasonLike    Reason = "like"
	ReasonRepost  Reason = "repost"
	ReasonFollow  Reason = "follow"
	ReasonReply   Reason = "reply"
	ReasonMention Reason = "mention"
	ReasonQuote   Reason = "quote"
)

// Reasons lists every notification reason the service emits.
var Reasons = []Reason{ReasonLike, ReasonRepost, ReasonFollow, ReasonReply, ReasonMention, ReasonQuote}

// Actor is the author view embedded in notifications.
type Actor struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Notification is one entry from the account's notification stream.
type Notification struct {
	// URI addresses the record that triggered the notification
	// (the like, the repost, the reply post, the follow record).
	URI string `json:"uri"`
	CID string `json:"cid,omitempty"`

	Reason Reason `json:"reason"`
	Author Actor  `json:"author"`

	// SubjectURI is the post the interaction is about: for likes, reposts,
	// and quotes this is the original post. Empty for follows.
	SubjectURI string `json:"subject_uri,omitempty"`

	// Excerpt carries the text of the triggering record when it has any
	// (replies, mentions, quotes).
	Excerpt string `json:"excerpt,omitempty"`

	IndexedAt time.Time `json:"indexed_at"`
}

// ProfileSnapshot is the service's current view of an actor.
type ProfileSnapshot struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Followers   int64  `json:"followers"`
	Following   int64  `json:"following"`
	Posts       int64  `json:"posts"`
}

// PostSnapshot is a fetched post view, used for timeline subject excerpts.
type PostSnapshot struct {
	URI       string    `json:"uri"`
	CID       string    `json:"cid,omitempty"`
	AuthorDID string    `json:"author_did"`
	Text      string    `json:"text,omitempty"`
	Likes     int64     `json:"likes"`
	Reposts   int64     `json:"reposts"`
	Replies   int64     `json:"replies"`
	IndexedAt time.Time `json:"indexed_at"`
}

// MaxBatchActors is the largest actor batch a single profile call accepts.
const MaxBatchActors = 25

// MaxBatchPosts is the largest URI batch a single post call accepts.
const MaxBatchPosts = 25

// Client is the read surface of the federated service.
type Client interface {
	// ListNotifications returns one page of the account's notifications,
	// newest first, with an opaque cursor for the next page (empty when
	// the stream is exhausted).
	ListNotifications(ctx context.Context, limit int, cursor string) ([]Notification, string, error)

	// GetProfile fetches one actor's profile by DID or handle.
	GetProfile(ctx context.Context, actor string) (*ProfileSnapshot, error)

	// GetProfiles fetches up to MaxBatchActors profiles by DID or handle.
	// Unknown actors are omitted from the result.
	GetProfiles(ctx context.Context, actors []string) ([]ProfileSnapshot, error)

	// GetPosts fetches up to MaxBatchPosts posts by URI.
	// Unknown URIs are omitted from the result.
	GetPosts(ctx context.Context, uris []string) ([]PostSnapshot, error)
}
