package bsky

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmoskov/shadowsky-sub002/internal/errors"
)

// HTTPClient talks to an AT-protocol service over its XRPC read endpoints.
type HTTPClient struct {
	baseURL string
	token   string
	httpc   *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the service at baseURL. The token is
// sent as a Bearer credential on every request; pass "" for unauthenticated
// endpoints. Retry and backoff policy is the caller's concern, not the
// client's.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// ListNotifications implements Client.
func (c *HTTPClient) ListNotifications(ctx context.Context, limit int, cursor string) ([]Notification, string, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var body struct {
		Cursor        string `json:"cursor"`
		Notifications []struct {
			URI    string `json:"uri"`
			CID    string `json:"cid"`
			Reason string `json:"reason"`
			Author struct {
				DID         string `json:"did"`
				Handle      string `json:"handle"`
				DisplayName string `json:"displayName"`
				Avatar      string `json:"avatar"`
			} `json:"author"`
			ReasonSubject string          `json:"reasonSubject"`
			Record        json.RawMessage `json:"record"`
			IndexedAt     time.Time       `json:"indexedAt"`
		} `json:"notifications"`
	}
	if err := c.get(ctx, "/xrpc/app.bsky.notification.listNotifications", q, &body); err != nil {
		return nil, "", err
	}

	out := make([]Notification, 0, len(body.Notifications))
	for _, n := range body.Notifications {
		out = append(out, Notification{
			URI:    n.URI,
			CID:    n.CID,
			Reason: Reason(n.Reason),
			Author: Actor{
				DID:         n.Author.DID,
				Handle:      n.Author.Handle,
				DisplayName: n.Author.DisplayName,
				AvatarURL:   n.Author.Avatar,
			},
			SubjectURI: n.ReasonSubject,
			Excerpt:    recordText(n.Record),
			IndexedAt:  n.IndexedAt,
		})
	}
	return out, body.Cursor, nil
}

// GetProfile implements Client.
func (c *HTTPClient) GetProfile(ctx context.Context, actor string) (*ProfileSnapshot, error) {
	if actor == "" {
		return nil, errors.NewInvalidRequest("actor is required")
	}

	q := url.Values{}
	q.Set("actor", actor)

	var body profileView
	if err := c.get(ctx, "/xrpc/app.bsky.actor.getProfile", q, &body); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound(actor)
		}
		return nil, err
	}

	p := body.snapshot()
	return &p, nil
}

// GetProfiles implements Client.
func (c *HTTPClient) GetProfiles(ctx context.Context, actors []string) ([]ProfileSnapshot, error) {
	if len(actors) == 0 {
		return nil, nil
	}
	if len(actors) > MaxBatchActors {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("at most %d actors per call", MaxBatchActors))
	}

	q := url.Values{}
	for _, a := range actors {
		q.Add("actors", a)
	}

	var body struct {
		Profiles []profileView `json:"profiles"`
	}
	if err := c.get(ctx, "/xrpc/app.bsky.actor.getProfiles", q, &body); err != nil {
		return nil, err
	}

	out := make([]ProfileSnapshot, 0, len(body.Profiles))
	for _, p := range body.Profiles {
		out = append(out, p.snapshot())
	}
	return out, nil
}

// GetPosts implements Client.
func (c *HTTPClient) GetPosts(ctx context.Context, uris []string) ([]PostSnapshot, error) {
	if len(uris) == 0 {
		return nil, nil
	}
	if len(uris) > MaxBatchPosts {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("at most %d uris per call", MaxBatchPosts))
	}

	q := url.Values{}
	for _, u := range uris {
		q.Add("uris", u)
	}

	var body struct {
		Posts []struct {
			URI    string `json:"uri"`
			CID    string `json:"cid"`
			Author struct {
				DID string `json:"did"`
			} `json:"author"`
			Record      json.RawMessage `json:"record"`
			LikeCount   int64           `json:"likeCount"`
			RepostCount int64           `json:"repostCount"`
			ReplyCount  int64           `json:"replyCount"`
			IndexedAt   time.Time       `json:"indexedAt"`
		} `json:"posts"`
	}
	if err := c.get(ctx, "/xrpc/app.bsky.feed.getPosts", q, &body); err != nil {
		return nil, err
	}

	out := make([]PostSnapshot, 0, len(body.Posts))
	for _, p := range body.Posts {
		out = append(out, PostSnapshot{
			URI:       p.URI,
			CID:       p.CID,
			AuthorDID: p.Author.DID,
			Text:      recordText(p.Record),
			Likes:     p.LikeCount,
			Reposts:   p.RepostCount,
			Replies:   p.ReplyCount,
			IndexedAt: p.IndexedAt,
		})
	}
	return out, nil
}

// profileView is the wire shape shared by getProfile and getProfiles.
type profileView struct {
	DID            string `json:"did"`
	Handle         string `json:"handle"`
	DisplayName    string `json:"displayName"`
	Avatar         string `json:"avatar"`
	Description    string `json:"description"`
	FollowersCount int64  `json:"followersCount"`
	FollowsCount   int64  `json:"followsCount"`
	PostsCount     int64  `json:"postsCount"`
}

func (p profileView) snapshot() ProfileSnapshot {
	return ProfileSnapshot{
		DID:         p.DID,
		Handle:      p.Handle,
		DisplayName: p.DisplayName,
		AvatarURL:   p.Avatar,
		Bio:         p.Description,
		Followers:   p.FollowersCount,
		Following:   p.FollowsCount,
		Posts:       p.PostsCount,
	}
}

// recordText pulls the text field out of an embedded record, if any.
func recordText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var rec struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ""
	}
	return rec.Text
}

// get performs one GET against the service and decodes the JSON response,
// mapping failures onto the error taxonomy: 401/403 propagate as
// UNAUTHORIZED, 404 as NOT_FOUND, anything else unexpected as TRANSPORT.
func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.NewTransport(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.NewUnauthorized(resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return errors.NewNotFound(path)
	case resp.StatusCode == http.StatusBadRequest:
		return errors.NewInvalidRequest(fmt.Sprintf("service rejected request to %s", path))
	case resp.StatusCode != http.StatusOK:
		return errors.NewTransport(fmt.Errorf("%s: status %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewTransport(fmt.Errorf("%s: decode response: %w", path, err))
	}
	return nil
}
