package cache

import (
	"database/sql"
	"encoding/json"

	"github.com/dmoskov/shadowsky-sub002/internal/bsky"
)

// maxPostRefs bounds each per-reason subject list so one hot post can't
// grow a row without limit.
const maxPostRefs = 50

// InteractionStats accumulates everything one actor has ever done to the
// account. Records fold in new batches incrementally and never expire;
// Total always equals the sum of the per-reason counters.
type InteractionStats struct {
	ActorID   string `json:"actor_id"`
	Total     int64  `json:"total"`
	Likes     int64  `json:"likes"`
	Reposts   int64  `json:"reposts"`
	Follows   int64  `json:"follows"`
	Replies   int64  `json:"replies"`
	Mentions  int64  `json:"mentions"`
	Quotes    int64  `json:"quotes"`
	FirstSeen int64  `json:"first_seen"`
	LastSeen  int64  `json:"last_seen"`

	// PostRefs maps reason -> subject post URIs, most recent last,
	// capped at maxPostRefs per reason.
	PostRefs map[string][]string `json:"post_refs,omitempty"`
}

// Fold merges a batch of this actor's notifications into the record.
// Notifications with unknown reasons are ignored.
func (st *InteractionStats) Fold(ns []bsky.Notification) {
	for _, n := range ns {
		switch n.Reason {
		case bsky.ReasonLike:
			st.Likes++
		case bsky.ReasonRepost:
			st.Reposts++
		case bsky.ReasonFollow:
			st.Follows++
		case bsky.ReasonReply:
			st.Replies++
		case bsky.ReasonMention:
			st.Mentions++
		case bsky.ReasonQuote:
			st.Quotes++
		default:
			continue
		}

		ts := n.IndexedAt.Unix()
		if st.Total == 0 || ts < st.FirstSeen {
			st.FirstSeen = ts
		}
		if ts > st.LastSeen {
			st.LastSeen = ts
		}
		st.Total++

		if ref := subjectRef(n); ref != "" {
			st.addRef(string(n.Reason), ref)
		}
	}
}

// subjectRef picks the post URI an interaction is about. Follows have none.
func subjectRef(n bsky.Notification) string {
	if n.SubjectURI != "" {
		return n.SubjectURI
	}
	if n.Reason == bsky.ReasonFollow {
		return ""
	}
	return n.URI
}

func (st *InteractionStats) addRef(reason, uri string) {
	if st.PostRefs == nil {
		st.PostRefs = make(map[string][]string)
	}
	refs := st.PostRefs[reason]
	if len(refs) >= maxPostRefs {
		return
	}
	for _, r := range refs {
		if r == uri {
			return
		}
	}
	st.PostRefs[reason] = append(refs, uri)
}

// GetInteractions returns the accumulated stats for one actor. The second
// return reports whether a record exists.
func (s *Store) GetInteractions(actorID string) (*InteractionStats, bool) {
	db, err := s.conn()
	if err != nil {
		s.degrade("get interactions", err)
		return nil, false
	}

	row := db.QueryRow(interactionsSelect+` WHERE actor_id = ?`, actorID)
	st, err := scanInteractions(row.Scan)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.degrade("get interactions", err)
		return nil, false
	}
	return st, true
}

// PutInteractions stores the folded record for an actor. The write is a
// single-row upsert; last writer wins.
func (s *Store) PutInteractions(st *InteractionStats) {
	if st == nil || st.ActorID == "" {
		return
	}

	db, err := s.conn()
	if err != nil {
		s.degrade("put interactions", err)
		return
	}

	var refsJSON sql.NullString
	if len(st.PostRefs) > 0 {
		data, err := json.Marshal(st.PostRefs)
		if err != nil {
			s.degrade("put interactions", err)
			return
		}
		refsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO interactions (
			actor_id, total, likes, reposts, follows, replies, mentions, quotes,
			first_seen, last_seen, post_refs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(actor_id) DO UPDATE SET
			total      = excluded.total,
			likes      = excluded.likes,
			reposts    = excluded.reposts,
			follows    = excluded.follows,
			replies    = excluded.replies,
			mentions   = excluded.mentions,
			quotes     = excluded.quotes,
			first_seen = excluded.first_seen,
			last_seen  = excluded.last_seen,
			post_refs  = excluded.post_refs
	`
	if _, err := db.Exec(query,
		st.ActorID, st.Total, st.Likes, st.Reposts, st.Follows, st.Replies, st.Mentions, st.Quotes,
		st.FirstSeen, st.LastSeen, refsJSON,
	); err != nil {
		s.degrade("put interactions", err)
	}
}

// TopInteractions returns the most active actors by total interactions,
// ties broken on actor id. limit <= 0 means 20.
func (s *Store) TopInteractions(limit int) []InteractionStats {
	if limit <= 0 {
		limit = 20
	}

	db, err := s.conn()
	if err != nil {
		s.degrade("top interactions", err)
		return nil
	}

	rows, err := db.Query(interactionsSelect+`
		ORDER BY total DESC, actor_id ASC
		LIMIT ?`, limit)
	if err != nil {
		s.degrade("top interactions", err)
		return nil
	}
	defer rows.Close()

	var out []InteractionStats
	for rows.Next() {
		st, err := scanInteractions(rows.Scan)
		if err != nil {
			s.degrade("top interactions", err)
			return out
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		s.degrade("top interactions", err)
	}
	return out
}

const interactionsSelect = `
	SELECT actor_id, total, likes, reposts, follows, replies, mentions, quotes,
		first_seen, last_seen, post_refs
	FROM interactions`

// scanInteractions scans one row via the given Scan func, so it serves
// both sql.Row and sql.Rows.
func scanInteractions(scan func(...any) error) (*InteractionStats, error) {
	var (
		st       InteractionStats
		refsJSON sql.NullString
	)

	err := scan(
		&st.ActorID, &st.Total, &st.Likes, &st.Reposts, &st.Follows,
		&st.Replies, &st.Mentions, &st.Quotes,
		&st.FirstSeen, &st.LastSeen, &refsJSON,
	)
	if err != nil {
		return nil, err
	}

	if refsJSON.Valid && refsJSON.String != "" {
		if err := json.Unmarshal([]byte(refsJSON.String), &st.PostRefs); err != nil {
			return nil, err
		}
	}
	return &st, nil
}
