package cache

import (
	"database/sql"
	"strings"
)

// Profile is one cached actor profile. ActorID is the stable identity;
// Handle is unique right now but may move between actors over time.
// LastFetched is Unix seconds and never decreases for a given actor.
type Profile struct {
	ActorID     string `json:"actor_id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Followers   int64  `json:"followers"`
	Following   int64  `json:"following"`
	Posts       int64  `json:"posts"`
	LastFetched int64  `json:"last_fetched"`
}

// PutProfile stores a profile, replacing any previous record for the actor
// wholesale. LastFetched keeps the newer of the stored and incoming values.
// If another actor's record still claims the incoming handle, that record
// is evicted; its handle no longer belongs to it.
func (s *Store) PutProfile(p *Profile) {
	if p == nil || p.ActorID == "" {
		return
	}

	db, err := s.conn()
	if err != nil {
		s.degrade("put profile", err)
		return
	}

	tx, err := db.Begin()
	if err != nil {
		s.degrade("put profile", err)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM profiles WHERE handle = ? AND actor_id != ?`, p.Handle, p.ActorID); err != nil {
		s.degrade("put profile", err)
		return
	}

	query := `
		INSERT INTO profiles (
			actor_id, handle, display_name, avatar_url, bio,
			followers, following, posts, last_fetched
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(actor_id) DO UPDATE SET
			handle       = excluded.handle,
			display_name = excluded.display_name,
			avatar_url   = excluded.avatar_url,
			bio          = excluded.bio,
			followers    = excluded.followers,
			following    = excluded.following,
			posts        = excluded.posts,
			last_fetched = MAX(profiles.last_fetched, excluded.last_fetched)
	`
	if _, err := tx.Exec(query,
		p.ActorID, p.Handle, toNullString(p.DisplayName), toNullString(p.AvatarURL), toNullString(p.Bio),
		p.Followers, p.Following, p.Posts, p.LastFetched,
	); err != nil {
		s.degrade("put profile", err)
		return
	}

	if err := tx.Commit(); err != nil {
		s.degrade("put profile", err)
	}
}

// GetProfile returns the cached profile for an actor id, regardless of
// staleness. The second return reports whether a record exists.
func (s *Store) GetProfile(actorID string) (*Profile, bool) {
	db, err := s.conn()
	if err != nil {
		s.degrade("get profile", err)
		return nil, false
	}

	row := db.QueryRow(profileSelect+` WHERE actor_id = ?`, actorID)
	p, err := scanProfile(row.Scan)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.degrade("get profile", err)
		return nil, false
	}
	return p, true
}

// GetProfileByHandle looks a profile up through the unique handle index.
func (s *Store) GetProfileByHandle(handle string) (*Profile, bool) {
	db, err := s.conn()
	if err != nil {
		s.degrade("get profile by handle", err)
		return nil, false
	}

	row := db.QueryRow(profileSelect+` WHERE handle = ?`, handle)
	p, err := scanProfile(row.Scan)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.degrade("get profile by handle", err)
		return nil, false
	}
	return p, true
}

// getProfilesChunk is the largest IN(...) list a single query uses.
const getProfilesChunk = 100

// GetProfiles batch-reads profiles by actor id. Missing actors are simply
// absent from the result map.
func (s *Store) GetProfiles(actorIDs []string) map[string]*Profile {
	out := make(map[string]*Profile, len(actorIDs))
	if len(actorIDs) == 0 {
		return out
	}

	db, err := s.conn()
	if err != nil {
		s.degrade("get profiles", err)
		return out
	}

	for start := 0; start < len(actorIDs); start += getProfilesChunk {
		end := start + getProfilesChunk
		if end > len(actorIDs) {
			end = len(actorIDs)
		}
		chunk := actorIDs[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := db.Query(profileSelect+` WHERE actor_id IN (`+placeholders+`)`, args...)
		if err != nil {
			s.degrade("get profiles", err)
			return out
		}
		for rows.Next() {
			p, err := scanProfile(rows.Scan)
			if err != nil {
				rows.Close()
				s.degrade("get profiles", err)
				return out
			}
			out[p.ActorID] = p
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			s.degrade("get profiles", err)
			return out
		}
		rows.Close()
	}
	return out
}

// IsStale reports whether the actor needs a fresh fetch: no record at all,
// or one older than the staleness horizon. Exactly at the horizon still
// counts as fresh.
func (s *Store) IsStale(actorID string) bool {
	db, err := s.conn()
	if err != nil {
		s.degrade("is stale", err)
		return true
	}

	var lastFetched int64
	err = db.QueryRow(`SELECT last_fetched FROM profiles WHERE actor_id = ?`, actorID).Scan(&lastFetched)
	if err == sql.ErrNoRows {
		return true
	}
	if err != nil {
		s.degrade("is stale", err)
		return true
	}

	age := s.clock().Unix() - lastFetched
	return age > int64(s.staleAfter.Seconds())
}

// SweepStale deletes every profile older than the staleness horizon and
// returns how many were removed. Interaction stats are never swept.
func (s *Store) SweepStale() int64 {
	db, err := s.conn()
	if err != nil {
		s.degrade("sweep stale", err)
		return 0
	}

	cutoff := s.clock().Unix() - int64(s.staleAfter.Seconds())
	res, err := db.Exec(`DELETE FROM profiles WHERE last_fetched < ?`, cutoff)
	if err != nil {
		s.degrade("sweep stale", err)
		return 0
	}
	n, _ := res.RowsAffected()
	return n
}

// TopByFollowers returns cached profiles with at least minFollowers,
// ordered by follower count descending. Ties break on actor id so the
// order is deterministic. limit <= 0 means 20.
func (s *Store) TopByFollowers(minFollowers int64, limit int) []Profile {
	if limit <= 0 {
		limit = 20
	}

	db, err := s.conn()
	if err != nil {
		s.degrade("top by followers", err)
		return nil
	}

	rows, err := db.Query(profileSelect+`
		WHERE followers >= ?
		ORDER BY followers DESC, actor_id ASC
		LIMIT ?`, minFollowers, limit)
	if err != nil {
		s.degrade("top by followers", err)
		return nil
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			s.degrade("top by followers", err)
			return out
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		s.degrade("top by followers", err)
	}
	return out
}

const profileSelect = `
	SELECT actor_id, handle, display_name, avatar_url, bio,
		followers, following, posts, last_fetched
	FROM profiles`

// scanProfile scans one row via the given Scan func, so it serves both
// sql.Row and sql.Rows.
func scanProfile(scan func(...any) error) (*Profile, error) {
	var (
		p           Profile
		displayName sql.NullString
		avatarURL   sql.NullString
		bio         sql.NullString
	)

	err := scan(
		&p.ActorID, &p.Handle, &displayName, &avatarURL, &bio,
		&p.Followers, &p.Following, &p.Posts, &p.LastFetched,
	)
	if err != nil {
		return nil, err
	}

	p.DisplayName = fromNullString(displayName)
	p.AvatarURL = fromNullString(avatarURL)
	p.Bio = fromNullString(bio)
	return &p, nil
}

// toNullString converts an optional string to sql.NullString.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// fromNullString converts a sql.NullString back to a plain string.
func fromNullString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
