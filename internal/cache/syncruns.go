package cache

import "database/sql"

// SyncRun records one stats-folding pull from the service. Mark is the
// IndexedAt of the newest notification folded, in Unix nanoseconds; the
// next sync folds only notifications strictly newer than the highest mark
// among finished runs.
type SyncRun struct {
	ID         string `json:"id"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at,omitempty"`
	Fetched    int64  `json:"fetched"`
	Folded     int64  `json:"folded"`
	Mark       int64  `json:"mark,omitempty"`
}

// BeginSyncRun records the start of a run.
func (s *Store) BeginSyncRun(id string, startedAt int64) {
	db, err := s.conn()
	if err != nil {
		s.degrade("begin sync run", err)
		return
	}

	if _, err := db.Exec(
		`INSERT INTO sync_runs (id, started_at) VALUES (?, ?)`,
		id, startedAt,
	); err != nil {
		s.degrade("begin sync run", err)
	}
}

// FinishSyncRun completes a run with its counts and high-water mark.
func (s *Store) FinishSyncRun(run SyncRun) {
	db, err := s.conn()
	if err != nil {
		s.degrade("finish sync run", err)
		return
	}

	if _, err := db.Exec(
		`UPDATE sync_runs SET finished_at = ?, fetched = ?, folded = ?, mark = ? WHERE id = ?`,
		run.FinishedAt, run.Fetched, run.Folded, run.Mark, run.ID,
	); err != nil {
		s.degrade("finish sync run", err)
	}
}

// LastSyncMark returns the highest mark among finished runs. ok is false
// when no finished run carries a mark, meaning the next sync starts from
// scratch.
func (s *Store) LastSyncMark() (mark int64, ok bool) {
	db, err := s.conn()
	if err != nil {
		s.degrade("last sync mark", err)
		return 0, false
	}

	var m sql.NullInt64
	err = db.QueryRow(
		`SELECT MAX(mark) FROM sync_runs WHERE finished_at IS NOT NULL AND mark > 0`,
	).Scan(&m)
	if err != nil {
		s.degrade("last sync mark", err)
		return 0, false
	}
	if !m.Valid || m.Int64 == 0 {
		return 0, false
	}
	return m.Int64, true
}

// ListSyncRuns returns the most recent finished runs, newest first.
// limit <= 0 means 10.
func (s *Store) ListSyncRuns(limit int) []SyncRun {
	if limit <= 0 {
		limit = 10
	}

	db, err := s.conn()
	if err != nil {
		s.degrade("list sync runs", err)
		return nil
	}

	rows, err := db.Query(`
		SELECT id, started_at, finished_at, fetched, folded, mark
		FROM sync_runs
		WHERE finished_at IS NOT NULL
		ORDER BY finished_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		s.degrade("list sync runs", err)
		return nil
	}
	defer rows.Close()

	var out []SyncRun
	for rows.Next() {
		var (
			run      SyncRun
			finished sql.NullInt64
		)
		if err := rows.Scan(&run.ID, &run.StartedAt, &finished, &run.Fetched, &run.Folded, &run.Mark); err != nil {
			s.degrade("list sync runs", err)
			return out
		}
		if finished.Valid {
			run.FinishedAt = finished.Int64
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		s.degrade("list sync runs", err)
	}
	return out
}
