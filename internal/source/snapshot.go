package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/agis/avail/internal/contract"
)

// SnapshotStore persists point-in-time copies of fetched events in a local
// sqlite database. Snapshots let agents pin a consistent view of a calendar
// across several avail invocations, and work offline afterwards.
type SnapshotStore struct {
	db *sql.DB
}

type SnapshotInfo struct {
	ID         string    `json:"id"`
	TakenAt    time.Time `json:"taken_at"`
	Source     string    `json:"source"`
	EventCount int       `json:"event_count"`
}

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	taken_at TEXT NOT NULL,
	source TEXT NOT NULL,
	event_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshot_events (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshot_events_snapshot ON snapshot_events(snapshot_id);
`

func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	if _, err := db.Exec(snapshotSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init snapshot schema: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

func (st *SnapshotStore) Close() error { return st.db.Close() }

func (st *SnapshotStore) Save(ctx context.Context, sourceName string, events []contract.Event) (SnapshotInfo, error) {
	info := SnapshotInfo{
		ID:         uuid.NewString(),
		TakenAt:    time.Now().UTC().Truncate(time.Second),
		Source:     sourceName,
		EventCount: len(events),
	}
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, taken_at, source, event_count) VALUES (?, ?, ?, ?)`,
		info.ID, info.TakenAt.Format(time.RFC3339), info.Source, info.EventCount)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("insert snapshot row: %w", err)
	}
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return SnapshotInfo{}, fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO snapshot_events (snapshot_id, payload) VALUES (?, ?)`,
			info.ID, string(payload))
		if err != nil {
			return SnapshotInfo{}, fmt.Errorf("insert snapshot event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return SnapshotInfo{}, fmt.Errorf("commit snapshot: %w", err)
	}
	return info, nil
}

func (st *SnapshotStore) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := st.db.QueryContext(ctx,
		`SELECT id, taken_at, source, event_count FROM snapshots ORDER BY taken_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var takenAt string
		if err := rows.Scan(&info.ID, &takenAt, &info.Source, &info.EventCount); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, takenAt); err == nil {
			info.TakenAt = t
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Load returns the events of one snapshot. An empty id means the most
// recent snapshot.
func (st *SnapshotStore) Load(ctx context.Context, id string) (SnapshotInfo, []contract.Event, error) {
	var info SnapshotInfo
	var takenAt string
	var err error
	if id == "" {
		err = st.db.QueryRowContext(ctx,
			`SELECT id, taken_at, source, event_count FROM snapshots ORDER BY taken_at DESC, id LIMIT 1`).
			Scan(&info.ID, &takenAt, &info.Source, &info.EventCount)
	} else {
		err = st.db.QueryRowContext(ctx,
			`SELECT id, taken_at, source, event_count FROM snapshots WHERE id = ?`, id).
			Scan(&info.ID, &takenAt, &info.Source, &info.EventCount)
	}
	if err == sql.ErrNoRows {
		return SnapshotInfo{}, nil, fmt.Errorf("snapshot not found")
	}
	if err != nil {
		return SnapshotInfo{}, nil, fmt.Errorf("load snapshot: %w", err)
	}
	if t, perr := time.Parse(time.RFC3339, takenAt); perr == nil {
		info.TakenAt = t
	}

	rows, err := st.db.QueryContext(ctx,
		`SELECT payload FROM snapshot_events WHERE snapshot_id = ?`, info.ID)
	if err != nil {
		return SnapshotInfo{}, nil, fmt.Errorf("load snapshot events: %w", err)
	}
	defer rows.Close()

	var events []contract.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return SnapshotInfo{}, nil, fmt.Errorf("scan snapshot event: %w", err)
		}
		var ev contract.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return SnapshotInfo{}, nil, fmt.Errorf("decode snapshot event: %w", err)
		}
		events = append(events, ev)
	}
	return info, events, rows.Err()
}

// Prune deletes all but the newest keep snapshots and reports how many were
// removed.
func (st *SnapshotStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := st.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY taken_at DESC, id LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	if _, err := st.db.ExecContext(ctx, `
		DELETE FROM snapshot_events WHERE snapshot_id NOT IN (SELECT id FROM snapshots)`); err != nil {
		return 0, fmt.Errorf("prune snapshot events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// SnapshotSource serves one stored snapshot through the Source interface,
// so every read command can run against pinned data via --source snapshot.
type SnapshotSource struct {
	Store *SnapshotStore
	ID    string
	Loc   *time.Location
}

func (s *SnapshotSource) Doctor(ctx context.Context) ([]contract.SourceCheck, error) {
	info, events, err := s.Store.Load(ctx, s.ID)
	if err != nil {
		return []contract.SourceCheck{{Name: "snapshot", Status: "fail", Message: err.Error()}}, nil
	}
	return []contract.SourceCheck{{
		Name:    "snapshot",
		Status:  "ok",
		Message: fmt.Sprintf("%s from %s, %d events", info.ID, info.TakenAt.Format(time.RFC3339), len(events)),
	}}, nil
}

func (s *SnapshotSource) ListCalendars(ctx context.Context) ([]contract.Calendar, error) {
	_, events, err := s.Store.Load(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var cals []contract.Calendar
	for _, ev := range events {
		if ev.CalendarID == "" || seen[ev.CalendarID] {
			continue
		}
		seen[ev.CalendarID] = true
		cals = append(cals, contract.Calendar{ID: ev.CalendarID, Summary: ev.CalendarID})
	}
	return cals, nil
}

func (s *SnapshotSource) ListEvents(ctx context.Context, f Filter) ([]contract.Event, error) {
	_, events, err := s.Store.Load(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	if !f.From.IsZero() && !f.To.IsZero() {
		events = ExpandRecurring(events, f.From, f.To, s.Loc)
	}
	var out []contract.Event
	for _, ev := range events {
		if matchesFilter(ev, f, s.Loc) {
			out = append(out, ev)
		}
	}
	sortEventsByStart(out, s.Loc)
	return applyLimit(out, f.Limit), nil
}
