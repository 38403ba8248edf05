package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite. The game runs as a
// single-player desktop process, so a cgo-free embedded database is the
// default durable backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS segment_turns (
		module_id     TEXT NOT NULL,
		seq           INTEGER NOT NULL,
		role          TEXT NOT NULL,
		content       TEXT NOT NULL,
		class         TEXT NOT NULL,
		state         TEXT NOT NULL DEFAULT 'verbatim',
		attempts      INTEGER NOT NULL DEFAULT 0,
		next_retry_at TEXT,
		created_at    TEXT NOT NULL,
		PRIMARY KEY (module_id, seq)
	);

	CREATE TABLE IF NOT EXISTS archives (
		module_id   TEXT PRIMARY KEY,
		id          TEXT NOT NULL,
		turns       TEXT NOT NULL,
		archived_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS living_summaries (
		module_id      TEXT PRIMARY KEY,
		narrative_text TEXT NOT NULL,
		visit_count    INTEGER NOT NULL DEFAULT 0,
		first_visit_at TEXT NOT NULL,
		last_visit_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS module_visits (
		module_id  TEXT PRIMARY KEY,
		state      TEXT NOT NULL,
		active     INTEGER NOT NULL DEFAULT 0,
		entered_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS compression_events (
		id               TEXT PRIMARY KEY,
		module_id        TEXT NOT NULL,
		turns_eligible   INTEGER NOT NULL,
		turns_compressed INTEGER NOT NULL,
		turns_deferred   INTEGER NOT NULL,
		cache_hits       INTEGER NOT NULL,
		original_chars   INTEGER NOT NULL,
		compressed_chars INTEGER NOT NULL,
		duration_ms      INTEGER NOT NULL,
		created_at       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_compression_events_module ON compression_events(module_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, moduleID string, t Turn) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO segment_turns (module_id, seq, role, content, class, state, attempts, next_retry_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		moduleID, t.Seq, string(t.Role), t.Content, string(t.Class), string(t.State),
		t.Attempts, nullableTime(t.NextRetryAt), t.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceTurnContent(ctx context.Context, moduleID string, t Turn) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE segment_turns
		SET content = ?, state = ?, attempts = ?, next_retry_at = ?
		WHERE module_id = ? AND seq = ?`,
		t.Content, string(t.State), t.Attempts, nullableTime(t.NextRetryAt), moduleID, t.Seq)
	if err != nil {
		return fmt.Errorf("replace turn content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("replace turn content: seq %d not found in module %s", t.Seq, moduleID)
	}
	return nil
}

func (s *SQLiteStore) LoadSegment(ctx context.Context, moduleID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, role, content, class, state, attempts, next_retry_at, created_at
		FROM segment_turns
		WHERE module_id = ?
		ORDER BY seq`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("load segment: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t         Turn
			retryAt   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&t.Seq, &t.Role, &t.Content, &t.Class, &t.State, &t.Attempts, &retryAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Timestamp = parseTime(createdAt)
		if retryAt.Valid {
			t.NextRetryAt = parseTime(retryAt.String)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) ReplaceSegment(ctx context.Context, moduleID string, turns []Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace segment: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM segment_turns WHERE module_id = ?`, moduleID); err != nil {
		return fmt.Errorf("replace segment: %w", err)
	}
	for _, t := range turns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO segment_turns (module_id, seq, role, content, class, state, attempts, next_retry_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			moduleID, t.Seq, string(t.Role), t.Content, string(t.Class), string(t.State),
			t.Attempts, nullableTime(t.NextRetryAt), t.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("replace segment: insert seq %d: %w", t.Seq, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ClearSegment(ctx context.Context, moduleID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM segment_turns WHERE module_id = ?`, moduleID)
	if err != nil {
		return fmt.Errorf("clear segment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceArchive(ctx context.Context, rec ArchiveRecord) error {
	if rec.ModuleID == "" {
		return fmt.Errorf("replace archive: module id is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now().UTC()
	}

	turnsJSON, err := json.Marshal(rec.Turns)
	if err != nil {
		return fmt.Errorf("replace archive: marshal turns: %w", err)
	}

	// Single upsert statement: either the row is fully replaced or the
	// prior archive is untouched.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO archives (module_id, id, turns, archived_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(module_id) DO UPDATE SET
			id = excluded.id,
			turns = excluded.turns,
			archived_at = excluded.archived_at`,
		rec.ModuleID, rec.ID, string(turnsJSON), rec.ArchivedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetArchive(ctx context.Context, moduleID string) (*ArchiveRecord, error) {
	var (
		rec        ArchiveRecord
		turnsJSON  string
		archivedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT module_id, id, turns, archived_at FROM archives WHERE module_id = ?`, moduleID).
		Scan(&rec.ModuleID, &rec.ID, &turnsJSON, &archivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArchiveNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get archive: %w", err)
	}
	if err := json.Unmarshal([]byte(turnsJSON), &rec.Turns); err != nil {
		return nil, fmt.Errorf("get archive: unmarshal turns: %w", err)
	}
	rec.ArchivedAt = parseTime(archivedAt)
	return &rec, nil
}

func (s *SQLiteStore) ListArchives(ctx context.Context) ([]*ArchiveRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT module_id, id, turns, archived_at FROM archives ORDER BY archived_at`)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	var out []*ArchiveRecord
	for rows.Next() {
		var (
			rec        ArchiveRecord
			turnsJSON  string
			archivedAt string
		)
		if err := rows.Scan(&rec.ModuleID, &rec.ID, &turnsJSON, &archivedAt); err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		if err := json.Unmarshal([]byte(turnsJSON), &rec.Turns); err != nil {
			return nil, fmt.Errorf("unmarshal archive turns: %w", err)
		}
		rec.ArchivedAt = parseTime(archivedAt)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ReplaceLivingSummary(ctx context.Context, sum LivingSummary) error {
	if sum.ModuleID == "" {
		return fmt.Errorf("replace living summary: module id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO living_summaries (module_id, narrative_text, visit_count, first_visit_at, last_visit_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(module_id) DO UPDATE SET
			narrative_text = excluded.narrative_text,
			visit_count = excluded.visit_count,
			last_visit_at = excluded.last_visit_at`,
		sum.ModuleID, sum.NarrativeText, sum.VisitCount,
		sum.FirstVisitAt.UTC().Format(time.RFC3339Nano),
		sum.LastVisitAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("replace living summary: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetLivingSummary(ctx context.Context, moduleID string) (*LivingSummary, error) {
	var (
		sum        LivingSummary
		firstVisit string
		lastVisit  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT module_id, narrative_text, visit_count, first_visit_at, last_visit_at
		FROM living_summaries WHERE module_id = ?`, moduleID).
		Scan(&sum.ModuleID, &sum.NarrativeText, &sum.VisitCount, &firstVisit, &lastVisit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get living summary: %w", err)
	}
	sum.FirstVisitAt = parseTime(firstVisit)
	sum.LastVisitAt = parseTime(lastVisit)
	return &sum, nil
}

func (s *SQLiteStore) ListLivingSummaries(ctx context.Context) ([]*LivingSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT module_id, narrative_text, visit_count, first_visit_at, last_visit_at
		FROM living_summaries ORDER BY last_visit_at`)
	if err != nil {
		return nil, fmt.Errorf("list living summaries: %w", err)
	}
	defer rows.Close()

	var out []*LivingSummary
	for rows.Next() {
		var (
			sum        LivingSummary
			firstVisit string
			lastVisit  string
		)
		if err := rows.Scan(&sum.ModuleID, &sum.NarrativeText, &sum.VisitCount, &firstVisit, &lastVisit); err != nil {
			return nil, fmt.Errorf("scan living summary: %w", err)
		}
		sum.FirstVisitAt = parseTime(firstVisit)
		sum.LastVisitAt = parseTime(lastVisit)
		out = append(out, &sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertVisit(ctx context.Context, v ModuleVisit) error {
	if v.ModuleID == "" {
		return fmt.Errorf("upsert visit: module id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert visit: %w", err)
	}
	defer tx.Rollback()

	if v.Active {
		if _, err := tx.ExecContext(ctx,
			`UPDATE module_visits SET active = 0 WHERE module_id != ?`, v.ModuleID); err != nil {
			return fmt.Errorf("upsert visit: deactivate others: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO module_visits (module_id, state, active, entered_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(module_id) DO UPDATE SET
			state = excluded.state,
			active = excluded.active,
			entered_at = excluded.entered_at,
			updated_at = excluded.updated_at`,
		v.ModuleID, string(v.State), boolInt(v.Active),
		v.EnteredAt.UTC().Format(time.RFC3339Nano),
		v.UpdatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("upsert visit: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetVisit(ctx context.Context, moduleID string) (*ModuleVisit, error) {
	return s.scanVisit(s.db.QueryRowContext(ctx, `
		SELECT module_id, state, active, entered_at, updated_at
		FROM module_visits WHERE module_id = ?`, moduleID))
}

func (s *SQLiteStore) ActiveVisit(ctx context.Context) (*ModuleVisit, error) {
	return s.scanVisit(s.db.QueryRowContext(ctx, `
		SELECT module_id, state, active, entered_at, updated_at
		FROM module_visits WHERE active = 1`))
}

func (s *SQLiteStore) scanVisit(row *sql.Row) (*ModuleVisit, error) {
	var (
		v         ModuleVisit
		active    int
		enteredAt string
		updatedAt string
	)
	err := row.Scan(&v.ModuleID, &v.State, &active, &enteredAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVisitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan visit: %w", err)
	}
	v.Active = active != 0
	v.EnteredAt = parseTime(enteredAt)
	v.UpdatedAt = parseTime(updatedAt)
	return &v, nil
}

func (s *SQLiteStore) SaveCompressionEvent(ctx context.Context, ev CompressionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compression_events (id, module_id, turns_eligible, turns_compressed, turns_deferred,
			cache_hits, original_chars, compressed_chars, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ModuleID, ev.TurnsEligible, ev.TurnsCompressed, ev.TurnsDeferred,
		ev.CacheHits, ev.OriginalChars, ev.CompressedChars, ev.DurationMs,
		ev.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save compression event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCompressionHistory(ctx context.Context, moduleID string) ([]*CompressionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, module_id, turns_eligible, turns_compressed, turns_deferred,
			cache_hits, original_chars, compressed_chars, duration_ms, created_at
		FROM compression_events WHERE module_id = ? ORDER BY created_at`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("get compression history: %w", err)
	}
	defer rows.Close()

	var out []*CompressionEvent
	for rows.Next() {
		var (
			ev        CompressionEvent
			createdAt string
		)
		if err := rows.Scan(&ev.ID, &ev.ModuleID, &ev.TurnsEligible, &ev.TurnsCompressed,
			&ev.TurnsDeferred, &ev.CacheHits, &ev.OriginalChars, &ev.CompressedChars,
			&ev.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan compression event: %w", err)
		}
		ev.CreatedAt = parseTime(createdAt)
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
