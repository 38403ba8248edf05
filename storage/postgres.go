package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL with pgx. It is the
// backend for hosted deployments where the game runs server-side.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store. Migrate must be called
// once before use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the questlog tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS questlog_segment_turns (
		module_id     TEXT NOT NULL,
		seq           INTEGER NOT NULL,
		role          TEXT NOT NULL,
		content       TEXT NOT NULL,
		class         TEXT NOT NULL,
		state         TEXT NOT NULL DEFAULT 'verbatim',
		attempts      INTEGER NOT NULL DEFAULT 0,
		next_retry_at TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (module_id, seq)
	);

	CREATE TABLE IF NOT EXISTS questlog_archives (
		module_id   TEXT PRIMARY KEY,
		id          UUID NOT NULL,
		turns       JSONB NOT NULL,
		archived_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questlog_living_summaries (
		module_id      TEXT PRIMARY KEY,
		narrative_text TEXT NOT NULL,
		visit_count    INTEGER NOT NULL DEFAULT 0,
		first_visit_at TIMESTAMPTZ NOT NULL,
		last_visit_at  TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questlog_module_visits (
		module_id  TEXT PRIMARY KEY,
		state      TEXT NOT NULL,
		active     BOOLEAN NOT NULL DEFAULT FALSE,
		entered_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questlog_compression_events (
		id               UUID PRIMARY KEY,
		module_id        TEXT NOT NULL,
		turns_eligible   INTEGER NOT NULL,
		turns_compressed INTEGER NOT NULL,
		turns_deferred   INTEGER NOT NULL,
		cache_hits       INTEGER NOT NULL,
		original_chars   INTEGER NOT NULL,
		compressed_chars INTEGER NOT NULL,
		duration_ms      BIGINT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_questlog_compression_events_module
		ON questlog_compression_events(module_id, created_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) AppendTurn(ctx context.Context, moduleID string, t Turn) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO questlog_segment_turns (module_id, seq, role, content, class, state, attempts, next_retry_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		moduleID, t.Seq, string(t.Role), t.Content, string(t.Class), string(t.State),
		t.Attempts, pgTime(t.NextRetryAt), t.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceTurnContent(ctx context.Context, moduleID string, t Turn) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE questlog_segment_turns
		SET content = $1, state = $2, attempts = $3, next_retry_at = $4
		WHERE module_id = $5 AND seq = $6`,
		t.Content, string(t.State), t.Attempts, pgTime(t.NextRetryAt), moduleID, t.Seq)
	if err != nil {
		return fmt.Errorf("replace turn content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("replace turn content: seq %d not found in module %s", t.Seq, moduleID)
	}
	return nil
}

func (s *PostgresStore) LoadSegment(ctx context.Context, moduleID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, role, content, class, state, attempts, next_retry_at, created_at
		FROM questlog_segment_turns
		WHERE module_id = $1
		ORDER BY seq`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("load segment: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t       Turn
			retryAt *time.Time
		)
		if err := rows.Scan(&t.Seq, &t.Role, &t.Content, &t.Class, &t.State, &t.Attempts, &retryAt, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if retryAt != nil {
			t.NextRetryAt = *retryAt
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *PostgresStore) ReplaceSegment(ctx context.Context, moduleID string, turns []Turn) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("replace segment: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questlog_segment_turns WHERE module_id = $1`, moduleID); err != nil {
		return fmt.Errorf("replace segment: %w", err)
	}
	for _, t := range turns {
		if _, err := tx.Exec(ctx, `
			INSERT INTO questlog_segment_turns (module_id, seq, role, content, class, state, attempts, next_retry_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			moduleID, t.Seq, string(t.Role), t.Content, string(t.Class), string(t.State),
			t.Attempts, pgTime(t.NextRetryAt), t.Timestamp.UTC()); err != nil {
			return fmt.Errorf("replace segment: insert seq %d: %w", t.Seq, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ClearSegment(ctx context.Context, moduleID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM questlog_segment_turns WHERE module_id = $1`, moduleID)
	if err != nil {
		return fmt.Errorf("clear segment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceArchive(ctx context.Context, rec ArchiveRecord) error {
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO questlog_archives (module_id, id, turns, archived_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (module_id) DO UPDATE SET
			id = EXCLUDED.id,
			turns = EXCLUDED.turns,
			archived_at = EXCLUDED.archived_at`,
		rec.ModuleID, rec.ID, turnsJSON, rec.ArchivedAt.UTC())
	if err != nil {
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetArchive(ctx context.Context, moduleID string) (*ArchiveRecord, error) {
	var (
		rec       ArchiveRecord
		turnsJSON []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT module_id, id, turns, archived_at FROM questlog_archives WHERE module_id = $1`, moduleID).
		Scan(&rec.ModuleID, &rec.ID, &turnsJSON, &rec.ArchivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrArchiveNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get archive: %w", err)
	}
	if err := json.Unmarshal(turnsJSON, &rec.Turns); err != nil {
		return nil, fmt.Errorf("get archive: unmarshal turns: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) ListArchives(ctx context.Context) ([]*ArchiveRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT module_id, id, turns, archived_at FROM questlog_archives ORDER BY archived_at`)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	var out []*ArchiveRecord
	for rows.Next() {
		var (
			rec       ArchiveRecord
			turnsJSON []byte
		)
		if err := rows.Scan(&rec.ModuleID, &rec.ID, &turnsJSON, &rec.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		if err := json.Unmarshal(turnsJSON, &rec.Turns); err != nil {
			return nil, fmt.Errorf("unmarshal archive turns: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReplaceLivingSummary(ctx context.Context, sum LivingSummary) error {
	if sum.ModuleID == "" {
		return fmt.Errorf("replace living summary: module id is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO questlog_living_summaries (module_id, narrative_text, visit_count, first_visit_at, last_visit_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (module_id) DO UPDATE SET
			narrative_text = EXCLUDED.narrative_text,
			visit_count = EXCLUDED.visit_count,
			last_visit_at = EXCLUDED.last_visit_at`,
		sum.ModuleID, sum.NarrativeText, sum.VisitCount, sum.FirstVisitAt.UTC(), sum.LastVisitAt.UTC())
	if err != nil {
		return fmt.Errorf("replace living summary: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLivingSummary(ctx context.Context, moduleID string) (*LivingSummary, error) {
	var sum LivingSummary
	err := s.pool.QueryRow(ctx, `
		SELECT module_id, narrative_text, visit_count, first_visit_at, last_visit_at
		FROM questlog_living_summaries WHERE module_id = $1`, moduleID).
		Scan(&sum.ModuleID, &sum.NarrativeText, &sum.VisitCount, &sum.FirstVisitAt, &sum.LastVisitAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get living summary: %w", err)
	}
	return &sum, nil
}

func (s *PostgresStore) ListLivingSummaries(ctx context.Context) ([]*LivingSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT module_id, narrative_text, visit_count, first_visit_at, last_visit_at
		FROM questlog_living_summaries ORDER BY last_visit_at`)
	if err != nil {
		return nil, fmt.Errorf("list living summaries: %w", err)
	}
	defer rows.Close()

	var out []*LivingSummary
	for rows.Next() {
		var sum LivingSummary
		if err := rows.Scan(&sum.ModuleID, &sum.NarrativeText, &sum.VisitCount, &sum.FirstVisitAt, &sum.LastVisitAt); err != nil {
			return nil, fmt.Errorf("scan living summary: %w", err)
		}
		out = append(out, &sum)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertVisit(ctx context.Context, v ModuleVisit) error {
	if v.ModuleID == "" {
		return fmt.Errorf("upsert visit: module id is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("upsert visit: %w", err)
	}
	defer tx.Rollback(ctx)

	if v.Active {
		if _, err := tx.Exec(ctx,
			`UPDATE questlog_module_visits SET active = FALSE WHERE module_id != $1`, v.ModuleID); err != nil {
			return fmt.Errorf("upsert visit: deactivate others: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO questlog_module_visits (module_id, state, active, entered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (module_id) DO UPDATE SET
			state = EXCLUDED.state,
			active = EXCLUDED.active,
			entered_at = EXCLUDED.entered_at,
			updated_at = EXCLUDED.updated_at`,
		v.ModuleID, string(v.State), v.Active, v.EnteredAt.UTC(), v.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("upsert visit: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetVisit(ctx context.Context, moduleID string) (*ModuleVisit, error) {
	var v ModuleVisit
	err := s.pool.QueryRow(ctx, `
		SELECT module_id, state, active, entered_at, updated_at
		FROM questlog_module_visits WHERE module_id = $1`, moduleID).
		Scan(&v.ModuleID, &v.State, &v.Active, &v.EnteredAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVisitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return &v, nil
}

func (s *PostgresStore) ActiveVisit(ctx context.Context) (*ModuleVisit, error) {
	var v ModuleVisit
	err := s.pool.QueryRow(ctx, `
		SELECT module_id, state, active, entered_at, updated_at
		FROM questlog_module_visits WHERE active = TRUE`).
		Scan(&v.ModuleID, &v.State, &v.Active, &v.EnteredAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVisitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active visit: %w", err)
	}
	return &v, nil
}

func (s *PostgresStore) SaveCompressionEvent(ctx context.Context, ev CompressionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO questlog_compression_events (id, module_id, turns_eligible, turns_compressed, turns_deferred,
			cache_hits, original_chars, compressed_chars, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ev.ID, ev.ModuleID, ev.TurnsEligible, ev.TurnsCompressed, ev.TurnsDeferred,
		ev.CacheHits, ev.OriginalChars, ev.CompressedChars, ev.DurationMs, ev.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save compression event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCompressionHistory(ctx context.Context, moduleID string) ([]*CompressionEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, module_id, turns_eligible, turns_compressed, turns_deferred,
			cache_hits, original_chars, compressed_chars, duration_ms, created_at
		FROM questlog_compression_events WHERE module_id = $1 ORDER BY created_at`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("get compression history: %w", err)
	}
	defer rows.Close()

	var out []*CompressionEvent
	for rows.Next() {
		var ev CompressionEvent
		if err := rows.Scan(&ev.ID, &ev.ModuleID, &ev.TurnsEligible, &ev.TurnsCompressed,
			&ev.TurnsDeferred, &ev.CacheHits, &ev.OriginalChars, &ev.CompressedChars,
			&ev.DurationMs, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan compression event: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
