// Package store provides the embedded, SQLite-backed persistence layer for
// posts, trends, and alerts. It owns schema migration, connection pooling,
// and retry-on-transient-error behavior; every other package treats it as
// the only way to read or write durable state.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"

	"github.com/geraldfingburke/trendwatch/internal/models"
)

// ErrTransient marks a Store error the caller may retry; ErrNotFound marks a
// lookup that legitimately found nothing.
var (
	ErrTransient = errors.New("store: transient error")
	ErrNotFound  = errors.New("store: not found")
)

// StorageError wraps a failed Store operation with the operation name for
// callers that want to log without parsing the message.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Store is the embedded relational store. Writes go through a single
// connection (db.SetMaxOpenConns(1)) so SQLite's single-writer restriction
// is never a source of "database is locked" errors; reads use a separate,
// unrestricted pool.
type Store struct {
	writeDB *sql.DB
	readDB  *sql.DB
	mu      sync.Mutex
}

// Open creates the two connection pools against the same on-disk file and
// runs Migrate. path may be ":memory:" for tests, though note in-memory
// SQLite databases are private per connection — tests should keep a single
// *Store alive for the duration of the test rather than reopening it.
func Open(path string) (*Store, error) {
	writeDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", path)
	if err != nil {
		writeDB.Close()
		return nil, &StorageError{Op: "open", Err: err}
	}

	if err := writeDB.Ping(); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, &StorageError{Op: "ping", Err: err}
	}

	s := &Store{writeDB: writeDB, readDB: readDB}
	if err := s.Migrate(); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, err
	}
	return s, nil
}

// Close releases both connection pools.
func (s *Store) Close() error {
	werr := s.writeDB.Close()
	rerr := s.readDB.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Migrate creates every table and index this system needs. It is
// idempotent: safe to call on every process start.
func (s *Store) Migrate() error {
	schema := `
	-- ========================================================================
	-- TABLE: posts
	-- ========================================================================
	-- One row per normalized, feature-extracted item. hashtags/entities are
	-- stored as comma-joined text; there is no native array column in SQLite.
	-- ========================================================================
	CREATE TABLE IF NOT EXISTS posts (
		id          TEXT PRIMARY KEY,
		source_kind TEXT NOT NULL,
		author      TEXT NOT NULL DEFAULT '',
		text        TEXT NOT NULL,
		url         TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL,
		hashtags    TEXT NOT NULL DEFAULT '',
		entities    TEXT NOT NULL DEFAULT '',
		indexed_at  TIMESTAMP NOT NULL
	);

	-- ========================================================================
	-- TABLE: trends
	-- ========================================================================
	-- One row per (entity, source_kind) pair scored in a single TrendEngine run.
	-- ========================================================================
	CREATE TABLE IF NOT EXISTS trends (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		entity         TEXT NOT NULL,
		source_kind    TEXT NOT NULL,
		current_count  INTEGER NOT NULL,
		baseline_count INTEGER NOT NULL,
		trend_score    REAL NOT NULL,
		growth_rate    REAL NOT NULL,
		velocity       REAL NOT NULL,
		z_score        REAL NOT NULL,
		created_at     TIMESTAMP NOT NULL
	);

	-- ========================================================================
	-- TABLE: alerts
	-- ========================================================================
	-- Durable record of every alert fired, including enough of the triggering
	-- trend row to reconstruct the payload sent to sinks without a join.
	-- ========================================================================
	CREATE TABLE IF NOT EXISTS alerts (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		entity          TEXT NOT NULL,
		source_kind     TEXT NOT NULL,
		kind            TEXT NOT NULL,
		threshold_value REAL NOT NULL,
		actual_value    REAL NOT NULL,
		message         TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMP NOT NULL,
		status          TEXT NOT NULL DEFAULT 'active'
	);

	-- ========================================================================
	-- PERFORMANCE INDEXES
	-- ========================================================================
	CREATE INDEX IF NOT EXISTS idx_posts_source_created ON posts(source_kind, created_at);
	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
	CREATE INDEX IF NOT EXISTS idx_posts_entities ON posts(entities);
	CREATE INDEX IF NOT EXISTS idx_trends_entity_source ON trends(entity, source_kind);
	CREATE INDEX IF NOT EXISTS idx_trends_created_at ON trends(created_at);
	CREATE INDEX IF NOT EXISTS idx_trends_trend_score ON trends(trend_score);
	CREATE INDEX IF NOT EXISTS idx_alerts_entity_source_created ON alerts(entity, source_kind, created_at);
	`
	if _, err := s.writeDB.Exec(schema); err != nil {
		return &StorageError{Op: "migrate", Err: err}
	}
	return nil
}

// maxHealthyPages bounds the database file size before Health starts
// recommending a cleanup run; at SQLite's default 4096-byte page size this
// is roughly 2GB.
const maxHealthyPages = 500000

// requiredIndexes is the full set of indexes Migrate creates; Health reports
// any that are missing from sqlite_master regardless of how they got that
// way (a partial migration, manual DDL, a restored backup).
var requiredIndexes = []string{
	"idx_posts_source_created",
	"idx_posts_created_at",
	"idx_posts_entities",
	"idx_trends_entity_source",
	"idx_trends_created_at",
	"idx_trends_trend_score",
	"idx_alerts_entity_source_created",
}

// HealthReport is the structured result of Health: OK summarizes whether the
// store is fit for service, Issues lists concrete problems found, and
// Recommendations lists operator actions that would address them. Either
// slice may be non-empty even when OK is true (e.g. an oversize database
// that still reads and writes fine).
type HealthReport struct {
	OK              bool
	Issues          []string
	Recommendations []string
}

// Health runs SQLite's own integrity check, confirms every index Migrate
// creates is still present, and flags a database that has grown large
// enough to warrant a cleanup. It never returns a bare ping: a store that
// responds but fails these checks reports OK=false with the specifics.
func (s *Store) Health(ctx context.Context) (*HealthReport, error) {
	report := &HealthReport{OK: true}

	if err := s.writeDB.PingContext(ctx); err != nil {
		return nil, &StorageError{Op: "health", Err: err}
	}

	var integrity string
	if err := s.writeDB.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&integrity); err != nil {
		return nil, &StorageError{Op: "health_integrity", Err: err}
	}
	if integrity != "ok" {
		report.OK = false
		report.Issues = append(report.Issues, fmt.Sprintf("integrity check failed: %s", integrity))
		report.Recommendations = append(report.Recommendations, "restore from the most recent backup")
	}

	rows, err := s.writeDB.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'index'`)
	if err != nil {
		return nil, &StorageError{Op: "health_indexes", Err: err}
	}
	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, &StorageError{Op: "health_indexes_scan", Err: err}
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "health_indexes_rows", Err: err}
	}
	rows.Close()
	for _, idx := range requiredIndexes {
		if !present[idx] {
			report.OK = false
			report.Issues = append(report.Issues, fmt.Sprintf("missing index %s", idx))
			report.Recommendations = append(report.Recommendations, "run Migrate to recreate missing indexes")
		}
	}

	var pageCount int64
	if err := s.writeDB.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return nil, &StorageError{Op: "health_page_count", Err: err}
	}
	if pageCount > maxHealthyPages {
		report.Issues = append(report.Issues, fmt.Sprintf("database has grown to %d pages", pageCount))
		report.Recommendations = append(report.Recommendations, "run the cleanup subcommand to trim old trends and resolved alerts")
	}

	return report, nil
}

// withRetry retries a transient write once with a short backoff, matching
// the error-handling policy in spec §7: transient Store I/O errors are
// retried once before surfacing a StorageError.
func withRetry(ctx context.Context, op string, fn func() error) error {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1)
	err := backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrTransient) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	return nil
}

// UpsertPost inserts a post or overwrites the existing row with the same ID,
// satisfying the idempotent-ingestion property from spec §8.
func (s *Store) UpsertPost(ctx context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withRetry(ctx, "upsert_post", func() error {
		_, err := s.writeDB.ExecContext(ctx, `
			INSERT INTO posts (id, source_kind, author, text, url, created_at, hashtags, entities, indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				source_kind = excluded.source_kind,
				author      = excluded.author,
				text        = excluded.text,
				url         = excluded.url,
				created_at  = excluded.created_at,
				hashtags    = excluded.hashtags,
				entities    = excluded.entities,
				indexed_at  = excluded.indexed_at
		`,
			p.ID, string(p.SourceKind), p.Author, p.Text, p.URL, p.CreatedAt,
			joinCSV(p.Hashtags), joinCSV(p.Entities), p.IndexedAt,
		)
		return classify(err)
	})
}

// InsertTrends persists every scored trend row from one TrendEngine run.
// All rows share the caller-supplied CreatedAt so a run is queryable as a
// single unit.
func (s *Store) InsertTrends(ctx context.Context, trends []models.Trend) error {
	if len(trends) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return withRetry(ctx, "insert_trends", func() error {
		tx, err := s.writeDB.BeginTx(ctx, nil)
		if err != nil {
			return classify(err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO trends (entity, source_kind, current_count, baseline_count, trend_score, growth_rate, velocity, z_score, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return classify(err)
		}
		defer stmt.Close()

		for _, t := range trends {
			if _, err := stmt.ExecContext(ctx, t.Entity, string(t.SourceKind), t.CurrentCount,
				t.BaselineCount, t.TrendScore, t.GrowthRate, t.Velocity, t.ZScore, t.CreatedAt); err != nil {
				return classify(err)
			}
		}
		if err := tx.Commit(); err != nil {
			return classify(err)
		}
		return nil
	})
}

// InsertAlert persists a new alert unless one for the same entity/source/kind
// already fired within cooldown, in which case it returns (false, nil)
// without writing a duplicate row — the dedup rule from spec §4.7.
func (s *Store) InsertAlert(ctx context.Context, a *models.Alert, cooldown time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fired bool
	err := withRetry(ctx, "insert_alert", func() error {
		var lastFired sql.NullTime
		row := s.writeDB.QueryRowContext(ctx, `
			SELECT created_at FROM alerts
			WHERE entity = ? AND source_kind = ? AND kind = ?
			ORDER BY created_at DESC LIMIT 1
		`, a.Entity, string(a.SourceKind), string(a.Kind))
		if err := row.Scan(&lastFired); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return classify(err)
		}
		if lastFired.Valid && a.CreatedAt.Sub(lastFired.Time) < cooldown {
			fired = false
			return nil
		}

		status := a.Status
		if status == "" {
			status = models.AlertStatusActive
		}
		_, err := s.writeDB.ExecContext(ctx, `
			INSERT INTO alerts (entity, source_kind, kind, threshold_value, actual_value, message, created_at, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, a.Entity, string(a.SourceKind), string(a.Kind), a.ThresholdValue, a.ActualValue,
			a.Message, a.CreatedAt, string(status))
		if err != nil {
			return classify(err)
		}
		fired = true
		return nil
	})
	return fired, err
}

// QueryPostsInWindow returns posts with created_at in [from, to), most recent
// first. Reads use the unrestricted pool and may run concurrently with a
// write, per the concurrency model in spec §5.
func (s *Store) QueryPostsInWindow(ctx context.Context, sourceKind models.SourceKind, from, to time.Time) ([]models.Post, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, source_kind, author, text, url, created_at, hashtags, entities, indexed_at
		FROM posts
		WHERE source_kind = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at DESC
	`, string(sourceKind), from, to)
	if err != nil {
		return nil, &StorageError{Op: "query_posts", Err: err}
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		var kind, hashtags, entities string
		if err := rows.Scan(&p.ID, &kind, &p.Author, &p.Text, &p.URL, &p.CreatedAt, &hashtags, &entities, &p.IndexedAt); err != nil {
			return nil, &StorageError{Op: "query_posts_scan", Err: err}
		}
		p.SourceKind = models.SourceKind(kind)
		p.Hashtags = splitCSV(hashtags)
		p.Entities = splitCSV(entities)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "query_posts_rows", Err: err}
	}
	return posts, nil
}

// QueryTrends returns the most recently scored trend rows, optionally
// filtered by entity and/or source kind, most recent run first.
func (s *Store) QueryTrends(ctx context.Context, entity string, sourceKind models.SourceKind, limit int) ([]models.Trend, error) {
	query := `
		SELECT id, entity, source_kind, current_count, baseline_count, trend_score, growth_rate, velocity, z_score, created_at
		FROM trends
		WHERE 1=1
	`
	var args []interface{}
	if entity != "" {
		query += " AND entity = ?"
		args = append(args, entity)
	}
	if sourceKind != "" {
		query += " AND source_kind = ?"
		args = append(args, string(sourceKind))
	}
	query += " ORDER BY created_at DESC, trend_score DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query_trends", Err: err}
	}
	defer rows.Close()

	var trends []models.Trend
	for rows.Next() {
		var t models.Trend
		var kind string
		if err := rows.Scan(&t.ID, &t.Entity, &kind, &t.CurrentCount, &t.BaselineCount,
			&t.TrendScore, &t.GrowthRate, &t.Velocity, &t.ZScore, &t.CreatedAt); err != nil {
			return nil, &StorageError{Op: "query_trends_scan", Err: err}
		}
		t.SourceKind = models.SourceKind(kind)
		trends = append(trends, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "query_trends_rows", Err: err}
	}
	return trends, nil
}

// QueryAlerts returns alerts, optionally filtered by status, most recent
// first.
func (s *Store) QueryAlerts(ctx context.Context, status models.AlertStatus, limit int) ([]models.Alert, error) {
	query := `
		SELECT id, entity, source_kind, kind, threshold_value, actual_value, message, created_at, status
		FROM alerts
		WHERE 1=1
	`
	var args []interface{}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "query_alerts", Err: err}
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var sourceKind, kind, status string
		if err := rows.Scan(&a.ID, &a.Entity, &sourceKind, &kind, &a.ThresholdValue,
			&a.ActualValue, &a.Message, &a.CreatedAt, &status); err != nil {
			return nil, &StorageError{Op: "query_alerts_scan", Err: err}
		}
		a.SourceKind = models.SourceKind(sourceKind)
		a.Kind = models.AlertKind(kind)
		a.Status = models.AlertStatus(status)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "query_alerts_rows", Err: err}
	}
	return alerts, nil
}

// CleanupOlderThan deletes trends older than trendsCutoff and resolved
// alerts older than alertsCutoff, returning the number of rows removed from
// each table. Posts are never deleted by the core; retention of raw posts
// is an operator decision outside this system.
func (s *Store) CleanupOlderThan(ctx context.Context, trendsCutoff, alertsCutoff time.Time) (trendsDeleted, alertsDeleted int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err = withRetry(ctx, "cleanup", func() error {
		tx, txErr := s.writeDB.BeginTx(ctx, nil)
		if txErr != nil {
			return classify(txErr)
		}
		defer tx.Rollback()

		res, execErr := tx.ExecContext(ctx, `DELETE FROM trends WHERE created_at < ?`, trendsCutoff)
		if execErr != nil {
			return classify(execErr)
		}
		trendsDeleted, _ = res.RowsAffected()

		res, execErr = tx.ExecContext(ctx, `DELETE FROM alerts WHERE status = ? AND created_at < ?`,
			string(models.AlertStatusResolved), alertsCutoff)
		if execErr != nil {
			return classify(execErr)
		}
		alertsDeleted, _ = res.RowsAffected()

		return classify(tx.Commit())
	})
	return
}

// Stats is the summary returned by the CLI's stats subcommand and the
// QueryAPI's /stats endpoint.
type Stats struct {
	TotalPosts  int64
	TotalTrends int64
	TotalAlerts int64
	LastPostAt  *time.Time
	LastTrendAt *time.Time
}

// Stats returns aggregate counts across all three tables.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	row := s.readDB.QueryRowContext(ctx, `SELECT COUNT(*), MAX(created_at) FROM posts`)
	var lastPost sql.NullTime
	if err := row.Scan(&st.TotalPosts, &lastPost); err != nil {
		return nil, &StorageError{Op: "stats_posts", Err: err}
	}
	if lastPost.Valid {
		st.LastPostAt = &lastPost.Time
	}

	row = s.readDB.QueryRowContext(ctx, `SELECT COUNT(*), MAX(created_at) FROM trends`)
	var lastTrend sql.NullTime
	if err := row.Scan(&st.TotalTrends, &lastTrend); err != nil {
		return nil, &StorageError{Op: "stats_trends", Err: err}
	}
	if lastTrend.Valid {
		st.LastTrendAt = &lastTrend.Time
	}

	if err := s.readDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&st.TotalAlerts); err != nil {
		return nil, &StorageError{Op: "stats_alerts", Err: err}
	}
	return st, nil
}

// classify maps a raw driver error to ErrTransient when it looks like a
// lock/busy condition worth one retry, and passes everything else through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "locked") || strings.Contains(msg, "busy") {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}

func joinCSV(items []string) string {
	return strings.Join(items, ",")
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
