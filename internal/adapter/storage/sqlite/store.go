package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/squash/internal/domain"
	"github.com/bnema/squash/internal/port"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// HistoryStore keeps terminal job outcomes in a local SQLite database.
type HistoryStore struct {
	db    *sql.DB
	limit int
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA cache_size = -8000", // 8MB
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

// NewHistoryStore opens squash.db in dataDir and migrates it. When limit is
// positive only the newest limit entries are retained.
func NewHistoryStore(dataDir string, limit int) (*HistoryStore, error) {
	registerHook()

	dbPath := filepath.Join(dataDir, "squash.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite (WAL allows concurrent reads but only one writer)
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &HistoryStore{db: db, limit: limit}, nil
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}

const insertHistory = `
INSERT INTO history (job_id, display_name, status, source_size, output_ref, output_size, error_message, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

const pruneHistory = `
DELETE FROM history WHERE id NOT IN (SELECT id FROM history ORDER BY id DESC LIMIT ?)`

// Record inserts entry and sets its ID.
func (s *HistoryStore) Record(ctx context.Context, entry *domain.HistoryEntry) error {
	res, err := s.db.ExecContext(ctx, insertHistory,
		entry.JobID,
		entry.DisplayName,
		string(entry.Status),
		entry.SourceSize,
		entry.OutputRef,
		entry.OutputSize,
		entry.ErrorMessage,
		toUnix(entry.StartedAt),
		toUnix(entry.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("history id: %w", err)
	}
	entry.ID = id

	if s.limit > 0 {
		if _, err := s.db.ExecContext(ctx, pruneHistory, s.limit); err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
	}
	return nil
}

const selectRecent = `
SELECT id, job_id, display_name, status, source_size, output_ref, output_size, error_message, started_at, finished_at
FROM history ORDER BY id DESC LIMIT ?`

// Recent returns up to limit entries, newest first. A non-positive limit returns all.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			e                 domain.HistoryEntry
			status            string
			started, finished int64
		)
		if err := rows.Scan(&e.ID, &e.JobID, &e.DisplayName, &status, &e.SourceSize,
			&e.OutputRef, &e.OutputSize, &e.ErrorMessage, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Status = domain.JobStatus(status)
		e.StartedAt = fromUnix(started)
		e.FinishedAt = fromUnix(finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

var _ port.HistoryStore = (*HistoryStore)(nil)
