package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/port"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const dbName = "pool.db"

// Store persists credential usage statistics next to the credential files.
type Store struct {
	db      *sql.DB
	queries *queries
}

var (
	hookOnce sync.Once
	gooseMu  sync.Mutex
)

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
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

func NewStore(dir string) (*Store, error) {
	registerHook()

	db, err := sql.Open("sqlite", filepath.Join(dir, dbName))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite (WAL allows concurrent reads but only one writer)
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:      db,
		queries: &queries{db: db},
	}, nil
}

// goose keeps its base FS and dialect in package state.
func migrate(db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) All() (map[string]domain.CredentialStat, error) {
	ctx := context.Background()
	rows, err := s.queries.ListCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credential stats: %w", err)
	}

	stats := make(map[string]domain.CredentialStat, len(rows))
	for _, r := range rows {
		stats[r.ID] = statFromRow(r)
	}
	return stats, nil
}

func (s *Store) RecordUse(id string, at time.Time) error {
	ctx := context.Background()
	return s.queries.RecordUse(ctx, id, at.UnixMilli())
}

func (s *Store) RecordCheck(id string, valid bool, at time.Time) error {
	ctx := context.Background()
	return s.queries.RecordCheck(ctx, id, at.UnixMilli(), valid)
}

func (s *Store) Delete(id string) error {
	ctx := context.Background()
	return s.queries.DeleteCredential(ctx, id)
}

func statFromRow(r credentialRow) domain.CredentialStat {
	stat := domain.CredentialStat{
		ID:              r.ID,
		UseCount:        int(r.UseCount),
		LastUsedAt:      fromMillis(r.LastUsedAt),
		LastValidatedAt: fromMillis(r.LastValidatedAt),
	}
	if r.Valid.Valid {
		v := r.Valid.Bool
		stat.Valid = &v
	}
	return stat
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

var _ port.CredentialStats = (*Store)(nil)
