// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists the name catalog, species lists, observations and
// their supporting records in a SQL database.
//
// SQLite (github.com/mattn/go-sqlite3 or the pure-Go modernc.org/sqlite) is
// the default; Postgres is reached through the pgx stdlib driver. Queries are
// written once with "?" placeholders and rebound per dialect.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"
	_ "modernc.org/sqlite"             // registers "sqlite"

	"github.com/pdiddy/mycolist/pkg/types"
)

const (
	defaultPath = "data/mycolist.db"
	defaultDSN  = "postgres://localhost/mycolist?sslmode=disable"
)

var (
	// ErrNotFound is returned when a record lookup matches nothing.
	ErrNotFound = errors.New("not found")

	// ErrNameConflict is returned by CreateName when another name with the
	// same search name already exists, including one committed by a
	// concurrent transaction.
	ErrNameConflict = errors.New("catalog name already exists")
)

// conn is satisfied by both *sql.DB and *sql.Tx.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every read and write operation. It runs either directly on
// the database (Store) or inside a transaction (Tx).
type Queries struct {
	c conn
	d dialect
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.c.ExecContext(ctx, q.d.rebind(query), args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.c.QueryContext(ctx, q.d.rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.c.QueryRowContext(ctx, q.d.rebind(query), args...)
}

// Store manages the database connection.
type Store struct {
	*Queries
	db *sql.DB
}

// Tx is a unit of work. Every write of one submission happens in one Tx.
type Tx struct {
	*Queries
	tx *sql.Tx
}

// Open connects to the database selected by cfg and creates the schema if
// it does not exist.
func Open(cfg types.DatabaseConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = types.DriverSQLite3
	}

	var dsn string
	switch driver {
	case types.DriverSQLite3, types.DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = defaultPath
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		// Transactions take the write lock at BEGIN so overlapping
		// submissions wait on busy_timeout instead of failing on upgrade.
		if driver == types.DriverSQLite3 {
			dsn = path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
		} else {
			dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"
		}
	case types.DriverPostgres:
		dsn = cfg.DSN
		if dsn == "" {
			dsn = defaultDSN
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q: use sqlite3, sqlite, or pgx", driver)
	}

	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	d := dialect{driver: driver}
	s := &Store{Queries: &Queries{c: db, d: d}, db: db}

	if err := s.createSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Tx{Queries: &Queries{c: tx, d: s.d}, tx: tx}, nil
}

// InTx runs fn in a transaction, committing when fn returns nil and rolling
// back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a
// no-op.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	for _, stmt := range s.d.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// dialect hides the differences between SQLite and Postgres.
type dialect struct {
	driver types.DatabaseDriver
}

func (d dialect) postgres() bool {
	return d.driver == types.DriverPostgres
}

// rebind rewrites "?" placeholders to "$1", "$2", ... for Postgres.
func (d dialect) rebind(query string) string {
	if !d.postgres() {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d dialect) schema() []string {
	r := strings.NewReplacer(
		"{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{bool}}", "INTEGER",
		"{{false}}", "0",
		"{{float}}", "REAL",
	)
	if d.postgres() {
		r = strings.NewReplacer(
			"{{id}}", "BIGSERIAL PRIMARY KEY",
			"{{bool}}", "BOOLEAN",
			"{{false}}", "FALSE",
			"{{float}}", "DOUBLE PRECISION",
		)
	}

	statements := make([]string, len(schemaStatements))
	for i, stmt := range schemaStatements {
		statements[i] = r.Replace(stmt)
	}
	return statements
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{id}},
		login TEXT NOT NULL UNIQUE,
		contribution INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS names (
		id {{id}},
		text_name TEXT NOT NULL,
		search_name TEXT NOT NULL UNIQUE,
		author TEXT NOT NULL DEFAULT '',
		name_rank TEXT NOT NULL,
		deprecated {{bool}} NOT NULL DEFAULT {{false}},
		synonym_group_id BIGINT NOT NULL DEFAULT 0,
		created_by BIGINT NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_names_text_name ON names(text_name)`,
	`CREATE INDEX IF NOT EXISTS idx_names_synonym_group ON names(synonym_group_id)`,
	`CREATE TABLE IF NOT EXISTS species_lists (
		id {{id}},
		title TEXT NOT NULL,
		when_date TEXT NOT NULL,
		place_name TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		user_id BIGINT NOT NULL REFERENCES users(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS observations (
		id {{id}},
		name_id BIGINT NOT NULL REFERENCES names(id),
		user_id BIGINT NOT NULL REFERENCES users(id),
		when_date TEXT NOT NULL,
		place_name TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		lat {{float}},
		lng {{float}},
		alt INTEGER,
		is_collection_location {{bool}} NOT NULL DEFAULT {{false}},
		specimen {{bool}} NOT NULL DEFAULT {{false}},
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS namings (
		id {{id}},
		observation_id BIGINT NOT NULL REFERENCES observations(id) ON DELETE CASCADE,
		name_id BIGINT NOT NULL REFERENCES names(id),
		user_id BIGINT NOT NULL REFERENCES users(id),
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_namings_observation ON namings(observation_id)`,
	`CREATE TABLE IF NOT EXISTS votes (
		id {{id}},
		naming_id BIGINT NOT NULL REFERENCES namings(id) ON DELETE CASCADE,
		observation_id BIGINT NOT NULL REFERENCES observations(id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES users(id),
		value INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS list_entries (
		list_id BIGINT NOT NULL REFERENCES species_lists(id) ON DELETE CASCADE,
		observation_id BIGINT NOT NULL REFERENCES observations(id) ON DELETE CASCADE,
		pos INTEGER NOT NULL,
		PRIMARY KEY (list_id, observation_id)
	)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id {{id}},
		target_type TEXT NOT NULL,
		target_id BIGINT NOT NULL,
		tag TEXT NOT NULL,
		args TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_target ON activity_logs(target_type, target_id)`,
	`CREATE TABLE IF NOT EXISTS interests (
		id {{id}},
		user_id BIGINT NOT NULL REFERENCES users(id),
		target_type TEXT NOT NULL,
		target_id BIGINT NOT NULL,
		state {{bool}} NOT NULL,
		UNIQUE (user_id, target_type, target_id)
	)`,
	`CREATE TABLE IF NOT EXISTS herbaria (
		id {{id}},
		name TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS herbarium_curators (
		herbarium_id BIGINT NOT NULL REFERENCES herbaria(id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES users(id),
		PRIMARY KEY (herbarium_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS specimens (
		id {{id}},
		herbarium_id BIGINT NOT NULL REFERENCES herbaria(id),
		herbarium_label TEXT NOT NULL,
		user_id BIGINT NOT NULL REFERENCES users(id),
		when_date TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE (herbarium_id, herbarium_label)
	)`,
	`CREATE TABLE IF NOT EXISTS specimen_observations (
		specimen_id BIGINT NOT NULL REFERENCES specimens(id) ON DELETE CASCADE,
		observation_id BIGINT NOT NULL REFERENCES observations(id) ON DELETE CASCADE,
		PRIMARY KEY (specimen_id, observation_id)
	)`,
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// notFound maps sql.ErrNoRows to ErrNotFound with context.
func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("looking up %s %v: %w", what, id, err)
}
