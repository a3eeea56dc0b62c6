// Package sqldb implements the repository interfaces on top of database/sql.
//
// Three backends are supported, picked from the DATABASE_URL scheme:
//
//	postgres://… or postgresql://…   → jackc/pgx (driver "pgx")
//	libsql://… or wss://…            → Turso/libSQL (driver "libsql")
//	anything else                    → embedded SQLite via modernc.org/sqlite
//
// The SQL is written once with "?" placeholders; rebind rewrites them to
// "$1, $2, …" for Postgres.
//
// For SQLite the pool is pinned to a single connection. That keeps
// ":memory:" databases alive for the lifetime of the DB and serialises
// writers, which SQLite would do anyway.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour behind a DB.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectLibSQL
	DialectPostgres
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectLibSQL:
		return "libsql"
	default:
		return "sqlite"
	}
}

// DB owns the connection pool. Use Users and Links to get the stores.
type DB struct {
	conn    *sql.DB
	dialect Dialect
	users   *UserStore
	links   *LinkStore
}

// detectDialect maps a DSN to a registered driver name.
func detectDialect(dsn string) (string, Dialect) {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "pgx", DialectPostgres
	case strings.HasPrefix(lower, "libsql://"), strings.HasPrefix(lower, "wss://"),
		strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"):
		return "libsql", DialectLibSQL
	default:
		return "sqlite", DialectSQLite
	}
}

// New opens the database behind dsn, verifies the connection and runs
// migrations.
//
// dsn examples:
//   - "file:data/shortify.db"            → SQLite file
//   - ":memory:"                         → throwaway SQLite (tests)
//   - "postgres://u:p@host:5432/shortify" → Postgres
//   - "libsql://db-org.turso.io?authToken=…" → Turso
func New(dsn string) (*DB, error) {
	driver, dialect := detectDialect(dsn)

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqldb: opening %s database: %w", dialect, err)
	}

	switch dialect {
	case DialectSQLite:
		conn.SetMaxOpenConns(1)
	case DialectPostgres:
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(25)
		conn.SetConnMaxIdleTime(15 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqldb: pinging %s database: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// WAL lets readers proceed while a write is in flight. foreign_keys
		// is off by default in SQLite and links.user_id depends on it.
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("sqldb: %s: %w", pragma, err)
			}
		}
	}

	db := &DB{conn: conn, dialect: dialect}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqldb: running migrations: %w", err)
	}

	db.users = &UserStore{db: db}
	db.links, err = newLinkStore(db)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Users returns the account store.
func (db *DB) Users() *UserStore { return db.users }

// Links returns the short-link store.
func (db *DB) Links() *LinkStore { return db.links }

// Dialect reports which backend the DB talks to.
func (db *DB) Dialect() Dialect { return db.dialect }

// Ping checks the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// rebind rewrites "?" placeholders to the Postgres "$n" form.
// Queries in this package never contain a literal "?".
func (db *DB) rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
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

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, db.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, db.rebind(query), args...)
}

// migrate creates the schema. Every statement is idempotent, so it runs on
// every start. Statements are executed one at a time because the libSQL
// remote protocol does not accept batches through Exec.
func (db *DB) migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if db.dialect == DialectPostgres {
		stmts = postgresSchema
	}

	for _, stmt := range stmts {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL UNIQUE,
		password   TEXT NOT NULL,
		is_active  BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS links (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		original   TEXT NOT NULL,
		clicks     INTEGER NOT NULL DEFAULT 0,
		is_active  BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_user_created ON links(user_id, created_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL UNIQUE,
		password   TEXT NOT NULL,
		is_active  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS links (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		original   TEXT NOT NULL,
		clicks     BIGINT NOT NULL DEFAULT 0,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_user_created ON links(user_id, created_at)`,
}
