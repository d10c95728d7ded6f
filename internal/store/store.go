// Package store provides SQLite-backed persistence for orgs, content items,
// events and their facet dimensions, with optional FTS5 full-text search.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const driverName = "sqlite3_lynx"

var (
	registerOnce sync.Once
	patterns     sync.Map // string -> *regexp.Regexp
)

// registerDriver installs a sqlite3 driver whose connections expose
// regexp(pattern, value), so `x REGEXP ?` works in queries.
func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("regexp", matchPattern, true)
			},
		})
	})
}

func matchPattern(pattern, value string) (bool, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp).MatchString(value), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	patterns.Store(pattern, re)
	return re.MatchString(value), nil
}

// ops holds the queries shared by DB and Tx.
type ops struct {
	q sqlx.ExtContext
}

// DB wraps a sqlx.DB with store operations.
type DB struct {
	ops
	conn *sqlx.DB
}

// Tx is a store transaction. Every read available on DB is available on Tx.
type Tx struct {
	ops
	tx *sqlx.Tx
}

// Connect opens the SQLite database without touching the schema.
func Connect(path string) (*DB, error) {
	registerDriver()
	conn, err := sqlx.Open(driverName, path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return New(conn), nil
}

// Open opens (or creates) the SQLite database, applies pending migrations
// and initialises full-text search.
func Open(path string) (*DB, error) {
	db, err := Connect(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	if err := initFTS(db.conn); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return db, nil
}

// New wraps an existing connection.
func New(conn *sqlx.DB) *DB {
	return &DB{ops: ops{q: conn}, conn: conn}
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("store: migration source: %w", err)
	}
	drv, err := migratesqlite.WithInstance(db.conn.DB, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return nil, fmt.Errorf("store: create migrate instance: %w", err)
	}
	return m, nil
}

// MigrateUp applies every pending migration. It reports whether anything
// changed. The migrate instance is not closed since that would close the
// shared connection.
func (db *DB) MigrateUp() (bool, error) {
	m, err := db.migrator()
	if err != nil {
		return false, err
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("store: run migrations: %w", err)
	}
	return true, nil
}

// MigrateDown rolls back every migration.
func (db *DB) MigrateDown() (bool, error) {
	m, err := db.migrator()
	if err != nil {
		return false, err
	}
	if err := m.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("store: rollback migrations: %w", err)
	}
	return true, nil
}

// InTx runs fn inside a transaction, committing when fn returns nil.
func (db *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&Tx{ops: ops{q: tx}, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// now is the timestamp written on create/update; second precision keeps
// stored text comparable with date filter arguments.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
