package db

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/davsync/internal/utils"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
PRAGMA synchronous=NORMAL;
`

// sqliteDriver describes the database/sql driver picked at build time.
type sqliteDriver struct {
	id   string
	name string
	// connParams are DSN parameters applied to every pooled connection
	connParams string
}

type config struct {
	path            string
	pragmas         string
	schema          []string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
}

// SqliteOption configures NewSqliteDB.
type SqliteOption func(*config)

// WithPath sets the database file. Use MemoryPath for an in-memory database.
func WithPath(path string) SqliteOption {
	return func(c *config) {
		c.path = path
	}
}

// WithPragmas replaces the default pragmas.
func WithPragmas(pragmas string) SqliteOption {
	return func(c *config) {
		c.pragmas = pragmas
	}
}

// WithSchema adds statements executed once the connection is up.
// They must be idempotent (CREATE ... IF NOT EXISTS).
func WithSchema(stmts ...string) SqliteOption {
	return func(c *config) {
		c.schema = append(c.schema, stmts...)
	}
}

func WithMaxOpenConns(n int) SqliteOption {
	return func(c *config) {
		c.maxOpenConns = n
	}
}

func WithMaxIdleConns(n int) SqliteOption {
	return func(c *config) {
		c.maxIdleConns = n
	}
}

func WithConnMaxLifetime(d time.Duration) SqliteOption {
	return func(c *config) {
		c.connMaxLifetime = d
	}
}

// NewSqliteDB opens a SQLite database and applies pragmas and schema.
func NewSqliteDB(opts ...SqliteOption) (*sqlx.DB, error) {
	cfg := &config{
		path:         MemoryPath,
		pragmas:      defaultPragma,
		maxIdleConns: 2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	dsn := MemoryPath
	if cfg.path != MemoryPath {
		if err := utils.EnsureParent(cfg.path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc&%s", cfg.path, sqlite.connParams)
	} else {
		// every connection would see its own empty database
		cfg.maxOpenConns = 1
	}

	slog.Debug("db open", "driver", sqlite.id, "path", cfg.path)
	db, err := sqlx.Connect(sqlite.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.maxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if cfg.maxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.maxIdleConns)
	}
	if cfg.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.connMaxLifetime)
	}

	if _, err := db.Exec(cfg.pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	for _, stmt := range cfg.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	return db, nil
}
