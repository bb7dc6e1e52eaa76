package localstore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/davsync/internal/client/sync"
	"github.com/openmined/davsync/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
    id TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    kind TEXT NOT NULL,
    ctag TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS resources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
    file_name TEXT,
    uid TEXT NOT NULL DEFAULT '',
    etag TEXT NOT NULL DEFAULT '',
    dirty INTEGER NOT NULL DEFAULT 0,
    deleted INTEGER NOT NULL DEFAULT 0,
    content TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL, -- RFC3339
    UNIQUE (collection_id, file_name)
);

CREATE INDEX IF NOT EXISTS idx_resources_collection ON resources(collection_id);
CREATE INDEX IF NOT EXISTS idx_resources_dirty ON resources(collection_id, dirty);
CREATE INDEX IF NOT EXISTS idx_resources_deleted ON resources(collection_id, deleted);
`

var (
	ErrNotFound = errors.New("localstore: resource not found")
	ErrDeleted  = errors.New("localstore: resource is deleted")
)

// Store is the SQLite backed local replica of all collections.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (or creates) the replica at path. Use db.MemoryPath for tests.
func Open(path string) (*Store, error) {
	conn, err := db.NewSqliteDB(
		db.WithPath(path),
		db.WithMaxOpenConns(1),
		db.WithSchema(schema),
	)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return &Store{db: conn, now: time.Now}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		slog.Error("local store close", "error", err)
		return err
	}
	return nil
}

// DB exposes the connection so other tables can share the file.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Collection returns the local replica of a remote collection, registering it
// on first use. fileExt is appended to generated file names (".vcf", ".ics").
func (s *Store) Collection(id, url, kind, fileExt string) (*Collection, error) {
	_, err := s.db.Exec(`
		INSERT INTO collections (id, url, kind) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET url = excluded.url, kind = excluded.kind`,
		id, url, kind)
	if err != nil {
		return nil, storageError("register collection", err)
	}
	return &Collection{store: s, id: id, url: url, kind: kind, ext: fileExt}, nil
}

// CollectionInfo is a row of the collections table.
type CollectionInfo struct {
	ID   string `db:"id"`
	URL  string `db:"url"`
	Kind string `db:"kind"`
	CTag string `db:"ctag"`
}

// Collections lists every registered collection.
func (s *Store) Collections() ([]*CollectionInfo, error) {
	var out []*CollectionInfo
	if err := s.db.Select(&out, "SELECT id, url, kind, ctag FROM collections ORDER BY id"); err != nil {
		return nil, storageError("list collections", err)
	}
	return out, nil
}

// Forget drops a collection and its resources.
func (s *Store) Forget(id string) error {
	if _, err := s.db.Exec("DELETE FROM collections WHERE id = ?", id); err != nil {
		return storageError("forget collection", err)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &sync.StorageError{Op: op, Err: err}
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
