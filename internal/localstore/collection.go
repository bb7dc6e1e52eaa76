package localstore

import (
	"fmt"

	"github.com/openmined/davsync/internal/client/sync"
)

const resourceColumns = "id, collection_id, file_name, uid, etag, dirty, deleted, content, updated_at"

// Collection is the local replica of one remote collection.
type Collection struct {
	store *Store
	id    string
	url   string
	kind  string
	ext   string
}

var _ sync.LocalCollection = (*Collection)(nil)

func (c *Collection) ID() string   { return c.id }
func (c *Collection) URL() string  { return c.url }
func (c *Collection) Kind() string { return c.kind }

func (c *Collection) Deleted() ([]sync.LocalResource, error) {
	return c.query("list deleted", "deleted = 1")
}

func (c *Collection) WithoutFileName() ([]sync.LocalResource, error) {
	return c.query("list without file name", "deleted = 0 AND file_name IS NULL")
}

func (c *Collection) Dirty() ([]sync.LocalResource, error) {
	return c.query("list dirty", "deleted = 0 AND dirty = 1")
}

func (c *Collection) All() ([]sync.LocalResource, error) {
	return c.query("list all", "deleted = 0")
}

func (c *Collection) CTag() (string, error) {
	var cTag string
	if err := c.store.db.Get(&cTag, "SELECT ctag FROM collections WHERE id = ?", c.id); err != nil {
		return "", storageError("get ctag", err)
	}
	return cTag, nil
}

func (c *Collection) SetCTag(cTag string) error {
	if _, err := c.store.db.Exec("UPDATE collections SET ctag = ? WHERE id = ?", cTag, c.id); err != nil {
		return storageError("set ctag", err)
	}
	return nil
}

// Resources returns the live (not deleted) resources ordered by ID.
func (c *Collection) Resources() ([]*Resource, error) {
	return c.load("list resources", "deleted = 0")
}

// Get returns a resource by its local ID, including tombstones.
func (c *Collection) Get(id int64) (*Resource, error) {
	var r Resource
	err := c.store.db.Get(&r, "SELECT "+resourceColumns+" FROM resources WHERE collection_id = ? AND id = ?", c.id, id)
	if notFound(err) {
		return nil, fmt.Errorf("get #%d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageError("get resource", err)
	}
	r.coll = c
	return &r, nil
}

// GetByFileName returns the resource stored under fileName.
func (c *Collection) GetByFileName(fileName string) (*Resource, error) {
	var r Resource
	err := c.store.db.Get(&r, "SELECT "+resourceColumns+" FROM resources WHERE collection_id = ? AND file_name = ?", c.id, fileName)
	if notFound(err) {
		return nil, fmt.Errorf("get %s: %w", fileName, ErrNotFound)
	}
	if err != nil {
		return nil, storageError("get resource", err)
	}
	r.coll = c
	return &r, nil
}

// Add stores a new locally created record. It is dirty and has no file name
// until the next sync prepares it for upload.
func (c *Collection) Add(content string) (*Resource, error) {
	res, err := c.store.db.Exec(
		"INSERT INTO resources (collection_id, dirty, content, updated_at) VALUES (?, 1, ?, ?)",
		c.id, content, c.store.timestamp())
	if err != nil {
		return nil, storageError("add resource", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageError("add resource", err)
	}
	return c.Get(id)
}

// Update replaces the content of a record and marks it dirty.
func (c *Collection) Update(id int64, content string) error {
	r, err := c.Get(id)
	if err != nil {
		return err
	}
	if r.IsDeleted {
		return fmt.Errorf("update #%d: %w", id, ErrDeleted)
	}
	_, err = c.store.db.Exec(
		"UPDATE resources SET content = ?, dirty = 1, updated_at = ? WHERE id = ?",
		content, c.store.timestamp(), id)
	return storageError("update resource", err)
}

// MarkDeleted turns a record into a tombstone. The next sync deletes it on
// the server and then removes it for good.
func (c *Collection) MarkDeleted(id int64) error {
	if _, err := c.Get(id); err != nil {
		return err
	}
	_, err := c.store.db.Exec("UPDATE resources SET deleted = 1, updated_at = ? WHERE id = ?", c.store.timestamp(), id)
	return storageError("mark deleted", err)
}

// Upsert stores a downloaded resource keyed by file name. The stored copy is
// clean and carries the remote ETag.
func (c *Collection) Upsert(fileName, uid, eTag, content string) error {
	_, err := c.store.db.Exec(`
		INSERT INTO resources (collection_id, file_name, uid, etag, dirty, deleted, content, updated_at)
		VALUES (?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT(collection_id, file_name) DO UPDATE SET
			uid = excluded.uid,
			etag = excluded.etag,
			dirty = 0,
			deleted = 0,
			content = excluded.content,
			updated_at = excluded.updated_at`,
		c.id, fileName, uid, eTag, content, c.store.timestamp())
	return storageError("upsert resource", err)
}

// Stats counts resources by state.
type Stats struct {
	Total   int `db:"total"`
	Dirty   int `db:"dirty"`
	Deleted int `db:"deleted"`
}

func (c *Collection) Stats() (*Stats, error) {
	var s Stats
	err := c.store.db.Get(&s, `
		SELECT COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN dirty = 1 AND deleted = 0 THEN 1 ELSE 0 END), 0) AS dirty,
			COALESCE(SUM(deleted), 0) AS deleted
		FROM resources WHERE collection_id = ?`, c.id)
	if err != nil {
		return nil, storageError("stats", err)
	}
	return &s, nil
}

func (c *Collection) load(op, where string) ([]*Resource, error) {
	var rows []*Resource
	err := c.store.db.Select(&rows,
		"SELECT "+resourceColumns+" FROM resources WHERE collection_id = ? AND "+where+" ORDER BY id", c.id)
	if err != nil {
		return nil, storageError(op, err)
	}
	for _, r := range rows {
		r.coll = c
	}
	return rows, nil
}

func (c *Collection) query(op, where string) ([]sync.LocalResource, error) {
	rows, err := c.load(op, where)
	if err != nil {
		return nil, err
	}
	out := make([]sync.LocalResource, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}
