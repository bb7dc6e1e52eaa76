package localstore

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/openmined/davsync/internal/client/sync"
)

// Resource is a row of the resources table.
type Resource struct {
	LocalID      int64          `db:"id"`
	CollectionID string         `db:"collection_id"`
	Name         sql.NullString `db:"file_name"`
	UID          string         `db:"uid"`
	Tag          string         `db:"etag"`
	IsDirty      bool           `db:"dirty"`
	IsDeleted    bool           `db:"deleted"`
	Content      string         `db:"content"`
	UpdatedAt    string         `db:"updated_at"`

	coll *Collection
}

var _ sync.LocalResource = (*Resource)(nil)

func (r *Resource) ID() int64        { return r.LocalID }
func (r *Resource) FileName() string { return r.Name.String }
func (r *Resource) ETag() string     { return r.Tag }

func (r *Resource) String() string {
	if r.Name.Valid {
		return fmt.Sprintf("#%d (%s)", r.LocalID, r.Name.String)
	}
	return fmt.Sprintf("#%d", r.LocalID)
}

func (r *Resource) Delete() error {
	_, err := r.coll.store.db.Exec("DELETE FROM resources WHERE id = ?", r.LocalID)
	return storageError("delete resource", err)
}

// PrepareForUpload assigns a random UID and derives the file name from it.
func (r *Resource) PrepareForUpload() error {
	if r.Name.Valid {
		return nil
	}
	uid := r.UID
	if uid == "" {
		uid = uuid.NewString()
	}
	fileName := uid + r.coll.ext

	_, err := r.coll.store.db.Exec("UPDATE resources SET uid = ?, file_name = ? WHERE id = ?", uid, fileName, r.LocalID)
	if err != nil {
		return storageError("prepare for upload", err)
	}
	r.UID = uid
	r.Name = sql.NullString{String: fileName, Valid: true}
	return nil
}

func (r *Resource) ClearDirty(eTag string) error {
	_, err := r.coll.store.db.Exec("UPDATE resources SET dirty = 0, etag = ? WHERE id = ?", eTag, r.LocalID)
	if err != nil {
		return storageError("clear dirty", err)
	}
	r.IsDirty = false
	r.Tag = eTag
	return nil
}
