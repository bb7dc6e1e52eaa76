package localstore

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openmined/davsync/internal/client/sync"
	"github.com/openmined/davsync/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollection(t *testing.T) (*Store, *Collection) {
	t.Helper()
	store, err := Open(db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	coll, err := store.Collection("alice/contacts", "https://dav.example.com/alice/contacts/", "addressbook", ".vcf")
	require.NoError(t, err)
	return store, coll
}

func fileNames(resources []sync.LocalResource) []string {
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		out = append(out, r.FileName())
	}
	return out
}

func TestCollection_AddAndPrepare(t *testing.T) {
	_, coll := newTestCollection(t)

	r, err := coll.Add("BEGIN:VCARD\r\nFN:Alice\r\nEND:VCARD\r\n")
	require.NoError(t, err)
	assert.Empty(t, r.FileName())
	assert.Empty(t, r.ETag())
	assert.True(t, r.IsDirty)

	without, err := coll.WithoutFileName()
	require.NoError(t, err)
	require.Len(t, without, 1)

	require.NoError(t, without[0].PrepareForUpload())
	fileName := without[0].FileName()
	assert.True(t, strings.HasSuffix(fileName, ".vcf"))

	// idempotent
	require.NoError(t, without[0].PrepareForUpload())
	assert.Equal(t, fileName, without[0].FileName())

	stored, err := coll.Get(r.ID())
	require.NoError(t, err)
	assert.Equal(t, fileName, stored.FileName())
	assert.Equal(t, strings.TrimSuffix(fileName, ".vcf"), stored.UID)

	without, err = coll.WithoutFileName()
	require.NoError(t, err)
	assert.Empty(t, without)
}

func TestCollection_DirtyAndClear(t *testing.T) {
	_, coll := newTestCollection(t)

	require.NoError(t, coll.Upsert("a.vcf", "a", "1", "A"))
	r, err := coll.Add("B")
	require.NoError(t, err)
	require.NoError(t, r.PrepareForUpload())

	dirty, err := coll.Dirty()
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, r.ID(), dirty[0].ID())

	require.NoError(t, dirty[0].ClearDirty("\"42\""))
	dirty, err = coll.Dirty()
	require.NoError(t, err)
	assert.Empty(t, dirty)

	stored, err := coll.Get(r.ID())
	require.NoError(t, err)
	assert.Equal(t, "\"42\"", stored.ETag())

	require.NoError(t, coll.Update(r.ID(), "B2"))
	dirty, err = coll.Dirty()
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, "\"42\"", dirty[0].ETag())
}

func TestCollection_DeletedTombstones(t *testing.T) {
	_, coll := newTestCollection(t)

	require.NoError(t, coll.Upsert("a.vcf", "a", "1", "A"))
	a, err := coll.GetByFileName("a.vcf")
	require.NoError(t, err)
	require.NoError(t, coll.MarkDeleted(a.ID()))

	deleted, err := coll.Deleted()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.vcf"}, fileNames(deleted))
	assert.Equal(t, "1", deleted[0].ETag())

	all, err := coll.All()
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.ErrorIs(t, coll.Update(a.ID(), "x"), ErrDeleted)

	require.NoError(t, deleted[0].Delete())
	_, err = coll.Get(a.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollection_UpsertUpdatesByFileName(t *testing.T) {
	_, coll := newTestCollection(t)

	require.NoError(t, coll.Upsert("a.vcf", "a", "1", "A1"))
	require.NoError(t, coll.Upsert("a.vcf", "a", "2", "A2"))

	all, err := coll.Resources()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "2", all[0].ETag())
	assert.Equal(t, "A2", all[0].Content)
	assert.False(t, all[0].IsDirty)
}

func TestCollection_CTag(t *testing.T) {
	store, coll := newTestCollection(t)

	cTag, err := coll.CTag()
	require.NoError(t, err)
	assert.Empty(t, cTag)

	require.NoError(t, coll.SetCTag("ctag-7"))
	cTag, err = coll.CTag()
	require.NoError(t, err)
	assert.Equal(t, "ctag-7", cTag)

	// registering again keeps the sync state
	again, err := store.Collection("alice/contacts", "https://dav.example.com/alice/contacts/", "addressbook", ".vcf")
	require.NoError(t, err)
	cTag, err = again.CTag()
	require.NoError(t, err)
	assert.Equal(t, "ctag-7", cTag)

	infos, err := store.Collections()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "ctag-7", infos[0].CTag)
}

func TestCollection_Isolation(t *testing.T) {
	store, contacts := newTestCollection(t)
	events, err := store.Collection("alice/calendar", "https://dav.example.com/alice/calendar/", "calendar", ".ics")
	require.NoError(t, err)

	require.NoError(t, contacts.Upsert("same", "u1", "1", "A"))
	require.NoError(t, events.Upsert("same", "u2", "9", "E"))

	all, err := events.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "9", all[0].ETag())

	require.NoError(t, store.Forget("alice/calendar"))
	all, err = contacts.All()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCollection_Stats(t *testing.T) {
	_, coll := newTestCollection(t)

	require.NoError(t, coll.Upsert("a.vcf", "a", "1", "A"))
	_, err := coll.Add("B")
	require.NoError(t, err)
	c, err := coll.Add("C")
	require.NoError(t, err)
	require.NoError(t, coll.MarkDeleted(c.ID()))

	stats, err := coll.Stats()
	require.NoError(t, err)
	assert.Equal(t, &Stats{Total: 3, Dirty: 1, Deleted: 1}, stats)
}

func TestStore_ErrorsAreStorageErrors(t *testing.T) {
	store, coll := newTestCollection(t)
	require.NoError(t, store.Close())

	_, err := coll.All()
	var storageErr *sync.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "list all", storageErr.Op)
}

func TestStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "replica.db")
	store, err := Open(path)
	require.NoError(t, err)
	coll, err := store.Collection("c", "https://dav.example.com/c/", "calendar", ".ics")
	require.NoError(t, err)
	require.NoError(t, coll.Upsert("e.ics", "e", "1", "E"))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	coll, err = store.Collection("c", "https://dav.example.com/c/", "calendar", ".ics")
	require.NoError(t, err)
	r, err := coll.GetByFileName("e.ics")
	require.NoError(t, err)
	assert.Equal(t, "E", r.Content)
}
