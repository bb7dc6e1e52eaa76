package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSqliteDB_MemoryDefaults(t *testing.T) {
	database, err := NewSqliteDB()
	require.NoError(t, err)
	defer database.Close()

	_, err = database.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT);")
	require.NoError(t, err)

	// a single connection, so the table is visible to later queries
	_, err = database.Exec("INSERT INTO t (v) VALUES ('x')")
	require.NoError(t, err)

	var count int
	require.NoError(t, database.Get(&count, "SELECT COUNT(*) FROM t"))
	assert.Equal(t, 1, count)
}

func TestNewSqliteDB_FileCreatesParent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "state.db")

	database, err := NewSqliteDB(WithPath(dbPath))
	require.NoError(t, err)
	defer database.Close()

	assert.DirExists(t, filepath.Dir(dbPath))
}

func TestNewSqliteDB_Schema(t *testing.T) {
	schema := "CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v TEXT);"
	dbPath := filepath.Join(t.TempDir(), "kv.db")

	database, err := NewSqliteDB(WithPath(dbPath), WithSchema(schema))
	require.NoError(t, err)
	_, err = database.Exec("INSERT INTO kv (k, v) VALUES ('a', 'b')")
	require.NoError(t, err)
	require.NoError(t, database.Close())

	// reopening runs the schema again without losing data
	database, err = NewSqliteDB(WithPath(dbPath), WithSchema(schema))
	require.NoError(t, err)
	defer database.Close()

	var v string
	require.NoError(t, database.Get(&v, "SELECT v FROM kv WHERE k = 'a'"))
	assert.Equal(t, "b", v)
}

func TestNewSqliteDB_InvalidSchema(t *testing.T) {
	_, err := NewSqliteDB(WithSchema("CREATE TABLE ("))
	assert.Error(t, err)
}

func TestNewSqliteDB_CustomPragmas(t *testing.T) {
	database, err := NewSqliteDB(WithPragmas("PRAGMA foreign_keys=ON;"))
	require.NoError(t, err)
	defer database.Close()

	var fk int
	require.NoError(t, database.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)
}
