package keydb

import (
	"errors"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/require"
)

func TestStore_PutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	var genesis [32]byte
	genesis[0] = 0xAB

	store, err := Open(dir, genesis)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(1, 42, []byte("share-bytes")))
	got, err := store.Get(1, 42)
	require.NoError(t, err)
	require.Equal(t, []byte("share-bytes"), got)

	// Distinct (scheme, keyID) pairs must not collide.
	require.NoError(t, store.Put(2, 42, []byte("other-scheme-same-id")))
	got2, err := store.Get(2, 42)
	require.NoError(t, err)
	require.Equal(t, []byte("other-scheme-same-id"), got2)

	stillFirst, err := store.Get(1, 42)
	require.NoError(t, err)
	require.Equal(t, []byte("share-bytes"), stillFirst)
}

func TestStore_MissingKeyReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, [32]byte{})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(1, 999)
	require.Error(t, err)
	require.True(t, errors.Is(err, pebble.ErrNotFound))
}

func TestOpen_RejectsGenesisMismatchOnReopen(t *testing.T) {
	dir := t.TempDir()
	var genesisA, genesisB [32]byte
	genesisA[0] = 1
	genesisB[0] = 2

	store, err := Open(dir, genesisA)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Open(dir, genesisB)
	require.ErrorIs(t, err, ErrGenesisMismatch)
}

func TestOpen_AcceptsMatchingGenesisOnReopen(t *testing.T) {
	dir := t.TempDir()
	var genesis [32]byte
	genesis[0] = 7

	store, err := Open(dir, genesis)
	require.NoError(t, err)
	require.NoError(t, store.Put(1, 1, []byte("x")))
	require.NoError(t, store.Close())

	reopened, err := Open(dir, genesis)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(1, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), got)
}

func TestOpen_RefusesNewerSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	var genesis [32]byte

	store, err := Open(dir, genesis)
	require.NoError(t, err)
	require.NoError(t, store.db.Set(schemaVersionKey, []byte{schemaVersion + 1}, pebble.Sync))
	require.NoError(t, store.Close())

	_, err = Open(dir, genesis)
	require.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestOpen_MigratesOlderSchemaVersionInPlace(t *testing.T) {
	dir := t.TempDir()
	var genesis [32]byte

	store, err := Open(dir, genesis)
	require.NoError(t, err)
	require.NoError(t, store.Put(1, 1, []byte("pre-migration")))
	require.NoError(t, store.db.Set(schemaVersionKey, []byte{schemaVersion - 1}, pebble.Sync))
	require.NoError(t, store.Close())

	reopened, err := Open(dir, genesis)
	require.NoError(t, err)
	defer reopened.Close()

	version, closer, err := reopened.db.Get(schemaVersionKey)
	require.NoError(t, err)
	require.Equal(t, schemaVersion, version[0])
	closer.Close()

	got, err := reopened.Get(1, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("pre-migration"), got)
}
