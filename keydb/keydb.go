// Package keydb implements the per-scheme key store of spec §6.3, backed
// by github.com/cockroachdb/pebble (an indirect dependency of the teacher
// repo, here promoted to a direct one as the engine's persistent key
// store — the only durable cross-ceremony state per spec §5).
package keydb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// schemaVersion is the current on-disk layout version, prefixed to
// every key so a future migration can detect and upgrade older stores.
const schemaVersion byte = 1

var (
	genesisHashKey   = []byte{0x00}
	schemaVersionKey = []byte{0x01}

	// ErrSchemaTooNew is returned when opening a store written by a
	// newer schema version than this binary understands.
	ErrSchemaTooNew = errors.New("keydb: store schema version is newer than this binary supports")
	// ErrGenesisMismatch is returned when the store's committed genesis
	// hash does not match the one this process was started with.
	ErrGenesisMismatch = errors.New("keydb: genesis hash does not match the committed value")
)

// Store is a schema-version-prefixed, genesis-hash-committed key-value
// store of KeygenResultInfo entries, keyed by key id (spec §6.3).
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the pebble store at path, committing
// genesisHash on first write and refusing to load on a mismatch against
// a previously committed one.
func Open(path string, genesisHash [32]byte) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("keydb: opening %s: %w", path, err)
	}
	s := &Store{db: db}

	existingVersion, vCloser, err := db.Get(schemaVersionKey)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		if putErr := db.Set(schemaVersionKey, []byte{schemaVersion}, pebble.Sync); putErr != nil {
			db.Close()
			return nil, fmt.Errorf("keydb: committing schema version: %w", putErr)
		}
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("keydb: reading schema version: %w", err)
	default:
		version := existingVersion[0]
		vCloser.Close()
		if version > schemaVersion {
			db.Close()
			return nil, ErrSchemaTooNew
		}
		if version < schemaVersion {
			if err := migrate(db, version, schemaVersion); err != nil {
				db.Close()
				return nil, fmt.Errorf("keydb: migrating schema from v%d to v%d: %w", version, schemaVersion, err)
			}
		}
	}

	existing, closer, err := db.Get(genesisHashKey)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
		if putErr := db.Set(genesisHashKey, genesisHash[:], pebble.Sync); putErr != nil {
			db.Close()
			return nil, fmt.Errorf("keydb: committing genesis hash: %w", putErr)
		}
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("keydb: reading genesis hash: %w", err)
	default:
		mismatch := !bytesEqual(existing, genesisHash[:])
		closer.Close()
		if mismatch {
			db.Close()
			return nil, ErrGenesisMismatch
		}
	}

	return s, nil
}

// migrate upgrades the on-disk layout from schema version `from` to
// `to`. Schema v1 is the only version that has ever shipped, so there is
// nothing to rewrite yet beyond bumping the committed version marker;
// this is the hook a future layout change plugs an actual rewrite into.
func migrate(db *pebble.DB, from, to byte) error {
	if to != schemaVersion {
		return fmt.Errorf("keydb: no migration path to schema v%d", to)
	}
	return db.Set(schemaVersionKey, []byte{to}, pebble.Sync)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Close releases the underlying pebble handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func entryKey(scheme uint16, keyID uint64) []byte {
	buf := make([]byte, 1+2+8)
	buf[0] = schemaVersion
	binary.BigEndian.PutUint16(buf[1:3], scheme)
	binary.BigEndian.PutUint64(buf[3:11], keyID)
	return buf
}

// Put writes a new key entry. Per spec §6.3 "writes are additive" —
// callers should not overwrite an existing key id; Put does not enforce
// this itself (pebble's Set is unconditional), so the Ceremony Manager
// is responsible for only calling it once per freshly-produced key id.
func (s *Store) Put(scheme uint16, keyID uint64, data []byte) error {
	if err := s.db.Set(entryKey(scheme, keyID), data, pebble.Sync); err != nil {
		return fmt.Errorf("keydb: writing key %d: %w", keyID, err)
	}
	return nil
}

// Get reads a key entry by scheme and key id.
func (s *Store) Get(scheme uint16, keyID uint64) ([]byte, error) {
	v, closer, err := s.db.Get(entryKey(scheme, keyID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("keydb: reading key %d: %w", keyID, err)
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}
