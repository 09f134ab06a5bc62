package gitremap

import (
	"fmt"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"
	"go.etcd.io/bbolt"
)

// RootMap is the durable old-root to new-root mapping bridging the
// parallel tree-rewrite phase and the sequential commit-rewrite phase.
// It is append-only: every key is written once, by whichever worker
// finishes that root, and duplicate writes always carry the same value.
type RootMap interface {
	// Put records that old rewrites to new.
	Put(old, new plumbing.Hash) error
	// Get looks up the mapping for old.
	Get(old plumbing.Hash) (plumbing.Hash, bool, error)
	// Len reports the number of recorded mappings.
	Len() (int, error)
}

var rootMapBucket = []byte("rootmap")

// BoltRootMap is a [RootMap] persisted in a [bbolt.DB], one record per
// root. Each Put is its own write transaction, so a mapping survives even
// when the run is interrupted right after its root completes.
type BoltRootMap struct {
	db *bbolt.DB
}

var _ RootMap = (*BoltRootMap)(nil)

// OpenBoltRootMap opens (creating if needed) the root map database at
// path.
func OpenBoltRootMap(path string) (*BoltRootMap, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open root map at %s: %w", path, err)
	}

	return &BoltRootMap{db: db}, nil
}

func (m *BoltRootMap) Close() error {
	return m.db.Close()
}

func (m *BoltRootMap) Put(old, new plumbing.Hash) error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(rootMapBucket)
		if err != nil {
			return err
		}

		return b.Put(old[:], new[:])
	})
}

func (m *BoltRootMap) Get(old plumbing.Hash) (plumbing.Hash, bool, error) {
	r := plumbing.ZeroHash
	found := false

	err := m.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(rootMapBucket)
		if b == nil {
			return nil
		}
		v := b.Get(old[:])
		if v == nil {
			return nil
		}

		copy(r[:], v)
		found = true

		return nil
	})

	return r, found, err
}

func (m *BoltRootMap) Len() (int, error) {
	n := 0

	err := m.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(rootMapBucket)
		if b == nil {
			return nil
		}
		n = b.Stats().KeyN

		return nil
	})

	return n, err
}

// MemRootMap is an in-memory [RootMap] for tests and embedding. Safe for
// concurrent use.
type MemRootMap struct {
	m sync.Map
}

var _ RootMap = (*MemRootMap)(nil)

func NewMemRootMap() *MemRootMap {
	return &MemRootMap{}
}

func (m *MemRootMap) Put(old, new plumbing.Hash) error {
	m.m.Store(old, new)

	return nil
}

func (m *MemRootMap) Get(old plumbing.Hash) (plumbing.Hash, bool, error) {
	v, found := m.m.Load(old)
	if !found {
		return plumbing.ZeroHash, false, nil
	}

	return v.(plumbing.Hash), true, nil
}

func (m *MemRootMap) Len() (int, error) {
	n := 0
	m.m.Range(func(any, any) bool {
		n++

		return true
	})

	return n, nil
}
