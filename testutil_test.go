package gitremap_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/fardream/gitremap"
)

type fixture struct {
	s     *memory.Storage
	store *gitremap.GitStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := memory.NewStorage()
	store, err := gitremap.NewGitStore(s)
	if err != nil {
		t.Fatal(err)
	}

	return &fixture{s: s, store: store}
}

func (f *fixture) blob(t *testing.T, content string) plumbing.Hash {
	t.Helper()

	h, err := f.store.WriteBlob(context.Background(), []byte(content))
	if err != nil {
		t.Fatal(err)
	}

	return h
}

func (f *fixture) tree(t *testing.T, entries ...gitremap.Entry) plumbing.Hash {
	t.Helper()

	h, err := f.store.WriteTree(context.Background(), entries)
	if err != nil {
		t.Fatal(err)
	}

	return h
}

func (f *fixture) entries(t *testing.T, tree plumbing.Hash) []gitremap.Entry {
	t.Helper()

	entries, err := f.store.ListEntries(context.Background(), tree)
	if err != nil {
		t.Fatal(err)
	}

	return entries
}

func (f *fixture) content(t *testing.T, blob plumbing.Hash) string {
	t.Helper()

	data, err := f.store.ReadBlob(context.Background(), blob)
	if err != nil {
		t.Fatal(err)
	}

	return string(data)
}

func blobEntry(name string, h plumbing.Hash) gitremap.Entry {
	return gitremap.Entry{Mode: filemode.Regular, Hash: h, Name: name}
}

func treeEntry(name string, h plumbing.Hash) gitremap.Entry {
	return gitremap.Entry{Mode: filemode.Dir, Hash: h, Name: name}
}

func findEntry(t *testing.T, entries []gitremap.Entry, name string) gitremap.Entry {
	t.Helper()

	for _, e := range entries {
		if e.Name == name {
			return e
		}
	}

	t.Fatalf("no entry named %s", name)

	return gitremap.Entry{}
}

func hasEntry(entries []gitremap.Entry, name string) bool {
	for _, e := range entries {
		if e.Name == name {
			return true
		}
	}

	return false
}

// countingStore wraps an [gitremap.ObjectStore] and counts writes.
type countingStore struct {
	gitremap.ObjectStore

	treeWrites atomic.Int64
	blobWrites atomic.Int64
}

func (c *countingStore) WriteTree(ctx context.Context, entries []gitremap.Entry) (plumbing.Hash, error) {
	c.treeWrites.Add(1)

	return c.ObjectStore.WriteTree(ctx, entries)
}

func (c *countingStore) WriteBlob(ctx context.Context, data []byte) (plumbing.Hash, error) {
	c.blobWrites.Add(1)

	return c.ObjectStore.WriteBlob(ctx, data)
}
