package gitremap

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ObjectStore is the content-addressed storage the rewrite engine runs
// against. Writes are idempotent: writing an identical content-set yields
// the identical hash without error, so duplicate writes from concurrent
// workers are harmless.
type ObjectStore interface {
	// ListEntries returns the entries of the tree in their stored order.
	ListEntries(ctx context.Context, treeHash plumbing.Hash) ([]Entry, error)
	// WriteTree stores a tree with the given entries and returns its hash.
	WriteTree(ctx context.Context, entries []Entry) (plumbing.Hash, error)
	// ReadBlob returns the content of the blob.
	ReadBlob(ctx context.Context, blobHash plumbing.Hash) ([]byte, error)
	// WriteBlob stores the content as a blob and returns its hash.
	WriteBlob(ctx context.Context, data []byte) (plumbing.Hash, error)
}

// GitStore implements [ObjectStore] on a [storer.EncodedObjectStorer],
// with small LRU caches in front of tree listings and blob reads. Many
// historical roots share subtrees, so reads repeat heavily even with the
// rewrite cache deduplicating the transforms themselves.
type GitStore struct {
	s storer.EncodedObjectStorer

	trees *lru.Cache[plumbing.Hash, []Entry]
	blobs *lru.Cache[plumbing.Hash, []byte]
}

var _ ObjectStore = (*GitStore)(nil)

const (
	defaultTreeCacheSize = 4096
	defaultBlobCacheSize = 512
)

// NewGitStore creates a [GitStore] on s with default cache sizes.
func NewGitStore(s storer.EncodedObjectStorer) (*GitStore, error) {
	return NewGitStoreWithCacheSizes(s, defaultTreeCacheSize, defaultBlobCacheSize)
}

// NewGitStoreWithCacheSizes is [NewGitStore] with explicit cache sizes.
func NewGitStoreWithCacheSizes(s storer.EncodedObjectStorer, treeCacheSize, blobCacheSize int) (*GitStore, error) {
	if s == nil {
		return nil, ErrNilStore
	}

	trees, err := lru.New[plumbing.Hash, []Entry](treeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create tree cache: %w", err)
	}
	blobs, err := lru.New[plumbing.Hash, []byte](blobCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob cache: %w", err)
	}

	return &GitStore{s: s, trees: trees, blobs: blobs}, nil
}

func (g *GitStore) ListEntries(ctx context.Context, treeHash plumbing.Hash) ([]Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if entries, found := g.trees.Get(treeHash); found {
		return slices.Clone(entries), nil
	}

	t, err := object.GetTree(g.s, treeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree %s: %w", treeHash.String(), err)
	}

	entries := make([]Entry, 0, len(t.Entries))
	for _, e := range t.Entries {
		entries = append(entries, Entry{Mode: e.Mode, Hash: e.Hash, Name: e.Name})
	}

	g.trees.Add(treeHash, entries)

	return slices.Clone(entries), nil
}

func (g *GitStore) WriteTree(ctx context.Context, entries []Entry) (plumbing.Hash, error) {
	select {
	case <-ctx.Done():
		return plumbing.ZeroHash, ctx.Err()
	default:
	}

	tentries := make([]object.TreeEntry, 0, len(entries))
	for _, e := range entries {
		tentries = append(tentries, object.TreeEntry{Name: e.Name, Mode: e.Mode, Hash: e.Hash})
	}
	sortTreeOrder(tentries)

	t := &object.Tree{Entries: tentries}

	o := g.s.NewEncodedObject()
	if err := t.Encode(o); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}

	h, err := g.s.SetEncodedObject(o)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}

	g.trees.Add(h, slices.Clone(entries))

	return h, nil
}

func (g *GitStore) ReadBlob(ctx context.Context, blobHash plumbing.Hash) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if data, found := g.blobs.Get(blobHash); found {
		return slices.Clone(data), nil
	}

	b, err := object.GetBlob(g.s, blobHash)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", blobHash.String(), err)
	}

	r, err := b.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", blobHash.String(), err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s content: %w", blobHash.String(), err)
	}

	g.blobs.Add(blobHash, data)

	return slices.Clone(data), nil
}

func (g *GitStore) WriteBlob(ctx context.Context, data []byte) (plumbing.Hash, error) {
	select {
	case <-ctx.Done():
		return plumbing.ZeroHash, ctx.Err()
	default:
	}

	o := g.s.NewEncodedObject()
	o.SetType(plumbing.BlobObject)
	o.SetSize(int64(len(data)))

	w, err := o.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to open blob writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob content: %w", err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to close blob writer: %w", err)
	}

	h, err := g.s.SetEncodedObject(o)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}

	return h, nil
}

// sortTreeOrder sorts entries into git's canonical tree order, where
// subtree names compare as if they had a trailing slash.
func sortTreeOrder(entries []object.TreeEntry) {
	slices.SortFunc(entries, func(a, b object.TreeEntry) int {
		return strings.Compare(treeOrderName(a), treeOrderName(b))
	})
}

func treeOrderName(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}

	return e.Name
}
