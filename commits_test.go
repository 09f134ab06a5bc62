package gitremap_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/fardream/gitremap"
)

var testWhen = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func testSignature(offset time.Duration) object.Signature {
	return object.Signature{
		Name:  "A Tester",
		Email: "tester@example.com",
		When:  testWhen.Add(offset),
	}
}

// saveCommit stores the commit and returns it re-read from storage, bound
// to the storer so parent lookups work.
func saveCommit(t *testing.T, f *fixture, c *object.Commit) *object.Commit {
	t.Helper()

	o := f.s.NewEncodedObject()
	if err := c.Encode(o); err != nil {
		t.Fatal(err)
	}
	h, err := f.s.SetEncodedObject(o)
	if err != nil {
		t.Fatal(err)
	}

	saved, err := object.GetCommit(f.s, h)
	if err != nil {
		t.Fatal(err)
	}

	return saved
}

func commitOn(t *testing.T, f *fixture, tree plumbing.Hash, message string, offset time.Duration, parents ...*object.Commit) *object.Commit {
	t.Helper()

	c := &object.Commit{
		Author:    testSignature(offset),
		Committer: testSignature(offset),
		Message:   message,
		TreeHash:  tree,
	}
	for _, p := range parents {
		c.ParentHashes = append(c.ParentHashes, p.Hash)
	}

	return saveCommit(t, f, c)
}

func TestRewriteDFSPath(t *testing.T) {
	f := newFixture(t)

	tree1 := f.tree(t, blobEntry("a.txt", f.blob(t, "v1\n")))
	tree2 := f.tree(t, blobEntry("a.txt", f.blob(t, "v2\n")))
	tree3 := f.tree(t, blobEntry("a.txt", f.blob(t, "v3\n")))

	c1 := commitOn(t, f, tree1, "root commit\n", 0)
	c2a := commitOn(t, f, tree2, "left branch\n", time.Minute, c1)
	c2b := commitOn(t, f, tree3, "right branch\n", 2*time.Minute, c1)
	merge := commitOn(t, f, tree3, "merge\n", 3*time.Minute, c2a, c2b)

	// the rewritten trees: each original root maps to a distinct new tree.
	newTree1 := f.tree(t, blobEntry("b.txt", f.blob(t, "n1\n")))
	newTree2 := f.tree(t, blobEntry("b.txt", f.blob(t, "n2\n")))
	newTree3 := f.tree(t, blobEntry("b.txt", f.blob(t, "n3\n")))

	rootmap := gitremap.NewMemRootMap()
	for old, new := range map[plumbing.Hash]plumbing.Hash{
		tree1: newTree1,
		tree2: newTree2,
		tree3: newTree3,
	} {
		if err := rootmap.Put(old, new); err != nil {
			t.Fatal(err)
		}
	}

	path, err := gitremap.GetDFSPath(context.Background(), merge, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 4 || path[0].Hash != c1.Hash || path[len(path)-1].Hash != merge.Hash {
		t.Fatalf("unexpected dfs path of %d commits", len(path))
	}

	newpath, oldtonew, err := gitremap.RewriteDFSPath(context.Background(), path, f.s, rootmap)
	if err != nil {
		t.Fatal(err)
	}

	if len(newpath) != 4 {
		t.Fatalf("got %d new commits, want 4", len(newpath))
	}

	for _, old := range path {
		if _, found := oldtonew[old.Hash]; !found {
			t.Fatalf("commit %s has no mapping", old.Hash)
		}
	}

	newmerge, err := object.GetCommit(f.s, oldtonew[merge.Hash])
	if err != nil {
		t.Fatal(err)
	}

	if newmerge.TreeHash != newTree3 {
		t.Fatalf("merge tree = %s, want %s", newmerge.TreeHash, newTree3)
	}
	if newmerge.Message != merge.Message ||
		newmerge.Author.Name != merge.Author.Name ||
		newmerge.Author.Email != merge.Author.Email ||
		!newmerge.Author.When.Equal(merge.Author.When) {
		t.Fatal("merge metadata not preserved")
	}
	if len(newmerge.ParentHashes) != 2 ||
		newmerge.ParentHashes[0] != oldtonew[c2a.Hash] ||
		newmerge.ParentHashes[1] != oldtonew[c2b.Hash] {
		t.Fatalf("merge parents not mapped in order: %v", newmerge.ParentHashes)
	}

	newroot, err := object.GetCommit(f.s, oldtonew[c1.Hash])
	if err != nil {
		t.Fatal(err)
	}
	if len(newroot.ParentHashes) != 0 {
		t.Fatal("root commit gained parents")
	}
}

func TestRewriteDFSPath_dropsSignature(t *testing.T) {
	f := newFixture(t)

	tree1 := f.tree(t, blobEntry("a.txt", f.blob(t, "v1\n")))

	signed := &object.Commit{
		Author:       testSignature(0),
		Committer:    testSignature(0),
		Message:      "signed commit\n",
		TreeHash:     tree1,
		PGPSignature: "-----BEGIN PGP SIGNATURE-----\nfake\n-----END PGP SIGNATURE-----\n",
	}
	c := saveCommit(t, f, signed)

	rootmap := gitremap.NewMemRootMap()
	if err := rootmap.Put(tree1, tree1); err != nil {
		t.Fatal(err)
	}

	_, oldtonew, err := gitremap.RewriteDFSPath(context.Background(), []*object.Commit{c}, f.s, rootmap)
	if err != nil {
		t.Fatal(err)
	}

	rewritten, err := object.GetCommit(f.s, oldtonew[c.Hash])
	if err != nil {
		t.Fatal(err)
	}
	if rewritten.PGPSignature != "" {
		t.Fatal("gpg signature survived the rewrite")
	}
	if rewritten.Hash == c.Hash {
		t.Fatal("rewritten commit kept the original hash")
	}
}

func TestRewriteDFSPath_missingMapping(t *testing.T) {
	f := newFixture(t)

	tree1 := f.tree(t, blobEntry("a.txt", f.blob(t, "v1\n")))
	c := commitOn(t, f, tree1, "orphan tree\n", 0)

	_, _, err := gitremap.RewriteDFSPath(context.Background(), []*object.Commit{c}, f.s, gitremap.NewMemRootMap())
	if !errors.Is(err, gitremap.ErrMissingRootEntry) {
		t.Fatalf("want ErrMissingRootEntry, got %v", err)
	}
}
