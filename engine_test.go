package gitremap_test

import (
	"context"
	"slices"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/fardream/gitremap"
)

// a small nested tree: root { libs { foo { a.txt }, bar.txt }, README.md }
func buildNested(t *testing.T, f *fixture) plumbing.Hash {
	t.Helper()

	foo := f.tree(t, blobEntry("a.txt", f.blob(t, "a content\n")))
	libs := f.tree(t,
		treeEntry("foo", foo),
		blobEntry("bar.txt", f.blob(t, "bar content\n")),
	)

	return f.tree(t,
		treeEntry("libs", libs),
		blobEntry("README.md", f.blob(t, "readme\n")),
	)
}

func TestRewriteRoot_identity(t *testing.T) {
	f := newFixture(t)
	root := buildNested(t, f)

	counting := &countingStore{ObjectStore: f.store}
	rootmap := gitremap.NewMemRootMap()

	engine, err := gitremap.NewEngine(counting, nil, rootmap)
	if err != nil {
		t.Fatal(err)
	}

	newroot, err := engine.RewriteRoot(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	if newroot != root {
		t.Fatalf("identity rewrite changed the root: %s -> %s", root, newroot)
	}
	if n := counting.treeWrites.Load(); n != 0 {
		t.Fatalf("identity rewrite wrote %d trees", n)
	}

	mapped, found, err := rootmap.Get(root)
	if err != nil {
		t.Fatal(err)
	}
	if !found || mapped != root {
		t.Fatalf("root map entry missing or wrong: found=%v mapped=%s", found, mapped)
	}
}

func TestRewriteRoot_idempotent(t *testing.T) {
	f := newFixture(t)
	root := buildNested(t, f)

	foo := findEntry(t, f.entries(t, findEntry(t, f.entries(t, root), "libs").Hash), "foo")

	policy, err := gitremap.NewDir2Mod("libs/foo", "https://example.com/foo.git", "", gitremap.MapSubmoduleMap{
		foo.Hash: gitremap.MustDecodeHashHex("1111111111111111111111111111111111111111"),
	})
	if err != nil {
		t.Fatal(err)
	}

	first := rewriteOnce(t, f, policy, root)
	second := rewriteOnce(t, f, policy, root)

	if first != second {
		t.Fatalf("rewriting twice produced different roots: %s vs %s", first, second)
	}
}

// rewriteOnce runs a fresh engine over root so nothing is served from a
// previous run's cache.
func rewriteOnce(t *testing.T, f *fixture, policy *gitremap.Dir2Mod, root plumbing.Hash) plumbing.Hash {
	t.Helper()

	engine, err := gitremap.NewEngine(f.store, policy.Policy(), gitremap.NewMemRootMap())
	if err != nil {
		t.Fatal(err)
	}

	newroot, err := engine.RewriteRoot(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	return newroot
}

func TestRewriteRoot_hashSetComparison(t *testing.T) {
	f := newFixture(t)
	root := buildNested(t, f)

	// a policy that only reorders a tree's entries produces the same
	// hash-set, which must count as unchanged.
	policy := &gitremap.Policy{
		CombineEntries: func(_ context.Context, _ *gitremap.Engine, _ gitremap.Node, entries []gitremap.Entry, _ bool) ([]gitremap.Entry, error) {
			slices.Reverse(entries)

			return entries, nil
		},
	}

	counting := &countingStore{ObjectStore: f.store}
	engine, err := gitremap.NewEngine(counting, policy, gitremap.NewMemRootMap())
	if err != nil {
		t.Fatal(err)
	}

	newroot, err := engine.RewriteRoot(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}

	if newroot != root {
		t.Fatalf("reordered entries changed the root: %s -> %s", root, newroot)
	}
	if n := counting.treeWrites.Load(); n != 0 {
		t.Fatalf("reordering wrote %d trees", n)
	}
}

func TestRewriteRoot_cacheSingleComputation(t *testing.T) {
	f := newFixture(t)

	shared := f.tree(t, blobEntry("s.txt", f.blob(t, "shared\n")))

	// two distinct roots carrying the identical subtree at the same path.
	rootA := f.tree(t,
		treeEntry("shared", shared),
		blobEntry("a.txt", f.blob(t, "a\n")),
	)
	rootB := f.tree(t,
		treeEntry("shared", shared),
		blobEntry("b.txt", f.blob(t, "b\n")),
	)

	sharedSeen := 0
	policy := &gitremap.Policy{
		TransformTree: func(_ context.Context, _ *gitremap.Engine, node gitremap.Node) (*gitremap.Result, error) {
			if node.Hash == shared {
				sharedSeen++
			}

			return nil, nil
		},
	}

	engine, err := gitremap.NewEngine(f.store, policy, gitremap.NewMemRootMap())
	if err != nil {
		t.Fatal(err)
	}

	for _, root := range []plumbing.Hash{rootA, rootB} {
		newroot, err := engine.RewriteRoot(context.Background(), root)
		if err != nil {
			t.Fatal(err)
		}
		if newroot != root {
			t.Fatalf("identity rewrite changed root %s to %s", root, newroot)
		}
	}

	if sharedSeen != 1 {
		t.Fatalf("shared subtree transformed %d times, want 1", sharedSeen)
	}
}

func TestGitStore_canonicalTreeOrder(t *testing.T) {
	f := newFixture(t)

	a := f.blob(t, "a\n")
	b := f.blob(t, "b\n")
	sub := f.tree(t, blobEntry("x", a))

	h1 := f.tree(t, blobEntry("z", a), treeEntry("m", sub), blobEntry("a", b))
	h2 := f.tree(t, blobEntry("a", b), blobEntry("z", a), treeEntry("m", sub))

	if h1 != h2 {
		t.Fatalf("entry order changed the tree hash: %s vs %s", h1, h2)
	}
}
