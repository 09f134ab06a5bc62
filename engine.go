package gitremap

import (
	"context"
	"slices"

	"github.com/go-git/go-git/v5/plumbing"
)

// Engine is the recursive, memoizing tree rewriter. It walks trees through
// the [ObjectStore], applies the [Policy] hooks, and caches every rewrite
// by (operation, dependency key) so byte-identical subtrees reached from
// different historical roots are processed once.
//
// One Engine is shared by all workers of a run. All of its methods are safe
// for concurrent use provided the policy hooks are pure.
type Engine struct {
	store   ObjectStore
	policy  *Policy
	rootmap RootMap

	cache rewriteCache
}

// NewEngine creates an [Engine]. policy may be nil for the identity
// rewrite. rootmap may be nil when root mappings need not be persisted,
// e.g. when the engine is embedded for one-off tree transforms.
func NewEngine(store ObjectStore, policy *Policy, rootmap RootMap) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	return &Engine{store: store, policy: policy, rootmap: rootmap}, nil
}

// Store returns the object store the engine runs against, for use by
// policy hooks that read or write content.
func (e *Engine) Store() ObjectStore {
	return e.store
}

// RewriteRoot rewrites the tree reachable from root and records the
// old-to-new mapping in the root map. The rewrite of the root node must
// come back as exactly one entry.
//
// RewriteRoot does not consult the root map before computing: whether
// already-mapped roots are skipped is the scheduler's decision.
func (e *Engine) RewriteRoot(ctx context.Context, root plumbing.Hash) (plumbing.Hash, error) {
	res, err := e.dispatch(ctx, RootNode(root))
	if err != nil {
		return plumbing.ZeroHash, errorf(err, "failed to rewrite root %s: %w", root.String(), err)
	}

	switch {
	case len(res.Entries) == 0:
		return plumbing.ZeroHash, ErrEmptyRootEntries
	case len(res.Entries) > 1:
		return plumbing.ZeroHash, ErrMultiRootEntries
	}

	newroot := res.Entries[0].Hash

	if e.rootmap != nil {
		if err := e.rootmap.Put(root, newroot); err != nil {
			return plumbing.ZeroHash, errorf(err, "failed to record mapping for root %s: %w", root.String(), err)
		}
	}

	return newroot, nil
}

// dispatch routes the node to the tree or blob rewrite by kind, memoized
// per operation name and dependency key.
func (e *Engine) dispatch(ctx context.Context, node Node) (*Result, error) {
	op := "blob"
	if node.IsTree() {
		op = "tree"
	}

	return e.cache.do(op, e.policy.depends(node), func() (*Result, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if node.IsTree() {
			return e.rewriteTree(ctx, node)
		}

		return e.rewriteBlob(ctx, node)
	})
}

func (e *Engine) rewriteTree(ctx context.Context, node Node) (*Result, error) {
	if e.policy != nil && e.policy.TransformTree != nil {
		res, err := e.policy.TransformTree(ctx, e, node)
		if err != nil {
			return nil, errorf(err, "policy failed on tree %s at %q: %w", node.Hash.String(), node.PathString(), err)
		}
		if res != nil {
			return res, nil
		}
	}

	old, err := e.store.ListEntries(ctx, node.Hash)
	if err != nil {
		return nil, err
	}

	entries, matched, err := e.mapEntries(ctx, node, old)
	if err != nil {
		return nil, err
	}

	if e.policy != nil && e.policy.CombineEntries != nil {
		entries, err = e.policy.CombineEntries(ctx, e, node, entries, matched)
		if err != nil {
			return nil, errorf(err, "policy failed combining entries of %s at %q: %w", node.Hash.String(), node.PathString(), err)
		}
	}

	// Compare old and new ordered by hash, not name: a tree whose entries
	// all survived keeps its original hash without a store write, and two
	// orderings of the same hash-set count as unchanged.
	hash := node.Hash
	if !slices.Equal(sortedByHash(old), sortedByHash(entries)) {
		hash, err = e.store.WriteTree(ctx, entries)
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Entries: []Entry{{Mode: node.Mode, Hash: hash, Name: node.Name}},
		Matched: matched,
	}, nil
}

// mapEntries rewrites each child of node in turn, concatenating their
// replacement entries and ORing their matched flags. Recursion within one
// tree is sequential; parallelism comes from the scheduler running many
// roots at once.
func (e *Engine) mapEntries(ctx context.Context, node Node, old []Entry) ([]Entry, bool, error) {
	entries := make([]Entry, 0, len(old))
	matched := false

	for _, c := range old {
		res, err := e.dispatch(ctx, node.Child(c))
		if err != nil {
			return nil, false, err
		}

		entries = append(entries, res.Entries...)
		matched = matched || res.Matched
	}

	return entries, matched, nil
}

func (e *Engine) rewriteBlob(ctx context.Context, node Node) (*Result, error) {
	if e.policy != nil && e.policy.TransformBlob != nil {
		res, err := e.policy.TransformBlob(ctx, e, node)
		if err != nil {
			return nil, errorf(err, "policy failed on blob %s at %q: %w", node.Hash.String(), node.PathString(), err)
		}
		if res != nil {
			return res, nil
		}
	}

	return passThrough(node), nil
}
