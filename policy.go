package gitremap

import "context"

// Result is the outcome of rewriting one node: the entries that replace the
// node in its parent (usually exactly one, possibly none to drop the node,
// or several to split it), and a Matched flag that the recursion ORs
// together on the way back up. Matched is how a deep transform becomes
// visible to its ancestors, so a policy can act at the root only when
// something actually changed below.
type Result struct {
	Entries []Entry
	Matched bool
}

// passThrough is the default result for a node that stays as it is.
func passThrough(n Node) *Result {
	return &Result{Entries: []Entry{n.Entry}}
}

// Policy is the plug-in contract of the rewrite engine. Every hook is
// optional; a nil hook keeps the engine's default behavior. The defaults
// together form the identity rewrite, which reproduces every tree with its
// original hash.
//
// Hooks must be pure: for a fixed policy, the output of any hook can only
// depend on the node's content and path. The engine memoizes on that
// assumption and runs hooks from multiple workers concurrently.
type Policy struct {
	// TransformTree handles a tree node. Returning a nil [Result] (with a
	// nil error) falls through to the default, which recurses into the
	// tree's entries. A policy typically matches here on the node's path,
	// replaces the matched subtree wholesale, and passes everything
	// outside the watched path through unchanged without recursing.
	TransformTree func(ctx context.Context, e *Engine, node Node) (*Result, error)

	// TransformBlob handles a blob or link node. Returning a nil [Result]
	// falls through to the default, which keeps the node unchanged.
	TransformBlob func(ctx context.Context, e *Engine, node Node) (*Result, error)

	// CombineEntries runs after a tree's children have all been rewritten,
	// with the concatenated child results and the OR of their Matched
	// flags. It can inject or drop entries, e.g. append a synthetic file
	// at the root when matched is set and no such entry came back.
	// The default returns entries as they are.
	CombineEntries func(ctx context.Context, e *Engine, node Node, entries []Entry, matched bool) ([]Entry, error)

	// Depends produces the cache key of a node. The engine guarantees that
	// two nodes with equal keys produce identical rewrite output, so the
	// second is never recomputed. The default keys on full entry metadata
	// plus path; a policy whose hooks only look at content and location
	// can relax this to improve hit rates.
	Depends func(node Node) string
}

func (p *Policy) depends(n Node) string {
	if p != nil && p.Depends != nil {
		return p.Depends(n)
	}

	return dependsKey(n)
}
