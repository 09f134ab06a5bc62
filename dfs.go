package gitremap

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/object"
)

type dfsNode struct {
	data      *object.Commit
	nparent   int
	nextvisit int
}

type dfsBuilder struct {
	seen  HashSet
	stack []*dfsNode
}

func newDFSBuilder() *dfsBuilder {
	return &dfsBuilder{
		stack: make([]*dfsNode, 0),
		seen:  make(HashSet),
	}
}

func (gb *dfsBuilder) add(v *object.Commit) {
	if _, seen := gb.seen[v.Hash]; seen {
		return
	}

	gb.seen[v.Hash] = empty{}
	gb.stack = append(gb.stack, &dfsNode{
		data:    v,
		nparent: v.NumParents(),
	})
}

func (gb *dfsBuilder) pop() error {
	if len(gb.stack) == 0 {
		return fmt.Errorf("failed to pop empty stack")
	}

	gb.stack = gb.stack[:len(gb.stack)-1]

	return nil
}

func (gb *dfsBuilder) top() *dfsNode {
	if len(gb.stack) == 0 {
		return nil
	}

	return gb.stack[len(gb.stack)-1]
}

// GetDFSPath gets a deterministic depth first search path from a head
// commit. The returned slice has one of the root commits first and the
// head commit last, so every commit appears after all of its listed
// parents - the order [RewriteDFSPath] requires. The search always visits
// the first parent before the second, and so on.
//
// roots can optionally be set to stop the search at those commits, which
// then become roots of the rewritten history.
func GetDFSPath(
	ctx context.Context,
	head *object.Commit,
	roots HashSet,
) ([]*object.Commit, error) {
	result := make([]*object.Commit, 0)
	gb := newDFSBuilder()

	gb.add(head)

	if roots == nil {
		roots = make(HashSet)
	}

addloop:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		current := gb.top()

		if current == nil {
			break addloop
		}

		_, isroot := roots[current.data.Hash]
		switch {
		case current.nextvisit == current.nparent || isroot:
			result = append(result, current.data)
			if err := gb.pop(); err != nil {
				return nil, err
			}
		default:
			p, err := current.data.Parent(current.nextvisit)
			if err != nil {
				return nil, fmt.Errorf(
					"cannot get parent %d for %s: %w",
					current.nextvisit,
					current.data.Hash.String(),
					err)
			}
			current.nextvisit += 1
			gb.add(p)
		}
	}

	return result, nil
}
