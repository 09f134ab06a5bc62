package gitremap

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// RewriteDFSPath regenerates a commit ancestry on top of rewritten trees.
// The input is a slice of commits from a depth first search, earlier
// commits first (see [GetDFSPath]), and every commit's tree must already
// have a mapping in the root map - run [RewriteRoots] over
// [DistinctTreeRoots] first.
//
// Each new commit keeps the author info, committer info, message and
// parent ordering of the original, with the tree replaced by its mapped
// counterpart, parent hashes replaced by the already-rewritten parents,
// duplicate parents collapsed to the first occurrence, and gpg sign
// information dropped. The result is saved into s.
//
// This pass is single threaded by necessity: a commit's hash covers its
// parents' rewritten hashes, so ancestry order is a correctness
// requirement.
//
// The returned map carries the old commit hash to new commit hash
// translation for every input commit, for updating refs afterwards.
func RewriteDFSPath(
	ctx context.Context,
	dfspath []*object.Commit,
	s storer.EncodedObjectStorer,
	rootmap RootMap,
) ([]*object.Commit, map[plumbing.Hash]plumbing.Hash, error) {
	if rootmap == nil {
		return nil, nil, ErrNilRootMap
	}

	newpath := make([]*object.Commit, 0, len(dfspath))
	fromorigtonew := make(map[plumbing.Hash]plumbing.Hash, len(dfspath))

	n := len(dfspath)

	for i, c := range dfspath {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}
		if c == nil {
			continue
		}

		newtree, found, err := rootmap.Get(c.TreeHash)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to look up tree %s of commit %s: %w", c.TreeHash.String(), c.Hash.String(), err)
		}
		if !found {
			return nil, nil, fmt.Errorf("%w: tree %s of commit %s", ErrMissingRootEntry, c.TreeHash.String(), c.Hash.String())
		}

		parents := make([]plumbing.Hash, 0, c.NumParents())
		seen := make(map[plumbing.Hash]empty)
	addparentloop:
		for j := 0; j < c.NumParents(); j++ {
			newparent, found := fromorigtonew[c.ParentHashes[j]]
			if !found {
				logger.Warn("parent commit not in rewritten path", "parent", c.ParentHashes[j].String())
				continue addparentloop
			}
			if _, found := seen[newparent]; found {
				continue addparentloop
			}
			parents = append(parents, newparent)
			seen[newparent] = empty{}
		}

		newcommit := &object.Commit{
			Author:       c.Author,
			Committer:    c.Committer,
			Message:      c.Message,
			TreeHash:     newtree,
			ParentHashes: parents,
		}

		newhash, err := GetHash(newcommit)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get hash for new commit: %w", err)
		}
		newcommit.Hash = *newhash

		logger.Debug("rewriting commit", "id", i, "total", n, "commit", c.Hash, "newcommit", newcommit.Hash)

		if err := updateHashAndSave(ctx, newcommit, s); err != nil {
			return nil, nil, errorf(err, "failed to save new commit %s: %w", newcommit.Hash.String(), err)
		}

		newpath = append(newpath, newcommit)
		fromorigtonew[c.Hash] = newcommit.Hash
	}

	return newpath, fromorigtonew, nil
}
