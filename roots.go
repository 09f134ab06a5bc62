package gitremap

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DistinctTreeRoots collects the deduplicated root tree hashes of the
// input commits - one per distinct snapshot in the selected history. The
// result is the scheduler input for [RewriteRoots]; its order carries no
// meaning.
func DistinctTreeRoots(commits []*object.Commit) []plumbing.Hash {
	result := make([]plumbing.Hash, 0, len(commits))
	seen := make(HashSet)

	for _, c := range commits {
		if c == nil || c.TreeHash.IsZero() {
			continue
		}
		if _, in := seen[c.TreeHash]; in {
			continue
		}

		seen[c.TreeHash] = empty{}
		result = append(result, c.TreeHash)
	}

	return result
}
