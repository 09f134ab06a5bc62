package gitremap

import (
	"bytes"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// Entry is one child reference inside a tree: a mode, the content hash of
// the child, and the name under which the child appears. Identical bytes
// always carry identical hashes, so two entries are the same object if and
// only if their hashes are equal.
type Entry struct {
	Mode filemode.FileMode
	Hash plumbing.Hash
	Name string
}

// IsTree indicates the entry points at another tree.
func (e Entry) IsTree() bool {
	return e.Mode == filemode.Dir
}

// IsLink indicates the entry is a gitlink, pointing at a commit of another
// repository instead of an object in this one.
func (e Entry) IsLink() bool {
	return e.Mode == filemode.Submodule
}

// Node is an [Entry] plus the path at which it was reached from the root.
// Path is positional metadata, not part of content identity: two nodes with
// the same entry at different paths refer to identical content but are
// distinct for policy purposes.
type Node struct {
	Entry

	Path []string
}

// RootNode wraps a root tree hash as a [Node] with an empty path.
func RootNode(h plumbing.Hash) Node {
	return Node{
		Entry: Entry{
			Mode: filemode.Dir,
			Hash: h,
		},
	}
}

// Child creates the node for the entry e reached through n, extending the
// path by the entry's name.
func (n Node) Child(e Entry) Node {
	path := make([]string, 0, len(n.Path)+1)
	path = append(path, n.Path...)
	path = append(path, e.Name)

	return Node{Entry: e, Path: path}
}

// PathString joins the node's path with slashes.
func (n Node) PathString() string {
	return strings.Join(n.Path, "/")
}

// dependsKey builds the default dependency key for a node: full entry
// metadata plus location.
func dependsKey(n Node) string {
	var b strings.Builder

	b.WriteString(n.Mode.String())
	b.WriteByte(' ')
	b.WriteString(n.Hash.String())
	b.WriteByte(' ')
	b.WriteString(n.Name)
	b.WriteByte('\x00')
	b.WriteString(n.PathString())

	return b.String()
}

// contentDependsKey keys a node on content and location only, ignoring mode
// and name. Policies whose predicates only look at hashes and paths use
// this to improve cache hit rates.
func contentDependsKey(n Node) string {
	return n.Hash.String() + "\x00" + n.PathString()
}

// sortedByHash returns a copy of entries ordered by content hash. Ordering
// by hash rather than name means two trees that differ only in declared
// entry order compare as equal.
func sortedByHash(entries []Entry) []Entry {
	r := slices.Clone(entries)

	slices.SortFunc(r, func(a, b Entry) int {
		if c := bytes.Compare(a.Hash[:], b.Hash[:]); c != 0 {
			return c
		}
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}

		return int(a.Mode) - int(b.Mode)
	})

	return r
}
