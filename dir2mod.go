package gitremap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// SubmoduleMap resolves the hash of the watched folder's tree at some
// historical point to the hash of the submodule commit replacing it. The
// caller prepares this mapping beforehand, typically by importing the
// folder's own history into the submodule repository.
type SubmoduleMap interface {
	Lookup(ctx context.Context, treeHash plumbing.Hash) (plumbing.Hash, error)
}

// DirSubmoduleMap is a [SubmoduleMap] backed by a directory with one file
// per folder-tree hash, each containing the hex target commit hash.
type DirSubmoduleMap struct {
	dir string
}

var _ SubmoduleMap = (*DirSubmoduleMap)(nil)

func NewDirSubmoduleMap(dir string) *DirSubmoduleMap {
	return &DirSubmoduleMap{dir: dir}
}

func (d *DirSubmoduleMap) Lookup(ctx context.Context, treeHash plumbing.Hash) (plumbing.Hash, error) {
	select {
	case <-ctx.Done():
		return plumbing.ZeroHash, ctx.Err()
	default:
	}

	data, err := os.ReadFile(filepath.Join(d.dir, treeHash.String()))
	if errors.Is(err, fs.ErrNotExist) {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrNoSubmoduleTarget, treeHash.String())
	}
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to read submodule map for %s: %w", treeHash.String(), err)
	}

	return DecodeHashHex(strings.TrimSpace(string(data)))
}

// MapSubmoduleMap is an in-memory [SubmoduleMap].
type MapSubmoduleMap map[plumbing.Hash]plumbing.Hash

var _ SubmoduleMap = (MapSubmoduleMap)(nil)

func (m MapSubmoduleMap) Lookup(_ context.Context, treeHash plumbing.Hash) (plumbing.Hash, error) {
	target, found := m[treeHash]
	if !found {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s", ErrNoSubmoduleTarget, treeHash.String())
	}

	return target, nil
}

const gitmodulesName = ".gitmodules"

// Dir2Mod is the folder-to-submodule rewrite policy: the subtree at a
// fixed path becomes a gitlink to an externally supplied commit, and a
// submodule record lands in the root .gitmodules - appended to the
// existing file when one is there, as a fresh file otherwise, and only
// when the folder actually occurred somewhere below.
//
// Everything outside the watched path is passed through without recursion,
// so the rewrite touches exactly the spine from the root to the folder.
type Dir2Mod struct {
	folder []string
	url    string
	name   string
	submap SubmoduleMap

	// generated .gitmodules entry per prior blob hash. The same prior
	// file appears under many historical roots, so the appended blob is
	// produced once.
	gitmodules sync.Map
}

var (
	ErrEmptyFolder       = errors.New("empty folder")
	ErrEmptyURL          = errors.New("empty submodule url")
	ErrNilSubmoduleMap   = errors.New("nil submodule map")
	ErrFolderOutsideRoot = errors.New("folder escapes the root")
)

// NewDir2Mod creates the policy for replacing folder (a slash separated
// path) with a submodule at url. name defaults to folder.
func NewDir2Mod(folder, url, name string, submap SubmoduleMap) (*Dir2Mod, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	if submap == nil {
		return nil, ErrNilSubmoduleMap
	}

	parts := strings.Split(strings.Trim(folder, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return nil, ErrEmptyFolder
	}
	for _, p := range parts {
		if p == "." || p == ".." {
			return nil, fmt.Errorf("%w: %s", ErrFolderOutsideRoot, folder)
		}
	}

	if name == "" {
		name = strings.Join(parts, "/")
	}

	return &Dir2Mod{
		folder: parts,
		url:    url,
		name:   name,
		submap: submap,
	}, nil
}

// Policy returns the hook set to hand to [NewEngine].
func (d *Dir2Mod) Policy() *Policy {
	return &Policy{
		TransformTree:  d.transformTree,
		TransformBlob:  d.transformBlob,
		CombineEntries: d.combineEntries,
		// the hooks only look at hashes and paths, never at modes or
		// names, so content plus location keys are enough.
		Depends: contentDependsKey,
	}
}

func (d *Dir2Mod) transformTree(ctx context.Context, e *Engine, node Node) (*Result, error) {
	switch {
	case slices.Equal(node.Path, d.folder):
		target, err := d.submap.Lookup(ctx, node.Hash)
		if err != nil {
			return nil, err
		}

		return &Result{
			Entries: []Entry{{Mode: filemode.Submodule, Hash: target, Name: node.Name}},
			Matched: true,
		}, nil
	case isPathPrefix(node.Path, d.folder):
		// on the spine above the folder: recurse with the default.
		return nil, nil
	default:
		return passThrough(node), nil
	}
}

func (d *Dir2Mod) transformBlob(ctx context.Context, e *Engine, node Node) (*Result, error) {
	if len(node.Path) == 1 && node.Name == gitmodulesName {
		entry, err := d.gitmodulesEntry(ctx, e, node.Hash)
		if err != nil {
			return nil, err
		}

		return &Result{Entries: []Entry{entry}}, nil
	}

	return nil, nil
}

func (d *Dir2Mod) combineEntries(ctx context.Context, e *Engine, node Node, entries []Entry, matched bool) ([]Entry, error) {
	if len(node.Path) != 0 || !matched {
		return entries, nil
	}

	for _, en := range entries {
		if en.Name == gitmodulesName && !en.IsTree() {
			// already rewritten in place by transformBlob.
			return entries, nil
		}
	}

	entry, err := d.gitmodulesEntry(ctx, e, plumbing.ZeroHash)
	if err != nil {
		return nil, err
	}

	return append(entries, entry), nil
}

// gitmodulesEntry produces the .gitmodules entry with the submodule record
// appended to the content of prior. A zero prior means no pre-existing
// file.
func (d *Dir2Mod) gitmodulesEntry(ctx context.Context, e *Engine, prior plumbing.Hash) (Entry, error) {
	if v, found := d.gitmodules.Load(prior); found {
		return v.(Entry), nil
	}

	text := ""
	if !prior.IsZero() {
		data, err := e.Store().ReadBlob(ctx, prior)
		if err != nil {
			return Entry{}, err
		}
		text = string(data)
	}

	record := fmt.Sprintf("[submodule %q]\n    path = %s\n    url = %s\n",
		d.name, strings.Join(d.folder, "/"), d.url)

	hash, err := e.Store().WriteBlob(ctx, []byte(text+record))
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{Mode: filemode.Regular, Hash: hash, Name: gitmodulesName}
	d.gitmodules.Store(prior, entry)

	return entry, nil
}

// isPathPrefix reports whether path is a proper prefix of folder.
func isPathPrefix(path, folder []string) bool {
	return len(path) < len(folder) && slices.Equal(path, folder[:len(path)])
}
