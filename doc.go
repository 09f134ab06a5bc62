// gitremap rewrites every historical tree of a git repo through a pluggable
// policy, then regenerates the commit graph to point at the rewritten trees,
// without ever checking a snapshot out to a working directory.
//
// The work happens in two phases. Phase one runs [RewriteRoots] over the
// distinct root trees of the selected history, in parallel, persisting an
// old-root to new-root mapping into a [RootMap]. Phase two runs
// [RewriteDFSPath] sequentially over the commit ancestry, emitting new
// commits whose trees and parents are the mapped counterparts.
//
// See [Policy] for the plug-in contract and [Dir2Mod] for the
// folder-to-submodule policy.
package gitremap
