package gitremap

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"golang.org/x/sync/errgroup"
)

// RewriteRootsOptions controls [RewriteRoots].
type RewriteRootsOptions struct {
	// Workers bounds the worker pool. Zero or negative selects
	// 2*GOMAXPROCS. The work is dominated by object store I/O, so a small
	// multiple of the hardware parallelism keeps the workers busy.
	Workers int

	// Resume skips roots that already have an entry in the root map
	// instead of refusing to start on a non-empty map. The pre-existing
	// entries are trusted to come from an identical policy; there is no
	// way to verify that, which is why the default is to refuse.
	Resume bool
}

// RunSummary reports what a [RewriteRoots] run did.
type RunSummary struct {
	// Total distinct roots in the input.
	Total int
	// Done roots actually rewritten.
	Done int
	// Skipped roots found in the root map under Resume.
	Skipped int
	// Elapsed wall time of the rewrite phase.
	Elapsed time.Duration
	// Rate is the average in roots per second.
	Rate float64
}

// progressWindow is how much trailing history feeds the rate and ETA
// estimate.
const progressWindow = 5 * time.Second

type progressTracker struct {
	mu sync.Mutex

	total int
	done  int

	start          time.Time
	checkpointDone int
	checkpointTime time.Time
}

func newProgressTracker(total int) *progressTracker {
	now := time.Now()

	return &progressTracker{
		total:          total,
		start:          now,
		checkpointTime: now,
	}
}

func (p *progressTracker) observe(root, newroot plumbing.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++

	now := time.Now()
	interval := now.Sub(p.checkpointTime)
	if interval <= 0 {
		interval = time.Millisecond
	}
	rate := float64(p.done-p.checkpointDone) / interval.Seconds()
	eta := time.Duration(float64(p.total-p.done)/rate) * time.Second

	logger.Info("tree rewritten",
		"done", p.done,
		"total", p.total,
		"root", root,
		"newroot", newroot,
		"rate", fmt.Sprintf("%.1f/s", rate),
		"eta", eta.Round(time.Second))

	if interval > progressWindow {
		p.checkpointDone = p.done
		p.checkpointTime = now
	}
}

func (p *progressTracker) summary(skipped int) *RunSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.start)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.done) / elapsed.Seconds()
	}

	return &RunSummary{
		Total:   p.total + skipped,
		Done:    p.done,
		Skipped: skipped,
		Elapsed: elapsed,
		Rate:    rate,
	}
}

// RewriteRoots runs [Engine.RewriteRoot] over the deduplicated set of
// roots on a bounded worker pool. Results are consumed in completion
// order; ordering among roots carries no meaning since each completed
// root's mapping is persisted independently.
//
// The engine's root map must be set. A non-empty root map aborts the run
// with [ErrRootMapNotEmpty] unless resuming, because partial prior state
// cannot be verified to come from the same policy. Any single root's
// failure cancels the pool and fails the whole run.
func RewriteRoots(ctx context.Context, roots []plumbing.Hash, engine *Engine, opts *RewriteRootsOptions) (*RunSummary, error) {
	if opts == nil {
		opts = &RewriteRootsOptions{}
	}
	if engine == nil || engine.rootmap == nil {
		return nil, ErrNilRootMap
	}

	existing, err := engine.rootmap.Len()
	if err != nil {
		return nil, fmt.Errorf("failed to inspect root map: %w", err)
	}
	if existing > 0 && !opts.Resume {
		return nil, fmt.Errorf("%w: %d entries, clean up the root map or resume explicitly", ErrRootMapNotEmpty, existing)
	}

	seen := make(HashSet)
	pending := make([]plumbing.Hash, 0, len(roots))
	skipped := 0

	for _, root := range roots {
		if root.IsZero() {
			continue
		}
		if _, dup := seen[root]; dup {
			continue
		}
		seen[root] = empty{}

		if opts.Resume {
			_, found, err := engine.rootmap.Get(root)
			if err != nil {
				return nil, fmt.Errorf("failed to look up root %s: %w", root.String(), err)
			}
			if found {
				skipped++
				continue
			}
		}

		pending = append(pending, root)
	}

	if len(pending) == 0 && skipped == 0 {
		return nil, ErrNoRoots
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 2 * runtime.GOMAXPROCS(0)
	}

	logger.Info("rewriting trees", "roots", len(pending), "skipped", skipped, "workers", workers)

	prog := newProgressTracker(len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, root := range pending {
		root := root
		g.Go(func() error {
			newroot, err := engine.RewriteRoot(gctx, root)
			if err != nil {
				return err
			}

			prog.observe(root, newroot)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := prog.summary(skipped)

	logger.Info("tree rewrite completed",
		"done", summary.Done,
		"skipped", summary.Skipped,
		"elapsed", summary.Elapsed.Round(time.Millisecond),
		"rate", fmt.Sprintf("%.1f/s", summary.Rate))

	return summary, nil
}
