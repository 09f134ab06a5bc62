package gitremap

import "sync"

type cacheKey struct {
	op  string
	key string
}

type cacheEntry struct {
	once sync.Once

	res *Result
	err error
}

// rewriteCache memoizes the results of rewrite operations across all
// workers. Keys combine the operation name with the node's dependency key,
// insertion is insert-if-absent, and a per-key [sync.Once] makes the
// wrapped function run at most once. The wrapped functions are pure, so
// every caller observes the same result regardless of which worker
// computed it.
type rewriteCache struct {
	m sync.Map
}

func (c *rewriteCache) do(op, key string, f func() (*Result, error)) (*Result, error) {
	v, _ := c.m.LoadOrStore(cacheKey{op: op, key: key}, &cacheEntry{})
	e := v.(*cacheEntry)

	e.once.Do(func() {
		e.res, e.err = f()
	})

	return e.res, e.err
}
