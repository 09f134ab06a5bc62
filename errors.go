package gitremap

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNilStore          = errors.New("nil object store")
	ErrNilRootMap        = errors.New("nil root map")
	ErrNoRoots           = errors.New("no root trees to rewrite")
	ErrRootMapNotEmpty   = errors.New("root map already contains entries")
	ErrMissingRootEntry  = errors.New("root tree has no entry in root map")
	ErrMultiRootEntries  = errors.New("root rewrite produced more than one entry")
	ErrEmptyRootEntries  = errors.New("root rewrite produced no entries")
	ErrNoSubmoduleTarget = errors.New("no submodule commit for folder tree")
)

// errorf wraps the error with the format, except that cancellations are
// passed through unwrapped so callers can match on [context.Canceled].
func errorf(err error, format string, args ...any) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf(format, args...)
}
