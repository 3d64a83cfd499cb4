package joingo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/joingo/index"
	"github.com/hupe1980/joingo/session"
)

var (
	// ErrNoSuchIndex is returned when a join references an index the joiner's
	// manager does not know.
	ErrNoSuchIndex = errors.New("no such index")

	// ErrScopeRequired is returned when a cross-index join runs without a
	// request scope to carry the borrowed searcher's release.
	ErrScopeRequired = errors.New("cross-index join requires a request scope")
)

// translateError maps internal errors onto the package sentinels.
// *engine.ConfigError passes through unchanged; it is part of the public
// contract.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Resolution unification.
	if errors.Is(err, index.ErrNoSuchIndex) {
		return fmt.Errorf("%w: %w", ErrNoSuchIndex, err)
	}
	if errors.Is(err, session.ErrNoScope) {
		return fmt.Errorf("%w: %w", ErrScopeRequired, err)
	}

	return err
}
