// Package session scopes cross-index resources to a single request. A Scope
// collects the release hooks of everything borrowed while the request runs;
// a Session resolves symbolic index references against a primary searcher
// and an index manager, parking every acquired handle on the scope.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/joingo/index"
)

var (
	// ErrNoScope is returned when a cross-index resolution runs without a
	// scope to carry the borrowed searcher's release.
	ErrNoScope = errors.New("session: no scope for cross-index resolution")

	// ErrScopeClosed is returned by OnClose when the scope has already
	// closed. The hook has run before OnClose returns.
	ErrScopeClosed = errors.New("session: scope already closed")
)

// Scope collects release hooks for one request. Close runs the hooks once,
// in reverse registration order. A Scope is safe for concurrent use.
type Scope struct {
	mu     sync.Mutex
	closed bool
	hooks  []func() error
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// OnClose registers fn to run when the scope closes. Registering on a
// closed scope runs fn immediately, so a late registration cannot leak its
// resource, and reports ErrScopeClosed.
func (s *Scope) OnClose(fn func() error) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		if err := fn(); err != nil {
			return errors.Join(ErrScopeClosed, err)
		}

		return ErrScopeClosed
	}

	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()

	return nil
}

// Close runs the registered hooks in reverse registration order and joins
// their errors. Further calls do nothing and return nil.
func (s *Scope) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	hooks := s.hooks
	s.hooks = nil

	s.mu.Unlock()

	var errs []error

	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Session resolves symbolic index references for one request. The zero
// value is not usable; create instances with New.
type Session struct {
	scope       *Scope
	manager     index.Manager
	primaryName string
	primary     index.Searcher
}

// New returns a session that resolves references against the primary
// searcher. The manager may be nil when only primary references occur.
func New(scope *Scope, manager index.Manager, primaryName string, primary index.Searcher) *Session {
	return &Session{
		scope:       scope,
		manager:     manager,
		primaryName: primaryName,
		primary:     primary,
	}
}

// Resolve returns the searcher for ref together with its open timestamp.
//
// An empty ref or the primary's own name resolves to the primary searcher
// with open time 0: a same-index join carries no cross-index identity. Any
// other ref is acquired through the manager and released when the session's
// scope closes; its open time distinguishes results computed against
// different generations of the referenced index.
func (s *Session) Resolve(ctx context.Context, ref string) (index.Searcher, int64, error) {
	if ref == "" || ref == s.primaryName {
		return s.primary, 0, nil
	}

	if s.scope == nil {
		return nil, 0, ErrNoScope
	}

	if s.manager == nil {
		return nil, 0, fmt.Errorf("session: resolve %q: %w", ref, index.ErrNoSuchIndex)
	}

	h, err := s.manager.Acquire(ctx, ref)
	if err != nil {
		return nil, 0, err
	}

	if err := s.scope.OnClose(func() error {
		h.Release()
		return nil
	}); err != nil {
		// The scope closed while we were acquiring; the hook has already
		// released the handle.
		return nil, 0, err
	}

	sr := h.Searcher()

	return sr, sr.OpenTime(), nil
}
