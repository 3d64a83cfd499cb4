package registry

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// throttledReader paces reads through a shared limiter. Tokens are
// reserved for the bytes actually read, never for the full buffer, and
// reads are capped at the limiter's burst so WaitN cannot be asked for
// more than it can ever grant.
type throttledReader struct {
	r   io.Reader
	lim *rate.Limiter
	ctx context.Context
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if burst := t.lim.Burst(); len(p) > burst {
		p = p[:burst]
	}

	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.lim.WaitN(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
