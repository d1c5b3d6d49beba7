package models

import (
	"context"
	"sync"
)

// CommandFuture is a one-shot settable string value produced by the
// connection's sender loop when an MCBE commandResponse frame arrives (or
// when a timeout/cancellation/connection-close path fires instead), and
// consumed by the tool awaiting the RPC result. Exactly one resolution per
// future is the invariant; Resolve after the first call is a no-op.
type CommandFuture struct {
	once   sync.Once
	done   chan struct{}
	result string
}

// NewCommandFuture returns a future ready to be resolved exactly once.
func NewCommandFuture() *CommandFuture {
	return &CommandFuture{done: make(chan struct{})}
}

// Resolve settles the future with result. Only the first call has any
// effect; later calls are silently ignored so that a timeout racing a late
// commandResponse can never double-resolve.
func (f *CommandFuture) Resolve(result string) {
	f.once.Do(func() {
		f.result = result
		close(f.done)
	})
}

// Wait blocks until the future is resolved, ctx is done, or the timeout
// elapses, whichever comes first. On ctx/timeout expiry it returns
// ("", false) without resolving the future itself — callers are expected
// to call Resolve with an explanatory string on their own timeout path so
// the deregistration bookkeeping stays in one place (internal/worker).
func (f *CommandFuture) Wait(ctx context.Context) (string, bool) {
	select {
	case <-f.done:
		return f.result, true
	case <-ctx.Done():
		return "", false
	}
}

// Done reports whether the future has already been resolved.
func (f *CommandFuture) Done() <-chan struct{} {
	return f.done
}
