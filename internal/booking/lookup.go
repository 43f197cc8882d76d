package booking

import (
	"context"
	"sync"

	"medreserve/internal/script"
)

// LookupClient is the slice of the script client the guard needs.
type LookupClient interface {
	LookupStudent(ctx context.Context, studentID string) (*script.Result, error)
}

// LookupGuard issues at most one upstream lookup per student ID value.
// Concurrent callers for the same ID wait for the in-flight request; a
// completed successful lookup is replayed without going upstream again.
// Failures are forgotten so the next blur can try again. This is a guard
// against duplicate in-flight requests, not a cache with eviction.
type LookupGuard struct {
	client LookupClient

	mu      sync.Mutex
	pending map[string]*lookupCall
}

type lookupCall struct {
	done chan struct{}
	res  *script.Result
	err  error
}

// NewLookupGuard wraps a lookup client.
func NewLookupGuard(client LookupClient) *LookupGuard {
	return &LookupGuard{
		client:  client,
		pending: make(map[string]*lookupCall),
	}
}

// Lookup resolves a student ID, deduplicating identical requests.
func (g *LookupGuard) Lookup(ctx context.Context, studentID string) (*script.Result, error) {
	g.mu.Lock()
	if call, ok := g.pending[studentID]; ok {
		g.mu.Unlock()
		select {
		case <-call.done:
			return call.res, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &lookupCall{done: make(chan struct{})}
	g.pending[studentID] = call
	g.mu.Unlock()

	call.res, call.err = g.client.LookupStudent(ctx, studentID)
	close(call.done)

	if call.err != nil || (call.res != nil && !call.res.Success) {
		g.mu.Lock()
		delete(g.pending, studentID)
		g.mu.Unlock()
	}
	return call.res, call.err
}
