package ocr

import (
	"context"
	"log"
	"sync"
)

// EngineFactory creates one recognition session. Used by the pool at startup
// and whenever a session has to be replaced after a timeout.
type EngineFactory func() (Engine, error)

// Pool holds a small fixed number of engine sessions. Sessions are expensive
// to initialize and memory-heavy, so they are created once per process and
// reused; concurrent receipts each borrow a session for the duration of one
// recognition.
type Pool struct {
	factory  EngineFactory
	sessions chan Engine

	mu     sync.Mutex
	closed bool
}

// NewPool eagerly initializes size sessions. size is clamped to 1..4; each
// session pins tens of megabytes of native memory.
func NewPool(size int, factory EngineFactory) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	if size > 4 {
		size = 4
	}
	p := &Pool{factory: factory, sessions: make(chan Engine, size)}
	for i := 0; i < size; i++ {
		e, err := factory()
		if err != nil {
			p.Close()
			return nil, err
		}
		p.sessions <- e
	}
	return p, nil
}

// Acquire blocks until a session is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (Engine, error) {
	select {
	case e, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a healthy session to the pool.
func (p *Pool) Release(e Engine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = e.Close()
		return
	}
	p.sessions <- e
}

// Discard replaces a session that can no longer be trusted: a recognition
// that timed out may still be running a native call inside it. The session
// is not closed here; an abandoned engine tears its own state down once the
// in-flight call finishes.
func (p *Pool) Discard(e Engine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	fresh, err := p.factory()
	if err != nil {
		log.Printf("engine pool: replacing discarded session failed: %v", err)
		return
	}
	p.sessions <- fresh
}

// Close shuts the pool down and releases all idle sessions. Sessions still
// checked out are closed by Release when they come back.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.sessions)
	for e := range p.sessions {
		_ = e.Close()
	}
	return nil
}
