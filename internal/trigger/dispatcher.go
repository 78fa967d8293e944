package trigger

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Dispatcher runs every published event as an independent invocation on its
// own goroutine. Invocations share no state; two events for the same
// document may run concurrently and the later write wins.
type Dispatcher struct {
	ctx    context.Context
	router *Router

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher whose invocations run under ctx.
func NewDispatcher(ctx context.Context, router *Router) *Dispatcher {
	return &Dispatcher{ctx: ctx, router: router}
}

// Publish schedules ev for dispatch and returns immediately.
// Events published after Shutdown are dropped.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Warn().Str("path", ev.Path).Str("eventId", ev.ID).Msg("dispatcher closed, dropping event")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.router.Dispatch(d.ctx, ev)
	}()
}

// Wait blocks until all in-flight invocations have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown stops accepting events and waits for in-flight invocations, or
// until ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
