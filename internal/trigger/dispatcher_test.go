package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_PublishAndWait(t *testing.T) {
	r := NewRouter()
	h := &recordingHandler{}
	r.Handle("listings/{id}", "listings", h)
	d := NewDispatcher(context.Background(), r)

	for range 5 {
		d.Publish(Event{Path: "listings/abc"})
	}
	d.Wait()

	assert.Equal(t, 5, h.count())
}

func TestDispatcher_ShutdownDrainsAndDrops(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	r := NewRouter()
	r.Handle("listings/{id}", "slow", HandlerFunc(func(ctx context.Context, ev Event, params Params) error {
		close(started)
		<-release
		return nil
	}))
	h := &recordingHandler{}
	r.Handle("users/{uid}", "users", h)

	d := NewDispatcher(context.Background(), r)
	d.Publish(Event{Path: "listings/abc"})
	<-started

	shutdownErr := make(chan error, 1)
	go func() {
		shutdownErr <- d.Shutdown(context.Background())
	}()

	// Wait for Shutdown to mark the dispatcher closed before publishing.
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.closed
	}, time.Second, time.Millisecond)

	d.Publish(Event{Path: "users/u1"})
	close(release)

	require.NoError(t, <-shutdownErr)
	assert.Equal(t, 0, h.count(), "events published after shutdown are dropped")
}

func TestDispatcher_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	r := NewRouter()
	r.Handle("listings/{id}", "stuck", HandlerFunc(func(ctx context.Context, ev Event, params Params) error {
		<-release
		return nil
	}))

	d := NewDispatcher(context.Background(), r)
	d.Publish(Event{Path: "listings/abc"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)
}
