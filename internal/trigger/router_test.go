package trigger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []Event
	params []Params
	err    error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, ev Event, params Params) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	h.params = append(h.params, params)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    Params
		ok      bool
	}{
		{"listings/{id}", "listings/abc", Params{"id": "abc"}, true},
		{"listings/{id}", "/listings/abc/", Params{"id": "abc"}, true},
		{"listings/{id}", "users/abc", nil, false},
		{"listings/{id}", "listings/abc/photos/1", nil, false},
		{"listings/{id}/photos/{photo}", "listings/abc/photos/1", Params{"id": "abc", "photo": "1"}, true},
		{"config/global", "config/global", Params{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			got, ok := match(strings.Split(tt.pattern, "/"), tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRouter_DispatchRunsEveryMatchingHandler(t *testing.T) {
	r := NewRouter()
	first := &recordingHandler{err: errors.New("boom")}
	second := &recordingHandler{}
	users := &recordingHandler{}
	r.Handle("listings/{id}", "first", first)
	r.Handle("listings/{id}", "second", second)
	r.Handle("users/{uid}", "users", users)

	r.Dispatch(context.Background(), Event{ID: "e1", Path: "listings/abc"})

	require.Equal(t, 1, first.count())
	require.Equal(t, 1, second.count(), "an earlier handler error must not stop later handlers")
	assert.Equal(t, 0, users.count())
	assert.Equal(t, Params{"id": "abc"}, second.params[0])
}

func TestRouter_RecoversHandlerPanic(t *testing.T) {
	r := NewRouter()
	after := &recordingHandler{}
	r.Handle("users/{uid}", "panics", HandlerFunc(func(ctx context.Context, ev Event, params Params) error {
		panic("nil map")
	}))
	r.Handle("users/{uid}", "after", after)

	assert.NotPanics(t, func() {
		r.Dispatch(context.Background(), Event{Path: "users/u1"})
	})
	assert.Equal(t, 1, after.count())
}

func TestRouter_NoMatchIsIgnored(t *testing.T) {
	r := NewRouter()
	h := &recordingHandler{}
	r.Handle("listings/{id}", "listings", h)

	r.Dispatch(context.Background(), Event{Path: "alerts/a1"})
	assert.Equal(t, 0, h.count())
}
