package trigger

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Params holds the wildcard values matched from an event path,
// e.g. {"id": "abc"} for pattern "listings/{id}".
type Params map[string]string

// Handler reacts to a document write. Errors are logged by the router and
// never retried.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event, params Params) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev Event, params Params) error

func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event, params Params) error {
	return f(ctx, ev, params)
}

type route struct {
	name     string
	pattern  string
	segments []string
	handler  Handler
}

// Router maps document path patterns to handlers. Several handlers may be
// registered for the same pattern; each runs for every matching event.
type Router struct {
	routes []route
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Handle registers h for paths matching pattern. The name identifies the
// handler in logs.
func (r *Router) Handle(pattern, name string, h Handler) {
	r.routes = append(r.routes, route{
		name:     name,
		pattern:  pattern,
		segments: strings.Split(strings.Trim(pattern, "/"), "/"),
		handler:  h,
	})
}

// Dispatch runs every handler whose pattern matches the event path, one after
// another. Handler errors and panics are logged and swallowed.
func (r *Router) Dispatch(ctx context.Context, ev Event) {
	matched := false
	for _, rt := range r.routes {
		params, ok := match(rt.segments, ev.Path)
		if !ok {
			continue
		}
		matched = true
		if err := runHandler(ctx, rt, ev, params); err != nil {
			log.Error().
				Err(err).
				Str("handler", rt.name).
				Str("path", ev.Path).
				Str("eventId", ev.ID).
				Msg("event handler failed")
		}
	}
	if !matched {
		log.Debug().Str("path", ev.Path).Msg("no handler for event path")
	}
}

func runHandler(ctx context.Context, rt route, ev Event, params Params) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return rt.handler.HandleEvent(ctx, ev, params)
}

func match(segments []string, path string) (Params, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != len(segments) {
		return nil, false
	}
	params := Params{}
	for i, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			params[seg[1:len(seg)-1]] = parts[i]
			continue
		}
		if seg != parts[i] {
			return nil, false
		}
	}
	return params, true
}
