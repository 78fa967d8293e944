// Package server exposes the HTTP surface: health, event intake, owner
// listing writes, the callable admin endpoints and alert management.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/raine/lease-to-own/internal/admin"
	"github.com/raine/lease-to-own/internal/storage"
	"github.com/raine/lease-to-own/internal/trigger"
	"github.com/rs/zerolog/log"
)

const (
	maxBodySize     = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// UserLookup resolves bearer tokens to users.
type UserLookup interface {
	GetUserByToken(token string) (*storage.User, error)
}

// Moderator handles the moderateListing callable.
type Moderator interface {
	Moderate(ctx context.Context, caller *admin.Identity, req admin.ModerateRequest) (*admin.ModerateResult, error)
}

// AlertService lists and acknowledges admin alerts.
type AlertService interface {
	List(limit int) ([]storage.AdminAlert, error)
	Acknowledge(alertID, adminID string) (*storage.AdminAlert, error)
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Users     UserLookup
	Listings  ListingStore
	Moderator Moderator
	Alerts    AlertService
	// Publish schedules an incoming event for dispatch.
	Publish func(trigger.Event)
}

// Server is the HTTP front end of the service.
type Server struct {
	deps Deps
	mux  *http.ServeMux
}

func New(deps Deps) *Server {
	s := &Server{deps: deps, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /events", s.handleEvent)
	s.mux.HandleFunc("POST /listings", s.handleCreateListing)
	s.mux.HandleFunc("GET /listings/{id}", s.handleGetListing)
	s.mux.HandleFunc("PATCH /listings/{id}", s.handleUpdateListing)
	s.mux.HandleFunc("DELETE /listings/{id}", s.handleDeleteListing)
	s.mux.HandleFunc("POST /callable/moderateListing", s.handleModerateListing)
	s.mux.HandleFunc("GET /alerts", s.handleListAlerts)
	s.mux.HandleFunc("POST /alerts/{id}/ack", s.handleAcknowledgeAlert)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown failed")
		}
	}()

	log.Info().Str("addr", addr).Msg("starting http server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := trigger.DecodeEvent(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", admin.ErrInvalidArgument, err))
		return
	}

	s.deps.Publish(ev)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"eventId": ev.ID,
	})
}

// callableRequest is the envelope of callable endpoints: {"data": {...}}.
type callableRequest[T any] struct {
	Data T `json:"data"`
}

func (s *Server) handleModerateListing(w http.ResponseWriter, r *http.Request) {
	caller, err := s.identify(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req callableRequest[admin.ModerateRequest]
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		// Unauthenticated callers are rejected before the body is looked at
		if authErr := admin.RequireAdmin(caller); authErr != nil {
			writeError(w, authErr)
			return
		}
		writeError(w, fmt.Errorf("%w: invalid request body", admin.ErrInvalidArgument))
		return
	}

	res, err := s.deps.Moderator.Moderate(r.Context(), caller, req.Data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"result": res})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	caller, err := s.identify(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := admin.RequireAdmin(caller); err != nil {
		writeError(w, err)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeError(w, fmt.Errorf("%w: invalid limit %q", admin.ErrInvalidArgument, v))
			return
		}
	}

	list, err := s.deps.Alerts.List(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": list})
}

func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	caller, err := s.identify(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := admin.RequireAdmin(caller); err != nil {
		writeError(w, err)
		return
	}

	alert, err := s.deps.Alerts.Acknowledge(r.PathValue("id"), caller.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// identify resolves the bearer token of r. A missing or unknown token yields
// a nil identity; only lookup failures are errors.
func (s *Server) identify(r *http.Request) (*admin.Identity, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, nil
	}
	user, err := s.deps.Users.GetUserByToken(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve caller: %w", err)
	}
	return admin.IdentityFromUser(user), nil
}
