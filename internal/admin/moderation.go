// Package admin implements the callable administrative endpoints. Every call
// checks the caller's admin claim before touching any data.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raine/lease-to-own/internal/alerts"
	"github.com/raine/lease-to-own/internal/storage"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnauthenticated  = errors.New("the function must be called while authenticated")
	ErrPermissionDenied = errors.New("only admins can perform this action")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// Moderation actions
const (
	ActionApprove        = "approve"
	ActionReject         = "reject"
	ActionSuspend        = "suspend"
	ActionRequestChanges = "request_changes"
	ActionReinstate      = "reinstate"
)

type actionRule struct {
	status       string
	needsReason  bool
	needsMessage bool
}

var actions = map[string]actionRule{
	ActionApprove:        {status: storage.StatusActive},
	ActionReject:         {status: storage.StatusRejected, needsReason: true},
	ActionSuspend:        {status: storage.StatusSuspended, needsReason: true},
	ActionRequestChanges: {status: storage.StatusChangesRequested, needsMessage: true},
	ActionReinstate:      {status: storage.StatusActive},
}

// Identity is the authenticated caller of an endpoint.
type Identity struct {
	UserID string
	Claims map[string]bool
}

// IdentityFromUser builds the caller identity of a stored user.
func IdentityFromUser(u *storage.User) *Identity {
	if u == nil {
		return nil
	}
	return &Identity{UserID: u.ID, Claims: u.Claims}
}

// RequireAdmin returns an error unless the caller is an authenticated admin.
func RequireAdmin(caller *Identity) error {
	if caller == nil || caller.UserID == "" {
		return ErrUnauthenticated
	}
	if !caller.Claims[storage.ClaimAdmin] {
		return ErrPermissionDenied
	}
	return nil
}

// ModerateRequest is the payload of the moderateListing endpoint.
type ModerateRequest struct {
	ListingID string `json:"listingId"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ModerateResult reports the status change made by Moderate.
type ModerateResult struct {
	ListingID      string `json:"listingId"`
	PreviousStatus string `json:"previousStatus"`
	Status         string `json:"status"`
}

// Store is the part of the persistence store used by the endpoints.
type Store interface {
	GetListing(id string) (*storage.Listing, error)
	UpdateListingStatus(id, status, reason, message string) (string, error)
	AppendAudit(r *storage.AuditRecord) error
}

// AlertRaiser raises admin alerts.
type AlertRaiser interface {
	Raise(ctx context.Context, alert *storage.AdminAlert) error
}

// Service implements the administrative endpoints.
type Service struct {
	store  Store
	alerts AlertRaiser
}

// NewService creates the endpoint service. alerts may be nil.
func NewService(store Store, alerts AlertRaiser) *Service {
	return &Service{store: store, alerts: alerts}
}

// Moderate changes a listing's moderation status, appends an audit record and
// raises a moderation alert.
func (s *Service) Moderate(ctx context.Context, caller *Identity, req ModerateRequest) (*ModerateResult, error) {
	if err := RequireAdmin(caller); err != nil {
		return nil, err
	}

	req.ListingID = strings.TrimSpace(req.ListingID)
	req.Reason = strings.TrimSpace(req.Reason)
	req.Message = strings.TrimSpace(req.Message)

	if req.ListingID == "" {
		return nil, fmt.Errorf("%w: listingId is required", ErrInvalidArgument)
	}
	rule, ok := actions[req.Action]
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, req.Action)
	}
	if rule.needsReason && req.Reason == "" {
		return nil, fmt.Errorf("%w: a reason is required to %s a listing", ErrInvalidArgument, req.Action)
	}
	if rule.needsMessage && req.Message == "" {
		return nil, fmt.Errorf("%w: a message is required to request changes", ErrInvalidArgument)
	}

	listing, err := s.store.GetListing(req.ListingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	if listing == nil {
		return nil, fmt.Errorf("listing %s: %w", req.ListingID, storage.ErrNotFound)
	}

	previous, err := s.store.UpdateListingStatus(req.ListingID, rule.status, req.Reason, req.Message)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("listing %s: %w", req.ListingID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update listing status: %w", err)
	}

	record := &storage.AuditRecord{
		ActorID:        caller.UserID,
		ListingID:      req.ListingID,
		Action:         req.Action,
		Reason:         req.Reason,
		Message:        req.Message,
		PreviousStatus: previous,
		NewStatus:      rule.status,
	}
	if err := s.store.AppendAudit(record); err != nil {
		return nil, fmt.Errorf("failed to append audit record: %w", err)
	}

	log.Info().
		Str("listingId", req.ListingID).
		Str("actorId", caller.UserID).
		Str("action", req.Action).
		Str("previousStatus", previous).
		Str("status", rule.status).
		Msg("listing moderated")

	if s.alerts != nil {
		note := req.Reason
		if note == "" {
			note = req.Message
		}
		alert := alerts.ModerationAlert(req.ListingID, caller.UserID, req.Action, previous, rule.status, note)
		if err := s.alerts.Raise(ctx, alert); err != nil {
			log.Error().Err(err).Str("listingId", req.ListingID).Msg("failed to raise moderation alert")
		}
	}

	return &ModerateResult{ListingID: req.ListingID, PreviousStatus: previous, Status: rule.status}, nil
}
