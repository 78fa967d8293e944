// Package claims keeps the admin authorization claim of each user in step
// with the user's role.
package claims

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/raine/lease-to-own/internal/storage"
	"github.com/raine/lease-to-own/internal/trigger"
	"github.com/rs/zerolog/log"
)

// UserStore is the part of the persistence store used by Sync.
type UserStore interface {
	GetUser(id string) (*storage.User, error)
	SetUserClaims(id string, claims map[string]bool) error
}

// Sync sets the admin claim for users whose role is admin and clears it for
// everyone else. It is registered for "users/{id}".
type Sync struct {
	store UserStore
}

func NewSync(store UserStore) *Sync {
	return &Sync{store: store}
}

// HandleEvent implements trigger.Handler.
func (s *Sync) HandleEvent(ctx context.Context, ev trigger.Event, params trigger.Params) error {
	userID := params["id"]
	if ev.After == nil {
		return nil
	}

	role, _ := ev.After["role"].(string)
	wantAdmin := role == storage.RoleAdmin

	user, err := s.store.GetUser(userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if user == nil {
		return nil
	}

	// Claim writes fire the trigger again; only write on a real change
	if user.HasClaim(storage.ClaimAdmin) == wantAdmin {
		return nil
	}

	claims := maps.Clone(user.Claims)
	if claims == nil {
		claims = map[string]bool{}
	}
	if wantAdmin {
		claims[storage.ClaimAdmin] = true
	} else {
		delete(claims, storage.ClaimAdmin)
	}

	if err := s.store.SetUserClaims(userID, claims); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to set claims for user %s: %w", userID, err)
	}

	log.Info().
		Str("userId", userID).
		Str("role", role).
		Bool("admin", wantAdmin).
		Msg("updated admin claim")
	return nil
}
