package admin

import (
	"context"
	"testing"

	"github.com/raine/lease-to-own/internal/alerts"
	"github.com/raine/lease-to-own/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var adminCaller = &Identity{UserID: "admin-1", Claims: map[string]bool{storage.ClaimAdmin: true}}

func setup(t *testing.T) (*Service, *storage.SQLiteStore, *storage.Listing) {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:", make([]byte, 32))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	listing := &storage.Listing{Title: "Cozy Bungalow", Address: "1 Elm St"}
	require.NoError(t, store.CreateListing(listing))

	svc := NewService(store, alerts.NewService(store, alerts.Channels{}))
	return svc, store, listing
}

func TestModerate_RejectsNonAdmins(t *testing.T) {
	tests := []struct {
		name    string
		caller  *Identity
		wantErr error
	}{
		{"no identity", nil, ErrUnauthenticated},
		{"empty identity", &Identity{}, ErrUnauthenticated},
		{"no admin claim", &Identity{UserID: "u1", Claims: map[string]bool{}}, ErrPermissionDenied},
		{"admin claim false", &Identity{UserID: "u1", Claims: map[string]bool{storage.ClaimAdmin: false}}, ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, listing := setup(t)

			_, err := svc.Moderate(context.Background(), tt.caller, ModerateRequest{
				ListingID: listing.ID,
				Action:    ActionReject,
				Reason:    "spam",
			})
			assert.ErrorIs(t, err, tt.wantErr)

			got, err := store.GetListing(listing.ID)
			require.NoError(t, err)
			assert.Equal(t, storage.StatusPending, got.Status)

			audit, err := store.ListAudit(listing.ID)
			require.NoError(t, err)
			assert.Empty(t, audit)

			alertList, err := store.ListAlerts(10)
			require.NoError(t, err)
			assert.Empty(t, alertList)
		})
	}
}

func TestModerate_Actions(t *testing.T) {
	tests := []struct {
		req        ModerateRequest
		wantStatus string
	}{
		{ModerateRequest{Action: ActionApprove}, storage.StatusActive},
		{ModerateRequest{Action: ActionReject, Reason: "Stock photos"}, storage.StatusRejected},
		{ModerateRequest{Action: ActionSuspend, Reason: "Reported by tenant"}, storage.StatusSuspended},
		{ModerateRequest{Action: ActionRequestChanges, Message: "Add interior photos"}, storage.StatusChangesRequested},
		{ModerateRequest{Action: ActionReinstate}, storage.StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.req.Action, func(t *testing.T) {
			svc, store, listing := setup(t)
			tt.req.ListingID = listing.ID

			res, err := svc.Moderate(context.Background(), adminCaller, tt.req)
			require.NoError(t, err)
			assert.Equal(t, storage.StatusPending, res.PreviousStatus)
			assert.Equal(t, tt.wantStatus, res.Status)

			got, err := store.GetListing(listing.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.req.Reason, got.StatusReason)
			assert.Equal(t, tt.req.Message, got.StatusMessage)

			audit, err := store.ListAudit(listing.ID)
			require.NoError(t, err)
			require.Len(t, audit, 1)
			assert.Equal(t, "admin-1", audit[0].ActorID)
			assert.Equal(t, tt.req.Action, audit[0].Action)
			assert.Equal(t, storage.StatusPending, audit[0].PreviousStatus)
			assert.Equal(t, tt.wantStatus, audit[0].NewStatus)

			alertList, err := store.ListAlerts(10)
			require.NoError(t, err)
			require.Len(t, alertList, 1)
			assert.Equal(t, storage.AlertModeration, alertList[0].Type)
			assert.Equal(t, listing.ID, alertList[0].ListingID)
			assert.Equal(t, "admin-1", alertList[0].AdminID)
		})
	}
}

func TestModerate_InvalidArguments(t *testing.T) {
	svc, store, listing := setup(t)

	for _, req := range []ModerateRequest{
		{Action: ActionApprove},
		{ListingID: listing.ID, Action: "delete"},
		{ListingID: listing.ID, Action: ActionReject},
		{ListingID: listing.ID, Action: ActionSuspend, Reason: "   "},
		{ListingID: listing.ID, Action: ActionRequestChanges},
	} {
		_, err := svc.Moderate(context.Background(), adminCaller, req)
		assert.ErrorIs(t, err, ErrInvalidArgument, "%+v", req)
	}

	audit, err := store.ListAudit(listing.ID)
	require.NoError(t, err)
	assert.Empty(t, audit)
}

func TestModerate_MissingListing(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.Moderate(context.Background(), adminCaller, ModerateRequest{ListingID: "nope", Action: ActionApprove})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIdentityFromUser(t *testing.T) {
	assert.Nil(t, IdentityFromUser(nil))

	id := IdentityFromUser(&storage.User{ID: "u1", Claims: map[string]bool{"admin": true}})
	assert.NoError(t, RequireAdmin(id))
}
