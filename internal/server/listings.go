package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/raine/lease-to-own/internal/admin"
	"github.com/raine/lease-to-own/internal/storage"
)

// ListingStore is the listing persistence used by the owner endpoints.
// Every write publishes a change that drives enrichment and alerts.
type ListingStore interface {
	GetListing(id string) (*storage.Listing, error)
	CreateListing(l *storage.Listing) error
	UpdateListing(l *storage.Listing) error
	DeleteListing(id string) error
}

// listingFields are the owner-editable fields. Nil pointers are left
// unchanged on PATCH.
type listingFields struct {
	Title       *string   `json:"title"`
	Address     *string   `json:"address"`
	Price       *float64  `json:"price"`
	Beds        *int      `json:"beds"`
	Baths       *float64  `json:"baths"`
	Sqft        *int      `json:"sqft"`
	Description *string   `json:"description"`
	ImageURLs   *[]string `json:"imageUrls"`
}

func (f listingFields) apply(l *storage.Listing) {
	if f.Title != nil {
		l.Title = strings.TrimSpace(*f.Title)
	}
	if f.Address != nil {
		l.Address = strings.TrimSpace(*f.Address)
	}
	if f.Price != nil {
		l.Price = *f.Price
	}
	if f.Beds != nil {
		l.Beds = *f.Beds
	}
	if f.Baths != nil {
		l.Baths = *f.Baths
	}
	if f.Sqft != nil {
		l.Sqft = *f.Sqft
	}
	if f.Description != nil {
		l.Description = *f.Description
	}
	if f.ImageURLs != nil {
		l.ImageURLs = *f.ImageURLs
	}
}

func (f listingFields) validate() error {
	switch {
	case f.Price != nil && *f.Price < 0:
		return fmt.Errorf("%w: price must not be negative", admin.ErrInvalidArgument)
	case f.Beds != nil && *f.Beds < 0, f.Baths != nil && *f.Baths < 0, f.Sqft != nil && *f.Sqft < 0:
		return fmt.Errorf("%w: room counts and size must not be negative", admin.ErrInvalidArgument)
	}
	return nil
}

func decodeListingFields(w http.ResponseWriter, r *http.Request) (listingFields, error) {
	var f listingFields
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&f); err != nil {
		return f, fmt.Errorf("%w: invalid request body", admin.ErrInvalidArgument)
	}
	return f, f.validate()
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	caller, err := s.identify(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if caller == nil {
		writeError(w, admin.ErrUnauthenticated)
		return
	}

	f, err := decodeListingFields(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if f.Title == nil || strings.TrimSpace(*f.Title) == "" {
		writeError(w, fmt.Errorf("%w: title is required", admin.ErrInvalidArgument))
		return
	}

	l := &storage.Listing{OwnerID: caller.UserID, Status: storage.StatusPending}
	f.apply(l)
	if err := s.deps.Listings.CreateListing(l); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	l, err := s.loadListing(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	l, err := s.authorizeListingWrite(r)
	if err != nil {
		writeError(w, err)
		return
	}

	f, err := decodeListingFields(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	f.apply(l)
	if l.Title == "" {
		writeError(w, fmt.Errorf("%w: title must not be empty", admin.ErrInvalidArgument))
		return
	}

	if err := s.deps.Listings.UpdateListing(l); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleDeleteListing(w http.ResponseWriter, r *http.Request) {
	l, err := s.authorizeListingWrite(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.Listings.DeleteListing(l.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": l.ID})
}

func (s *Server) loadListing(id string) (*storage.Listing, error) {
	l, err := s.deps.Listings.GetListing(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}
	if l == nil {
		return nil, fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
	}
	return l, nil
}

// authorizeListingWrite loads the listing named in the path and checks that
// the caller owns it or is an admin.
func (s *Server) authorizeListingWrite(r *http.Request) (*storage.Listing, error) {
	caller, err := s.identify(r)
	if err != nil {
		return nil, err
	}
	if caller == nil {
		return nil, admin.ErrUnauthenticated
	}

	l, err := s.loadListing(r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if l.OwnerID != caller.UserID && admin.RequireAdmin(caller) != nil {
		return nil, fmt.Errorf("%w: only the owner can change this listing", admin.ErrPermissionDenied)
	}
	return l, nil
}
