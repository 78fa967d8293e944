// Package alerts creates admin alerts and forwards them to every admin's
// contact channels.
package alerts

import (
	"context"
	"fmt"

	"github.com/raine/lease-to-own/internal/storage"
	"github.com/rs/zerolog/log"
)

// Store is the part of the persistence store used by Service.
type Store interface {
	CreateAlert(a *storage.AdminAlert) error
	ListAlerts(limit int) ([]storage.AdminAlert, error)
	AcknowledgeAlert(id, adminID string) (*storage.AdminAlert, error)
	GetAdmins() ([]storage.Admin, error)
}

// Channels holds the configured delivery channels. Nil channels are skipped.
type Channels struct {
	Email    Emailer
	SMS      SMSSender
	Telegram ChatSender
}

// Service persists alerts and fans them out to admins. Delivery is best
// effort: there is no retry and no delivery confirmation.
type Service struct {
	store    Store
	channels Channels
}

func NewService(store Store, channels Channels) *Service {
	return &Service{store: store, channels: channels}
}

// Raise stores the alert and notifies every admin on each channel they have
// contact details for. Only a failure to store the alert is returned.
func (s *Service) Raise(ctx context.Context, alert *storage.AdminAlert) error {
	if err := s.store.CreateAlert(alert); err != nil {
		return fmt.Errorf("failed to store alert: %w", err)
	}

	log.Info().
		Str("alertId", alert.ID).
		Str("type", alert.Type).
		Str("listingId", alert.ListingID).
		Msg("admin alert raised")

	admins, err := s.store.GetAdmins()
	if err != nil {
		log.Error().Err(err).Str("alertId", alert.ID).Msg("failed to load admins for alert fan-out")
		return nil
	}

	for _, admin := range admins {
		s.notify(ctx, admin, alert)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, admin storage.Admin, alert *storage.AdminAlert) {
	deliver := func(channel string, send func() error) {
		if err := send(); err != nil {
			log.Error().
				Err(err).
				Str("channel", channel).
				Str("adminId", admin.UserID).
				Str("alertId", alert.ID).
				Msg("failed to deliver alert")
			return
		}
		log.Debug().
			Str("channel", channel).
			Str("adminId", admin.UserID).
			Str("alertId", alert.ID).
			Msg("alert delivered")
	}

	if s.channels.Email != nil && admin.Email != "" {
		deliver("email", func() error {
			return s.channels.Email.SendEmail(ctx, admin.Email, alert.Title, alert.Message)
		})
	}
	if s.channels.SMS != nil && admin.Phone != "" {
		deliver("sms", func() error {
			return s.channels.SMS.SendSMS(ctx, admin.Phone, smsBody(alert))
		})
	}
	if s.channels.Telegram != nil && admin.TelegramChatID != 0 {
		deliver("telegram", func() error {
			return s.channels.Telegram.SendChat(ctx, admin.TelegramChatID, alert.Title+"\n"+alert.Message)
		})
	}
}

// List returns the most recent alerts.
func (s *Service) List(limit int) ([]storage.AdminAlert, error) {
	alerts, err := s.store.ListAlerts(limit)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []storage.AdminAlert{}
	}
	return alerts, nil
}

// Acknowledge marks the alert as seen by adminID.
func (s *Service) Acknowledge(alertID, adminID string) (*storage.AdminAlert, error) {
	return s.store.AcknowledgeAlert(alertID, adminID)
}
