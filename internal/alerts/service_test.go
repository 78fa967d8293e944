package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/lease-to-own/internal/storage"
	"github.com/raine/lease-to-own/internal/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	to      string
	subject string
	body    string
}

type fakeEmailer struct {
	mu   sync.Mutex
	fail map[string]bool
	sent []sentMessage
}

func (f *fakeEmailer) SendEmail(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{to: to, subject: subject, body: body})
	if f.fail[to] {
		return errors.New("mailbox unavailable")
	}
	return nil
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return nil
}

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:", make([]byte, 32))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedAdmins(t *testing.T, store *storage.SQLiteStore) {
	t.Helper()
	require.NoError(t, store.SaveAdmin(&storage.Admin{
		UserID:         "a1",
		Name:           "Ada",
		Email:          "ada@example.com",
		Phone:          "+15550001",
		TelegramChatID: 101,
	}))
	require.NoError(t, store.SaveAdmin(&storage.Admin{
		UserID: "a2",
		Name:   "Bob",
		Email:  "bob@example.com",
	}))
}

func TestService_Raise_FansOutToEveryChannel(t *testing.T) {
	store := newTestStore(t)
	seedAdmins(t, store)

	email := &fakeEmailer{fail: map[string]bool{"ada@example.com": true}}
	sms := &fakeSMS{}
	tg := new(botApiMock)
	tg.On("Send", mock.AnythingOfType("tgbotapi.MessageConfig")).Return(tgbotapi.Message{}, nil)

	svc := NewService(store, Channels{Email: email, SMS: sms, Telegram: NewTelegramNotifier(tg)})

	alert := &storage.AdminAlert{Type: storage.AlertNewListing, Title: "New listing", Message: "Cozy Bungalow", ListingID: "l1"}
	require.NoError(t, svc.Raise(context.Background(), alert))

	// Ada's email failed; her SMS and Telegram still go out, and Bob still gets email
	assert.Len(t, email.sent, 2)
	require.Len(t, sms.sent, 1)
	assert.Equal(t, "+15550001", sms.sent[0].to)
	tg.AssertNumberOfCalls(t, "Send", 1)

	stored, err := store.GetAlert(alert.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, storage.AlertNewListing, stored.Type)
	assert.Equal(t, []string{}, stored.AcknowledgedBy)
}

func TestService_Raise_NoChannels(t *testing.T) {
	store := newTestStore(t)
	seedAdmins(t, store)

	svc := NewService(store, Channels{})
	require.NoError(t, svc.Raise(context.Background(), &storage.AdminAlert{Type: storage.AlertModeration, Title: "t", Message: "m"}))

	alerts, err := svc.List(10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestService_Acknowledge(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store, Channels{})

	alert := &storage.AdminAlert{Type: storage.AlertFraudRisk, Title: "t", Message: "m"}
	require.NoError(t, svc.Raise(context.Background(), alert))

	got, err := svc.Acknowledge(alert.ID, "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, got.AcknowledgedBy)

	got, err = svc.Acknowledge(alert.ID, "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, got.AcknowledgedBy)

	_, err = svc.Acknowledge("missing", "a1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListingAlerts_NewListing(t *testing.T) {
	store := newTestStore(t)
	seedAdmins(t, store)
	email := &fakeEmailer{}
	p := NewListingAlerts(NewService(store, Channels{Email: email}))

	listing := &storage.Listing{ID: "l1", Title: "Cozy Bungalow", Address: "1 Elm St", Price: 300000}
	ev := trigger.Event{Path: storage.ListingPath("l1"), After: listing.Snapshot()}
	require.NoError(t, p.HandleEvent(context.Background(), ev, trigger.Params{"id": "l1"}))

	alerts, err := store.ListAlerts(10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, storage.AlertNewListing, alerts[0].Type)
	assert.Equal(t, "l1", alerts[0].ListingID)
	assert.Equal(t, "New listing: Cozy Bungalow", alerts[0].Title)
	assert.Contains(t, alerts[0].Message, "Address: 1 Elm St")
	assert.Contains(t, alerts[0].Message, "Price: 300000")
	assert.Len(t, email.sent, 2)

	// A plain update raises nothing
	update := trigger.Event{Path: ev.Path, Before: ev.After, After: ev.After}
	require.NoError(t, p.HandleEvent(context.Background(), update, trigger.Params{"id": "l1"}))
	alerts, err = store.ListAlerts(10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestListingAlerts_FraudRiskTransition(t *testing.T) {
	withRisk := func(level string) map[string]any {
		l := &storage.Listing{ID: "l1", Title: "Too Good"}
		if level != "" {
			l.AIBlock = &storage.AIBlock{Fraud: storage.FraudAssessment{
				Score:       90,
				RiskLevel:   level,
				Flags:       []string{"price far below market", "wire transfer requested"},
				Explanation: "Classic advance-fee pattern.",
			}}
		}
		return l.Snapshot()
	}

	tests := []struct {
		name      string
		before    string
		after     string
		wantAlert bool
	}{
		{"first assessment high", "", "high", true},
		{"low to high", "low", "high", true},
		{"high stays high", "high", "high", false},
		{"high to medium", "high", "medium", false},
		{"low", "", "low", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			p := NewListingAlerts(NewService(store, Channels{}))

			ev := trigger.Event{Path: "listings/l1", Before: withRisk(tt.before), After: withRisk(tt.after)}
			require.NoError(t, p.HandleEvent(context.Background(), ev, trigger.Params{"id": "l1"}))

			alerts, err := store.ListAlerts(10)
			require.NoError(t, err)
			if !tt.wantAlert {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, storage.AlertFraudRisk, alerts[0].Type)
			assert.Contains(t, alerts[0].Message, "score 90")
			assert.Contains(t, alerts[0].Message, "price far below market, wire transfer requested")
			assert.Contains(t, alerts[0].Message, "Classic advance-fee pattern.")
		})
	}
}

func TestListingAlerts_DeletedListing(t *testing.T) {
	store := newTestStore(t)
	p := NewListingAlerts(NewService(store, Channels{}))

	err := p.HandleEvent(context.Background(), trigger.Event{Path: "listings/l1", Before: map[string]any{"title": "x"}}, trigger.Params{"id": "l1"})
	require.NoError(t, err)

	alerts, err := store.ListAlerts(10)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestModerationAlert(t *testing.T) {
	a := ModerationAlert("l1", "admin-1", "reject", storage.StatusPending, storage.StatusRejected, "Photos are stock images")
	assert.Equal(t, storage.AlertModeration, a.Type)
	assert.Equal(t, "admin-1", a.AdminID)
	assert.Equal(t, "Listing l1 was moderated by admin-1: pending -> rejected.\nPhotos are stock images", a.Message)

	a = ModerationAlert("l1", "admin-1", "approve", storage.StatusPending, storage.StatusActive, "")
	assert.Equal(t, "Listing l1 was moderated by admin-1: pending -> active.", a.Message)
}

func TestSMSBodyTruncated(t *testing.T) {
	long := make([]rune, 500)
	for i := range long {
		long[i] = 'ä'
	}
	body := smsBody(&storage.AdminAlert{Title: "t", Message: string(long)})
	assert.Equal(t, maxSMSLength, len([]rune(body)))
}
