package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type botApiMock struct {
	mock.Mock
}

func (m *botApiMock) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func TestSendGridEmailer_SendEmail(t *testing.T) {
	var got sendGridMail
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	e := NewSendGridEmailer("sg-key", "alerts@example.com", ts.URL)
	err := e.SendEmail(context.Background(), "admin@example.com", "New listing", "Body text")
	require.NoError(t, err)

	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "admin@example.com", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "alerts@example.com", got.From.Email)
	assert.Equal(t, "New listing", got.Subject)
	assert.Equal(t, []sendGridContent{{Type: "text/plain", Value: "Body text"}}, got.Content)
}

func TestSendGridEmailer_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	err := NewSendGridEmailer("bad", "a@example.com", ts.URL).SendEmail(context.Background(), "b@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status: 401")
}

func TestTwilioSMS_SendSMS(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550001", r.PostForm.Get("To"))
		assert.Equal(t, "+15559999", r.PostForm.Get("From"))
		assert.Equal(t, "hello", r.PostForm.Get("Body"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer ts.Close()

	s := NewTwilioSMS("AC123", "secret", "+15559999", ts.URL)
	require.NoError(t, s.SendSMS(context.Background(), "+15550001", "hello"))
}

func TestTwilioSMS_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	err := NewTwilioSMS("AC123", "secret", "+1", ts.URL).SendSMS(context.Background(), "+2", "hello")
	assert.Error(t, err)
}

func TestTelegramNotifier_SendChat(t *testing.T) {
	tg := new(botApiMock)
	tg.On("Send", tgbotapi.MessageConfig{
		BaseChat:  tgbotapi.BaseChat{ChatID: 42},
		Text:      "*New listing: Cozy\\_Bungalow*\n\nPrice: 300000",
		ParseMode: tgbotapi.ModeMarkdown,
	}).Return(tgbotapi.Message{}, nil)

	n := NewTelegramNotifier(tg)
	require.NoError(t, n.SendChat(context.Background(), 42, "New listing: Cozy_Bungalow\nPrice: 300000"))
	tg.AssertExpectations(t)
}

func TestTelegramNotifier_SendError(t *testing.T) {
	tg := new(botApiMock)
	tg.On("Send", mock.AnythingOfType("tgbotapi.MessageConfig")).Return(tgbotapi.Message{}, errors.New("chat not found"))

	err := NewTelegramNotifier(tg).SendChat(context.Background(), 1, "hi")
	assert.ErrorContains(t, err, "chat not found")
}
