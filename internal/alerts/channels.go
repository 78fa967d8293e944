package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	SendGridBaseURL = "https://api.sendgrid.com"
	TwilioBaseURL   = "https://api.twilio.com"

	requestTimeout = 15 * time.Second
)

// Emailer delivers a plain-text email.
type Emailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// ChatSender delivers a Telegram message to a chat.
type ChatSender interface {
	SendChat(ctx context.Context, chatID int64, text string) error
}

// handleError turns a >399 response into an error. Without this, failing
// responses would have nil error.
func handleError(res *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("request failed: %s %s (status: %d)", res.Request.Method, res.Request.URL, res.StatusCode())
	}
	return nil
}

// SendGridEmailer sends email through the SendGrid v3 mail API.
type SendGridEmailer struct {
	client *resty.Client
	from   string
}

// NewSendGridEmailer creates an emailer. baseURL may be empty.
func NewSendGridEmailer(apiKey, from, baseURL string) *SendGridEmailer {
	if baseURL == "" {
		baseURL = SendGridBaseURL
	}
	return &SendGridEmailer{
		client: resty.New().
			SetDebug(false).
			SetBaseURL(baseURL).
			SetTimeout(requestTimeout).
			SetAuthToken(apiKey),
		from: from,
	}
}

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

func (e *SendGridEmailer) SendEmail(ctx context.Context, to, subject, body string) error {
	mail := sendGridMail{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: to}}}},
		From:             sendGridAddress{Email: e.from},
		Subject:          subject,
		Content:          []sendGridContent{{Type: "text/plain", Value: body}},
	}
	err := handleError(e.client.R().
		SetContext(ctx).
		SetBody(mail).
		Post("/v3/mail/send"))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// TwilioSMS sends text messages through the Twilio REST API.
type TwilioSMS struct {
	client     *resty.Client
	accountSID string
	from       string
}

// NewTwilioSMS creates an SMS sender. baseURL may be empty.
func NewTwilioSMS(accountSID, authToken, from, baseURL string) *TwilioSMS {
	if baseURL == "" {
		baseURL = TwilioBaseURL
	}
	return &TwilioSMS{
		client: resty.New().
			SetDebug(false).
			SetBaseURL(baseURL).
			SetTimeout(requestTimeout).
			SetBasicAuth(accountSID, authToken),
		accountSID: accountSID,
		from:       from,
	}
}

func (t *TwilioSMS) SendSMS(ctx context.Context, to, body string) error {
	err := handleError(t.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"accountSid": t.accountSID,
		}).
		SetFormData(map[string]string{
			"To":   to,
			"From": t.from,
			"Body": body,
		}).
		Post("/2010-04-01/Accounts/{accountSid}/Messages.json"))
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	return nil
}

// BotSender abstracts the Telegram bot API for sending messages.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends alerts to admins' Telegram chats.
type TelegramNotifier struct {
	bot BotSender
}

func NewTelegramNotifier(bot BotSender) *TelegramNotifier {
	return &TelegramNotifier{bot: bot}
}

// SendChat sends text as Markdown. The first line is rendered bold.
func (n *TelegramNotifier) SendChat(ctx context.Context, chatID int64, text string) error {
	title, rest, _ := strings.Cut(text, "\n")
	body := fmt.Sprintf("*%s*", escapeMarkdown(title))
	if rest = strings.TrimSpace(rest); rest != "" {
		body += "\n\n" + escapeMarkdown(rest)
	}

	msg := tgbotapi.NewMessage(chatID, body)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// escapeMarkdown escapes special characters for Telegram Markdown V1.
func escapeMarkdown(text string) string {
	text = strings.ReplaceAll(text, "*", "\\*")
	text = strings.ReplaceAll(text, "_", "\\_")
	text = strings.ReplaceAll(text, "`", "\\`")
	text = strings.ReplaceAll(text, "[", "\\[")
	return text
}
