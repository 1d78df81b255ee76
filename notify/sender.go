package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Mc-ouma/LivPredApp-sub001/httpx"
)

// Sender delivers a reminder that has fired.
type Sender interface {
	Send(ctx context.Context, r Reminder) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, r Reminder) error

func (f SenderFunc) Send(ctx context.Context, r Reminder) error { return f(ctx, r) }

// LogSender writes fired reminders to the log.
type LogSender struct {
	Log logrus.FieldLogger
}

func (s LogSender) Send(_ context.Context, r Reminder) error {
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"reminder_id": r.ID.String(),
		"fixture_id":  r.FixtureID,
		"mechanism":   r.Mechanism.String(),
	}).Info(r.Title)
	return nil
}

// WebhookSender POSTs fired reminders as JSON to a fixed URL. A non-empty
// token is sent as a bearer credential.
type WebhookSender struct {
	client *httpx.Client
	url    string
	token  string
}

func NewWebhookSender(url, token string, timeout time.Duration, opts ...httpx.ClientOption) *WebhookSender {
	base := []httpx.ClientOption{httpx.WithClientTimeout(timeout)}
	return &WebhookSender{client: httpx.NewClient(append(base, opts...)...), url: url, token: token}
}

type webhookPayload struct {
	Event    string   `json:"event"`
	Reminder Reminder `json:"reminder"`
}

func (s *WebhookSender) Send(ctx context.Context, r Reminder) error {
	_, err := s.client.Post(ctx, s.url, webhookPayload{Event: "reminder.fired", Reminder: r}, nil, httpx.WithBearer(s.token))
	return err
}

// MultiSender delivers to every sender and returns the first error.
type MultiSender []Sender

func (m MultiSender) Send(ctx context.Context, r Reminder) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}
