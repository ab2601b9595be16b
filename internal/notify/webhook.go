package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/taxestimator-api/internal/reminder"
	"github.com/noah-isme/taxestimator-api/internal/resilience"
)

// Webhook headers.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderEventID   = "X-Event-ID"
)

const eventReminderDue = "reminder.due"

// WebhookChannel POSTs a signed JSON event for every due reminder.
type WebhookChannel struct {
	URL    string
	Secret string
	HTTP   resilience.HTTPClient
	Now    func() time.Time
}

// NewWebhookChannel validates rawURL and wires an instrumented client guarded
// by a circuit breaker.
func NewWebhookChannel(rawURL, secret string, timeout time.Duration) (*WebhookChannel, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if secret == "" {
		return nil, errors.New("webhook secret required")
	}
	return &WebhookChannel{
		URL:    rawURL,
		Secret: secret,
		HTTP: resilience.HTTPClient{
			Client:      HTTPClient(timeout),
			Breaker:     resilience.NewBreaker(5, 0.5, time.Minute).WithTarget("reminder-webhook"),
			Target:      "reminder-webhook",
			MaxAttempts: 3,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     timeout,
		},
	}, nil
}

// HTTPClient returns a traced client for outbound webhook calls.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func (*WebhookChannel) Name() string { return "webhook" }

type webhookEvent struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       webhookReminder `json:"data"`
}

type webhookReminder struct {
	ReminderID  string            `json:"reminder_id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	DueDate     string            `json:"due_date"`
	Category    reminder.Category `json:"category"`
	UserName    string            `json:"user_name"`
	UserEmail   string            `json:"user_email"`
}

// Send implements Channel.
func (c *WebhookChannel) Send(ctx context.Context, due reminder.Due) error {
	ctx, span := otel.Tracer("notify.webhook").Start(ctx, "WebhookChannel.Send")
	defer span.End()
	span.SetAttributes(attribute.String("reminder.id", due.ID))

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	occurred := now().UTC()
	eventID := due.ID + ":" + due.DueDate
	body, err := json.Marshal(webhookEvent{
		EventID:    eventID,
		Type:       eventReminderDue,
		OccurredAt: occurred,
		Data: webhookReminder{
			ReminderID:  due.ID,
			Title:       due.Title,
			Description: due.Description,
			DueDate:     due.DueDate,
			Category:    due.Category,
			UserName:    due.UserName,
			UserEmail:   due.UserEmail,
		},
	})
	if err != nil {
		return err
	}
	ts := occurred.Unix()
	sig := ComputeSignature(c.Secret, ts, eventID, body)

	resp, err := c.HTTP.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "taxestimator-webhooks/1.0")
		req.Header.Set(HeaderEventID, eventID)
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(HeaderSignature, sig)
		return req, nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("webhook responded %d", resp.StatusCode)
		span.RecordError(err)
		return err
	}
	return nil
}

// ComputeSignature is hex HMAC-SHA256 over "<ts>.<eventID>.<body>".
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares sig against the expected signature in constant time.
func VerifySignature(secret string, ts int64, eventID string, body []byte, sig string) bool {
	want := ComputeSignature(secret, ts, eventID, body)
	return hmac.Equal([]byte(want), []byte(sig))
}

// validateURL requires https, except plain http to the local host.
func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		host := parsed.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
		return errors.New("http webhook only allowed for localhost")
	default:
		return errors.New("webhook url must be http or https")
	}
}
