package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxestimator-api/internal/notify"
)

func TestWebhookChannelSignsPayload(t *testing.T) {
	type received struct {
		header http.Header
		body   []byte
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{header: r.Header.Clone(), body: body}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	ch, err := notify.NewWebhookChannel(srv.URL, "s3cret", time.Second)
	require.NoError(t, err)
	ch.Now = func() time.Time { return scanNow }

	require.NoError(t, ch.Send(context.Background(), due("r1", "2025-03-30")))
	rec := <-got

	ts, err := strconv.ParseInt(rec.header.Get(notify.HeaderTimestamp), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, scanNow.Unix(), ts)
	eventID := rec.header.Get(notify.HeaderEventID)
	assert.Equal(t, "r1:2025-03-30", eventID)
	assert.True(t, notify.VerifySignature("s3cret", ts, eventID, rec.body, rec.header.Get(notify.HeaderSignature)))
	assert.False(t, notify.VerifySignature("other", ts, eventID, rec.body, rec.header.Get(notify.HeaderSignature)))

	var event map[string]any
	require.NoError(t, json.Unmarshal(rec.body, &event))
	assert.Equal(t, "reminder.due", event["type"])
	data := event["data"].(map[string]any)
	assert.Equal(t, "ada@example.com", data["user_email"])
	assert.Equal(t, "filing", data["category"])
}

func TestWebhookChannelRejectsClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	ch, err := notify.NewWebhookChannel(srv.URL, "s3cret", time.Second)
	require.NoError(t, err)
	err = ch.Send(context.Background(), due("r1", "2025-03-30"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
}

func TestNewWebhookChannelValidatesURL(t *testing.T) {
	cases := map[string]bool{
		"https://hooks.example.com/tax": true,
		"http://localhost:9000/hook":    true,
		"http://127.0.0.1/hook":         true,
		"http://hooks.example.com/tax":  false,
		"ftp://hooks.example.com":       false,
		"https://":                      false,
	}
	for raw, ok := range cases {
		_, err := notify.NewWebhookChannel(raw, "secret", time.Second)
		if ok {
			assert.NoError(t, err, raw)
		} else {
			assert.Error(t, err, raw)
		}
	}

	_, err := notify.NewWebhookChannel("https://hooks.example.com", "", time.Second)
	assert.Error(t, err)
}
