package webhook

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

func verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

func TestNotify_Completed(t *testing.T) {
	var (
		body   []byte
		header http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		header = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier("test-secret", time.Second)
	state := models.JobState{
		JobID:    "job-1",
		VideoID:  "video-1",
		Status:   models.JobStatusCompleted,
		Message:  "Compilation complete",
		Progress: 100,
		VideoURL: "https://storage.example.com/compilations/video-1-highlights-1.mp4",
	}

	require.NoError(t, n.Notify(context.Background(), server.URL, state))

	assert.Equal(t, EventCompilationCompleted, header.Get("X-Webhook-Event"))
	assert.NotEmpty(t, header.Get("X-Webhook-Delivery"))
	assert.True(t, verify(body, "test-secret", header.Get("X-Webhook-Signature")))

	var event Event
	require.NoError(t, json.Unmarshal(body, &event))
	assert.Equal(t, "job-1", event.Data.JobID)
	assert.Equal(t, state.VideoURL, event.Data.VideoURL)
}

func TestNotify_NoSecretNoSignature(t *testing.T) {
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get("X-Webhook-Signature")
	}))
	defer server.Close()

	n := NewNotifier("", time.Second)
	err := n.Notify(context.Background(), server.URL, models.JobState{JobID: "job-1", Status: models.JobStatusFailed})
	require.NoError(t, err)
	assert.Empty(t, signature)
}

func TestNotify_SkipsNonTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	n := NewNotifier("s", time.Second)
	require.NoError(t, n.Notify(context.Background(), server.URL, models.JobState{Status: models.JobStatusProcessing}))
	require.NoError(t, n.Notify(context.Background(), "", models.JobState{Status: models.JobStatusCompleted}))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestNotify_SingleAttemptOnError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewNotifier("s", time.Second)
	err := n.Notify(context.Background(), server.URL, models.JobState{Status: models.JobStatusFailed})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSignature(t *testing.T) {
	payload := []byte(`{"event":"test"}`)

	signature := Sign(payload, "test-secret")
	assert.Contains(t, signature, "sha256=")
	assert.True(t, verify(payload, "test-secret", signature))
	assert.False(t, verify(payload, "other-secret", signature))
}

func TestEventFor(t *testing.T) {
	assert.Equal(t, EventCompilationCompleted, EventFor(models.JobStatusCompleted))
	assert.Equal(t, EventCompilationFailed, EventFor(models.JobStatusFailed))
}
