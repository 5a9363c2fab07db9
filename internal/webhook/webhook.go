package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

// Event names sent in the X-Webhook-Event header
const (
	EventCompilationCompleted = "compilation.completed"
	EventCompilationFailed    = "compilation.failed"
)

// Event is the JSON body posted to a callback URL
type Event struct {
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      models.JobState `json:"data"`
}

// Notifier posts terminal job states to caller-supplied callback URLs.
// Each notification is a single attempt.
type Notifier struct {
	client *http.Client
	secret string
}

// NewNotifier creates a notifier. An empty secret disables signing.
func NewNotifier(secret string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		client: &http.Client{Timeout: timeout},
		secret: secret,
	}
}

// EventFor maps a terminal status to its event name
func EventFor(status models.JobStatus) string {
	if status == models.JobStatusCompleted {
		return EventCompilationCompleted
	}
	return EventCompilationFailed
}

// Notify delivers state to callbackURL. Non-terminal states are ignored.
func (n *Notifier) Notify(ctx context.Context, callbackURL string, state models.JobState) error {
	if callbackURL == "" || !state.Status.IsTerminal() {
		return nil
	}

	event := EventFor(state.Status)
	payload, err := json.Marshal(Event{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      state,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Compilation-Webhook/1.0")
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-Delivery", uuid.New().String())

	if n.secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(payload, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign generates the HMAC-SHA256 signature for a payload
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
