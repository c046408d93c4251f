package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/UnknownOlympus/staffdesk/internal/metrics"
	"github.com/UnknownOlympus/staffdesk/internal/models"
	"github.com/google/uuid"
)

const maxResponseBody = 64 << 10

var ErrTimeout = errors.New("request timed out")

// Dispatcher sends an employee notification to the email webhook.
type Dispatcher interface {
	Send(ctx context.Context, notification models.Notification) error
}

// ResponseError is returned when the webhook answers with a non-2xx status.
// Message holds the "message" field of a JSON error body, if there was one.
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status code %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Message)
}

// Reason extracts the text a user should see for a failed send: the webhook's own message when it
// sent one, the transport error otherwise.
func Reason(err error) string {
	var respErr *ResponseError
	if errors.As(err, &respErr) && respErr.Message != "" {
		return respErr.Message
	}
	if !errors.Is(err, ErrTimeout) && errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.Error()
	}
	return err.Error()
}

type Webhook struct {
	log     *slog.Logger
	client  *http.Client
	metrics *metrics.Metrics
	url     string
	timeout time.Duration
}

func NewWebhook(
	log *slog.Logger,
	client *http.Client,
	metrics *metrics.Metrics,
	url string,
	timeout time.Duration,
) *Webhook {
	return &Webhook{log: log, client: client, metrics: metrics, url: url, timeout: timeout}
}

// URL returns the endpoint notifications are posted to.
func (w *Webhook) URL() string {
	return w.url
}

// Send posts the notification as JSON. The call is bounded by the webhook timeout regardless of ctx.
func (w *Webhook) Send(ctx context.Context, notification models.Notification) error {
	startTime := time.Now()
	err := w.send(ctx, notification)
	w.metrics.NotificationDuration.Observe(time.Since(startTime).Seconds())

	if err != nil {
		w.metrics.Notifications.WithLabelValues("failure").Inc()
		return err
	}

	w.metrics.Notifications.WithLabelValues("success").Inc()
	return nil
}

func (w *Webhook) send(pctx context.Context, notification models.Notification) error {
	ctx, cancel := context.WithTimeout(pctx, w.timeout)
	defer cancel()

	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create new request %s: %w", w.url, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	w.log.DebugContext(ctx, "Posting notification", "url", w.url, "request_id", requestID)

	resp, err := w.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: timeout of %s exceeded", ErrTimeout, w.timeout)
		}
		return fmt.Errorf("failed to request %s: %w", w.url, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: timeout of %s exceeded", ErrTimeout, w.timeout)
		}
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &ResponseError{StatusCode: resp.StatusCode, Message: errorMessage(payload)}
	}

	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func errorMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return body.Message
}
