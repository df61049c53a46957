// Package telemetry builds and fires the two fire-and-forget HTTPS sinks
// named in spec.md §4.10: request events and dispatcher error reports. Both
// are out-of-scope "external collaborator" endpoints per spec.md §1 — this
// package supplies the one concrete implementation that talks to them, the
// way original_source/python/core/foldset/telemetry.py's send_event/
// report_error do with httpx.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/foldset/gateway-core/types"
)

// APIBaseURL is the default telemetry host; overridable via the
// API_BASE_URL environment variable (see config.go).
const APIBaseURL = "https://api.foldset.example.com"

// EventSink logs a completed request. Implementations must never block the
// calling goroutine on network failure and must swallow transport errors —
// telemetry never fails a request (spec.md §7, TransportError).
type EventSink interface {
	LogEvent(ctx context.Context, adapter types.RequestAdapter, statusCode int, requestID, paymentResponse string)
}

// ErrorSink reports a caught dispatcher error asynchronously.
type ErrorSink interface {
	ReportError(ctx context.Context, err error, adapter types.RequestAdapter)
}

// Client posts events and error reports to the telemetry API over HTTPS.
// Every call spawns its own goroutine and swallows its own error, matching
// the original's bare "except Exception: pass".
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New builds a telemetry Client. baseURL defaults to APIBaseURL if empty.
func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = APIBaseURL
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, http: &http.Client{Timeout: 5 * time.Second}}
}

// BuildEventPayload extracts the event fields from adapter, parsing its URL
// for hostname/pathname/search the way urlparse(adapter.get_url()) does.
func BuildEventPayload(adapter types.RequestAdapter, statusCode int, requestID, paymentResponse string) types.EventPayload {
	rawURL := adapter.URL()
	parsed, _ := url.Parse(rawURL)

	payload := types.EventPayload{
		Method:          adapter.Method(),
		StatusCode:      statusCode,
		UserAgent:       adapter.UserAgent(),
		Referer:         adapter.Header("Referer"),
		Href:            rawURL,
		RequestID:       requestID,
		IPAddress:       adapter.IPAddress(),
		PaymentResponse: paymentResponse,
	}
	if parsed != nil {
		payload.Hostname = parsed.Hostname()
		payload.Pathname = parsed.Path
		payload.Search = parsed.RawQuery
	}
	return payload
}

// LogEvent fires POST {baseURL}/v1/events asynchronously.
func (c *Client) LogEvent(ctx context.Context, adapter types.RequestAdapter, statusCode int, requestID, paymentResponse string) {
	payload := BuildEventPayload(adapter, statusCode, requestID, paymentResponse)
	go c.post(context.WithoutCancel(ctx), "/v1/events", payload)
}

// ReportError fires POST {baseURL}/v1/errors asynchronously.
func (c *Client) ReportError(ctx context.Context, reportErr error, adapter types.RequestAdapter) {
	report := types.ErrorReport{Error: reportErr.Error(), Stack: string(debug.Stack())}
	if adapter != nil {
		report.Context = map[string]any{
			"method":     adapter.Method(),
			"path":       adapter.Path(),
			"hostname":   adapter.Host(),
			"user_agent": adapter.UserAgent(),
			"ip_address": adapter.IPAddress(),
		}
	}
	go c.post(context.WithoutCancel(ctx), "/v1/errors", report)
}

func (c *Client) post(ctx context.Context, path string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Debug("telemetry post failed", "path", path, "err", err)
		return
	}
	defer resp.Body.Close()
}
