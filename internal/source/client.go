// Package source is the HTTP client for the environmental monitoring
// backend. It fetches the composite dashboard snapshot and asks the backend
// to re-collect a single upstream data source.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	logging "github.com/ipfs/go-log/v2"
)

// DefaultBaseURL is the backend API root used when none is configured.
const DefaultBaseURL = "http://localhost:8080/api"

// maxErrorBody bounds how much of a failed response body is kept as the
// error message.
const maxErrorBody = 64 << 10

var log = logging.Logger("source")

// Client talks to the dashboard API.
type Client struct {
	baseURL *url.URL
	header  http.Header
	http    *http.Client
	trigger *retryablehttp.Client
}

// New creates a Client rooted at baseURL, e.g. "http://localhost:8080/api".
func New(baseURL string, options ...Option) (*Client, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q: missing host", baseURL)
	}

	var hc http.Client
	if opts.httpClient != nil {
		hc = *opts.httpClient
	}
	if hc.Timeout == 0 {
		hc.Timeout = opts.timeout
	}

	return &Client{
		baseURL: u,
		header:  opts.header,
		http:    &hc,
		trigger: &retryablehttp.Client{
			HTTPClient:   &hc,
			Logger:       leveledLogger{},
			RetryWaitMin: 250 * time.Millisecond,
			RetryWaitMax: 2 * time.Second,
			RetryMax:     opts.triggerRetries,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			Backoff:      retryablehttp.DefaultBackoff,
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
		},
	}, nil
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// FetchDashboard retrieves the dashboard snapshot covering the last
// windowHours hours. The request is made once; callers own retry policy.
func (c *Client) FetchDashboard(ctx context.Context, windowHours int) (*Dashboard, error) {
	if windowHours <= 0 {
		return nil, fmt.Errorf("window hours must be positive, got %d", windowHours)
	}
	u := c.endpoint("dashboard", "data")
	q := u.Query()
	q.Set("hours", strconv.Itoa(windowHours))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	reqID := c.prepare(req.Header)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "fetch dashboard", URL: u.String(), Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Warnw("Dashboard fetch rejected", "status", resp.StatusCode, "request_id", reqID)
		return nil, fromResponse(resp.StatusCode, body)
	}

	var d Dashboard
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		log.Warnw("Dashboard body rejected", "error", err, "request_id", reqID)
		return nil, &DecodeError{Err: err}
	}
	log.Debugw("Fetched dashboard", "hours", windowHours, "request_id", reqID, "elapsed", time.Since(start))
	return &d, nil
}

// RefreshDataSource asks the backend to re-collect sourceID and returns the
// backend's acknowledgement text. The backend starts collection
// asynchronously; a successful return does not mean new data is stored yet.
//
// The trigger is resent on connection errors and 5xx responses, up to the
// configured trigger retry count.
func (c *Client) RefreshDataSource(ctx context.Context, sourceID string) (string, error) {
	if strings.TrimSpace(sourceID) == "" {
		return "", errors.New("source id is required")
	}
	u := c.endpoint("dashboard", "refresh", sourceID)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, u.String(), []byte("{}"))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")
	reqID := c.prepare(req.Header)

	resp, err := c.trigger.Do(req)
	if err != nil {
		return "", &TransportError{Op: "refresh source", URL: u.String(), Err: unwrapURLError(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", &TransportError{Op: "refresh source", URL: u.String(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warnw("Source refresh rejected", "source", sourceID, "status", resp.StatusCode, "request_id", reqID)
		return "", fromResponse(resp.StatusCode, body)
	}

	ack := string(bytes.TrimSpace(body))
	log.Infow("Source refresh acknowledged", "source", sourceID, "ack", ack, "request_id", reqID)
	return ack, nil
}

// endpoint joins path segments onto the base URL, escaping each segment.
func (c *Client) endpoint(segments ...string) *url.URL {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL.JoinPath(escaped...)
}

// prepare applies the configured headers and a fresh request id, returning
// the id.
func (c *Client) prepare(h http.Header) string {
	for k, vs := range c.header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	id := uuid.NewString()
	h.Set("X-Request-ID", id)
	return id
}

// unwrapURLError strips the *url.Error wrapper, whose text repeats the
// method and URL already carried by TransportError.
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

// leveledLogger routes retryablehttp's request logging to the source logger.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	log.Errorw(msg, keysAndValues...)
}

func (leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.Warnw(msg, keysAndValues...)
}

func (leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debugw(msg, keysAndValues...)
}

func (leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.Debugw(msg, keysAndValues...)
}
