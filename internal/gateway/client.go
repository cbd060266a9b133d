// Package gateway is the single chokepoint for calls to the Event Hive API.
//
// It attaches the bearer token of the requested identity domain, classifies
// transport and status failures into a typed *Error, and reacts to a rejected
// credential by clearing that domain's session. It never retries.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/Togather-Foundation/eventhive/internal/metrics"
	"github.com/Togather-Foundation/eventhive/internal/session"
	"github.com/Togather-Foundation/eventhive/internal/telemetry"
)

const (
	// DefaultBaseURL is the development API address used by the web client
	DefaultBaseURL = "http://localhost:8000"
	// DefaultUserAgent identifies this client
	DefaultUserAgent = "EventHive-CLI/1.0"
	// MaxResponseBytes caps how much of a response body is read
	MaxResponseBytes = 10 << 20
	// RequestIDHeader carries a per-request ULID for server-side correlation
	RequestIDHeader = "X-Request-ID"
)

// Request describes one API call.
type Request struct {
	// Domain selects the bearer token. session.None sends no Authorization header.
	Domain session.Domain
	Method string
	Path   string
	Query  url.Values
	// JSON, when non-nil, is encoded as the request body.
	JSON any
	// Body and ContentType are used for pre-encoded payloads such as multipart forms.
	Body        io.Reader
	ContentType string
	Header      http.Header
}

// Doer is satisfied by *Client. Higher layers depend on it so tests can stub the network.
type Doer interface {
	Do(ctx context.Context, req Request, out any) error
}

// Client handles communication with the Event Hive API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	store      *session.Store
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout bounds every request. Zero (the default) leaves requests unbounded.
// It applies to a copy of the HTTP client, whichever order the options come in.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRateLimit caps outbound requests per second. Zero or negative disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a gateway for the API at baseURL that reads tokens from store.
func NewClient(baseURL string, store *session.Store, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  DefaultUserAgent,
		store:      store,
		logger:     zerolog.Nop(),
		tracer:     telemetry.GetTracer("github.com/Togather-Foundation/eventhive/internal/gateway"),
	}

	for _, opt := range opts {
		opt(client)
	}
	if client.timeout > 0 {
		hc := *client.httpClient
		hc.Timeout = client.timeout
		client.httpClient = &hc
	}
	client.logger = client.logger.With().Str("component", "gateway").Logger()

	return client
}

// Do executes req and decodes a successful JSON response into out (which may be nil).
// Every failure is returned as *Error.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	start := time.Now()
	domain := req.Domain.String()

	ctx, span := c.tracer.Start(ctx, "gateway "+req.Method+" "+req.Path, trace.WithAttributes(
		attribute.String("eventhive.domain", domain),
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.Path),
	))
	defer span.End()

	err := c.do(ctx, req, out)

	outcome := "success"
	if err != nil {
		var gwErr *Error
		if errors.As(err, &gwErr) {
			outcome = string(gwErr.Kind)
			if !gwErr.Dispatched() {
				outcome = "no_session"
			}
			if gwErr.Status != 0 {
				span.SetAttributes(attribute.Int("http.response.status_code", gwErr.Status))
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	metrics.ObserveGatewayRequest(domain, req.Method, outcome, time.Since(start))

	return err
}

func (c *Client) do(ctx context.Context, req Request, out any) error {
	fail := func(kind Kind, status int, message string, err error) *Error {
		return &Error{
			Kind:    kind,
			Domain:  req.Domain,
			Method:  req.Method,
			Path:    req.Path,
			Status:  status,
			Message: message,
			Err:     err,
		}
	}

	var token string
	if req.Domain != session.None {
		var ok bool
		token, ok = c.store.Get(ctx, req.Domain)
		if !ok {
			c.logger.Debug().Str("domain", req.Domain.String()).Str("path", req.Path).Msg("no session; request not sent")
			return fail(KindUnauthenticated, 0, "", ErrNoSession)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fail(KindNetworkError, 0, "", fmt.Errorf("rate limiter: %w", err))
		}
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return fail(KindMalformed, 0, "", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.url(req), body)
	if err != nil {
		return fail(KindMalformed, 0, "", fmt.Errorf("create request: %w", err))
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	requestID := ulid.Make().String()
	httpReq.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	logger := c.logger.With().
		Str("request_id", requestID).
		Str("domain", req.Domain.String()).
		Str("method", req.Method).
		Str("path", req.Path).
		Logger()

	metrics.GatewayRequestsInFlight.Inc()
	resp, err := c.httpClient.Do(httpReq)
	metrics.GatewayRequestsInFlight.Dec()
	if err != nil {
		logger.Warn().Err(err).Msg("request failed before a response arrived")
		return fail(KindNetworkError, 0, "", fmt.Errorf("http request: %w", err))
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	_ = resp.Body.Close()
	if err != nil {
		logger.Warn().Err(err).Int("status", resp.StatusCode).Msg("reading response failed")
		return fail(KindNetworkError, resp.StatusCode, "", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := kindForStatus(resp.StatusCode)
		message := serverMessage(respBody)
		if kind == KindUnauthenticated && req.Domain != session.None {
			c.clearRejected(ctx, logger, req.Domain, token)
		}
		logger.Debug().Int("status", resp.StatusCode).Str("kind", string(kind)).Msg("request rejected")
		return fail(kind, resp.StatusCode, message, nil)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			logger.Warn().Err(err).Int("status", resp.StatusCode).Msg("response is not the expected JSON")
			return fail(KindMalformed, resp.StatusCode, "", fmt.Errorf("parse json: %w", err))
		}
	}

	logger.Debug().Int("status", resp.StatusCode).Msg("request succeeded")
	return nil
}

// clearRejected drops the domain's session only while it still holds the
// rejected token, so a sign-in that completed mid-request survives.
func (c *Client) clearRejected(ctx context.Context, logger zerolog.Logger, d session.Domain, token string) {
	cleared, err := c.store.ClearIf(ctx, d, token)
	switch {
	case err != nil:
		logger.Error().Err(err).Msg("failed to clear rejected session")
	case cleared:
		metrics.SessionsActive.WithLabelValues(d.String()).Set(0)
		logger.Info().Msg("credential rejected; session cleared")
	default:
		logger.Info().Msg("credential rejected; session already replaced")
	}
}

func (c *Client) url(req Request) string {
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

func encodeBody(req Request) (io.Reader, string, error) {
	if req.JSON != nil {
		payload, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("marshal request: %w", err)
		}
		return bytes.NewReader(payload), "application/json", nil
	}
	return req.Body, req.ContentType, nil
}

// serverMessage extracts the optional {"error": "..."} field from a failure body.
func serverMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Error)
}
