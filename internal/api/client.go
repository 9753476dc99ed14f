// Package api is the HTTP client for the WisePal backend.
//
// Four endpoints are used:
//
//	POST /auth/register    {"email","password"} in, the created user out
//	POST /auth/jwt/login   form-encoded username/password, returns access_token
//	GET  /conversations    bearer auth, returns conversations with their messages
//	POST /chat             bearer auth, {"message"} in, {"response"} out
//
// Every failure is one of *TransportError, *StatusError or *DecodeError.
// Nothing is retried.
package api

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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Shanky048/WisePal/internal/telemetry"
	"github.com/Shanky048/WisePal/pkg/models"
)

// MaxResponseSize caps how much of a response body is read
const MaxResponseSize = 10 * 1024 * 1024

const (
	opRegister      = "register"
	opLogin         = "login"
	opConversations = "conversations"
	opChat          = "chat"
)

// Client talks to the WisePal API
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	tracer   trace.Tracer
	duration metric.Float64Histogram
	failures metric.Int64Counter
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the transport timeout. Zero means no client-side timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithRateLimit paces outgoing requests. Zero or less means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTelemetry sets the tracer and meter
func WithTelemetry(p telemetry.Providers) Option {
	return func(c *Client) {
		c.tracer = p.Tracer
		c.duration, _ = p.Meter.Float64Histogram(
			"http.client.request.duration",
			metric.WithDescription("HTTP request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		c.failures, _ = p.Meter.Int64Counter(
			"wisepal.api.errors",
			metric.WithDescription("Failed API requests by operation and kind"),
		)
	}
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 0),
		logger:     zap.NewNop(),
	}
	WithTelemetry(telemetry.Noop())(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

// Login exchanges credentials for an access token
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/jwt/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp loginResponse
	if err := c.do(ctx, opLogin, req, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", c.fail(ctx, opLogin, &DecodeError{Op: opLogin, Err: errors.New("missing access_token")})
	}
	return resp.AccessToken, nil
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Email string `json:"email"`
}

// Register creates an account. It returns the email the server recorded;
// the caller still has to log in to get a token.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(registerRequest{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/register", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp registerResponse
	if err := c.do(ctx, opRegister, req, &resp); err != nil {
		return "", err
	}
	if resp.Email == "" {
		return email, nil
	}
	return resp.Email, nil
}

// Conversations returns the user's conversation history
func (c *Client) Conversations(ctx context.Context, token string) ([]models.Conversation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/conversations", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setBearer(req, token)

	var conversations []models.Conversation
	if err := c.do(ctx, opConversations, req, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response *string `json:"response"`
}

// Chat sends one message and returns the assistant's reply
func (c *Client) Chat(ctx context.Context, token, message string) (string, error) {
	body, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setBearer(req, token)

	var resp chatResponse
	if err := c.do(ctx, opChat, req, &resp); err != nil {
		return "", err
	}
	if resp.Response == nil {
		return "", c.fail(ctx, opChat, &DecodeError{Op: opChat, Err: errors.New("missing response")})
	}
	return *resp.Response, nil
}

func setBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// do sends req and decodes a 2xx JSON body into out
func (c *Client) do(ctx context.Context, op string, req *http.Request, out any) error {
	ctx, span := c.tracer.Start(ctx, "wisepal.api."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
		),
	)
	defer span.End()
	req = req.WithContext(ctx)

	if err := c.limiter.Wait(ctx); err != nil {
		return c.fail(ctx, op, &TransportError{Op: op, Err: err})
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("op", op)))
	if err != nil {
		return c.fail(ctx, op, &TransportError{Op: op, Err: err})
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := readResponse(resp)
	if err != nil {
		return c.fail(ctx, op, &TransportError{Op: op, Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(ctx, op, &StatusError{Op: op, Status: resp.StatusCode, Detail: parseDetail(body)})
	}

	if err := json.Unmarshal(body, out); err != nil {
		return c.fail(ctx, op, &DecodeError{Op: op, Err: err})
	}

	c.logger.Debug("api request completed",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// fail records err on the active span and metrics and returns it unchanged
func (c *Client) fail(ctx context.Context, op string, err error) error {
	kind := Kind(err)
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	c.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("kind", kind),
	))
	c.logger.Warn("api request failed", zap.String("op", op), zap.String("kind", kind), zap.Error(err))
	return err
}

// readResponse reads at most MaxResponseSize bytes of the body
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// parseDetail extracts a string "detail" field from a JSON error body.
// Structured details (validation error lists) yield "".
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err != nil {
		return ""
	}
	return strings.TrimSpace(detail)
}
