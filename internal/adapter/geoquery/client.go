// Package geoquery talks to the remote feature-query service: session
// establishment (with a one-shot interactive fallback) and evaluation
// of declarative query pipelines.
package geoquery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/couchcryptid/storm-track-viewer/internal/domain"
	"github.com/couchcryptid/storm-track-viewer/internal/observability"
	"github.com/couchcryptid/storm-track-viewer/internal/query"
)

// ErrUnauthorized is returned when the service rejects the credential.
var ErrUnauthorized = errors.New("unauthorized")

// ErrAuthDeclined is returned when the operator declines the
// interactive device-authorization request.
var ErrAuthDeclined = errors.New("authorization declined")

// Executor evaluates query pipelines against the remote service.
type Executor interface {
	Execute(ctx context.Context, p query.Pipeline) (domain.FeatureCollection, error)
}

// Prompter presents the interactive device-authorization challenge to
// the operator.
type Prompter interface {
	PromptDeviceAuth(verificationURI, userCode string)
}

// Config parameterizes a Client.
type Config struct {
	BaseURL         string
	Token           string
	CredentialsFile string
	Timeout         time.Duration
	Prompter        Prompter
	Metrics         *observability.Metrics
	Logger          *slog.Logger
}

// Client implements Executor over the service's HTTP API.
type Client struct {
	baseURL         string
	token           string
	credentialsFile string
	httpClient      *http.Client
	breaker         *gobreaker.CircuitBreaker[domain.FeatureCollection]
	prompter        Prompter
	metrics         *observability.Metrics
	logger          *slog.Logger

	sessionID string
}

// NewClient creates a feature-query client. InitSession must succeed
// before Execute is used.
func NewClient(cfg Config) *Client {
	prompter := cfg.Prompter
	if prompter == nil {
		prompter = stderrPrompter{}
	}

	breaker := gobreaker.NewCircuitBreaker[domain.FeatureCollection](gobreaker.Settings{
		Name:    "geoquery",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL:         cfg.BaseURL,
		token:           cfg.Token,
		credentialsFile: cfg.CredentialsFile,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		breaker:         breaker,
		prompter:        prompter,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
	}
}

// InitSession establishes an authenticated session. With a valid token
// (from config or the credentials file) it succeeds directly. On an
// unauthorized response it runs the interactive device-authorization
// flow exactly once, persists the granted token, and retries session
// creation once; any further failure is fatal to the caller.
func (c *Client) InitSession(ctx context.Context) error {
	token := c.token
	if token == "" {
		stored, err := loadCredentials(c.credentialsFile)
		if err == nil {
			token = stored
		}
	}

	err := c.createSession(ctx, token)
	if err == nil {
		c.token = token
		c.metrics.SessionInits.WithLabelValues("token").Inc()
		return nil
	}
	if !errors.Is(err, ErrUnauthorized) {
		return fmt.Errorf("init session: %w", err)
	}

	c.logger.Info("credential rejected, starting interactive authentication")
	granted, err := c.deviceAuthorize(ctx)
	if err != nil {
		return fmt.Errorf("interactive authentication: %w", err)
	}

	if err := saveCredentials(c.credentialsFile, granted); err != nil {
		// The session can still proceed; the operator just re-authorizes next run.
		c.logger.Warn("persist credentials failed", "path", c.credentialsFile, "error", err)
	}

	if err := c.createSession(ctx, granted); err != nil {
		return fmt.Errorf("init session after authentication: %w", err)
	}
	c.token = granted
	c.metrics.SessionInits.WithLabelValues("interactive").Inc()
	return nil
}

// SessionID returns the current session identifier, empty before InitSession.
func (c *Client) SessionID() string { return c.sessionID }

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *Client) createSession(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("session request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("session API error: status %d: %s", resp.StatusCode, body)
	}

	var sr sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return fmt.Errorf("decode session response: %w", err)
	}
	if sr.SessionID == "" {
		return errors.New("session response missing session_id")
	}

	c.sessionID = sr.SessionID
	c.logger.Info("session established", "session_id", sr.SessionID, "expires_at", sr.ExpiresAt)
	return nil
}

// Execute posts the pipeline descriptor for server-side evaluation and
// decodes the resulting feature collection. Calls are routed through a
// circuit breaker so a failing backend trips fast instead of queueing
// timeouts.
func (c *Client) Execute(ctx context.Context, p query.Pipeline) (domain.FeatureCollection, error) {
	if c.sessionID == "" {
		return domain.FeatureCollection{}, errors.New("session not initialized")
	}

	kind := pipelineKind(p)
	start := time.Now()

	fc, err := c.breaker.Execute(func() (domain.FeatureCollection, error) {
		return c.doQuery(ctx, p)
	})

	c.metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		c.metrics.QueryRequests.WithLabelValues("error").Inc()
		return domain.FeatureCollection{}, err
	case fc.Len() == 0:
		c.metrics.QueryRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.QueryRequests.WithLabelValues("success").Inc()
	}
	return fc, nil
}

func (c *Client) doQuery(ctx context.Context, p query.Pipeline) (domain.FeatureCollection, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("serialize pipeline: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Session-ID", c.sessionID)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("query request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return domain.FeatureCollection{}, fmt.Errorf("%w: session expired", ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.FeatureCollection{}, fmt.Errorf("query API error: status %d: %s", resp.StatusCode, respBody)
	}

	var fc domain.FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("decode feature collection: %w", err)
	}
	return fc, nil
}

// pipelineKind labels metrics by what the pipeline produces.
func pipelineKind(p query.Pipeline) string {
	for _, s := range p.Stages {
		if s.Op == query.OpAggregateLine {
			return "tracks"
		}
	}
	return "points"
}
