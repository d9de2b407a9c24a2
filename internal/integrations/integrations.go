// Package integrations holds the synchronous HTTP collaborators, the
// historical direct calls each service made before the event log existed.
// The dispatch policy falls back to these when the async path is disabled or
// failing, so their failure semantics matter: a call either succeeds or
// returns an error the caller can act on; nothing here retries indefinitely.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"hrms/internal/platform/config"
	"hrms/pkg/platform/circuit"
	"hrms/pkg/platform/sentinel"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

// client is the shared plumbing for collaborator calls: JSON POST, bearer
// service token, circuit breaker.
type client struct {
	baseURL string
	http    *http.Client
	tokens  *tokenSource
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func newClient(baseURL string, cfg *config.Fallback, serviceName string, logger *slog.Logger) *client {
	return &client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		tokens:  newTokenSource(cfg.SigningKey, serviceName),
		breaker: circuit.New(breakerThreshold, breakerCooldown),
		logger:  logger,
	}
}

// post sends one JSON request. A circuit held open by prior failures fails
// fast with sentinel.ErrUnavailable instead of stalling the request path.
func (c *client) post(ctx context.Context, path string, payload any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: collaborator endpoint not configured", sentinel.ErrUnavailable)
	}
	if !c.breaker.Allow() {
		return fmt.Errorf("%w: circuit open for %s", sentinel.ErrUnavailable, c.baseURL)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token, err := c.tokens.bearer(); err == nil {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		c.logger.Warn("service token mint failed, calling without auth", "error", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.breaker.RecordFailure()
		return fmt.Errorf("%w: %s returned %d", sentinel.ErrUnavailable, path, resp.StatusCode)
	}

	c.breaker.RecordSuccess()
	return nil
}
