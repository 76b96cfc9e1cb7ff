// Package ai holds the HTTP clients for the external AI collaborators:
// category classifier, semantic ranker, nudge theme detector and translator.
// Every call runs under a per-collaborator circuit breaker, with a timeout
// and a client span.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"groupcart/internal/monitor"
	"groupcart/pkg/breaker"
	"groupcart/pkg/utils"
)

// Collaborator names, used for breakers, spans and metrics
const (
	ServiceClassifier = "classifier"
	ServiceRanker     = "ranker"
	ServiceTheme      = "theme"
	ServiceTranslator = "translator"
)

// ErrNotConfigured collaborator has no URL
var ErrNotConfigured = errors.New("collaborator not configured")

// maxResponseBytes caps collaborator response bodies
const maxResponseBytes = 4 << 20

// Options shared by every collaborator client
type Options struct {
	Timeout    time.Duration
	Breakers   *breaker.Manager
	Tracer     *monitor.Tracer
	Metrics    *monitor.MetricsCollector
	HTTPClient *http.Client
}

type client struct {
	opts Options
	http *http.Client
}

func newClient(opts Options) *client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Breakers == nil {
		opts.Breakers = breaker.NewManager(breaker.Config{FailureThreshold: 5, Timeout: 30 * time.Second})
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &client{opts: opts, http: httpClient}
}

// post sends body as JSON and decodes the JSON answer into out
func (c *client) post(ctx context.Context, service, url string, body, out interface{}) error {
	if url == "" {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	ctx, span := c.opts.Tracer.StartCollaboratorSpan(ctx, service, url)
	defer span.End()

	start := time.Now()
	err := c.opts.Breakers.Execute(ctx, service, func() error {
		return c.do(ctx, url, body, out)
	})
	c.opts.Metrics.RecordCollaboratorCall(service, err, time.Since(start))

	if err != nil {
		monitor.RecordError(span, err)
		return utils.WrapError(err, utils.CodeExternalService, service+" unavailable")
	}
	return nil
}

func (c *client) do(ctx context.Context, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
