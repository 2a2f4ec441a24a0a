// Package nlp provides a typed client for the external linguistic-analysis
// service. The call contract is: submit tokenized sentences, receive a
// dependency or constituency structure or an error within the timeout.
package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/graphtext/graph2seq/internal/metrics"
	"github.com/graphtext/graph2seq/internal/models"
)

// Circuit breaker configuration. After breakerThreshold consecutive failures
// the client fails fast for breakerCooldown before probing again.
const (
	breakerThreshold = 3
	breakerCooldown  = 15 * time.Second
)

// Circuit breaker states.
const (
	breakerClosed = iota
	breakerOpen
	breakerHalfOpen
)

// Client talks to a parser service over HTTP. Safe for concurrent use.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        *logrus.Logger

	mu            sync.Mutex
	breakerState  int
	failures      int
	lastFailureAt time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a parser client for the given service address. The
// timeout bounds each individual request.
func NewClient(host string, port int, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:      fmt.Sprintf("http://%s:%d", host, port),
		timeout:      timeout,
		httpClient:   &http.Client{},
		log:          logrus.New(),
		breakerState: breakerClosed,
	}
	for _, o := range opts {
		o(c)
	}

	return c
}

// DependencyParse submits sentences for dependency parsing.
func (c *Client) DependencyParse(ctx context.Context, sentences [][]string) (*ParseResult, error) {
	return c.annotate(ctx, sentences, "depparse")
}

// ConstituencyParse submits sentences for constituency parsing.
func (c *Client) ConstituencyParse(ctx context.Context, sentences [][]string) (*ParseResult, error) {
	return c.annotate(ctx, sentences, "parse")
}

func (c *Client) annotate(ctx context.Context, sentences [][]string, annotators string) (*ParseResult, error) {
	if len(sentences) == 0 {
		return nil, models.InvalidInputf("no sentences to annotate")
	}

	if err := c.breakerAllow(); err != nil {
		return nil, err
	}

	result, err := c.doAnnotate(ctx, sentences, annotators)
	if err != nil {
		metrics.ParserRequests.WithLabelValues("error").Inc()

		if models.IsUnavailable(err) {
			c.breakerRecordFailure()
		}

		return nil, err
	}

	metrics.ParserRequests.WithLabelValues("ok").Inc()
	c.breakerRecordSuccess()

	return result, nil
}

func (c *Client) doAnnotate(ctx context.Context, sentences [][]string, annotators string) (*ParseResult, error) {
	body, err := json.Marshal(annotateRequest{Sentences: sentences, Annotators: annotators})
	if err != nil {
		return nil, fmt.Errorf("marshaling annotate request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/annotate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating annotate request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, models.UnavailableErrorf("annotate request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20)) //nolint:errcheck // best-effort drain before close.

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, models.InvalidInputf("parser rejected input with status %d", resp.StatusCode)
		}

		return nil, models.UnavailableErrorf("parser returned status %d", resp.StatusCode)
	}

	var result ParseResult

	limited := io.LimitReader(resp.Body, 10<<20) // 10 MB
	if err := json.NewDecoder(limited).Decode(&result); err != nil {
		return nil, models.UnavailableErrorf("decoding parse response: %v", err)
	}

	if len(result.Sentences) != len(sentences) {
		return nil, models.UnavailableErrorf("parser returned %d sentences, want %d", len(result.Sentences), len(sentences))
	}

	return &result, nil
}

// breakerAllow checks whether the circuit breaker permits a request. Open
// state rejects until the cooldown expires, then one probe is let through.
func (c *Client) breakerAllow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.breakerState {
	case breakerOpen:
		if time.Since(c.lastFailureAt) < breakerCooldown {
			return models.UnavailableErrorf("parser circuit breaker is open")
		}

		c.breakerState = breakerHalfOpen

		return nil
	case breakerHalfOpen:
		return models.UnavailableErrorf("parser circuit breaker is probing")
	}

	return nil
}

func (c *Client) breakerRecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures = 0
	c.breakerState = breakerClosed
}

func (c *Client) breakerRecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures++
	c.lastFailureAt = time.Now()

	if c.failures >= breakerThreshold || c.breakerState == breakerHalfOpen {
		if c.breakerState != breakerOpen {
			c.log.WithField("failures", c.failures).Warn("parser circuit breaker opened")
		}

		c.breakerState = breakerOpen
	}
}
