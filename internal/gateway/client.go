package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nhle/gmail-notifier/internal/metrics"
)

// client is a thin HTTP client for Gmail's legacy web surfaces. It carries
// the session cookie jar, retries with exponential backoff on HTTP 429 and
// runs every call through a circuit breaker so a Gmail outage does not turn
// each poll into a pile of timeouts.
type client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type breakerSettings struct {
	name        string
	maxFailures uint32
	openTimeout time.Duration
}

func newClient(hc *http.Client, bs breakerSettings, m *metrics.Metrics, logger *slog.Logger) *client {
	c := &client{
		httpClient: hc,
		maxRetries: 3,
		metrics:    m,
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        bs.name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     bs.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.maxFailures
		},
		// A signed-out session or a cancelled caller says nothing about
		// Gmail's health.
		IsSuccessful: func(err error) bool {
			return err == nil || IsAuthError(err) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
			m.SetBreakerState(name, int(to))
		},
	})
	return c
}

// get performs a GET and returns the body.
func (c *client) get(ctx context.Context, op, rawURL string) ([]byte, error) {
	return c.execute(ctx, op, http.MethodGet, rawURL, nil)
}

// postForm performs a form-encoded POST and returns the body.
func (c *client) postForm(ctx context.Context, op, rawURL string, form url.Values) ([]byte, error) {
	return c.execute(ctx, op, http.MethodPost, rawURL, form)
}

func (c *client) execute(ctx context.Context, op, method, rawURL string, form url.Values) ([]byte, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, op, method, rawURL, form)
	})
	switch {
	case err == nil:
		c.metrics.IncGatewayRequest(op, "ok")
		return out.([]byte), nil
	case IsAuthError(err):
		c.metrics.IncGatewayRequest(op, "auth")
	default:
		c.metrics.IncGatewayRequest(op, "error")
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: gmail unavailable: %w", op, err)
	}
	return nil, err
}

// do builds the request, handles rate limiting with exponential backoff and
// maps auth failures.
func (c *client) do(ctx context.Context, op, method, rawURL string, form url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Rebuild the body on retries since it was consumed.
		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing %s request: %w", op, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading %s response body: %w", op, readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s", op)
			c.logger.Debug("rate limited, backing off", "op", op, "wait", wait)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &AuthError{Op: op, Message: fmt.Sprintf("status %d", resp.StatusCode)}
		}
		if resp.Request != nil && isSignInHost(resp.Request.URL) {
			return nil, &AuthError{Op: op, Message: "redirected to sign-in"}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{
				Op:         op,
				Method:     method,
				URL:        redact(rawURL),
				StatusCode: resp.StatusCode,
			}
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

func isSignInHost(u *url.URL) bool {
	return u != nil && strings.HasPrefix(u.Hostname(), "accounts.")
}

// redact drops the query, which carries action tokens.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	return u.String()
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
