package alert

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
)

// WebhookSink posts alerts to an HTTP endpoint (Discord, Slack or a
// generic JSON receiver) with retries and a circuit breaker.
type WebhookSink struct {
	url        string
	format     Format
	client     *http.Client
	timeout    time.Duration
	maxRetries int
	backoff    Backoff
	secret     string
	breaker    *circuitBreaker
	now        func() time.Time
}

// WebhookOption configures a WebhookSink.
type WebhookOption func(*WebhookSink)

// WithFormat sets the payload format. Default is FormatGeneric.
func WithFormat(f Format) WebhookOption {
	return func(s *WebhookSink) { s.format = f }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(s *WebhookSink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout bounds each delivery attempt. Default is 5s.
func WithTimeout(d time.Duration) WebhookOption {
	return func(s *WebhookSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetries sets how many times a failed attempt is retried. Default is 2.
func WithRetries(n int, b Backoff) WebhookOption {
	return func(s *WebhookSink) {
		if n >= 0 {
			s.maxRetries = n
		}
		if b != nil {
			s.backoff = b
		}
	}
}

// WithSecret signs each request body with HMAC-SHA256 (see Sign).
func WithSecret(secret string) WebhookOption {
	return func(s *WebhookSink) { s.secret = secret }
}

// WithCircuitBreaker opens the circuit after failureThreshold consecutive
// failed sends and lets one trial request through after recovery.
func WithCircuitBreaker(failureThreshold int, recovery time.Duration) WebhookOption {
	return func(s *WebhookSink) {
		s.breaker = newCircuitBreaker(failureThreshold, recovery, s.now)
	}
}

// WithWebhookClock overrides time.Now for signatures and the circuit breaker.
func WithWebhookClock(now func() time.Time) WebhookOption {
	return func(s *WebhookSink) {
		if now != nil {
			s.now = now
			if s.breaker != nil {
				s.breaker.now = now
			}
		}
	}
}

// NewWebhookSink validates rawURL and returns a sink posting to it.
func NewWebhookSink(rawURL string, opts ...WebhookOption) (*WebhookSink, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Join(ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidURL)
	}

	s := &WebhookSink{
		url:        rawURL,
		format:     FormatGeneric,
		client:     &http.Client{},
		timeout:    5 * time.Second,
		maxRetries: 2,
		backoff:    DefaultBackoff(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := ParseFormat(string(s.format)); err != nil {
		return nil, err
	}
	return s, nil
}

// Send posts a, retrying temporary failures. 4xx responses other than
// 408, 425 and 429 are not retried.
func (s *WebhookSink) Send(ctx context.Context, a Alert) error {
	body, err := json.Marshal(payloadFor(s.format, a))
	if err != nil {
		return errors.Join(ErrDeliveryFailed, err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(ErrDeliveryFailed, lastErr, ctx.Err())
			case <-time.After(s.backoff.NextInterval(attempt)):
			}
		}
		if s.breaker != nil && !s.breaker.allow() {
			if lastErr != nil {
				return fmt.Errorf("%w: %w", ErrCircuitOpen, lastErr)
			}
			return ErrCircuitOpen
		}

		status, err := s.attempt(ctx, body)
		if s.breaker != nil {
			if err == nil {
				s.breaker.recordSuccess()
			} else {
				s.breaker.recordFailure()
			}
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if isPermanent(status) {
			return fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, s.maxRetries+1, lastErr)
}

func (s *WebhookSink) attempt(ctx context.Context, body []byte) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "rollout-alert/1.0")
	if s.secret != "" {
		now := s.now()
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
		req.Header.Set(HeaderSignature, Sign(s.secret, now, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return resp.StatusCode, nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.ReplaceAll(strings.TrimSpace(string(msg)), "\n", " ")
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text != "" {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, text)
	}
	return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
}

func isPermanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	default:
		return true
	}
}
