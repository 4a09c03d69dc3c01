package retail

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/codmatch/backend/internal/domain"
	"golang.org/x/time/rate"
)

const (
	// maxBodyBytes caps how much of a page is read
	maxBodyBytes = 8 << 20

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/124 Safari/537.36"
)

// ClientConfig holds configuration for the retailer HTTP client
type ClientConfig struct {
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	UserAgent         string
	MaxAttempts       int
}

// Client fetches retailer pages with rate limiting and retries
type Client struct {
	mu          sync.RWMutex
	httpClient  *http.Client
	userAgent   string
	timeout     time.Duration
	rateLimiter *rate.Limiter
	maxAttempts int
	backoff     func(attempt int) time.Duration
	debug       bool
}

// NewClient creates a new retailer client
func NewClient(config ClientConfig) *Client {
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 0.5
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Client{
		httpClient:  newHTTPClient(timeout),
		userAgent:   userAgent,
		timeout:     timeout,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), burst),
		maxAttempts: maxAttempts,
		backoff:     exponentialBackoff,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}
}

// SetDebug enables or disables debug logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if c.debug {
		log.Printf("[RETAIL] "+format, args...)
	}
}

// UserAgent returns the User-Agent currently sent
func (c *Client) UserAgent() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userAgent
}

// Reconnect drops the pooled connections and starts a fresh transport with
// the given User-Agent. An empty userAgent keeps the current one.
func (c *Client) Reconnect(userAgent string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.httpClient.CloseIdleConnections()
	c.httpClient = newHTTPClient(c.timeout)
	if userAgent != "" {
		c.userAgent = userAgent
	}
	log.Printf("[RETAIL] Reconnected with User-Agent %q", c.userAgent)
}

// exponentialBackoff returns the wait before retry attempt+1
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500<<(attempt-1)) * time.Millisecond
}

// readLimitedBody reads at most limit bytes from body
func readLimitedBody(body io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, limit))
}

// doRequest executes an HTTP GET request with browser-like headers
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.mu.RLock()
	httpClient, userAgent := c.httpClient, c.userAgent
	c.mu.RUnlock()

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")

	return httpClient.Do(req)
}

// Fetch returns the body of rawURL. Transport errors, 429 and 5xx responses
// are retried with exponential backoff. A 403 answer is returned with its
// body and ErrBlocked so the caller can inspect the block page.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	c.debugLog("Fetch %s", rawURL)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.doRequest(ctx, rawURL)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Printf("[RETAIL] Request error (attempt %d): %v", attempt, err)
			lastErr = err
			continue
		}

		body, err := readLimitedBody(resp.Body, maxBodyBytes)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			c.debugLog("Fetched %d bytes from %s", len(body), rawURL)
			return string(body), nil
		case resp.StatusCode == http.StatusForbidden:
			return string(body), fmt.Errorf("%w: status %d", domain.ErrBlocked, resp.StatusCode)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			log.Printf("[RETAIL] Status %d (attempt %d) for %s", resp.StatusCode, attempt, rawURL)
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			continue
		default:
			return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
		}
	}

	log.Printf("[RETAIL] All retries failed for %s", rawURL)
	return "", lastErr
}
