package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/metrics"

	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned for responses worth retrying later
var ErrUnavailable = errors.New("feed unavailable")

// Client reads per-game data blobs from the score feed.
// Each call is a single attempt; callers wrap it in a retry policy.
type Client struct {
	baseURL     string
	sign        string
	httpClient  *http.Client
	rateLimiter chan struct{} // Rate limiting semaphore
}

// NewClient creates a new score feed client
func NewClient(baseURL, sign string, timeout time.Duration) *Client {
	// Create rate limiter (max 10 concurrent requests)
	rateLimiter := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		rateLimiter <- struct{}{}
	}

	return &Client{
		baseURL:     baseURL,
		sign:        sign,
		rateLimiter: rateLimiter,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// get performs a GET request against the feed
func (c *Client) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, path)
	start := time.Now()

	// Rate limiting: acquire semaphore
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.rateLimiter:
		defer func() { c.rateLimiter <- struct{}{} }()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// The feed refuses requests without its signature header
	req.Header.Set("x-fsign", c.sign)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", "tournament-monitor/1.0")

	log.Debug().
		Str("url", url).
		Str("method", req.Method).
		Msg("Making feed request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordFeedCall(endpoint, "network_error", time.Since(start).Seconds())
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordFeedCall(endpoint, "read_error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	metrics.RecordFeedCall(endpoint, fmt.Sprintf("%d", resp.StatusCode), time.Since(start).Seconds())

	switch resp.StatusCode {
	case http.StatusOK:
		log.Debug().
			Str("url", url).
			Int("status", resp.StatusCode).
			Int("size", len(body)).
			Msg("Feed request successful")
		return body, nil

	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusBadGateway:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)

	default:
		return nil, fmt.Errorf("feed returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}
}

// FetchGame fetches and parses the data blob of one game
func (c *Client) FetchGame(ctx context.Context, gameKey string) (Blob, error) {
	if gameKey == "" {
		return nil, fmt.Errorf("empty game key")
	}

	body, err := c.get(ctx, "game", fmt.Sprintf("dc_1_%s", gameKey))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch game %s: %w", gameKey, err)
	}

	return ParseBlob(string(body)), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
