package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ClientConfig tunes the shared outbound HTTP client used by the data
// collectors.
type ClientConfig struct {
	MaxConcurrency int
	RequestTimeout time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	UserAgent      string
	RPS            float64 // requests per second across the pool, 0 disables limiting
	Burst          int
}

// DefaultClientConfig returns conservative settings suitable for free-tier
// upstream APIs.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxConcurrency: 4,
		RequestTimeout: 10 * time.Second,
		MaxRetries:     2,
		BackoffBase:    time.Second,
		BackoffMax:     15 * time.Second,
		UserAgent:      "BlitzProof/1.0",
		RPS:            5,
		Burst:          5,
	}
}

// ClientPool wraps http.Client with a concurrency semaphore, a token-bucket
// rate limit, and retry with exponential backoff.
type ClientPool struct {
	config    ClientConfig
	semaphore chan struct{}
	limiter   *rate.Limiter
	client    *http.Client

	mu    sync.Mutex
	stats ClientStats
}

// ClientStats tracks aggregate outcomes across the pool.
type ClientStats struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	RetriedRequests int64
}

// NewClientPool creates a pooled HTTP client.
func NewClientPool(config ClientConfig) *ClientPool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}

	var limiter *rate.Limiter
	if config.RPS > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RPS), burst)
	}

	return &ClientPool{
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrency),
		limiter:   limiter,
		client: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}
}

// Do executes the request under the pool's concurrency and rate limits,
// retrying retryable failures with exponential backoff.
func (cp *ClientPool) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	select {
	case cp.semaphore <- struct{}{}:
		defer func() { <-cp.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if cp.limiter != nil {
		if err := cp.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if cp.config.UserAgent != "" {
		req.Header.Set("User-Agent", cp.config.UserAgent)
	}

	cp.incrementStat(&cp.stats.TotalRequests)

	var lastErr error
	for attempt := 0; attempt <= cp.config.MaxRetries; attempt++ {
		if attempt > 0 {
			cp.incrementStat(&cp.stats.RetriedRequests)
			backoff := cp.backoff(attempt)
			log.Debug().
				Dur("backoff", backoff).
				Int("attempt", attempt).
				Str("url", req.URL.String()).
				Msg("Retrying HTTP request")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := cp.client.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if isRetryableStatus(resp.StatusCode) && attempt < cp.config.MaxRetries {
			lastErr = fmt.Errorf("retryable status %d from %s", resp.StatusCode, req.URL.Host)
			resp.Body.Close()
			continue
		}

		cp.incrementStat(&cp.stats.SuccessRequests)
		return resp, nil
	}

	cp.incrementStat(&cp.stats.FailedRequests)
	return nil, fmt.Errorf("request to %s failed after %d attempts: %w",
		req.URL.Host, cp.config.MaxRetries+1, lastErr)
}

// GetJSON issues a GET request and decodes a 200 response body into out.
func (cp *ClientPool) GetJSON(ctx context.Context, url string, header http.Header, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := cp.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", req.URL.Host, err)
	}

	return nil
}

// Stats returns a snapshot of pool statistics.
func (cp *ClientPool) Stats() ClientStats {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.stats
}

func (cp *ClientPool) backoff(attempt int) time.Duration {
	backoff := cp.config.BackoffBase * time.Duration(1<<uint(attempt-1))
	if backoff > cp.config.BackoffMax {
		backoff = cp.config.BackoffMax
	}
	// Jitter to avoid synchronized retry storms across collectors.
	jitter := time.Duration(rand.Int63n(int64(backoff)/4 + 1))
	return backoff + jitter
}

func (cp *ClientPool) incrementStat(field *int64) {
	cp.mu.Lock()
	*field++
	cp.mu.Unlock()
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
