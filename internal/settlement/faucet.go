package settlement

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/go-resty/resty/v2"
)

// FaucetClient wraps a non-authenticated HTTP POST to a test-net faucet
// (§4.6). Calls are globally serialized so only one is in flight at a time,
// and 5xx/network errors are retried with exponential backoff; 4xx is
// fatal.
type FaucetClient struct {
	url     string
	http    *resty.Client
	mu      sync.Mutex // serializes faucet calls globally
	attempt int        // reset per call; read/written only while mu is held
}

// NewFaucetClient builds a FaucetClient configured with the spec's literal
// retry policy: base 500ms, cap 5s, ±20% jitter, ≤3 retries.
func NewFaucetClient(url string, base, cap time.Duration, jitter float64, maxRetries int) *FaucetClient {
	f := &FaucetClient{url: url}
	f.http = resty.New().
		SetRetryCount(maxRetries).
		SetRetryWaitTime(base).
		SetRetryMaxWaitTime(cap).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true // network error, retryable
			}
			return r.StatusCode() >= 500
		}).
		SetRetryAfter(func(c *resty.Client, r *resty.Response) (time.Duration, error) {
			f.attempt++
			return jitteredWait(base, cap, jitter, f.attempt), nil
		})
	return f
}

// RequestFaucet posts a funding request for address, serialized globally so
// at most one faucet call is in flight (§4.6).
func (f *FaucetClient) RequestFaucet(ctx context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempt = 0

	resp, err := f.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"address": address}).
		Post(f.url)
	if err != nil {
		return fmt.Errorf("settlement.RequestFaucet: %w: %w", domain.ErrFaucetExhausted, err)
	}
	if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
		return fmt.Errorf("%w: status %d", domain.ErrFaucetRejected, resp.StatusCode())
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("%w: status %d after retries", domain.ErrFaucetExhausted, resp.StatusCode())
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return fmt.Errorf("%w: unexpected status %d", domain.ErrFaucetRejected, resp.StatusCode())
	}
	return nil
}

// jitteredWait returns base*2^attempt clamped to cap, with ±jitter applied,
// matching §4.6's literal retry policy.
func jitteredWait(base, cap time.Duration, jitter float64, attempt int) time.Duration {
	wait := base
	for i := 0; i < attempt; i++ {
		wait *= 2
		if wait > cap {
			wait = cap
			break
		}
	}
	delta := float64(wait) * jitter
	offset := (rand.Float64()*2 - 1) * delta
	result := time.Duration(float64(wait) + offset)
	if result < 0 {
		result = 0
	}
	return result
}
