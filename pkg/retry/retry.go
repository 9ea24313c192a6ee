package retry

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sw33tLie/leaguebundle/internal/utils"
	"github.com/sw33tLie/leaguebundle/pkg/fetch"
	"github.com/sw33tLie/leaguebundle/pkg/transport"
)

const (
	DefaultBaseDelay  = 400 * time.Millisecond
	DefaultMaxRetries = 3
)

// Policy retries network failures and HTTP 429 with exponential backoff.
// A logical call makes at most MaxRetries+1 physical requests.
type Policy struct {
	BaseDelay  time.Duration
	MaxRetries int
}

func DefaultPolicy() Policy {
	return Policy{BaseDelay: DefaultBaseDelay, MaxRetries: DefaultMaxRetries}
}

// Delay is the wait before retry number attempt, counting from 0.
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

// Retryable reports whether an outcome may succeed if the request is repeated.
func Retryable(o fetch.Outcome) bool {
	return !o.OK && (o.Kind == fetch.KindNetworkError || o.IsRateLimited())
}

// HTTPClient returns a retryablehttp client applying the policy. On
// exhaustion the last response (or error) is returned untouched.
func (p Policy) HTTPClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.Logger = utils.RetryLogger()
	c.RetryMax = p.MaxRetries
	c.RetryWaitMin = p.BaseDelay
	c.RetryWaitMax = p.Delay(p.MaxRetries)
	c.CheckRetry = checkRetry
	c.Backoff = func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		return p.Delay(attemptNum)
	}
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// Wrap decorates a transport so that retryable outcomes are re-requested.
// Only the URLs that need it are re-issued, batched when the transport is.
func Wrap(t transport.Transport, p Policy) transport.Transport {
	return &retryingTransport{inner: t, policy: p}
}

type retryingTransport struct {
	inner  transport.Transport
	policy Policy
}

func (r *retryingTransport) Name() string  { return r.inner.Name() }
func (r *retryingTransport) Batched() bool { return r.inner.Batched() }

func (r *retryingTransport) FetchMany(ctx context.Context, urls []string) []fetch.Outcome {
	out := r.inner.FetchMany(ctx, urls)

	for attempt := 0; attempt < r.policy.MaxRetries; attempt++ {
		var pending []int
		for i, o := range out {
			if Retryable(o) {
				pending = append(pending, i)
			}
		}
		if len(pending) == 0 {
			break
		}

		delay := r.policy.Delay(attempt)
		utils.Log.Debugf("%s: retrying %d URL(s) in %s (retry %d/%d)", r.inner.Name(), len(pending), delay, attempt+1, r.policy.MaxRetries)
		select {
		case <-ctx.Done():
			return out
		case <-time.After(delay):
		}

		subset := make([]string, len(pending))
		for j, i := range pending {
			subset[j] = urls[i]
		}
		again := r.inner.FetchMany(ctx, subset)
		for j, i := range pending {
			if j < len(again) {
				out[i] = again[j]
			}
		}
	}
	return out
}
