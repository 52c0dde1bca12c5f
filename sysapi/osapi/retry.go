//go:build !appcore_embedded

package osapi

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/reglet-dev/reglet-appcore/sysapi"
)

// retryTransport retries transient failures with exponential backoff and
// honours Retry-After. Policy rejections are never retried.
type retryTransport struct {
	base       http.RoundTripper
	onRetry    func(req *http.Request, attempt int, wait time.Duration, status int)
	maxRetries int
	initial    time.Duration
	maxBackoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// A body that cannot be replayed gets exactly one attempt.
		return t.base.RoundTrip(req)
	}

	var (
		lastErr  error
		lastResp *http.Response
	)

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		clone := req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			clone.Body = body
		}

		resp, err := t.base.RoundTrip(clone)
		if err != nil {
			if IsBlocked(err) {
				return nil, err
			}
			lastErr, lastResp = err, nil
			if attempt == t.maxRetries {
				break
			}
			if werr := t.wait(req, attempt, nil); werr != nil {
				return nil, werr
			}
			continue
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		lastResp, lastErr = resp, nil
		if attempt == t.maxRetries {
			break
		}
		_ = resp.Body.Close()
		if werr := t.wait(req, attempt, resp); werr != nil {
			return nil, werr
		}
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

func (t *retryTransport) wait(req *http.Request, attempt int, resp *http.Response) error {
	d := t.backoff(attempt, resp)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if t.onRetry != nil {
		t.onRetry(req, attempt+1, d, status)
	}
	return sysapi.Sleep(req.Context(), d)
}

func (t *retryTransport) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				return min(time.Duration(secs)*time.Second, t.maxBackoff)
			}
			if at, err := http.ParseTime(ra); err == nil {
				d := time.Until(at)
				if d < 0 {
					return t.initial
				}
				return min(d, t.maxBackoff)
			}
		}
	}
	return min(t.initial*(1<<attempt), t.maxBackoff)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// redactURL removes credentials from u for logging.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	c.User = nil
	return c.String()
}
