package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// StatusError is a non-2xx response. Body holds at most the first few KB.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Code)
	}
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

func (e *StatusError) HTTPStatusCode() int { return e.Code }

func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	return false
}

func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				sleepFor = time.Duration(secs) * time.Second
			}
		}
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}

func JitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	j := 0.2
	delta := base.Seconds() * j
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

// Retry bounds the in-call retries a provider client makes before giving the
// failure back to the job layer.
type Retry struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

var DefaultRetry = Retry{Attempts: 3, Base: 500 * time.Millisecond, Max: 10 * time.Second}

/*
Fetch performs GET-style requests built by newReq and returns the body of the
first 2xx response. Retryable statuses and transport errors are retried with
jittered exponential backoff, honouring Retry-After.
*/
func Fetch(ctx context.Context, c *http.Client, retry Retry, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if c == nil {
		c = http.DefaultClient
	}
	attempts := retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.Base
	var lastErr error
	for i := 0; i < attempts; i++ {
		req, err := newReq(ctx)
		if err != nil {
			return nil, err
		}
		body, resp, err := do(c, req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if i == attempts-1 || !IsRetryableError(err) {
			break
		}
		wait := JitterSleep(RetryAfterDuration(resp, backoff, retry.Max))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
		if retry.Max > 0 && backoff > retry.Max {
			backoff = retry.Max
		}
	}
	return nil, lastErr
}

func do(c *http.Client, req *http.Request) ([]byte, *http.Response, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, resp, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, err
	}
	return body, resp, nil
}
