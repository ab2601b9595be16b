package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RequestFunc builds a fresh request for each attempt so bodies never need rewinding.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// HTTPClient runs outbound calls with a per-attempt timeout, exponential
// backoff between attempts and an optional circuit breaker. Transport errors
// and 5xx/429 responses are retried; other responses are returned as-is.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	Target      string
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
	Timeout     time.Duration

	sleep func(context.Context, time.Duration) error
}

// StatusError reports a retryable response that exhausted the attempts.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("resilience: upstream responded %d", e.StatusCode)
}

// Do executes the request built by build. On success the caller owns the body.
func (c HTTPClient) Do(ctx context.Context, build RequestFunc) (*http.Response, error) {
	if c.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	target := c.Target
	if target == "" {
		target = "default"
	}
	sleep := c.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if c.Breaker != nil && !c.Breaker.Allow(ctx) {
			countAttempt(target, "rejected")
			if lastErr == nil {
				return nil, ErrOpenCircuit
			}
			return nil, errors.Join(ErrOpenCircuit, lastErr)
		}
		resp, err := c.once(ctx, build)
		var be *buildError
		if errors.As(err, &be) {
			return nil, be.err
		}
		retryable := err != nil || resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		if c.Breaker != nil {
			c.Breaker.Report(ctx, !retryable)
		}
		if !retryable {
			countAttempt(target, "ok")
			return resp, nil
		}
		countAttempt(target, "retryable")
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < attempts {
			if err := sleep(ctx, Backoff(c.BaseBackoff, attempt, c.Jitter)); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (c HTTPClient) once(ctx context.Context, build RequestFunc) (*http.Response, error) {
	callCtx := ctx
	cancel := func() {}
	if c.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, c.Timeout)
	}
	req, err := build(callCtx)
	if err != nil {
		cancel()
		return nil, &buildError{err: err}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type buildError struct{ err error }

func (e *buildError) Error() string { return e.err.Error() }

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
