// Package fetch performs the two remote reads a mirror run needs: JSON API
// requests that survive transient failures and rate-limit exhaustion, and raw
// content downloads that never fail outright.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gogithub "github.com/google/go-github/v75/github"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrName = "github.com/tilsley/treemirror"

// Options tunes retry behaviour. Retries below 1 are treated as 1 and a
// negative BaseDelay as 0.
type Options struct {
	Retries   int
	BaseDelay time.Duration
}

// Result is a successful API response.
type Result struct {
	Body     json.RawMessage
	NextPage int // 0 when there is no further page
	Rate     RateLimit
}

// Observer receives per-request outcomes, e.g. for metrics.
type Observer interface {
	ObserveRequest(kind string, statusCode int, err error)
	ObserveRateLimitWait(d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, int, error)  {}
func (nopObserver) ObserveRateLimitWait(time.Duration) {}

// Fetcher issues GitHub API and raw download requests through a go-github
// client, so whatever auth transport the client carries applies to both.
type Fetcher struct {
	gh        *gogithub.Client
	retries   int
	baseDelay time.Duration
	log       *slog.Logger

	throttle *Throttle
	now      func() time.Time
	sleep    Sleeper
	observer Observer
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithClock replaces the wall clock and the sleeper. Tests use it to avoid
// real waits.
func WithClock(now func() time.Time, sleep Sleeper) Option {
	return func(f *Fetcher) {
		f.now = now
		f.sleep = sleep
	}
}

// WithThrottle shares th with other fetchers. By default each Fetcher owns
// its own Throttle, which is still shared by all goroutines using it.
func WithThrottle(th *Throttle) Option {
	return func(f *Fetcher) { f.throttle = th }
}

// WithObserver reports request outcomes to o.
func WithObserver(o Observer) Option {
	return func(f *Fetcher) { f.observer = o }
}

// New creates a Fetcher.
func New(gh *gogithub.Client, opts Options, log *slog.Logger, extra ...Option) *Fetcher {
	f := &Fetcher{
		gh:        gh,
		retries:   max(opts.Retries, 1),
		baseDelay: max(opts.BaseDelay, 0),
		log:       log,
		throttle:  NewThrottle(),
		now:       time.Now,
		sleep:     Sleep,
		observer:  nopObserver{},
	}
	for _, o := range extra {
		o(f)
	}
	return f
}

// Fetch GETs url and returns its JSON body.
//
// A 403 with an exhausted quota is not a failed attempt: the fetcher waits
// until the advertised reset and repeats the same attempt. Any other error
// consumes an attempt and, if attempts remain, waits BaseDelay*(attempt+1)
// before the next one. After the last failed attempt a FetchError wrapping
// the final error is returned. Context cancellation is returned as-is.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	ctx, span := otel.Tracer(instrName).Start(ctx, "fetch.Fetch",
		trace.WithAttributes(attribute.String("http.url", url)),
	)
	defer span.End()

	// Waiting for the reset is handled here; keep go-github from
	// short-circuiting requests based on its own bookkeeping.
	ctx = context.WithValue(ctx, gogithub.BypassRateLimitCheck, true)

	var lastErr error
	for attempt := 0; attempt < f.retries; {
		if err := f.throttle.Wait(ctx, f.now, f.sleep); err != nil {
			return nil, f.abort(span, url, err)
		}

		f.log.Info("fetching", "url", url, "attempt", attempt+1)
		res, exhausted, err := f.do(ctx, url)
		if exhausted != nil {
			wait := exhausted.WaitFrom(f.now())
			resumeAt := f.now().Add(wait)
			f.log.Warn("rate limit exceeded, waiting for reset",
				"url", url,
				"reset", time.Unix(exhausted.Reset, 0).Format(time.DateTime),
				"wait", wait,
			)
			f.observer.ObserveRateLimitWait(wait)
			span.AddEvent("rate_limited", trace.WithAttributes(attribute.Int64("wait_ms", wait.Milliseconds())))
			f.throttle.Hold(resumeAt)
			continue
		}
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, f.abort(span, url, ctx.Err())
		}

		lastErr = err
		f.log.Warn("fetch attempt failed", "url", url, "attempt", attempt+1, "error", err)

		if attempt < f.retries-1 {
			delay := f.baseDelay * time.Duration(attempt+1)
			f.log.Info("retrying", "url", url, "in", delay)
			if err := f.sleep(ctx, delay); err != nil {
				return nil, f.abort(span, url, err)
			}
		}
		attempt++
	}

	err := FetchError{URL: url, Attempts: f.retries, Err: lastErr}
	span.RecordError(err)
	span.SetStatus(codes.Error, "retries exhausted")
	return nil, err
}

// do performs one request. A non-nil RateLimit means the quota is exhausted
// and the attempt must be repeated after waiting.
func (f *Fetcher) do(ctx context.Context, url string) (*Result, *RateLimit, error) {
	req, err := f.gh.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request for %s: %w", url, err)
	}

	var body json.RawMessage
	resp, err := f.gh.Do(ctx, req, &body)
	if resp == nil || resp.Response == nil {
		f.observer.ObserveRequest("api", 0, err)
		if err == nil {
			err = errors.New("no response")
		}
		return nil, nil, fmt.Errorf("GET %s: %w", url, err)
	}

	rate := ParseRateLimit(resp.Header)
	f.log.Info("rate limit", "remaining", rate.Remaining, "limit", rate.Limit, "status", resp.StatusCode)
	f.observer.ObserveRequest("api", resp.StatusCode, err)

	if resp.StatusCode == http.StatusForbidden && rate.Exhausted() {
		return nil, &rate, nil
	}
	if err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 || resp.StatusCode == http.StatusAccepted {
			return nil, nil, StatusError{URL: url, StatusCode: resp.StatusCode, Err: err}
		}
		return nil, nil, fmt.Errorf("decode %s: %w", url, err)
	}

	return &Result{Body: body, NextPage: resp.NextPage, Rate: rate}, nil, nil
}

func (f *Fetcher) abort(span trace.Span, url string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return fmt.Errorf("fetch %s: %w", url, err)
}
