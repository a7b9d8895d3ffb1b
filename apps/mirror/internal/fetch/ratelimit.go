package fetch

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	headerRateLimit     = "X-RateLimit-Limit"
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"

	// defaultResetWindow is assumed when an exhausted response carries no reset time.
	defaultResetWindow = 60 * time.Second
)

// RateLimit is the quota snapshot read from a single API response.
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     int64 // unix seconds

	HasRemaining bool
	HasReset     bool
}

// ParseRateLimit reads the X-RateLimit-* headers. Missing or malformed values
// leave the matching Has* flag false.
func ParseRateLimit(h http.Header) RateLimit {
	var rl RateLimit
	if v, err := strconv.Atoi(h.Get(headerRateLimit)); err == nil {
		rl.Limit = v
	}
	if v, err := strconv.Atoi(h.Get(headerRateRemaining)); err == nil {
		rl.Remaining = v
		rl.HasRemaining = true
	}
	if v, err := strconv.ParseInt(h.Get(headerRateReset), 10, 64); err == nil {
		rl.Reset = v
		rl.HasReset = true
	}
	return rl
}

// Exhausted reports whether the snapshot says no requests remain.
func (r RateLimit) Exhausted() bool {
	return r.HasRemaining && r.Remaining == 0
}

// WaitFrom returns how long to wait, measured from now, before the quota
// resets: the whole seconds until reset plus one. Without a reset header the
// reset is assumed one minute away.
func (r RateLimit) WaitFrom(now time.Time) time.Duration {
	reset := now.Add(defaultResetWindow).Unix()
	if r.HasReset {
		reset = r.Reset
	}
	secs := max(reset-now.Unix(), 0) + 1
	return time.Duration(secs) * time.Second
}

// Sleeper blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Throttle is the process-wide pause shared by every request. When any caller
// sees the quota exhausted it pushes the resume deadline forward, and all
// callers wait for that one deadline before issuing their next request.
type Throttle struct {
	mu    sync.Mutex
	until time.Time
}

// NewThrottle returns a Throttle that is not holding anything.
func NewThrottle() *Throttle {
	return &Throttle{}
}

// Hold delays all requests until at least t.
func (th *Throttle) Hold(t time.Time) {
	th.mu.Lock()
	defer th.mu.Unlock()
	if t.After(th.until) {
		th.until = t
	}
}

// Until returns the current resume deadline (zero when never held).
func (th *Throttle) Until() time.Time {
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.until
}

// Wait sleeps until the resume deadline has passed.
func (th *Throttle) Wait(ctx context.Context, now func() time.Time, sleep Sleeper) error {
	d := th.Until().Sub(now())
	if d <= 0 {
		return ctx.Err()
	}
	return sleep(ctx, d)
}
