package actionqueue

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DrainConfig tunes the exponential backoff used while PM is unavailable.
type DrainConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultDrainConfig matches the spec's "initial" starting point; callers
// may tighten or loosen it per deployment.
func DefaultDrainConfig() DrainConfig {
	return DrainConfig{InitialBackoff: time.Second, MaxBackoff: 30 * time.Second}
}

// backoffFor computes min(initial*2^(f-1), max) for f consecutive
// failures (spec §4.I drain protocol). f<=0 yields no wait.
func backoffFor(cfg DrainConfig, f int) time.Duration {
	if f <= 0 {
		return 0
	}
	d := cfg.InitialBackoff
	for i := 1; i < f; i++ {
		d *= 2
		if d >= cfg.MaxBackoff {
			return cfg.MaxBackoff
		}
	}
	if d > cfg.MaxBackoff {
		return cfg.MaxBackoff
	}
	return d
}

// waitBackoff blocks for d, expressed as a single reservation against a
// rate.Limiter sized to admit exactly one event every d — the idiomatic
// way to gate a single retry attempt behind a computed delay rather than a
// bare time.After, and reusable if a caller wants to share one limiter
// across several backing-off drains. d<=0 returns immediately.
func waitBackoff(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	limiter := rate.NewLimiter(rate.Every(d), 1)
	// Consume the initial burst token so Wait actually blocks for ~d.
	limiter.Allow()
	return limiter.Wait(ctx)
}

// Drain repeatedly dequeues and processes actions with process, gated on
// pmAlive reporting PM liveness. When PM is unavailable, consecutive
// failures accumulate exponential backoff before the next attempt. Drain
// returns when ctx is cancelled.
func Drain(ctx context.Context, q *Queue, pmAlive func() bool, process func(Action) error, cfg DrainConfig) error {
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !pmAlive() {
			failures++
			if err := waitBackoff(ctx, backoffFor(cfg, failures)); err != nil {
				return err
			}
			continue
		}
		failures = 0

		action, ok, err := q.Dequeue()
		if err != nil {
			return err
		}
		if !ok {
			if err := waitBackoff(ctx, cfg.InitialBackoff); err != nil {
				return err
			}
			continue
		}

		if err := process(action); err != nil {
			q.Fail(action.ID, err.Error())
			continue
		}
		q.Complete(action.ID, "ok")
	}
}
