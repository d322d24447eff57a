package worker

import (
	"math"
	"math/rand"
	"time"
)

//nolint:gosec
var randFloat = rand.New(rand.NewSource(time.Now().UnixNano())).Float64

// BackoffStrategy tells how long to wait before the given attempt.
type BackoffStrategy interface {
	Backoff(attempt int) time.Duration
}

type BackoffFunc func(attempt int) time.Duration

func (f BackoffFunc) Backoff(attempt int) time.Duration { return f(attempt) }

type ConstBackoff struct {
	Delay time.Duration
}

func (c ConstBackoff) Backoff(int) time.Duration { return c.Delay }

// ExponentialBackoff waits InitialDelay * Multiplier^(attempt-1), capped at
// MaxDelay, plus up to Jitter of that duration at random.
type ExponentialBackoff struct {
	Multiplier   float64
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       float64
}

func (b *ExponentialBackoff) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt-1)))
	if b.MaxDelay > 0 && d > b.MaxDelay {
		d = b.MaxDelay
	}
	if b.Jitter > 0 {
		d += time.Duration(randFloat() * b.Jitter * float64(d))
	}
	return d
}

var DefaultExponentialBackoff = &ExponentialBackoff{
	Multiplier:   2,
	InitialDelay: 30 * time.Second,
	MaxDelay:     15 * time.Minute,
	Jitter:       0.2,
}
