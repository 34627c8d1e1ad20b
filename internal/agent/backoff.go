package agent

import (
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffKind names a backoff strategy.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffLinear      BackoffKind = "linear"
	BackoffExponential BackoffKind = "exponential"
)

// BackoffPolicy hands out a fresh delay sequence for each execution. The
// caller owns the retry loop and asks the sequence for the next delay.
type BackoffPolicy interface {
	NewBackOff() backoff.BackOff
}

// Backoff is a configurable fixed, linear or exponential policy with a cap.
// Zero values are treated as "use defaults". Delays carry no jitter.
type Backoff struct {
	Kind BackoffKind
	// Initial is the first delay.
	Initial time.Duration
	// Max caps every delay. Zero means no cap.
	Max time.Duration
	// Multiplier is the exponential growth factor (default 2).
	Multiplier float64
}

// DefaultBackoff returns the policy used when none is configured.
func DefaultBackoff() Backoff {
	return Backoff{
		Kind:       BackoffExponential,
		Initial:    200 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
	}
}

// NewBackoff builds a policy from config values.
func NewBackoff(kind string, initial, max time.Duration, multiplier float64) (Backoff, error) {
	b := Backoff{Kind: BackoffKind(kind), Initial: initial, Max: max, Multiplier: multiplier}
	switch b.Kind {
	case BackoffFixed, BackoffLinear, BackoffExponential:
	case "":
		b.Kind = BackoffExponential
	default:
		return Backoff{}, fmt.Errorf("unknown backoff kind %q", kind)
	}
	if b.Initial < 0 || b.Max < 0 {
		return Backoff{}, fmt.Errorf("backoff durations must not be negative")
	}
	return b, nil
}

// NewBackOff implements BackoffPolicy.
func (b Backoff) NewBackOff() backoff.BackOff {
	initial := b.Initial
	if initial < 0 {
		initial = 0
	}
	max := b.Max
	if max <= 0 {
		max = time.Duration(math.MaxInt64)
	}
	if initial > max {
		initial = max
	}

	var bo backoff.BackOff
	switch b.Kind {
	case BackoffFixed:
		bo = backoff.NewConstantBackOff(initial)
	case BackoffLinear:
		bo = &linearBackOff{step: initial, max: max}
	default:
		m := b.Multiplier
		if m <= 1 {
			m = 2
		}
		bo = &backoff.ExponentialBackOff{
			InitialInterval:     initial,
			RandomizationFactor: 0,
			Multiplier:          m,
			MaxInterval:         max,
		}
	}
	bo.Reset()
	return bo
}

// Delay returns the delay before retry number n (1-indexed) by walking a
// fresh sequence.
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	bo := b.NewBackOff()
	var d time.Duration
	for i := 0; i < retry; i++ {
		d = bo.NextBackOff()
	}
	return d
}

// linearBackOff grows by a fixed step per retry up to max.
type linearBackOff struct {
	step, max time.Duration
	n         int64
}

func (l *linearBackOff) Reset() { l.n = 0 }

func (l *linearBackOff) NextBackOff() time.Duration {
	l.n++
	if l.step > 0 && l.n > int64(l.max/l.step) {
		return l.max
	}
	return l.step * time.Duration(l.n)
}

// NoBackoff retries immediately. Useful in tests.
type NoBackoff struct{}

// NewBackOff implements BackoffPolicy.
func (NoBackoff) NewBackOff() backoff.BackOff { return &backoff.ZeroBackOff{} }
