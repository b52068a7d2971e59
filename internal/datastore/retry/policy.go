package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// DefaultMaxAttempts bounds every retry loop unless configured otherwise.
const DefaultMaxAttempts = 3

const unclassifiedDelay = 5 * time.Second

// Action tells the executor what to do after a failed attempt.
type Action int

const (
	ActionRetry Action = iota
	ActionSkip
	ActionAbort
	ActionExhausted
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionSkip:
		return "skip"
	case ActionAbort:
		return "abort"
	default:
		return "exhausted"
	}
}

// Decision is the outcome of Policy.Decide.
type Decision struct {
	Action Action
	Delay  time.Duration
}

// RandSource yields uniform values in [0, 1).
type RandSource interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Policy decides retry behaviour from a classification and a 1-based attempt number.
type Policy struct {
	MaxAttempts int
	Rand        RandSource
}

// NewPolicy returns a policy with the given cap; values below 1 use DefaultMaxAttempts.
func NewPolicy(maxAttempts int, rnd RandSource) Policy {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if rnd == nil {
		rnd = globalRand{}
	}
	return Policy{MaxAttempts: maxAttempts, Rand: rnd}
}

// Decide returns the action for a failed attempt. It never sleeps.
func (p Policy) Decide(class Class, attempt int) Decision {
	switch class {
	case ClassNone:
		return Decision{Action: ActionAbort}
	case ClassUniqueViolation:
		return Decision{Action: ActionSkip}
	case ClassNotStore:
		return Decision{Action: ActionAbort}
	}

	if attempt >= p.maxAttempts() {
		return Decision{Action: ActionExhausted}
	}
	return Decision{Action: ActionRetry, Delay: p.Delay(class, attempt)}
}

// Delay computes the backoff for a retryable class:
// transient 0.12+U*0.25s, serialization 2^attempt*0.1*(U+0.5)s, otherwise 5s.
func (p Policy) Delay(class Class, attempt int) time.Duration {
	switch class {
	case ClassTransientNodeFailure:
		return seconds(0.12 + p.uniform()*0.25)
	case ClassSerializationConflict:
		if attempt < 1 {
			attempt = 1
		}
		return seconds(math.Pow(2, float64(attempt)) * 0.1 * (p.uniform() + 0.5))
	case ClassUnclassifiedStore:
		return unclassifiedDelay
	default:
		return 0
	}
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p Policy) uniform() float64 {
	if p.Rand == nil {
		return rand.Float64()
	}
	return p.Rand.Float64()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default context-aware Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
