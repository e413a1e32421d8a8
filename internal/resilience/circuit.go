// Package resilience provides the retry and circuit-breaker helpers
// used around calls to external services (OCR, LLM parsing, the task
// board, FTP). Store writes are deliberately not routed through these
// helpers.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the current mode of a Breaker.
type BreakerState uint8

const (
	// StateClosed lets calls through. Normal operation.
	StateClosed BreakerState = iota
	// StateOpen rejects calls immediately until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets probe calls through to test recovery.
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = eris.New("resilience: breaker open")

// BreakerOpts configures a Breaker. Zero fields get defaults: 5
// consecutive failures to open, 30s cooldown, 1 probe to close.
type BreakerOpts struct {
	// Threshold is the consecutive-failure count that opens the breaker.
	Threshold int
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// Probes is how many successful half-open calls close the breaker.
	Probes int

	// Trip decides whether an error counts against the threshold. Nil
	// means every non-nil error counts.
	Trip func(err error) bool

	// OnChange is invoked on every state transition.
	OnChange func(from, to BreakerState)
}

// Breaker is a circuit breaker for one downstream dependency. After
// Threshold consecutive failures it fails fast for Cooldown, then lets
// probes through until Probes of them succeed.
type Breaker struct {
	opts BreakerOpts

	mu       sync.Mutex
	state    BreakerState
	fails    int
	openedAt time.Time
	probeOK  int

	clock func() time.Time
}

// NewBreaker creates a Breaker, filling in defaults for zero opts.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.Threshold <= 0 {
		opts.Threshold = 5
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	if opts.Probes <= 0 {
		opts.Probes = 1
	}
	return &Breaker{opts: opts, clock: time.Now}
}

// Do runs fn through the breaker, returning ErrOpen without calling fn
// when the breaker is open.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.observe(err)
	return err
}

// Call is Do for functions that return a value.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.observe(err)
	return val, err
}

// State returns the effective state, accounting for an elapsed cooldown.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.clock().Sub(b.openedAt) >= b.opts.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.state
	b.state = StateClosed
	b.fails = 0
	b.probeOK = 0
	if prev != StateClosed && b.opts.OnChange != nil {
		b.opts.OnChange(prev, StateClosed)
	}
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.clock().Sub(b.openedAt) < b.opts.Cooldown {
			return ErrOpen
		}
		b.shift(StateHalfOpen)
	}
	return nil
}

func (b *Breaker) observe(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	counts := err != nil
	if counts && b.opts.Trip != nil {
		counts = b.opts.Trip(err)
	}

	if !counts {
		switch b.state {
		case StateHalfOpen:
			b.probeOK++
			if b.probeOK >= b.opts.Probes {
				b.shift(StateClosed)
				b.fails = 0
				b.probeOK = 0
			}
		case StateClosed:
			b.fails = 0
		}
		return
	}

	b.fails++
	b.openedAt = b.clock()

	switch b.state {
	case StateClosed:
		if b.fails >= b.opts.Threshold {
			b.shift(StateOpen)
		}
	case StateHalfOpen:
		// A failed probe reopens immediately.
		b.shift(StateOpen)
		b.probeOK = 0
	}
}

func (b *Breaker) shift(to BreakerState) {
	from := b.state
	b.state = to
	if b.opts.OnChange != nil {
		b.opts.OnChange(from, to)
	}
}
