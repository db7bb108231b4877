// Package resilience holds the failure handling shared by the upstream
// fetcher and the store bootstrap: per-host circuit breakers, retry with
// backoff and transient error classification.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the position of a circuit breaker.
type State int

const (
	// Closed passes calls through.
	Closed State = iota
	// Open rejects calls until the cooldown elapses.
	Open
	// HalfOpen lets probe calls through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling through while a breaker is open.
var ErrOpen = errors.New("resilience: circuit open")

// BreakerConfig tunes a breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive tripping failures that opens
	// the circuit.
	Threshold int
	// Cooldown is how long an open circuit rejects calls.
	Cooldown time.Duration
	// Probes is the number of successes in half-open that close it again.
	Probes int
	// Trips decides whether an error counts as a failure. Defaults to
	// TripsOn.
	Trips func(error) bool
}

// DefaultBreakerConfig opens after five transient failures for 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 5, Cooldown: 30 * time.Second, Probes: 1}
}

// TripsOn counts transient failures. Cancellation is the caller's doing and
// never trips.
func TripsOn(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return IsTransient(err)
}

// Breaker guards calls to one upstream host.
type Breaker struct {
	name string
	cfg  BreakerConfig
	log  *zap.Logger
	now  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
}

// NewBreaker creates a closed breaker. name appears in transition logs.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.Probes <= 0 {
		cfg.Probes = def.Probes
	}
	if cfg.Trips == nil {
		cfg.Trips = TripsOn
	}
	return &Breaker{
		name: name,
		cfg:  cfg,
		log:  zap.L().With(zap.String("component", "breaker"), zap.String("target", name)),
		now:  time.Now,
	}
}

// Call runs fn unless b is open.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	b.record(err)
	return v, err
}

// State reports the breaker position, showing an open breaker whose
// cooldown has elapsed as half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Open {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
		return ErrOpen
	}
	b.moveTo(HalfOpen)
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !b.cfg.Trips(err) {
		b.failures = 0
		if b.state == HalfOpen {
			b.probes++
			if b.probes >= b.cfg.Probes {
				b.moveTo(Closed)
			}
		}
		return
	}

	b.failures++
	if b.state == HalfOpen || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		b.moveTo(Open)
	}
}

// moveTo must be called with mu held.
func (b *Breaker) moveTo(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.probes = 0
	if to == Open {
		b.log.Warn("circuit opened",
			zap.Stringer("from", from),
			zap.Int("failures", b.failures),
			zap.Duration("cooldown", b.cfg.Cooldown),
		)
		return
	}
	b.log.Info("circuit state changed", zap.Stringer("from", from), zap.Stringer("to", to))
}

// Breakers is a lazily filled set of breakers keyed by host.
type Breakers struct {
	cfg BreakerConfig

	mu sync.Mutex
	m  map[string]*Breaker
}

// NewBreakers creates an empty set sharing cfg.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, m: make(map[string]*Breaker)}
}

// For returns the breaker for key, creating it on first use.
func (bs *Breakers) For(key string) *Breaker {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	b, ok := bs.m[key]
	if !ok {
		b = NewBreaker(key, bs.cfg)
		bs.m[key] = b
	}
	return b
}

// States snapshots every known breaker.
func (bs *Breakers) States() map[string]State {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	out := make(map[string]State, len(bs.m))
	for k, b := range bs.m {
		out[k] = b.State()
	}
	return out
}
