package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var errUpstream = Transient(errors.New("http 503 from opendart.fss.or.kr/api/list.json"), 503)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker("opendart.fss.or.kr", BreakerConfig{Threshold: threshold, Cooldown: time.Minute})
	b.now = clock.now
	return b, clock
}

func fail(context.Context) (int, error) { return 0, errUpstream }
func ok(context.Context) (int, error) { return 1, nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3)
	ctx := context.Background()

	for range 3 {
		_, err := Call(ctx, b, fail)
		require.ErrorIs(t, err, errUpstream)
	}
	assert.Equal(t, Open, b.State())

	called := false
	_, err := Call(ctx, b, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(2)
	ctx := context.Background()

	_, _ = Call(ctx, b, fail)
	_, _ = Call(ctx, b, ok)
	_, _ = Call(ctx, b, fail)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(1)
	ctx := context.Background()

	_, _ = Call(ctx, b, fail)
	require.Equal(t, Open, b.State())

	clock.advance(time.Minute)
	assert.Equal(t, HalfOpen, b.State())

	v, err := Call(ctx, b, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(3)
	ctx := context.Background()

	for range 3 {
		_, _ = Call(ctx, b, fail)
	}
	clock.advance(2 * time.Minute)

	_, err := Call(ctx, b, fail)
	require.ErrorIs(t, err, errUpstream)
	assert.Equal(t, Open, b.State())

	_, err = Call(ctx, b, ok)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreaker_IgnoresPermanentAndCancelled(t *testing.T) {
	b, _ := newTestBreaker(1)
	ctx := context.Background()

	_, _ = Call(ctx, b, func(context.Context) (int, error) { return 0, errors.New("unexpected status 404") })
	_, _ = Call(ctx, b, func(context.Context) (int, error) { return 0, context.Canceled })
	_, _ = Call(ctx, b, func(context.Context) (int, error) { return 0, context.DeadlineExceeded })
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_CustomTrips(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{Threshold: 1, Trips: func(error) bool { return true }})
	_, _ = Call(context.Background(), b, func(context.Context) (int, error) { return 0, errors.New("any") })
	assert.Equal(t, Open, b.State())
}

func TestBreakers_PerKey(t *testing.T) {
	bs := NewBreakers(BreakerConfig{Threshold: 1, Cooldown: time.Hour})
	ctx := context.Background()

	assert.Same(t, bs.For("www.sec.gov"), bs.For("www.sec.gov"))

	_, _ = Call(ctx, bs.For("opendart.fss.or.kr"), fail)
	_, err := Call(ctx, bs.For("www.sec.gov"), ok)
	require.NoError(t, err)

	assert.Equal(t, map[string]State{
		"opendart.fss.or.kr": Open,
		"www.sec.gov":        Closed,
	}, bs.States())
}

func TestBreakers_Concurrent(t *testing.T) {
	bs := NewBreakers(DefaultBreakerConfig())
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := bs.For("www.sec.gov")
			if i%2 == 0 {
				_, _ = Call(context.Background(), b, ok)
			} else {
				_, _ = Call(context.Background(), b, fail)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, bs.States(), 1)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half-open", HalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
