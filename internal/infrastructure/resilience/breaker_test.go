package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/apmtrace/internal/infrastructure/clock"
)

var errBoom = errors.New("boom")

func run(b *Breaker, success bool) error {
	return b.Do(context.Background(), func(context.Context) error {
		if success {
			return nil
		}
		return errBoom
	})
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		calls    []bool
		want     State
	}{
		{
			name:     "stays closed on successes",
			settings: Settings{},
			calls:    []bool{true, true, true},
			want:     StateClosed,
		},
		{
			name: "opens after consecutive failures",
			settings: Settings{
				Trip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
			},
			calls: []bool{false, false, false},
			want:  StateOpen,
		},
		{
			name: "success resets the streak",
			settings: Settings{
				Trip: func(c Counts) bool { return c.ConsecutiveFailures >= 2 },
			},
			calls: []bool{false, true, false},
			want:  StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("test", tt.settings)
			for _, ok := range tt.calls {
				_ = run(b, ok)
			}
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreakerOpenRejectsAndRecovers(t *testing.T) {
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	var transitions []string
	b := New("explain", Settings{
		Probes:   2,
		Cooldown: 30 * time.Second,
		Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		Clock:    clk,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	require.ErrorIs(t, run(b, false), errBoom)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
	assert.ErrorIs(t, run(b, true), ErrCircuitOpen)

	clk.Advance(30 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())
	assert.True(t, b.Allow())

	require.NoError(t, run(b, true))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, run(b, true))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	b := New("explain", Settings{
		Cooldown: time.Second,
		Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		Clock:    clk,
	})

	_ = run(b, false)
	clk.Advance(time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	_ = run(b, false)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	b := New("explain", Settings{
		Cooldown: time.Second,
		Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		Clock:    clk,
	})
	_ = run(b, false)
	clk.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, run(b, true), ErrTooManyRequests)
	close(release)
}

func TestBreakerCountsAndInterval(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	b := New("test", Settings{Interval: time.Minute, Clock: clk})

	_ = run(b, true)
	_ = run(b, false)
	_ = run(b, true)

	c := b.Counts()
	assert.Equal(t, uint32(3), c.Calls)
	assert.Equal(t, uint32(2), c.Successes)
	assert.Equal(t, uint32(1), c.Failures)
	assert.Equal(t, uint32(1), c.ConsecutiveSuccesses)

	clk.Advance(time.Minute)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, Counts{}, b.Counts())
}

func TestBreakerRecoversPanics(t *testing.T) {
	b := New("test", Settings{Trip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 }})

	var err error
	assert.NotPanics(t, func() {
		err = b.Do(context.Background(), func(context.Context) error { panic("driver bug") })
	})
	assert.ErrorIs(t, err, ErrPanicked)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHonorsCanceledContext(t *testing.T) {
	b := New("test", Settings{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCall(t *testing.T) {
	b := New("test", Settings{})

	v, err := Call(context.Background(), b, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Call(context.Background(), b, func(context.Context) (int, error) { return 7, errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, v)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
