package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hupe1980/promptmesh/logging"
)

func newTestController() *Controller {
	return New(func(o *Options) { o.Backoff = 0 })
}

func TestInvoke_FirstAttemptSucceeds(t *testing.T) {
	c := newTestController()

	text, depth, err := c.Invoke(context.Background(), 5, func(_ context.Context, d int) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 5, depth)
	assert.Zero(t, c.Failures())
}

func TestInvoke_ShrinksDepthPerFailure(t *testing.T) {
	c := newTestController()

	var depths []int
	text, depth, err := c.Invoke(context.Background(), 2, func(_ context.Context, d int) (string, error) {
		depths = append(depths, d)
		if len(depths) < 4 {
			return "", errors.New("rate limited")
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", text)
	assert.Equal(t, []int{2, 1, 0, 0}, depths, "depth floors at zero")
	assert.Equal(t, 0, depth)
	assert.Equal(t, 3, c.Failures())
}

func TestInvoke_ExactlyFiveFailures(t *testing.T) {
	c := newTestController()

	calls := 0
	_, _, err := c.Invoke(context.Background(), 5, func(context.Context, int) (string, error) {
		calls++
		return "", errors.New("down")
	})
	require.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, 5, calls, "no sixth attempt")
	assert.Equal(t, 5, c.Failures())
}

func TestInvoke_LogsRemainingFailures(t *testing.T) {
	obs, logs := observer.New(zapcore.WarnLevel)
	c := New(func(o *Options) {
		o.Backoff = 0
		o.MaxFailures = 3
		o.Logger = logging.NewZapAdapter(zap.New(obs))
	})

	_, _, err := c.Invoke(context.Background(), 1, func(context.Context, int) (string, error) {
		return "", errors.New("down")
	})
	require.ErrorIs(t, err, ErrNoResult)

	entries := logs.FilterMessage("provider.call.failed").All()
	require.Len(t, entries, 3)

	var remaining []int64
	for _, e := range entries {
		remaining = append(remaining, e.ContextMap()["remaining"].(int64))
	}
	assert.Equal(t, []int64{2, 1, 0}, remaining)
}

func TestInvoke_CounterSurvivesSuccess(t *testing.T) {
	c := newTestController()

	fails := 3
	_, _, err := c.Invoke(context.Background(), 5, func(context.Context, int) (string, error) {
		if fails > 0 {
			fails--
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	require.NoError(t, err)

	calls := 0
	_, _, err = c.Invoke(context.Background(), 5, func(context.Context, int) (string, error) {
		calls++
		return "", errors.New("down")
	})
	require.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, 2, calls, "budget is shared across invocations")

	c.Reset()
	text, _, err := c.Invoke(context.Background(), 1, func(context.Context, int) (string, error) { return "back", nil })
	require.NoError(t, err)
	assert.Equal(t, "back", text)
}

func TestInvoke_ContextCancelledDuringBackoff(t *testing.T) {
	c := New(func(o *Options) { o.Backoff = time.Hour })

	ctx, cancel := context.WithCancel(context.Background())
	_, _, err := c.Invoke(ctx, 1, func(context.Context, int) (string, error) {
		cancel()
		return "", errors.New("down")
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResult)
	assert.Equal(t, 1, c.Failures())
}
