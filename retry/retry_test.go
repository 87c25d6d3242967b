package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peregrine-app/authcore/identity"
	"github.com/peregrine-app/authcore/retry"
)

// recordingSleeper captures requested delays without actually sleeping.
type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func transientErr() error {
	return identity.New(identity.KindTransientNetwork, "test", "connection refused")
}

func TestRetriesTransientThenSucceeds(t *testing.T) {
	sleeper := &recordingSleeper{}
	policy := retry.New(retry.WithSleeper(sleeper.sleep))

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transientErr()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, sleeper.delays, 2)
	assert.GreaterOrEqual(t, sleeper.delays[0], 1000*time.Millisecond)
	assert.GreaterOrEqual(t, sleeper.delays[1], 2000*time.Millisecond)
}

func TestNonTransientFailsImmediately(t *testing.T) {
	sleeper := &recordingSleeper{}
	policy := retry.New(retry.WithSleeper(sleeper.sleep))

	rejected := identity.New(identity.KindCredentialRejected, "test", "invalid login credentials")
	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return rejected
	})

	require.ErrorIs(t, err, rejected)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestExhaustionReturnsTerminalError(t *testing.T) {
	sleeper := &recordingSleeper{}
	policy := retry.New(retry.WithSleeper(sleeper.sleep))

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return transientErr()
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDelayIsCapped(t *testing.T) {
	sleeper := &recordingSleeper{}
	policy := retry.New(
		retry.WithSleeper(sleeper.sleep),
		retry.WithMaxAttempts(5),
		retry.WithMaxDelay(3*time.Second),
	)

	_ = policy.Do(context.Background(), func(ctx context.Context) error {
		return transientErr()
	})

	require.Len(t, sleeper.delays, 4)
	for _, d := range sleeper.delays {
		assert.LessOrEqual(t, d, 3*time.Second)
	}
}

func TestCancelledContextStopsSleeping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := retry.New() // real sleeper; cancelled ctx returns immediately

	calls := 0
	start := time.Now()
	err := policy.Do(ctx, func(ctx context.Context) error {
		calls++
		return transientErr()
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestValueReturnsResult(t *testing.T) {
	sleeper := &recordingSleeper{}
	policy := retry.New(retry.WithSleeper(sleeper.sleep))

	calls := 0
	got, err := retry.Value(context.Background(), policy, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", transientErr()
		}
		return "result", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "result", got)
	assert.Equal(t, 2, calls)
}

func TestUnclassifiedErrorsAreNotRetried(t *testing.T) {
	sleeper := &recordingSleeper{}
	policy := retry.New(retry.WithSleeper(sleeper.sleep))

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("something odd happened")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
