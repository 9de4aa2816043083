package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/llm"
)

func fastConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestExecute_RetriesTransientFailure(t *testing.T) {
	exec := NewExecutor(fastConfig(), nil)

	attempts := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return common.NewTransientError(common.StageExtraction, "flaky", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExecute_DoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(fastConfig(), nil)

	attempts := 0
	permanent := common.NewAppError(common.StageExtraction, "bad request", nil)
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestExecute_ExhaustsAttemptBudget(t *testing.T) {
	exec := NewExecutor(fastConfig(), nil)

	attempts := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return common.NewTransientError(common.StageVLM, "still down", nil)
	})

	require.Error(t, err)
	assert.True(t, common.IsTransient(err))
	assert.Equal(t, 3, attempts)
}

func TestExecute_ContextCancelStopsRetries(t *testing.T) {
	exec := NewExecutor(fastConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := exec.Execute(ctx, "op", func(context.Context) error {
		attempts++
		cancel()
		return common.NewTransientError(common.StageVLM, "flaky", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestExecute_OpensCircuitAfterTransientFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}, nil)

	flaky := common.NewTransientError(common.StageExtraction, "down", nil)
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return flaky
		})
		require.ErrorIs(t, err, flaky)
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatal("open circuit must not invoke the operation")
		return nil
	})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, IsCircuitOpen(err))
}

func TestExecute_PermanentFailuresDoNotOpenCircuit(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}, nil)

	permanent := common.NewAppError(common.StageExtraction, "schema rejected", nil)
	for i := 0; i < 5; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return permanent
		})
		require.ErrorIs(t, err, permanent)
	}

	// Circuit stayed closed: the operation still runs.
	called := false
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

type scriptedLLM struct {
	failures int
	calls    int
}

func (s *scriptedLLM) ChatJSON(_ context.Context, _ llm.ChatRequest) (llm.ChatResult, error) {
	s.calls++
	if s.calls <= s.failures {
		return llm.ChatResult{}, common.NewTransientError(common.StageExtraction, "rate limited", nil)
	}
	return llm.ChatResult{Content: `{"ok":true}`, Usage: llm.Usage{TotalTokens: 7}}, nil
}

func (s *scriptedLLM) ChatVision(_ context.Context, _ string, _ []byte) (llm.ChatResult, error) {
	s.calls++
	return llm.ChatResult{Content: "чистый текст"}, nil
}

func (s *scriptedLLM) Embeddings(_ context.Context, inputs []string) ([][]float32, llm.Usage, error) {
	s.calls++
	vectors := make([][]float32, len(inputs))
	for i := range vectors {
		vectors[i] = []float32{1, 0}
	}
	return vectors, llm.Usage{TotalTokens: len(inputs)}, nil
}

func TestGuardLLM_RetriesUnderTheHood(t *testing.T) {
	inner := &scriptedLLM{failures: 2}
	guarded := GuardLLM(inner, NewExecutor(fastConfig(), nil))

	res, err := guarded.ChatJSON(context.Background(), llm.ChatRequest{User: "текст"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, res.Content)
	assert.Equal(t, 7, res.Usage.TotalTokens)
	assert.Equal(t, 3, inner.calls)
}

func TestGuardLLM_PassesThroughResults(t *testing.T) {
	inner := &scriptedLLM{}
	guarded := GuardLLM(inner, NewExecutor(fastConfig(), nil))

	vectors, usage, err := guarded.Embeddings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, 2, usage.TotalTokens)

	vision, err := guarded.ChatVision(context.Background(), "prompt", []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "чистый текст", vision.Content)
}

func TestIsCircuitOpen_PlainError(t *testing.T) {
	assert.False(t, IsCircuitOpen(errors.New("boom")))
}
