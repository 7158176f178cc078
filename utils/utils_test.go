package utils

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Circuit Breaker Tests

func TestCircuitBreaker_NewCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("test")

	assert.Equal(t, "test", cb.Name())
	assert.Equal(t, uint32(100), cb.maxRequests)
	assert.Equal(t, 60*time.Second, cb.interval)
	assert.Equal(t, 60*time.Second, cb.timeout)
	assert.Equal(t, 0.6, cb.failureRatio)
	assert.Equal(t, StateClosed, cb.state)
}

func TestCircuitBreaker_Options(t *testing.T) {
	cb := NewCircuitBreaker("opts", WithMaxRequests(5), WithTimeout(time.Second), WithFailureRatio(0.5))

	assert.Equal(t, uint32(5), cb.maxRequests)
	assert.Equal(t, time.Second, cb.timeout)
	assert.Equal(t, 0.5, cb.failureRatio)

	ignored := NewCircuitBreaker("ignored", WithMaxRequests(0), WithTimeout(-1), WithFailureRatio(2))
	assert.Equal(t, uint32(100), ignored.maxRequests)
	assert.Equal(t, 60*time.Second, ignored.timeout)
	assert.Equal(t, 0.6, ignored.failureRatio)
}

func TestCircuitBreaker_ExecuteSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test")

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })

	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.counts.Requests)
	assert.Equal(t, uint32(1), cb.counts.TotalSuccesses)
	assert.Equal(t, uint32(0), cb.counts.TotalFailures)
}

func TestCircuitBreaker_ExecuteFailure(t *testing.T) {
	cb := NewCircuitBreaker("test")

	expectedError := errors.New("test error")
	err := cb.Execute(context.Background(), func(context.Context) error { return expectedError })

	assert.ErrorIs(t, err, expectedError)
	assert.Equal(t, uint32(1), cb.counts.Requests)
	assert.Equal(t, uint32(0), cb.counts.TotalSuccesses)
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestCircuitBreaker_StateTransition_ClosedToOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", WithMaxRequests(5), WithFailureRatio(0.6))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.NoError(t, cb.Execute(ctx, func(context.Context) error { return nil }))
	}
	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Execute(ctx, func(context.Context) error { return errors.New("failure") }))
	}

	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(ctx, func(context.Context) error {
		t.Fatal("This should not be executed when circuit is open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_OpenToHalfOpenToClosed(t *testing.T) {
	cb := NewCircuitBreaker("test", WithMaxRequests(2), WithTimeout(50*time.Millisecond))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func(context.Context) error { return errors.New("failure") })
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(ctx, func(context.Context) error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", WithMaxRequests(2), WithTimeout(50*time.Millisecond))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func(context.Context) error { return errors.New("failure") })
	}
	time.Sleep(80 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	assert.Error(t, cb.Execute(ctx, func(context.Context) error { return errors.New("failure") }))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker("concurrent-test", WithMaxRequests(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	numGoroutines := 100
	successCount := 0
	mu := sync.Mutex{}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			err := cb.Execute(ctx, func(context.Context) error {
				if id%10 == 0 {
					return errors.New("simulated failure")
				}
				return nil
			})

			if err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 90, successCount)
	assert.Equal(t, uint32(numGoroutines), cb.counts.Requests)
}

func TestCircuitBreaker_PanicRecovery(t *testing.T) {
	cb := NewCircuitBreaker("panic-test")
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = cb.Execute(ctx, func(context.Context) error {
			panic("test panic")
		})
	})

	assert.NoError(t, cb.Execute(ctx, func(context.Context) error { return nil }))
}

func TestCircuitBreaker_ReadyToTrip(t *testing.T) {
	cb := NewCircuitBreaker("trip-test")

	tests := []struct {
		name           string
		requests       uint32
		failures       uint32
		maxRequests    uint32
		failureRatio   float64
		expectedResult bool
	}{
		{"Not enough requests", 5, 5, 10, 0.5, false},
		{"High failure ratio", 10, 8, 10, 0.6, true},
		{"Low failure ratio", 10, 3, 10, 0.6, false},
		{"Exact failure ratio threshold", 10, 6, 10, 0.6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb.maxRequests = tt.maxRequests
			cb.failureRatio = tt.failureRatio
			cb.counts.Requests = tt.requests
			cb.counts.TotalFailures = tt.failures

			assert.Equal(t, tt.expectedResult, cb.readyToTrip())
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}

// Saturating arithmetic

func TestSaturatingArithmetic(t *testing.T) {
	assert.Equal(t, uint32(math.MaxUint32), SatAddU32(math.MaxUint32-1, 5))
	assert.Equal(t, uint32(7), SatAddU32(3, 4))
	assert.Equal(t, uint32(0), SatSubU32(3, 4))
	assert.Equal(t, uint32(1), SatSubU32(4, 3))
	assert.Equal(t, uint64(math.MaxUint64), SatAddU64(math.MaxUint64, 1))
	assert.Equal(t, uint64(0), SatSubU64(0, 1))
}

func TestCheckedArithmetic(t *testing.T) {
	sum, ok := CheckedAddU64(math.MaxUint64, 1)
	assert.False(t, ok)
	assert.Zero(t, sum)

	sum, ok = CheckedAddU64(40, 2)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), sum)

	_, ok = CheckedSubU64(1, 2)
	assert.False(t, ok)

	diff, ok := CheckedSubU64(10, 4)
	assert.True(t, ok)
	assert.Equal(t, uint64(6), diff)
}

// Random

func TestGenerateSalt(t *testing.T) {
	a, err := GenerateSalt(16)
	require.NoError(t, err)
	b, err := GenerateSalt(16)
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

// Redis Client Tests

func TestRedisOptions(t *testing.T) {
	plain := redisOptions("localhost:6379", "secret", 2, 0)
	assert.Equal(t, "localhost:6379", plain.Addr)
	assert.Equal(t, "secret", plain.Password)
	assert.Equal(t, 2, plain.DB)
	assert.Zero(t, plain.PoolSize)

	parsed := redisOptions("redis://:pw@cache:6380/3", "ignored", 0, 40)
	assert.Equal(t, "cache:6380", parsed.Addr)
	assert.Equal(t, "pw", parsed.Password)
	assert.Equal(t, 3, parsed.DB)
	assert.Equal(t, 40, parsed.PoolSize)
}

func TestRedisHealthCheck_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")

	err := RedisHealthCheck(db)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisHealthCheck_Failure(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetErr(errors.New("connection failed"))

	err := RedisHealthCheck(db)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
	assert.Contains(t, err.Error(), "connection failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func BenchmarkCircuitBreaker_Execute_Success(b *testing.B) {
	cb := NewCircuitBreaker("benchmark")
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, func(context.Context) error { return nil })
	}
}
