package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})
	if rl.config.Rate != 100 || rl.config.Burst != 10 || rl.config.MaxWait != time.Second {
		t.Errorf("defaults = %+v", rl.config)
	}
	if got := rl.Tokens(); got != 10 {
		t.Errorf("Tokens() = %v, want full burst", got)
	}
}

func TestRateLimiter_AllowUpToBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 3})

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("Allow() #%d = false within burst", i+1)
		}
	}
	if rl.Allow() {
		t.Error("Allow() = true after burst exhausted")
	}
}

func TestRateLimiter_AllowN(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 5})

	if !rl.AllowN(3) {
		t.Fatal("AllowN(3) = false")
	}
	if rl.AllowN(3) {
		t.Error("AllowN(3) = true with 2 tokens left")
	}
	if !rl.AllowN(2) {
		t.Error("AllowN(2) = false with 2 tokens left")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 100, Burst: 1})

	if !rl.Allow() {
		t.Fatal("first Allow() = false")
	}
	time.Sleep(25 * time.Millisecond)
	if !rl.Allow() {
		t.Error("Allow() = false after refill interval")
	}
}

func TestRateLimiter_Wait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 50, Burst: 1, MaxWait: time.Second})
	rl.Allow()

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Wait() returned after %v, expected to block for a refill", elapsed)
	}
}

func TestRateLimiter_WaitExceedsMaxWait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.1, Burst: 1, MaxWait: 10 * time.Millisecond})
	rl.Allow()

	if err := rl.Wait(context.Background()); !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("Wait() error = %v, want ErrRateLimitExceeded", err)
	}
}

func TestRateLimiter_WaitCanceled(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1})
	rl.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestRateLimiter_Execute(t *testing.T) {
	tests := []struct {
		name        string
		waitOnLimit bool
		wantErr     error
	}{
		{"reject", false, ErrRateLimitExceeded},
		{"wait then reject", true, ErrRateLimitExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(RateLimiterConfig{
				Rate:        0.01,
				Burst:       1,
				WaitOnLimit: tt.waitOnLimit,
				MaxWait:     5 * time.Millisecond,
			})

			var calls int
			op := func(context.Context) error { calls++; return nil }

			if err := rl.Execute(context.Background(), op); err != nil {
				t.Fatalf("first Execute() error = %v", err)
			}
			if err := rl.Execute(context.Background(), op); !errors.Is(err, tt.wantErr) {
				t.Fatalf("second Execute() error = %v, want %v", err, tt.wantErr)
			}
			if calls != 1 {
				t.Errorf("op called %d times, want 1", calls)
			}
		})
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 4})
	rl.AllowN(4)
	if rl.Tokens() >= 1 {
		t.Fatalf("Tokens() = %v after draining", rl.Tokens())
	}

	rl.Reset()
	if got := rl.Tokens(); got != 4 {
		t.Errorf("Tokens() after Reset = %v, want 4", got)
	}
}

func TestRateLimiter_ConcurrentAdmissionNeverExceedsBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 20})

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow() {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 20 {
		t.Errorf("admitted = %d, want 20", got)
	}
}
