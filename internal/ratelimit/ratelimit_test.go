package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		key      string
		calls    int
		wantPass int
	}{
		{
			name:     "burst allows initial requests",
			rps:      1,
			burst:    3,
			key:      "user-1",
			calls:    3,
			wantPass: 3,
		},
		{
			name:     "exceeding burst blocks",
			rps:      1,
			burst:    2,
			key:      "user-1",
			calls:    5,
			wantPass: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)
			defer rl.Stop()

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if rl.Allow(tt.key) {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestKeyedRateLimiter_AllowN(t *testing.T) {
	rl := New(1, 5)
	defer rl.Stop()

	if !rl.AllowN("user-1", 3) {
		t.Error("batch of 3 should fit in burst of 5")
	}
	if rl.AllowN("user-1", 3) {
		t.Error("second batch of 3 should exceed remaining tokens")
	}
	if !rl.AllowN("user-1", 2) {
		t.Error("batch of 2 should consume the remaining tokens")
	}
}

func TestPerMinute(t *testing.T) {
	rl := PerMinute(30, 10)
	defer rl.Stop()

	// Burst of 10 is available immediately regardless of the sustained rate.
	passed := 0
	for i := 0; i < 15; i++ {
		if rl.Allow("user-1") {
			passed++
		}
	}
	if passed != 10 {
		t.Errorf("Allow() passed %d, want 10", passed)
	}
}

func TestKeyedRateLimiter_IndependentKeys(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	// Exhaust user-1
	rl.Allow("user-1")
	if rl.Allow("user-1") {
		t.Error("user-1 should be exhausted")
	}

	// user-2 should still work
	if !rl.Allow("user-2") {
		t.Error("user-2 should be independent and allowed")
	}
}

func TestKeyedRateLimiter_WaitContextCancelled(t *testing.T) {
	rl := New(0.1, 1) // Very slow: 1 request per 10 seconds
	defer rl.Stop()

	// Exhaust the burst
	rl.Allow("user-1")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx, "user-1")
	if err == nil {
		t.Error("Wait() should fail when context canceled")
	}
}
