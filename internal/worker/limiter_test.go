package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "https://www.snopes.com/search/?q=x"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// Different host should also work
	if err := limiter.Wait(ctx, "https://www.politifact.com/search/?q=x"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_Jitter(t *testing.T) {
	limiter := NewLimiter(100, 1).WithJitter(20*time.Millisecond, 40*time.Millisecond)
	limiter.jitter = func(n int64) int64 { return n - 1 }

	if d := limiter.nextDelay(); d != 40*time.Millisecond {
		t.Errorf("expected max delay 40ms, got %v", d)
	}

	limiter.jitter = func(n int64) int64 { return 0 }
	start := time.Now()
	if err := limiter.Wait(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("expected delay >= 20ms, got %v", elapsed)
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(100, 1).WithJitter(time.Second, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx, "https://example.com"); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()
	url := "http://example.com"

	if err := limiter.Wait(ctx, url); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Burst of 1 is used up
	if limiter.Allow(url) {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	if !limiter.Allow("http://other.com") {
		t.Errorf("expected allow for other host")
	}
}

func TestLimiter_SetCrawlDelay(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetCrawlDelay("https://Slow.example/page", 10*time.Second)

	if !limiter.Allow("https://slow.example/other") {
		t.Errorf("first request should pass")
	}
	if limiter.Allow("https://slow.example/other") {
		t.Errorf("second request should fail")
	}
	if !limiter.Allow("https://fast.example") {
		t.Errorf("other host should pass")
	}
}

func TestExtractHost(t *testing.T) {
	host, err := extractHost("http://Example.com/foo")
	if err != nil {
		t.Fatalf("extractHost failed: %v", err)
	}
	if host != "example.com" {
		t.Errorf("expected example.com, got %s", host)
	}

	if _, err := extractHost("::invalid"); err == nil {
		t.Errorf("expected error for invalid URL")
	}
}
