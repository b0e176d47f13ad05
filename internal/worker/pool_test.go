package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type mockResult struct {
	err error
}

func (r *mockResult) GetError() error {
	return r.err
}

type mockJob struct {
	duration  time.Duration
	shouldErr bool
	executed  *int32
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{err: errors.New("job error")}
	}
	return &mockResult{err: nil}
}

func TestNewPool(t *testing.T) {
	if got := NewPool(5).workers; got != 5 {
		t.Errorf("expected 5 workers, got %d", got)
	}
	if got := NewPool(0).workers; got != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", got)
	}
	if got := NewPool(-1).workers; got != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", got)
	}
}

func TestPool_ExecutesAllJobs(t *testing.T) {
	pool := NewPool(3)
	pool.Start()

	var executed int32
	const jobs = 20
	for i := 0; i < jobs; i++ {
		pool.Submit(&mockJob{executed: &executed})
	}

	results := pool.Wait()
	if len(results) != jobs {
		t.Fatalf("expected %d results, got %d", jobs, len(results))
	}
	if got := atomic.LoadInt32(&executed); got != jobs {
		t.Errorf("expected %d executions, got %d", jobs, got)
	}
	for _, r := range results {
		if r.GetError() != nil {
			t.Errorf("unexpected job error: %v", r.GetError())
		}
	}
}

func TestPool_LargeBatchDoesNotBlock(t *testing.T) {
	// Far more jobs than queue capacity, submitted from one goroutine
	pool := NewPool(2)
	pool.Start()

	const jobs = 100
	done := make(chan struct{})
	go func() {
		for i := 0; i < jobs; i++ {
			pool.Submit(&mockJob{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("submission blocked")
	}

	if results := pool.Wait(); len(results) != jobs {
		t.Fatalf("expected %d results, got %d", jobs, len(results))
	}
}

func TestPool_CollectsErrors(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	pool.Submit(&mockJob{shouldErr: true})
	pool.Submit(&mockJob{})

	results := pool.Wait()
	failed := 0
	for _, r := range results {
		if r.GetError() != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failed job, got %d", failed)
	}
}

func TestPool_Shutdown(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	pool.Submit(&mockJob{duration: 5 * time.Second})
	pool.Submit(&mockJob{duration: 5 * time.Second})

	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	pool.Shutdown()

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("shutdown took too long: %v", elapsed)
	}
}

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !limiter.Allow("https://example.com/a") {
		t.Error("first request should be allowed")
	}
	if limiter.Allow("https://example.com/b") {
		t.Error("second request to the same domain should be limited")
	}
	if !limiter.Allow("https://other.org/a") {
		t.Error("request to a different domain should be allowed")
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	if err := limiter.Wait(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, "https://example.com"); err == nil {
		t.Error("expected wait to fail on context timeout")
	}
}
