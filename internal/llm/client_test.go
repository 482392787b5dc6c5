package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vporoshin/evisearch/internal/model"
)

// fakeBackend implements Backend with scripted behavior
type fakeBackend struct {
	name     string
	response string
	err      error
	delay    time.Duration
	calls    int32
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Complete(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeBackend) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func testConfig() model.LLMConfig {
	return model.LLMConfig{
		RequestsPerSecond: 100,
		TimeoutSeconds:    5,
		MaxRetries:        3,
		RetryBaseMs:       1,
		BreakerThreshold:  5,
	}
}

func TestClient_Complete(t *testing.T) {
	b := &fakeBackend{name: "fake", response: "hello"}
	c := NewClient([]Backend{b}, testConfig(), nil)
	defer c.Close()

	out, err := c.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Errorf("expected 'hello', got %q", out)
	}
}

func TestClient_RateLimit(t *testing.T) {
	// 10 rps, burst 1: 5 tasks from concurrent callers cannot all
	// dispatch before (5-1)/10 seconds have passed.
	cfg := testConfig()
	cfg.RequestsPerSecond = 10

	b := &fakeBackend{name: "fake", response: "ok"}
	c := NewClient([]Backend{b}, cfg, nil)
	defer c.Close()

	const tasks = 5
	start := time.Now()

	var wg sync.WaitGroup
	errs := make([]error, tasks)
	for i := 0; i < tasks; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Complete(context.Background(), "p")
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	for i, err := range errs {
		if err != nil {
			t.Fatalf("task %d failed: %v", i, err)
		}
	}
	if minimum := 300 * time.Millisecond; elapsed < minimum {
		t.Errorf("5 tasks at 10 rps finished in %v, expected at least %v", elapsed, minimum)
	}
}

func TestClient_SlotRotation(t *testing.T) {
	// Slot 1 always fails with the overloaded class. After its failure
	// count exceeds slot 2's, every dispatch selects slot 2.
	bad := &fakeBackend{name: "bad", err: fmt.Errorf("%w: always", ErrOverloaded)}
	good := &fakeBackend{name: "good", response: "ok"}
	c := NewClient([]Backend{bad, good}, testConfig(), nil)
	defer c.Close()

	const calls = 10
	for i := 0; i < calls; i++ {
		_ = c.Execute(context.Background(), time.Second, func(ctx context.Context, b Backend) error {
			_, err := b.Complete(ctx, "p")
			return err
		})
	}

	if bad.callCount() != 1 {
		t.Errorf("expected degraded slot to be tried once, got %d calls", bad.callCount())
	}
	if good.callCount() != calls-1 {
		t.Errorf("expected healthy slot to take %d calls, got %d", calls-1, good.callCount())
	}
}

func TestClient_TimeoutIncludesQueueWait(t *testing.T) {
	b := &fakeBackend{name: "slow", response: "ok", delay: 500 * time.Millisecond}
	c := NewClient([]Backend{b}, testConfig(), nil)
	defer c.Close()

	err := c.Execute(context.Background(), 50*time.Millisecond, func(ctx context.Context, b Backend) error {
		_, err := b.Complete(ctx, "p")
		return err
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestClient_RetryExhaustion(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2

	b := &fakeBackend{name: "bad", err: fmt.Errorf("%w: always", ErrOverloaded)}
	c := NewClient([]Backend{b}, cfg, nil)
	defer c.Close()

	err := c.ExecuteWithRetry(context.Background(), time.Second, func(ctx context.Context, b Backend) error {
		_, err := b.Complete(ctx, "p")
		return err
	})
	if !errors.Is(err, ErrAllSlotsExhausted) {
		t.Errorf("expected ErrAllSlotsExhausted, got %v", err)
	}
	if b.callCount() != 2 {
		t.Errorf("expected 2 attempts, got %d", b.callCount())
	}
}

func TestClient_NonRetryableFailsFast(t *testing.T) {
	b := &fakeBackend{name: "bad", err: fmt.Errorf("%w: invalid request", ErrProvider)}
	c := NewClient([]Backend{b}, testConfig(), nil)
	defer c.Close()

	err := c.ExecuteWithRetry(context.Background(), time.Second, func(ctx context.Context, b Backend) error {
		_, err := b.Complete(ctx, "p")
		return err
	})
	if !errors.Is(err, ErrProvider) {
		t.Errorf("expected ErrProvider, got %v", err)
	}
	if b.callCount() != 1 {
		t.Errorf("expected a single attempt, got %d", b.callCount())
	}
}

func TestClient_BreakerOpensAndCloses(t *testing.T) {
	cfg := testConfig()
	cfg.BreakerThreshold = 3

	b := &fakeBackend{name: "flaky", err: fmt.Errorf("%w: down", ErrOverloaded)}
	c := NewClient([]Backend{b}, cfg, nil)
	defer c.Close()

	task := func(ctx context.Context, b Backend) error {
		_, err := b.Complete(ctx, "p")
		return err
	}

	for i := 0; i < 3; i++ {
		_ = c.Execute(context.Background(), time.Second, task)
	}
	if c.Breaker().State() != BreakerOpen {
		t.Fatalf("expected breaker open after 3 consecutive failures")
	}
	if c.Breaker().Allow() {
		t.Errorf("open breaker must not allow optional work")
	}

	b.err = nil
	b.response = "recovered"
	if err := c.Execute(context.Background(), time.Second, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Breaker().State() != BreakerClosed {
		t.Errorf("expected breaker closed after one success")
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{408, ErrOverloaded},
		{429, ErrOverloaded},
		{500, ErrOverloaded},
		{503, ErrOverloaded},
		{400, ErrProvider},
		{401, ErrProvider},
		{404, ErrProvider},
	}
	for _, tc := range cases {
		got := classifyStatus(tc.status, errors.New("cause"))
		if !errors.Is(got, tc.want) {
			t.Errorf("status %d: expected %v class, got %v", tc.status, tc.want, got)
		}
	}
}
