package llm

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vporoshin/evisearch/internal/model"
)

// Task is one unit of work against the shared inference capability. The task
// captures its own outputs; the client only sees the error.
type Task func(ctx context.Context, b Backend) error

// slot is one credential/quota unit. Its failure counter self-heals:
// incremented on overloaded-class errors, decremented (floor 0) on success,
// so a degraded slot is avoided without being permanently blacklisted.
type slot struct {
	name     string
	backend  Backend
	failures int
	lastUsed time.Time
}

// Client is the only path to the quota-limited inference capability. Tasks
// from any number of concurrent callers enter a single FIFO queue drained by
// one dispatcher no faster than the configured rate; dispatch decisions are
// serialized, task execution is not.
type Client struct {
	queue   chan *pending
	limiter *rate.Limiter
	breaker *Breaker
	log     *zap.Logger

	mu    sync.Mutex
	slots []*slot

	timeout    time.Duration
	maxRetries int
	retryBase  time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

type pending struct {
	ctx  context.Context
	task Task
	done chan error
}

// FromConfig builds a client with one slot per configured API key
func FromConfig(cfg model.LLMConfig, log *zap.Logger) (*Client, error) {
	if len(cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("at least one API key (credential slot) is required")
	}

	backends := make([]Backend, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		b, err := NewBackend(cfg, key)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}

	return NewClient(backends, cfg, log), nil
}

// NewClient builds a client over pre-constructed backends, one slot each
func NewClient(backends []Backend, cfg model.LLMConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryBase := time.Duration(cfg.RetryBaseMs) * time.Millisecond
	if retryBase <= 0 {
		retryBase = 500 * time.Millisecond
	}

	slots := make([]*slot, len(backends))
	for i, b := range backends {
		slots[i] = &slot{
			name:    fmt.Sprintf("%s-%d", b.Name(), i),
			backend: b,
		}
	}

	c := &Client{
		queue:      make(chan *pending, 256),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		breaker:    NewBreaker(cfg.BreakerThreshold, log),
		log:        log,
		slots:      slots,
		timeout:    timeout,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		stop:       make(chan struct{}),
	}

	go c.dispatch()
	return c
}

// Close stops the dispatcher. Queued tasks fail with ErrTimeout as their
// contexts expire.
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Breaker exposes the client-wide circuit breaker so optional callers can
// check it before enqueueing work.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// Execute runs one task under the given timeout, queue wait included. It may
// be called concurrently from any number of callers.
func (c *Client) Execute(ctx context.Context, timeout time.Duration, task Task) error {
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := &pending{ctx: ctx, task: task, done: make(chan error, 1)}

	select {
	case c.queue <- p:
	case <-ctx.Done():
		return fmt.Errorf("%w: queue full before deadline", ErrTimeout)
	case <-c.stop:
		return fmt.Errorf("%w: client closed", ErrProvider)
	}

	select {
	case err := <-p.done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: task exceeded %s", ErrTimeout, timeout)
	}
}

// ExecuteWithRetry layers exponential backoff plus jitter above Execute,
// re-selecting a slot each attempt. It gives up after the retry budget or the
// caller's context, whichever comes first, surfacing ErrAllSlotsExhausted.
func (c *Client) ExecuteWithRetry(ctx context.Context, timeout time.Duration, task Task) error {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryBase << (attempt - 1)
			backoff += time.Duration(rand.Int63n(int64(c.retryBase)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: caller gave up during backoff: %v", ErrAllSlotsExhausted, lastErr)
			}
		}

		lastErr = c.Execute(ctx, timeout, task)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("%w: after %d attempts: %v", ErrAllSlotsExhausted, c.maxRetries, lastErr)
}

// Complete runs a completion through the retry wrapper
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := c.ExecuteWithRetry(ctx, c.timeout, func(ctx context.Context, b Backend) error {
		text, err := b.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

// Embed runs an embedding request through the retry wrapper
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := c.ExecuteWithRetry(ctx, c.timeout, func(ctx context.Context, b Backend) error {
		vectors, err := b.Embed(ctx, texts)
		if err != nil {
			return err
		}
		out = vectors
		return nil
	})
	return out, err
}

// dispatch is the single serialization point: it drains the FIFO queue no
// faster than one task per 1/rate interval and picks a slot per task.
// Execution itself runs concurrently.
func (c *Client) dispatch() {
	for {
		select {
		case <-c.stop:
			return
		case p := <-c.queue:
			if p.ctx.Err() != nil {
				p.done <- fmt.Errorf("%w: expired in queue", ErrTimeout)
				continue
			}
			if err := c.limiter.Wait(p.ctx); err != nil {
				p.done <- fmt.Errorf("%w: expired awaiting dispatch: %v", ErrTimeout, err)
				continue
			}
			s := c.pickSlot()
			go c.run(p, s)
		}
	}
}

func (c *Client) run(p *pending, s *slot) {
	err := p.task(p.ctx, s.backend)
	if err != nil && p.ctx.Err() != nil && !eris.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	c.record(s, err)
	p.done <- err
}

// pickSlot selects the slot with the fewest recent failures, breaking ties by
// least-recently-used, to spread load and avoid hammering a degraded slot.
func (c *Client) pickSlot() *slot {
	c.mu.Lock()
	defer c.mu.Unlock()

	best := c.slots[0]
	for _, s := range c.slots[1:] {
		if s.failures < best.failures ||
			(s.failures == best.failures && s.lastUsed.Before(best.lastUsed)) {
			best = s
		}
	}
	best.lastUsed = time.Now()
	return best
}

// record updates slot health and the global breaker from one task outcome
func (c *Client) record(s *slot, err error) {
	c.mu.Lock()
	switch {
	case err == nil:
		if s.failures > 0 {
			s.failures--
		}
	case retryable(err):
		s.failures++
		c.log.Debug("slot failure",
			zap.String("slot", s.name),
			zap.Int("failures", s.failures),
		)
	}
	c.mu.Unlock()

	if err == nil {
		c.breaker.RecordSuccess()
	} else {
		c.breaker.RecordFailure()
	}
}
