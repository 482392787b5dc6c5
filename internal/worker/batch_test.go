package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vporoshin/evisearch/internal/model"
)

// mockRunner implements Runner
type mockRunner struct {
	calls   int32
	failFor string
}

func (m *mockRunner) Run(ctx context.Context, qctx model.QueryContext) (*model.Result, error) {
	atomic.AddInt32(&m.calls, 1)
	if qctx.Query == m.failFor {
		return nil, errors.New("provider meltdown")
	}
	return &model.Result{Query: qctx.Query}, nil
}

func TestBatchProcessor_ProcessQueries(t *testing.T) {
	runner := &mockRunner{}
	b := NewBatchProcessor(runner, 3)

	queries := []string{"q1", "q2", "q3", "q4"}
	results := b.ProcessQueries(context.Background(), queries)

	if len(results) != len(queries) {
		t.Fatalf("expected %d results, got %d", len(queries), len(results))
	}
	if got := atomic.LoadInt32(&runner.calls); got != int32(len(queries)) {
		t.Errorf("expected %d runner calls, got %d", len(queries), got)
	}

	seen := make(map[string]bool)
	for _, r := range results {
		if r.Error != nil {
			t.Errorf("query %s failed: %v", r.Query, r.Error)
		}
		if r.Result == nil || r.Result.Query != r.Query {
			t.Errorf("result not attached to its query: %+v", r)
		}
		seen[r.Query] = true
	}
	for _, q := range queries {
		if !seen[q] {
			t.Errorf("query %s missing from results", q)
		}
	}
}

func TestBatchProcessor_PartialFailure(t *testing.T) {
	runner := &mockRunner{failFor: "bad query"}
	b := NewBatchProcessor(runner, 2)

	results := b.ProcessQueries(context.Background(), []string{"good query", "bad query"})

	failures := 0
	for _, r := range results {
		if r.Error != nil {
			failures++
			if r.Query != "bad query" {
				t.Errorf("wrong query failed: %s", r.Query)
			}
		}
	}
	if failures != 1 {
		t.Errorf("expected exactly 1 failure, got %d", failures)
	}
}

// waitingRunner blocks until its context is cancelled
type waitingRunner struct {
	calls int32
}

func (w *waitingRunner) Run(ctx context.Context, qctx model.QueryContext) (*model.Result, error) {
	atomic.AddInt32(&w.calls, 1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return &model.Result{Query: qctx.Query}, nil
	}
}

func TestBatchProcessor_CancelledContextStopsBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &waitingRunner{}
	b := NewBatchProcessor(runner, 2)

	start := time.Now()
	results := b.ProcessQueries(ctx, []string{"q1", "q2"})
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("batch ignored the cancelled context, took %s", elapsed)
	}
	for _, r := range results {
		if r.Error == nil {
			t.Errorf("query %s completed under a cancelled context", r.Query)
		}
	}
}

func TestBatchProcessor_TimeoutBoundsQueries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	runner := &waitingRunner{}
	b := NewBatchProcessor(runner, 2)

	start := time.Now()
	b.ProcessQueries(ctx, []string{"q1", "q2"})
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("batch outlived its deadline, took %s", elapsed)
	}
	if got := atomic.LoadInt32(&runner.calls); got == 0 {
		t.Errorf("expected queries to start before the deadline")
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	b := NewBatchProcessor(&mockRunner{}, 2)
	if results := b.ProcessQueries(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected no results for empty input, got %d", len(results))
	}
}

func TestReadQueriesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	content := `# comment line
first query

second query
first query
  third query
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	queries, err := ReadQueriesFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"first query", "second query", "third query"}
	if len(queries) != len(want) {
		t.Fatalf("expected %d queries, got %d: %v", len(want), len(queries), queries)
	}
	for i, q := range want {
		if queries[i] != q {
			t.Errorf("query %d: expected %q, got %q", i, q, queries[i])
		}
	}
}

func TestReadQueriesFromFile_Missing(t *testing.T) {
	if _, err := ReadQueriesFromFile("/nonexistent/queries.txt"); err == nil {
		t.Errorf("expected error for missing file")
	}
}
