package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/vporoshin/evisearch/internal/model"
)

// Runner processes one query context into a result
type Runner interface {
	Run(ctx context.Context, qctx model.QueryContext) (*model.Result, error)
}

// QueryJob runs one query through the pipeline
type QueryJob struct {
	Query  string
	Runner Runner
}

// Execute runs the query job
func (j *QueryJob) Execute(ctx context.Context) Result {
	result, err := j.Runner.Run(ctx, model.SimpleContext(j.Query))
	return &QueryResult{
		Query:  j.Query,
		Result: result,
		Error:  err,
	}
}

// QueryResult is the outcome of one batched query
type QueryResult struct {
	Query  string
	Result *model.Result
	Error  error
}

// GetError returns the error from the query result
func (r *QueryResult) GetError() error {
	return r.Error
}

// BatchProcessor runs multiple queries concurrently through one pipeline
type BatchProcessor struct {
	runner      Runner
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(runner Runner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
}

// ProcessQueries runs every query and returns one result each
func (b *BatchProcessor) ProcessQueries(ctx context.Context, queries []string) []*QueryResult {
	if len(queries) == 0 {
		return []*QueryResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, query := range queries {
		pool.Submit(&QueryJob{
			Query:  query,
			Runner: b.runner,
		})
	}

	results := pool.Wait()

	queryResults := make([]*QueryResult, len(results))
	for i, result := range results {
		queryResults[i] = result.(*QueryResult)
	}

	return queryResults
}

// ProcessFile reads queries from a file and runs them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*QueryResult, error) {
	queries, err := ReadQueriesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}

	return b.ProcessQueries(ctx, queries), nil
}

// ReadQueriesFromFile reads queries from a file, one per line. Blank lines and
// #-comments are skipped, exact duplicates collapsed.
func ReadQueriesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var queries []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			queries = append(queries, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return queries, nil
}
