package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vporoshin/evisearch/internal/pipeline"
	"github.com/vporoshin/evisearch/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run multiple queries from a file in parallel",
	Long: `Batch reads queries from a file (one per line, # for comments) and
runs each through the full pipeline, writing one evidence pack per query.

Example:
  evisearch batch queries.txt
  evisearch batch queries.txt --concurrency 5 --output-dir ./packs
  evisearch batch queries.txt --timeout 20m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel queries (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./evisearch-packs", "output directory for evidence packs")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 15*time.Minute, "total timeout for the whole batch")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the advisory cache")
	batchCmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "omit per-item metadata tables from Markdown output")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Cache.Enabled = cfg.Cache.Enabled && !noCache

	workers := concurrency
	if workers <= 0 {
		workers = cfg.Concurrency.BatchWorkers
	}
	if workers <= 0 {
		workers = 3
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p, err := pipeline.New(cfg, zap.L())
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer p.Close()

	zap.L().Info("batch started",
		zap.String("file", file),
		zap.Int("workers", workers),
		zap.String("output_dir", outputDir),
	)

	processor := worker.NewBatchProcessor(p, workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(!noMetadata)
	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Query, result.Error)
			continue
		}

		slug := querySlug(result.Query)
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(result.Result, jsonPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: write JSON: %v\n", result.Query, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Result, mdPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: write Markdown: %v\n", result.Query, err)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s (%d items, %s)\n",
			result.Query, len(result.Result.Items), result.Result.Gap.Recommendation)
	}

	fmt.Fprintf(os.Stderr, "\nBatch complete: %d queries, %d succeeded, %d failed, output in %s\n",
		len(results), successCount, failureCount, outputDir)

	return nil
}

// querySlug derives a filesystem-safe name from a query
func querySlug(query string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(query) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteRune('-')
		}
	}
	slug := strings.Trim(sb.String(), "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if len(slug) > 80 {
		slug = slug[:80]
	}
	if slug == "" {
		slug = "query"
	}
	return slug
}
