package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vporoshin/evisearch/internal/model"
	"github.com/vporoshin/evisearch/internal/pipeline"
)

var (
	outJSON     string
	outMD       string
	contextFile string
	askTimeout  time.Duration
	noCache     bool
	noMetadata  bool
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Answer one research query with a ranked evidence pack",
	Long: `Ask runs a single query through the full pipeline:
- Fan out to every eligible evidence source concurrently
- Normalize and de-duplicate the results
- Rerank in two stages down to a small evidence pack
- Analyze coverage and recency gaps, supplementing once if needed

Example:
  evisearch ask "empagliflozin heart failure outcomes"
  evisearch ask "statin safety in elderly patients" --json pack.json --md pack.md
  evisearch ask --context query.json --md pack.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path ('-' for stdout)")
	askCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path ('-' for stdout)")
	askCmd.Flags().StringVar(&contextFile, "context", "", "prepared query-context JSON file (variants, entities, routing)")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 3*time.Minute, "overall query timeout")
	askCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the advisory cache")
	askCmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "omit per-item metadata tables from Markdown output")
}

func runAsk(cmd *cobra.Command, args []string) error {
	qctx, err := buildQueryContext(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Cache.Enabled = cfg.Cache.Enabled && !noCache

	p, err := pipeline.New(cfg, zap.L())
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer p.Close()

	result, err := p.Run(ctx, qctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	renderer := pipeline.NewRenderer(!noMetadata)
	if outJSON != "" {
		if err := renderer.RenderJSON(result, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(result, outMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
	}
	if outJSON == "" && outMD == "" {
		renderer.RenderSummary(result)
	}

	return nil
}

// buildQueryContext takes either a bare query argument or a prepared context
// file from the upstream query-understanding step.
func buildQueryContext(args []string) (model.QueryContext, error) {
	if contextFile != "" {
		data, err := os.ReadFile(contextFile)
		if err != nil {
			return model.QueryContext{}, fmt.Errorf("read context file: %w", err)
		}
		var qctx model.QueryContext
		if err := json.Unmarshal(data, &qctx); err != nil {
			return model.QueryContext{}, fmt.Errorf("parse context file: %w", err)
		}
		if qctx.Query == "" {
			return model.QueryContext{}, fmt.Errorf("context file has no query")
		}
		if len(qctx.Variants) == 0 {
			qctx.Variants = []string{qctx.Query}
		}
		return qctx, nil
	}

	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return model.QueryContext{}, fmt.Errorf("provide a query argument or --context file")
	}
	return model.SimpleContext(strings.TrimSpace(args[0])), nil
}
