package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vporoshin/evisearch/internal/model"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "evisearch",
	Short: "Evisearch - evidence retrieval and ranking for clinical questions",
	Long: `Evisearch answers a natural-language research query with a ranked,
de-duplicated evidence pack drawn from bibliographic literature, drug
labels, clinical guidelines, trial registries and the open web.

It retrieves concurrently from every eligible source, normalizes each
provider's shape into one canonical candidate, reranks in two stages
(document triage, then passage scoring), and reports coverage gaps with
at most one supplementary retrieval round.

Evisearch collects and orders evidence; it does not synthesize answers.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	defer func() { _ = zap.L().Sync() }()
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("evisearch v0.3.2")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.evisearch/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads the config file and EVISEARCH_* environment variables,
// then installs the global logger.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(home + "/.evisearch")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("EVISEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}

	zap.ReplaceGlobals(newLogger(verbose))
}

// newLogger builds the process logger: human-readable on stderr, debug level
// when verbose.
func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// loadConfig merges defaults, config file and environment into one Config.
// Completion credentials come from the conventional environment variables.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	if len(cfg.LLM.APIKeys) == 0 {
		cfg.LLM.APIKeys = keysFromEnv(cfg.LLM.Provider)
	}
	return cfg, nil
}

// keysFromEnv reads credential slots from the environment. The plural
// variable takes a comma-separated list, one slot per key.
func keysFromEnv(provider string) []string {
	var single, plural string
	switch provider {
	case "anthropic", "claude":
		single, plural = "ANTHROPIC_API_KEY", "ANTHROPIC_API_KEYS"
	default:
		single, plural = "OPENAI_API_KEY", "OPENAI_API_KEYS"
	}

	if raw := os.Getenv(plural); raw != "" {
		var keys []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		return keys
	}
	if key := os.Getenv(single); key != "" {
		return []string{key}
	}
	return nil
}
