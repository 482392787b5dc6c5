package model

import "time"

// Config is the full pipeline configuration. Every hand-tuned weight, cap and
// deadline lives here as a default: they are tunable parameters, not
// invariants.
type Config struct {
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" mapstructure:"retrieval"`
	Providers   ProvidersConfig   `yaml:"providers" mapstructure:"providers"`
	Rerank      RerankConfig      `yaml:"rerank" mapstructure:"rerank"`
	Gap         GapConfig         `yaml:"gap" mapstructure:"gap"`
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
}

// LLMConfig configures the rate-limited completion client
type LLMConfig struct {
	Provider          string   `yaml:"provider" mapstructure:"provider"` // openai, anthropic
	Model             string   `yaml:"model" mapstructure:"model"`
	EmbeddingModel    string   `yaml:"embedding_model" mapstructure:"embedding_model"`
	APIKeys           []string `yaml:"api_keys" mapstructure:"api_keys"` // One credential slot per key
	BaseURL           string   `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSecond float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSeconds    int      `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxRetries        int      `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseMs       int      `yaml:"retry_base_ms" mapstructure:"retry_base_ms"`
	BreakerThreshold  int      `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	MaxTokens         int      `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// Timeout returns the per-request timeout as a duration
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetrievalConfig bounds the coordinator's fan-out
type RetrievalConfig struct {
	AdapterTimeoutSeconds int `yaml:"adapter_timeout_seconds" mapstructure:"adapter_timeout_seconds"`
	OverallTimeoutSeconds int `yaml:"overall_timeout_seconds" mapstructure:"overall_timeout_seconds"`
}

// AdapterTimeout returns the per-adapter deadline
func (c RetrievalConfig) AdapterTimeout() time.Duration {
	return time.Duration(c.AdapterTimeoutSeconds) * time.Second
}

// OverallTimeout returns the whole fan-out deadline
func (c RetrievalConfig) OverallTimeout() time.Duration {
	return time.Duration(c.OverallTimeoutSeconds) * time.Second
}

// ProvidersConfig holds per-adapter settings
type ProvidersConfig struct {
	PubMed     PubMedConfig     `yaml:"pubmed" mapstructure:"pubmed"`
	Labels     LabelsConfig     `yaml:"labels" mapstructure:"labels"`
	Guidelines GuidelinesConfig `yaml:"guidelines" mapstructure:"guidelines"`
	Trials     TrialsConfig     `yaml:"trials" mapstructure:"trials"`
	Web        WebConfig        `yaml:"web" mapstructure:"web"`
}

// PubMedConfig configures the bibliographic adapter. Its internal result cap
// is "most-recent N, then oldest M" so one noisy variant cannot flood ranking.
type PubMedConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	RecentLimit int    `yaml:"recent_limit" mapstructure:"recent_limit"` // N newest kept
	OlderLimit  int    `yaml:"older_limit" mapstructure:"older_limit"`   // M oldest kept after the newest
	ExpandQuery bool   `yaml:"expand_query" mapstructure:"expand_query"` // Ask the completion client for one extra variant
}

// LabelsConfig configures the structured drug-label adapter
type LabelsConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Limit   int    `yaml:"limit" mapstructure:"limit"`
}

// GuidelinesConfig configures the vector-store adapter with tiered caps:
// highest-tier M1, specialty-tier M2, standard M3.
type GuidelinesConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Tier1Limit int    `yaml:"tier1_limit" mapstructure:"tier1_limit"`
	Tier2Limit int    `yaml:"tier2_limit" mapstructure:"tier2_limit"`
	Tier3Limit int    `yaml:"tier3_limit" mapstructure:"tier3_limit"`
	TopK       int    `yaml:"top_k" mapstructure:"top_k"` // Vector search depth before tier caps
}

// TrialsConfig configures the clinical-trials registry adapter
type TrialsConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Limit   int    `yaml:"limit" mapstructure:"limit"`
}

// WebConfig configures the open web search adapter
type WebConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Limit      int    `yaml:"limit" mapstructure:"limit"`
	MinResults int    `yaml:"min_results" mapstructure:"min_results"` // Below this, retry once with a relaxed variant
}

// RerankConfig holds the two-stage ranking weights and caps. The weights are
// hand-tuned defaults carried over as configuration, not assumed optimal.
type RerankConfig struct {
	SemanticWeight float64 `yaml:"semantic_weight" mapstructure:"semantic_weight"` // Stage-1 semantic share
	QualityWeight  float64 `yaml:"quality_weight" mapstructure:"quality_weight"`   // Stage-1 quality share

	SourceBonus map[SourceKind]float64 `yaml:"source_bonus" mapstructure:"source_bonus"`

	Stage1Keep     int `yaml:"stage1_keep" mapstructure:"stage1_keep"`           // K1 shortlist size
	MinBiblioShare int `yaml:"min_biblio_share" mapstructure:"min_biblio_share"` // Shortlist slots reserved for the bibliographic source

	ChunkSize    int `yaml:"chunk_size" mapstructure:"chunk_size"`       // Characters per chunk
	ChunkOverlap int `yaml:"chunk_overlap" mapstructure:"chunk_overlap"` // Overlap window in characters

	ChunkSemanticWeight float64 `yaml:"chunk_semantic_weight" mapstructure:"chunk_semantic_weight"`
	ParentScoreWeight   float64 `yaml:"parent_score_weight" mapstructure:"parent_score_weight"`
	ChunkQualityWeight  float64 `yaml:"chunk_quality_weight" mapstructure:"chunk_quality_weight"`

	Stage2Keep int `yaml:"stage2_keep" mapstructure:"stage2_keep"` // K2 final pack size

	ScoreBatchSize       int     `yaml:"score_batch_size" mapstructure:"score_batch_size"`
	RecencyHalfLifeYears float64 `yaml:"recency_half_life_years" mapstructure:"recency_half_life_years"`
}

// GapConfig holds the gap analyzer's decision thresholds
type GapConfig struct {
	MinCoverage      float64 `yaml:"min_coverage" mapstructure:"min_coverage"`           // Below this, proceed is forbidden
	RecentYears      int     `yaml:"recent_years" mapstructure:"recent_years"`           // "Recent" means within this many years
	MinBibliographic int     `yaml:"min_bibliographic" mapstructure:"min_bibliographic"` // Minimum items from the bibliographic provider
}

// FetchConfig configures the stage-2 full-text fetcher
type FetchConfig struct {
	TimeoutSeconds    int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes      int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	PerHostRPS        float64 `yaml:"per_host_rps" mapstructure:"per_host_rps"`
	PerHostBurst      int     `yaml:"per_host_burst" mapstructure:"per_host_burst"`
	RespectRobotsTxt  bool    `yaml:"respect_robots_txt" mapstructure:"respect_robots_txt"`
	HTTPProxy         string  `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy        string  `yaml:"https_proxy" mapstructure:"https_proxy"`
}

// CacheConfig configures the advisory result cache
type CacheConfig struct {
	Enabled          bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir              string `yaml:"dir" mapstructure:"dir"` // Empty disables the disk layer
	MemoryTTLMinutes int    `yaml:"memory_ttl_minutes" mapstructure:"memory_ttl_minutes"`
	DiskTTLHours     int    `yaml:"disk_ttl_hours" mapstructure:"disk_ttl_hours"`
}

// ConcurrencyConfig bounds the purely concurrency-bound stages
type ConcurrencyConfig struct {
	ScoreWorkers int `yaml:"score_workers" mapstructure:"score_workers"` // Parallel scoring batches
	FetchWorkers int `yaml:"fetch_workers" mapstructure:"fetch_workers"` // Parallel stage-2 full-text fetches
	BatchWorkers int `yaml:"batch_workers" mapstructure:"batch_workers"` // Parallel queries in batch mode
}

// DefaultConfig returns the standard configuration
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			EmbeddingModel:    "text-embedding-3-small",
			RequestsPerSecond: 2,
			TimeoutSeconds:    30,
			MaxRetries:        3,
			RetryBaseMs:       500,
			BreakerThreshold:  5,
			MaxTokens:         1000,
		},
		Retrieval: RetrievalConfig{
			AdapterTimeoutSeconds: 50,
			OverallTimeoutSeconds: 60,
		},
		Providers: ProvidersConfig{
			PubMed: PubMedConfig{
				BaseURL:     "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
				RecentLimit: 30,
				OlderLimit:  10,
			},
			Labels: LabelsConfig{
				BaseURL: "https://api.fda.gov",
				Limit:   10,
			},
			Guidelines: GuidelinesConfig{
				BaseURL:    "http://localhost:6333",
				Tier1Limit: 8,
				Tier2Limit: 5,
				Tier3Limit: 3,
				TopK:       30,
			},
			Trials: TrialsConfig{
				BaseURL: "https://clinicaltrials.gov/api",
				Limit:   15,
			},
			Web: WebConfig{
				BaseURL:    "http://localhost:8089",
				Limit:      10,
				MinResults: 2,
			},
		},
		Rerank: RerankConfig{
			SemanticWeight: 0.7,
			QualityWeight:  0.25,
			SourceBonus: map[SourceKind]float64{
				SourceLabels:     0.05,
				SourceGuidelines: 0.05,
			},
			Stage1Keep:           20,
			MinBiblioShare:       15,
			ChunkSize:            1200,
			ChunkOverlap:         200,
			ChunkSemanticWeight:  0.45,
			ParentScoreWeight:    0.35,
			ChunkQualityWeight:   0.2,
			Stage2Keep:           10,
			ScoreBatchSize:       16,
			RecencyHalfLifeYears: 5,
		},
		Gap: GapConfig{
			MinCoverage:      0.6,
			RecentYears:      2,
			MinBibliographic: 3,
		},
		Fetch: FetchConfig{
			TimeoutSeconds:   20,
			UserAgent:        "evisearch/0.3 (+https://github.com/vporoshin/evisearch)",
			MaxBodyBytes:     2 << 20,
			PerHostRPS:       1,
			PerHostBurst:     2,
			RespectRobotsTxt: true,
		},
		Cache: CacheConfig{
			Enabled:          true,
			MemoryTTLMinutes: 30,
			DiskTTLHours:     24,
		},
		Concurrency: ConcurrencyConfig{
			ScoreWorkers: 4,
			FetchWorkers: 4,
			BatchWorkers: 3,
		},
	}
}
