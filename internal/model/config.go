package model

import "time"

// Config is the full claimwarden configuration.
// Values come from flags, CLAIMWARDEN_* environment variables, the config
// file at ~/.claimwarden/config.yaml, and the defaults below, in that order.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Index    IndexConfig    `yaml:"index" mapstructure:"index"`
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Oracle   OracleConfig   `yaml:"oracle" mapstructure:"oracle"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
}

// PipelineConfig controls the orchestration strategy and its thresholds
type PipelineConfig struct {
	// Strategy selects the orchestration: "graph" or "agent"
	Strategy string `yaml:"strategy" mapstructure:"strategy"`

	// InflationRatio is the fraction above the market estimate at which a
	// claimed cost is treated as inflated (0.40 means 40% above market)
	InflationRatio float64 `yaml:"inflation_ratio" mapstructure:"inflation_ratio"`

	// AgentMaxSteps bounds the agent strategy's tool-calling loop
	AgentMaxSteps int `yaml:"agent_max_steps" mapstructure:"agent_max_steps"`

	// StepTimeout bounds each external call (LLM, price lookup)
	StepTimeout time.Duration `yaml:"step_timeout" mapstructure:"step_timeout"`
}

// DataConfig points at external data sources
type DataConfig struct {
	CoverageCSV string `yaml:"coverage_csv" mapstructure:"coverage_csv"` // policy ledger
	IndexDir    string `yaml:"index_dir" mapstructure:"index_dir"`       // vector index persistence dir
}

// IndexConfig controls the policy text index
type IndexConfig struct {
	Collection     string  `yaml:"collection" mapstructure:"collection"`
	EmbeddingModel string  `yaml:"embedding_model" mapstructure:"embedding_model"`
	TopK           int     `yaml:"top_k" mapstructure:"top_k"` // passages kept overall after merging
	ChunkSize      int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
	MinSimilarity  float32 `yaml:"min_similarity" mapstructure:"min_similarity"`
}

// LLMConfig configures the reasoning model
type LLMConfig struct {
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"-" mapstructure:"-"` // from OPENAI_API_KEY, never persisted
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// OracleConfig configures the market price lookup
type OracleConfig struct {
	Endpoint      string        `yaml:"endpoint" mapstructure:"endpoint"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RatePerSecond float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int           `yaml:"burst" mapstructure:"burst"`
	CacheTTL      time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// OutputConfig controls CLI output behavior
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Strategy:       "graph",
			InflationRatio: 0.40,
			AgentMaxSteps:  12,
			StepTimeout:    30 * time.Second,
		},
		Data: DataConfig{
			CoverageCSV: "data/coverage_data.csv",
			IndexDir:    "data/index",
		},
		Index: IndexConfig{
			Collection:     "policy_documents",
			EmbeddingModel: "text-embedding-3-small",
			TopK:           5,
			ChunkSize:      500,
			ChunkOverlap:   50,
			MinSimilarity:  0,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
			MaxTokens:   1000,
			Timeout:     30 * time.Second,
		},
		Oracle: OracleConfig{
			Endpoint:      "https://html.duckduckgo.com/html/",
			UserAgent:     "Claimwarden/0.1 (+https://github.com/claimwarden/claimwarden)",
			Timeout:       10 * time.Second,
			MaxBodyBytes:  2_000_000,
			RatePerSecond: 1,
			Burst:         2,
			CacheTTL:      15 * time.Minute,
		},
		Output: OutputConfig{},
	}
}
