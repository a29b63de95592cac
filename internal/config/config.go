// Package config loads and validates runtime configuration for the
// indexing and synchronization engine.
package config

import "time"

// Config represents the complete engine configuration. It can be loaded
// from .index-engine/config.yml with environment variable overrides.
type Config struct {
	Traversal TraversalConfig `yaml:"traversal" mapstructure:"traversal"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	Chunking  ChunkingConfig  `yaml:"chunking" mapstructure:"chunking"`
	Runtime   RuntimeConfig   `yaml:"runtime" mapstructure:"runtime"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
}

// TraversalConfig controls how a project tree is walked and filtered.
type TraversalConfig struct {
	IncludePatterns     []string `yaml:"include_patterns" mapstructure:"include_patterns"`
	ExcludePatterns     []string `yaml:"exclude_patterns" mapstructure:"exclude_patterns"`
	MaxFileSizeBytes    int64    `yaml:"max_file_size_bytes" mapstructure:"max_file_size_bytes"`
	SupportedExtensions []string `yaml:"supported_extensions" mapstructure:"supported_extensions"`
	IgnoreHiddenFiles   bool     `yaml:"ignore_hidden_files" mapstructure:"ignore_hidden_files"`
	IgnoreDirectories   []string `yaml:"ignore_directories" mapstructure:"ignore_directories"`
	RespectGitignore    bool     `yaml:"respect_gitignore" mapstructure:"respect_gitignore"`
	FollowSymlinks      bool     `yaml:"follow_symlinks" mapstructure:"follow_symlinks"`
	MaxVisitedRealPaths int      `yaml:"max_visited_real_paths" mapstructure:"max_visited_real_paths"`
}

// WatchConfig controls file-system watching and event coalescing.
type WatchConfig struct {
	DebounceMs     int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	RenameWindowMs int `yaml:"rename_window_ms" mapstructure:"rename_window_ms"`
}

// ChunkingConfig controls chunk shaping across all strategies.
type ChunkingConfig struct {
	SmallFileThreshold  int     `yaml:"small_file_threshold" mapstructure:"small_file_threshold"`
	MinChunkSize        int     `yaml:"min_chunk_size" mapstructure:"min_chunk_size"`
	MaxChunkSize        int     `yaml:"max_chunk_size" mapstructure:"max_chunk_size"`
	MaxLinesPerChunk    int     `yaml:"max_lines_per_chunk" mapstructure:"max_lines_per_chunk"`
	OverlapSize         int     `yaml:"overlap_size" mapstructure:"overlap_size"`
	MaxOverlapRatio     float64 `yaml:"max_overlap_ratio" mapstructure:"max_overlap_ratio"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// RuntimeConfig controls batch sizing, concurrency and memory thresholds.
type RuntimeConfig struct {
	BatchInitialSize      int           `yaml:"batch_initial_size" mapstructure:"batch_initial_size"`
	BatchMinSize          int           `yaml:"batch_min_size" mapstructure:"batch_min_size"`
	BatchMaxSize          int           `yaml:"batch_max_size" mapstructure:"batch_max_size"`
	BatchAdjustmentFactor float64       `yaml:"batch_adjustment_factor" mapstructure:"batch_adjustment_factor"`
	PerformanceThreshold  time.Duration `yaml:"performance_threshold" mapstructure:"performance_threshold"`
	MaxConcurrency        int           `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	MemoryLimitMB         int           `yaml:"memory_limit_mb" mapstructure:"memory_limit_mb"`
	MemoryEmergencyPct    float64       `yaml:"memory_emergency_pct" mapstructure:"memory_emergency_pct"`
	MemoryCriticalPct     float64       `yaml:"memory_critical_pct" mapstructure:"memory_critical_pct"`
}

// RetryConfig controls the exponential backoff policy used by the
// concurrency runtime and the recovery layer.
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay     time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	MaxDelay      time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor" mapstructure:"backoff_factor"`
	Jitter        float64       `yaml:"jitter" mapstructure:"jitter"`
}

// EmbeddingConfig selects which external embedder a project uses.
type EmbeddingConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// Default returns a configuration with sensible defaults, mirroring the
// numeric defaults called out across spec §4.
func Default() *Config {
	return &Config{
		Traversal: TraversalConfig{
			IncludePatterns: nil,
			ExcludePatterns: []string{
				"node_modules/**", ".git/**", "dist/**", "build/**",
			},
			MaxFileSizeBytes: 10 * 1024 * 1024,
			SupportedExtensions: []string{
				".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".rs",
				".c", ".cpp", ".cc", ".h", ".hpp", ".php", ".rb",
				".java", ".md",
			},
			IgnoreHiddenFiles:   true,
			IgnoreDirectories:   []string{"node_modules", ".git", "dist", "build"},
			RespectGitignore:    true,
			FollowSymlinks:      false,
			MaxVisitedRealPaths: 1000,
		},
		Watch: WatchConfig{
			DebounceMs:     300,
			RenameWindowMs: 1000,
		},
		Chunking: ChunkingConfig{
			SmallFileThreshold:  10000,
			MinChunkSize:        200,
			MaxChunkSize:        2000,
			MaxLinesPerChunk:    100,
			OverlapSize:         10,
			MaxOverlapRatio:     0.2,
			SimilarityThreshold: 0.8,
		},
		Runtime: RuntimeConfig{
			BatchInitialSize:      20,
			BatchMinSize:          5,
			BatchMaxSize:          100,
			BatchAdjustmentFactor: 1.5,
			PerformanceThreshold:  2 * time.Second,
			MaxConcurrency:        8,
			MemoryLimitMB:         1024,
			MemoryEmergencyPct:    80,
			MemoryCriticalPct:     90,
		},
		Retry: RetryConfig{
			MaxAttempts:   3,
			BaseDelay:     200 * time.Millisecond,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
			Jitter:        0.2,
		},
		Embedding: EmbeddingConfig{
			Provider: "mock",
		},
	}
}
