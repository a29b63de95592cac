package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given project root.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (INDEXENGINE_*)
// 2. Config file (.index-engine/config.yml or .yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, ".index-engine")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("INDEXENGINE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range []string{
		"traversal.max_file_size_bytes",
		"traversal.ignore_hidden_files",
		"traversal.respect_gitignore",
		"traversal.follow_symlinks",
		"watch.debounce_ms",
		"watch.rename_window_ms",
		"chunking.small_file_threshold",
		"chunking.min_chunk_size",
		"chunking.max_chunk_size",
		"chunking.max_lines_per_chunk",
		"chunking.overlap_size",
		"chunking.max_overlap_ratio",
		"chunking.similarity_threshold",
		"runtime.max_concurrency",
		"runtime.memory_limit_mb",
		"retry.max_attempts",
		"embedding.provider",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env var for %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("traversal.include_patterns", d.Traversal.IncludePatterns)
	v.SetDefault("traversal.exclude_patterns", d.Traversal.ExcludePatterns)
	v.SetDefault("traversal.max_file_size_bytes", d.Traversal.MaxFileSizeBytes)
	v.SetDefault("traversal.supported_extensions", d.Traversal.SupportedExtensions)
	v.SetDefault("traversal.ignore_hidden_files", d.Traversal.IgnoreHiddenFiles)
	v.SetDefault("traversal.ignore_directories", d.Traversal.IgnoreDirectories)
	v.SetDefault("traversal.respect_gitignore", d.Traversal.RespectGitignore)
	v.SetDefault("traversal.follow_symlinks", d.Traversal.FollowSymlinks)
	v.SetDefault("traversal.max_visited_real_paths", d.Traversal.MaxVisitedRealPaths)

	v.SetDefault("watch.debounce_ms", d.Watch.DebounceMs)
	v.SetDefault("watch.rename_window_ms", d.Watch.RenameWindowMs)

	v.SetDefault("chunking.small_file_threshold", d.Chunking.SmallFileThreshold)
	v.SetDefault("chunking.min_chunk_size", d.Chunking.MinChunkSize)
	v.SetDefault("chunking.max_chunk_size", d.Chunking.MaxChunkSize)
	v.SetDefault("chunking.max_lines_per_chunk", d.Chunking.MaxLinesPerChunk)
	v.SetDefault("chunking.overlap_size", d.Chunking.OverlapSize)
	v.SetDefault("chunking.max_overlap_ratio", d.Chunking.MaxOverlapRatio)
	v.SetDefault("chunking.similarity_threshold", d.Chunking.SimilarityThreshold)

	v.SetDefault("runtime.batch_initial_size", d.Runtime.BatchInitialSize)
	v.SetDefault("runtime.batch_min_size", d.Runtime.BatchMinSize)
	v.SetDefault("runtime.batch_max_size", d.Runtime.BatchMaxSize)
	v.SetDefault("runtime.batch_adjustment_factor", d.Runtime.BatchAdjustmentFactor)
	v.SetDefault("runtime.performance_threshold", d.Runtime.PerformanceThreshold)
	v.SetDefault("runtime.max_concurrency", d.Runtime.MaxConcurrency)
	v.SetDefault("runtime.memory_limit_mb", d.Runtime.MemoryLimitMB)
	v.SetDefault("runtime.memory_emergency_pct", d.Runtime.MemoryEmergencyPct)
	v.SetDefault("runtime.memory_critical_pct", d.Runtime.MemoryCriticalPct)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.backoff_factor", d.Retry.BackoffFactor)
	v.SetDefault("retry.jitter", d.Retry.Jitter)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
}

// LoadConfig is a convenience function that loads config from the current
// working directory.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific project root.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
