package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidChunkSize indicates invalid chunk size configuration.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidOverlap indicates invalid overlap configuration.
	ErrInvalidOverlap = errors.New("invalid overlap")

	// ErrInvalidRetry indicates invalid retry policy configuration.
	ErrInvalidRetry = errors.New("invalid retry configuration")

	// ErrInvalidRuntime indicates invalid concurrency runtime configuration.
	ErrInvalidRuntime = errors.New("invalid runtime configuration")

	// ErrEmptyProvider indicates a missing embedding provider name.
	ErrEmptyProvider = errors.New("empty embedding provider")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateChunking(&cfg.Chunking)...)
	errs = append(errs, validateRuntime(&cfg.Runtime)...)
	errs = append(errs, validateRetry(&cfg.Retry)...)
	errs = append(errs, validateEmbedding(&cfg.Embedding)...)

	return joinErrors(errs)
}

func validateChunking(cfg *ChunkingConfig) []error {
	var errs []error

	if cfg.MinChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: min_chunk_size must be positive, got %d", ErrInvalidChunkSize, cfg.MinChunkSize))
	}
	if cfg.MaxChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_chunk_size must be positive, got %d", ErrInvalidChunkSize, cfg.MaxChunkSize))
	}
	if cfg.MinChunkSize > 0 && cfg.MaxChunkSize > 0 && cfg.MinChunkSize >= cfg.MaxChunkSize {
		errs = append(errs, fmt.Errorf("%w: min_chunk_size (%d) must be less than max_chunk_size (%d)", ErrInvalidChunkSize, cfg.MinChunkSize, cfg.MaxChunkSize))
	}
	if cfg.OverlapSize < 0 {
		errs = append(errs, fmt.Errorf("%w: overlap_size cannot be negative, got %d", ErrInvalidOverlap, cfg.OverlapSize))
	}
	if cfg.MaxOverlapRatio < 0 || cfg.MaxOverlapRatio > 1 {
		errs = append(errs, fmt.Errorf("%w: max_overlap_ratio must be in [0,1], got %f", ErrInvalidOverlap, cfg.MaxOverlapRatio))
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: similarity_threshold must be in [0,1], got %f", ErrInvalidChunkSize, cfg.SimilarityThreshold))
	}

	return errs
}

func validateRuntime(cfg *RuntimeConfig) []error {
	var errs []error

	if cfg.BatchMinSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: batch_min_size must be positive, got %d", ErrInvalidRuntime, cfg.BatchMinSize))
	}
	if cfg.BatchMaxSize < cfg.BatchMinSize {
		errs = append(errs, fmt.Errorf("%w: batch_max_size (%d) must be >= batch_min_size (%d)", ErrInvalidRuntime, cfg.BatchMaxSize, cfg.BatchMinSize))
	}
	if cfg.BatchInitialSize < cfg.BatchMinSize || cfg.BatchInitialSize > cfg.BatchMaxSize {
		errs = append(errs, fmt.Errorf("%w: batch_initial_size (%d) must be within [%d, %d]", ErrInvalidRuntime, cfg.BatchInitialSize, cfg.BatchMinSize, cfg.BatchMaxSize))
	}
	if cfg.MaxConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_concurrency must be positive, got %d", ErrInvalidRuntime, cfg.MaxConcurrency))
	}
	if cfg.MemoryEmergencyPct <= 0 || cfg.MemoryEmergencyPct > 100 {
		errs = append(errs, fmt.Errorf("%w: memory_emergency_pct must be in (0,100], got %f", ErrInvalidRuntime, cfg.MemoryEmergencyPct))
	}
	if cfg.MemoryCriticalPct < cfg.MemoryEmergencyPct {
		errs = append(errs, fmt.Errorf("%w: memory_critical_pct (%f) must be >= memory_emergency_pct (%f)", ErrInvalidRuntime, cfg.MemoryCriticalPct, cfg.MemoryEmergencyPct))
	}

	return errs
}

func validateRetry(cfg *RetryConfig) []error {
	var errs []error

	if cfg.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("%w: max_attempts cannot be negative, got %d", ErrInvalidRetry, cfg.MaxAttempts))
	}
	if cfg.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("%w: base_delay cannot be negative", ErrInvalidRetry))
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		errs = append(errs, fmt.Errorf("%w: max_delay must be >= base_delay", ErrInvalidRetry))
	}
	if cfg.BackoffFactor < 1 {
		errs = append(errs, fmt.Errorf("%w: backoff_factor must be >= 1, got %f", ErrInvalidRetry, cfg.BackoffFactor))
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		errs = append(errs, fmt.Errorf("%w: jitter must be in [0,1], got %f", ErrInvalidRetry, cfg.Jitter))
	}

	return errs
}

func validateEmbedding(cfg *EmbeddingConfig) []error {
	var errs []error
	if strings.TrimSpace(cfg.Provider) == "" {
		errs = append(errs, ErrEmptyProvider)
	}
	return errs
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
