package pipeline

import (
	"time"
)

// Config controls the worker pool, retry policy and per-stage
// timeouts of the pipeline engine.
type Config struct {
	Workers       int                     `yaml:"workers"`
	QueueSize     int                     `yaml:"queue_size"`
	Retry         RetryConfig             `yaml:"retry"`
	StageTimeouts map[Stage]time.Duration `yaml:"stage_timeouts"`
	TaskRetention time.Duration           `yaml:"task_retention"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 0, // derived from Workers in normalize
		Retry:     NewRetryConfig(),
		StageTimeouts: map[Stage]time.Duration{
			StageExtract: DefaultExtractTimeout,
			StageAnalyze: DefaultAnalyzeTimeout,
			StageWrite:   DefaultWriteTimeout,
			StagePublish: DefaultPublishTimeout,
		},
		TaskRetention: 24 * time.Hour,
	}
}

// normalize fills zero values with defaults.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = c.Workers * 2
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = def.Retry
	}
	if c.StageTimeouts == nil {
		c.StageTimeouts = def.StageTimeouts
	}
	if c.TaskRetention <= 0 {
		c.TaskRetention = def.TaskRetention
	}
	return c
}

// StageTimeout returns the attempt timeout for a stage, falling back
// to the built-in default when unset.
func (c Config) StageTimeout(stage Stage) time.Duration {
	if d, ok := c.StageTimeouts[stage]; ok && d > 0 {
		return d
	}
	switch stage {
	case StageExtract:
		return DefaultExtractTimeout
	case StageAnalyze:
		return DefaultAnalyzeTimeout
	case StageWrite:
		return DefaultWriteTimeout
	default:
		return DefaultPublishTimeout
	}
}
