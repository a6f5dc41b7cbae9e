package tasks

import (
	"time"

	"github.com/clinicmgr/clinic/internal/config"
)

// Config holds configuration for the task queue system.
type Config struct {
	Workers           int
	MaxRetries        int
	RetryDelay        time.Duration
	TaskTimeout       time.Duration
	ReleaseAfter      time.Duration // Stuck tasks are released back to the queue after this
	CleanupInterval   time.Duration
	RetentionDuration time.Duration
}

// DefaultConfig returns a Config sized for a single clinic workstation.
func DefaultConfig() Config {
	return Config{
		Workers:           2,
		MaxRetries:        3,
		RetryDelay:        1 * time.Minute,
		TaskTimeout:       5 * time.Minute,
		ReleaseAfter:      15 * time.Minute,
		CleanupInterval:   1 * time.Hour,
		RetentionDuration: 24 * time.Hour,
	}
}

// ConfigFrom maps application configuration onto queue settings, keeping
// defaults for zero values.
func ConfigFrom(cfg config.Tasks) Config {
	out := DefaultConfig()
	if cfg.Workers > 0 {
		out.Workers = cfg.Workers
	}
	if cfg.MaxRetries > 0 {
		out.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		out.RetryDelay = cfg.RetryDelay
	}
	if cfg.TaskTimeout > 0 {
		out.TaskTimeout = cfg.TaskTimeout
	}
	if cfg.ReleaseAfter > 0 {
		out.ReleaseAfter = cfg.ReleaseAfter
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = cfg.CleanupInterval
	}
	if cfg.RetentionDuration > 0 {
		out.RetentionDuration = cfg.RetentionDuration
	}
	return out
}
