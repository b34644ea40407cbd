package fetcher

import "time"

// Config controls fetch workers
type Config struct {
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
	// Timeout bounds a single fetch, FetchTask.Timeout takes precedence
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// RateLimit caps fetches per second, 0 disables limiting
	RateLimit float64 `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`
	Burst     int     `json:"burst,omitempty" yaml:"burst,omitempty"`
	// ChunkSize is the copy buffer used when the task carries no hint
	ChunkSize int `json:"chunkSize,omitempty" yaml:"chunkSize,omitempty"`
	// TargetDirectory is used for tasks without a target directory
	TargetDirectory string `json:"targetDirectory,omitempty" yaml:"targetDirectory,omitempty"`
}

// DefaultConfig returns single worker configuration
func DefaultConfig() Config {
	return Config{
		Workers:         1,
		Timeout:         5 * time.Minute,
		Burst:           1,
		ChunkSize:       64 * 1024,
		TargetDirectory: "/tmp/artifex/artifacts",
	}
}

func (c *Config) init() {
	defaults := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	if c.Burst <= 0 {
		c.Burst = defaults.Burst
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaults.ChunkSize
	}
	if c.TargetDirectory == "" {
		c.TargetDirectory = defaults.TargetDirectory
	}
}
