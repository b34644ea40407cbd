package artifex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/artifex/internal/expand"
	"github.com/viant/artifex/service/messaging"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the processor configuration.
// Zero values of nested fields fall back to DefaultConfig when loaded with
// LoadConfig.
type Config struct {
	Processor    ProcessorConfig    `json:"processor" yaml:"processor"`
	Fetch        FetchConfig        `json:"fetch" yaml:"fetch"`
	Verification VerificationConfig `json:"verification" yaml:"verification"`
	Queue        QueueConfig        `json:"queue" yaml:"queue"`
	Store        StoreConfig        `json:"store" yaml:"store"`
	Tracing      TracingConfig      `json:"tracing" yaml:"tracing"`
	Metrics      MetricsConfig      `json:"metrics" yaml:"metrics"`
}

type ProcessorConfig struct {
	ID      string `json:"id" yaml:"id"`
	Workers int    `json:"workers" yaml:"workers"`
}

type FetchConfig struct {
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
	RateLimit       float64       `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`
	Burst           int           `json:"burst,omitempty" yaml:"burst,omitempty"`
	ChunkSize       int           `json:"chunkSize,omitempty" yaml:"chunkSize,omitempty"`
	TargetDirectory string        `json:"targetDirectory,omitempty" yaml:"targetDirectory,omitempty"`
	// Environments maps location environment codes to storage base URLs
	Environments map[string]string `json:"environments,omitempty" yaml:"environments,omitempty"`
}

type VerificationConfig struct {
	RequireChecksum bool `json:"requireChecksum,omitempty" yaml:"requireChecksum,omitempty"`
	// PublicKeyURL locates the dispatcher PEM public key
	PublicKeyURL string `json:"publicKeyURL,omitempty" yaml:"publicKeyURL,omitempty"`
	// PublicKeySecret is the scy key decrypting PublicKeyURL, e.g. blowfish://default
	PublicKeySecret string `json:"publicKeySecret,omitempty" yaml:"publicKeySecret,omitempty"`
}

type QueueConfig struct {
	Vendor  string `json:"vendor" yaml:"vendor"`
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
}

type StoreConfig struct {
	DSN          string        `json:"dsn" yaml:"dsn"`
	RedisAddress string        `json:"redisAddress,omitempty" yaml:"redisAddress,omitempty"`
	CacheTTL     time.Duration `json:"cacheTTL,omitempty" yaml:"cacheTTL,omitempty"`
}

type TracingConfig struct {
	Enabled bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Output  string `json:"output,omitempty" yaml:"output,omitempty"`
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// DefaultConfig returns a single worker, in-memory configuration
func DefaultConfig() *Config {
	return &Config{
		Processor: ProcessorConfig{ID: "artifex", Workers: 1},
		Fetch: FetchConfig{
			Timeout:         5 * time.Minute,
			Burst:           1,
			ChunkSize:       64 * 1024,
			TargetDirectory: "/tmp/artifex/artifacts",
		},
		Queue: QueueConfig{Vendor: string(messaging.VendorMemory), BaseURL: "/tmp/artifex/queue"},
		Store: StoreConfig{DSN: ":memory:", CacheTTL: 10 * time.Minute},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Processor.Workers <= 0 {
		errs = append(errs, fmt.Errorf("processor.workers must be > 0"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout must be > 0"))
	}
	if c.Fetch.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("fetch.rateLimit must be >= 0"))
	}
	switch messaging.Vendor(c.Queue.Vendor) {
	case messaging.VendorMemory:
	case messaging.VendorFS:
		if c.Queue.BaseURL == "" {
			errs = append(errs, fmt.Errorf("queue.baseURL is required for %v vendor", c.Queue.Vendor))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported queue.vendor: %q", c.Queue.Vendor))
	}
	if c.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("store.dsn is required"))
	}
	return errors.Join(errs...)
}

// LoadConfig reads YAML configuration from any afs URL, expanding
// ${env.KEY} expressions before decoding on top of DefaultConfig.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	ret := DefaultConfig()
	if err = yaml.Unmarshal([]byte(expand.Env(string(data))), ret); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return ret, nil
}
