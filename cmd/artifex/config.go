package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"github.com/viant/artifex"
	"gopkg.in/yaml.v3"
)

// loadConfig reads the --config URL, then overlays bound flags and
// ARTIFEX_* environment variables, e.g. ARTIFEX_FETCH_TIMEOUT=30s.
func loadConfig(ctx context.Context) (*artifex.Config, error) {
	cfg := artifex.DefaultConfig()
	if URL := viper.GetString("config"); URL != "" {
		loaded, err := artifex.LoadConfig(ctx, URL)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	settings := map[string]interface{}{}
	if err = yaml.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	if err = viper.MergeConfigMap(settings); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	// viper lower-cases map keys, environment codes are case sensitive
	environments := cfg.Fetch.Environments
	if err = viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config overrides: %w", err)
	}
	cfg.Fetch.Environments = environments
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
