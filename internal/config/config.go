// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads settings through viper and builds the process logger.
// Values come from, in increasing precedence: defaults, the config file,
// RIVALRY_RESEARCH_* environment variables and bound command flags.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

// EnvPrefix is the environment variable prefix. Nested keys use
// underscores: RIVALRY_RESEARCH_STORAGE_DATA_DIR.
const EnvPrefix = "RIVALRY_RESEARCH"

// DefaultUserAgent identifies the client to providers.
const DefaultUserAgent = "rivalry-research/0.1 (https://github.com/pdiddy/rivalry-research)"

var defaults = map[string]any{
	"providers.timeout":                  30 * time.Second,
	"providers.user_agent":               DefaultUserAgent,
	"providers.enable_wikipedia":         true,
	"providers.enable_arxiv":             true,
	"providers.enable_semantic_scholar":  true,
	"providers.enable_openalex":          true,
	"providers.enable_manual":            true,
	"providers.download_pdfs":            true,
	"providers.max_results":              3,
	"providers.semantic_scholar_api_key": "",
	"providers.openalex_email":           "",

	"storage.data_dir":      "data",
	"storage.database_path": "",
	"storage.content_dir":   "",
	"storage.manual_dir":    "",
	"storage.analyses_dir":  "",

	"aggregation.fetch_timeout":            60 * time.Second,
	"aggregation.max_concurrent_providers": 0,

	"logging.level":  "info",
	"logging.format": "console",
}

// SetDefaults registers every known key with its default so that
// environment variables bind to it.
func SetDefaults(v *viper.Viper) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// BindEnv makes v read RIVALRY_RESEARCH_* variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes v into a Config, fills derived storage paths and validates
// the result.
func Load(v *viper.Viper) (types.Config, error) {
	SetDefaults(v)

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	resolvePaths(&cfg.Storage)

	if err := validator.New().Struct(cfg); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Aggregation.FetchTimeout <= 0 {
		return types.Config{}, fmt.Errorf("invalid config: aggregation.fetch_timeout must be positive, got %s", cfg.Aggregation.FetchTimeout)
	}
	return cfg, nil
}

// resolvePaths places unset storage locations under DataDir.
func resolvePaths(s *types.StorageConfig) {
	if s.DatabasePath == "" {
		s.DatabasePath = filepath.Join(s.DataDir, "sources.db")
	}
	if s.ContentDir == "" {
		s.ContentDir = filepath.Join(s.DataDir, "raw_sources")
	}
	if s.ManualDir == "" {
		s.ManualDir = filepath.Join(s.DataDir, "manual_sources")
	}
	if s.AnalysesDir == "" {
		s.AnalysesDir = filepath.Join(s.DataDir, "analyses")
	}
}
