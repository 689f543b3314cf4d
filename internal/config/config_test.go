// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Providers.Timeout)
	assert.Equal(t, DefaultUserAgent, cfg.Providers.UserAgent)
	assert.True(t, cfg.Providers.EnableWikipedia)
	assert.True(t, cfg.Providers.EnableManual)
	assert.Equal(t, 3, cfg.Providers.MaxResults)
	assert.Equal(t, 60*time.Second, cfg.Aggregation.FetchTimeout)

	assert.Equal(t, filepath.Join("data", "sources.db"), cfg.Storage.DatabasePath)
	assert.Equal(t, filepath.Join("data", "raw_sources"), cfg.Storage.ContentDir)
	assert.Equal(t, filepath.Join("data", "manual_sources"), cfg.Storage.ManualDir)
	assert.Equal(t, filepath.Join("data", "analyses"), cfg.Storage.AnalysesDir)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadFileAndEnv(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
providers:
  timeout: 5s
  enable_arxiv: false
  max_results: 7
storage:
  data_dir: /srv/rivalry
  content_dir: /mnt/content
aggregation:
  max_concurrent_providers: 2
logging:
  format: json
`)))
	t.Setenv("RIVALRY_RESEARCH_PROVIDERS_OPENALEX_EMAIL", "ops@example.org")
	t.Setenv("RIVALRY_RESEARCH_LOGGING_LEVEL", "debug")
	BindEnv(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Providers.Timeout)
	assert.False(t, cfg.Providers.EnableArxiv)
	assert.True(t, cfg.Providers.EnableOpenAlex)
	assert.True(t, cfg.Providers.DownloadPDFs)
	assert.Equal(t, 7, cfg.Providers.MaxResults)
	assert.Equal(t, "ops@example.org", cfg.Providers.OpenAlexEmail)
	assert.Equal(t, "/mnt/content", cfg.Storage.ContentDir)
	assert.Equal(t, filepath.Join("/srv/rivalry", "sources.db"), cfg.Storage.DatabasePath)
	assert.Equal(t, 2, cfg.Aggregation.MaxConcurrentProviders)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"log format", "logging.format", "xml"},
		{"max results", "providers.max_results", 500},
		{"empty user agent", "providers.user_agent", ""},
		{"negative concurrency", "aggregation.max_concurrent_providers", -1},
		{"zero fetch timeout", "aggregation.fetch_timeout", "0s"},
		{"empty data dir", "storage.data_dir", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(types.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("provider", "arxiv").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "arxiv", entry["provider"])
	assert.Equal(t, "shown", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(types.LoggingConfig{Level: "chatty", Format: "console"}, &buf)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger.Debug().Msg("hidden")
	logger.Info().Msg("visible")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}
