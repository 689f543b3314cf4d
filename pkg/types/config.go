// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by providers that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout for a single request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "rivalry-research/0.1"). Wikipedia rejects anonymous clients.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
}

// ProviderConfig selects and tunes the provider fetchers.
type ProviderConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// EnableWikipedia controls whether encyclopedia articles are fetched.
	EnableWikipedia bool `json:"enable_wikipedia" yaml:"enable_wikipedia" mapstructure:"enable_wikipedia"`

	// EnableArxiv controls whether arXiv preprints are searched.
	EnableArxiv bool `json:"enable_arxiv" yaml:"enable_arxiv" mapstructure:"enable_arxiv"`

	// EnableSemanticScholar controls whether Semantic Scholar is searched.
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar" mapstructure:"enable_semantic_scholar"`

	// EnableOpenAlex controls whether OpenAlex is searched.
	EnableOpenAlex bool `json:"enable_openalex" yaml:"enable_openalex" mapstructure:"enable_openalex"`

	// EnableManual controls whether the manual documents directory is scanned.
	EnableManual bool `json:"enable_manual" yaml:"enable_manual" mapstructure:"enable_manual"`

	// DownloadPDFs fetches open-access paper PDFs and extracts their full
	// text into the stored rendering.
	DownloadPDFs bool `json:"download_pdfs" yaml:"download_pdfs" mapstructure:"download_pdfs"`

	// MaxResults caps the number of papers taken from each search provider (default 3).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results" validate:"gte=0,lte=50"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// OpenAlexEmail is sent as mailto for OpenAlex polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty" mapstructure:"openalex_email"`
}

// StorageConfig locates the registry database, the content store and
// saved analyses. Paths recorded in the registry are relative to ContentDir.
type StorageConfig struct {
	// DataDir is the base directory (contains sources.db, raw_sources/, analyses/).
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir" validate:"required"`

	// DatabasePath overrides DataDir/sources.db.
	DatabasePath string `json:"database_path,omitempty" yaml:"database_path,omitempty" mapstructure:"database_path"`

	// ContentDir overrides DataDir/raw_sources.
	ContentDir string `json:"content_dir,omitempty" yaml:"content_dir,omitempty" mapstructure:"content_dir"`

	// ManualDir overrides DataDir/manual_sources.
	ManualDir string `json:"manual_dir,omitempty" yaml:"manual_dir,omitempty" mapstructure:"manual_dir"`

	// AnalysesDir overrides DataDir/analyses.
	AnalysesDir string `json:"analyses_dir,omitempty" yaml:"analyses_dir,omitempty" mapstructure:"analyses_dir"`
}

// AggregationConfig tunes the source aggregator.
type AggregationConfig struct {
	// FetchTimeout bounds each provider fetch for one entity (default 60s).
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout" mapstructure:"fetch_timeout"`

	// MaxConcurrentProviders limits concurrent provider fetches per entity
	// (0 means no limit).
	MaxConcurrentProviders int `json:"max_concurrent_providers" yaml:"max_concurrent_providers" mapstructure:"max_concurrent_providers" validate:"gte=0"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	// Level is a zerolog level name (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "json" or "console".
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"omitempty,oneof=json console"`
}

// Config groups all settings.
type Config struct {
	Providers   ProviderConfig    `json:"providers" yaml:"providers" mapstructure:"providers"`
	Storage     StorageConfig     `json:"storage" yaml:"storage" mapstructure:"storage"`
	Aggregation AggregationConfig `json:"aggregation" yaml:"aggregation" mapstructure:"aggregation"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging" mapstructure:"logging"`
}
