// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/rs/zerolog"

	"github.com/pdiddy/rivalry-research/internal/aggregate"
	"github.com/pdiddy/rivalry-research/internal/contentstore"
	"github.com/pdiddy/rivalry-research/internal/fetch"
	"github.com/pdiddy/rivalry-research/internal/registry"
	"github.com/pdiddy/rivalry-research/pkg/types"
)

// app holds the components shared by subcommands.
type app struct {
	registry *registry.Store
	content  *contentstore.Store
	manual   *fetch.ManualFetcher
	agg      *aggregate.Aggregator
}

// openApp opens the registry and content store described by c.
func openApp(c types.Config, logger zerolog.Logger) (*app, error) {
	reg, err := registry.Open(c.Storage.DatabasePath, registry.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	content, err := contentstore.New(c.Storage.ContentDir)
	if err != nil {
		reg.Close()
		return nil, err
	}

	manual := fetch.NewManualFetcher(c.Storage.ManualDir, logger)
	agg := aggregate.New(reg, content, buildFetchers(c.Providers, manual, logger),
		aggregate.WithLogger(logger),
		aggregate.WithFetchTimeout(c.Aggregation.FetchTimeout),
		aggregate.WithMaxConcurrent(c.Aggregation.MaxConcurrentProviders),
	)
	return &app{registry: reg, content: content, manual: manual, agg: agg}, nil
}

func (a *app) Close() error {
	return a.registry.Close()
}

// buildFetchers returns the enabled providers in a fixed order.
func buildFetchers(p types.ProviderConfig, manual *fetch.ManualFetcher, logger zerolog.Logger) []fetch.Fetcher {
	var out []fetch.Fetcher
	if p.EnableWikipedia {
		f := fetch.NewWikipediaFetcher(p.HTTPConfig)
		f.Client.Logger = logger
		out = append(out, f)
	}
	if p.EnableArxiv {
		f := fetch.NewArxivFetcher(p)
		f.Client.Logger = logger
		out = append(out, f)
	}
	if p.EnableSemanticScholar {
		f := fetch.NewSemanticScholarFetcher(p)
		f.Client.Logger = logger
		out = append(out, f)
	}
	if p.EnableOpenAlex {
		f := fetch.NewOpenAlexFetcher(p)
		f.Client.Logger = logger
		out = append(out, f)
	}
	if p.EnableManual && manual != nil {
		out = append(out, manual)
	}
	return out
}
