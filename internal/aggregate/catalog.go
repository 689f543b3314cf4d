// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

// Catalog is the deduplicated set of sources collected for an entity pair.
type Catalog struct {
	Entity1 Collection
	Entity2 Collection

	// Sources merges both collections, one entry per source id, in
	// credibility order.
	Sources []types.Source
}

// Map returns the catalog keyed by source id.
func (c Catalog) Map() map[string]types.Source {
	m := make(map[string]types.Source, len(c.Sources))
	for _, s := range c.Sources {
		m[s.SourceID] = s
	}
	return m
}

// IDs returns the source ids in catalog order.
func (c Catalog) IDs() []string {
	ids := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		ids[i] = s.SourceID
	}
	return ids
}

// CollectPair collects sources for both entities concurrently and merges
// them. A source cited for both entities appears once.
func (a *Aggregator) CollectPair(ctx context.Context, e1, e2 types.Entity) (Catalog, error) {
	var cat Catalog

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := a.CollectSources(gctx, e1)
		cat.Entity1 = c
		return err
	})
	g.Go(func() error {
		c, err := a.CollectSources(gctx, e2)
		cat.Entity2 = c
		return err
	})
	if err := g.Wait(); err != nil {
		return Catalog{}, fmt.Errorf("collecting pair %s/%s: %w", e1.ID, e2.ID, err)
	}

	cat.Sources = Merge(cat.Entity1.Sources, cat.Entity2.Sources)
	return cat, nil
}

// Merge combines source lists, keeping the first record per source id, and
// returns them in credibility order.
func Merge(lists ...[]types.Source) []types.Source {
	seen := map[string]bool{}
	var out []types.Source
	for _, list := range lists {
		for _, s := range list {
			if seen[s.SourceID] {
				continue
			}
			seen[s.SourceID] = true
			out = append(out, s)
		}
	}
	SortSources(out)
	return out
}
