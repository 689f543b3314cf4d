// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package credibility maps source categories to a fixed trust score and a
// primary/secondary classification. It is a pure lookup: it never consults the
// network or the registry.
package credibility

import (
	"fmt"
	"sort"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

type entry struct {
	score   float64
	primary bool
}

// table has exactly one entry per provider category. A provider added
// without an entry fails at lookup time.
var table = map[types.SourceCategory]entry{
	types.CategoryWikipedia:     {score: 0.75, primary: false},
	types.CategoryAcademicPaper: {score: 0.95, primary: false},
	types.CategoryArxivPaper:    {score: 0.90, primary: false},
	types.CategoryManual:        {score: 0.50, primary: false},
}

// ScoreFor returns the credibility score in [0,1] and the default primary
// flag for category. Fetchers may still mark an individual source primary,
// for example a paper authored by the entity itself.
func ScoreFor(category types.SourceCategory) (float64, bool, error) {
	e, ok := table[category]
	if !ok {
		return 0, false, fmt.Errorf("%w: %q has no credibility entry", types.ErrUnknownSourceCategory, category)
	}
	return e.score, e.primary, nil
}

// Categories returns the categories with a table entry, sorted.
func Categories() []types.SourceCategory {
	out := make([]types.SourceCategory, 0, len(table))
	for c := range table {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
