// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analysis is the boundary between the source catalog and the
// external rivalry analysis. It hands the catalog to an Analyzer, checks
// that every cited source resolves, derives event confidence and summary
// statistics, and stores finished analyses.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/rivalry-research/internal/aggregate"
	"github.com/pdiddy/rivalry-research/pkg/types"
)

// PipelineVersion is recorded in the metadata of every finalized analysis.
const PipelineVersion = "2.0"

// Request is what an Analyzer receives: the entity pair and the catalog in
// credibility order.
type Request struct {
	Entity1 types.Entity
	Entity2 types.Entity
	Sources []types.Source

	// Content returns the stored text of a catalog source.
	Content func(types.Source) ([]byte, error)
}

// Analyzer produces a rivalry analysis from a request. Implementations call
// an external model; timeline events must cite catalog source ids only.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*types.RivalryData, error)
}

// UnresolvedCitation is a timeline citation whose source id is not in the
// catalog.
type UnresolvedCitation struct {
	Event    int
	SourceID string
}

// UnresolvedSourcesError reports citations that do not resolve in the
// catalog.
type UnresolvedSourcesError struct {
	Citations []UnresolvedCitation
}

func (e *UnresolvedSourcesError) Error() string {
	parts := make([]string, len(e.Citations))
	for i, c := range e.Citations {
		parts[i] = fmt.Sprintf("event %d cites %s", c.Event, c.SourceID)
	}
	return fmt.Sprintf("%d unresolved source citation(s): %s", len(e.Citations), strings.Join(parts, "; "))
}

// ErrInvalidAnalysis marks analyzer output that breaks the result contract.
var ErrInvalidAnalysis = errors.New("invalid analysis")

// Finalize attaches the catalog to data, resolves every timeline event
// against it and fills the summary and metadata. It fails with
// *UnresolvedSourcesError if any event cites a source outside the catalog.
func Finalize(data *types.RivalryData, sources []types.Source) error {
	if data == nil {
		return fmt.Errorf("%w: no analysis", ErrInvalidAnalysis)
	}
	if data.RivalryScore < 0 || data.RivalryScore > 1 || math.IsNaN(data.RivalryScore) {
		return fmt.Errorf("%w: rivalry score %v outside [0, 1]", ErrInvalidAnalysis, data.RivalryScore)
	}

	catalog := make(map[string]types.Source, len(sources))
	for _, s := range sources {
		catalog[s.SourceID] = s
	}

	var unresolved []UnresolvedCitation
	for i := range data.Timeline {
		ev := &data.Timeline[i]
		switch ev.EntityID {
		case data.Entity1.ID, data.Entity2.ID, types.EntityBoth:
		default:
			return fmt.Errorf("%w: event %d concerns %q, not %s, %s or %q",
				ErrInvalidAnalysis, i, ev.EntityID, data.Entity1.ID, data.Entity2.ID, types.EntityBoth)
		}
		for _, id := range ev.Resolve(catalog) {
			unresolved = append(unresolved, UnresolvedCitation{Event: i, SourceID: id})
		}
	}
	if len(unresolved) > 0 {
		return &UnresolvedSourcesError{Citations: unresolved}
	}

	data.Sources = catalog
	data.SourcesSummary = Summarize(sources)

	if data.Metadata.RunID == "" {
		data.Metadata.RunID = uuid.NewString()
	}
	data.Metadata.PipelineVersion = PipelineVersion
	data.Metadata.TotalSources = len(catalog)
	data.Metadata.SourcesSearched = searched(sources)
	if data.AnalyzedAt.IsZero() {
		data.AnalyzedAt = time.Now().UTC()
	}
	return nil
}

// Resolve recomputes the derived event fields of data against its own
// catalog. Used after loading, since derived fields are not read from JSON.
func Resolve(data *types.RivalryData) []UnresolvedCitation {
	var unresolved []UnresolvedCitation
	for i := range data.Timeline {
		for _, id := range data.Timeline[i].Resolve(data.Sources) {
			unresolved = append(unresolved, UnresolvedCitation{Event: i, SourceID: id})
		}
	}
	return unresolved
}

// Summarize computes catalog statistics. Publication dates compare as
// strings, which orders "YYYY" and "YYYY-MM-DD" correctly.
func Summarize(sources []types.Source) types.SourcesSummary {
	sum := types.SourcesSummary{ByType: map[types.SourceCategory]int{}}
	if len(sources) == 0 {
		return sum
	}

	var (
		credibility float64
		dates       []string
	)
	for _, s := range sources {
		sum.ByType[s.Type]++
		if s.IsPrimarySource {
			sum.PrimarySources++
		}
		credibility += s.CredibilityScore
		if s.PublicationDate != "" {
			dates = append(dates, s.PublicationDate)
		}
	}
	sum.TotalSources = len(sources)
	sum.SecondarySources = sum.TotalSources - sum.PrimarySources
	sum.AverageCredibility = math.Round(credibility/float64(len(sources))*100) / 100

	if len(dates) > 0 {
		sort.Strings(dates)
		sum.DateRange = &types.DateRange{Earliest: dates[0], Latest: dates[len(dates)-1]}
	}
	return sum
}

func searched(sources []types.Source) []string {
	seen := map[types.SourceCategory]bool{}
	out := []string{}
	for _, s := range sources {
		if !seen[s.Type] {
			seen[s.Type] = true
			out = append(out, string(s.Type))
		}
	}
	sort.Strings(out)
	return out
}

// Run collects sources for both entities, hands the catalog to analyzer and
// finalizes the result.
func Run(ctx context.Context, agg *aggregate.Aggregator, analyzer Analyzer, e1, e2 types.Entity) (*types.RivalryData, aggregate.Catalog, error) {
	cat, err := agg.CollectPair(ctx, e1, e2)
	if err != nil {
		return nil, aggregate.Catalog{}, err
	}

	data, err := analyzer.Analyze(ctx, Request{
		Entity1: e1,
		Entity2: e2,
		Sources: cat.Sources,
		Content: agg.Content,
	})
	if err != nil {
		return nil, cat, fmt.Errorf("analyzing %s/%s: %w", e1.ID, e2.ID, err)
	}
	if data == nil {
		return nil, cat, fmt.Errorf("%w: analyzer returned no result", ErrInvalidAnalysis)
	}

	data.Entity1 = types.NewRivalryEntity(e1)
	data.Entity2 = types.NewRivalryEntity(e2)
	if err := Finalize(data, cat.Sources); err != nil {
		return nil, cat, err
	}
	return data, cat, nil
}
