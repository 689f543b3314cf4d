// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"math"
	"time"
)

// EntityBoth is the TimelineEvent.EntityID sentinel for events that concern
// both entities of a pair.
const EntityBoth = "both"

// EventSource cites a catalog Source from a timeline event.
type EventSource struct {
	SourceID       string `json:"source_id"`
	SupportingText string `json:"supporting_text,omitempty"`
}

// TimelineEvent is one dated event of a rivalry timeline. The source count,
// multiple/primary flags and confidence are derived from the cited sources by
// Resolve and cannot be set independently.
type TimelineEvent struct {
	Date             string        `json:"date"`
	EventType        string        `json:"event_type"`
	Description      string        `json:"description"`
	EntityID         string        `json:"entity_id"`
	RivalryRelevance string        `json:"rivalry_relevance,omitempty"`
	Sources          []EventSource `json:"sources"`

	sourceCount int
	hasMultiple bool
	hasPrimary  bool
	confidence  float64
}

// SourceCount is the number of cited sources that resolved in the catalog.
func (e TimelineEvent) SourceCount() int { return e.sourceCount }

// HasMultipleSources reports SourceCount() > 1.
func (e TimelineEvent) HasMultipleSources() bool { return e.hasMultiple }

// HasPrimarySource reports whether any resolved source is primary.
func (e TimelineEvent) HasPrimarySource() bool { return e.hasPrimary }

// Confidence is derived from the credibility of the resolved sources.
func (e TimelineEvent) Confidence() float64 { return e.confidence }

// Resolve looks up each cited source in catalog and recomputes the derived
// fields. It returns the ids that did not resolve.
func (e *TimelineEvent) Resolve(catalog map[string]Source) []string {
	var (
		resolved   []Source
		unresolved []string
	)
	for _, es := range e.Sources {
		src, ok := catalog[es.SourceID]
		if !ok {
			unresolved = append(unresolved, es.SourceID)
			continue
		}
		resolved = append(resolved, src)
	}

	e.sourceCount = len(resolved)
	e.hasMultiple = len(resolved) > 1
	e.hasPrimary = false
	for _, s := range resolved {
		if s.IsPrimarySource {
			e.hasPrimary = true
			break
		}
	}
	e.confidence = EventConfidence(resolved, e.hasMultiple, e.hasPrimary)
	return unresolved
}

// EventConfidence averages source credibility and adds 0.1 for multiple
// sources and 0.1 for a primary source, capped at 1 and rounded to two
// decimals. No sources means zero confidence.
func EventConfidence(sources []Source, multiple, primary bool) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sources {
		sum += s.CredibilityScore
	}
	c := sum / float64(len(sources))
	if multiple {
		c += 0.1
	}
	if primary {
		c += 0.1
	}
	return math.Round(math.Min(1.0, c)*100) / 100
}

type timelineEventAlias TimelineEvent

type timelineEventJSON struct {
	timelineEventAlias
	SourceCount        int     `json:"source_count"`
	HasMultipleSources bool    `json:"has_multiple_sources"`
	HasPrimarySource   bool    `json:"has_primary_source"`
	Confidence         float64 `json:"confidence"`
}

// MarshalJSON includes the derived fields in the output.
func (e TimelineEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(timelineEventJSON{
		timelineEventAlias: timelineEventAlias(e),
		SourceCount:        e.sourceCount,
		HasMultipleSources: e.hasMultiple,
		HasPrimarySource:   e.hasPrimary,
		Confidence:         e.confidence,
	})
}

// UnmarshalJSON reads the event inputs only; derived fields stay zero until
// Resolve is called.
func (e *TimelineEvent) UnmarshalJSON(data []byte) error {
	var a timelineEventAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = TimelineEvent(a)
	e.sourceCount, e.hasMultiple, e.hasPrimary, e.confidence = 0, false, false, 0
	return nil
}

// RivalryEntity is an entity with the biographical context shown alongside an
// analysis.
type RivalryEntity struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	BirthDate   string   `json:"birth_date,omitempty"`
	DeathDate   string   `json:"death_date,omitempty"`
	Occupations []string `json:"occupations,omitempty"`
	Nationality string   `json:"nationality,omitempty"`
}

// NewRivalryEntity copies the biographical fields of e.
func NewRivalryEntity(e Entity) RivalryEntity {
	return RivalryEntity{
		ID:          e.ID,
		Label:       e.Label,
		Description: e.Description,
		BirthDate:   e.BirthDate,
		DeathDate:   e.DeathDate,
		Occupations: e.Occupations,
		Nationality: e.Nationality,
	}
}

// DateRange is the earliest and latest publication date in a catalog.
type DateRange struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

// SourcesSummary holds aggregate statistics for a catalog.
type SourcesSummary struct {
	TotalSources       int                    `json:"total_sources"`
	ByType             map[SourceCategory]int `json:"by_type"`
	PrimarySources     int                    `json:"primary_sources"`
	SecondarySources   int                    `json:"secondary_sources"`
	AverageCredibility float64                `json:"average_credibility"`
	DateRange          *DateRange             `json:"date_range,omitempty"`
}

// AnalysisMetadata records how an analysis was produced.
type AnalysisMetadata struct {
	RunID           string   `json:"run_id"`
	PipelineVersion string   `json:"pipeline_version"`
	Model           string   `json:"model,omitempty"`
	SourcesSearched []string `json:"sources_searched"`
	TotalSources    int      `json:"total_sources"`
}

// RivalryData is the scored relationship analysis produced by the external
// analysis consumer and finalized against the source catalog.
type RivalryData struct {
	Entity1            RivalryEntity     `json:"entity1"`
	Entity2            RivalryEntity     `json:"entity2"`
	RivalryExists      bool              `json:"rivalry_exists"`
	RivalryScore       float64           `json:"rivalry_score"`
	RivalryPeriodStart string            `json:"rivalry_period_start,omitempty"`
	RivalryPeriodEnd   string            `json:"rivalry_period_end,omitempty"`
	Summary            string            `json:"summary"`
	Timeline           []TimelineEvent   `json:"timeline"`
	Sources            map[string]Source `json:"sources"`
	SourcesSummary     SourcesSummary    `json:"sources_summary"`
	Metadata           AnalysisMetadata  `json:"analysis_metadata"`
	AnalyzedAt         time.Time         `json:"analyzed_at"`
}

// ID returns the "<entity1>_<entity2>" identifier used for storage.
func (r RivalryData) ID() string {
	return r.Entity1.ID + "_" + r.Entity2.ID
}
