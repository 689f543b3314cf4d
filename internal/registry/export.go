// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

// ExportEntry is one source in an export document.
type ExportEntry struct {
	SourceID          string         `json:"source_id" yaml:"source_id"`
	Type              string         `json:"type" yaml:"type"`
	Title             string         `json:"title" yaml:"title"`
	Authors           []string       `json:"authors" yaml:"authors"`
	Publication       string         `json:"publication,omitempty" yaml:"publication,omitempty"`
	PublicationDate   string         `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`
	URL               string         `json:"url" yaml:"url"`
	DOI               string         `json:"doi,omitempty" yaml:"doi,omitempty"`
	RetrievedAt       string         `json:"retrieved_at" yaml:"retrieved_at"`
	CredibilityScore  float64        `json:"credibility_score" yaml:"credibility_score"`
	IsPrimarySource   bool           `json:"is_primary_source" yaml:"is_primary_source"`
	IsManual          bool           `json:"is_manual" yaml:"is_manual"`
	StoredContentPath string         `json:"stored_content_path,omitempty" yaml:"stored_content_path,omitempty"`
	ContentHash       string         `json:"content_hash,omitempty" yaml:"content_hash,omitempty"`
	Details           map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

// ExportYAML writes the sources linked to entityID (all sources when entityID
// is empty) as a YAML list.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, entityID string) error {
	entries, err := s.exportEntries(ctx, entityID)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the same entries as ExportYAML as an indented JSON array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, entityID string) error {
	entries, err := s.exportEntries(ctx, entityID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

func (s *Store) exportEntries(ctx context.Context, entityID string) ([]ExportEntry, error) {
	var (
		sources []types.Source
		err     error
	)
	if entityID == "" {
		sources, err = s.List(ctx)
	} else {
		sources, err = s.ListByEntity(ctx, entityID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEntry, len(sources))
	for i, src := range sources {
		entries[i] = ExportEntry{
			SourceID:          src.SourceID,
			Type:              string(src.Type),
			Title:             src.Title,
			Authors:           src.Authors,
			Publication:       src.Publication,
			PublicationDate:   src.PublicationDate,
			URL:               src.URL,
			DOI:               src.DOI,
			RetrievedAt:       src.RetrievedAt.UTC().Format(timeLayout),
			CredibilityScore:  src.CredibilityScore,
			IsPrimarySource:   src.IsPrimarySource,
			IsManual:          src.IsManual,
			StoredContentPath: src.StoredContentPath,
			ContentHash:       src.ContentHash,
		}
		if src.Details != nil {
			details, err := detailsMap(src.Details)
			if err != nil {
				return nil, err
			}
			entries[i].Details = details
		}
	}
	return entries, nil
}

func detailsMap(d types.SourceDetails) (map[string]any, error) {
	raw, err := types.MarshalDetails(d)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding details for export: %w", err)
	}
	return m, nil
}
