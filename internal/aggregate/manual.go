// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"context"
	"fmt"

	"github.com/pdiddy/rivalry-research/internal/fetch"
	"github.com/pdiddy/rivalry-research/pkg/types"
)

// ManualDocument is an externally supplied document for one entity.
type ManualDocument struct {
	// Slug names the document within the entity; it becomes the last
	// segment of manual://<entity>/<slug>.
	Slug string `validate:"required,max=100,excludesall=/\\ "`

	Title           string   `validate:"required"`
	Authors         []string `validate:"dive,required"`
	Publication     string
	PublicationDate string
	Primary         bool

	// Ext is the format of Body: html, md, txt or pdf.
	Ext  string `validate:"required,oneof=html md txt pdf"`
	Body []byte `validate:"required"`
}

// IngestManual registers a manual document for entity through the same
// dedup path as fetched sources. Ingesting the same slug again returns the
// existing record unchanged.
func (a *Aggregator) IngestManual(ctx context.Context, entity types.Entity, doc ManualDocument) (types.Source, error) {
	if err := a.validate.Struct(entity); err != nil {
		return types.Source{}, fmt.Errorf("invalid entity: %w", err)
	}
	if err := a.validate.Struct(doc); err != nil {
		return types.Source{}, fmt.Errorf("invalid manual document: %w", err)
	}

	meta := fetch.DocumentMeta{
		Title:           doc.Title,
		Authors:         doc.Authors,
		Publication:     doc.Publication,
		PublicationDate: doc.PublicationDate,
		Primary:         doc.Primary,
	}
	cand, err := fetch.NewManualCandidate(entity.ID, doc.Slug, meta, doc.Ext, doc.Body, "")
	if err != nil {
		return types.Source{}, err
	}

	res, err := a.resolve(ctx, entity, types.CategoryManual, cand)
	if err != nil {
		return types.Source{}, fmt.Errorf("ingesting %s: %w", cand.Source.URL, err)
	}
	return res.source, nil
}

// ScanResult sorts manual document directories by registry state.
type ScanResult struct {
	Registered  []types.Source
	Unprocessed []fetch.Document
	Invalid     []fetch.InvalidDocument
}

// Scan compares the manual document tree with the registry. An empty
// entityFilter scans every entity.
func (a *Aggregator) Scan(ctx context.Context, manual *fetch.ManualFetcher, entityFilter string) (ScanResult, error) {
	docs, invalid, err := manual.ListDocuments(entityFilter)
	if err != nil {
		return ScanResult{}, err
	}

	res := ScanResult{Invalid: invalid}
	for _, d := range docs {
		existing, err := a.registry.GetByURL(ctx, d.URI())
		if err != nil {
			return ScanResult{}, err
		}
		if existing != nil {
			res.Registered = append(res.Registered, *existing)
			continue
		}
		res.Unprocessed = append(res.Unprocessed, d)
	}

	a.logger.Info().
		Int("registered", len(res.Registered)).
		Int("unprocessed", len(res.Unprocessed)).
		Int("invalid", len(res.Invalid)).
		Msg("scanned manual documents")
	return res, nil
}

// ProcessDocuments registers scanned documents. Unreadable documents are
// logged and skipped.
func (a *Aggregator) ProcessDocuments(ctx context.Context, manual *fetch.ManualFetcher, docs []fetch.Document) ([]types.Source, error) {
	var out []types.Source
	for _, d := range docs {
		cand, err := manual.Load(d)
		if err != nil {
			a.logger.Warn().Str("dir", d.Dir).Err(err).Msg("skipping manual document")
			continue
		}
		res, err := a.resolve(ctx, d.Entity(), types.CategoryManual, cand)
		if err != nil {
			return out, fmt.Errorf("processing %s: %w", d.Dir, err)
		}
		out = append(out, res.source)
	}
	return out, nil
}
