// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"context"
	"fmt"

	"github.com/pdiddy/rivalry-research/internal/contentstore"
	"github.com/pdiddy/rivalry-research/pkg/types"
)

// Content returns the stored text of src.
func (a *Aggregator) Content(src types.Source) ([]byte, error) {
	if !src.HasContent() {
		return nil, fmt.Errorf("source %s has no stored content: %w", src.SourceID, contentstore.ErrContentMissing)
	}
	return a.content.Get(src.StoredContentPath)
}

// Refresh replaces the stored content of an existing source and updates its
// content hash. The source id, URL, credibility and retrieval time do not
// change. This is the only path that rewrites content for a known URL.
func (a *Aggregator) Refresh(ctx context.Context, sourceID string, content []byte) (types.Source, error) {
	if len(content) == 0 {
		return types.Source{}, fmt.Errorf("refresh of %s: empty content", sourceID)
	}

	src, err := a.registry.GetByID(ctx, sourceID)
	if err != nil {
		return types.Source{}, err
	}

	rel, err := a.content.Put(src.URL, contentstore.ContentFile, content)
	if err != nil {
		return types.Source{}, err
	}
	hash := types.ContentHash(content)
	if err := a.registry.UpdateContentMetadata(ctx, src.SourceID, rel, hash); err != nil {
		return types.Source{}, err
	}

	if src.ContentHash != hash {
		a.logger.Info().Str("source_id", src.SourceID).Str("url", src.URL).Msg("refreshed source content")
	}
	src.StoredContentPath = rel
	src.ContentHash = hash
	return src, nil
}
