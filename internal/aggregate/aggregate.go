// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate collects sources for entities from every configured
// provider, deduplicates them by URL against the registry and persists new
// ones. Calling CollectSources again for the same entity only reads records
// it has already seen.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/rivalry-research/internal/contentstore"
	"github.com/pdiddy/rivalry-research/internal/credibility"
	"github.com/pdiddy/rivalry-research/internal/fetch"
	"github.com/pdiddy/rivalry-research/internal/registry"
	"github.com/pdiddy/rivalry-research/pkg/types"
)

// DefaultFetchTimeout bounds one provider fetch for one entity.
const DefaultFetchTimeout = 60 * time.Second

// Registry is the subset of the source registry the aggregator uses.
// InsertOrGet on *registry.Store absorbs a lost race itself; other
// implementations may instead report it as *registry.DuplicateSourceError,
// which the aggregator recovers by re-reading the winner's row.
type Registry interface {
	GetByURL(ctx context.Context, url string) (*types.Source, error)
	GetByID(ctx context.Context, id string) (types.Source, error)
	InsertOrGet(ctx context.Context, src types.Source) (types.Source, bool, error)
	UpdateContentMetadata(ctx context.Context, sourceID, contentPath, contentHash string) error
	LinkEntity(ctx context.Context, sourceID, entityID string) error
}

// Aggregator orchestrates fetchers, the registry and the content store.
type Aggregator struct {
	registry      Registry
	content       *contentstore.Store
	fetchers      []fetch.Fetcher
	logger        zerolog.Logger
	fetchTimeout  time.Duration
	maxConcurrent int
	now           func() time.Time
	validate      *validator.Validate

	// flight serializes resolution per URL inside this process. The
	// registry's unique index covers everything else.
	flight singleflight.Group
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithFetchTimeout sets the per-provider fetch timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

// WithMaxConcurrent limits how many providers run at once for one entity.
// Zero means no limit.
func WithMaxConcurrent(n int) Option {
	return func(a *Aggregator) { a.maxConcurrent = n }
}

// WithClock sets the time source used for RetrievedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New returns an Aggregator over reg and content using fetchers.
func New(reg Registry, content *contentstore.Store, fetchers []fetch.Fetcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		registry:     reg,
		content:      content,
		fetchers:     fetchers,
		logger:       zerolog.Nop(),
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		validate:     validator.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Collection is the result of collecting sources for one entity.
type Collection struct {
	EntityID string

	// Sources are ordered by credibility, then retrieval time, then id.
	Sources []types.Source

	Inserted int
	Reused   int

	// Failures lists providers that could not deliver for this entity and
	// candidates skipped as malformed.
	Failures []*fetch.FetchFailure

	// MissingContent lists ids of reused sources whose stored content is
	// gone from the content store.
	MissingContent []string
}

// resolution is the outcome of resolving one candidate.
type resolution struct {
	source         types.Source
	reused         bool
	missingContent bool
}

// CollectSources runs every fetcher for entity and resolves each candidate
// against the registry. Provider failures are logged and recorded; storage
// failures and unknown categories abort the collection.
func (a *Aggregator) CollectSources(ctx context.Context, entity types.Entity) (Collection, error) {
	if err := a.validate.Struct(entity); err != nil {
		return Collection{}, fmt.Errorf("invalid entity: %w", err)
	}

	coll := Collection{EntityID: entity.ID}
	var (
		mu   sync.Mutex
		seen = map[string]bool{}
	)

	g, gctx := errgroup.WithContext(ctx)
	if a.maxConcurrent > 0 {
		g.SetLimit(a.maxConcurrent)
	}

	for _, f := range a.fetchers {
		g.Go(func() error {
			candidates, err := a.fetchOne(gctx, f, entity)
			if err != nil {
				mu.Lock()
				coll.Failures = append(coll.Failures, err)
				mu.Unlock()
				return nil
			}

			for _, cand := range candidates {
				if ff := a.checkCandidate(f, entity, cand); ff != nil {
					mu.Lock()
					coll.Failures = append(coll.Failures, ff)
					mu.Unlock()
					continue
				}

				res, err := a.resolve(gctx, entity, f.Category(), cand)
				if err != nil {
					return fmt.Errorf("%s: %w", f.Name(), err)
				}

				mu.Lock()
				if !seen[res.source.SourceID] {
					seen[res.source.SourceID] = true
					coll.Sources = append(coll.Sources, res.source)
					if res.reused {
						coll.Reused++
					} else {
						coll.Inserted++
					}
					if res.missingContent {
						coll.MissingContent = append(coll.MissingContent, res.source.SourceID)
					}
				}
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Collection{}, fmt.Errorf("collecting sources for %s: %w", entity.ID, err)
	}

	SortSources(coll.Sources)
	sort.Strings(coll.MissingContent)
	sort.Slice(coll.Failures, func(i, j int) bool { return coll.Failures[i].Provider < coll.Failures[j].Provider })

	a.logger.Info().
		Str("entity", entity.ID).
		Int("sources", len(coll.Sources)).
		Int("inserted", coll.Inserted).
		Int("reused", coll.Reused).
		Int("failed_providers", len(coll.Failures)).
		Msg("collected sources")
	return coll, nil
}

// fetchOne runs one fetcher under its own timeout. Every error comes back
// as a *fetch.FetchFailure.
func (a *Aggregator) fetchOne(ctx context.Context, f fetch.Fetcher, entity types.Entity) ([]fetch.Candidate, *fetch.FetchFailure) {
	fctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	start := time.Now()
	candidates, err := f.Fetch(fctx, entity)
	if err != nil {
		var ff *fetch.FetchFailure
		if !errors.As(err, &ff) {
			kind := fetch.KindUpstream
			if errors.Is(err, context.DeadlineExceeded) {
				kind = fetch.KindTimeout
			}
			ff = &fetch.FetchFailure{Provider: f.Name(), EntityID: entity.ID, Kind: kind, Err: err}
		}
		a.logger.Warn().
			Str("provider", ff.Provider).
			Str("entity", entity.ID).
			Str("kind", string(ff.Kind)).
			Err(ff.Err).
			Msg("provider fetch failed, continuing with remaining providers")
		return nil, ff
	}

	a.logger.Debug().
		Str("provider", f.Name()).
		Str("entity", entity.ID).
		Int("candidates", len(candidates)).
		Dur("elapsed", time.Since(start)).
		Msg("provider fetch done")
	return candidates, nil
}

// checkCandidate rejects provider output that cannot become a Source: no
// URL, or details of another category than the source type. An unknown
// category is left to the credibility lookup, where it is fatal.
func (a *Aggregator) checkCandidate(f fetch.Fetcher, entity types.Entity, cand fetch.Candidate) *fetch.FetchFailure {
	var err error
	typ := cand.Source.Type
	if typ == "" {
		typ = f.Category()
	}
	switch {
	case cand.Source.URL == "":
		err = fmt.Errorf("candidate %q has no url", cand.Source.Title)
	case cand.Source.Details != nil && cand.Source.Details.Category() != typ:
		err = fmt.Errorf("candidate %s: details kind %s does not match type %s", cand.Source.URL, cand.Source.Details.Category(), typ)
	default:
		return nil
	}

	a.logger.Warn().
		Str("provider", f.Name()).
		Str("entity", entity.ID).
		Err(err).
		Msg("skipping malformed candidate")
	return &fetch.FetchFailure{Provider: f.Name(), EntityID: entity.ID, Kind: fetch.KindMalformed, Err: err}
}

// resolve turns a candidate into a registered source, linked to entity.
// Concurrent calls for the same URL share one resolution. The shared work
// is detached from any single caller's cancellation; a caller whose ctx
// ends stops waiting without failing the others.
func (a *Aggregator) resolve(ctx context.Context, entity types.Entity, fallback types.SourceCategory, cand fetch.Candidate) (resolution, error) {
	url := cand.Source.URL
	ch := a.flight.DoChan(url, func() (any, error) {
		return a.resolveURL(context.WithoutCancel(ctx), fallback, cand)
	})

	var res resolution
	select {
	case <-ctx.Done():
		return resolution{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return resolution{}, r.Err
		}
		res = r.Val.(resolution)
	}

	if err := a.registry.LinkEntity(ctx, res.source.SourceID, entity.ID); err != nil {
		return resolution{}, err
	}
	return res, nil
}

// resolveURL registers the URL first and only then writes content, so
// writers that lose the insert race never touch the winner's files.
func (a *Aggregator) resolveURL(ctx context.Context, fallback types.SourceCategory, cand fetch.Candidate) (resolution, error) {
	url := cand.Source.URL

	existing, err := a.registry.GetByURL(ctx, url)
	if err != nil {
		return resolution{}, err
	}
	if existing != nil {
		return a.reuse(ctx, *existing, cand)
	}

	src, err := a.prepare(fallback, cand)
	if err != nil {
		return resolution{}, err
	}

	stored, created, err := a.registry.InsertOrGet(ctx, src)
	if err != nil {
		var dup *registry.DuplicateSourceError
		if !errors.As(err, &dup) {
			return resolution{}, err
		}
		found, rerr := a.registry.GetByURL(ctx, url)
		if rerr != nil {
			return resolution{}, rerr
		}
		if found == nil {
			return resolution{}, fmt.Errorf("source for %s vanished after duplicate insert: %w", url, err)
		}
		stored, created = *found, false
	}
	if !created {
		a.logger.Debug().Str("url", url).Str("source_id", stored.SourceID).Msg("lost insert race, reusing existing source")
		return a.reuse(ctx, stored, cand)
	}

	if err := a.storeContent(ctx, &stored, cand); err != nil {
		return resolution{}, err
	}

	a.logger.Info().
		Str("source_id", stored.SourceID).
		Str("type", string(stored.Type)).
		Str("url", url).
		Msg("registered new source")
	return resolution{source: stored}, nil
}

// prepare fills identity, credibility and provenance for a new candidate.
func (a *Aggregator) prepare(fallback types.SourceCategory, cand fetch.Candidate) (types.Source, error) {
	src := cand.Source
	if src.Type == "" {
		src.Type = fallback
	}

	score, primary, err := credibility.ScoreFor(src.Type)
	if err != nil {
		return types.Source{}, err
	}

	src.SourceID = types.SourceID(src.URL)
	src.CredibilityScore = score
	src.IsPrimarySource = primary || cand.Source.IsPrimarySource
	src.IsManual = src.Type == types.CategoryManual
	src.RetrievedAt = a.now().UTC()
	src.StoredContentPath = ""
	src.ContentHash = ""
	return src, nil
}

// storeContent writes the candidate's original bytes and text rendering and
// records the content path and hash on src and in the registry. Files are
// write-once: when another writer stored the text first, its bytes are kept
// and hashed instead, so the registry always describes what is on disk.
func (a *Aggregator) storeContent(ctx context.Context, src *types.Source, cand fetch.Candidate) error {
	if len(cand.Original) > 0 && cand.OriginalExt != "" {
		if _, _, err := a.content.Create(src.URL, contentstore.OriginalName(cand.OriginalExt), cand.Original); err != nil {
			return err
		}
	}
	if len(cand.Content) == 0 {
		return nil
	}

	rel, created, err := a.content.Create(src.URL, contentstore.ContentFile, cand.Content)
	if err != nil {
		return err
	}
	hash := types.ContentHash(cand.Content)
	if !created {
		body, err := a.content.Get(rel)
		if err != nil {
			return err
		}
		hash = types.ContentHash(body)
	}

	if err := a.registry.UpdateContentMetadata(ctx, src.SourceID, rel, hash); err != nil {
		return err
	}
	src.StoredContentPath = rel
	src.ContentHash = hash
	return nil
}

// reuse returns an existing record unchanged. A record that never got
// content is completed from the candidate; drift and missing files are
// only reported.
func (a *Aggregator) reuse(ctx context.Context, existing types.Source, cand fetch.Candidate) (resolution, error) {
	res := resolution{source: existing, reused: true}
	log := a.logger.With().Str("source_id", existing.SourceID).Str("url", existing.URL).Logger()

	switch {
	case !existing.HasContent():
		if len(cand.Content) == 0 {
			return res, nil
		}
		src := existing
		if err := a.storeContent(ctx, &src, cand); err != nil {
			return resolution{}, err
		}
		log.Info().Msg("stored content for existing source")
		res.source = src

	case !a.content.Exists(existing.StoredContentPath):
		log.Warn().
			Err(fmt.Errorf("%w: %s", types.ErrMalformedExistingRecord, existing.StoredContentPath)).
			Msg("stored content missing, returning metadata only")
		res.missingContent = true

	case len(cand.Content) > 0 && existing.ContentHash != "" && types.ContentHash(cand.Content) != existing.ContentHash:
		log.Info().Msg("upstream content changed since first fetch, keeping stored version")
	}
	return res, nil
}

// SortSources orders sources by credibility descending, then retrieval
// time, then id.
func SortSources(sources []types.Source) {
	sort.SliceStable(sources, func(i, j int) bool {
		a, b := sources[i], sources[j]
		if a.CredibilityScore != b.CredibilityScore {
			return a.CredibilityScore > b.CredibilityScore
		}
		if !a.RetrievedAt.Equal(b.RetrievedAt) {
			return a.RetrievedAt.Before(b.RetrievedAt)
		}
		return a.SourceID < b.SourceID
	})
}
