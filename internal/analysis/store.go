// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

const analysisFile = "analysis.json"

// ErrAnalysisNotFound is returned by Load for an unknown analysis id.
var ErrAnalysisNotFound = errors.New("analysis not found")

// Store keeps analyses as <dir>/<entity1>_<entity2>/analysis.json.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// NewStore returns a store rooted at dir. The directory is created on the
// first Save.
func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Saved describes one stored analysis.
type Saved struct {
	ID         string
	Entity1ID  string
	Entity2ID  string
	Path       string
	AnalyzedAt time.Time
}

// Save writes data and returns the file path. An existing analysis for the
// same pair is replaced.
func (s *Store) Save(data *types.RivalryData) (string, error) {
	id := data.ID()
	if err := checkID(id); err != nil {
		return "", err
	}

	dir := filepath.Join(s.dir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating analysis directory: %w", err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling analysis: %w", err)
	}

	dest := filepath.Join(dir, analysisFile)
	tmp, err := os.CreateTemp(dir, ".analysis-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(append(raw, '\n'))
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing analysis: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming analysis file: %w", err)
	}

	s.logger.Info().Str("analysis", id).Str("path", dest).Msg("saved analysis")
	return dest, nil
}

// Load reads the analysis with id ("Q935_Q9047") and recomputes the derived
// timeline fields against its stored catalog.
func (s *Store) Load(id string) (*types.RivalryData, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, id, analysisFile)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", id, ErrAnalysisNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading analysis: %w", err)
	}

	var data types.RivalryData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if missing := Resolve(&data); len(missing) > 0 {
		s.logger.Warn().Str("analysis", id).Int("unresolved", len(missing)).Msg("stored analysis cites sources outside its catalog")
	}
	return &data, nil
}

// List returns stored analyses, most recent first. Directories that do not
// look like "<id>_<id>" or cannot be read are skipped with a warning.
func (s *Store) List() ([]Saved, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading analyses directory: %w", err)
	}

	var out []Saved
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, e.Name(), analysisFile)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		e1, e2, ok := strings.Cut(e.Name(), "_")
		if !ok || e1 == "" || e2 == "" || strings.Contains(e2, "_") {
			s.logger.Warn().Str("dir", e.Name()).Msg("unexpected analysis directory name")
			continue
		}

		saved := Saved{ID: e.Name(), Entity1ID: e1, Entity2ID: e2, Path: path}
		var head struct {
			AnalyzedAt time.Time `json:"analyzed_at"`
		}
		raw, err := os.ReadFile(path)
		if err == nil {
			err = json.Unmarshal(raw, &head)
		}
		if err != nil {
			s.logger.Warn().Str("analysis", e.Name()).Err(err).Msg("could not read analysis timestamp")
		}
		saved.AnalyzedAt = head.AnalyzedAt
		out = append(out, saved)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AnalyzedAt.Equal(out[j].AnalyzedAt) {
			return out[i].AnalyzedAt.After(out[j].AnalyzedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SourceLookup loads sources by id.
type SourceLookup interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]types.Source, error)
}

// Hydrate replaces the catalog copies in data with the current registry
// records and re-resolves the timeline. Sources missing from the registry
// keep their stored copy.
func (s *Store) Hydrate(ctx context.Context, data *types.RivalryData, reg SourceLookup) error {
	if len(data.Sources) == 0 {
		return nil
	}
	ids := make([]string, 0, len(data.Sources))
	for id := range data.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	current, err := reg.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("hydrating sources: %w", err)
	}
	for _, id := range ids {
		src, ok := current[id]
		if !ok {
			s.logger.Warn().Str("source_id", id).Str("analysis", data.ID()).Msg("cited source not in registry, keeping stored copy")
			continue
		}
		data.Sources[id] = src
	}
	Resolve(data)
	return nil
}

func checkID(id string) error {
	if id == "" || id == "_" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid analysis id %q", id)
	}
	return nil
}
