// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sources.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func wikiSource(url, title string, retrieved time.Time) types.Source {
	return types.Source{
		SourceID:         types.SourceID(url),
		Type:             types.CategoryWikipedia,
		Title:            title,
		Authors:          []string{"Wikipedia contributors"},
		Publication:      "Wikipedia",
		URL:              url,
		RetrievedAt:      retrieved,
		CredibilityScore: 0.75,
		Details:          types.EncyclopediaDetails{ArticleTitle: title, Language: "en"},
	}
}

func paperSource(url, title string, score float64, retrieved time.Time) types.Source {
	return types.Source{
		SourceID:         types.SourceID(url),
		Type:             types.CategoryAcademicPaper,
		Title:            title,
		Authors:          []string{"G. W. Leibniz"},
		URL:              url,
		DOI:              "10.1000/xyz",
		RetrievedAt:      retrieved,
		CredibilityScore: score,
		IsPrimarySource:  true,
		Details:          types.PaperDetails{Venue: "Acta Eruditorum", Year: 1684},
	}
}

func countRows(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT count(*) FROM sources`).Scan(&n))
	return n
}

func TestInsertAndGetByURL(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC)
	src := wikiSource("https://en.wikipedia.org/wiki/Isaac_Newton", "Isaac Newton", now)

	inserted, err := s.Insert(ctx, src)
	require.NoError(t, err)

	got, err := s.GetByURL(ctx, src.URL)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, inserted.SourceID, got.SourceID)
	assert.Equal(t, types.CategoryWikipedia, got.Type)
	assert.Equal(t, []string{"Wikipedia contributors"}, got.Authors)
	assert.True(t, now.Equal(got.RetrievedAt))
	assert.Equal(t, 0.75, got.CredibilityScore)
	assert.Equal(t, types.EncyclopediaDetails{ArticleTitle: "Isaac Newton", Language: "en"}, got.Details)
}

func TestGetByURLMissingReturnsNil(t *testing.T) {
	s := openStore(t)
	got, err := s.GetByURL(context.Background(), "https://example.org/none")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetByIDNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.GetByID(context.Background(), "src_000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertDuplicateURL(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	src := wikiSource("https://en.wikipedia.org/wiki/Isaac_Newton", "Isaac Newton", time.Now())

	_, err := s.Insert(ctx, src)
	require.NoError(t, err)

	src.Title = "Different title"
	_, err = s.Insert(ctx, src)
	var dup *DuplicateSourceError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, src.URL, dup.URL)
	assert.Equal(t, 1, countRows(t, s))
}

func TestInsertRejectsInvalidRecords(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := wikiSource("https://en.wikipedia.org/wiki/Isaac_Newton", "Isaac Newton", time.Now())

	tests := []struct {
		name   string
		mutate func(*types.Source)
	}{
		{"mismatched id", func(s *types.Source) { s.SourceID = "src_ffffffffffff" }},
		{"empty url", func(s *types.Source) { s.URL = "" }},
		{"unknown type", func(s *types.Source) { s.Type = "podcast" }},
		{"score out of range", func(s *types.Source) { s.CredibilityScore = 1.5 }},
		{"details kind mismatch", func(s *types.Source) { s.Details = types.ManualDetails{Slug: "x"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := base
			tt.mutate(&src)
			_, err := s.Insert(ctx, src)
			assert.Error(t, err)
		})
	}
	assert.Equal(t, 0, countRows(t, s))
}

func TestInsertOrGetConcurrentSingleRow(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	url := "https://doi.org/10.1000/shared"

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[string]bool{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := paperSource(url, "Shared paper", 0.95, time.Now())
			stored, ok, err := s.InsertOrGet(ctx, src)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[stored.SourceID] = true
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, countRows(t, s))
}

func TestInsertOrGetReturnsExistingUnchanged(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	src := wikiSource("https://en.wikipedia.org/wiki/Gottfried_Wilhelm_Leibniz", "Leibniz", first)

	_, created, err := s.InsertOrGet(ctx, src)
	require.NoError(t, err)
	require.True(t, created)

	again := src
	again.Title = "Renamed"
	again.RetrievedAt = first.Add(24 * time.Hour)
	stored, created, err := s.InsertOrGet(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Leibniz", stored.Title)
	assert.True(t, first.Equal(stored.RetrievedAt))
}

func TestUpdateContentMetadata(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	src, err := s.Insert(ctx, wikiSource("https://en.wikipedia.org/wiki/Calculus", "Calculus", time.Now()))
	require.NoError(t, err)
	assert.False(t, src.HasContent())

	require.NoError(t, s.UpdateContentMetadata(ctx, src.SourceID, "abcd/content.txt", "deadbeef"))

	got, err := s.GetByID(ctx, src.SourceID)
	require.NoError(t, err)
	assert.Equal(t, "abcd/content.txt", got.StoredContentPath)
	assert.Equal(t, "deadbeef", got.ContentHash)

	err = s.UpdateContentMetadata(ctx, "src_000000000000", "x", "y")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByEntityOrdering(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	wiki := wikiSource("https://en.wikipedia.org/wiki/Isaac_Newton", "Isaac Newton", t0)
	late := paperSource("https://doi.org/10.1/late", "Late", 0.95, t0.Add(2*time.Hour))
	early := paperSource("https://doi.org/10.1/early", "Early", 0.95, t0.Add(time.Hour))
	other := paperSource("https://doi.org/10.1/other", "Unlinked", 0.95, t0)

	for _, src := range []types.Source{wiki, late, early, other} {
		_, err := s.Insert(ctx, src)
		require.NoError(t, err)
	}
	for _, src := range []types.Source{wiki, late, early} {
		require.NoError(t, s.LinkEntity(ctx, src.SourceID, "Q935"))
	}
	require.NoError(t, s.LinkEntity(ctx, wiki.SourceID, "Q935"), "linking twice is a no-op")

	got, err := s.ListByEntity(ctx, "Q935")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Early", got[0].Title)
	assert.Equal(t, "Late", got[1].Title)
	assert.Equal(t, "Isaac Newton", got[2].Title)

	none, err := s.ListByEntity(ctx, "Q9021")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetByIDs(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	a, err := s.Insert(ctx, wikiSource("https://en.wikipedia.org/wiki/A", "A", time.Now()))
	require.NoError(t, err)
	b, err := s.Insert(ctx, wikiSource("https://en.wikipedia.org/wiki/B", "B", time.Now()))
	require.NoError(t, err)

	got, err := s.GetByIDs(ctx, []string{a.SourceID, b.SourceID, "src_missing00000"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "A", got[a.SourceID].Title)

	empty, err := s.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStats(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	_, err := s.Insert(ctx, wikiSource("https://en.wikipedia.org/wiki/A", "A", time.Now()))
	require.NoError(t, err)
	_, err = s.Insert(ctx, paperSource("https://doi.org/10.1/p", "P", 0.95, time.Now()))
	require.NoError(t, err)
	manualURL := "manual://Q9021/biography-1"
	_, err = s.Insert(ctx, types.Source{
		SourceID:         types.SourceID(manualURL),
		Type:             types.CategoryManual,
		Title:            "Biography",
		URL:              manualURL,
		CredibilityScore: 0.5,
		IsManual:         true,
	})
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.Primary)
	assert.Equal(t, 2, st.Secondary)
	assert.Equal(t, 1, st.Manual)
	assert.Equal(t, 2, st.Auto)
	assert.Equal(t, 1, st.ByType[types.CategoryAcademicPaper])
	assert.Equal(t, 1, st.ByType[types.CategoryWikipedia])
}

func TestMalformedDetailsLoadAsMetadataOnly(t *testing.T) {
	var logs bytes.Buffer
	s, err := Open(filepath.Join(t.TempDir(), "sources.db"), WithLogger(zerolog.New(&logs)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	src, err := s.Insert(ctx, wikiSource("https://en.wikipedia.org/wiki/Broken", "Broken", time.Now()))
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE sources SET details = ? WHERE source_id = ?`, `{"kind":"podcast"}`, src.SourceID)
	require.NoError(t, err)

	got, err := s.GetByID(ctx, src.SourceID)
	require.NoError(t, err)
	assert.Equal(t, "Broken", got.Title)
	assert.Nil(t, got.Details)
	assert.Contains(t, logs.String(), "metadata only")
}

func TestOpenUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := Open(filepath.Join(blocker, "sources.db"))
	assert.ErrorIs(t, err, types.ErrStorageUnavailable)
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.db")
	s, err := Open(path)
	require.NoError(t, err)
	src := wikiSource("https://en.wikipedia.org/wiki/Isaac_Newton", "Isaac Newton", time.Now())
	_, err = s.Insert(context.Background(), src)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.GetByURL(context.Background(), src.URL)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, src.SourceID, got.SourceID)
}

func TestExportYAMLAndJSON(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	src, err := s.Insert(ctx, paperSource("https://doi.org/10.1/p", "Nova Methodus", 0.95, time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.LinkEntity(ctx, src.SourceID, "Q9047"))
	_, err = s.Insert(ctx, wikiSource("https://en.wikipedia.org/wiki/Other", "Other", time.Now()))
	require.NoError(t, err)

	var yamlBuf bytes.Buffer
	require.NoError(t, s.ExportYAML(ctx, &yamlBuf, "Q9047"))
	var yamlEntries []ExportEntry
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &yamlEntries))
	require.Len(t, yamlEntries, 1)
	assert.Equal(t, "Nova Methodus", yamlEntries[0].Title)
	assert.Equal(t, "academic_paper", yamlEntries[0].Details["kind"])

	var jsonBuf bytes.Buffer
	require.NoError(t, s.ExportJSON(ctx, &jsonBuf, ""))
	var jsonEntries []ExportEntry
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &jsonEntries))
	assert.Len(t, jsonEntries, 2)
}
