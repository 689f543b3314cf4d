// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

var planck = types.Entity{ID: "Q9021", Label: "Max Planck"}

func writeDoc(t *testing.T, root, entityDir, slug string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, entityDir, slug)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestManualFetch(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "Max_Planck_Q9021", "biography-1", map[string]string{
		"original.html": "<h1>Planck</h1><p>Born in <em>Kiel</em>.</p>",
		MetaFile:        "title: A Life of Planck\nauthors: [J. L. Heilbron]\nprimary: false\n",
	})
	writeDoc(t, root, "Max_Planck_Q9021", "lecture", map[string]string{
		"original.txt": "Nobel lecture text.",
	})
	writeDoc(t, root, "Albert_Einstein_Q937", "letters", map[string]string{
		"original.md": "# Letters",
	})

	f := NewManualFetcher(root, zerolog.Nop())
	got, err := f.Fetch(context.Background(), planck)
	require.NoError(t, err)
	require.Len(t, got, 2)

	bio := got[0]
	assert.Equal(t, "manual://Q9021/biography-1", bio.Source.URL)
	assert.Equal(t, types.CategoryManual, bio.Source.Type)
	assert.True(t, bio.Source.IsManual)
	assert.Equal(t, "A Life of Planck", bio.Source.Title)
	assert.Equal(t, []string{"J. L. Heilbron"}, bio.Source.Authors)
	assert.Equal(t, types.ManualDetails{
		EntityID:         "Q9021",
		Slug:             "biography-1",
		MediaType:        "text/html",
		OriginalFilename: "original.html",
	}, bio.Source.Details)
	assert.Equal(t, "html", bio.OriginalExt)
	assert.Contains(t, string(bio.Content), "# Planck")
	assert.Contains(t, string(bio.Content), "Born in _Kiel_.")

	lecture := got[1]
	assert.Equal(t, "lecture", lecture.Source.Title, "slug is the fallback title")
	assert.Contains(t, string(lecture.Content), "Nobel lecture text.")
}

func TestManualListDocuments(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "Max_Planck_Q9021", "ok", map[string]string{"original.txt": "x"})
	writeDoc(t, root, "Max_Planck_Q9021", "empty", nil)
	writeDoc(t, root, "Max_Planck_Q9021", "scan", map[string]string{"original.pdf": "%PDF-1.4"})
	writeDoc(t, root, "Max_Planck_Q9021", "scan-with-text", map[string]string{
		"original.pdf": "%PDF-1.4",
		"content.txt":  "Extracted text.",
	})
	writeDoc(t, root, "Max_Planck_Q9021", "bad-meta", map[string]string{
		"original.txt": "x",
		MetaFile:       "title: [unterminated",
	})
	writeDoc(t, root, "no-entity-id", "doc", map[string]string{"original.txt": "x"})
	writeDoc(t, root, "Albert_Einstein_Q937", "letters", map[string]string{"original.txt": "x"})

	f := NewManualFetcher(root, zerolog.Nop())

	docs, invalid, err := f.ListDocuments("Q9021")
	require.NoError(t, err)
	var slugs []string
	for _, d := range docs {
		slugs = append(slugs, d.Slug)
	}
	assert.Equal(t, []string{"ok", "scan", "scan-with-text"}, slugs)

	reasons := map[string]string{}
	for _, inv := range invalid {
		reasons[filepath.Base(inv.Dir)] = inv.Reason
	}
	assert.Contains(t, reasons, "empty")
	assert.NotContains(t, reasons, "scan")
	assert.Contains(t, reasons, "bad-meta")
	assert.Contains(t, reasons, "no-entity-id")

	all, _, err := f.ListDocuments("")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = f.Load(docs[1])
	assert.Error(t, err, "a PDF without a text layer or content.txt cannot be loaded")

	c, err := f.Load(docs[2])
	require.NoError(t, err)
	assert.Equal(t, "pdf", c.OriginalExt)
	assert.Contains(t, string(c.Content), "Extracted text.")
	assert.Equal(t, "application/pdf", c.Source.Details.(types.ManualDetails).MediaType)
}

func TestManualFetchExtractsPDF(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "Max_Planck_Q9021", "nobel-lecture", map[string]string{
		"original.pdf": string(testPDF("The Genesis and Present State", "of Development of the Quantum Theory")),
		MetaFile:       "title: Nobel Lecture\nprimary: true\n",
	})
	writeDoc(t, root, "Max_Planck_Q9021", "scanned", map[string]string{
		"original.pdf": "%PDF-1.4\n" + strings.Repeat("scan ", 40),
	})

	f := NewManualFetcher(root, zerolog.Nop())
	got, err := f.Fetch(context.Background(), planck)
	require.NoError(t, err)
	require.Len(t, got, 1, "the unreadable scan is skipped")

	c := got[0]
	assert.Equal(t, "Nobel Lecture", c.Source.Title)
	assert.True(t, c.Source.IsPrimarySource)
	assert.Equal(t, "pdf", c.OriginalExt)
	assert.Contains(t, string(c.Content), "The Genesis and Present State")
	assert.Contains(t, string(c.Content), "of Development of the Quantum Theory")
}

func TestManualMissingRoot(t *testing.T) {
	f := NewManualFetcher(filepath.Join(t.TempDir(), "absent"), zerolog.Nop())
	got, err := f.Fetch(context.Background(), planck)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEntityIDFromDir(t *testing.T) {
	assert.Equal(t, "Q9021", EntityIDFromDir("Max_Planck_Q9021"))
	assert.Equal(t, "Q935", EntityIDFromDir("Q935"))
	assert.Empty(t, EntityIDFromDir("Max_Planck"))
}

func TestToText(t *testing.T) {
	out, err := ToText("text/html", []byte("<p>Hello <strong>world</strong></p>"))
	require.NoError(t, err)
	assert.Equal(t, "Hello **world**", out)

	out, err = ToText("text/plain", []byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	_, err = ToText("application/pdf", []byte("%PDF"))
	assert.Error(t, err)

	out, err = ToText("application/pdf", testPDF("Quantum of action"))
	require.NoError(t, err)
	assert.Contains(t, out, "Quantum of action")

	_, err = ToText("application/octet-stream", []byte("x"))
	assert.Error(t, err)
}

func TestDocumentEntity(t *testing.T) {
	d := Document{EntityID: "Q9021", EntityDir: "Max_Planck_Q9021"}
	assert.Equal(t, types.Entity{ID: "Q9021", Label: "Max Planck"}, d.Entity())

	bare := Document{EntityID: "Q935", EntityDir: "Q935"}
	assert.Equal(t, "Q935", bare.Entity().Label)
}

func TestNewManualCandidateRejectsEmptyText(t *testing.T) {
	_, err := NewManualCandidate("Q1", "blank", DocumentMeta{}, "txt", []byte("   "), "")
	assert.Error(t, err)
}
