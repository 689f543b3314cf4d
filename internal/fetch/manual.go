// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/rs/zerolog"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

// ManualScheme is the URL scheme of manually supplied documents.
const ManualScheme = "manual"

// MetaFile is the optional metadata file inside a manual document directory.
const MetaFile = "meta.yaml"

// textFile is an optional text rendering supplied alongside the original.
// It takes precedence over converting the original, which matters for
// scanned PDFs without a text layer.
const textFile = "content.txt"

// originalExts lists the original formats we read, in lookup order.
var originalExts = []string{"html", "md", "txt", "pdf"}

var entityIDRe = regexp.MustCompile(`(Q\d+)$`)

// ManualURI returns the synthetic URL identifying a manual document.
func ManualURI(entityID, slug string) string {
	return fmt.Sprintf("%s://%s/%s", ManualScheme, entityID, slug)
}

// ParseManualURI splits a manual:// URL into entity id and slug.
func ParseManualURI(raw string) (entityID, slug string, ok bool) {
	rest, found := strings.CutPrefix(raw, ManualScheme+"://")
	if !found {
		return "", "", false
	}
	entityID, slug, found = strings.Cut(rest, "/")
	if !found || entityID == "" || slug == "" {
		return "", "", false
	}
	return entityID, slug, true
}

// DocumentMeta is the content of meta.yaml.
type DocumentMeta struct {
	Title           string   `yaml:"title"`
	Authors         []string `yaml:"authors"`
	Publication     string   `yaml:"publication"`
	PublicationDate string   `yaml:"publication_date"`
	Primary         bool     `yaml:"primary"`
}

// Document is a manual document directory found on disk.
type Document struct {
	EntityID     string
	EntityDir    string
	Slug         string
	Dir          string
	OriginalPath string
	OriginalExt  string
	HasText      bool
	Meta         DocumentMeta
}

// URI returns the document's synthetic URL.
func (d Document) URI() string { return ManualURI(d.EntityID, d.Slug) }

// Entity returns the entity the document is filed under, with the label
// taken from the directory name ("Max_Planck_Q9021" -> "Max Planck").
func (d Document) Entity() types.Entity {
	label := strings.TrimSuffix(strings.TrimSuffix(d.EntityDir, d.EntityID), "_")
	label = strings.TrimSpace(strings.ReplaceAll(label, "_", " "))
	if label == "" {
		label = d.EntityID
	}
	return types.Entity{ID: d.EntityID, Label: label}
}

// InvalidDocument is a directory that could not be used, with the reason.
type InvalidDocument struct {
	Dir      string
	EntityID string
	Reason   string
}

// ManualFetcher reads manually supplied documents from a directory tree laid
// out as <root>/<Label>_<QID>/<slug>/original.<ext>.
type ManualFetcher struct {
	Root   string
	Logger zerolog.Logger
}

// NewManualFetcher returns a fetcher reading from root.
func NewManualFetcher(root string, logger zerolog.Logger) *ManualFetcher {
	return &ManualFetcher{Root: root, Logger: logger}
}

// Name returns the provider identifier.
func (f *ManualFetcher) Name() string { return "manual" }

// Category returns the category of every candidate.
func (f *ManualFetcher) Category() types.SourceCategory { return types.CategoryManual }

// Fetch returns a candidate for every valid document filed under the
// entity's id. Invalid directories are logged and skipped.
func (f *ManualFetcher) Fetch(ctx context.Context, entity types.Entity) ([]Candidate, error) {
	docs, invalid, err := f.ListDocuments(entity.ID)
	if err != nil {
		return nil, failure(f.Name(), entity.ID, err)
	}
	for _, inv := range invalid {
		f.Logger.Warn().Str("dir", inv.Dir).Str("reason", inv.Reason).Msg("skipping manual document")
	}

	var out []Candidate
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, failure(f.Name(), entity.ID, err)
		}
		c, err := f.Load(d)
		if err != nil {
			f.Logger.Warn().Str("dir", d.Dir).Err(err).Msg("skipping unreadable manual document")
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// ListDocuments scans the tree. An empty entityFilter lists every entity.
// A missing root yields no documents.
func (f *ManualFetcher) ListDocuments(entityFilter string) ([]Document, []InvalidDocument, error) {
	entityDirs, err := os.ReadDir(f.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("reading manual directory %s: %w", f.Root, err)
	}

	var (
		docs    []Document
		invalid []InvalidDocument
	)
	for _, ed := range entityDirs {
		if !ed.IsDir() || strings.HasPrefix(ed.Name(), ".") {
			continue
		}
		entityID := EntityIDFromDir(ed.Name())
		if entityID == "" {
			invalid = append(invalid, InvalidDocument{
				Dir:    filepath.Join(f.Root, ed.Name()),
				Reason: "directory name does not end in an entity id",
			})
			continue
		}
		if entityFilter != "" && entityID != entityFilter {
			continue
		}

		entityPath := filepath.Join(f.Root, ed.Name())
		sourceDirs, err := os.ReadDir(entityPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", entityPath, err)
		}
		for _, sd := range sourceDirs {
			if !sd.IsDir() || strings.HasPrefix(sd.Name(), ".") {
				continue
			}
			doc, reason := inspectDocument(entityID, ed.Name(), filepath.Join(entityPath, sd.Name()))
			if reason != "" {
				invalid = append(invalid, InvalidDocument{Dir: doc.Dir, EntityID: entityID, Reason: reason})
				continue
			}
			docs = append(docs, doc)
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Dir < docs[j].Dir })
	return docs, invalid, nil
}

// inspectDocument validates one document directory. A non-empty reason
// marks it invalid.
func inspectDocument(entityID, entityDir, dir string) (Document, string) {
	doc := Document{EntityID: entityID, EntityDir: entityDir, Slug: filepath.Base(dir), Dir: dir}

	for _, ext := range originalExts {
		p := filepath.Join(dir, "original."+ext)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			doc.OriginalPath = p
			doc.OriginalExt = ext
			break
		}
	}
	if doc.OriginalPath == "" {
		return doc, "no original.html, original.md, original.txt or original.pdf found"
	}

	if info, err := os.Stat(filepath.Join(dir, textFile)); err == nil && info.Mode().IsRegular() {
		doc.HasText = true
	}

	metaPath := filepath.Join(dir, MetaFile)
	data, err := os.ReadFile(metaPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return doc, fmt.Sprintf("reading %s: %v", MetaFile, err)
	default:
		if err := yaml.Unmarshal(data, &doc.Meta); err != nil {
			return doc, fmt.Sprintf("parsing %s: %v", MetaFile, err)
		}
	}
	return doc, ""
}

// Load reads a document and builds its candidate.
func (f *ManualFetcher) Load(d Document) (Candidate, error) {
	original, err := os.ReadFile(d.OriginalPath)
	if err != nil {
		return Candidate{}, fmt.Errorf("reading %s: %w", d.OriginalPath, err)
	}

	var text string
	if d.HasText {
		data, err := os.ReadFile(filepath.Join(d.Dir, textFile))
		if err != nil {
			return Candidate{}, fmt.Errorf("reading %s: %w", textFile, err)
		}
		text = string(data)
	}

	return NewManualCandidate(d.EntityID, d.Slug, d.Meta, d.OriginalExt, original, text)
}

// NewManualCandidate builds the candidate for a manual document. When text
// is empty the original is converted according to ext.
func NewManualCandidate(entityID, slug string, meta DocumentMeta, ext string, original []byte, text string) (Candidate, error) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	mediaType := MediaType(ext)
	if text == "" {
		var err error
		text, err = ToText(mediaType, original)
		if err != nil {
			return Candidate{}, err
		}
	}
	if strings.TrimSpace(text) == "" {
		return Candidate{}, fmt.Errorf("manual document %s/%s has no text", entityID, slug)
	}

	title := meta.Title
	if title == "" {
		title = slug
	}
	uri := ManualURI(entityID, slug)

	src := types.Source{
		Type:            types.CategoryManual,
		Title:           title,
		Authors:         meta.Authors,
		Publication:     meta.Publication,
		PublicationDate: meta.PublicationDate,
		URL:             uri,
		IsManual:        true,
		IsPrimarySource: meta.Primary,
		Details: types.ManualDetails{
			EntityID:         entityID,
			Slug:             slug,
			MediaType:        mediaType,
			OriginalFilename: "original." + ext,
		},
	}

	content := document([]field{
		{"Source", "Manual"},
		{"Title", title},
		{"Authors", joinOr(meta.Authors, "Unknown")},
		{"Entity ID", entityID},
		{"URL", uri},
	}, text)

	return Candidate{
		Source:      src,
		Content:     content,
		Original:    original,
		OriginalExt: ext,
	}, nil
}

// EntityIDFromDir extracts the trailing entity id from a directory name
// such as "Max_Planck_Q9021".
func EntityIDFromDir(name string) string {
	m := entityIDRe.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

// MediaType maps a file extension to the media type recorded for manual
// documents.
func MediaType(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "html", "htm":
		return "text/html"
	case "md", "markdown":
		return "text/markdown"
	case "pdf":
		return "application/pdf"
	default:
		return "text/plain"
	}
}

// ToText renders a document body as text. HTML is converted to Markdown,
// PDF text is extracted page by page, and Markdown and plain text pass
// through.
func ToText(mediaType string, body []byte) (string, error) {
	switch mediaType {
	case "text/html":
		converter := md.NewConverter("", true, nil)
		out, err := converter.ConvertString(string(body))
		if err != nil {
			return "", fmt.Errorf("converting HTML to markdown: %w", err)
		}
		return strings.TrimSpace(out), nil
	case "text/markdown", "text/plain":
		return string(body), nil
	case "application/pdf":
		return PDFText(body)
	default:
		return "", fmt.Errorf("no text conversion for %s", mediaType)
	}
}
