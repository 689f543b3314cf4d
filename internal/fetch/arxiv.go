// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/rivalry-research/internal/httputil"
	"github.com/pdiddy/rivalry-research/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// arxivInterval follows the arXiv API guidance of one request every three
// seconds.
const arxivInterval = 3 * time.Second

// biographyTerms steer the search toward biographical material.
var biographyTerms = []string{"biography", "life", "career", "history", "biographical"}

// ArxivFetcher searches arXiv for preprints about an entity.
type ArxivFetcher struct {
	Client     *httputil.Client
	MaxResults int
	// FullText downloads each preprint PDF and adds its text.
	FullText bool
}

// NewArxivFetcher returns a fetcher taking up to cfg.MaxResults preprints.
func NewArxivFetcher(cfg types.ProviderConfig) *ArxivFetcher {
	return &ArxivFetcher{
		Client:     httputil.NewClient(cfg.Timeout, cfg.UserAgent, arxivInterval),
		MaxResults: cfg.MaxResults,
		FullText:   cfg.DownloadPDFs,
	}
}

// Name returns the provider identifier.
func (f *ArxivFetcher) Name() string { return "arxiv" }

// Category returns the category of every candidate.
func (f *ArxivFetcher) Category() types.SourceCategory { return types.CategoryArxivPaper }

// Fetch searches arXiv and returns one candidate per entry. The candidate
// URL is the entry's PDF link, which is also downloaded when FullText is
// set.
func (f *ArxivFetcher) Fetch(ctx context.Context, entity types.Entity) ([]Candidate, error) {
	params := url.Values{
		"search_query": {buildArxivQuery(entity)},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(maxResults(f.MaxResults))},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}

	body, err := f.Client.Get(ctx, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, failure(f.Name(), entity.ID, fmt.Errorf("arXiv API request: %w", err))
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, failure(f.Name(), entity.ID, fmt.Errorf("parsing arXiv response: %w", err))
	}

	var out []Candidate
	for _, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}
		out = append(out, arxivCandidate(entity, entry, arxivID))
	}
	if f.FullText {
		links := make([]string, len(out))
		for i, c := range out {
			links[i] = c.Source.URL
		}
		attachPDFs(ctx, f.Client, out, links)
	}
	return out, nil
}

func arxivCandidate(entity types.Entity, entry arxivEntry, arxivID string) Candidate {
	title := collapseSpace(entry.Title)
	abstract := collapseSpace(entry.Summary)

	var authors []string
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	var categories []string
	for _, c := range entry.Categories {
		if c.Term != "" {
			categories = append(categories, c.Term)
		}
	}

	var (
		pubDate string
		year    int
	)
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(entry.Published)); err == nil {
		pubDate = t.Format("2006-01-02")
		year = t.Year()
	}

	pdfURL := entry.pdfLink()
	if pdfURL == "" {
		pdfURL = "https://arxiv.org/pdf/" + arxivID
	}

	src := types.Source{
		Type:            types.CategoryArxivPaper,
		Title:           title,
		Authors:         authors,
		Publication:     "arXiv",
		PublicationDate: pubDate,
		URL:             pdfURL,
		DOI:             strings.TrimSpace(entry.DOI),
		IsPrimarySource: isPrimary(entity, authors),
		Details: types.PaperDetails{
			Kind:       types.CategoryArxivPaper,
			Venue:      strings.TrimSpace(entry.JournalRef),
			Year:       year,
			ArxivID:    arxivID,
			Categories: categories,
			Abstract:   abstract,
		},
	}

	yearStr := ""
	if year > 0 {
		yearStr = strconv.Itoa(year)
	}
	content := document([]field{
		{"Source", "arXiv"},
		{"Type", "Academic Paper (Preprint)"},
		{"Title", title},
		{"Authors", joinOr(authors, "Unknown")},
		{"Year", yearStr},
		{"Categories", joinOr(categories, "Unknown")},
		{"arXiv ID", arxivID},
		{"URL", pdfURL},
		{"Related Entity", fmt.Sprintf("%s (%s)", entity.Label, entity.ID)},
	}, paperBody(title, authors, yearStr, "", abstract))

	return Candidate{Source: src, Content: content}
}

// buildArxivQuery matches any of the entity's names as a phrase and
// requires one of the biography terms.
func buildArxivQuery(entity types.Entity) string {
	names := queryNames(entity)
	for i, n := range names {
		names[i] = "all:" + n
	}
	who := strings.Join(names, " OR ")
	if len(names) > 1 {
		who = "(" + who + ")"
	}

	terms := make([]string, len(biographyTerms))
	for i, t := range biographyTerms {
		terms[i] = "all:" + t
	}
	return fmt.Sprintf("%s AND (%s)", who, strings.Join(terms, " OR "))
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Authors    []arxivAuthor   `xml:"author"`
	Links      []arxivLink     `xml:"link"`
	Categories []arxivCategory `xml:"category"`
	DOI        string          `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef string          `xml:"http://arxiv.org/schemas/atom journal_ref"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

func (e arxivEntry) pdfLink() string {
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			return l.Href
		}
	}
	return ""
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := strings.TrimSpace(idURL[idx+len(prefix):])

	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
