// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/rivalry-research/internal/httputil"
	"github.com/pdiddy/rivalry-research/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,externalIds,year,publicationDate,venue,citationCount,url,openAccessPdf"

// semanticInterval matches the unauthenticated shared rate limit.
const semanticInterval = time.Second

// SemanticScholarFetcher searches Semantic Scholar for peer-reviewed papers.
type SemanticScholarFetcher struct {
	Client     *httputil.Client
	APIKey     string
	MaxResults int
	// FullText downloads open-access PDFs and adds their text.
	FullText bool
}

// NewSemanticScholarFetcher returns a fetcher using cfg's API key, if any.
func NewSemanticScholarFetcher(cfg types.ProviderConfig) *SemanticScholarFetcher {
	return &SemanticScholarFetcher{
		Client:     httputil.NewClient(cfg.Timeout, cfg.UserAgent, semanticInterval),
		APIKey:     cfg.SemanticScholarAPIKey,
		MaxResults: cfg.MaxResults,
		FullText:   cfg.DownloadPDFs,
	}
}

// Name returns the provider identifier.
func (f *SemanticScholarFetcher) Name() string { return "semantic_scholar" }

// Category returns the category of every candidate.
func (f *SemanticScholarFetcher) Category() types.SourceCategory { return types.CategoryAcademicPaper }

// Fetch searches for papers about the entity. Candidate URLs prefer the DOI
// resolver so the same paper found through another provider dedups.
func (f *SemanticScholarFetcher) Fetch(ctx context.Context, entity types.Entity) ([]Candidate, error) {
	params := url.Values{
		"query":  {searchTerms(entity)},
		"limit":  {strconv.Itoa(maxResults(f.MaxResults))},
		"fields": {semanticFields},
	}

	var header http.Header
	if f.APIKey != "" {
		header = http.Header{"x-api-key": {f.APIKey}}
	}

	body, err := f.Client.Get(ctx, semanticAPIBase+"?"+params.Encode(), header)
	if err != nil {
		return nil, failure(f.Name(), entity.ID, fmt.Errorf("Semantic Scholar API request: %w", err))
	}

	var sr semanticResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, failure(f.Name(), entity.ID, fmt.Errorf("parsing Semantic Scholar response: %w", err))
	}

	var (
		out   []Candidate
		links []string
	)
	for _, paper := range sr.Data {
		if c, ok := semanticCandidate(entity, paper); ok {
			out = append(out, c)
			links = append(links, paper.OpenAccessPDF.URL)
		}
	}
	if f.FullText {
		attachPDFs(ctx, f.Client, out, links)
	}
	return out, nil
}

func semanticCandidate(entity types.Entity, paper semanticPaper) (Candidate, bool) {
	title := strings.TrimSpace(paper.Title)
	link := paperURL(paper)
	if title == "" || link == "" {
		return Candidate{}, false
	}

	var authors []string
	for _, a := range paper.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	pubDate := paper.PublicationDate
	if pubDate == "" && paper.Year > 0 {
		pubDate = strconv.Itoa(paper.Year)
	}

	src := types.Source{
		Type:            types.CategoryAcademicPaper,
		Title:           title,
		Authors:         authors,
		Publication:     paper.Venue,
		PublicationDate: pubDate,
		URL:             link,
		DOI:             paper.ExternalIDs.DOI,
		IsPrimarySource: isPrimary(entity, authors),
		Details: types.PaperDetails{
			Venue:     paper.Venue,
			Year:      paper.Year,
			Citations: paper.CitationCount,
			ArxivID:   paper.ExternalIDs.ArXiv,
			Abstract:  paper.Abstract,
		},
	}

	yearStr := ""
	if paper.Year > 0 {
		yearStr = strconv.Itoa(paper.Year)
	}
	content := document([]field{
		{"Source", "Semantic Scholar"},
		{"Type", "Academic Paper"},
		{"Title", title},
		{"Authors", joinOr(authors, "Unknown")},
		{"Year", yearStr},
		{"Venue", paper.Venue},
		{"URL", link},
		{"Citations", strconv.Itoa(paper.CitationCount)},
		{"Related Entity", fmt.Sprintf("%s (%s)", entity.Label, entity.ID)},
	}, paperBody(title, authors, yearStr, paper.Venue, paper.Abstract))

	return Candidate{Source: src, Content: content}, true
}

// paperURL picks the DOI resolver, then the Semantic Scholar page.
func paperURL(p semanticPaper) string {
	if u := doiURL(p.ExternalIDs.DOI); u != "" {
		return u
	}
	if p.URL != "" {
		return p.URL
	}
	if p.PaperID != "" {
		return "https://www.semanticscholar.org/paper/" + p.PaperID
	}
	return ""
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total int             `json:"total"`
	Data  []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Year            int                 `json:"year"`
	PublicationDate string              `json:"publicationDate"`
	Venue           string              `json:"venue"`
	CitationCount   int                 `json:"citationCount"`
	URL             string              `json:"url"`
	Authors         []semanticAuthor    `json:"authors"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
	OpenAccessPDF   struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}
