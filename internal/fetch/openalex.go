// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/rivalry-research/internal/httputil"
	"github.com/pdiddy/rivalry-research/pkg/types"
)

// openAlexAPIBase is the OpenAlex Works search endpoint. Declared as a var
// so tests can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works"

const openAlexInterval = 100 * time.Millisecond

// OpenAlexFetcher searches OpenAlex for peer-reviewed works.
type OpenAlexFetcher struct {
	Client *httputil.Client
	// Email is sent as mailto parameter for polite pool access.
	Email      string
	MaxResults int
	// FullText downloads open-access PDFs and adds their text. A
	// downloaded PDF replaces the work JSON as the original.
	FullText bool
}

// NewOpenAlexFetcher returns a fetcher using cfg's polite pool address.
func NewOpenAlexFetcher(cfg types.ProviderConfig) *OpenAlexFetcher {
	return &OpenAlexFetcher{
		Client:     httputil.NewClient(cfg.Timeout, cfg.UserAgent, openAlexInterval),
		Email:      cfg.OpenAlexEmail,
		MaxResults: cfg.MaxResults,
		FullText:   cfg.DownloadPDFs,
	}
}

// Name returns the provider identifier.
func (f *OpenAlexFetcher) Name() string { return "openalex" }

// Category returns the category of every candidate.
func (f *OpenAlexFetcher) Category() types.SourceCategory { return types.CategoryAcademicPaper }

// Fetch searches works about the entity. The raw work JSON is kept as the
// candidate's original.
func (f *OpenAlexFetcher) Fetch(ctx context.Context, entity types.Entity) ([]Candidate, error) {
	n := maxResults(f.MaxResults)
	if n > 200 {
		n = 200
	}

	params := url.Values{
		"search":   {searchTerms(entity)},
		"per_page": {strconv.Itoa(n)},
		"page":     {"1"},
	}
	if f.Email != "" {
		params.Set("mailto", f.Email)
	}

	body, err := f.Client.Get(ctx, openAlexAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, failure(f.Name(), entity.ID, fmt.Errorf("OpenAlex API request: %w", err))
	}

	var oar openAlexResponse
	if err := json.Unmarshal(body, &oar); err != nil {
		return nil, failure(f.Name(), entity.ID, fmt.Errorf("parsing OpenAlex response: %w", err))
	}

	var (
		out   []Candidate
		links []string
	)
	for _, raw := range oar.Results {
		var work openAlexWork
		if err := json.Unmarshal(raw, &work); err != nil {
			return nil, failure(f.Name(), entity.ID, fmt.Errorf("parsing OpenAlex work: %w", err))
		}
		if c, ok := openAlexCandidate(entity, work); ok {
			c.Original = raw
			c.OriginalExt = "json"
			out = append(out, c)
			links = append(links, work.pdfLink())
		}
	}
	if f.FullText {
		attachPDFs(ctx, f.Client, out, links)
	}
	return out, nil
}

func openAlexCandidate(entity types.Entity, work openAlexWork) (Candidate, bool) {
	title := strings.TrimSpace(work.Title)
	link := doiURL(work.DOI)
	if link == "" {
		link = work.ID
	}
	if title == "" || link == "" {
		return Candidate{}, false
	}

	var authors []string
	for _, a := range work.Authorships {
		if a.Author.DisplayName != "" {
			authors = append(authors, a.Author.DisplayName)
		}
	}

	venue := work.PrimaryLocation.Source.DisplayName
	abstract := reconstructAbstract(work.AbstractInvertedIndex)

	pubDate := work.PublicationDate
	if pubDate == "" && work.PublicationYear > 0 {
		pubDate = strconv.Itoa(work.PublicationYear)
	}

	src := types.Source{
		Type:            types.CategoryAcademicPaper,
		Title:           title,
		Authors:         authors,
		Publication:     venue,
		PublicationDate: pubDate,
		URL:             link,
		DOI:             bareDOI(work.DOI),
		IsPrimarySource: isPrimary(entity, authors),
		Details: types.PaperDetails{
			Venue:     venue,
			Year:      work.PublicationYear,
			Citations: work.CitedByCount,
			Abstract:  abstract,
		},
	}

	yearStr := ""
	if work.PublicationYear > 0 {
		yearStr = strconv.Itoa(work.PublicationYear)
	}
	content := document([]field{
		{"Source", "OpenAlex"},
		{"Type", "Academic Paper"},
		{"Title", title},
		{"Authors", joinOr(authors, "Unknown")},
		{"Year", yearStr},
		{"Venue", venue},
		{"URL", link},
		{"Citations", strconv.Itoa(work.CitedByCount)},
		{"Related Entity", fmt.Sprintf("%s (%s)", entity.Label, entity.ID)},
	}, paperBody(title, authors, yearStr, venue, abstract))

	return Candidate{Source: src, Content: content}, true
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The index maps each word to the positions where it appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].pos < pairs[j].pos })

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []json.RawMessage `json:"results"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationDate       string               `json:"publication_date"`
	PublicationYear       int                  `json:"publication_year"`
	CitedByCount          int                  `json:"cited_by_count"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       struct {
		Source struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	BestOALocation struct {
		PDFURL string `json:"pdf_url"`
	} `json:"best_oa_location"`
	OpenAccess     struct {
		IsOA  bool   `json:"is_oa"`
		OAURL string `json:"oa_url"`
	} `json:"open_access"`
}

// pdfLink returns the best open-access PDF location, if any.
func (w openAlexWork) pdfLink() string {
	if w.BestOALocation.PDFURL != "" {
		return w.BestOALocation.PDFURL
	}
	if w.OpenAccess.IsOA && strings.HasSuffix(strings.ToLower(w.OpenAccess.OAURL), ".pdf") {
		return w.OpenAccess.OAURL
	}
	return ""
}

type openAlexAuthorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}
