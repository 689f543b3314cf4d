// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/rivalry-research/internal/httputil"
	"github.com/pdiddy/rivalry-research/pkg/types"
)

// wikipediaAPIURL maps an article host such as de.wikipedia.org to its
// MediaWiki API endpoint. Declared as a var so tests can substitute an
// httptest server.
var wikipediaAPIURL = func(host string) string {
	return "https://" + host + "/w/api.php"
}

// wikipediaInterval keeps us at two requests per second.
const wikipediaInterval = 500 * time.Millisecond

var (
	citationRe   = regexp.MustCompile(`\[\d+\]`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	spacesRe     = regexp.MustCompile(` {2,}`)
)

// WikipediaFetcher fetches the encyclopedia article linked from an entity.
type WikipediaFetcher struct {
	Client *httputil.Client
}

// NewWikipediaFetcher returns a fetcher limited to two requests per second.
func NewWikipediaFetcher(cfg types.HTTPConfig) *WikipediaFetcher {
	return &WikipediaFetcher{Client: httputil.NewClient(cfg.Timeout, cfg.UserAgent, wikipediaInterval)}
}

// Name returns the provider identifier.
func (f *WikipediaFetcher) Name() string { return "wikipedia" }

// Category returns the category of every candidate.
func (f *WikipediaFetcher) Category() types.SourceCategory { return types.CategoryWikipedia }

// Fetch returns at most one candidate: the article at entity.WikipediaURL.
// Entities without an article yield no candidates.
func (f *WikipediaFetcher) Fetch(ctx context.Context, entity types.Entity) ([]Candidate, error) {
	if entity.WikipediaURL == "" {
		return nil, nil
	}

	title, lang, host, err := articleTitle(entity.WikipediaURL)
	if err != nil {
		return nil, failure(f.Name(), entity.ID, err)
	}

	params := url.Values{
		"action":             {"parse"},
		"page":               {title},
		"format":             {"json"},
		"prop":               {"text"},
		"redirects":          {"1"},
		"disableeditsection": {"1"},
		"disabletoc":         {"1"},
	}

	body, err := f.Client.Get(ctx, wikipediaAPIURL(host)+"?"+params.Encode(), nil)
	if err != nil {
		return nil, failure(f.Name(), entity.ID, fmt.Errorf("Wikipedia API request: %w", err))
	}

	var pr parseResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, failure(f.Name(), entity.ID, fmt.Errorf("parsing Wikipedia response: %w", err))
	}
	if pr.Error != nil {
		if pr.Error.Code == "missingtitle" {
			return nil, nil
		}
		return nil, failure(f.Name(), entity.ID, fmt.Errorf("Wikipedia API error %s: %s", pr.Error.Code, pr.Error.Info))
	}
	if pr.Parse == nil || pr.Parse.Text.Content == "" {
		return nil, failure(f.Name(), entity.ID, malformed("no article text for %s", title))
	}

	html := pr.Parse.Text.Content
	text, err := cleanArticle(html)
	if err != nil {
		return nil, failure(f.Name(), entity.ID, malformed("cleaning article html: %v", err))
	}

	displayTitle := pr.Parse.Title
	if displayTitle == "" {
		displayTitle = strings.ReplaceAll(title, "_", " ")
	}

	src := types.Source{
		Type:        types.CategoryWikipedia,
		Title:       displayTitle,
		Authors:     []string{"Wikipedia contributors"},
		Publication: "Wikipedia",
		URL:         entity.WikipediaURL,
		Details:     types.EncyclopediaDetails{ArticleTitle: displayTitle, Language: lang},
	}

	content := document([]field{
		{"Source", "Wikipedia"},
		{"Article", displayTitle},
		{"Entity ID", entity.ID},
		{"Entity Name", entity.Label},
		{"URL", entity.WikipediaURL},
		{"Description", entity.Description},
	}, text)

	return []Candidate{{
		Source:      src,
		Content:     content,
		Original:    []byte(html),
		OriginalExt: "html",
	}}, nil
}

// articleTitle extracts the page title, language and API host from an
// article URL such as https://de.wikipedia.org/wiki/Gottfried_Wilhelm_Leibniz.
// Mobile hosts map to their desktop API.
func articleTitle(rawURL string) (title, lang, host string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", malformed("invalid Wikipedia URL %q: %v", rawURL, err)
	}
	rest, ok := strings.CutPrefix(u.Path, "/wiki/")
	if !ok || rest == "" {
		return "", "", "", malformed("invalid Wikipedia URL format: %s", rawURL)
	}

	host = strings.ToLower(u.Hostname())
	if host != "wikipedia.org" && !strings.HasSuffix(host, ".wikipedia.org") {
		return "", "", "", malformed("not a Wikipedia host: %s", rawURL)
	}
	host = strings.Replace(host, ".m.wikipedia.org", ".wikipedia.org", 1)
	if sub, _, found := strings.Cut(host, "."); found && host != "wikipedia.org" {
		lang = sub
	}
	return rest, lang, host, nil
}

// cleanArticle turns rendered article HTML into plain text, dropping
// scripts, styles, footnote markers and reference lists.
func cleanArticle(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, sup, span.reference-text, .mw-editsection").Remove()

	text := doc.Text()
	text = citationRe.ReplaceAllString(text, "")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	text = spacesRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text), nil
}

type parseResponse struct {
	Parse *struct {
		Title string `json:"title"`
		Text  struct {
			Content string `json:"*"`
		} `json:"text"`
	} `json:"parse"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}
