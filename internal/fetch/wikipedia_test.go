// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

// withWikipediaAPI routes API calls to ts and returns the article hosts
// that were asked for.
func withWikipediaAPI(t *testing.T, ts *httptest.Server) *[]string {
	t.Helper()
	var hosts []string
	old := wikipediaAPIURL
	wikipediaAPIURL = func(host string) string {
		hosts = append(hosts, host)
		return ts.URL
	}
	t.Cleanup(func() { wikipediaAPIURL = old })
	return &hosts
}

const newtonParse = `{"parse":{"title":"Isaac Newton","text":{"*":"<div><style>.x{}</style><p>Sir <b>Isaac Newton</b> was an English polymath.<sup>[1]</sup></p><script>var a;</script><p>He   invented calculus [2].</p><ol><li><span class=\"reference-text\">Ref one</span></li></ol></div>"}}}`

func TestWikipediaFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "parse", r.URL.Query().Get("action"))
		assert.Equal(t, "Isaac_Newton", r.URL.Query().Get("page"))
		assert.Equal(t, "rivalry-research/test", r.Header.Get("User-Agent"))
		w.Write([]byte(newtonParse))
	}))
	defer ts.Close()
	withWikipediaAPI(t, ts)

	f := &WikipediaFetcher{Client: testClient(ts)}
	got, err := f.Fetch(context.Background(), newton)
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, types.CategoryWikipedia, c.Source.Type)
	assert.Equal(t, newton.WikipediaURL, c.Source.URL)
	assert.Equal(t, "Isaac Newton", c.Source.Title)
	assert.Equal(t, []string{"Wikipedia contributors"}, c.Source.Authors)
	assert.Empty(t, c.Source.SourceID, "identity is assigned by the aggregator")
	assert.Equal(t, types.EncyclopediaDetails{ArticleTitle: "Isaac Newton", Language: "en"}, c.Source.Details)
	assert.Equal(t, "html", c.OriginalExt)
	assert.Contains(t, string(c.Original), "<script>")

	text := string(c.Content)
	assert.True(t, strings.HasPrefix(text, "---\nSource: Wikipedia\n"))
	assert.Contains(t, text, "Entity ID: Q935")
	assert.Contains(t, text, "English polymath.")
	assert.Contains(t, text, "He invented calculus .")
	assert.NotContains(t, text, "[1]")
	assert.NotContains(t, text, "var a")
	assert.NotContains(t, text, "Ref one")
}

func TestWikipediaNoArticle(t *testing.T) {
	f := NewWikipediaFetcher(types.HTTPConfig{UserAgent: "ua"})
	got, err := f.Fetch(context.Background(), types.Entity{ID: "Q1", Label: "Nobody"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWikipediaMissingTitle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error":{"code":"missingtitle","info":"The page you specified doesn't exist."}}`))
	}))
	defer ts.Close()
	withWikipediaAPI(t, ts)

	f := &WikipediaFetcher{Client: testClient(ts)}
	got, err := f.Fetch(context.Background(), newton)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWikipediaFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    FailureKind
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			want:    KindUpstream,
		},
		{
			name:    "rate limited",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			want:    KindRateLimited,
		},
		{
			name:    "bad json",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`{not json`)) },
			want:    KindMalformed,
		},
		{
			name:    "no text",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`{"parse":{"title":"X"}}`)) },
			want:    KindMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()
			withWikipediaAPI(t, ts)

			f := &WikipediaFetcher{Client: testClient(ts)}
			_, err := f.Fetch(context.Background(), newton)
			var ff *FetchFailure
			require.True(t, errors.As(err, &ff), "got %v", err)
			assert.Equal(t, tt.want, ff.Kind)
			assert.Equal(t, "wikipedia", ff.Provider)
			assert.Equal(t, "Q935", ff.EntityID)
		})
	}
}

func TestWikipediaInvalidURL(t *testing.T) {
	f := NewWikipediaFetcher(types.HTTPConfig{UserAgent: "ua"})
	_, err := f.Fetch(context.Background(), types.Entity{ID: "Q1", Label: "X", WikipediaURL: "https://example.org/page"})
	var ff *FetchFailure
	require.True(t, errors.As(err, &ff))
	assert.Equal(t, KindMalformed, ff.Kind)
}

func TestWikipediaUsesArticleLanguageHost(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Gottfried_Wilhelm_Leibniz", r.URL.Query().Get("page"))
		w.Write([]byte(`{"parse":{"title":"Gottfried Wilhelm Leibniz","text":{"*":"<p>Deutscher Universalgelehrter.</p>"}}}`))
	}))
	defer ts.Close()
	hosts := withWikipediaAPI(t, ts)

	leibniz := types.Entity{ID: "Q9047", Label: "Gottfried Wilhelm Leibniz", WikipediaURL: "https://de.m.wikipedia.org/wiki/Gottfried_Wilhelm_Leibniz"}
	f := &WikipediaFetcher{Client: testClient(ts)}
	got, err := f.Fetch(context.Background(), leibniz)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, []string{"de.wikipedia.org"}, *hosts)
	assert.Equal(t, types.EncyclopediaDetails{ArticleTitle: "Gottfried Wilhelm Leibniz", Language: "de"}, got[0].Source.Details)
	assert.Equal(t, leibniz.WikipediaURL, got[0].Source.URL)
	assert.Contains(t, string(got[0].Content), "Deutscher Universalgelehrter.")
}

func TestArticleTitle(t *testing.T) {
	title, lang, host, err := articleTitle("https://fr.wikipedia.org/wiki/Isaac_Newton")
	require.NoError(t, err)
	assert.Equal(t, "Isaac_Newton", title)
	assert.Equal(t, "fr", lang)
	assert.Equal(t, "https://fr.wikipedia.org/w/api.php", wikipediaAPIURL(host))

	_, _, _, err = articleTitle("https://example.org/wiki/Isaac_Newton")
	assert.ErrorIs(t, err, errMalformed)
}
