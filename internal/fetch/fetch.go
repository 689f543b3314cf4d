// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch retrieves candidate sources about an entity from external
// providers. Fetchers only produce candidates; identity, credibility and
// persistence are decided by the aggregator.
package fetch

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/pdiddy/rivalry-research/internal/httputil"
	"github.com/pdiddy/rivalry-research/pkg/types"
)

// Fetcher retrieves candidate sources for one entity from one provider.
// Zero upstream results is an empty slice and a nil error. Every failure is
// returned as a *FetchFailure.
type Fetcher interface {
	Name() string
	Category() types.SourceCategory
	Fetch(ctx context.Context, entity types.Entity) ([]Candidate, error)
}

// Candidate is a provider result before deduplication. Source carries
// metadata only; SourceID, CredibilityScore, StoredContentPath and
// ContentHash are assigned by the aggregator.
type Candidate struct {
	Source types.Source

	// Content is the text rendering stored as content.txt.
	Content []byte

	// Original holds raw upstream bytes, stored as original.<OriginalExt>
	// when non-empty.
	Original    []byte
	OriginalExt string
}

// FailureKind classifies a provider failure.
type FailureKind string

const (
	KindTimeout     FailureKind = "timeout"
	KindRateLimited FailureKind = "rate_limited"
	KindUpstream    FailureKind = "upstream"
	KindMalformed   FailureKind = "malformed"
)

// FetchFailure reports a provider that could not deliver results for an
// entity. It is recoverable: other providers continue.
type FetchFailure struct {
	Provider string
	EntityID string
	Kind     FailureKind
	Err      error
}

func (f *FetchFailure) Error() string {
	return fmt.Sprintf("%s fetch for %s failed (%s): %v", f.Provider, f.EntityID, f.Kind, f.Err)
}

func (f *FetchFailure) Unwrap() error { return f.Err }

// IsFetchFailure reports whether err is or wraps a *FetchFailure.
func IsFetchFailure(err error) bool {
	var f *FetchFailure
	return errors.As(err, &f)
}

// errMalformed marks upstream payloads that decoded but did not have the
// expected shape.
var errMalformed = errors.New("malformed upstream response")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errMalformed, fmt.Sprintf(format, args...))
}

// failure wraps err as a *FetchFailure for provider and entity.
func failure(provider, entityID string, err error) *FetchFailure {
	var f *FetchFailure
	if errors.As(err, &f) {
		return f
	}
	return &FetchFailure{Provider: provider, EntityID: entityID, Kind: classify(err), Err: err}
}

func classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests {
			return KindRateLimited
		}
		return KindUpstream
	}

	var (
		syntaxErr    *json.SyntaxError
		typeErr      *json.UnmarshalTypeError
		xmlSyntaxErr *xml.SyntaxError
	)
	if errors.Is(err, errMalformed) || errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) || errors.As(err, &xmlSyntaxErr) {
		return KindMalformed
	}
	return KindUpstream
}

// isPrimary reports whether the entity appears among the authors under
// its label or any alias: either name contains the other, ignoring case.
func isPrimary(entity types.Entity, authors []string) bool {
	for _, n := range entity.Names() {
		name := strings.ToLower(strings.TrimSpace(n))
		if name == "" {
			continue
		}
		for _, a := range authors {
			author := strings.ToLower(strings.TrimSpace(a))
			if author == "" {
				continue
			}
			if strings.Contains(author, name) || strings.Contains(name, author) {
				return true
			}
		}
	}
	return false
}

// maxQueryNames caps how many of an entity's names go into one search.
const maxQueryNames = 4

// queryNames returns the label and the first distinct aliases, quoted as
// search phrases.
func queryNames(entity types.Entity) []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range entity.Names() {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, fmt.Sprintf("%q", n))
		if len(out) == maxQueryNames {
			break
		}
	}
	return out
}

// field is one line of a document header.
type field struct {
	key, value string
}

// document renders a metadata header followed by body text.
func document(header []field, body string) []byte {
	var b strings.Builder
	b.WriteString("---\n")
	for _, f := range header {
		v := f.value
		if v == "" {
			v = "N/A"
		}
		fmt.Fprintf(&b, "%s: %s\n", f.key, v)
	}
	b.WriteString("---\n\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// paperBody renders the common markdown layout for paper candidates.
func paperBody(title string, authors []string, published, venue, abstract string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Authors:** %s\n\n", joinOr(authors, "Unknown"))
	if published == "" {
		published = "Unknown"
	}
	fmt.Fprintf(&b, "**Published:** %s", published)
	if venue != "" {
		fmt.Fprintf(&b, " in %s", venue)
	}
	b.WriteString("\n\n")
	if abstract == "" {
		abstract = "No abstract available."
	}
	fmt.Fprintf(&b, "**Abstract:**\n\n%s\n", abstract)
	return b.String()
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}

// doiURL returns the canonical resolver URL for a DOI. DOIs are case
// insensitive, so the URL is lower-cased to dedup across providers.
func doiURL(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	if doi == "" {
		return ""
	}
	return "https://doi.org/" + strings.ToLower(doi)
}

func bareDOI(doi string) string {
	return strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(doi), "https://doi.org/"), "http://doi.org/")
}

func maxResults(n int) int {
	if n <= 0 {
		return defaultMaxResults
	}
	return n
}

const defaultMaxResults = 3

// searchTerms builds the free-text query used by the paper search
// providers: the quoted names joined with OR, followed by the description.
func searchTerms(entity types.Entity) string {
	names := queryNames(entity)
	q := strings.Join(names, " OR ")
	if len(names) > 1 {
		q = "(" + q + ")"
	}
	if entity.Description != "" {
		q += " " + entity.Description
	}
	return q
}
