// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// SourceCategory is the closed set of provider categories a Source can belong to.
type SourceCategory string

const (
	CategoryWikipedia     SourceCategory = "wikipedia"
	CategoryAcademicPaper SourceCategory = "academic_paper"
	CategoryArxivPaper    SourceCategory = "arxiv_paper"
	CategoryManual        SourceCategory = "manual"
)

// AllCategories lists every known SourceCategory.
var AllCategories = []SourceCategory{
	CategoryWikipedia,
	CategoryAcademicPaper,
	CategoryArxivPaper,
	CategoryManual,
}

// ParseSourceCategory converts a stored or user-supplied string to a
// SourceCategory. Unknown values wrap ErrUnknownSourceCategory.
func ParseSourceCategory(s string) (SourceCategory, error) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSourceCategory, s)
}

// sourceIDPrefix and sourceIDHexLen define the id format "src_" + 12 hex chars.
const (
	sourceIDPrefix = "src_"
	sourceIDHexLen = 12
)

// SourceID derives the stable source identifier from a URL. Two records with
// the same URL always share an id; the body is never part of the identity.
func SourceID(url string) string {
	h := sha256.Sum256([]byte(url))
	return sourceIDPrefix + hex.EncodeToString(h[:])[:sourceIDHexLen]
}

// ContentHash returns the hex SHA-256 digest of a content body.
func ContentHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// Source is a fetched or manually supplied reference with provenance metadata.
type Source struct {
	// SourceID is SourceID(URL).
	SourceID string `json:"source_id" yaml:"source_id"`

	Type  SourceCategory `json:"type" yaml:"type"`
	Title string         `json:"title" yaml:"title"`

	// Authors lists the authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	Publication     string `json:"publication,omitempty" yaml:"publication,omitempty"`
	PublicationDate string `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`

	// URL is the dedup key. Manual documents carry a synthetic manual:// URI.
	URL  string `json:"url" yaml:"url"`
	DOI  string `json:"doi,omitempty" yaml:"doi,omitempty"`
	ISBN string `json:"isbn,omitempty" yaml:"isbn,omitempty"`

	// RetrievedAt is the time of the first successful fetch.
	RetrievedAt time.Time `json:"retrieved_at" yaml:"retrieved_at"`

	// CredibilityScore is assigned once at insertion and never changes.
	CredibilityScore float64 `json:"credibility_score" yaml:"credibility_score"`
	IsPrimarySource  bool    `json:"is_primary_source" yaml:"is_primary_source"`

	// StoredContentPath is relative to the content store root. Empty until
	// content has been persisted.
	StoredContentPath string `json:"stored_content_path,omitempty" yaml:"stored_content_path,omitempty"`

	// ContentHash is the SHA-256 of the stored body, used to notice drift.
	ContentHash string `json:"content_hash,omitempty" yaml:"content_hash,omitempty"`

	IsManual bool `json:"is_manual" yaml:"is_manual"`

	// Details holds the provider-specific fields for Type.
	Details SourceDetails `json:"-" yaml:"-"`
}

// HasContent reports whether content has been persisted for the source.
func (s Source) HasContent() bool {
	return s.StoredContentPath != ""
}

// sourceJSON mirrors Source with Details encoded as a tagged variant.
type sourceJSON struct {
	sourceAlias
	Details json.RawMessage `json:"details,omitempty"`
}

type sourceAlias Source

// MarshalJSON encodes Details as {"kind": ..., ...}.
func (s Source) MarshalJSON() ([]byte, error) {
	out := sourceJSON{sourceAlias: sourceAlias(s)}
	if s.Details != nil {
		raw, err := MarshalDetails(s.Details)
		if err != nil {
			return nil, err
		}
		out.Details = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a Source including its tagged Details variant.
func (s *Source) UnmarshalJSON(data []byte) error {
	var in sourceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Source(in.sourceAlias)
	if len(in.Details) > 0 && string(in.Details) != "null" {
		d, err := UnmarshalDetails(in.Details)
		if err != nil {
			return err
		}
		s.Details = d
	}
	return nil
}
