// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
)

// SourceDetails is the closed set of provider-specific payloads attached to a
// Source. Only the variants declared in this package implement it.
type SourceDetails interface {
	// Category reports which SourceCategory the variant belongs to.
	Category() SourceCategory
	isSourceDetails()
}

// EncyclopediaDetails describes an encyclopedia article.
type EncyclopediaDetails struct {
	ArticleTitle string `json:"article_title"`
	Language     string `json:"language,omitempty"`
}

// PaperDetails describes a peer-reviewed paper or a preprint. Kind
// distinguishes the two because they share a field set.
type PaperDetails struct {
	Kind       SourceCategory `json:"-"`
	Venue      string         `json:"venue,omitempty"`
	Year       int            `json:"year,omitempty"`
	Citations  int            `json:"citations,omitempty"`
	ArxivID    string         `json:"arxiv_id,omitempty"`
	Categories []string       `json:"categories,omitempty"`
	Abstract   string         `json:"abstract,omitempty"`
}

// ManualDetails describes a manually supplied document.
type ManualDetails struct {
	EntityID         string `json:"entity_id"`
	Slug             string `json:"slug"`
	MediaType        string `json:"media_type,omitempty"`
	OriginalFilename string `json:"original_filename,omitempty"`
}

func (EncyclopediaDetails) Category() SourceCategory { return CategoryWikipedia }
func (ManualDetails) Category() SourceCategory       { return CategoryManual }

// Category returns Kind, defaulting to CategoryAcademicPaper.
func (d PaperDetails) Category() SourceCategory {
	if d.Kind == CategoryArxivPaper {
		return CategoryArxivPaper
	}
	return CategoryAcademicPaper
}

func (EncyclopediaDetails) isSourceDetails() {}
func (PaperDetails) isSourceDetails()        {}
func (ManualDetails) isSourceDetails()       {}

type detailsEnvelope struct {
	Kind SourceCategory `json:"kind"`
}

// MarshalDetails encodes a variant as a JSON object carrying a "kind" tag.
func MarshalDetails(d SourceDetails) ([]byte, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s details: %w", d.Category(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("marshaling %s details: %w", d.Category(), err)
	}
	kind, _ := json.Marshal(d.Category())
	fields["kind"] = kind
	return json.Marshal(fields)
}

// UnmarshalDetails decodes a tagged variant. An unknown kind is an error.
func UnmarshalDetails(data []byte) (SourceDetails, error) {
	var env detailsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding details: %w", err)
	}
	switch env.Kind {
	case CategoryWikipedia:
		var d EncyclopediaDetails
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decoding wikipedia details: %w", err)
		}
		return d, nil
	case CategoryAcademicPaper, CategoryArxivPaper:
		var d PaperDetails
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decoding paper details: %w", err)
		}
		d.Kind = env.Kind
		return d, nil
	case CategoryManual:
		var d ManualDetails
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decoding manual details: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: details kind %q", ErrUnknownSourceCategory, env.Kind)
	}
}
