// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Entity is a person under research, identified by an external knowledge-base
// id (e.g. Wikidata "Q935"). Entities are supplied by an external resolver and
// are read-only here.
type Entity struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Label       string   `json:"label" yaml:"label" validate:"required"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Aliases     []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`

	// BirthDate and DeathDate use "YYYY" or "YYYY-MM-DD".
	BirthDate   string   `json:"birth_date,omitempty" yaml:"birth_date,omitempty"`
	DeathDate   string   `json:"death_date,omitempty" yaml:"death_date,omitempty"`
	Occupations []string `json:"occupations,omitempty" yaml:"occupations,omitempty"`
	Nationality string   `json:"nationality,omitempty" yaml:"nationality,omitempty"`

	// WikipediaURL is the entity's Wikipedia article in any language
	// edition, when one exists.
	WikipediaURL string `json:"wikipedia_url,omitempty" yaml:"wikipedia_url,omitempty" validate:"omitempty,url"`
}

// Names returns the label followed by any aliases. Fetchers search and
// match authors under every name.
func (e Entity) Names() []string {
	names := make([]string, 0, 1+len(e.Aliases))
	names = append(names, e.Label)
	return append(names, e.Aliases...)
}
