// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

// EntityFile lists resolved entities. Entity resolution happens elsewhere;
// the CLI only reads its output.
type EntityFile struct {
	Entities []types.Entity `yaml:"entities"`
}

// loadEntities reads an entity file.
func loadEntities(path string) ([]types.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading entity file: %w", err)
	}
	var ef EntityFile
	if err := yaml.Unmarshal(data, &ef); err != nil {
		return nil, fmt.Errorf("parsing entity file %s: %w", path, err)
	}
	return ef.Entities, nil
}

// selectEntities returns the entities named by ids, in ids order, or every
// entity when ids is empty.
func selectEntities(all []types.Entity, ids []string) ([]types.Entity, error) {
	if len(ids) == 0 {
		return all, nil
	}
	byID := make(map[string]types.Entity, len(all))
	for _, e := range all {
		byID[e.ID] = e
	}
	out := make([]types.Entity, 0, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("entity %s not in entity file", id)
		}
		out = append(out, e)
	}
	return out, nil
}
