// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rivalry-research/internal/aggregate"
	"github.com/pdiddy/rivalry-research/pkg/types"
)

var collectCmd = &cobra.Command{
	Use:   "collect [entity-id...]",
	Short: "Collect sources for entities from every enabled provider",
	Long: `Collect runs the enabled providers for each entity in the entity file
(or only the ids given as arguments), registers new sources and reuses ones
already in the registry. Two ids collect a pair and print the merged catalog.

Running collect again for the same entity performs no new writes.`,
	RunE: runCollect,
}

func runCollect(cmd *cobra.Command, args []string) error {
	entityFile, _ := cmd.Flags().GetString("entities")
	all, err := loadEntities(entityFile)
	if err != nil {
		return err
	}
	entities, err := selectEntities(all, args)
	if err != nil {
		return err
	}

	a, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	w := cmd.OutOrStdout()

	if len(entities) == 2 {
		cat, err := a.agg.CollectPair(ctx, entities[0], entities[1])
		if err != nil {
			return err
		}
		printCollection(w, entities[0], cat.Entity1)
		printCollection(w, entities[1], cat.Entity2)
		fmt.Fprintf(w, "\nCatalog: %d unique sources\n", len(cat.Sources))
		printSources(w, cat.Sources)
		return nil
	}

	for _, e := range entities {
		coll, err := a.agg.CollectSources(ctx, e)
		if err != nil {
			return err
		}
		printCollection(w, e, coll)
		printSources(w, coll.Sources)
	}
	return nil
}

func printCollection(w io.Writer, e types.Entity, c aggregate.Collection) {
	fmt.Fprintf(w, "%s (%s): %d sources, %d new, %d reused\n",
		e.Label, e.ID, len(c.Sources), c.Inserted, c.Reused)
	for _, f := range c.Failures {
		fmt.Fprintf(w, "  provider %s failed (%s): %v\n", f.Provider, f.Kind, f.Err)
	}
	if len(c.MissingContent) > 0 {
		fmt.Fprintf(w, "  content missing for: %s\n", strings.Join(c.MissingContent, ", "))
	}
}

func printSources(w io.Writer, sources []types.Source) {
	for _, s := range sources {
		primary := ""
		if s.IsPrimarySource {
			primary = " [primary]"
		}
		fmt.Fprintf(w, "  %s  %-14s  %.2f  %s%s\n", s.SourceID, s.Type, s.CredibilityScore, truncate(s.Title, 60), primary)
	}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	collectCmd.Flags().String("entities", "entities.yaml", "YAML file listing resolved entities")
	rootCmd.AddCommand(collectCmd)
}
