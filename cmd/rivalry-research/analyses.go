// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rivalry-research/internal/analysis"
)

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "List and show saved rivalry analyses",
	Long: `Analyses reads rivalry analyses saved under the analyses directory as
<entity1>_<entity2>/analysis.json. The analysis itself is produced by an
external step from the catalog that collect builds.`,
}

var analysesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved analyses, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := analysis.NewStore(cfg.Storage.AnalysesDir, logger)
		saved, err := store.List()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(saved) == 0 {
			fmt.Fprintln(w, "No saved analyses.")
			return nil
		}
		for _, s := range saved {
			at := "unknown"
			if !s.AnalyzedAt.IsZero() {
				at = s.AnalyzedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%-24s  %s\n", s.ID, at)
		}
		return nil
	},
}

var analysesShowCmd = &cobra.Command{
	Use:   "show <analysis-id>",
	Short: "Print a saved analysis as JSON",
	Long: `Show prints a saved analysis. With --hydrate, the catalog copies in the
analysis are replaced with the current registry records first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hydrate, _ := cmd.Flags().GetBool("hydrate")

		store := analysis.NewStore(cfg.Storage.AnalysesDir, logger)
		data, err := store.Load(args[0])
		if err != nil {
			return err
		}

		if hydrate {
			a, err := openApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := store.Hydrate(context.Background(), data, a.registry); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	},
}

func init() {
	analysesShowCmd.Flags().Bool("hydrate", false, "reload cited sources from the registry")

	analysesCmd.AddCommand(analysesListCmd)
	analysesCmd.AddCommand(analysesShowCmd)
	rootCmd.AddCommand(analysesCmd)
}
