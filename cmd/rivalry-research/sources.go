// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect and maintain the source registry",
}

// --- stats subcommand ---

var sourcesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show registry statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.registry.Stats(context.Background())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Total sources: %d\n", st.Total)
		names := make([]string, 0, len(st.ByType))
		for t := range st.ByType {
			names = append(names, string(t))
		}
		sort.Strings(names)
		for _, t := range names {
			fmt.Fprintf(w, "  %-16s %d\n", t, st.ByType[types.SourceCategory(t)])
		}
		fmt.Fprintf(w, "Primary: %d  Secondary: %d\n", st.Primary, st.Secondary)
		fmt.Fprintf(w, "Manual:  %d  Fetched:   %d\n", st.Manual, st.Auto)
		return nil
	},
}

// --- show subcommand ---

var sourcesShowCmd = &cobra.Command{
	Use:   "show <source-id>",
	Short: "Show one source and optionally its stored content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withContent, _ := cmd.Flags().GetBool("content")

		a, err := openApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		src, err := a.registry.GetByID(context.Background(), args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(src); err != nil {
			return err
		}
		if !withContent {
			return nil
		}
		body, err := a.agg.Content(src)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%s\n", body)
		return nil
	},
}

// --- export subcommand ---

var sourcesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the registry (or one entity's sources) to YAML or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		entityID, _ := cmd.Flags().GetString("entity")
		output, _ := cmd.Flags().GetString("output")

		a, err := openApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		w := cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			defer f.Close()
			w = f
		}

		ctx := context.Background()
		switch format {
		case "yaml", "":
			err = a.registry.ExportYAML(ctx, w, entityID)
		case "json":
			err = a.registry.ExportJSON(ctx, w, entityID)
		default:
			return fmt.Errorf("unsupported format %q: use yaml or json", format)
		}
		if err != nil {
			return err
		}
		if output != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", output)
		}
		return nil
	},
}

// --- refresh subcommand ---

var sourcesRefreshCmd = &cobra.Command{
	Use:   "refresh <source-id> <file>",
	Short: "Replace the stored content of a source",
	Long: `Refresh replaces the stored text of an existing source with the contents
of file and updates its content hash. The source id, URL and credibility stay
the same. Collection never rewrites stored content on its own; this is the
explicit path for accepting upstream changes.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading content: %w", err)
		}

		a, err := openApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		src, err := a.agg.Refresh(context.Background(), args[0], body)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", src.SourceID, src.ContentHash[:12], strings.TrimSpace(src.Title))
		return nil
	},
}

func init() {
	sourcesShowCmd.Flags().Bool("content", false, "print the stored content")

	sourcesExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	sourcesExportCmd.Flags().String("entity", "", "only export sources collected for this entity id")
	sourcesExportCmd.Flags().String("output", "", "write to file instead of stdout")

	sourcesCmd.AddCommand(sourcesStatsCmd)
	sourcesCmd.AddCommand(sourcesShowCmd)
	sourcesCmd.AddCommand(sourcesExportCmd)
	sourcesCmd.AddCommand(sourcesRefreshCmd)

	rootCmd.AddCommand(sourcesCmd)
}
