// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/rivalry-research/internal/aggregate"
	"github.com/pdiddy/rivalry-research/pkg/types"
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Register a manually supplied document for an entity",
	Long: `Add registers an HTML, Markdown, text or PDF document as a manual source
for one entity. PDF text is extracted from the file. The document gets the
synthetic URL manual://<entity>/<slug>; adding the same slug again returns
the existing record.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	entityID, _ := cmd.Flags().GetString("entity")
	label, _ := cmd.Flags().GetString("label")
	slug, _ := cmd.Flags().GetString("slug")
	title, _ := cmd.Flags().GetString("title")
	authors, _ := cmd.Flags().GetStringSlice("author")
	publication, _ := cmd.Flags().GetString("publication")
	date, _ := cmd.Flags().GetString("date")
	primary, _ := cmd.Flags().GetBool("primary")

	body, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(args[0])), ".")
	if ext == "htm" {
		ext = "html"
	}
	if slug == "" {
		slug = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	if label == "" {
		label = entityID
	}

	a, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := a.agg.IngestManual(context.Background(), types.Entity{ID: entityID, Label: label}, aggregate.ManualDocument{
		Slug:            slug,
		Title:           title,
		Authors:         authors,
		Publication:     publication,
		PublicationDate: date,
		Primary:         primary,
		Ext:             ext,
		Body:            body,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", src.SourceID, src.URL)
	return nil
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Compare the manual documents directory with the registry",
	Long: `Scan walks the manual documents directory (<Label>_<QID>/<slug>/) and
reports which documents are registered, which are not yet processed and which
are invalid. With --process, unprocessed documents are registered.`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	entityID, _ := cmd.Flags().GetString("entity")
	process, _ := cmd.Flags().GetBool("process")

	a, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	w := cmd.OutOrStdout()

	res, err := a.agg.Scan(ctx, a.manual, entityID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Registered:  %d\n", len(res.Registered))
	fmt.Fprintf(w, "Unprocessed: %d\n", len(res.Unprocessed))
	for _, d := range res.Unprocessed {
		fmt.Fprintf(w, "  %s\n", d.URI())
	}
	fmt.Fprintf(w, "Invalid:     %d\n", len(res.Invalid))
	for _, inv := range res.Invalid {
		fmt.Fprintf(w, "  %s: %s\n", inv.Dir, inv.Reason)
	}

	if !process || len(res.Unprocessed) == 0 {
		return nil
	}
	added, err := a.agg.ProcessDocuments(ctx, a.manual, res.Unprocessed)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nProcessed %d document(s)\n", len(added))
	printSources(w, added)
	return nil
}

func init() {
	addCmd.Flags().String("entity", "", "entity id the document is about (e.g. Q9021)")
	addCmd.Flags().String("label", "", "entity label (default: the entity id)")
	addCmd.Flags().String("slug", "", "document slug (default: file name without extension)")
	addCmd.Flags().String("title", "", "document title")
	addCmd.Flags().StringSlice("author", nil, "document author (repeatable)")
	addCmd.Flags().String("publication", "", "publication or publisher")
	addCmd.Flags().String("date", "", "publication date (YYYY or YYYY-MM-DD)")
	addCmd.Flags().Bool("primary", false, "document is written by the entity")
	addCmd.MarkFlagRequired("entity")
	addCmd.MarkFlagRequired("title")

	scanCmd.Flags().String("entity", "", "only scan documents for this entity id")
	scanCmd.Flags().Bool("process", false, "register unprocessed documents")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(scanCmd)
}
