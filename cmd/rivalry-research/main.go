// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the rivalry-research CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/rivalry-research/internal/config"
	"github.com/pdiddy/rivalry-research/internal/secrets"
	"github.com/pdiddy/rivalry-research/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is loaded once before any subcommand runs.
	cfg    types.Config
	logger = zerolog.Nop()
)

// rootCmd is the base command for the rivalry-research CLI.
var rootCmd = &cobra.Command{
	Use:   "rivalry-research",
	Short: "Collect and deduplicate biographical sources for rivalry analysis",
	Long: `rivalry-research gathers sources about pairs of people from Wikipedia,
arXiv, Semantic Scholar, OpenAlex and manually supplied documents. Sources are
deduplicated by URL, scored for credibility and kept in a local SQLite registry
with their content on disk, ready for an external analysis step.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = loaded
		logger = config.NewLogger(cfg.Logging, os.Stderr)

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		s.Apply(&cfg.Providers)
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./rivalry-research.yaml or ~/.config/rivalry-research/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "base data directory (contains sources.db, raw_sources/, manual_sources/, analyses/)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")

	viper.BindPFlag("storage.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("rivalry-research")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "rivalry-research"))
		}
	}

	config.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
