// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the protocol-analyzer CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/protocol-analyzer/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded at startup.
	loadedSecrets secrets.Store

	// logger is configured from --log-level before any subcommand runs.
	logger = zerolog.Nop()
)

// rootCmd is the base command for the protocol-analyzer CLI.
var rootCmd = &cobra.Command{
	Use:   "protocol-analyzer",
	Short: "Extract and enrich the drug table of a clinical protocol",
	Long: `protocol-analyzer reads a clinical-protocol document (.docx), extracts its
drug table, and enriches every drug with an English name, supporting
literature, regulatory status, formulary membership and an evidence class.

Use analyze to process a document, formulary to build the local essential
medicines lookup, and history to browse saved analyses.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		lvl, err := zerolog.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", level, err)
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
			Level(lvl).With().Timestamp().Logger()

		s, err := secrets.Load(".secrets/", ".env", logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if names := s.Names(); len(names) > 0 {
			logger.Debug().Strs("keys", names).Msg("loaded secrets")
		}
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug().Str("path", used).Msg("using config file")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./protocol-analyzer.yaml or ~/.config/protocol-analyzer/protocol-analyzer.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", defaultStorePath, "analysis history database")

	viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("db"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("protocol-analyzer")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "protocol-analyzer"))
		}
	}

	viper.SetEnvPrefix("PROTOCOL_ANALYZER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "reading config %s: %v\n", cfgFile, err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
