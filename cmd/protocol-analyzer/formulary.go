// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/protocol-analyzer/internal/container"
	"github.com/pdiddy/protocol-analyzer/internal/convert"
	"github.com/pdiddy/protocol-analyzer/internal/formulary"
	"github.com/pdiddy/protocol-analyzer/internal/httputil"
	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

var formularyCmd = &cobra.Command{
	Use:   "formulary",
	Short: "Build and query the WHO Essential Medicines lookup",
	Long: `Formulary manages the newline-delimited list of WHO Model List medicine
names that analyze uses for the WHO EML column.`,
}

// --- build subcommand ---

var formularyBuildCmd = &cobra.Command{
	Use:   "build <eml.pdf|eml.txt>",
	Short: "Mine medicine names from the WHO Model List",
	Long: `Build converts the WHO Model List to text (PDFs go through the pdftotext
container image under docker or podman; .txt files are read as is),
extracts the medicine names and writes them sorted, one per line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = viper.GetString("formulary.path")
		}

		conv, err := convert.ForPath(args[0], container.DetectRuntime)
		if err != nil {
			return err
		}
		_, err = formulary.Build(conv, args[0], out, os.Stdout)
		return err
	},
}

// --- fetch subcommand ---

var formularyFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the WHO Model List PDF",
	Long: `Fetch downloads the WHO Model List of Essential Medicines PDF from --url so
that formulary build can mine it. The download is rejected unless it is a PDF.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		out, _ := cmd.Flags().GetString("out")

		client := httputil.NewClient(pipelineConfig().Registry.HTTPConfig, nil)
		_, err := formulary.Fetch(cmd.Context(), client, url, out, os.Stdout)
		return err
	},
}

// --- check subcommand ---

var formularyCheckCmd = &cobra.Command{
	Use:   "check <name...>",
	Short: "Report whether drug names are on the WHO Model List",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("formulary.path")
		set, err := formulary.Load(path)
		if err != nil {
			return err
		}
		if set.Len() == 0 {
			return fmt.Errorf("formulary %s is missing or empty: run formulary build first", path)
		}

		for _, name := range args {
			status := types.StatusNotFound
			if set.Contains(name) {
				status = types.StatusFound
			}
			fmt.Printf("%-40s  %s\n", name, status)
		}
		return nil
	},
}

func init() {
	formularyBuildCmd.Flags().String("out", "", "output file (default: the configured formulary path)")
	formularyFetchCmd.Flags().String("url", "", "URL of the WHO Model List PDF")
	formularyFetchCmd.Flags().String("out", "data/who_eml.pdf", "where to save the PDF")
	formularyFetchCmd.MarkFlagRequired("url")

	formularyCmd.AddCommand(formularyFetchCmd)
	formularyCmd.AddCommand(formularyBuildCmd)
	formularyCmd.AddCommand(formularyCheckCmd)
	rootCmd.AddCommand(formularyCmd)
}
