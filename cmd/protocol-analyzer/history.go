// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/protocol-analyzer/internal/report"
	"github.com/pdiddy/protocol-analyzer/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved analyses",
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved analyses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		perPage, _ := cmd.Flags().GetInt("per-page")

		cfg := pipelineConfig().Store
		if perPage > 0 {
			cfg.PerPage = perPage
		}
		s, err := store.New(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		total, err := s.Count(ctx)
		if err != nil {
			return err
		}
		summaries, err := s.List(ctx, page, cfg.PerPage)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No analyses found.")
			return nil
		}

		fmt.Printf("%-36s  %-20s  %-30s  %-24s  %s\n", "ID", "Created", "File", "Disease", "Drugs")
		for _, sm := range summaries {
			fmt.Printf("%-36s  %-20s  %-30s  %-24s  %d\n",
				sm.ID, sm.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				clip(sm.Filename, 30), clip(sm.DiseaseContext, 24), sm.Drugs)
		}
		fmt.Printf("\npage %d, %d of %d analyses\n", max(page, 1), len(summaries), total)
		return nil
	},
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a saved analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		s, err := store.New(pipelineConfig().Store)
		if err != nil {
			return err
		}
		defer s.Close()

		a, err := s.Get(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no analysis with id %s", args[0])
		}
		if err != nil {
			return err
		}
		return report.Write(format, a, os.Stdout)
	},
}

func init() {
	historyListCmd.Flags().Int("page", 1, "page number")
	historyListCmd.Flags().Int("per-page", 0, "analyses per page (default: store.per_page, 10)")
	historyShowCmd.Flags().String("format", report.FormatTable, "output format: table, markdown, json or yaml")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

// clip shortens s to n runes for fixed-width columns.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
