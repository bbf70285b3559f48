// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/protocol-analyzer/internal/ai"
	"github.com/pdiddy/protocol-analyzer/internal/enrich"
	"github.com/pdiddy/protocol-analyzer/internal/extract"
	"github.com/pdiddy/protocol-analyzer/internal/formulary"
	"github.com/pdiddy/protocol-analyzer/internal/metrics"
	"github.com/pdiddy/protocol-analyzer/internal/pubmed"
	"github.com/pdiddy/protocol-analyzer/internal/regulatory"
	"github.com/pdiddy/protocol-analyzer/internal/report"
	"github.com/pdiddy/protocol-analyzer/internal/store"
	"github.com/pdiddy/protocol-analyzer/internal/translate"
	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.docx>",
	Short: "Extract and enrich the drug table of a protocol document",
	Long: `Analyze reads the drug table from a clinical-protocol .docx file, normalizes
each usage string into dose, units and route, and enriches every drug:
English name, PubMed links, FDA and EMA status, WHO EML membership and a
system level of evidence.

Enrichment failures never stop the run; the affected fields keep their
sentinel values. The finished analysis is printed, optionally written to
--report, and saved to the history database unless --no-store is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runAnalyze(cmd.Context(), cmd, args[0]); err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("disease", "", "disease context for the literature search (inferred by AI when empty)")
	analyzeCmd.Flags().String("resolver", string(types.ResolverTranslate), "name resolver: translate or ai")
	analyzeCmd.Flags().String("evidence", string(types.EvidenceRule), "system evidence source: rule or ai")
	analyzeCmd.Flags().Int("workers", 4, "records enriched concurrently (max 8)")
	analyzeCmd.Flags().Duration("timeout", 20*time.Second, "timeout for each external call")
	analyzeCmd.Flags().String("formulary", defaultFormularyPath, "WHO EML lookup file")
	analyzeCmd.Flags().String("report", "", "also write the report to this file")
	analyzeCmd.Flags().String("format", report.FormatTable, "output format: table, markdown, json or yaml")
	analyzeCmd.Flags().Bool("no-store", false, "do not save the analysis to the history database")
	analyzeCmd.Flags().String("metrics-file", "", "write Prometheus metrics to this file")

	viper.BindPFlag("enrichment.resolver", analyzeCmd.Flags().Lookup("resolver"))
	viper.BindPFlag("enrichment.evidence_source", analyzeCmd.Flags().Lookup("evidence"))
	viper.BindPFlag("enrichment.workers", analyzeCmd.Flags().Lookup("workers"))
	viper.BindPFlag("enrichment.call_timeout", analyzeCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("formulary.path", analyzeCmd.Flags().Lookup("formulary"))

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(ctx context.Context, cmd *cobra.Command, path string) error {
	cfg := pipelineConfig()
	if err := cfg.Enrichment.Validate(); err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	reportPath, _ := cmd.Flags().GetString("report")
	noStore, _ := cmd.Flags().GetBool("no-store")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	disease, _ := cmd.Flags().GetString("disease")

	analysis := &types.Analysis{
		ID:        uuid.NewString(),
		Filename:  filepath.Base(path),
		CreatedAt: time.Now().UTC(),
	}

	fmt.Fprintf(os.Stderr, "extracting %s\n", path)
	raws, doc, err := extract.LoadFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "found %d drug records\n", len(raws))

	var aiClient *ai.Client
	if cfg.AI.APIKey != "" {
		aiClient = ai.New(cfg.AI)
	}
	if disease == "" {
		disease = inferDisease(ctx, aiClient, doc, cfg.Enrichment.CallTimeout)
	}
	analysis.DiseaseContext = disease

	set, err := formulary.Load(cfg.Formulary.Path)
	if err != nil {
		return err
	}
	if set.Len() == 0 {
		logger.Warn().Str("path", cfg.Formulary.Path).Msg("formulary is empty; every WHO EML check will report Not Found")
	}

	rec := metrics.New()
	orch := enrich.New(enrich.Deps{
		Resolver:   newResolver(cfg, aiClient),
		Literature: pubmed.New(cfg.PubMed),
		FDA:        regulatory.New(cfg.Registry.FDA, regulatory.DefaultFDA, cfg.Registry.HTTPConfig),
		EMA:        regulatory.New(cfg.Registry.EMA, regulatory.DefaultEMA, cfg.Registry.HTTPConfig),
		Formulary:  set,
		Metrics:    rec,
		Progress:   os.Stderr,
	}, cfg.Enrichment, logger)

	analysis.Results = orch.EnrichAll(ctx, raws, disease)
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := report.Write(format, analysis, os.Stdout); err != nil {
		return err
	}
	if reportPath != "" {
		if err := writeReportFile(format, analysis, reportPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "report written to %s\n", reportPath)
	}

	if !noStore {
		if err := saveAnalysis(ctx, cfg.Store, analysis); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "saved analysis %s\n", analysis.ID)
	}

	if metricsFile != "" {
		if err := rec.WriteFile(metricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}

// newResolver picks the name resolver. A missing key is not fatal: every
// record then fails resolution with a not_configured reason.
func newResolver(cfg types.PipelineConfig, aiClient *ai.Client) enrich.Resolver {
	if cfg.Enrichment.Resolver == types.ResolverAI {
		if aiClient == nil {
			logger.Warn().Msg("no Anthropic API key; name resolution will fail for every record")
			return ai.New(cfg.AI)
		}
		return aiClient
	}
	if cfg.Translate.APIKey == "" {
		logger.Warn().Msg("no Google Translate API key; name resolution will fail for every record")
	}
	return translate.New(cfg.Translate)
}

// inferDisease asks the model for the protocol's disease. Any failure yields
// an empty context, which skips the literature search.
func inferDisease(ctx context.Context, client *ai.Client, doc *types.Document, timeout time.Duration) string {
	if client == nil {
		logger.Info().Msg("no disease context and no AI key; literature search will be skipped")
		return ""
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	disease, err := client.InferDiseaseContext(ctx, doc.Paragraphs)
	if err != nil {
		logger.Warn().Err(err).Msg("disease inference failed; literature search will be skipped")
		return ""
	}
	fmt.Fprintf(os.Stderr, "disease context: %s\n", disease)
	return disease
}

// writeReportFile writes through a temporary file so a failed write never
// leaves a partial report behind.
func writeReportFile(format string, a *types.Analysis, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := report.Write(format, a, tmp)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return writeErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func saveAnalysis(ctx context.Context, cfg types.StoreConfig, a *types.Analysis) error {
	s, err := store.New(cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Save(ctx, a)
}
