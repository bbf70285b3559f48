// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders an analysis for people (table, Markdown) and for
// other programs (JSON, YAML).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

// Output formats accepted by Write.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatTable, FormatMarkdown, FormatJSON, FormatYAML}

// Write renders a in the named format.
func Write(format string, a *types.Analysis, w io.Writer) error {
	switch format {
	case FormatTable, "":
		WriteTable(a, w)
		return nil
	case FormatMarkdown, "md":
		return WriteMarkdown(a, w)
	case FormatJSON:
		return WriteJSON(a, w)
	case FormatYAML, "yml":
		return WriteYAML(a, w)
	default:
		return fmt.Errorf("unknown format %q: use one of %s", format, strings.Join(Formats, ", "))
	}
}

// WriteTable writes a as a fixed-width table.
func WriteTable(a *types.Analysis, w io.Writer) {
	fmt.Fprintf(w, "Analysis %s  %s\n", a.ID, a.Filename)
	if a.DiseaseContext != "" {
		fmt.Fprintf(w, "Disease: %s\n", a.DiseaseContext)
	}
	fmt.Fprintln(w)

	if len(a.Results) == 0 {
		fmt.Fprintln(w, "No drug records found.")
		return
	}

	fmt.Fprintf(w, "%-3s  %-24s  %-20s  %-8s  %-6s  %-20s  %-6s  %-14s  %-14s  %-9s  %s\n",
		"#", "Protocol name", "INN (EN)", "Dose", "Units", "Route", "PubMed", "FDA", "EMA", "WHO EML", "System LOE")
	fmt.Fprintln(w, strings.Repeat("-", 150))

	for i, r := range a.Results {
		fmt.Fprintf(w, "%-3d  %-24s  %-20s  %-8s  %-6s  %-20s  %-6d  %-14s  %-14s  %-9s  %s\n",
			i+1, truncate(r.INNProtocol, 24), truncate(r.INNEnglish, 20),
			truncate(r.ParsedDosage, 8), truncate(r.ParsedUnits, 6), truncate(r.NormalizedRoute, 20),
			len(r.PubMedLinks), r.FDAStatus, r.EMAStatus, r.WHOEMLStatus, r.SystemLOE)
	}

	failed := 0
	for _, r := range a.Results {
		if len(r.Failures) > 0 {
			failed++
		}
	}
	fmt.Fprintf(w, "\n%d drugs", len(a.Results))
	if failed > 0 {
		fmt.Fprintf(w, " (%d with failed lookups)", failed)
	}
	fmt.Fprintln(w)
}

// WriteMarkdown writes a as a Markdown report: the summary table used for
// exported reports, then the normalization and registry details.
func WriteMarkdown(a *types.Analysis, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Результаты Анализа: %s\n\n", a.Filename)
	if a.DiseaseContext != "" {
		fmt.Fprintf(&b, "Заболевание: %s\n\n", a.DiseaseContext)
	}

	b.WriteString("| Название (из протокола) | МНН (ENG) | Краткое описание | Ссылки PubMed | УД (из протокола) | Системный УД |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, r := range a.Results {
		links := "Нет"
		if len(r.PubMedLinks) > 0 {
			links = strings.Join(r.PubMedLinks, "<br>")
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			cell(r.INNProtocol), cell(r.INNEnglish), cell(r.BriefDescription),
			cell(links), cell(r.LOEProtocol), cell(r.SystemLOE))
	}

	b.WriteString("\n## Дозировка и регистры\n\n")
	b.WriteString("| Название (из протокола) | Доза | Ед. | Кратность | Путь введения | FDA | EMA | WHO EML |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, r := range a.Results {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			cell(r.INNProtocol), cell(r.ParsedDosage), cell(r.ParsedUnits), cell(r.ParsedFrequency),
			cell(r.NormalizedRoute), r.FDAStatus, r.EMAStatus, r.WHOEMLStatus)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON writes a as indented JSON.
func WriteJSON(a *types.Analysis, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

// WriteYAML writes a as YAML.
func WriteYAML(a *types.Analysis, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(a); err != nil {
		return err
	}
	return enc.Close()
}

// cell escapes s for a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", "<br>")
	return strings.ReplaceAll(s, "\n", "<br>")
}

// truncate shortens s to max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
