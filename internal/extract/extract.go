// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract finds drug tables in a parsed protocol document and emits
// one raw drug record per data row.
//
// A table is a drug table when its header row names both a drug-name column
// and a usage column. The evidence-level column is optional.
package extract

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/protocol-analyzer/internal/docx"
	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

// ErrUnreadableDocument is returned when the document cannot be opened or
// parsed. It is fatal to the whole analysis.
var ErrUnreadableDocument = errors.New("unreadable document")

// Column label synonyms, already case-folded. Order matters: the first label
// that matches a header cell selects the column.
var (
	nameLabels = []string{
		"мнн",
		"международное непатентованное наименование",
		"наименование лс",
		"лекарственное средство",
		"препарат",
		"inn",
		"drug",
	}
	usageLabels = []string{
		"способ применения",
		"режим дозирования",
		"доза",
		"дозировка",
		"usage",
		"dosage",
	}
	evidenceLabels = []string{
		"уровень доказательности",
		"уд",
		"loe",
		"level of evidence",
	}
)

// Columns holds the located column indices of a drug table. Evidence is -1
// when the table has no evidence column.
type Columns struct {
	Name     int
	Usage    int
	Evidence int
}

// LoadFile opens the .docx at path and extracts its drug records. The parsed
// document is returned so callers can reuse its paragraphs.
func LoadFile(path string) ([]types.RawDrugRecord, *types.Document, error) {
	doc, err := docx.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	return Records(doc), doc, nil
}

// Records returns the drug records of every matching table, concatenated in
// document order. Rows with an empty drug-name cell are skipped.
func Records(doc *types.Document) []types.RawDrugRecord {
	if doc == nil {
		return nil
	}
	var records []types.RawDrugRecord
	for _, table := range doc.Tables {
		if len(table.Rows) == 0 {
			continue
		}
		cols, ok := MatchHeader(table.Rows[0].Cells)
		if !ok {
			continue
		}
		for _, row := range table.Rows[1:] {
			name := strings.TrimSpace(cellAt(row, cols.Name))
			if name == "" {
				continue
			}
			loe := types.LOENotSpecified
			if cols.Evidence >= 0 {
				loe = strings.TrimSpace(cellAt(row, cols.Evidence))
			}
			records = append(records, types.RawDrugRecord{
				INNProtocol:   name,
				UsageProtocol: strings.TrimSpace(cellAt(row, cols.Usage)),
				LOEProtocol:   loe,
			})
		}
	}
	return records
}

// MatchHeader locates the drug-table columns in a header row. It reports
// false unless both a name and a usage column are present.
func MatchHeader(header []string) (Columns, bool) {
	// A Caser is stateful, so each call gets its own.
	folder := cases.Fold()
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = foldLabel(folder, h)
	}

	cols := Columns{
		Name:     findColumn(folded, nameLabels),
		Usage:    findColumn(folded, usageLabels),
		Evidence: findColumn(folded, evidenceLabels),
	}
	if cols.Name < 0 || cols.Usage < 0 {
		return Columns{}, false
	}
	return cols, true
}

// findColumn returns the index of the first header cell matching the first
// label that matches any cell, or -1.
func findColumn(folded []string, labels []string) int {
	for _, label := range labels {
		for i, cell := range folded {
			if labelMatches(cell, label) {
				return i
			}
		}
	}
	return -1
}

// labelMatches reports whether cell is label, or starts with label followed
// by a non-letter (e.g. "способ применения (доза, кратность)").
func labelMatches(cell, label string) bool {
	if cell == label {
		return true
	}
	if !strings.HasPrefix(cell, label) {
		return false
	}
	next, _ := utf8.DecodeRuneInString(cell[len(label):])
	return !unicode.IsLetter(next)
}

// foldLabel normalizes a header cell: NFC, case-folded, inner whitespace
// collapsed, trimmed.
func foldLabel(folder cases.Caser, s string) string {
	s = folder.String(norm.NFC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

func cellAt(row types.Row, i int) string {
	if i < 0 || i >= len(row.Cells) {
		return ""
	}
	return row.Cells[i]
}
