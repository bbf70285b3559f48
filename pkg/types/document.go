// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Document is the tabular view of a parsed protocol document.
type Document struct {
	// Tables lists the document tables in document order.
	Tables []Table `json:"tables" yaml:"tables"`

	// Paragraphs holds body paragraph text outside tables, in order.
	Paragraphs []string `json:"paragraphs" yaml:"paragraphs"`
}

// Table is a grid of text cells. The first row is the header row.
type Table struct {
	Rows []Row `json:"rows" yaml:"rows"`
}

// Row is one table row.
type Row struct {
	Cells []string `json:"cells" yaml:"cells"`
}

// Analysis is one processed document together with its enriched drug list.
type Analysis struct {
	// ID is a UUID assigned when the analysis starts.
	ID string `json:"id" yaml:"id"`

	// Filename is the base name of the uploaded document.
	Filename string `json:"filename" yaml:"filename"`

	// DiseaseContext is the indication the enrichment ran against.
	DiseaseContext string `json:"disease_context" yaml:"disease_context"`

	// CreatedAt is when the analysis started.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Results holds the enriched records in extraction order.
	Results []EnrichedDrugRecord `json:"results" yaml:"results"`
}
