// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the protocol-analyzer pipeline:
// documents handed to the extractor, drug records as they move through
// normalization and enrichment, analyses persisted by the store, and the
// configuration structs for every stage.
package types

// NotAvailable is the sentinel for a field whose pattern or lookup produced nothing.
const NotAvailable = "N/A"

// UnknownRoute is the normalized route when no synonym maps the raw route text.
const UnknownRoute = "unknown"

// LOENotSpecified is stored as the protocol evidence level when the drug
// table carries no evidence column.
const LOENotSpecified = "Не указан"

// TranslationError is stored as the English INN when name resolution fails.
const TranslationError = "Translation Error"

// Evidence tiers assigned to SystemLOE.
const (
	EvidenceTop    = "Класс I (A)"
	EvidenceBottom = "Класс IV (D)"
)

// MaxPubMedLinks caps the literature results kept per drug.
const MaxPubMedLinks = 3

// RegistryStatus is the outcome of a registry or formulary lookup.
type RegistryStatus string

const (
	StatusFound         RegistryStatus = "Found"
	StatusNotFound      RegistryStatus = "Not Found"
	StatusNotApplicable RegistryStatus = "N/A"
	StatusScrapingError RegistryStatus = "Scraping Error"
)

// RawDrugRecord is one drug row as it appears in the protocol table.
type RawDrugRecord struct {
	// INNProtocol is the drug name cell. Never empty.
	INNProtocol string `json:"inn_protocol" yaml:"inn_protocol"`

	// UsageProtocol is the free-text usage cell (dose, route, frequency).
	UsageProtocol string `json:"usage_protocol" yaml:"usage_protocol"`

	// LOEProtocol is the evidence level cell, or LOENotSpecified.
	LOEProtocol string `json:"loe_protocol" yaml:"loe_protocol"`
}

// NormalizedFields are derived from UsageProtocol by pattern matching.
// Each field is NotAvailable when its pattern did not match.
type NormalizedFields struct {
	ParsedDosage    string `json:"parsed_dosage" yaml:"parsed_dosage"`
	ParsedUnits     string `json:"parsed_units" yaml:"parsed_units"`
	ParsedFrequency string `json:"parsed_frequency" yaml:"parsed_frequency"`
	ParsedRouteRaw  string `json:"parsed_route_raw" yaml:"parsed_route_raw"`
	NormalizedRoute string `json:"normalized_route" yaml:"normalized_route"`
}

// EnrichedDrugRecord is the fully processed drug row. Every field carries a
// value; failed steps leave their sentinel rather than an empty field.
type EnrichedDrugRecord struct {
	RawDrugRecord    `yaml:",inline"`
	NormalizedFields `yaml:",inline"`

	// INNEnglish is the resolved English name, or TranslationError.
	INNEnglish string `json:"inn_english" yaml:"inn_english"`

	// BriefDescription is only filled by the AI resolver.
	BriefDescription string `json:"brief_description,omitempty" yaml:"brief_description,omitempty"`

	// PubMedLinks holds at most MaxPubMedLinks citation URLs in result order.
	PubMedLinks []string `json:"pubmed_links" yaml:"pubmed_links"`

	FDAStatus    RegistryStatus `json:"fda_status" yaml:"fda_status"`
	EMAStatus    RegistryStatus `json:"ema_status" yaml:"ema_status"`
	WHOEMLStatus RegistryStatus `json:"who_eml_status" yaml:"who_eml_status"`

	// SystemLOE is the assigned evidence tier. Never empty.
	SystemLOE string `json:"system_loe" yaml:"system_loe"`

	// Failures maps an enrichment step name to the reason it failed.
	Failures map[string]string `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// NewEnrichedDrugRecord returns a record with every enrichment field set to
// its failure sentinel.
func NewEnrichedDrugRecord(raw RawDrugRecord, norm NormalizedFields) EnrichedDrugRecord {
	return EnrichedDrugRecord{
		RawDrugRecord:    raw,
		NormalizedFields: norm,
		INNEnglish:       TranslationError,
		PubMedLinks:      []string{},
		FDAStatus:        StatusNotApplicable,
		EMAStatus:        StatusNotApplicable,
		WHOEMLStatus:     StatusNotFound,
		SystemLOE:        EvidenceBottom,
	}
}

// NameResolved reports whether name resolution produced a usable English name.
func (r EnrichedDrugRecord) NameResolved() bool {
	return r.INNEnglish != "" && r.INNEnglish != TranslationError
}

// ResolveRequest is the input to a name resolver.
type ResolveRequest struct {
	ProtocolName   string
	UsageText      string
	DiseaseContext string
}

// Resolution is a resolver's successful answer. Description and
// SuggestedEvidence are empty for plain translation.
type Resolution struct {
	EnglishName       string `json:"inn_english" yaml:"inn_english"`
	Description       string `json:"brief_description" yaml:"brief_description"`
	SuggestedEvidence string `json:"system_loe" yaml:"system_loe"`
}
