// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by adapters that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout. Per-call context timeouts apply on top.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "protocol-analyzer/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds settings for the generative-text adapter.
type AIConfig struct {
	HTTPConfig `yaml:",inline"`

	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxTokens bounds the completion length (default 1024).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// TranslateConfig holds settings for the translation adapter.
type TranslateConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is the Cloud Translation API key.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Source and Target are ISO-639 language codes (default "ru" → "en").
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// PubMedConfig holds settings for the literature-search adapter.
type PubMedConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey raises the NCBI rate limit from 3 to 10 requests per second.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Email and Tool identify the caller to NCBI E-utilities.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
	Tool  string `json:"tool" yaml:"tool"`

	// MaxResults is the esearch retmax. Values above MaxPubMedLinks are capped.
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// RegistryMarker identifies a search-hit element in a registry results page:
// an element named Tag whose attribute Attr contains Value.
type RegistryMarker struct {
	Tag   string `json:"tag" yaml:"tag"`
	Attr  string `json:"attr" yaml:"attr"`
	Value string `json:"value" yaml:"value"`
}

// RegistryBody describes one regulatory body's public search page.
type RegistryBody struct {
	// Name identifies the body in logs and metrics (e.g. "fda").
	Name string `json:"name" yaml:"name"`

	// SearchURL is a URL with a single %s verb for the escaped drug name.
	SearchURL string `json:"search_url" yaml:"search_url"`

	Marker RegistryMarker `json:"marker" yaml:"marker"`
}

// RegistryConfig holds settings for the regulatory-body adapters.
type RegistryConfig struct {
	HTTPConfig `yaml:",inline"`

	FDA RegistryBody `json:"fda" yaml:"fda"`
	EMA RegistryBody `json:"ema" yaml:"ema"`
}

// ResolverKind selects the name-resolution adapter.
type ResolverKind string

const (
	ResolverTranslate ResolverKind = "translate"
	ResolverAI        ResolverKind = "ai"
)

// EvidenceSource selects where SystemLOE comes from for a deployment.
type EvidenceSource string

const (
	// EvidenceRule derives SystemLOE from literature results only.
	EvidenceRule EvidenceSource = "rule"
	// EvidenceAI uses the AI resolver's suggested class, falling back to the rule.
	EvidenceAI EvidenceSource = "ai"
)

// EnrichmentConfig holds settings for the enrichment orchestrator.
type EnrichmentConfig struct {
	Resolver       ResolverKind   `json:"resolver" yaml:"resolver"`
	EvidenceSource EvidenceSource `json:"evidence_source" yaml:"evidence_source"`

	// Workers bounds the records enriched concurrently (default 4).
	Workers int `json:"workers" yaml:"workers"`

	// CallTimeout bounds every external call (default 20s).
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`
}

// Validate reports an unusable enrichment configuration.
func (c EnrichmentConfig) Validate() error {
	switch c.Resolver {
	case ResolverTranslate, ResolverAI:
	default:
		return fmt.Errorf("unknown resolver %q: use %q or %q", c.Resolver, ResolverTranslate, ResolverAI)
	}
	switch c.EvidenceSource {
	case EvidenceRule, EvidenceAI:
	default:
		return fmt.Errorf("unknown evidence source %q: use %q or %q", c.EvidenceSource, EvidenceRule, EvidenceAI)
	}
	if c.EvidenceSource == EvidenceAI && c.Resolver != ResolverAI {
		return fmt.Errorf("evidence source %q requires resolver %q", EvidenceAI, ResolverAI)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

// StoreConfig holds settings for the analysis history store.
type StoreConfig struct {
	// Path is the SQLite database file (e.g. "data/analysis.db").
	Path string `json:"path" yaml:"path"`

	// PerPage is the default history page size (default 10).
	PerPage int `json:"per_page" yaml:"per_page"`
}

// FormularyConfig locates the pre-built formulary lookup file.
type FormularyConfig struct {
	Path string `json:"path" yaml:"path"`
}

// PipelineConfig groups all stage configurations for one analysis run.
type PipelineConfig struct {
	AI         AIConfig         `json:"ai" yaml:"ai"`
	Translate  TranslateConfig  `json:"translate" yaml:"translate"`
	PubMed     PubMedConfig     `json:"pubmed" yaml:"pubmed"`
	Registry   RegistryConfig   `json:"registry" yaml:"registry"`
	Enrichment EnrichmentConfig `json:"enrichment" yaml:"enrichment"`
	Formulary  FormularyConfig  `json:"formulary" yaml:"formulary"`
	Store      StoreConfig      `json:"store" yaml:"store"`
}
