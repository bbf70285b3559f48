// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/viper"

	"github.com/pdiddy/protocol-analyzer/internal/secrets"
	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

const (
	defaultFormularyPath = "data/who_eml_drug_list.txt"
	defaultStorePath     = "data/analysis.db"
)

func init() {
	viper.SetDefault("enrichment.resolver", string(types.ResolverTranslate))
	viper.SetDefault("enrichment.evidence_source", string(types.EvidenceRule))
	viper.SetDefault("enrichment.workers", 4)
	viper.SetDefault("enrichment.call_timeout", "20s")
	viper.SetDefault("formulary.path", defaultFormularyPath)
	viper.SetDefault("store.path", defaultStorePath)
	viper.SetDefault("store.per_page", 10)
	viper.SetDefault("translate.source", "ru")
	viper.SetDefault("translate.target", "en")
}

// pipelineConfig assembles the run configuration from viper (config file,
// PROTOCOL_ANALYZER_* variables and bound flags) and the loaded secrets.
func pipelineConfig() types.PipelineConfig {
	callTimeout := viper.GetDuration("enrichment.call_timeout")

	// Without an explicit http.timeout the client limit follows the per-call timeout.
	httpCfg := types.HTTPConfig{
		Timeout:   viper.GetDuration("http.timeout"),
		UserAgent: viper.GetString("http.user_agent"),
	}
	if httpCfg.Timeout <= 0 {
		httpCfg.Timeout = callTimeout
	}

	return types.PipelineConfig{
		AI: types.AIConfig{
			HTTPConfig: httpCfg,
			Model:      viper.GetString("ai.model"),
			APIKey:     loadedSecrets.Or(secrets.AnthropicAPIKey, viper.GetString("ai.api_key")),
			MaxTokens:  viper.GetInt("ai.max_tokens"),
		},
		Translate: types.TranslateConfig{
			HTTPConfig: httpCfg,
			APIKey:     loadedSecrets.Or(secrets.TranslateAPIKey, viper.GetString("translate.api_key")),
			Source:     viper.GetString("translate.source"),
			Target:     viper.GetString("translate.target"),
		},
		PubMed: types.PubMedConfig{
			HTTPConfig: httpCfg,
			APIKey:     loadedSecrets.Or(secrets.NCBIAPIKey, viper.GetString("pubmed.api_key")),
			Email:      loadedSecrets.Or(secrets.NCBIEmail, viper.GetString("pubmed.email")),
			Tool:       viper.GetString("pubmed.tool"),
			MaxResults: viper.GetInt("pubmed.max_results"),
		},
		Registry: types.RegistryConfig{
			HTTPConfig: httpCfg,
			FDA:        registryBody("registry.fda"),
			EMA:        registryBody("registry.ema"),
		},
		Enrichment: types.EnrichmentConfig{
			Resolver:       types.ResolverKind(viper.GetString("enrichment.resolver")),
			EvidenceSource: types.EvidenceSource(viper.GetString("enrichment.evidence_source")),
			Workers:        viper.GetInt("enrichment.workers"),
			CallTimeout:    callTimeout,
		},
		Formulary: types.FormularyConfig{Path: viper.GetString("formulary.path")},
		Store: types.StoreConfig{
			Path:    viper.GetString("store.path"),
			PerPage: viper.GetInt("store.per_page"),
		},
	}
}

// registryBody reads an optional override of a body's search page. Blank
// fields fall back to the built-in FDA and EMA settings.
func registryBody(prefix string) types.RegistryBody {
	return types.RegistryBody{
		Name:      viper.GetString(prefix + ".name"),
		SearchURL: viper.GetString(prefix + ".search_url"),
		Marker: types.RegistryMarker{
			Tag:   viper.GetString(prefix + ".marker.tag"),
			Attr:  viper.GetString(prefix + ".marker.attr"),
			Value: viper.GetString(prefix + ".marker.value"),
		},
	}
}
