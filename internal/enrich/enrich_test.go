// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/protocol-analyzer/internal/formulary"
	"github.com/pdiddy/protocol-analyzer/internal/metrics"
	"github.com/pdiddy/protocol-analyzer/internal/translate"
	"github.com/pdiddy/protocol-analyzer/internal/usage"
	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

type resolverFunc func(ctx context.Context, req types.ResolveRequest) (types.Resolution, error)

func (f resolverFunc) Resolve(ctx context.Context, req types.ResolveRequest) (types.Resolution, error) {
	return f(ctx, req)
}

type literatureFunc func(ctx context.Context, drug, disease string) ([]string, error)

func (f literatureFunc) Search(ctx context.Context, drug, disease string) ([]string, error) {
	return f(ctx, drug, disease)
}

type registryFunc func(ctx context.Context, drug string) (types.RegistryStatus, error)

func (f registryFunc) Check(ctx context.Context, drug string) (types.RegistryStatus, error) {
	return f(ctx, drug)
}

// lowerResolver "translates" by lower-casing the protocol name.
var lowerResolver = resolverFunc(func(_ context.Context, req types.ResolveRequest) (types.Resolution, error) {
	return types.Resolution{EnglishName: strings.ToLower(req.ProtocolName)}, nil
})

func registryStatus(s types.RegistryStatus) Registry {
	return registryFunc(func(context.Context, string) (types.RegistryStatus, error) { return s, nil })
}

func links(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%d/", 1000+i)
	}
	return out
}

func newOrchestrator(deps Deps, cfg types.EnrichmentConfig) *Orchestrator {
	return New(deps, cfg, zerolog.Nop())
}

func TestEnrich_TranslationFailureLeavesSentinels(t *testing.T) {
	var lookups int32
	count := func() { atomic.AddInt32(&lookups, 1) }

	o := newOrchestrator(Deps{
		Resolver: resolverFunc(func(context.Context, types.ResolveRequest) (types.Resolution, error) {
			return types.Resolution{}, translate.ErrEmptyTranslation
		}),
		Literature: literatureFunc(func(context.Context, string, string) ([]string, error) { count(); return links(2), nil }),
		FDA:        registryFunc(func(context.Context, string) (types.RegistryStatus, error) { count(); return types.StatusFound, nil }),
		EMA:        registryFunc(func(context.Context, string) (types.RegistryStatus, error) { count(); return types.StatusFound, nil }),
		Formulary:  formulary.NewSet("metformin"),
	}, types.EnrichmentConfig{})

	raw := types.RawDrugRecord{INNProtocol: "Метформин", UsageProtocol: "500 мг 2 раза в день", LOEProtocol: "A"}
	rec := o.Enrich(context.Background(), raw, usage.Normalize(raw.UsageProtocol), "сахарный диабет 2 типа")

	assert.Equal(t, types.TranslationError, rec.INNEnglish)
	assert.Equal(t, []string{}, rec.PubMedLinks)
	assert.Equal(t, types.StatusNotApplicable, rec.FDAStatus)
	assert.Equal(t, types.StatusNotApplicable, rec.EMAStatus)
	assert.Equal(t, types.StatusNotFound, rec.WHOEMLStatus)
	assert.Equal(t, types.EvidenceBottom, rec.SystemLOE)
	assert.Equal(t, map[string]string{StepResolve: ReasonEmpty}, rec.Failures)
	assert.Zero(t, atomic.LoadInt32(&lookups), "no lookups after failed resolution")

	assert.Equal(t, raw, rec.RawDrugRecord)
	assert.Equal(t, "500", rec.ParsedDosage)
}

func TestEnrich_FormularyHitWithLiterature(t *testing.T) {
	var gotDrug, gotDisease string
	o := newOrchestrator(Deps{
		Resolver: resolverFunc(func(context.Context, types.ResolveRequest) (types.Resolution, error) {
			return types.Resolution{EnglishName: "aspirin"}, nil
		}),
		Literature: literatureFunc(func(_ context.Context, drug, disease string) ([]string, error) {
			gotDrug, gotDisease = drug, disease
			return links(2), nil
		}),
		FDA:       registryStatus(types.StatusFound),
		EMA:       registryStatus(types.StatusNotFound),
		Formulary: formulary.NewSet("aspirin"),
	}, types.EnrichmentConfig{})

	raw := types.RawDrugRecord{INNProtocol: "Ацетилсалициловая кислота", UsageProtocol: "75 мг внутрь", LOEProtocol: types.LOENotSpecified}
	rec := o.Enrich(context.Background(), raw, usage.Normalize(raw.UsageProtocol), "инфаркт миокарда")

	assert.Equal(t, "aspirin", rec.INNEnglish)
	assert.Equal(t, links(2), rec.PubMedLinks)
	assert.Equal(t, types.StatusFound, rec.WHOEMLStatus)
	assert.Equal(t, types.EvidenceTop, rec.SystemLOE)
	assert.Equal(t, types.StatusFound, rec.FDAStatus)
	assert.Equal(t, types.StatusNotFound, rec.EMAStatus)
	assert.Nil(t, rec.Failures)
	assert.Equal(t, "aspirin", gotDrug)
	assert.Equal(t, "инфаркт миокарда", gotDisease)
}

func TestEnrich_FormularyMatchIgnoresCase(t *testing.T) {
	o := newOrchestrator(Deps{
		Resolver: resolverFunc(func(context.Context, types.ResolveRequest) (types.Resolution, error) {
			return types.Resolution{EnglishName: "Aspirin"}, nil
		}),
		Formulary: formulary.NewSet("aspirin"),
	}, types.EnrichmentConfig{})

	rec := o.Enrich(context.Background(), types.RawDrugRecord{INNProtocol: "Аспирин"}, types.NormalizedFields{}, "")
	assert.Equal(t, types.StatusFound, rec.WHOEMLStatus)
}

func TestEnrich_FDAFailureDoesNotAffectEMA(t *testing.T) {
	o := newOrchestrator(Deps{
		Resolver: lowerResolver,
		FDA: registryFunc(func(context.Context, string) (types.RegistryStatus, error) {
			return types.StatusScrapingError, errors.New("connection reset")
		}),
		EMA: registryStatus(types.StatusFound),
	}, types.EnrichmentConfig{})

	rec := o.Enrich(context.Background(), types.RawDrugRecord{INNProtocol: "Insulin"}, types.NormalizedFields{}, "diabetes")
	assert.Equal(t, types.StatusScrapingError, rec.FDAStatus)
	assert.Equal(t, types.StatusFound, rec.EMAStatus)
	assert.Equal(t, "insulin", rec.INNEnglish)
	assert.Equal(t, map[string]string{StepFDA: ReasonOther}, rec.Failures)
}

func TestEnrich_LiteratureFailureGivesBottomTier(t *testing.T) {
	o := newOrchestrator(Deps{
		Resolver: lowerResolver,
		Literature: literatureFunc(func(context.Context, string, string) ([]string, error) {
			return links(3), errors.New("PubMed returned HTTP 502")
		}),
	}, types.EnrichmentConfig{})

	rec := o.Enrich(context.Background(), types.RawDrugRecord{INNProtocol: "X"}, types.NormalizedFields{}, "d")
	assert.Equal(t, []string{}, rec.PubMedLinks)
	assert.Equal(t, types.EvidenceBottom, rec.SystemLOE)
	assert.Contains(t, rec.Failures, StepPubMed)
}

func TestEnrich_EmptyDiseaseSkipsLiterature(t *testing.T) {
	called := false
	o := newOrchestrator(Deps{
		Resolver: lowerResolver,
		Literature: literatureFunc(func(context.Context, string, string) ([]string, error) {
			called = true
			return links(1), nil
		}),
	}, types.EnrichmentConfig{})

	rec := o.Enrich(context.Background(), types.RawDrugRecord{INNProtocol: "X"}, types.NormalizedFields{}, "")
	assert.False(t, called)
	assert.Equal(t, []string{}, rec.PubMedLinks)
	assert.Equal(t, types.EvidenceBottom, rec.SystemLOE)
	assert.Nil(t, rec.Failures)
}

func TestEnrich_CapsLinks(t *testing.T) {
	o := newOrchestrator(Deps{
		Resolver:   lowerResolver,
		Literature: literatureFunc(func(context.Context, string, string) ([]string, error) { return links(7), nil }),
	}, types.EnrichmentConfig{})

	rec := o.Enrich(context.Background(), types.RawDrugRecord{INNProtocol: "X"}, types.NormalizedFields{}, "d")
	assert.Len(t, rec.PubMedLinks, types.MaxPubMedLinks)
	assert.Equal(t, links(3), rec.PubMedLinks)
}

func TestEnrich_CallTimeout(t *testing.T) {
	o := newOrchestrator(Deps{
		Resolver: lowerResolver,
		FDA: registryFunc(func(ctx context.Context, _ string) (types.RegistryStatus, error) {
			<-ctx.Done()
			return types.StatusScrapingError, ctx.Err()
		}),
		EMA: registryStatus(types.StatusNotFound),
	}, types.EnrichmentConfig{CallTimeout: 20 * time.Millisecond})

	start := time.Now()
	rec := o.Enrich(context.Background(), types.RawDrugRecord{INNProtocol: "X"}, types.NormalizedFields{}, "")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, types.StatusScrapingError, rec.FDAStatus)
	assert.Equal(t, types.StatusNotFound, rec.EMAStatus)
	assert.Equal(t, ReasonTimeout, rec.Failures[StepFDA])
}

func TestEnrich_PanicInLookupIsContained(t *testing.T) {
	o := newOrchestrator(Deps{
		Resolver: lowerResolver,
		EMA: registryFunc(func(context.Context, string) (types.RegistryStatus, error) {
			panic("nil page")
		}),
		FDA: registryStatus(types.StatusFound),
	}, types.EnrichmentConfig{})

	rec := o.Enrich(context.Background(), types.RawDrugRecord{INNProtocol: "X"}, types.NormalizedFields{}, "")
	assert.Equal(t, types.StatusScrapingError, rec.EMAStatus)
	assert.Equal(t, types.StatusFound, rec.FDAStatus)
	assert.Equal(t, ReasonPanic, rec.Failures[StepEMA])
}

func TestEnrich_PanicInResolverGivesSentinels(t *testing.T) {
	o := newOrchestrator(Deps{
		Resolver: resolverFunc(func(context.Context, types.ResolveRequest) (types.Resolution, error) {
			panic("boom")
		}),
	}, types.EnrichmentConfig{})

	rec := o.Enrich(context.Background(), types.RawDrugRecord{INNProtocol: "X"}, types.NormalizedFields{}, "")
	assert.Equal(t, types.TranslationError, rec.INNEnglish)
	assert.Equal(t, types.EvidenceBottom, rec.SystemLOE)
	assert.Equal(t, ReasonPanic, rec.Failures[StepResolve])
}

func TestEnrich_NoResolverConfigured(t *testing.T) {
	o := newOrchestrator(Deps{}, types.EnrichmentConfig{})
	rec := o.Enrich(context.Background(), types.RawDrugRecord{INNProtocol: "X"}, types.NormalizedFields{}, "")
	assert.Equal(t, types.TranslationError, rec.INNEnglish)
	assert.Equal(t, ReasonNotConfigured, rec.Failures[StepResolve])
}

func TestEnrich_EmptyResolvedNameIsFailure(t *testing.T) {
	o := newOrchestrator(Deps{
		Resolver: resolverFunc(func(context.Context, types.ResolveRequest) (types.Resolution, error) {
			return types.Resolution{}, nil
		}),
	}, types.EnrichmentConfig{})
	rec := o.Enrich(context.Background(), types.RawDrugRecord{INNProtocol: "X"}, types.NormalizedFields{}, "")
	assert.Equal(t, types.TranslationError, rec.INNEnglish)
	assert.Equal(t, ReasonEmpty, rec.Failures[StepResolve])
}

func TestEnrich_EvidenceSource(t *testing.T) {
	tests := []struct {
		name      string
		source    types.EvidenceSource
		suggested string
		links     int
		want      string
	}{
		{"rule ignores suggestion", types.EvidenceRule, "Класс IIb (B)", 0, types.EvidenceBottom},
		{"rule with links", types.EvidenceRule, "", 1, types.EvidenceTop},
		{"ai uses suggestion", types.EvidenceAI, "Класс IIb (B)", 0, "Класс IIb (B)"},
		{"ai falls back to rule", types.EvidenceAI, "  ", 2, types.EvidenceTop},
		{"ai falls back to bottom", types.EvidenceAI, "", 0, types.EvidenceBottom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrchestrator(Deps{
				Resolver: resolverFunc(func(context.Context, types.ResolveRequest) (types.Resolution, error) {
					return types.Resolution{EnglishName: "x", Description: "d", SuggestedEvidence: tt.suggested}, nil
				}),
				Literature: literatureFunc(func(context.Context, string, string) ([]string, error) { return links(tt.links), nil }),
			}, types.EnrichmentConfig{Resolver: types.ResolverAI, EvidenceSource: tt.source})

			rec := o.Enrich(context.Background(), types.RawDrugRecord{INNProtocol: "X"}, types.NormalizedFields{}, "d")
			assert.Equal(t, tt.want, rec.SystemLOE)
			assert.Equal(t, "d", rec.BriefDescription)
		})
	}
}

func TestEnrichAll_PreservesOrderUnderConcurrency(t *testing.T) {
	var inFlight, peak int32
	o := newOrchestrator(Deps{
		Resolver: resolverFunc(func(_ context.Context, req types.ResolveRequest) (types.Resolution, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return types.Resolution{EnglishName: "en-" + req.ProtocolName}, nil
		}),
	}, types.EnrichmentConfig{Workers: 3})

	raws := make([]types.RawDrugRecord, 40)
	for i := range raws {
		raws[i] = types.RawDrugRecord{INNProtocol: fmt.Sprintf("drug-%02d", i), UsageProtocol: fmt.Sprintf("%d мг", i+1)}
	}

	got := o.EnrichAll(context.Background(), raws, "")
	require.Len(t, got, len(raws))
	for i, rec := range got {
		assert.Equal(t, raws[i], rec.RawDrugRecord)
		assert.Equal(t, "en-"+raws[i].INNProtocol, rec.INNEnglish)
		assert.Equal(t, fmt.Sprint(i+1), rec.ParsedDosage)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestEnrichAll_FailureIsolation(t *testing.T) {
	o := newOrchestrator(Deps{
		Resolver: resolverFunc(func(_ context.Context, req types.ResolveRequest) (types.Resolution, error) {
			if req.ProtocolName == "bad" {
				return types.Resolution{}, errors.New("boom")
			}
			return types.Resolution{EnglishName: req.ProtocolName}, nil
		}),
		Formulary: formulary.NewSet("good"),
	}, types.EnrichmentConfig{})

	got := o.EnrichAll(context.Background(), []types.RawDrugRecord{
		{INNProtocol: "good"}, {INNProtocol: "bad"}, {INNProtocol: "good"},
	}, "")
	require.Len(t, got, 3)
	assert.Equal(t, types.StatusFound, got[0].WHOEMLStatus)
	assert.Equal(t, types.TranslationError, got[1].INNEnglish)
	assert.Equal(t, types.StatusFound, got[2].WHOEMLStatus)
	assert.Nil(t, got[0].Failures)
	assert.Nil(t, got[2].Failures)

	got[0].PubMedLinks = append(got[0].PubMedLinks, "mutated")
	assert.Empty(t, got[2].PubMedLinks, "records must not share slices")
}

func TestEnrichAll_ProgressAndMetrics(t *testing.T) {
	rec := metrics.New()
	var progress bytes.Buffer
	o := newOrchestrator(Deps{
		Resolver: lowerResolver,
		FDA:      registryStatus(types.StatusFound),
		Metrics:  rec,
		Progress: &progress,
	}, types.EnrichmentConfig{})

	o.EnrichAll(context.Background(), []types.RawDrugRecord{{INNProtocol: "A"}, {INNProtocol: "B"}}, "")

	assert.Equal(t, 2, strings.Count(progress.String(), "\n"))
	assert.Contains(t, progress.String(), "enriched 2/2")

	n, err := testutil.GatherAndCount(rec.Gatherer(), "protocol_analyzer_records_processed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnrichAll_Empty(t *testing.T) {
	o := newOrchestrator(Deps{Resolver: lowerResolver}, types.EnrichmentConfig{})
	assert.Empty(t, o.EnrichAll(context.Background(), nil, "d"))
}

func TestNew_Defaults(t *testing.T) {
	o := New(Deps{}, types.EnrichmentConfig{Workers: 64}, zerolog.Nop())
	assert.Equal(t, maxWorkers, o.cfg.Workers)
	assert.Equal(t, defaultCallTimeout, o.cfg.CallTimeout)
	assert.Equal(t, types.EvidenceRule, o.cfg.EvidenceSource)

	o = New(Deps{}, types.EnrichmentConfig{}, zerolog.Nop())
	assert.Equal(t, defaultWorkers, o.cfg.Workers)
}
