// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich drives the per-record enrichment pipeline: name resolution,
// then literature search and the FDA and EMA checks in parallel, then the
// local formulary lookup and evidence assignment.
//
// Enrichment never fails a record. Every step that cannot complete leaves its
// sentinel in the record and a reason in EnrichedDrugRecord.Failures, and
// records share no mutable state, so a failure in one never touches another.
package enrich

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/protocol-analyzer/internal/metrics"
	"github.com/pdiddy/protocol-analyzer/internal/usage"
	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

// Step names used in Failures, logs and metrics.
const (
	StepResolve   = "resolve"
	StepPubMed    = "pubmed"
	StepFDA       = "fda"
	StepEMA       = "ema"
	StepFormulary = "who_eml"
	StepRecord    = "record"
)

const (
	defaultWorkers     = 4
	maxWorkers         = 8
	defaultCallTimeout = 20 * time.Second
)

// Resolver turns a protocol drug name into an English name.
type Resolver interface {
	Resolve(ctx context.Context, req types.ResolveRequest) (types.Resolution, error)
}

// Literature finds high-evidence publication links for a drug in a disease.
type Literature interface {
	Search(ctx context.Context, drug, disease string) ([]string, error)
}

// Registry checks a regulatory body for a drug.
type Registry interface {
	Check(ctx context.Context, drug string) (types.RegistryStatus, error)
}

// Formulary is the local essential-medicines lookup.
type Formulary interface {
	Contains(name string) bool
}

// Deps are the orchestrator's collaborators. Any lookup left nil is skipped
// and its field keeps the sentinel.
type Deps struct {
	Resolver   Resolver
	Literature Literature
	FDA        Registry
	EMA        Registry
	Formulary  Formulary
	Metrics    *metrics.Recorder

	// Progress receives one line per finished record when not nil.
	Progress io.Writer
}

// Orchestrator enriches drug records. It is safe for concurrent use.
type Orchestrator struct {
	deps   Deps
	cfg    types.EnrichmentConfig
	logger zerolog.Logger

	progressMu sync.Mutex
}

// New creates an orchestrator, filling zero config values with defaults.
func New(deps Deps, cfg types.EnrichmentConfig, logger zerolog.Logger) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Workers > maxWorkers {
		cfg.Workers = maxWorkers
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.EvidenceSource == "" {
		cfg.EvidenceSource = types.EvidenceRule
	}
	return &Orchestrator{deps: deps, cfg: cfg, logger: logger}
}

// EnrichAll normalizes and enriches raws with a bounded worker pool. The
// result has one record per input, in input order.
func (o *Orchestrator) EnrichAll(ctx context.Context, raws []types.RawDrugRecord, disease string) []types.EnrichedDrugRecord {
	results := make([]types.EnrichedDrugRecord, len(raws))

	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)
	var done int
	for i, raw := range raws {
		i, raw := i, raw
		g.Go(func() error {
			rec := o.Enrich(ctx, raw, usage.Normalize(raw.UsageProtocol), disease)
			results[i] = rec

			if o.deps.Progress != nil {
				o.progressMu.Lock()
				done++
				fmt.Fprintf(o.deps.Progress, "enriched %d/%d: %s -> %s (%s)\n",
					done, len(raws), rec.INNProtocol, rec.INNEnglish, rec.SystemLOE)
				o.progressMu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return results
}

// Enrich runs the pipeline for one record. It never returns an error; a
// panic anywhere in the pipeline yields the all-sentinel record.
func (o *Orchestrator) Enrich(ctx context.Context, raw types.RawDrugRecord, norm types.NormalizedFields, disease string) (rec types.EnrichedDrugRecord) {
	log := o.logger.With().Str("drug", raw.INNProtocol).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("record pipeline panicked")
			rec = types.NewEnrichedDrugRecord(raw, norm)
			rec.Failures = map[string]string{StepRecord: ReasonPanic}
			o.deps.Metrics.Failure(StepRecord, ReasonPanic)
		}
		o.deps.Metrics.RecordProcessed()
	}()

	rec = types.NewEnrichedDrugRecord(raw, norm)
	failures := map[string]string{}

	res, err := o.resolve(ctx, raw, disease)
	if err != nil {
		o.fail(log, failures, StepResolve, err)
		rec.Failures = failures
		return rec
	}
	rec.INNEnglish = res.EnglishName
	rec.BriefDescription = res.Description

	// Each lookup writes only its own variable; the merge happens after Wait.
	var (
		links              = []string{}
		fdaStatus          = types.StatusNotApplicable
		emaStatus          = types.StatusNotApplicable
		linksErr, fda, ema error
	)
	var g errgroup.Group
	g.Go(func() error {
		links, linksErr = o.searchLiterature(ctx, rec.INNEnglish, disease)
		return nil
	})
	g.Go(func() error {
		fdaStatus, fda = o.checkRegistry(ctx, StepFDA, o.deps.FDA, rec.INNEnglish)
		return nil
	})
	g.Go(func() error {
		emaStatus, ema = o.checkRegistry(ctx, StepEMA, o.deps.EMA, rec.INNEnglish)
		return nil
	})
	g.Wait()

	if linksErr != nil {
		o.fail(log, failures, StepPubMed, linksErr)
	}
	if fda != nil {
		o.fail(log, failures, StepFDA, fda)
	}
	if ema != nil {
		o.fail(log, failures, StepEMA, ema)
	}

	rec.PubMedLinks = links
	rec.FDAStatus = fdaStatus
	rec.EMAStatus = emaStatus
	rec.WHOEMLStatus = o.checkFormulary(rec.INNEnglish)
	rec.SystemLOE = selectEvidence(o.cfg.EvidenceSource, res.SuggestedEvidence, links)

	if len(failures) > 0 {
		rec.Failures = failures
	}
	log.Debug().
		Str("inn_english", rec.INNEnglish).
		Int("pubmed_links", len(rec.PubMedLinks)).
		Str("fda", string(rec.FDAStatus)).
		Str("ema", string(rec.EMAStatus)).
		Str("who_eml", string(rec.WHOEMLStatus)).
		Str("system_loe", rec.SystemLOE).
		Msg("record enriched")
	return rec
}

func (o *Orchestrator) resolve(ctx context.Context, raw types.RawDrugRecord, disease string) (types.Resolution, error) {
	if o.deps.Resolver == nil {
		o.deps.Metrics.ObserveStep(StepResolve, metrics.OutcomeSkipped, 0)
		return types.Resolution{}, fmt.Errorf("no resolver: %w", errNotConfigured)
	}

	var res types.Resolution
	err := o.call(ctx, StepResolve, func(ctx context.Context) error {
		var err error
		res, err = o.deps.Resolver.Resolve(ctx, types.ResolveRequest{
			ProtocolName:   raw.INNProtocol,
			UsageText:      raw.UsageProtocol,
			DiseaseContext: disease,
		})
		if err == nil && res.EnglishName == "" {
			err = errEmptyName
		}
		return err
	})
	return res, err
}

func (o *Orchestrator) searchLiterature(ctx context.Context, drug, disease string) ([]string, error) {
	if o.deps.Literature == nil || disease == "" {
		o.deps.Metrics.ObserveStep(StepPubMed, metrics.OutcomeSkipped, 0)
		return []string{}, nil
	}

	var links []string
	err := o.call(ctx, StepPubMed, func(ctx context.Context) error {
		var err error
		links, err = o.deps.Literature.Search(ctx, drug, disease)
		return err
	})
	if err != nil {
		return []string{}, err
	}
	if links == nil {
		links = []string{}
	}
	if len(links) > types.MaxPubMedLinks {
		links = links[:types.MaxPubMedLinks]
	}
	return links, nil
}

func (o *Orchestrator) checkRegistry(ctx context.Context, step string, reg Registry, drug string) (types.RegistryStatus, error) {
	if reg == nil {
		o.deps.Metrics.ObserveStep(step, metrics.OutcomeSkipped, 0)
		return types.StatusNotApplicable, nil
	}

	var status types.RegistryStatus
	err := o.call(ctx, step, func(ctx context.Context) error {
		var err error
		status, err = reg.Check(ctx, drug)
		return err
	})
	if err != nil {
		return types.StatusScrapingError, err
	}
	return status, nil
}

func (o *Orchestrator) checkFormulary(drug string) types.RegistryStatus {
	start := time.Now()
	status := types.StatusNotFound
	if o.deps.Formulary != nil && o.deps.Formulary.Contains(drug) {
		status = types.StatusFound
	}
	o.deps.Metrics.ObserveStep(StepFormulary, metrics.OutcomeOK, time.Since(start))
	return status
}

// call runs fn under the per-call timeout, converts a panic into an error,
// and records the step's outcome and latency.
func (o *Orchestrator) call(ctx context.Context, step string, fn func(context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w in %s: %v", errPanic, step, r)
		}
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeFailed
		}
		o.deps.Metrics.ObserveStep(step, outcome, time.Since(start))
	}()
	return fn(ctx)
}

// fail records a step failure in failures, logs and metrics.
func (o *Orchestrator) fail(log zerolog.Logger, failures map[string]string, step string, err error) {
	reason := classifyFailure(err)
	failures[step] = reason
	o.deps.Metrics.Failure(step, reason)
	log.Warn().Err(err).Str("step", step).Str("reason", reason).Msg("enrichment step failed")
}
