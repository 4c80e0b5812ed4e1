// Package discovery runs the aggregation pipeline: fan out to source
// adapters, normalize and persist what came back, score everything the org
// can see, and return a ranked slice plus run statistics.
package discovery

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/db"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/ingest"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/metrics"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/models"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/profile"
	"github.com/simplenow320/Pink-Lemonade-sub005/internal/scoring"
	"golang.org/x/sync/errgroup"
)

// Storage is the slice of the store the orchestrator needs. Narrowed to an
// interface so tests can run the pipeline against an in-memory fake.
type Storage interface {
	UpsertOpportunity(ctx context.Context, opp *models.Opportunity) (db.UpsertOutcome, error)
	AllOpportunityIDsForOrg(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error)
	OpportunitiesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Opportunity, error)
	GetMatch(ctx context.Context, oppID, orgID uuid.UUID, profileVersion int) (models.MatchResult, bool, error)
	PutMatch(ctx context.Context, m models.MatchResult) error
	CreateDiscoveryRun(ctx context.Context, orgID uuid.UUID) (uuid.UUID, error)
	FinishDiscoveryRun(ctx context.Context, run models.DiscoveryRun) error
}

type Config struct {
	MaxConcurrent int           // adapter fan-out bound
	FetchBudget   time.Duration // wall clock for the fetch phase
	MaxResults    int           // ranked list cap when the caller gives none
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.FetchBudget <= 0 {
		c.FetchBudget = 60 * time.Second
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 50
	}
}

type Orchestrator struct {
	adapters []ingest.Adapter
	skipped  []string
	store    Storage
	profiles profile.Reader
	engine   *scoring.Engine
	config   Config
}

// New wires the pipeline. skipped names sources that were configured but
// could not be built (missing credentials); they are reported per run so
// operators can tell "not tried" from "tried and failed".
func New(adapters []ingest.Adapter, skipped []string, store Storage, profiles profile.Reader, engine *scoring.Engine, config Config) *Orchestrator {
	config.applyDefaults()
	return &Orchestrator{
		adapters: adapters,
		skipped:  skipped,
		store:    store,
		profiles: profiles,
		engine:   engine,
		config:   config,
	}
}

// Result is one discovery pass: the ranked matches plus run bookkeeping.
type Result struct {
	Ranked []scoring.ScoredOpportunity `json:"grants"`
	Run    models.DiscoveryRun         `json:"discovery_stats"`
	Errors []models.SourceFailure      `json:"errors"`
}

type sourceBatch struct {
	source  string
	records []ingest.RawRecord
}

// Discover runs one aggregation pass for an org. Source failures are
// recorded, not returned: a pass where some providers were down still
// produces a ranked list from whatever persisted data exists. The returned
// error covers infrastructure problems only.
func (o *Orchestrator) Discover(ctx context.Context, orgID uuid.UUID, query ingest.Query, limit int, forceRefresh bool) (*Result, error) {
	started := time.Now()
	prof, err := o.profiles.GetProfile(ctx, orgID)
	if err != nil {
		return nil, err
	}

	runID, err := o.store.CreateDiscoveryRun(ctx, orgID)
	if err != nil {
		return nil, err
	}

	run := models.DiscoveryRun{
		ID:             runID,
		OrgID:          orgID,
		StartedAt:      started,
		SourcesSkipped: append([]string{}, o.skipped...),
	}

	batches, failures := o.fetchAll(ctx, query, &run)
	run.SourcesFailed = failures

	for _, batch := range batches {
		added, updated, cached := o.persistBatch(ctx, batch)
		run.NewlyAdded += added
		run.Updated += updated
		run.FromCache += cached
	}

	ranked, err := o.scoreAll(ctx, orgID, prof, forceRefresh)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > o.config.MaxResults {
		limit = o.config.MaxResults
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	completed := time.Now()
	run.CompletedAt = &completed
	if err := o.store.FinishDiscoveryRun(ctx, run); err != nil {
		log.Printf("[Discovery] recording run %s: %v", run.ID, err)
	}
	metrics.DiscoveryDuration.Observe(completed.Sub(started).Seconds())

	return &Result{Ranked: ranked, Run: run, Errors: failures}, nil
}

// fetchAll fans out to every adapter under a shared wall-clock budget.
// Each adapter's failure is isolated; a slow or broken provider costs only
// its own results.
func (o *Orchestrator) fetchAll(ctx context.Context, query ingest.Query, run *models.DiscoveryRun) ([]sourceBatch, []models.SourceFailure) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.config.FetchBudget)
	defer cancel()

	var mu sync.Mutex
	var batches []sourceBatch
	var failures []models.SourceFailure

	g, gctx := errgroup.WithContext(fetchCtx)
	g.SetLimit(o.config.MaxConcurrent)

	for _, adapter := range o.adapters {
		adapter := adapter
		run.SourcesAttempted = append(run.SourcesAttempted, adapter.Name())
		g.Go(func() error {
			records, err := adapter.Fetch(gctx, query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("[Discovery] source %s failed: %v", adapter.Name(), err)
				metrics.SourceFailures.WithLabelValues(adapter.Name()).Inc()
				failures = append(failures, models.SourceFailure{
					Source: adapter.Name(),
					Reason: failureReason(err),
				})
				return nil
			}
			log.Printf("[Discovery] source %s returned %d records", adapter.Name(), len(records))
			batches = append(batches, sourceBatch{source: adapter.Name(), records: records})
			return nil
		})
	}
	g.Wait()

	return batches, failures
}

func failureReason(err error) string {
	var aerr *ingest.AdapterError
	if errors.As(err, &aerr) {
		return aerr.Reason()
	}
	return err.Error()
}

// persistBatch normalizes, dedups within the batch, and upserts record by
// record. One bad record is logged and skipped, never the whole batch.
func (o *Orchestrator) persistBatch(ctx context.Context, batch sourceBatch) (added, updated, cached int) {
	opps := make([]models.Opportunity, 0, len(batch.records))
	for _, raw := range batch.records {
		opp := ingest.Normalize(raw, batch.source)
		if opp.Title == "" {
			continue
		}
		opps = append(opps, opp)
	}
	opps = ingest.DedupeBatch(opps)

	for i := range opps {
		outcome, err := o.store.UpsertOpportunity(ctx, &opps[i])
		if err != nil {
			log.Printf("[Discovery] upserting %q from %s: %v", opps[i].Title, batch.source, err)
			continue
		}
		switch outcome {
		case db.OutcomeInserted:
			added++
		case db.OutcomeUpdated:
			updated++
		case db.OutcomeUnchanged:
			cached++
		}
	}
	return added, updated, cached
}

// scoreAll scores every opportunity the org can see, serving cached scores
// for the current profile version unless forceRefresh. Previously stored
// but never scored opportunities get scored here too.
func (o *Orchestrator) scoreAll(ctx context.Context, orgID uuid.UUID, prof models.OrganizationProfile, forceRefresh bool) ([]scoring.ScoredOpportunity, error) {
	ids, err := o.store.AllOpportunityIDsForOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	opps, err := o.store.OpportunitiesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	scored := make([]scoring.ScoredOpportunity, 0, len(opps))
	for _, opp := range opps {
		var match models.MatchResult
		hit := false
		if !forceRefresh {
			match, hit, err = o.store.GetMatch(ctx, opp.ID, orgID, prof.ProfileVersion)
			if err != nil {
				return nil, err
			}
		}
		if hit {
			metrics.MatchesScored.WithLabelValues("cache").Inc()
		} else {
			match = o.engine.Score(opp, prof)
			if err := o.store.PutMatch(ctx, match); err != nil {
				log.Printf("[Discovery] caching match for %s: %v", opp.ID, err)
			}
			metrics.MatchesScored.WithLabelValues("fresh").Inc()
		}
		scored = append(scored, scoring.ScoredOpportunity{Opportunity: opp, Match: match})
	}

	scoring.Rank(scored)
	return scored, nil
}
