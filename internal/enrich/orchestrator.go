package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raine/lease-to-own/internal/llm"
	"github.com/raine/lease-to-own/internal/storage"
	"github.com/raine/lease-to-own/internal/trigger"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ListingStore is the part of the persistence store the orchestrator uses.
type ListingStore interface {
	GetListing(id string) (*storage.Listing, error)
	UpdateListingAI(id string, block storage.AIBlock) error
}

// RunRecorder stores the log record of each run.
type RunRecorder interface {
	RecordRun(r *storage.EnrichmentRun) error
}

// ListingChange is a write to a listing document as seen by the orchestrator.
type ListingChange struct {
	ListingID string
	Before    map[string]any
	After     map[string]any
}

// Options tunes an Orchestrator.
type Options struct {
	// MaxImages caps how many images are sent for tagging (1-3).
	MaxImages int
	// Now returns the timestamp written to aiUpdatedAt. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator refreshes the AI-derived fields of a listing after each write
// to its base fields.
type Orchestrator struct {
	store    ListingStore
	runs     RunRecorder
	tags     *TagExtractor
	pricing  *PricingEstimator
	fraud    *FraudAssessor
	describe *DescriptionGenerator
	now      func() time.Time
}

// NewOrchestrator wires the four generators to one provider. runs may be nil.
func NewOrchestrator(store ListingStore, runs RunRecorder, provider llm.Provider, images ImageSource, opts Options) *Orchestrator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store:    store,
		runs:     runs,
		tags:     NewTagExtractor(provider, images, opts.MaxImages),
		pricing:  NewPricingEstimator(provider),
		fraud:    NewFraudAssessor(provider),
		describe: NewDescriptionGenerator(provider),
		now:      now,
	}
}

// HandleEvent implements trigger.Handler for "listings/{id}". It never
// returns an error; failures are logged and reported in the run log.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev trigger.Event, params trigger.Params) error {
	o.HandleListingWrite(ctx, ListingChange{
		ListingID: params["id"],
		Before:    ev.Before,
		After:     ev.After,
	})
	return nil
}

// HandleListingWrite runs the pipeline for one listing write. Either every
// generator succeeds and the whole AI block is written at once, or nothing
// is written.
func (o *Orchestrator) HandleListingWrite(ctx context.Context, change ListingChange) Outcome {
	start := time.Now()

	// AI write-backs and moderation changes fire the trigger again
	if change.After != nil && !BaseFieldsChanged(change.Before, change.After) {
		log.Debug().Str("listingId", change.ListingID).Msg("base fields unchanged, skipping enrichment")
		return noop(change.ListingID, ReasonBaseUnchanged)
	}

	out := o.run(ctx, change)
	out.Duration = time.Since(start)

	switch out.Status {
	case StatusFailed:
		log.Error().
			Err(out.Err).
			Str("listingId", change.ListingID).
			Dur("duration", out.Duration).
			Msg("listing enrichment failed")
	case StatusNoop:
		log.Info().Str("listingId", change.ListingID).Str("reason", out.Reason).Msg("listing enrichment skipped")
	case StatusCommitted:
		log.Info().
			Str("listingId", change.ListingID).
			Int("tagCount", len(out.Block.Tags)).
			Str("riskLevel", out.Block.Fraud.RiskLevel).
			Dur("duration", out.Duration).
			Msg("listing enrichment committed")
	}

	o.record(out)
	return out
}

func (o *Orchestrator) run(ctx context.Context, change ListingChange) Outcome {
	id := change.ListingID
	if change.After == nil {
		return noop(id, ReasonDeleted)
	}

	current, err := o.store.GetListing(id)
	if err != nil {
		return failed(id, fmt.Errorf("failed to read listing: %w", err))
	}
	if current == nil {
		return noop(id, ReasonMissing)
	}

	in := InputFromSnapshot(id, change.After)

	// Pricing and description read the tags, so vision runs first
	tags, err := o.tags.Extract(ctx, in.ImageURLs)
	if err != nil {
		return failed(id, fmt.Errorf("tag extraction failed: %w", err))
	}

	var (
		pricing     storage.PricingEstimate
		fraud       storage.FraudAssessment
		description string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pricing, err = o.pricing.Estimate(gctx, in, tags.Tags)
		return err
	})
	g.Go(func() error {
		var err error
		fraud, err = o.fraud.Assess(gctx, change.After)
		return err
	})
	g.Go(func() error {
		var err error
		description, err = o.describe.Describe(gctx, in, tags.Tags)
		return err
	})
	if err := g.Wait(); err != nil {
		return failed(id, err)
	}

	block := storage.AIBlock{
		Tags:            tags.Tags,
		Caption:         tags.Caption,
		Pricing:         pricing,
		Fraud:           fraud,
		FullDescription: description,
		UpdatedAt:       o.now().UTC(),
	}

	if err := o.store.UpdateListingAI(id, block); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return noop(id, ReasonDeletedMidRun)
		}
		return failed(id, fmt.Errorf("failed to write ai fields: %w", err))
	}

	return Outcome{Status: StatusCommitted, ListingID: id, Block: &block}
}

func (o *Orchestrator) record(out Outcome) {
	if o.runs == nil {
		return
	}
	err := o.runs.RecordRun(&storage.EnrichmentRun{
		ListingID: out.ListingID,
		Status:    string(out.Status),
		Reason:    out.Reason,
		Duration:  out.Duration,
	})
	if err != nil {
		log.Warn().Err(err).Str("listingId", out.ListingID).Msg("failed to record enrichment run")
	}
}
