// Package batch runs the scoring and pricing engines over record
// batches. One weights snapshot is captured per call and used for every
// record in the batch, regardless of concurrent reloads.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creditx-oss/creditx/internal/domain"
	"github.com/creditx-oss/creditx/internal/features"
	"github.com/creditx-oss/creditx/internal/rules"
	"github.com/creditx-oss/creditx/internal/weights"
)

const pricingCacheTTL = 10 * time.Minute

// Aggregator fans batches out across a bounded worker pool. Records are
// independent, so per-record work runs in parallel; ordering guarantees
// apply only within a record's reasons, which each worker preserves.
type Aggregator struct {
	maxWorkers int
	cache      domain.Cache // optional pricing memoization
}

// New creates a batch aggregator. cache may be nil.
func New(maxWorkers int, cache domain.Cache) *Aggregator {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	return &Aggregator{maxWorkers: maxWorkers, cache: cache}
}

// Triage scores submissions for underwriting priority.
func (a *Aggregator) Triage(ctx context.Context, snap *weights.Snapshot, records []domain.SubmissionRecord) *domain.BatchResult {
	scores := make([]domain.ScoreResult, len(records))

	a.fanOut(ctx, len(records), func(i int) error {
		rec := &records[i]
		set := features.Submission(rec, snap.Config.BrokerScoreCurve, snap.Config.Thresholds)
		score, reasons, fired := rules.Score(snap.Triage, set)
		scores[i] = domain.ScoreResult{ID: rec.SubmissionID, Score: score, Reasons: reasons, Fired: fired}
		return nil
	})

	return scoreResult(snap, scores, nil)
}

// RenewalPriority scores policies for renewal urgency.
func (a *Aggregator) RenewalPriority(ctx context.Context, snap *weights.Snapshot, records []domain.PolicyRecord) *domain.BatchResult {
	scores := make([]domain.ScoreResult, len(records))

	a.fanOut(ctx, len(records), func(i int) error {
		rec := &records[i]
		set := features.Policy(rec, snap.Config.Thresholds)
		score, reasons, fired := rules.Score(snap.Renewal, set)
		scores[i] = domain.ScoreResult{ID: rec.PolicyID, Score: score, Reasons: reasons, Fired: fired}
		return nil
	})

	return scoreResult(snap, scores, nil)
}

// Price generates pricing suggestions for submissions. A record whose
// sector has no base rate becomes a failure entry; the rest of the
// batch is unaffected.
func (a *Aggregator) Price(ctx context.Context, snap *weights.Snapshot, records []domain.SubmissionRecord) *domain.BatchResult {
	suggestions := make([]*domain.PriceSuggestion, len(records))
	errs := make([]error, len(records))

	input := &rules.PricingInput{
		BaseRates:   snap.Config.SectorBaseRates,
		Adjustments: snap.Pricing,
		Bounds:      snap.Config.PricingBounds,
		Bands:       snap.Config.Bands,
	}

	a.fanOut(ctx, len(records), func(i int) error {
		rec := &records[i]
		suggestion, err := a.priceOne(ctx, snap, input, rec)
		if err != nil {
			errs[i] = err
			return err
		}
		suggestions[i] = suggestion
		return nil
	})

	result := &domain.BatchResult{
		Suggestions:       make([]domain.PriceSuggestion, 0, len(records)),
		FeatureImportance: make(map[string]int),
		WeightsVersion:    snap.Version(),
	}

	for i := range records {
		if errs[i] != nil {
			result.Failures = append(result.Failures, domain.RecordFailure{
				ID:    records[i].SubmissionID,
				Error: errs[i].Error(),
			})
			continue
		}
		result.Suggestions = append(result.Suggestions, *suggestions[i])
		for _, id := range suggestions[i].Fired {
			result.FeatureImportance[id]++
		}
	}

	return result
}

// priceOne prices a single record, consulting the memoization cache
// when one is configured. Suggestions depend only on the weights
// version and the pricing-relevant fields, never on the record ID.
func (a *Aggregator) priceOne(ctx context.Context, snap *weights.Snapshot, input *rules.PricingInput, rec *domain.SubmissionRecord) (*domain.PriceSuggestion, error) {
	key := pricingKey(snap.Version(), rec)

	if a.cache != nil {
		if payload, err := a.cache.Get(ctx, key); err == nil && payload != nil {
			var cached cachedSuggestion
			if err := json.Unmarshal(payload, &cached); err == nil {
				suggestion := cached.PriceSuggestion
				suggestion.Fired = cached.FiredRules
				suggestion.ID = rec.SubmissionID
				return &suggestion, nil
			}
		}
	}

	set := features.Submission(rec, snap.Config.BrokerScoreCurve, snap.Config.Thresholds)
	suggestion, err := rules.Suggest(input, rec.Sector, set)
	if err != nil {
		return nil, err
	}
	suggestion.ID = rec.SubmissionID

	if a.cache != nil {
		if payload, err := marshalWithFired(suggestion); err == nil {
			_ = a.cache.Set(ctx, key, payload, pricingCacheTTL)
		}
	}

	return suggestion, nil
}

// fanOut runs fn for each index with bounded concurrency.
func (a *Aggregator) fanOut(ctx context.Context, n int, fn func(i int) error) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, a.maxWorkers)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			_ = fn(idx)
		}(i)
	}

	wg.Wait()
}

func scoreResult(snap *weights.Snapshot, scores []domain.ScoreResult, failures []domain.RecordFailure) *domain.BatchResult {
	result := &domain.BatchResult{
		Scores:            scores,
		Failures:          failures,
		FeatureImportance: make(map[string]int),
		WeightsVersion:    snap.Version(),
	}
	for i := range scores {
		for _, id := range scores[i].Fired {
			result.FeatureImportance[id]++
		}
	}
	return result
}

// pricingKey builds a deterministic cache key from the weights version
// and every pricing-relevant submission field.
func pricingKey(version string, rec *domain.SubmissionRecord) string {
	var b strings.Builder
	b.WriteString("pricing:")
	b.WriteString(version)
	b.WriteByte(':')
	b.WriteString(string(rec.Sector))
	b.WriteByte(':')
	b.WriteString(strconv.FormatBool(rec.FinancialsAttached))
	b.WriteByte(':')
	b.WriteString(strconv.FormatFloat(rec.BrokerHitRate, 'g', -1, 64))
	b.WriteByte(':')
	b.WriteString(strconv.FormatFloat(rec.DebtorDays, 'g', -1, 64))
	b.WriteByte(':')
	b.WriteString(strconv.FormatBool(rec.HasJudgements))
	b.WriteByte(':')
	b.WriteString(strconv.FormatFloat(rec.RequestedCovPct, 'g', -1, 64))
	b.WriteByte(':')
	b.WriteString(strconv.FormatFloat(rec.YearsTrading, 'g', -1, 64))
	b.WriteByte(':')
	b.WriteString(strconv.FormatFloat(rec.ExposureLimit, 'g', -1, 64))
	return b.String()
}

// cachedSuggestion carries Fired, which the public JSON shape omits.
type cachedSuggestion struct {
	domain.PriceSuggestion
	FiredRules []string `json:"fired_rules"`
}

func marshalWithFired(s *domain.PriceSuggestion) ([]byte, error) {
	return json.Marshal(cachedSuggestion{PriceSuggestion: *s, FiredRules: s.Fired})
}

// Run dispatches by operation for callers that hold mixed batches.
func (a *Aggregator) Run(ctx context.Context, snap *weights.Snapshot, op domain.Operation, submissions []domain.SubmissionRecord, policies []domain.PolicyRecord) (*domain.BatchResult, error) {
	switch op {
	case domain.OpTriage:
		return a.Triage(ctx, snap, submissions), nil
	case domain.OpRenewal:
		return a.RenewalPriority(ctx, snap, policies), nil
	case domain.OpPricing:
		return a.Price(ctx, snap, submissions), nil
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}
