package batch

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creditx-oss/creditx/internal/cache"
	"github.com/creditx-oss/creditx/internal/domain"
	"github.com/creditx-oss/creditx/internal/weights"
)

const batchDoc = `
version: "batch-1"
sector_base_rates:
  Retail: 220
  Manufacturing: 260
  Logistics: 240
  Agri: 280
  Services: 200
  Other: 250
triage_rules:
  - id: financials_provided
    kind: flag
    feature: financials_attached
    weight: 0.2
    reason: "Financial statements provided"
  - id: good_broker
    kind: curve
    feature: hit_rate_score
    op: gte
    value: 0.5
    weight: 0.25
    reason: "Good broker quality track record"
renewal_rules:
  - id: expiring_soon
    kind: membership
    feature: expiry_bucket
    values: [urgent, soon]
    weight: 0.3
    reason: "Expiring soon"
pricing_adjustments:
  - id: judgements
    kind: flag
    feature: has_judgements
    bps: 60
    reason: "Outstanding judgements ({bps} bps)"
bands:
  - code: A
    label: "<=200 bps"
    description: "Lowest risk submissions"
    lower_bps: 0
    upper_bps: 201
  - code: B
    label: "201-250 bps"
    description: "Low risk submissions"
    lower_bps: 201
    upper_bps: 251
  - code: E
    label: ">250 bps"
    description: "Highest risk submissions"
    lower_bps: 251
    upper_bps: 1000000
broker_score_curve:
  - {x: 0.0, y: 0.0}
  - {x: 0.5, y: 0.5}
  - {x: 1.0, y: 1.0}
pricing_bounds:
  min_rate: 120
  max_rate: 500
thresholds:
  debtor_days_prompt_max: 60
  debtor_days_slow_min: 120
  expiry_urgent_days: 30
  expiry_soon_days: 90
  utilization_low_max: 0.3
  utilization_high_min: 0.8
  claims_ratio_low_max: 0.5
  claims_ratio_elevated_min: 1.5
  claims_count_severe_min: 3
  change_pct_epsilon: 0.02
sector_coverage_limits:
  default: 0.9
`

func testSnapshot(t *testing.T) *weights.Snapshot {
	t.Helper()
	snap, err := weights.Build([]byte(batchDoc), "inline")
	if err != nil {
		t.Fatalf("failed to build snapshot: %v", err)
	}
	return snap
}

func strongSubmission(id string) domain.SubmissionRecord {
	return domain.SubmissionRecord{
		SubmissionID:       id,
		Broker:             "Marsh",
		Sector:             domain.SectorRetail,
		ExposureLimit:      500000,
		DebtorDays:         45,
		FinancialsAttached: true,
		YearsTrading:       12,
		BrokerHitRate:      1.0,
		RequestedCovPct:    0.8,
	}
}

func TestTriageBatch(t *testing.T) {
	snap := testSnapshot(t)
	agg := New(4, nil)

	records := []domain.SubmissionRecord{
		strongSubmission("SUB-001"),
		{
			SubmissionID:  "SUB-002",
			Broker:        "Aon",
			Sector:        domain.SectorServices,
			ExposureLimit: 100000,
			DebtorDays:    80,
			YearsTrading:  1,
			BrokerHitRate: 0.1,
		},
	}

	result := agg.Triage(context.Background(), snap, records)

	if result.WeightsVersion != "batch-1" {
		t.Errorf("weights version = %q, want batch-1", result.WeightsVersion)
	}
	if len(result.Scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(result.Scores))
	}
	if len(result.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", result.Failures)
	}

	first := result.Scores[0]
	if first.ID != "SUB-001" {
		t.Errorf("scores out of input order: first ID = %q", first.ID)
	}
	if first.Score != 0.45 {
		t.Errorf("SUB-001 score = %v, want 0.45", first.Score)
	}
	wantFired := []string{"financials_provided", "good_broker"}
	if len(first.Fired) != len(wantFired) {
		t.Fatalf("SUB-001 fired = %v, want %v", first.Fired, wantFired)
	}
	for i, id := range wantFired {
		if first.Fired[i] != id {
			t.Errorf("fired[%d] = %q, want %q", i, first.Fired[i], id)
		}
	}

	second := result.Scores[1]
	if second.Score != 0 {
		t.Errorf("SUB-002 score = %v, want 0", second.Score)
	}

	if result.FeatureImportance["financials_provided"] != 1 {
		t.Errorf("financials_provided importance = %d, want 1", result.FeatureImportance["financials_provided"])
	}
	if result.FeatureImportance["good_broker"] != 1 {
		t.Errorf("good_broker importance = %d, want 1", result.FeatureImportance["good_broker"])
	}
}

func TestTriagePreservesInputOrder(t *testing.T) {
	snap := testSnapshot(t)
	agg := New(8, nil)

	records := make([]domain.SubmissionRecord, 100)
	for i := range records {
		records[i] = strongSubmission(fmt.Sprintf("SUB-%03d", i))
	}

	result := agg.Triage(context.Background(), snap, records)

	if len(result.Scores) != len(records) {
		t.Fatalf("expected %d scores, got %d", len(records), len(result.Scores))
	}
	for i, score := range result.Scores {
		if want := fmt.Sprintf("SUB-%03d", i); score.ID != want {
			t.Fatalf("scores[%d].ID = %q, want %q", i, score.ID, want)
		}
	}
	if result.FeatureImportance["financials_provided"] != 100 {
		t.Errorf("financials_provided importance = %d, want 100", result.FeatureImportance["financials_provided"])
	}
}

func TestRenewalPriorityBatch(t *testing.T) {
	snap := testSnapshot(t)
	agg := New(4, nil)

	records := []domain.PolicyRecord{
		{
			PolicyID:       "POL-001",
			Broker:         "Marsh",
			Sector:         domain.SectorRetail,
			CurrentPremium: 10000,
			Limit:          250000,
			UtilizationPct: 0.5,
			DaysToExpiry:   20,
		},
		{
			PolicyID:       "POL-002",
			Broker:         "Aon",
			Sector:         domain.SectorAgri,
			CurrentPremium: 5000,
			Limit:          100000,
			UtilizationPct: 0.5,
			DaysToExpiry:   200,
		},
	}

	result := agg.RenewalPriority(context.Background(), snap, records)

	if len(result.Scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(result.Scores))
	}
	if result.Scores[0].Score != 0.3 {
		t.Errorf("POL-001 score = %v, want 0.3", result.Scores[0].Score)
	}
	if result.Scores[1].Score != 0 {
		t.Errorf("POL-002 score = %v, want 0", result.Scores[1].Score)
	}
	if result.FeatureImportance["expiring_soon"] != 1 {
		t.Errorf("expiring_soon importance = %d, want 1", result.FeatureImportance["expiring_soon"])
	}
}

func TestPriceBatch(t *testing.T) {
	snap := testSnapshot(t)
	agg := New(4, nil)

	clean := strongSubmission("SUB-001")
	risky := strongSubmission("SUB-002")
	risky.HasJudgements = true

	result := agg.Price(context.Background(), snap, []domain.SubmissionRecord{clean, risky})

	if len(result.Suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(result.Suggestions))
	}

	first := result.Suggestions[0]
	if first.SuggestedRateBps != 220 {
		t.Errorf("clean rate = %v, want 220", first.SuggestedRateBps)
	}
	if first.BandCode != "B" {
		t.Errorf("clean band = %q, want B", first.BandCode)
	}

	second := result.Suggestions[1]
	if second.SuggestedRateBps != 280 {
		t.Errorf("judgements rate = %v, want 280", second.SuggestedRateBps)
	}
	if second.BandCode != "E" {
		t.Errorf("judgements band = %q, want E", second.BandCode)
	}
	if result.FeatureImportance["judgements"] != 1 {
		t.Errorf("judgements importance = %d, want 1", result.FeatureImportance["judgements"])
	}
}

func TestPricePartialFailure(t *testing.T) {
	snap := testSnapshot(t)
	agg := New(4, nil)

	good := strongSubmission("SUB-001")
	bad := strongSubmission("SUB-002")
	bad.Sector = domain.Sector("Mining")

	result := agg.Price(context.Background(), snap, []domain.SubmissionRecord{good, bad})

	if len(result.Suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(result.Suggestions))
	}
	if result.Suggestions[0].ID != "SUB-001" {
		t.Errorf("surviving suggestion ID = %q, want SUB-001", result.Suggestions[0].ID)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(result.Failures))
	}
	failure := result.Failures[0]
	if failure.ID != "SUB-002" {
		t.Errorf("failure ID = %q, want SUB-002", failure.ID)
	}
	if !strings.Contains(failure.Error, "Mining") {
		t.Errorf("failure message %q does not name the sector", failure.Error)
	}
}

// countingCache wraps the LRU cache and counts stored entries served.
type countingCache struct {
	*cache.LRUCache
	hits atomic.Int64
	sets atomic.Int64
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := c.LRUCache.Get(ctx, key)
	if err == nil && payload != nil {
		c.hits.Add(1)
	}
	return payload, err
}

func (c *countingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.sets.Add(1)
	return c.LRUCache.Set(ctx, key, value, ttl)
}

func TestPriceMemoization(t *testing.T) {
	snap := testSnapshot(t)
	counting := &countingCache{LRUCache: cache.NewLRUCache(64)}
	agg := New(4, counting)

	rec := strongSubmission("SUB-001")
	rec.HasJudgements = true

	first := agg.Price(context.Background(), snap, []domain.SubmissionRecord{rec})
	if counting.sets.Load() == 0 {
		t.Fatal("first run stored nothing in the cache")
	}
	if counting.hits.Load() != 0 {
		t.Fatalf("first run hit the cache %d times", counting.hits.Load())
	}

	// Same pricing fields under a different submission ID reuses the
	// cached suggestion but reports the caller's ID.
	rec2 := rec
	rec2.SubmissionID = "SUB-099"

	second := agg.Price(context.Background(), snap, []domain.SubmissionRecord{rec2})
	if counting.hits.Load() != 1 {
		t.Fatalf("second run cache hits = %d, want 1", counting.hits.Load())
	}

	a, b := first.Suggestions[0], second.Suggestions[0]
	if b.ID != "SUB-099" {
		t.Errorf("cached suggestion ID = %q, want SUB-099", b.ID)
	}
	if a.SuggestedRateBps != b.SuggestedRateBps || a.BandCode != b.BandCode {
		t.Errorf("cached suggestion diverged: %v vs %v", a, b)
	}
	if len(b.Fired) != len(a.Fired) {
		t.Fatalf("cached fired rules = %v, want %v", b.Fired, a.Fired)
	}
	if second.FeatureImportance["judgements"] != 1 {
		t.Errorf("cached run lost feature importance: %v", second.FeatureImportance)
	}
}

func TestPriceCacheKeyIncludesVersion(t *testing.T) {
	snapA := testSnapshot(t)

	bumped := strings.Replace(batchDoc, `version: "batch-1"`, `version: "batch-2"`, 1)
	snapB, err := weights.Build([]byte(bumped), "inline")
	if err != nil {
		t.Fatalf("failed to build second snapshot: %v", err)
	}

	counting := &countingCache{LRUCache: cache.NewLRUCache(64)}
	agg := New(4, counting)
	rec := strongSubmission("SUB-001")

	agg.Price(context.Background(), snapA, []domain.SubmissionRecord{rec})
	result := agg.Price(context.Background(), snapB, []domain.SubmissionRecord{rec})

	if counting.hits.Load() != 0 {
		t.Errorf("pricing under a new weights version reused a stale cache entry")
	}
	if result.WeightsVersion != "batch-2" {
		t.Errorf("weights version = %q, want batch-2", result.WeightsVersion)
	}
}

func TestRunDispatch(t *testing.T) {
	snap := testSnapshot(t)
	agg := New(4, nil)
	ctx := context.Background()

	subs := []domain.SubmissionRecord{strongSubmission("SUB-001")}
	pols := []domain.PolicyRecord{{PolicyID: "POL-001", Sector: domain.SectorRetail, DaysToExpiry: 20}}

	triage, err := agg.Run(ctx, snap, domain.OpTriage, subs, nil)
	if err != nil || len(triage.Scores) != 1 {
		t.Errorf("triage dispatch failed: %v", err)
	}

	renewal, err := agg.Run(ctx, snap, domain.OpRenewal, nil, pols)
	if err != nil || len(renewal.Scores) != 1 {
		t.Errorf("renewal dispatch failed: %v", err)
	}

	pricing, err := agg.Run(ctx, snap, domain.OpPricing, subs, nil)
	if err != nil || len(pricing.Suggestions) != 1 {
		t.Errorf("pricing dispatch failed: %v", err)
	}

	if _, err := agg.Run(ctx, snap, domain.Operation("unknown"), nil, nil); err == nil {
		t.Error("expected error for unknown operation")
	}
}
