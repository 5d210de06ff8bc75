package weights

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/creditx-oss/creditx/internal/domain"
)

const validDoc = `
version: "test-1"
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
  Agri: 0.8
  default: 0.9
`

func TestBuildValidDocument(t *testing.T) {
	snap, err := Build([]byte(validDoc), "inline")
	if err != nil {
		t.Fatalf("failed to build snapshot: %v", err)
	}

	if snap.Version() != "test-1" {
		t.Errorf("version = %q, want test-1", snap.Version())
	}
	if len(snap.Triage) != 2 {
		t.Errorf("expected 2 compiled triage rules, got %d", len(snap.Triage))
	}
	if len(snap.Renewal) != 1 {
		t.Errorf("expected 1 compiled renewal rule, got %d", len(snap.Renewal))
	}
	if len(snap.Pricing) != 1 {
		t.Errorf("expected 1 compiled pricing adjustment, got %d", len(snap.Pricing))
	}
	if snap.Source != "inline" {
		t.Errorf("source = %q, want inline", snap.Source)
	}
}

func TestBuildRejectsInvalidDocuments(t *testing.T) {
	replace := func(old, new string) []byte {
		return []byte(strings.Replace(validDoc, old, new, 1))
	}

	cases := []struct {
		name string
		doc  []byte
	}{
		{"MalformedYAML", []byte("{not yaml")},
		{"EmptyVersion", replace(`version: "test-1"`, `version: "  "`)},
		{"MissingSector", replace("  Agri: 280\n", "")},
		{"NegativeBaseRate", replace("Retail: 220", "Retail: -5")},
		{"BandGap", replace("lower_bps: 201", "lower_bps: 205")},
		{"BandInverted", replace("upper_bps: 251", "upper_bps: 150")},
		{"DuplicateBandCode", replace("code: B", "code: A")},
		{"CurveNotIncreasing", replace("{x: 0.5, y: 0.5}", "{x: 0.0, y: 0.5}")},
		{"CurveYOutOfRange", replace("{x: 0.5, y: 0.5}", "{x: 0.5, y: 1.5}")},
		{"InvertedBounds", replace("max_rate: 500", "max_rate: 100")},
		{"UnknownRuleFeature", replace("feature: financials_attached", "feature: nonexistent")},
		{"CoverageLimitOutOfRange", replace("Agri: 0.8", "Agri: 1.8")},
		{"InvertedThresholds", replace("utilization_high_min: 0.8", "utilization_high_min: 0.2")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.doc, "inline")
			if err == nil {
				t.Fatal("expected build error")
			}
			if !domain.IsConfigError(err) {
				t.Errorf("expected a config error, got %v", err)
			}
		})
	}
}

func TestStoreActiveBeforeFirstLoad(t *testing.T) {
	store := NewStore()

	_, err := store.Active()
	if !errors.Is(err, domain.ErrNoActiveConfig) {
		t.Errorf("expected ErrNoActiveConfig, got %v", err)
	}

	_, err = store.Descriptor()
	if !errors.Is(err, domain.ErrNoActiveConfig) {
		t.Errorf("expected ErrNoActiveConfig from Descriptor, got %v", err)
	}
}

func TestStoreReload(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	snap, err := store.Reload(ctx, BytesSource{Raw: []byte(validDoc)})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if snap.Version() != "test-1" {
		t.Errorf("version = %q, want test-1", snap.Version())
	}

	active, err := store.Active()
	if err != nil {
		t.Fatalf("no active snapshot after reload: %v", err)
	}
	if active != snap {
		t.Error("Active() did not return the reloaded snapshot")
	}
}

func TestFailedReloadKeepsPreviousSnapshot(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	first, err := store.Reload(ctx, BytesSource{Raw: []byte(validDoc)})
	if err != nil {
		t.Fatalf("initial reload failed: %v", err)
	}

	bad := strings.Replace(validDoc, `version: "test-1"`, `version: ""`, 1)
	if _, err := store.Reload(ctx, BytesSource{Raw: []byte(bad)}); err == nil {
		t.Fatal("expected reload of invalid document to fail")
	}

	active, err := store.Active()
	if err != nil {
		t.Fatalf("active snapshot lost after failed reload: %v", err)
	}
	if active != first {
		t.Error("failed reload replaced the active snapshot")
	}
	if active.Version() != "test-1" {
		t.Errorf("active version = %q, want test-1", active.Version())
	}
}

func TestReloadSwapsVersionAtomically(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.Reload(ctx, BytesSource{Raw: []byte(validDoc)}); err != nil {
		t.Fatalf("initial reload failed: %v", err)
	}

	second := strings.Replace(validDoc, `version: "test-1"`, `version: "test-2"`, 1)

	// Readers must only ever observe a complete snapshot while a
	// reload lands concurrently.
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap, err := store.Active()
				if err != nil {
					t.Errorf("reader lost active snapshot: %v", err)
					return
				}
				v := snap.Version()
				if v != "test-1" && v != "test-2" {
					t.Errorf("observed torn snapshot version %q", v)
					return
				}
				if len(snap.Triage) != 2 {
					t.Errorf("observed snapshot with %d triage rules", len(snap.Triage))
					return
				}
			}
		}()
	}

	if _, err := store.Reload(ctx, BytesSource{Raw: []byte(second)}); err != nil {
		t.Fatalf("second reload failed: %v", err)
	}
	close(stop)
	wg.Wait()

	desc, err := store.Descriptor()
	if err != nil {
		t.Fatalf("descriptor failed: %v", err)
	}
	if desc.Version != "test-2" {
		t.Errorf("descriptor version = %q, want test-2", desc.Version)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	if err := os.WriteFile(path, []byte(validDoc), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	raw, origin, err := FileSource{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("file source load failed: %v", err)
	}
	if string(raw) != validDoc {
		t.Error("file source returned different content")
	}
	if origin != "file:"+path {
		t.Errorf("origin = %q, want file:%s", origin, path)
	}

	t.Run("MissingFile", func(t *testing.T) {
		_, _, err := FileSource{Path: filepath.Join(dir, "missing.yaml")}.Load(context.Background())
		if err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestCoverageLimitFallback(t *testing.T) {
	snap, err := Build([]byte(validDoc), "inline")
	if err != nil {
		t.Fatalf("failed to build snapshot: %v", err)
	}

	if got := snap.Config.CoverageLimit(domain.SectorAgri); got != 0.8 {
		t.Errorf("Agri limit = %v, want 0.8", got)
	}
	if got := snap.Config.CoverageLimit(domain.SectorRetail); got != 0.9 {
		t.Errorf("Retail limit should fall back to default 0.9, got %v", got)
	}
}
