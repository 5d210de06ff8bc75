package features

import (
	"math"
	"testing"

	"github.com/creditx-oss/creditx/internal/domain"
)

func testThresholds() domain.Thresholds {
	return domain.Thresholds{
		DebtorDaysPromptMax:    60,
		DebtorDaysSlowMin:      120,
		ExpiryUrgentDays:       30,
		ExpirySoonDays:         90,
		UtilizationLowMax:      0.3,
		UtilizationHighMin:     0.8,
		ClaimsRatioLowMax:      0.5,
		ClaimsRatioElevatedMin: 1.5,
		ClaimsCountSevereMin:   3,
		ChangePctEpsilon:       0.02,
	}
}

func testCurve() []domain.CurvePoint {
	return []domain.CurvePoint{
		{X: 0.0, Y: 0.0},
		{X: 0.5, Y: 0.5},
		{X: 1.0, Y: 1.0},
	}
}

func TestInterpolate(t *testing.T) {
	curve := []domain.CurvePoint{
		{X: 0.2, Y: 0.1},
		{X: 0.6, Y: 0.5},
		{X: 0.8, Y: 0.9},
	}

	t.Run("ClampsBelowFirstPoint", func(t *testing.T) {
		if got := Interpolate(curve, 0.0); got != 0.1 {
			t.Errorf("expected 0.1, got %v", got)
		}
	})

	t.Run("ClampsAboveLastPoint", func(t *testing.T) {
		if got := Interpolate(curve, 1.0); got != 0.9 {
			t.Errorf("expected 0.9, got %v", got)
		}
	})

	t.Run("ExactControlPoint", func(t *testing.T) {
		if got := Interpolate(curve, 0.6); got != 0.5 {
			t.Errorf("expected 0.5, got %v", got)
		}
	})

	t.Run("LinearBetweenPoints", func(t *testing.T) {
		// Halfway between (0.2, 0.1) and (0.6, 0.5)
		got := Interpolate(curve, 0.4)
		if math.Abs(got-0.3) > 1e-9 {
			t.Errorf("expected 0.3, got %v", got)
		}
	})

	t.Run("EmptyCurve", func(t *testing.T) {
		if got := Interpolate(nil, 0.5); got != 0 {
			t.Errorf("expected 0 for empty curve, got %v", got)
		}
	})
}

func TestDebtorDaysBucket(t *testing.T) {
	th := testThresholds()

	cases := []struct {
		days float64
		want string
	}{
		{0, BucketPrompt},
		{60, BucketPrompt},
		{61, BucketStandard},
		{120, BucketStandard},
		{121, BucketSlow},
	}
	for _, tc := range cases {
		if got := debtorDaysBucket(tc.days, th); got != tc.want {
			t.Errorf("debtorDaysBucket(%v) = %q, want %q", tc.days, got, tc.want)
		}
	}
}

func TestExpiryBucket(t *testing.T) {
	th := testThresholds()

	cases := []struct {
		days float64
		want string
	}{
		{10, BucketUrgent},
		{30, BucketUrgent},
		{31, BucketSoon},
		{90, BucketSoon},
		{91, BucketLater},
	}
	for _, tc := range cases {
		if got := expiryBucket(tc.days, th); got != tc.want {
			t.Errorf("expiryBucket(%v) = %q, want %q", tc.days, got, tc.want)
		}
	}
}

func TestUtilizationBucket(t *testing.T) {
	th := testThresholds()

	cases := []struct {
		pct  float64
		want string
	}{
		{0.1, BucketLow},
		{0.3, BucketLow},
		{0.5, BucketModerate},
		{0.8, BucketHigh},
		{0.95, BucketHigh},
	}
	for _, tc := range cases {
		if got := utilizationBucket(tc.pct, th); got != tc.want {
			t.Errorf("utilizationBucket(%v) = %q, want %q", tc.pct, got, tc.want)
		}
	}
}

func TestClaimsSeverity(t *testing.T) {
	th := testThresholds()

	cases := []struct {
		name  string
		count int
		ratio float64
		want  string
	}{
		{"NoClaims", 0, 0, SeverityNone},
		{"HighCountIsSevere", 3, 0.1, SeveritySevere},
		{"ElevatedRatio", 1, 1.5, SeverityElevated},
		{"LowRatio", 1, 0.4, SeverityLow},
		{"MiddleRatio", 1, 1.0, SeverityModerate},
		{"ZeroCountNonZeroRatio", 0, 0.6, SeverityModerate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := claimsSeverity(tc.count, tc.ratio, th); got != tc.want {
				t.Errorf("claimsSeverity(%d, %v) = %q, want %q", tc.count, tc.ratio, got, tc.want)
			}
		})
	}
}

func TestChangeDirection(t *testing.T) {
	th := testThresholds()

	cases := []struct {
		pct  float64
		want string
	}{
		{0.1, DirectionIncrease},
		{0.02, DirectionFlat},
		{0.0, DirectionFlat},
		{-0.02, DirectionFlat},
		{-0.1, DirectionDecrease},
	}
	for _, tc := range cases {
		if got := changeDirection(tc.pct, th); got != tc.want {
			t.Errorf("changeDirection(%v) = %q, want %q", tc.pct, got, tc.want)
		}
	}
}

func TestSubmissionExtraction(t *testing.T) {
	rec := &domain.SubmissionRecord{
		SubmissionID:       "SUB-001",
		Broker:             "Marsh Re",
		Sector:             domain.SectorLogistics,
		ExposureLimit:      1_000_000,
		DebtorDays:         45,
		FinancialsAttached: true,
		YearsTrading:       8,
		BrokerHitRate:      0.85,
		RequestedCovPct:    0.75,
		HasJudgements:      false,
	}

	set := Submission(rec, testCurve(), testThresholds())

	// Every vocabulary feature must be present with the right kind
	for name, kind := range SubmissionVocabulary() {
		v, ok := set[name]
		if !ok {
			t.Fatalf("missing feature %q", name)
		}
		if v.Kind != kind {
			t.Errorf("feature %q has kind %v, want %v", name, v.Kind, kind)
		}
	}

	if got := set["debtor_days_bucket"].Label; got != BucketPrompt {
		t.Errorf("debtor_days_bucket = %q, want %q", got, BucketPrompt)
	}
	wantLog := math.Log1p(1_000_000)
	if got := set["log_exposure"].Num; math.Abs(got-wantLog) > 1e-9 {
		t.Errorf("log_exposure = %v, want %v", got, wantLog)
	}
	if got := set["hit_rate_score"].Num; math.Abs(got-0.85) > 1e-9 {
		t.Errorf("hit_rate_score = %v, want 0.85", got)
	}
}

func TestPolicyExtraction(t *testing.T) {
	rec := &domain.PolicyRecord{
		PolicyID:           "POL-001",
		Broker:             "AonField",
		Sector:             domain.SectorRetail,
		CurrentPremium:     50_000,
		Limit:              2_000_000,
		UtilizationPct:     0.85,
		ClaimsLast24mCnt:   1,
		ClaimsRatio24m:     1.6,
		DaysToExpiry:       25,
		RequestedChangePct: -0.15,
	}

	set := Policy(rec, testThresholds())

	for name, kind := range PolicyVocabulary() {
		v, ok := set[name]
		if !ok {
			t.Fatalf("missing feature %q", name)
		}
		if v.Kind != kind {
			t.Errorf("feature %q has kind %v, want %v", name, v.Kind, kind)
		}
	}

	if got := set["expiry_bucket"].Label; got != BucketUrgent {
		t.Errorf("expiry_bucket = %q, want %q", got, BucketUrgent)
	}
	if got := set["utilization_bucket"].Label; got != BucketHigh {
		t.Errorf("utilization_bucket = %q, want %q", got, BucketHigh)
	}
	if got := set["claims_severity"].Label; got != SeverityElevated {
		t.Errorf("claims_severity = %q, want %q", got, SeverityElevated)
	}
	if got := set["change_direction"].Label; got != DirectionDecrease {
		t.Errorf("change_direction = %q, want %q", got, DirectionDecrease)
	}
}

func TestValueFormat(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Num(0.85), "0.85"},
		{Num(45), "45"},
		{Bool(true), "yes"},
		{Bool(false), "no"},
		{Text("prompt"), "prompt"},
	}
	for _, tc := range cases {
		if got := tc.v.Format(); got != tc.want {
			t.Errorf("Format() = %q, want %q", got, tc.want)
		}
	}
}

func TestExtractionIsDeterministic(t *testing.T) {
	rec := &domain.SubmissionRecord{
		SubmissionID:  "SUB-002",
		Broker:        "Lockton SA",
		Sector:        domain.SectorAgri,
		ExposureLimit: 250_000,
		DebtorDays:    90,
		YearsTrading:  3,
		BrokerHitRate: 0.42,
	}

	first := Submission(rec, testCurve(), testThresholds())
	second := Submission(rec, testCurve(), testThresholds())

	for name, v := range first {
		if second[name] != v {
			t.Errorf("feature %q differs between extractions", name)
		}
	}
}
