package features

import (
	"math"

	"github.com/creditx-oss/creditx/internal/domain"
)

// Bucket labels produced by extraction.
const (
	BucketPrompt   = "prompt"
	BucketStandard = "standard"
	BucketSlow     = "slow"

	BucketUrgent = "urgent"
	BucketSoon   = "soon"
	BucketLater  = "later"

	BucketLow      = "low"
	BucketModerate = "moderate"
	BucketHigh     = "high"

	SeverityNone     = "none"
	SeverityLow      = "low"
	SeverityModerate = "moderate"
	SeverityElevated = "elevated"
	SeveritySevere   = "severe"

	DirectionIncrease = "increase"
	DirectionDecrease = "decrease"
	DirectionFlat     = "flat"
)

// Submission extracts the feature set for a submission record.
func Submission(rec *domain.SubmissionRecord, curve []domain.CurvePoint, th domain.Thresholds) Set {
	return Set{
		"broker":              Text(rec.Broker),
		"sector":              Text(string(rec.Sector)),
		"exposure_limit":      Num(rec.ExposureLimit),
		"log_exposure":        Num(math.Log1p(rec.ExposureLimit)),
		"debtor_days":         Num(rec.DebtorDays),
		"debtor_days_bucket":  Text(debtorDaysBucket(rec.DebtorDays, th)),
		"financials_attached": Bool(rec.FinancialsAttached),
		"years_trading":       Num(rec.YearsTrading),
		"broker_hit_rate":     Num(rec.BrokerHitRate),
		"hit_rate_score":      Num(Interpolate(curve, rec.BrokerHitRate)),
		"requested_cov_pct":   Num(rec.RequestedCovPct),
		"has_judgements":      Bool(rec.HasJudgements),
	}
}

// Policy extracts the feature set for a policy record.
func Policy(rec *domain.PolicyRecord, th domain.Thresholds) Set {
	return Set{
		"broker":               Text(rec.Broker),
		"sector":               Text(string(rec.Sector)),
		"current_premium":      Num(rec.CurrentPremium),
		"limit":                Num(rec.Limit),
		"utilization_pct":      Num(rec.UtilizationPct),
		"utilization_bucket":   Text(utilizationBucket(rec.UtilizationPct, th)),
		"claims_last_24m_cnt":  Num(float64(rec.ClaimsLast24mCnt)),
		"claims_ratio_24m":     Num(rec.ClaimsRatio24m),
		"claims_severity":      Text(claimsSeverity(rec.ClaimsLast24mCnt, rec.ClaimsRatio24m, th)),
		"days_to_expiry":       Num(rec.DaysToExpiry),
		"expiry_bucket":        Text(expiryBucket(rec.DaysToExpiry, th)),
		"requested_change_pct": Num(rec.RequestedChangePct),
		"change_direction":     Text(changeDirection(rec.RequestedChangePct, th)),
	}
}

// Interpolate evaluates the broker score curve at x using monotone
// piecewise-linear interpolation. Below the lowest control point the
// curve holds its first value; above the highest, its last. The curve
// is validated non-empty and strictly increasing in X at reload time.
func Interpolate(curve []domain.CurvePoint, x float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	if x <= curve[0].X {
		return curve[0].Y
	}
	last := curve[len(curve)-1]
	if x >= last.X {
		return last.Y
	}
	for i := 1; i < len(curve); i++ {
		if x <= curve[i].X {
			lo, hi := curve[i-1], curve[i]
			t := (x - lo.X) / (hi.X - lo.X)
			return lo.Y + t*(hi.Y-lo.Y)
		}
	}
	return last.Y
}

func debtorDaysBucket(days float64, th domain.Thresholds) string {
	switch {
	case days <= th.DebtorDaysPromptMax:
		return BucketPrompt
	case days > th.DebtorDaysSlowMin:
		return BucketSlow
	default:
		return BucketStandard
	}
}

func expiryBucket(days float64, th domain.Thresholds) string {
	switch {
	case days <= th.ExpiryUrgentDays:
		return BucketUrgent
	case days <= th.ExpirySoonDays:
		return BucketSoon
	default:
		return BucketLater
	}
}

func utilizationBucket(pct float64, th domain.Thresholds) string {
	switch {
	case pct <= th.UtilizationLowMax:
		return BucketLow
	case pct >= th.UtilizationHighMin:
		return BucketHigh
	default:
		return BucketModerate
	}
}

// claimsSeverity combines frequency and severity: a high claim count is
// severe regardless of ratio, otherwise the ratio decides.
func claimsSeverity(count int, ratio float64, th domain.Thresholds) string {
	if count == 0 && ratio == 0 {
		return SeverityNone
	}
	if count >= th.ClaimsCountSevereMin {
		return SeveritySevere
	}
	switch {
	case ratio >= th.ClaimsRatioElevatedMin:
		return SeverityElevated
	case ratio <= th.ClaimsRatioLowMax:
		return SeverityLow
	default:
		return SeverityModerate
	}
}

func changeDirection(pct float64, th domain.Thresholds) string {
	eps := th.ChangePctEpsilon
	switch {
	case pct > eps:
		return DirectionIncrease
	case pct < -eps:
		return DirectionDecrease
	default:
		return DirectionFlat
	}
}
