package weights

import (
	"strings"

	"github.com/creditx-oss/creditx/internal/domain"
)

// Validate checks the structural and logical invariants of a parsed
// weights config. Rule predicates and reason templates are validated
// separately during compilation.
func Validate(cfg *domain.WeightsConfig) error {
	if strings.TrimSpace(cfg.Version) == "" {
		return domain.NewConfigError("version", "must be a non-empty string")
	}

	if err := validateBaseRates(cfg); err != nil {
		return err
	}
	if err := validateBands(cfg.Bands); err != nil {
		return err
	}
	if err := validateCurve(cfg.BrokerScoreCurve); err != nil {
		return err
	}
	if err := validateBounds(cfg.PricingBounds); err != nil {
		return err
	}
	if err := validateThresholds(cfg.Thresholds); err != nil {
		return err
	}

	for sector, limit := range cfg.SectorCoverageLimits {
		if limit <= 0 || limit > 1 {
			return domain.NewConfigError("sector_coverage_limits", "limit for %q must be in (0, 1], got %v", sector, limit)
		}
	}

	return nil
}

func validateBaseRates(cfg *domain.WeightsConfig) error {
	if len(cfg.SectorBaseRates) == 0 {
		return domain.NewConfigError("sector_base_rates", "at least one sector base rate is required")
	}
	for _, sector := range domain.Sectors() {
		rate, ok := cfg.SectorBaseRates[sector]
		if !ok {
			return domain.NewConfigError("sector_base_rates", "missing required sector %q", sector)
		}
		if rate <= 0 {
			return domain.NewConfigError("sector_base_rates", "rate for %q must be positive, got %d", sector, rate)
		}
	}
	return nil
}

// validateBands requires a contiguous, non-overlapping, ascending band
// table so every rate maps to exactly one band after clamping.
func validateBands(bands []domain.Band) error {
	if len(bands) == 0 {
		return domain.NewConfigError("bands", "band table must not be empty")
	}

	codes := make(map[string]bool, len(bands))
	for i, band := range bands {
		if band.Code == "" {
			return domain.NewConfigError("bands", "band %d has no code", i)
		}
		if codes[band.Code] {
			return domain.NewConfigError("bands", "duplicate band code %q", band.Code)
		}
		codes[band.Code] = true

		if band.LowerBps >= band.UpperBps {
			return domain.NewConfigError("bands", "band %q: lower %d must be below upper %d", band.Code, band.LowerBps, band.UpperBps)
		}
		if i > 0 && band.LowerBps != bands[i-1].UpperBps {
			return domain.NewConfigError("bands", "band %q: lower %d does not continue from previous upper %d", band.Code, band.LowerBps, bands[i-1].UpperBps)
		}
	}

	return nil
}

func validateCurve(curve []domain.CurvePoint) error {
	if len(curve) == 0 {
		return domain.NewConfigError("broker_score_curve", "at least one control point is required")
	}
	for i, pt := range curve {
		if pt.Y < 0 || pt.Y > 1 {
			return domain.NewConfigError("broker_score_curve", "point %d: y %v out of range [0, 1]", i, pt.Y)
		}
		if i > 0 && pt.X <= curve[i-1].X {
			return domain.NewConfigError("broker_score_curve", "point %d: x values must be strictly increasing", i)
		}
	}
	return nil
}

func validateBounds(b domain.PricingBounds) error {
	if b.MinRate == 0 && b.MaxRate == 0 {
		// Bounds are optional; zero values disable clipping.
		return nil
	}
	if b.MinRate < 0 || b.MaxRate <= b.MinRate {
		return domain.NewConfigError("pricing_bounds", "require 0 <= min_rate < max_rate, got [%d, %d]", b.MinRate, b.MaxRate)
	}
	return nil
}

func validateThresholds(t domain.Thresholds) error {
	if t.DebtorDaysPromptMax > t.DebtorDaysSlowMin {
		return domain.NewConfigError("thresholds", "debtor_days_prompt_max must not exceed debtor_days_slow_min")
	}
	if t.ExpiryUrgentDays > t.ExpirySoonDays {
		return domain.NewConfigError("thresholds", "expiry_urgent_days must not exceed expiry_soon_days")
	}
	if t.UtilizationLowMax >= t.UtilizationHighMin {
		return domain.NewConfigError("thresholds", "utilization_low_max must be below utilization_high_min")
	}
	if t.ClaimsRatioLowMax >= t.ClaimsRatioElevatedMin {
		return domain.NewConfigError("thresholds", "claims_ratio_low_max must be below claims_ratio_elevated_min")
	}
	if t.ClaimsCountSevereMin < 1 {
		return domain.NewConfigError("thresholds", "claims_count_severe_min must be at least 1")
	}
	if t.ChangePctEpsilon < 0 {
		return domain.NewConfigError("thresholds", "change_pct_epsilon must not be negative")
	}
	return nil
}
