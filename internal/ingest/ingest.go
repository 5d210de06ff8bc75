// Package ingest validates and parses inbound submission and policy
// records, from JSON request bodies and CSV uploads alike.
package ingest

import (
	"fmt"
	"strings"

	"github.com/creditx-oss/creditx/internal/domain"
)

// ValidateSubmission checks field ranges on a submission record.
func ValidateSubmission(rec *domain.SubmissionRecord) error {
	if strings.TrimSpace(rec.SubmissionID) == "" {
		return fmt.Errorf("submission_id is required")
	}
	if strings.TrimSpace(rec.Broker) == "" {
		return fmt.Errorf("broker is required")
	}
	if !domain.ValidSector(rec.Sector) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSector, rec.Sector)
	}
	if rec.ExposureLimit < 0 {
		return fmt.Errorf("exposure_limit must be >= 0, got %v", rec.ExposureLimit)
	}
	if rec.DebtorDays < 0 {
		return fmt.Errorf("debtor_days must be >= 0, got %v", rec.DebtorDays)
	}
	if rec.YearsTrading < 0 {
		return fmt.Errorf("years_trading must be >= 0, got %v", rec.YearsTrading)
	}
	if rec.BrokerHitRate < 0 || rec.BrokerHitRate > 1 {
		return fmt.Errorf("broker_hit_rate must be in [0, 1], got %v", rec.BrokerHitRate)
	}
	if rec.RequestedCovPct < 0 || rec.RequestedCovPct > 1 {
		return fmt.Errorf("requested_cov_pct must be in [0, 1], got %v", rec.RequestedCovPct)
	}
	return nil
}

// ValidatePolicy checks field ranges on a policy record.
func ValidatePolicy(rec *domain.PolicyRecord) error {
	if strings.TrimSpace(rec.PolicyID) == "" {
		return fmt.Errorf("policy_id is required")
	}
	if strings.TrimSpace(rec.Broker) == "" {
		return fmt.Errorf("broker is required")
	}
	if !domain.ValidSector(rec.Sector) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSector, rec.Sector)
	}
	if rec.CurrentPremium < 0 {
		return fmt.Errorf("current_premium must be >= 0, got %v", rec.CurrentPremium)
	}
	if rec.Limit < 0 {
		return fmt.Errorf("limit must be >= 0, got %v", rec.Limit)
	}
	if rec.UtilizationPct < 0 || rec.UtilizationPct > 1 {
		return fmt.Errorf("utilization_pct must be in [0, 1], got %v", rec.UtilizationPct)
	}
	if rec.ClaimsLast24mCnt < 0 {
		return fmt.Errorf("claims_last_24m_cnt must be >= 0, got %v", rec.ClaimsLast24mCnt)
	}
	if rec.ClaimsRatio24m < 0 {
		return fmt.Errorf("claims_ratio_24m must be >= 0, got %v", rec.ClaimsRatio24m)
	}
	if rec.DaysToExpiry < 0 {
		return fmt.Errorf("days_to_expiry must be >= 0, got %v", rec.DaysToExpiry)
	}
	return nil
}

// ValidateSubmissions validates a batch, reporting the first failure
// with its index.
func ValidateSubmissions(records []domain.SubmissionRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("at least one submission is required")
	}
	for i := range records {
		if err := ValidateSubmission(&records[i]); err != nil {
			return fmt.Errorf("submission %d: %w", i, err)
		}
	}
	return nil
}

// ValidatePolicies validates a batch, reporting the first failure
// with its index.
func ValidatePolicies(records []domain.PolicyRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("at least one policy is required")
	}
	for i := range records {
		if err := ValidatePolicy(&records[i]); err != nil {
			return fmt.Errorf("policy %d: %w", i, err)
		}
	}
	return nil
}
