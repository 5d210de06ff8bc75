// Package domain defines the core types and interfaces for CreditX.
package domain

// Sector is the fixed industry classification used across submissions
// and policies. Every sector must have a base rate in the active
// weights configuration.
type Sector string

const (
	SectorRetail        Sector = "Retail"
	SectorManufacturing Sector = "Manufacturing"
	SectorLogistics     Sector = "Logistics"
	SectorAgri          Sector = "Agri"
	SectorServices      Sector = "Services"
	SectorOther         Sector = "Other"
)

// Sectors returns all known sectors in declaration order.
func Sectors() []Sector {
	return []Sector{
		SectorRetail,
		SectorManufacturing,
		SectorLogistics,
		SectorAgri,
		SectorServices,
		SectorOther,
	}
}

// ValidSector reports whether s is a member of the sector enumeration.
func ValidSector(s Sector) bool {
	for _, known := range Sectors() {
		if s == known {
			return true
		}
	}
	return false
}

// SubmissionRecord is a new-business credit insurance submission.
// Records are immutable once accepted: the ingestion layer validates
// field ranges before the engine ever sees them.
type SubmissionRecord struct {
	SubmissionID       string  `json:"submission_id"`
	Broker             string  `json:"broker"`
	Sector             Sector  `json:"sector"`
	ExposureLimit      float64 `json:"exposure_limit"`
	DebtorDays         float64 `json:"debtor_days"`
	FinancialsAttached bool    `json:"financials_attached"`
	YearsTrading       float64 `json:"years_trading"`
	BrokerHitRate      float64 `json:"broker_hit_rate"`
	RequestedCovPct    float64 `json:"requested_cov_pct"`
	HasJudgements      bool    `json:"has_judgements"`
}

// PolicyRecord is an in-force policy approaching renewal.
type PolicyRecord struct {
	PolicyID           string  `json:"policy_id"`
	Broker             string  `json:"broker"`
	Sector             Sector  `json:"sector"`
	CurrentPremium     float64 `json:"current_premium"`
	Limit              float64 `json:"limit"`
	UtilizationPct     float64 `json:"utilization_pct"`
	ClaimsLast24mCnt   int     `json:"claims_last_24m_cnt"`
	ClaimsRatio24m     float64 `json:"claims_ratio_24m"`
	DaysToExpiry       float64 `json:"days_to_expiry"`
	RequestedChangePct float64 `json:"requested_change_pct"`
}
