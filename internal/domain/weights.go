package domain

// RuleKind is the tagged variant discriminator for rule definitions.
type RuleKind string

const (
	// RuleThreshold compares a numeric feature against a fixed value.
	RuleThreshold RuleKind = "threshold"

	// RuleFlag fires on a boolean feature (optionally negated).
	RuleFlag RuleKind = "flag"

	// RuleMembership fires when a text feature is in a value set.
	RuleMembership RuleKind = "membership"

	// RuleCurve compares a curve-mapped numeric feature against a value.
	// Identical evaluation to threshold; the separate kind documents that
	// the feature is derived from the broker score curve.
	RuleCurve RuleKind = "curve"

	// RuleExpression evaluates a CEL predicate over the feature set.
	// Compiled and type-checked at reload time.
	RuleExpression RuleKind = "expression"
)

// Comparison operators for threshold and curve rules.
const (
	OpGT  = "gt"
	OpGTE = "gte"
	OpLT  = "lt"
	OpLTE = "lte"
	OpEQ  = "eq"
)

// RuleDef is one named rule in an ordered rule list. Score rules carry
// Weight (signed, score space); pricing adjustment rules carry Bps
// (signed, basis points). The reason template may reference extracted
// features as {name} tokens; adjustment reasons may also use {bps}.
type RuleDef struct {
	ID      string   `yaml:"id" json:"id"`
	Kind    RuleKind `yaml:"kind" json:"kind"`
	Feature string   `yaml:"feature,omitempty" json:"feature,omitempty"`
	Op      string   `yaml:"op,omitempty" json:"op,omitempty"`
	Value   float64  `yaml:"value,omitempty" json:"value,omitempty"`
	Values  []string `yaml:"values,omitempty" json:"values,omitempty"`
	Negate  bool     `yaml:"negate,omitempty" json:"negate,omitempty"`
	Expr    string   `yaml:"expr,omitempty" json:"expr,omitempty"`
	Weight  float64  `yaml:"weight,omitempty" json:"weight,omitempty"`
	Bps     int      `yaml:"bps,omitempty" json:"bps,omitempty"`
	Reason  string   `yaml:"reason" json:"reason"`
}

// Band maps a half-open rate interval [LowerBps, UpperBps) to a risk
// classification. The band table must be contiguous, non-overlapping
// and ordered by ascending lower bound.
type Band struct {
	Code        string `yaml:"code" json:"code"`
	Label       string `yaml:"label" json:"label"`
	Description string `yaml:"description" json:"description"`
	LowerBps    int    `yaml:"lower_bps" json:"lower_bps"`
	UpperBps    int    `yaml:"upper_bps" json:"upper_bps"`
}

// CurvePoint is one control point of the broker score curve.
type CurvePoint struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// PricingBounds clips the suggested rate after all adjustments.
type PricingBounds struct {
	MinRate int `yaml:"min_rate" json:"min_rate"`
	MaxRate int `yaml:"max_rate" json:"max_rate"`
}

// Thresholds hold the cut points used by feature extraction.
type Thresholds struct {
	DebtorDaysPromptMax    float64 `yaml:"debtor_days_prompt_max" json:"debtor_days_prompt_max"`
	DebtorDaysSlowMin      float64 `yaml:"debtor_days_slow_min" json:"debtor_days_slow_min"`
	ExpiryUrgentDays       float64 `yaml:"expiry_urgent_days" json:"expiry_urgent_days"`
	ExpirySoonDays         float64 `yaml:"expiry_soon_days" json:"expiry_soon_days"`
	UtilizationLowMax      float64 `yaml:"utilization_low_max" json:"utilization_low_max"`
	UtilizationHighMin     float64 `yaml:"utilization_high_min" json:"utilization_high_min"`
	ClaimsRatioLowMax      float64 `yaml:"claims_ratio_low_max" json:"claims_ratio_low_max"`
	ClaimsRatioElevatedMin float64 `yaml:"claims_ratio_elevated_min" json:"claims_ratio_elevated_min"`
	ClaimsCountSevereMin   int     `yaml:"claims_count_severe_min" json:"claims_count_severe_min"`
	ChangePctEpsilon       float64 `yaml:"change_pct_epsilon" json:"change_pct_epsilon"`
}

// WeightsConfig is one versioned weights document as loaded from YAML.
// A parsed config is validated and compiled into a weights.Snapshot
// before it can become active; WeightsConfig itself is never mutated
// after loading.
type WeightsConfig struct {
	Version              string             `yaml:"version" json:"version"`
	SectorBaseRates      map[Sector]int     `yaml:"sector_base_rates" json:"sector_base_rates"`
	TriageRules          []RuleDef          `yaml:"triage_rules" json:"triage_rules"`
	RenewalRules         []RuleDef          `yaml:"renewal_rules" json:"renewal_rules"`
	PricingAdjustments   []RuleDef          `yaml:"pricing_adjustments" json:"pricing_adjustments"`
	Bands                []Band             `yaml:"bands" json:"bands"`
	BrokerScoreCurve     []CurvePoint       `yaml:"broker_score_curve" json:"broker_score_curve"`
	PricingBounds        PricingBounds      `yaml:"pricing_bounds" json:"pricing_bounds"`
	Thresholds           Thresholds         `yaml:"thresholds" json:"thresholds"`
	SectorCoverageLimits map[string]float64 `yaml:"sector_coverage_limits" json:"sector_coverage_limits"`
}

// CoverageLimit returns the maximum allowed coverage percentage for a
// sector, falling back to the "default" entry, then to 1.0.
func (c *WeightsConfig) CoverageLimit(sector Sector) float64 {
	if limit, ok := c.SectorCoverageLimits[string(sector)]; ok {
		return limit
	}
	if limit, ok := c.SectorCoverageLimits["default"]; ok {
		return limit
	}
	return 1.0
}
