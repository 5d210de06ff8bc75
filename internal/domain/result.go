package domain

import "time"

// Operation selects which engine a batch runs through.
type Operation string

const (
	OpTriage  Operation = "triage"
	OpRenewal Operation = "renewal"
	OpPricing Operation = "pricing"
)

// ScoreResult is the outcome of scoring one record.
// Reasons preserve rule evaluation order. Fired holds the IDs of the
// rules that contributed, in the same order; it feeds the batch
// feature-importance tally and is not part of the response body.
type ScoreResult struct {
	ID      string   `json:"id"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
	Fired   []string `json:"-"`
}

// PriceSuggestion is the outcome of pricing one submission. Rates are
// indicative only; the underwriter always has the final say.
type PriceSuggestion struct {
	ID               string   `json:"id"`
	BandCode         string   `json:"band_code"`
	BandLabel        string   `json:"band_label"`
	BandDescription  string   `json:"band_description"`
	BaseRateBps      int      `json:"base_rate_bps"`
	SuggestedRateBps int      `json:"suggested_rate_bps"`
	Adjustments      []string `json:"adjustments"`
	Fired            []string `json:"-"`
}

// RecordFailure reports a single record that could not be scored.
// Failures never abort the batch.
type RecordFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchResult is the wrapped batch response. Exactly one of Scores or
// Suggestions is populated depending on the operation. All records in
// one batch are evaluated against the same weights snapshot.
type BatchResult struct {
	Scores            []ScoreResult     `json:"scores,omitempty"`
	Suggestions       []PriceSuggestion `json:"suggestions,omitempty"`
	Failures          []RecordFailure   `json:"failures,omitempty"`
	FeatureImportance map[string]int    `json:"feature_importance"`
	WeightsVersion    string            `json:"weights_version"`
}

// SnapshotDescriptor identifies the active weights snapshot.
type SnapshotDescriptor struct {
	Version  string    `json:"version"`
	LoadedAt time.Time `json:"loaded_at"`
}
