// Package features derives secondary signals from validated records.
// Extraction is pure: the same record and snapshot always produce the
// same feature set, and in-range inputs never fail.
package features

import (
	"sort"
	"strconv"

	"github.com/creditx-oss/creditx/internal/domain"
)

// Kind is the type of a feature value.
type Kind int

const (
	// Number is a float64-valued feature.
	Number Kind = iota

	// Flag is a boolean feature.
	Flag

	// Label is a text feature (bucket names, sector).
	Label
)

// Value is one extracted feature value.
type Value struct {
	Kind  Kind
	Num   float64
	Flag  bool
	Label string
}

// Set is a named feature set for a single record.
type Set map[string]Value

// Num builds a numeric feature value.
func Num(v float64) Value { return Value{Kind: Number, Num: v} }

// Bool builds a boolean feature value.
func Bool(v bool) Value { return Value{Kind: Flag, Flag: v} }

// Text builds a text feature value.
func Text(v string) Value { return Value{Kind: Label, Label: v} }

// Format renders a feature value for reason-string interpolation.
func (v Value) Format() string {
	switch v.Kind {
	case Number:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case Flag:
		if v.Flag {
			return "yes"
		}
		return "no"
	default:
		return v.Label
	}
}

// Activation converts the set into CEL activation variables.
func (s Set) Activation() map[string]any {
	out := make(map[string]any, len(s))
	for name, v := range s {
		switch v.Kind {
		case Number:
			out[name] = v.Num
		case Flag:
			out[name] = v.Flag
		default:
			out[name] = v.Label
		}
	}
	return out
}

// Names returns the feature names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SubmissionVocabulary is the fixed feature vocabulary for submission
// records. Rule predicates and reason templates are validated against
// it at reload time, so scoring can never hit an unknown feature.
func SubmissionVocabulary() map[string]Kind {
	return map[string]Kind{
		"broker":              Label,
		"sector":              Label,
		"exposure_limit":      Number,
		"log_exposure":        Number,
		"debtor_days":         Number,
		"debtor_days_bucket":  Label,
		"financials_attached": Flag,
		"years_trading":       Number,
		"broker_hit_rate":     Number,
		"hit_rate_score":      Number,
		"requested_cov_pct":   Number,
		"has_judgements":      Flag,
	}
}

// PolicyVocabulary is the fixed feature vocabulary for policy records.
func PolicyVocabulary() map[string]Kind {
	return map[string]Kind{
		"broker":               Label,
		"sector":               Label,
		"current_premium":      Number,
		"limit":                Number,
		"utilization_pct":      Number,
		"utilization_bucket":   Label,
		"claims_last_24m_cnt":  Number,
		"claims_ratio_24m":     Number,
		"claims_severity":      Label,
		"days_to_expiry":       Number,
		"expiry_bucket":        Label,
		"requested_change_pct": Number,
		"change_direction":     Label,
	}
}

// Vocabulary returns the feature vocabulary for an operation.
func Vocabulary(op domain.Operation) map[string]Kind {
	if op == domain.OpRenewal {
		return PolicyVocabulary()
	}
	return SubmissionVocabulary()
}
