package rules

import (
	"strconv"
	"strings"

	"github.com/creditx-oss/creditx/internal/domain"
	"github.com/creditx-oss/creditx/internal/features"
)

// Score runs an ordered rule list over a feature set. Each firing rule
// adds its signed weight and appends its rendered reason; the final
// score is clamped to [0, 1]. Evaluation order is exactly list order,
// so reasons and importance counts are reproducible.
func Score(rules []CompiledRule, set features.Set) (float64, []string, []string) {
	score := 0.0
	reasons := make([]string, 0, len(rules))
	fired := make([]string, 0, len(rules))

	for i := range rules {
		rule := &rules[i]
		if !Fires(rule, set) {
			continue
		}
		score += rule.Def.Weight
		reasons = append(reasons, RenderReason(rule.Def, set))
		fired = append(fired, rule.Def.ID)
	}

	return clamp01(score), reasons, fired
}

// Fires evaluates a single compiled rule predicate. Predicates were
// validated against the feature vocabulary at reload time, so a missing
// feature here is impossible for a snapshot that passed validation; the
// rule simply does not fire.
func Fires(rule *CompiledRule, set features.Set) bool {
	def := &rule.Def

	switch def.Kind {
	case domain.RuleThreshold, domain.RuleCurve:
		v, ok := set[def.Feature]
		if !ok || v.Kind != features.Number {
			return false
		}
		return compare(v.Num, def.Op, def.Value)

	case domain.RuleFlag:
		v, ok := set[def.Feature]
		if !ok || v.Kind != features.Flag {
			return false
		}
		return v.Flag != def.Negate

	case domain.RuleMembership:
		v, ok := set[def.Feature]
		if !ok || v.Kind != features.Label {
			return false
		}
		for _, member := range def.Values {
			if v.Label == member {
				return !def.Negate
			}
		}
		return def.Negate

	case domain.RuleExpression:
		if rule.Program == nil {
			return false
		}
		out, _, err := rule.Program.Eval(set.Activation())
		if err != nil {
			return false
		}
		fired, ok := out.Value().(bool)
		return ok && fired
	}

	return false
}

func compare(v float64, op string, threshold float64) bool {
	switch op {
	case domain.OpGT:
		return v > threshold
	case domain.OpGTE:
		return v >= threshold
	case domain.OpLT:
		return v < threshold
	case domain.OpLTE:
		return v <= threshold
	case domain.OpEQ:
		return v == threshold
	}
	return false
}

// RenderReason substitutes {feature} tokens with formatted feature
// values and {bps} with the rule's signed adjustment. Tokens were bound
// at reload time; an unresolvable token renders empty rather than
// failing.
func RenderReason(def domain.RuleDef, set features.Set) string {
	var b strings.Builder
	template := def.Reason

	for i := 0; i < len(template); i++ {
		if template[i] != '{' {
			b.WriteByte(template[i])
			continue
		}
		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			b.WriteString(template[i:])
			break
		}
		token := template[i+1 : i+end]
		if token == "bps" {
			b.WriteString(formatBps(def.Bps))
		} else if v, ok := set[token]; ok {
			b.WriteString(v.Format())
		}
		i += end
	}

	return b.String()
}

func formatBps(bps int) string {
	if bps >= 0 {
		return "+" + strconv.Itoa(bps)
	}
	return strconv.Itoa(bps)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
