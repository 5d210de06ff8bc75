// Package rules evaluates ordered weighted rules against extracted
// feature sets. Rule definitions are compiled and validated once at
// reload time; evaluation itself cannot fail.
package rules

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/creditx-oss/creditx/internal/domain"
	"github.com/creditx-oss/creditx/internal/features"
)

// CompiledRule is one rule ready for evaluation: its definition plus,
// for expression rules, the pre-compiled CEL program.
type CompiledRule struct {
	Def     domain.RuleDef
	Program cel.Program // nil unless Def.Kind is RuleExpression
}

// CompileOptions control rule-list compilation.
type CompileOptions struct {
	// Vocabulary maps known feature names to their kinds.
	Vocabulary map[string]features.Kind

	// Adjustment marks pricing adjustment rules: Bps is the rule
	// contribution and the {bps} reason token is allowed.
	Adjustment bool

	// ListName is used in error messages ("triage_rules" etc.).
	ListName string
}

// Compile validates and compiles an ordered rule list. Any predicate or
// reason template referencing a feature outside the vocabulary is a
// ConfigError here, never a scoring-time failure.
func Compile(defs []domain.RuleDef, opts CompileOptions) ([]CompiledRule, error) {
	env, err := newEnv(opts.Vocabulary)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	seen := make(map[string]bool, len(defs))
	compiled := make([]CompiledRule, 0, len(defs))

	for i, def := range defs {
		field := fmt.Sprintf("%s[%d]", opts.ListName, i)
		if def.ID == "" {
			return nil, domain.NewConfigError(field, "rule id is required")
		}
		if seen[def.ID] {
			return nil, domain.NewConfigError(field, "duplicate rule id %q", def.ID)
		}
		seen[def.ID] = true
		field = fmt.Sprintf("%s[%s]", opts.ListName, def.ID)

		if opts.Adjustment {
			if def.Weight != 0 {
				return nil, domain.NewConfigError(field, "adjustment rules use bps, not weight")
			}
			if def.Bps == 0 {
				return nil, domain.NewConfigError(field, "adjustment bps must be non-zero")
			}
		} else {
			if def.Bps != 0 {
				return nil, domain.NewConfigError(field, "score rules use weight, not bps")
			}
			if def.Weight < -1 || def.Weight > 1 || def.Weight == 0 {
				return nil, domain.NewConfigError(field, "weight %v out of range [-1, 1] or zero", def.Weight)
			}
		}

		cr := CompiledRule{Def: def}
		switch def.Kind {
		case domain.RuleThreshold, domain.RuleCurve:
			if err := checkFeature(opts.Vocabulary, def.Feature, features.Number); err != nil {
				return nil, domain.NewConfigError(field, "%v", err)
			}
			if !validOp(def.Op) {
				return nil, domain.NewConfigError(field, "unknown comparison op %q", def.Op)
			}

		case domain.RuleFlag:
			if err := checkFeature(opts.Vocabulary, def.Feature, features.Flag); err != nil {
				return nil, domain.NewConfigError(field, "%v", err)
			}

		case domain.RuleMembership:
			if err := checkFeature(opts.Vocabulary, def.Feature, features.Label); err != nil {
				return nil, domain.NewConfigError(field, "%v", err)
			}
			if len(def.Values) == 0 {
				return nil, domain.NewConfigError(field, "membership rule needs at least one value")
			}

		case domain.RuleExpression:
			program, err := compileExpression(env, def.Expr)
			if err != nil {
				return nil, domain.NewConfigError(field, "%v", err)
			}
			cr.Program = program

		default:
			return nil, domain.NewConfigError(field, "unknown rule kind %q", def.Kind)
		}

		if err := validateTemplate(def.Reason, opts.Vocabulary, opts.Adjustment); err != nil {
			return nil, domain.NewConfigError(field, "%v", err)
		}

		compiled = append(compiled, cr)
	}

	return compiled, nil
}

// newEnv builds a CEL environment with one typed variable per feature.
func newEnv(vocab map[string]features.Kind) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(vocab))
	for name, kind := range vocab {
		switch kind {
		case features.Number:
			opts = append(opts, cel.Variable(name, cel.DoubleType))
		case features.Flag:
			opts = append(opts, cel.Variable(name, cel.BoolType))
		default:
			opts = append(opts, cel.Variable(name, cel.StringType))
		}
	}
	return cel.NewEnv(opts...)
}

func compileExpression(env *cel.Env, expr string) (cel.Program, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("expression rule needs a non-empty expr")
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	return program, nil
}

func checkFeature(vocab map[string]features.Kind, name string, want features.Kind) error {
	if name == "" {
		return fmt.Errorf("feature is required")
	}
	kind, ok := vocab[name]
	if !ok {
		return fmt.Errorf("unknown feature %q", name)
	}
	if kind != want {
		return fmt.Errorf("feature %q has the wrong kind for this rule", name)
	}
	return nil
}

func validOp(op string) bool {
	switch op {
	case domain.OpGT, domain.OpGTE, domain.OpLT, domain.OpLTE, domain.OpEQ:
		return true
	}
	return false
}

// validateTemplate checks every {token} in a reason template against
// the feature vocabulary. Adjustment templates may also use {bps}.
func validateTemplate(template string, vocab map[string]features.Kind, adjustment bool) error {
	if template == "" {
		return fmt.Errorf("reason template is required")
	}
	for _, token := range templateTokens(template) {
		if token == "bps" {
			if !adjustment {
				return fmt.Errorf("reason token {bps} is only valid in adjustment rules")
			}
			continue
		}
		if _, ok := vocab[token]; !ok {
			return fmt.Errorf("reason template references unknown feature %q", token)
		}
	}
	return nil
}

// templateTokens extracts {name} placeholder tokens in order.
func templateTokens(template string) []string {
	var tokens []string
	for i := 0; i < len(template); i++ {
		if template[i] != '{' {
			continue
		}
		end := strings.IndexByte(template[i:], '}')
		if end < 0 {
			break
		}
		tokens = append(tokens, template[i+1:i+end])
		i += end
	}
	return tokens
}
