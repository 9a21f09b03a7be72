package jurisdiction

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/ableka/lumina/internal/domain"
)

// Compiler compiles jurisdiction screening expressions against a
// fixed CEL environment of transfer variables.
type Compiler struct {
	env *cel.Env
}

// CompiledScreeningRule holds one screening rule with its program.
type CompiledScreeningRule struct {
	Rule    domain.ScreeningRule
	Program cel.Program
}

// ScreeningInput holds the transfer fields visible to screening
// expressions.
type ScreeningInput struct {
	Amount         float64
	Currency       string
	EntityID       string
	CounterpartyID string
	Jurisdiction   string
}

// NewCompiler creates the shared CEL environment.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("entity_id", cel.StringType),
		cel.Variable("counterparty_id", cel.StringType),
		cel.Variable("jurisdiction", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create screening environment: %w", err)
	}
	return &Compiler{env: env}, nil
}

// CompileAll compiles a jurisdiction's screening rules. Expressions
// must evaluate to bool.
func (c *Compiler) CompileAll(rules []domain.ScreeningRule) ([]CompiledScreeningRule, error) {
	compiled := make([]CompiledScreeningRule, 0, len(rules))
	for _, r := range rules {
		ast, issues := c.env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("rule %s: expression must return bool, got %s", r.ID, ast.OutputType())
		}
		prg, err := c.env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		compiled = append(compiled, CompiledScreeningRule{Rule: r, Program: prg})
	}
	return compiled, nil
}

// Evaluate runs the compiled screening rules against a transfer and
// returns the flags and reasons of the rules that fired. An
// expression error fails open for that rule only; screening rules
// refine a verdict, they do not gate it.
func Evaluate(rules []CompiledScreeningRule, input ScreeningInput) ([]domain.Flag, []string) {
	activation := map[string]any{
		"amount":          input.Amount,
		"currency":        input.Currency,
		"entity_id":       input.EntityID,
		"counterparty_id": input.CounterpartyID,
		"jurisdiction":    input.Jurisdiction,
	}

	var flags []domain.Flag
	var reasons []string
	for _, cr := range rules {
		out, _, err := cr.Program.Eval(activation)
		if err != nil {
			continue
		}
		if hit, ok := out.(types.Bool); ok && bool(hit) {
			if cr.Rule.Flag != "" {
				flags = append(flags, cr.Rule.Flag)
			}
			if cr.Rule.Reason != "" {
				reasons = append(reasons, cr.Rule.Reason)
			}
		}
	}
	return flags, reasons
}
