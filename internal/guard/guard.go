// Package guard compiles CEL expressions that vet request parameters before
// a hook runs, so missing or malformed inputs surface as validation errors
// instead of wasted platform calls.
package guard

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/jmv4/ghlkit/internal/query"
)

// Guard is one compiled parameter check. Expressions see a single `params`
// map of string to string and must yield a boolean.
type Guard struct {
	source  string
	program cel.Program
}

// New compiles the expression, rejecting anything that does not evaluate to
// a boolean.
func New(expression string) (*Guard, error) {
	env, err := cel.NewEnv(
		cel.Variable("params", cel.MapType(cel.StringType, cel.StringType)),
		cel.HomogeneousAggregateLiterals(),
	)
	if err != nil {
		return nil, fmt.Errorf("guard: build environment: %w", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("guard: compile %q: %w", expression, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("guard: expression %q must yield a boolean", expression)
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("guard: program %q: %w", expression, err)
	}
	return &Guard{source: expression, program: program}, nil
}

// Check evaluates the guard against the request parameters. A rejection or
// evaluation failure comes back as a validation-kind error the caller can
// map straight to a 400.
func (g *Guard) Check(params map[string]string) error {
	if params == nil {
		params = map[string]string{}
	}
	val, _, err := g.program.Eval(map[string]any{"params": params})
	if err != nil {
		return query.Validationf("guard: eval %q: %v", g.source, err)
	}
	b, ok := val.(types.Bool)
	if !ok {
		return query.Validationf("guard: expression %q yielded %v", g.source, val.Type())
	}
	if !bool(b) {
		return query.Validationf("invalid parameters: %s", g.source)
	}
	return nil
}
