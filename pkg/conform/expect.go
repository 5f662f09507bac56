package conform

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// costLimit bounds a single expectation. Expectations are small boolean
// checks; anything larger is a broken vector.
const costLimit = 10_000

// Expectations compiles and evaluates vector expectations. Variables:
// allowed (bool), code (int), reason (string), checks (map of rule to pass).
type Expectations struct {
	env   *cel.Env
	cache map[string]cel.Program
	mu    sync.RWMutex
}

func NewExpectations() (*Expectations, error) {
	env, err := cel.NewEnv(
		cel.Variable("allowed", cel.BoolType),
		cel.Variable("code", cel.IntType),
		cel.Variable("reason", cel.StringType),
		cel.Variable("checks", cel.MapType(cel.StringType, cel.BoolType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Expectations{env: env, cache: make(map[string]cel.Program)}, nil
}

// Outcome is what a vector's expectation is evaluated against.
type Outcome struct {
	Allowed bool
	Code    int8
	Reason  string
	Checks  map[string]bool
}

// Compile checks that expression is a boolean CEL expression and caches it.
func (e *Expectations) Compile(expression string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.cache[expression]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.cache[expression]; hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expectation must be boolean, got %s", ast.OutputType())
	}
	prg, err := e.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("CEL program error: %w", err)
	}
	e.cache[expression] = prg
	return prg, nil
}

// Evaluate reports whether outcome satisfies expression.
func (e *Expectations) Evaluate(expression string, outcome Outcome) (bool, error) {
	prg, err := e.Compile(expression)
	if err != nil {
		return false, err
	}

	checks := outcome.Checks
	if checks == nil {
		checks = map[string]bool{}
	}
	out, _, err := prg.Eval(map[string]any{
		"allowed": outcome.Allowed,
		"code":    int64(outcome.Code),
		"reason":  outcome.Reason,
		"checks":  checks,
	})
	if err != nil {
		return false, fmt.Errorf("CEL eval error: %w", err)
	}

	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("result not boolean")
	}
	return ok, nil
}
