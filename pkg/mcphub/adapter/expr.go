package adapter

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Expr is a compiled CEL program over a response's decoded JSON body,
// exposed as `status` (HTTP status code) and `body` (the decoded body,
// dynamically typed). It stands in for `successCondition` and
// `response.jsonata` fields: the retrieved corpus carries no JSONata
// implementation, so CEL is the substitute expression engine for both,
// wire-compatible under the same field names.
type Expr struct {
	program cel.Program
}

func compileEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("status", cel.IntType),
		cel.Variable("body", cel.DynType),
	)
}

// Compile builds an Expr from a CEL source expression.
func Compile(source string) (*Expr, error) {
	env, err := compileEnv()
	if err != nil {
		return nil, fmt.Errorf("build CEL environment: %w", err)
	}
	ast, issues := env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build CEL program: %w", err)
	}
	return &Expr{program: prg}, nil
}

// EvalBool evaluates the expression and coerces the result to bool, used for
// successCondition.
func (e *Expr) EvalBool(status int, body any) (bool, error) {
	out, _, err := e.program.Eval(map[string]any{"status": status, "body": body})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to a boolean")
	}
	return b, nil
}

// EvalValue evaluates the expression and returns its native Go value, used
// for the jsonata-substitute post-response transform.
func (e *Expr) EvalValue(status int, body any) (any, error) {
	out, _, err := e.program.Eval(map[string]any{"status": status, "body": body})
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

// defaultSuccessCondition is used when a tool sets no successCondition:
// HTTP 2xx.
func defaultSuccessCondition(status int) bool {
	return status >= 200 && status < 300
}
