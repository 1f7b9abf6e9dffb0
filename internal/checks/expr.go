package checks

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprCheck declares a predicate as a boolean expression over the request
// Context, so operators can ship new checks in the layer registry document
// without a code change.
type ExprCheck struct {
	Domain Domain `json:"domain"`
	Name   string `json:"name"`
	Expr   string `json:"expr"`
}

// RegisterExpr compiles the expression against the Context schema and
// registers the resulting predicate. Compile errors are fatal at load time;
// runtime evaluation errors fail the check's own entry only.
func RegisterExpr(r *Registry, ec ExprCheck) error {
	if ec.Expr == "" {
		return fmt.Errorf("checks: empty expression for %s check %q", ec.Domain, ec.Name)
	}

	program, err := expr.Compile(ec.Expr, expr.Env(Context{}), expr.AsBool())
	if err != nil {
		return fmt.Errorf("checks: compile %s check %q: %w", ec.Domain, ec.Name, err)
	}

	return r.Register(ec.Domain, ec.Name, exprPredicate(ec, program))
}

func exprPredicate(ec ExprCheck, program *vm.Program) Func {
	return func(ctx Context) Result {
		out, err := expr.Run(program, ctx)
		if err != nil {
			return Result{OK: false, Detail: fmt.Sprintf("expression error: %v", err)}
		}
		ok, _ := out.(bool)
		if !ok {
			return Result{OK: false, Detail: fmt.Sprintf("expression %q is false", ec.Expr)}
		}
		return Result{OK: true, Detail: fmt.Sprintf("expression %q holds", ec.Expr)}
	}
}
