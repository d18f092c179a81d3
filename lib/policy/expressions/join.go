package expressions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

var (
	ErrWrongJoinOperator = errors.New("expressions: invalid join operator")
	ErrNoExpressions     = errors.New("expressions: cannot join zero expressions")
	ErrCantCompile       = errors.New("expressions: can't compile one expression")
	ErrClauseNotBool     = errors.New("expressions: clause does not evaluate to a bool")
)

// JoinOperator combines the clauses of an all/any flag expression.
type JoinOperator string

const (
	JoinAnd JoinOperator = "&&"
	JoinOr  JoinOperator = "||"
)

func (jo JoinOperator) Valid() error {
	if jo != JoinAnd && jo != JoinOr {
		return ErrWrongJoinOperator
	}
	return nil
}

// Join checks every clause on its own, then compiles them as one
// expression. Each clause is parenthesised so that
//
//	kind == "flashlag" || kind == "illusion"
//	attempts > 10
//
// joined with JoinAnd keeps its meaning:
//
//	(kind == "flashlag" || kind == "illusion") && attempts > 10
//
// All clause errors are reported together.
func Join(env *cel.Env, operator JoinOperator, clauses ...string) (*cel.Ast, error) {
	if err := operator.Valid(); err != nil {
		return nil, fmt.Errorf("%w: wanted && or ||, got: %q", err, operator)
	}

	if len(clauses) == 0 {
		return nil, ErrNoExpressions
	}

	var single *cel.Ast
	var errs []error
	wrapped := make([]string, 0, len(clauses))

	for _, clause := range clauses {
		ast, iss := env.Compile(clause)
		if iss != nil && iss.Err() != nil {
			errs = append(errs, fmt.Errorf("%w: %q gave: %w", ErrCantCompile, clause, iss.Err()))
			continue
		}

		if !ast.OutputType().IsExactType(cel.BoolType) {
			errs = append(errs, fmt.Errorf("%w: %q is %s", ErrClauseNotBool, clause, ast.OutputType()))
			continue
		}

		single = ast
		wrapped = append(wrapped, "("+clause+")")
	}

	if len(errs) != 0 {
		return nil, fmt.Errorf("errors while joining clauses: %w", errors.Join(errs...))
	}

	if len(clauses) == 1 {
		return single, nil
	}

	result, iss := env.Compile(strings.Join(wrapped, " "+string(operator)+" "))
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: joined clauses: %w", ErrCantCompile, iss.Err())
	}

	return result, nil
}
