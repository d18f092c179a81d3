package expressions

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// NewFlagEnvironment creates the CEL environment that advisory flag rules
// are compiled against. Declaring every variable up front lets a bad rule
// fail when the policy is loaded instead of on the first validation.
func NewFlagEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(
			ext.StringsLocale("en_US"),
			ext.StringsValidateFormatCalls(true),
		),

		cel.DefaultUTCTimeZone(true),

		// Facts about the validation being flagged:
		cel.Variable("score", cel.IntType),
		cel.Variable("difficulty", cel.IntType),
		cel.Variable("responseTimeMs", cel.IntType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("attempts", cel.IntType),
		cel.Variable("successes", cel.IntType),
		cel.Variable("passed", cel.BoolType),
		cel.Variable("matchScore", cel.DoubleType),

		// Host state:
		cel.Variable("load1m", cel.DoubleType),
	)
}

// Compile takes CEL environment and syntax tree then emits an optimized
// Program for execution.
func Compile(env *cel.Env, ast *cel.Ast) (cel.Program, error) {
	return env.Program(
		ast,
		cel.EvalOptions(
			cel.OptOptimize,
		),
	)
}
