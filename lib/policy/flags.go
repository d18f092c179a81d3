package policy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/TecharoHQ/glimpse/lib/policy/expressions"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// ErrFlagNotBool is returned when a flag expression doesn't evaluate to a
// boolean.
var ErrFlagNotBool = errors.New("policy: flag expression must return a bool")

// Flag is a compiled advisory rule.
type Flag struct {
	Name    string
	src     string
	program cel.Program
}

// FlagInput holds the facts about one validation that flag rules can
// inspect.
type FlagInput struct {
	Score          int
	Difficulty     int
	ResponseTimeMs int64
	Kind           string
	Attempts       int
	Successes      int
	Passed         bool
	MatchScore     float64
}

// Parent is part of cel.Activation.
func (fi *FlagInput) Parent() cel.Activation { return nil }

// ResolveName is part of cel.Activation.
func (fi *FlagInput) ResolveName(name string) (any, bool) {
	switch name {
	case "score":
		return int64(fi.Score), true
	case "difficulty":
		return int64(fi.Difficulty), true
	case "responseTimeMs":
		return fi.ResponseTimeMs, true
	case "kind":
		return fi.Kind, true
	case "attempts":
		return int64(fi.Attempts), true
	case "successes":
		return int64(fi.Successes), true
	case "passed":
		return fi.Passed, true
	case "matchScore":
		return fi.MatchScore, true
	case "load1m":
		return expressions.Load1(), true
	default:
		return nil, false
	}
}

// Matches reports whether the rule holds for in.
func (f *Flag) Matches(ctx context.Context, in *FlagInput) (bool, error) {
	result, _, err := f.program.ContextEval(ctx, in)
	if err != nil {
		return false, err
	}

	if val, ok := result.(types.Bool); ok {
		return bool(val), nil
	}

	return false, nil
}

// Evaluate returns the names of every flag that matches in, in policy
// order. A rule that errors at runtime is logged and treated as not
// matching.
func (pc *ParsedConfig) Evaluate(ctx context.Context, lg *slog.Logger, in *FlagInput) []string {
	var result []string

	for _, f := range pc.Flags {
		ok, err := f.Matches(ctx, in)
		if err != nil {
			lg.Warn("flag evaluation failed", "flag", f.Name, "err", err)
			continue
		}

		if ok {
			result = append(result, f.Name)
		}
	}

	return result
}
