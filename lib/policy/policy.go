// Package policy turns a validated engine policy into its runtime form:
// the decoded configuration plus compiled advisory flag programs.
package policy

import (
	"errors"
	"fmt"
	"io"

	"github.com/TecharoHQ/glimpse/internal"
	"github.com/TecharoHQ/glimpse/lib/policy/config"
	"github.com/TecharoHQ/glimpse/lib/policy/expressions"
	"github.com/google/cel-go/cel"
)

// ParsedConfig is a loaded policy ready for use by the engine.
type ParsedConfig struct {
	orig *config.Config

	Flags []*Flag
}

// Config returns the validated configuration the policy was built from.
func (pc *ParsedConfig) Config() *config.Config {
	return pc.orig
}

// NewParsedConfig compiles the flag rules of an already validated config.
func NewParsedConfig(orig *config.Config) (*ParsedConfig, error) {
	env, err := expressions.NewFlagEnvironment()
	if err != nil {
		return nil, fmt.Errorf("can't build flag environment: %w", err)
	}

	result := &ParsedConfig{
		orig: orig,
	}

	var errs []error
	for _, f := range orig.Flags {
		flag, err := compileFlag(env, f)
		if err != nil {
			errs = append(errs, fmt.Errorf("while processing flag %s: %w", f.Name, err))
			continue
		}

		result.Flags = append(result.Flags, flag)
	}

	if len(errs) != 0 {
		return nil, errors.Join(errs...)
	}

	return result, nil
}

// ParseConfig loads a policy document and compiles it.
func ParseConfig(fin io.Reader, fname string) (*ParsedConfig, error) {
	c, err := config.Load(fin, fname)
	if err != nil {
		return nil, err
	}

	result, err := NewParsedConfig(c)
	if err != nil {
		return nil, fmt.Errorf("errors compiling policy config %s: %w", fname, err)
	}

	return result, nil
}

func compileFlag(env *cel.Env, f config.Flag) (*Flag, error) {
	var ast *cel.Ast
	var err error

	switch {
	case f.Expression.Expression != "":
		var iss *cel.Issues
		ast, iss = env.Compile(f.Expression.Expression)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("%w: %w", expressions.ErrCantCompile, iss.Err())
		}
	case len(f.Expression.All) != 0:
		ast, err = expressions.Join(env, expressions.JoinAnd, f.Expression.All...)
	case len(f.Expression.Any) != 0:
		ast, err = expressions.Join(env, expressions.JoinOr, f.Expression.Any...)
	}
	if err != nil {
		return nil, err
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %q", ErrFlagNotBool, f.Expression.String())
	}

	program, err := expressions.Compile(env, ast)
	if err != nil {
		return nil, fmt.Errorf("can't compile CEL program: %w", err)
	}

	return &Flag{
		Name:    f.Name,
		src:     f.Expression.String(),
		program: program,
	}, nil
}

// Hash identifies the set of flag rules, so logs can tell policy revisions
// apart.
func (pc *ParsedConfig) Hash() string {
	var src string
	for _, f := range pc.Flags {
		src += f.Name + "=" + f.src + "\n"
	}

	return internal.FastHash(src)
}
