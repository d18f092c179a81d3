package config

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrFlagMustHaveName       = errors.New("config.Flag: must set name")
	ErrFlagInvalidName        = errors.New("config.Flag: name must be lowercase letters, digits, dashes or underscores")
	ErrFlagMustHaveExpression = errors.New("config.Flag: must set expression")
	ErrDuplicateFlag          = errors.New("config: duplicate flag name")

	flagNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

// Flag is an advisory label attached to a validation result whenever its
// expression evaluates to true.
type Flag struct {
	Name       string            `json:"name" yaml:"name"`
	Expression *ExpressionOrList `json:"expression" yaml:"expression"`
}

func (f Flag) Valid() error {
	var errs []error

	if len(f.Name) == 0 {
		errs = append(errs, ErrFlagMustHaveName)
	} else if !flagNameRe.MatchString(f.Name) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrFlagInvalidName, f.Name))
	}

	if f.Expression == nil {
		errs = append(errs, ErrFlagMustHaveExpression)
	}

	if f.Expression != nil {
		if err := f.Expression.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: flag entry for %q is not valid:\n%w", f.Name, errors.Join(errs...))
	}

	return nil
}
