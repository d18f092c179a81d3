package config

import (
	"errors"
	"fmt"
	"io"

	"k8s.io/apimachinery/pkg/util/yaml"
)

type fileConfig struct {
	FlashLag   FlashLag   `json:"flashlag"`
	Illusion   Illusion   `json:"illusion"`
	Drawing    Drawing    `json:"drawing"`
	Difficulty Difficulty `json:"difficulty"`
	Throttle   Throttle   `json:"throttle"`
	Store      *Store     `json:"store"`
	Flags      []Flag     `json:"flags"`
}

func (c *fileConfig) Valid() error {
	var errs []error

	for _, v := range []interface{ Valid() error }{
		c.FlashLag,
		c.Illusion,
		c.Drawing,
		c.Difficulty,
		c.Throttle,
	} {
		if err := v.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.FlashLag.Disabled && c.Illusion.Disabled && c.Drawing.Disabled {
		errs = append(errs, ErrNoChallengesEnabled)
	}

	if c.Store != nil {
		if err := c.Store.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	names := map[string]bool{}
	for i, f := range c.Flags {
		if err := f.Valid(); err != nil {
			errs = append(errs, fmt.Errorf("flag %d: %w", i, err))
		}

		if names[f.Name] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateFlag, f.Name))
		}
		names[f.Name] = true
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

// Config is a validated engine policy.
type Config struct {
	FlashLag   FlashLag
	Illusion   Illusion
	Drawing    Drawing
	Difficulty Difficulty
	Throttle   Throttle
	Store      Store
	Flags      []Flag
}

func defaultFileConfig() *fileConfig {
	return &fileConfig{
		FlashLag:   DefaultFlashLag(),
		Illusion:   DefaultIllusion(),
		Drawing:    DefaultDrawing(),
		Difficulty: DefaultDifficulty(),
		Throttle:   DefaultThrottle(),
	}
}

func (c *fileConfig) compile() *Config {
	result := &Config{
		FlashLag:   c.FlashLag,
		Illusion:   c.Illusion,
		Drawing:    c.Drawing,
		Difficulty: c.Difficulty,
		Throttle:   c.Throttle,
		Store:      Store{Backend: DefaultStoreBackend},
		Flags:      c.Flags,
	}

	if c.Store != nil {
		result.Store = *c.Store
	}

	return result
}

// Default returns the built-in policy without reading any file.
func Default() *Config {
	return defaultFileConfig().compile()
}

// Load parses a YAML or JSON policy. Omitted settings keep their defaults.
func Load(fin io.Reader, fname string) (*Config, error) {
	c := defaultFileConfig()

	if err := yaml.NewYAMLToJSONDecoder(fin).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("can't parse policy config YAML %s: %w", fname, err)
	}

	if err := c.Valid(); err != nil {
		return nil, fmt.Errorf("errors validating policy config %s: %w", fname, err)
	}

	return c.compile(), nil
}
