package bbolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/TecharoHQ/glimpse/lib/store"
	"go.etcd.io/bbolt"
)

var (
	ErrMissingPath     = errors.New("bbolt: path is missing from config")
	ErrCantWriteToPath = errors.New("bbolt: can't write to path")
)

func init() {
	store.Register("bbolt", Factory{})
}

// Factory builds bbolt-backed stores from a json.RawMessage configuration.
type Factory struct{}

func parseConfig(data json.RawMessage) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	if err := config.Valid(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	return config, nil
}

// Build opens the database at the configured path and starts the expiry
// sweeper, which stops when ctx is cancelled.
func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	config, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	bdb, err := bbolt.Open(config.Path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("can't open bbolt database %s: %w", config.Path, err)
	}

	result := &Store{
		bdb: bdb,
	}

	go result.cleanupThread(ctx)

	return result, nil
}

// Valid checks a configuration without opening the database.
func (Factory) Valid(data json.RawMessage) error {
	_, err := parseConfig(data)
	return err
}

// Config is the bbolt storage backend configuration.
type Config struct {
	// Path is the filesystem path of the database. Its folder must be writable
	// by the Glimpse process.
	Path string `json:"path"`
}

// Valid checks that a path is set and that its folder accepts writes.
func (c Config) Valid() error {
	if c.Path == "" {
		return ErrMissingPath
	}

	probe := filepath.Join(filepath.Dir(c.Path), ".glimpse-write-probe")
	defer os.Remove(probe)

	if err := os.WriteFile(probe, nil, 0600); err != nil {
		return fmt.Errorf("%w: %w", ErrCantWriteToPath, err)
	}

	return nil
}
