// Package config loads the ledger configuration: a YAML file validated
// against an embedded CUE schema, so malformed or out-of-range values fail
// at load time rather than deep inside an operation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/medicrypt/consentledger/internal/model"
	"github.com/medicrypt/consentledger/internal/store"
)

//go:embed schema.cue
var schemaCUE string

// Config is the ledger configuration.
type Config struct {
	// StorePath is the SQLite database path.
	StorePath string `yaml:"store_path"`
	// DeletionPolicy is "retain" (soft-delete) or "reclaim" (hard-close).
	DeletionPolicy string `yaml:"deletion_policy"`
	// ReregisterPolicy is "disallow" (default; AlreadyExists holds forever
	// after a reclaim close) or "allow".
	ReregisterPolicy string `yaml:"reregister_policy"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		StorePath:        "consentledger.db",
		DeletionPolicy:   string(model.DeletionRetain),
		ReregisterPolicy: string(model.ReregisterDisallow),
	}
}

// Load reads and validates the YAML config at path. Missing fields take
// their defaults before validation.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML config bytes.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate unifies the config with the embedded CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	val := ctx.Encode(map[string]any{
		"store_path":        c.StorePath,
		"deletion_policy":   c.DeletionPolicy,
		"reregister_policy": c.ReregisterPolicy,
	})
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := schema.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// StoreOptions translates the config into store open options.
func (c Config) StoreOptions() ([]store.Option, error) {
	deletion, err := model.ParseDeletionPolicy(c.DeletionPolicy)
	if err != nil {
		return nil, err
	}
	reregister, err := model.ParseReregisterPolicy(c.ReregisterPolicy)
	if err != nil {
		return nil, err
	}
	return []store.Option{
		store.WithDeletionPolicy(deletion),
		store.WithReregisterPolicy(reregister),
	}, nil
}
