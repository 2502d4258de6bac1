// Package config loads the toolkit's tunables: the felt_overflow
// detector's sanitizer libfunc set and the symbolic executor's loop
// bound K, both resolving spec.md §9's Open Questions. Grounded on the
// example pack's gopkg.in/yaml.v3 configuration-loading convention.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the user-overridable analysis configuration.
type Config struct {
	// Sanitizers lists the libfunc base names treated as range-checks:
	// felt_overflow does not flag an arithmetic op whose tainted operand
	// passes through one of these before reaching the unconstrained use.
	Sanitizers []string `yaml:"sanitizers"`

	// SymbolicLoopBound is K from spec.md §4.7.
	SymbolicLoopBound int `yaml:"symbolic_loop_bound"`
}

// defaultSanitizers resolves the felt_overflow Open Question: these are
// the libfuncs whose presence on a def-use chain is taken as evidence
// the value has already been range-checked.
var defaultSanitizers = []string{
	"u128_checked_add",
	"u128_checked_sub",
	"u128_checked_mul",
	"u128s_from_felt252",
	"range_check",
	"bounded_int_constrain",
}

// Default returns the built-in configuration used when no file is
// supplied.
func Default() Config {
	return Config{
		Sanitizers:        append([]string(nil), defaultSanitizers...),
		SymbolicLoopBound: 3,
	}
}

// Load reads and merges a YAML config file over Default(); a missing
// or empty Sanitizers/SymbolicLoopBound field keeps the default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Config{}, err
	}
	if len(overlay.Sanitizers) > 0 {
		cfg.Sanitizers = overlay.Sanitizers
	}
	if overlay.SymbolicLoopBound > 0 {
		cfg.SymbolicLoopBound = overlay.SymbolicLoopBound
	}
	return cfg, nil
}

// SanitizerSet returns Sanitizers as a lookup set.
func (c Config) SanitizerSet() map[string]bool {
	set := make(map[string]bool, len(c.Sanitizers))
	for _, s := range c.Sanitizers {
		set[s] = true
	}
	return set
}
