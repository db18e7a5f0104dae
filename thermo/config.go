// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package thermo

import (
	"io"

	"github.com/naoina/toml"
)

// PolicyConfig names a policy class and its options table.
type PolicyConfig struct {
	ClassName string                 `toml:"className"`
	Options   map[string]interface{} `toml:"options"`
}

// OverridesConfig is the optional `overrides` block: instruction-name
// overrides (key may be a comma-separated list) and family overrides (key
// is the family name, standing in for the source's fully-qualified class
// hierarchy walk; see DESIGN.md).
type OverridesConfig struct {
	Instructions map[string]PolicyConfig `toml:"instructions"`
	Families     map[string]PolicyConfig `toml:"families"`
}

// Config is the whole thermodynamics policy tree.
type Config struct {
	Default   PolicyConfig    `toml:"default"`
	Overrides OverridesConfig `toml:"overrides"`
}

// LoadPolicyConfig decodes a Config from r. It does not validate the result;
// NewManager performs the load-time validation (missing default, unknown
// class, missing entropy spec), all of which is fatal.
func LoadPolicyConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, &ConfigError{Op: "decode", Err: err}
	}
	return &cfg, nil
}
