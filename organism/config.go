// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package organism

import (
	"io"

	"github.com/naoina/toml"
)

// LoadConfig decodes an organism Config from r. The config is read once
// per organism creation.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config
	if err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
