// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package thermo

import "encoding/json"

// firstNumber returns the first of keys present in options, coerced to
// int64. naoina/toml decodes a generic options table into
// map[string]interface{}, and TOML integers surface as int64 or float64
// depending on the decoder path, so both are accepted.
func firstNumber(options map[string]interface{}, keys ...string) (int64, bool) {
	for _, k := range keys {
		v, ok := options[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int64:
			return n, true
		case int:
			return int64(n), true
		case float64:
			return int64(n), true
		}
	}
	return 0, false
}

// decodeOptions re-marshals a generic options table (as produced by
// naoina/toml's map[string]interface{} decode path) into a typed struct via
// a JSON round-trip. No library in this corpus offers a generic
// map-to-struct decoder independent of the source format, so this one glue
// step uses encoding/json rather than a third-party dependency (see
// DESIGN.md); the outer decode of the policy config document itself still
// goes through naoina/toml.
func decodeOptions(options map[string]interface{}, out interface{}) error {
	if options == nil {
		return nil
	}
	buf, err := json.Marshal(options)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}
