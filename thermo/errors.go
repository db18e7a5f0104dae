// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package thermo

import (
	"errors"
	"fmt"
)

// Sentinel causes wrapped by ConfigError: a policy class is unknown or
// cannot be constructed, a required default is absent, or a rule lacks the
// mandatory entropy specification.
var (
	ErrUnknownPolicyClass = errors.New("thermo: unknown policy class")
	ErrMissingDefault     = errors.New("thermo: missing default policy configuration")
	ErrMissingEntropySpec = errors.New("thermo: rule specifies neither entropy nor entropy-permille")
	ErrMissingRule        = errors.New("thermo: no rule resolved for this context")
)

// ConfigError is a load-time, fatal error from LoadPolicyConfig or
// NewManager. It is never returned once a Manager is running; tick-time
// resolution never fails.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("thermo: %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
