// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package thermo

import "fmt"

// Constructor builds a fresh, un-initialized Policy instance.
type Constructor func() Policy

var constructors = map[string]Constructor{}

// RegisterConstructor adds name to the policy-class registry. Built-in
// policies call this from their own init().
func RegisterConstructor(name string, ctor Constructor) {
	constructors[name] = ctor
}

func newPolicy(className string) (Policy, error) {
	ctor, ok := constructors[className]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicyClass, className)
	}
	return ctor(), nil
}

func instantiate(pc PolicyConfig) (Policy, error) {
	p, err := newPolicy(pc.ClassName)
	if err != nil {
		return nil, &ConfigError{Op: "instantiate", Err: err}
	}
	if err := p.Initialize(pc.Options); err != nil {
		return nil, &ConfigError{Op: "initialize " + pc.ClassName, Err: err}
	}
	return p, nil
}
