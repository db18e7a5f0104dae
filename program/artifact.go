// Copyright 2024 The Evochora Authors
// This file is part of Evochora.
//
// Evochora is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package program holds the compiler frontend's output artifact: the
// placeable opcode layout and label/debug metadata the runtime bootstraps
// organisms from. The frontend itself (parsing EvoASM source into this
// artifact) is out of scope here; only the shape the runtime consumes is
// defined.
package program

import (
	"github.com/evochora/evochora-sub011/environment"
	"github.com/evochora/evochora-sub011/molecule"
)

// DebugInfo is whatever source-level metadata the compiler frontend chose to
// retain for later inspection (e.g. by a persistence/analytics pipeline,
// out of this core's scope). The core never interprets it.
type DebugInfo struct {
	SourceFile     string
	SourceForCoord map[int64]int // flat index -> originating source line
}

// Artifact is the compiler frontend's placeable output: a sparse layout of
// molecules keyed by flat index, a map of label names to their compiled
// value (for display, not for the core's own jump resolution; that goes
// through labelindex.Index at runtime), and debug metadata.
type Artifact struct {
	Layout map[int64]molecule.Molecule
	Labels map[string]int64
	Debug  DebugInfo
}

// New builds an Artifact from its three components. Ownership of layout and
// labels passes to the Artifact; callers should not mutate them afterward.
func New(layout map[int64]molecule.Molecule, labels map[string]int64, debug DebugInfo) *Artifact {
	return &Artifact{Layout: layout, Labels: labels, Debug: debug}
}

// Place writes every molecule in the artifact's layout into env, assigning
// owner to each written cell (owner 0 leaves cells unowned, e.g. shared
// STRUCTURE scaffolding). Placing molecules during bootstrap is the
// runtime's only use of the layout.
func (a *Artifact) Place(env *environment.Environment, owner int64) {
	for flat, mol := range a.Layout {
		env.SetMoleculeByIndex(flat, mol)
		if owner != 0 {
			env.SetOwner(flat, owner)
		}
	}
}
