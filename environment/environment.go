// Copyright 2024 The Evochora Authors
// This file is part of Evochora.
//
// Evochora is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package environment implements the dense, toroidal world grid: packed
// molecule storage, per-cell ownership, and the per-owner inverted index of
// owned flat indices consumed by birth handlers.
package environment

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/molecule"
)

// ChangeObserver receives a notification for every write or ownership change
// that touches a LABEL molecule. The label index is the only implementer in
// this codebase, but the interface keeps Environment decoupled from it.
type ChangeObserver interface {
	OnLabelChange(flatIndex int64, oldWord, newWord molecule.Molecule, owner int64)
	OnOwnerChange(flatIndex int64, newOwner int64, marker uint8)
}

// noopObserver discards every notification; used before SetObserver is
// called so Environment never needs a nil check on the hot path.
type noopObserver struct{}

func (noopObserver) OnLabelChange(int64, molecule.Molecule, molecule.Molecule, int64) {}
func (noopObserver) OnOwnerChange(int64, int64, uint8)                                {}

// Environment is the toroidal world grid.
type Environment struct {
	shape   coord.Shape
	strides coord.Strides

	cells  []molecule.Molecule
	owners []int64

	// owned maps ownerId -> set of flat indices it owns. 0 (unowned) is
	// never tracked here.
	owned map[int64]mapset.Set

	observer ChangeObserver
}

// New allocates an empty Environment with the given shape. Every cell starts
// as the zero Molecule with owner 0.
func New(shape coord.Shape) *Environment {
	size := coord.Size(shape)
	return &Environment{
		shape:    shape,
		strides:  coord.NewStrides(shape),
		cells:    make([]molecule.Molecule, size),
		owners:   make([]int64, size),
		owned:    make(map[int64]mapset.Set),
		observer: noopObserver{},
	}
}

// SetObserver installs the label index (or any ChangeObserver) as the sink
// for label-relevant mutations. Must be called before bootstrap writes if
// the label index is to see the initial program layout.
func (e *Environment) SetObserver(o ChangeObserver) {
	if o == nil {
		o = noopObserver{}
	}
	e.observer = o
}

// Shape returns the environment's extent.
func (e *Environment) Shape() coord.Shape { return e.shape }

// Reduce reduces v modulo the environment's shape.
func (e *Environment) Reduce(v coord.Vector) coord.Vector {
	return coord.Reduce(v, e.shape)
}

// FlatIndex computes the flat index of an already-reduced coordinate.
func (e *Environment) FlatIndex(v coord.Vector) int64 {
	return coord.FlatIndex(v, e.strides)
}

// CoordOf recovers the coordinate for a flat index.
func (e *Environment) CoordOf(flat int64) coord.Vector {
	return coord.FromFlatIndex(flat, e.shape, e.strides)
}

// GetMolecule returns the molecule at coord (reduced modulo shape first).
func (e *Environment) GetMolecule(c coord.Vector) molecule.Molecule {
	return e.cells[e.FlatIndex(e.Reduce(c))]
}

// GetMoleculeInt returns the molecule at a flat index directly.
func (e *Environment) GetMoleculeInt(flatIndex int64) molecule.Molecule {
	return e.cells[flatIndex]
}

// GetOwnerId returns the owner of the cell at coord (0 = unowned).
func (e *Environment) GetOwnerId(c coord.Vector) int64 {
	return e.owners[e.FlatIndex(e.Reduce(c))]
}

// GetOwnerIdInt returns the owner of the cell at a flat index directly.
func (e *Environment) GetOwnerIdInt(flatIndex int64) int64 {
	return e.owners[flatIndex]
}

// SetMolecule writes mol at coord. If the old or new molecule is a LABEL,
// the label index is notified with (flatIndex, oldWord, newWord, owner).
func (e *Environment) SetMolecule(mol molecule.Molecule, c coord.Vector) {
	e.SetMoleculeByIndex(e.FlatIndex(e.Reduce(c)), mol)
}

// SetMoleculeByIndex is SetMolecule addressed by flat index directly; used
// by bootstrap (placing a program.Artifact's layout) and by instruction
// bodies that already resolved a target flat index.
func (e *Environment) SetMoleculeByIndex(flatIndex int64, mol molecule.Molecule) {
	old := e.cells[flatIndex]
	e.cells[flatIndex] = mol
	if old.Type() == molecule.LABEL || mol.Type() == molecule.LABEL {
		e.observer.OnLabelChange(flatIndex, old, mol, e.owners[flatIndex])
	}
}

// SetOwner assigns newOwner to the cell at flatIndex, updating the per-owner
// inverted index and notifying the label index if the cell holds a LABEL.
func (e *Environment) SetOwner(flatIndex int64, newOwner int64) {
	prev := e.owners[flatIndex]
	if prev == newOwner {
		return
	}
	if prev != 0 {
		if set, ok := e.owned[prev]; ok {
			set.Remove(flatIndex)
			if set.Cardinality() == 0 {
				delete(e.owned, prev)
			}
		}
	}
	if newOwner != 0 {
		set, ok := e.owned[newOwner]
		if !ok {
			set = mapset.NewSet()
			e.owned[newOwner] = set
		}
		set.Add(flatIndex)
	}
	e.owners[flatIndex] = newOwner

	if e.cells[flatIndex].Type() == molecule.LABEL {
		e.observer.OnOwnerChange(flatIndex, newOwner, e.cells[flatIndex].Marker())
	}
}

// ClearOwnershipFor sets owner to 0 for every cell ownerId currently owns,
// emitting label-index owner-change notifications for any label cells among
// them.
func (e *Environment) ClearOwnershipFor(ownerId int64) {
	set, ok := e.owned[ownerId]
	if !ok {
		return
	}
	for _, v := range set.ToSlice() {
		flatIndex := v.(int64)
		e.owners[flatIndex] = 0
		if e.cells[flatIndex].Type() == molecule.LABEL {
			e.observer.OnOwnerChange(flatIndex, 0, e.cells[flatIndex].Marker())
		}
	}
	delete(e.owned, ownerId)
}

// GetCellsOwnedBy returns the read-only set of flat indices ownerId
// currently owns, for use by birth handlers selecting among a child's genes.
// Returns nil if the owner owns nothing.
func (e *Environment) GetCellsOwnedBy(ownerId int64) []int64 {
	set, ok := e.owned[ownerId]
	if !ok {
		return nil
	}
	out := make([]int64, 0, set.Cardinality())
	for _, v := range set.ToSlice() {
		out = append(out, v.(int64))
	}
	return out
}
