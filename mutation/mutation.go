// Copyright 2024 The Evochora Authors
// This file is part of Evochora.
//
// Evochora is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package mutation implements gene substitution: the birth handler that
// nudges a newborn's genome by swapping one owned cell's contents for a
// structurally equivalent alternative.
package mutation

import (
	"math"
	"math/rand"

	"github.com/evochora/evochora-sub011/environment"
	"github.com/evochora/evochora-sub011/isa"
	"github.com/evochora/evochora-sub011/labelindex"
	"github.com/evochora/evochora-sub011/molecule"
	"github.com/evochora/evochora-sub011/organism"
	"github.com/evochora/evochora-sub011/rng"
)

// typeWeight is the reservoir-sampling weight a mutable cell's molecule type
// contributes: CODE cells are weighted higher than the other mutable types
// so that opcode substitution, the mutation most likely to produce a
// viable variant, happens more often than register/data/label drift.
// EMPTY, ENERGY, and STRUCTURE cells are never mutated.
func typeWeight(t molecule.Type) float64 {
	switch t {
	case molecule.CODE:
		return 3
	case molecule.REGISTER, molecule.DATA, molecule.LABEL, molecule.LABELREF:
		return 1
	default:
		return 0
	}
}

// DefaultDataExponent governs how far a DATA mutation can drift: the
// perturbation window grows with |value|^exponent, so small values take
// small steps and large values can move proportionally further.
const DefaultDataExponent = 0.5

// GeneSubstitution is a sim.BirthHandler that mutates at most one of a
// newborn's owned cells, with probability Rate, preserving every
// instruction's cell length.
type GeneSubstitution struct {
	Registry *isa.Registry
	Root     rng.Provider
	Rate     float64

	// Exponent scales the DATA perturbation window; see mutateData.
	Exponent float64

	alternatives map[isa.OpcodeID][]isa.OpcodeID
}

// NewGeneSubstitution builds a GeneSubstitution, precomputing for every
// registered opcode the set of other opcodes sharing its variant (arity)
// group, so a CODE mutation never changes an instruction's cell length.
func NewGeneSubstitution(registry *isa.Registry, root rng.Provider, rate float64) *GeneSubstitution {
	g := &GeneSubstitution{
		Registry:     registry,
		Root:         root,
		Rate:         rate,
		Exponent:     DefaultDataExponent,
		alternatives: make(map[isa.OpcodeID][]isa.OpcodeID),
	}
	all := registry.GetAllInstructions()
	for _, op := range all {
		var group []isa.OpcodeID
		for _, other := range all {
			if other.ID != op.ID && isa.SameVariantGroup(op.ID, other.ID) {
				group = append(group, other.ID)
			}
		}
		g.alternatives[op.ID] = group
	}
	return g
}

// OnBirth implements sim.BirthHandler. It derives a deterministic,
// child-specific RNG stream, rolls once for whether this birth mutates at
// all, and if so picks one owned cell by weighted reservoir sampling
// (Efraimidis-Spirakis: key = u^(1/weight), keep the maximum) among the
// child's mutable cells, then applies a type-specific substitution.
func (g *GeneSubstitution) OnBirth(child *organism.Organism, env *environment.Environment) error {
	cells := env.GetCellsOwnedBy(child.ID)
	if len(cells) == 0 {
		return nil
	}

	random := g.Root.DeriveFor("mutation", child.ID).AsRng()
	if random.Float64() >= g.Rate {
		return nil
	}

	flat, ok := g.pickCell(cells, env, random)
	if !ok {
		return nil
	}

	mol := env.GetMoleculeInt(flat)
	mutated := g.mutate(mol, random)
	if mutated != mol {
		env.SetMoleculeByIndex(flat, mutated)
	}
	return nil
}

// pickCell runs weighted reservoir sampling over cells, skipping any whose
// molecule type carries zero weight (not a mutable type).
func (g *GeneSubstitution) pickCell(cells []int64, env *environment.Environment, random *rand.Rand) (int64, bool) {
	var bestFlat int64
	bestKey := -1.0
	found := false
	for _, flat := range cells {
		w := typeWeight(env.GetMoleculeInt(flat).Type())
		if w <= 0 {
			continue
		}
		u := random.Float64()
		key := math.Pow(u, 1/w)
		if key > bestKey {
			bestKey = key
			bestFlat = flat
			found = true
		}
	}
	return bestFlat, found
}

// mutate dispatches to the per-type substitution rule for mol's type.
// Types with zero weight never reach here, so the default case is
// unreachable in practice but kept total for safety.
func (g *GeneSubstitution) mutate(mol molecule.Molecule, random *rand.Rand) molecule.Molecule {
	switch mol.Type() {
	case molecule.CODE:
		return g.mutateCode(mol, random)
	case molecule.REGISTER:
		return g.mutateRegister(mol, random)
	case molecule.DATA:
		return g.mutateData(mol, random)
	case molecule.LABEL, molecule.LABELREF:
		return g.mutateLabelKey(mol, random)
	default:
		return mol
	}
}

// mutateCode substitutes mol's opcode id for a uniformly-random alternative
// sharing its variant group; with no registered alternative, the cell is
// left untouched.
func (g *GeneSubstitution) mutateCode(mol molecule.Molecule, random *rand.Rand) molecule.Molecule {
	current := isa.OpcodeID(mol.Value())
	alts := g.alternatives[current]
	if len(alts) == 0 {
		return mol
	}
	replacement := alts[random.Intn(len(alts))]
	return molecule.Pack(molecule.CODE, uint32(replacement)&molecule.ValueMask, mol.Marker())
}

// mutateRegister rerolls a REGISTER cell's referenced id to a uniformly
// random id within the same bank, so an operand referencing it still
// addresses a register of the same kind.
func (g *GeneSubstitution) mutateRegister(mol molecule.Molecule, random *rand.Rand) molecule.Molecule {
	id := int(mol.Value())
	base, count := bankRange(organism.BankOf(id))
	if count == 0 {
		return mol
	}
	newID := base + random.Intn(count)
	return molecule.Pack(molecule.REGISTER, uint32(newID)&molecule.ValueMask, mol.Marker())
}

func bankRange(b organism.Bank) (base, count int) {
	switch b {
	case organism.BankData:
		return organism.DataRegisterBase, organism.NumDataRegisters
	case organism.BankProc:
		return organism.ProcRegisterBase, organism.NumProcRegisters
	case organism.BankFormalParam:
		return organism.FormalParamRegisterBase, organism.NumFormalParamRegisters
	case organism.BankLocation:
		return organism.LocationRegisterBase, organism.NumLocationRegisters
	default:
		return 0, 0
	}
}

// mutateData perturbs a DATA cell's value proportionally to its magnitude:
// delta = max(1, round(|value|^Exponent)), an offset drawn uniformly from
// [-delta, +delta], and the result clamped to [0, ValueMask].
func (g *GeneSubstitution) mutateData(mol molecule.Molecule, random *rand.Rand) molecule.Molecule {
	value := int64(mol.Value())
	delta := int64(math.Round(math.Pow(float64(value), g.Exponent)))
	if delta < 1 {
		delta = 1
	}
	offset := random.Int63n(2*delta+1) - delta
	newValue := value + offset
	if newValue < 0 {
		newValue = 0
	}
	if newValue > int64(molecule.ValueMask) {
		newValue = int64(molecule.ValueMask)
	}
	return molecule.Pack(molecule.DATA, uint32(newValue), mol.Marker())
}

// mutateLabelKey rerolls a LABEL/LABELREF cell's 20-bit key uniformly at
// random within the label index's key space, matching the key width
// labelindex.Index actually matches against.
func (g *GeneSubstitution) mutateLabelKey(mol molecule.Molecule, random *rand.Rand) molecule.Molecule {
	newKey := uint32(random.Intn(labelindex.KeySpace))
	return molecule.Pack(mol.Type(), newKey, mol.Marker())
}
