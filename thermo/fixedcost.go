// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package thermo

import "github.com/evochora/evochora-sub011/isa"

func init() {
	RegisterConstructor("FixedCost", func() Policy { return &FixedCost{Energy: 1, Entropy: 1} })
}

// FixedCost is the simplest built-in policy: every execution costs the same
// fixed energy and entropy, regardless of instruction kind or target.
// Back-compat option keys energy-cost/entropy-delta are accepted alongside
// energy/entropy.
type FixedCost struct {
	Energy  int64
	Entropy int64
}

func (p *FixedCost) Initialize(options map[string]interface{}) error {
	if v, ok := firstNumber(options, "energy", "energy-cost"); ok {
		p.Energy = v
	}
	if v, ok := firstNumber(options, "entropy", "entropy-delta"); ok {
		p.Entropy = v
	}
	return nil
}

// Resolve implements the "legacy per-type" rule: a losing environment-
// modifying instruction, or a target-occupied write, is charged zero;
// everything else pays the flat Energy/Entropy.
func (p *FixedCost) Resolve(ctx *Context) (int64, int64) {
	if ctx.Instruction.Opcode.Kind == isa.KindPoke && ctx.Target != nil && !ctx.Target.Molecule.IsEmpty() {
		ctx.Instruction.ConflictStatus = isa.LostTargetOccupied
		return 0, 0
	}
	if isLost(ctx.Instruction.ConflictStatus) {
		return 0, 0
	}
	return p.Energy, p.Entropy
}
