// Copyright 2024 The Evochora Authors
// This file is part of Evochora.
//
// Package thermo implements the thermodynamic policy layer: it
// decides, per instruction execution, the energy cost and entropy delta to
// charge, based on a resolution order of name override, family override,
// then a configured default. The runtime never knows the rules itself.
package thermo

import (
	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/environment"
	"github.com/evochora/evochora-sub011/isa"
	"github.com/evochora/evochora-sub011/molecule"
	"github.com/evochora/evochora-sub011/organism"
)

// TargetInfo describes the single cell an environment-interacting
// instruction names, resolved before the policy is asked for a cost.
type TargetInfo struct {
	Coord    coord.Vector
	Molecule molecule.Molecule
	OwnerID  int64
}

// Context is everything a Policy needs to compute a cost.
type Context struct {
	Instruction *isa.Instruction
	Organism    *organism.Organism
	Env         *environment.Environment
	Operands    []isa.ResolvedOperand
	// Target is populated whenever the instruction's opcode names a target
	// coordinate (its TargetCoordsFn returns a non-empty slice), which
	// includes read-only PEKI-style instructions as well as writes, since
	// Universal's read-rules need it too. It is nil for opcodes with no
	// target.
	Target *TargetInfo
}

// Policy is a function (context) -> (energyCost, entropyDelta) (glossary).
// A positive energyCost is consumed; a negative one is a gain. Entropy is
// always added (may be negative for dissipative instructions).
type Policy interface {
	// Initialize configures the policy from its HOCON-like options table.
	// Called exactly once, right after construction.
	Initialize(options map[string]interface{}) error
	// Resolve computes the cost for one execution. May mutate
	// ctx.Instruction.ConflictStatus to record a policy-observed condition
	// (LostTargetOccupied, LostTargetEmpty) that conflict resolution itself
	// never produces.
	Resolve(ctx *Context) (energyCost, entropyDelta int64)
}

func isLost(status isa.ConflictStatus) bool {
	switch status {
	case isa.LostLowerIDWon, isa.LostTargetOccupied, isa.LostTargetEmpty, isa.LostOtherReason:
		return true
	default:
		return false
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
