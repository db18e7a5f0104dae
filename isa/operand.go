// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package isa

import (
	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/molecule"
)

// OperandType is the closed set of operand kinds an instruction signature
// can name.
type OperandType int

const (
	// Register is a scalar DR/PR/FPR register reference.
	Register OperandType = iota
	// LocationRegister is an LR (n-vector) register reference.
	LocationRegister
	// Immediate is a bare integer literal.
	Immediate
	// Literal is a typed literal such as DATA:1.
	Literal
	// Vector is an n-dimensional offset, one cell per dimension.
	Vector
	// Label is a fuzzy-matched jump target: a single cell carrying a 20-bit
	// query key consumed by the label index.
	Label
)

// Signature is the ordered list of operand kinds an opcode expects.
type Signature []OperandType

// CellCost returns how many argument cells this signature occupies behind
// the opcode cell, given the environment's rank. VECTOR operands cost one
// cell per dimension; every other operand, including LABEL's single 20-bit
// key cell, costs exactly one cell.
func (s Signature) CellCost(rank int) int {
	cost := 0
	for _, op := range s {
		switch op {
		case Vector:
			cost += rank
		default:
			cost++
		}
	}
	return cost
}

// ResolvedOperand is a single operand after resolution against a concrete
// organism and environment state.
type ResolvedOperand struct {
	Type OperandType

	RegisterID int               // Register / LocationRegister
	Immediate  int64             // Immediate
	Literal    molecule.Molecule // Literal
	Vector     coord.Vector      // Vector offset
	Key        uint32            // Label: the raw 20-bit query key, single cell
	FromStack  bool              // true if sourced from a peeked stack value
}
