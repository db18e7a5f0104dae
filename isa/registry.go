// Copyright 2024 The Evochora Authors
// This file is part of Evochora.
//
// Package isa implements the compile-time-known instruction set: a dense
// opcode registry keyed by opcode id, each entry's name, operand signature,
// and planner.
package isa

import (
	"sync"

	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/environment"
	"github.com/evochora/evochora-sub011/molecule"
	"github.com/evochora/evochora-sub011/organism"
)

// OpcodeID encodes family/operation/variant subfields the mutation
// subsystem depends on: [family:8][operation:8][variant:8].
type OpcodeID uint32

// MakeOpcodeID packs the three subfields into a dense opcode id.
func MakeOpcodeID(family, operation, variant uint8) OpcodeID {
	return OpcodeID(family)<<16 | OpcodeID(operation)<<8 | OpcodeID(variant)
}

// Family returns the opcode's family subfield.
func (id OpcodeID) Family() uint8 { return uint8(id >> 16) }

// Operation returns the opcode's operation subfield.
func (id OpcodeID) Operation() uint8 { return uint8(id >> 8) }

// Variant returns the opcode's variant (arity/addressing-mode group)
// subfield. Gene-mutation variant flips are constrained to opcodes sharing
// this variant subfield (see SameVariantGroup), whatever their family or
// operation.
func (id OpcodeID) Variant() uint8 { return uint8(id) }

// Opcode families, used for thermodynamic family overrides and
// mutation opcode-group tables.
const (
	FamilyMisc Family = iota
	FamilyArithmetic
	FamilyMemory
	FamilyControl
	FamilyStack
)

// Family groups opcodes for policy family-overrides and mutation grouping.
type Family uint8

func (f Family) String() string {
	switch f {
	case FamilyArithmetic:
		return "arithmetic"
	case FamilyMemory:
		return "memory"
	case FamilyControl:
		return "control"
	case FamilyStack:
		return "stack"
	default:
		return "misc"
	}
}

// ExecuteFn runs an instruction's body. It may call ctx.Org.Fail,
// ctx.Org.Kill, set ctx.Org.SkipIPAdvance, push/pop the data stack, or write
// to ctx.Env. Returning an error is reserved for body-internal faults that
// resolveOperands could not anticipate; the VM converts any panic escaping
// this function into an ExecutionFailure.
type ExecuteFn func(ctx *ExecutionContext, instr *Instruction) error

// TargetCoordsFn computes the (possibly empty) set of coordinates an
// instruction targets: the cells an environment-modifying instruction
// intends to write (used by conflict resolution), or the cell a read such as
// PEKI reads. Both feed the thermodynamic policy's TargetInfo.
type TargetCoordsFn func(instr *Instruction, env *environment.Environment) []coord.Vector

// Kind further classifies an opcode for the thermodynamic policy layer's
// Peek/Poke specializations: KindPeek reads a target cell without
// writing it, KindPoke writes one, KindPeekPoke does both in one
// instruction (disabling Poke's target-occupied short-circuit, since the
// preceding peek already cleared the cell).
type Kind int

const (
	KindOther Kind = iota
	KindPeek
	KindPoke
	KindPeekPoke
)

// Opcode is a single registered instruction definition.
type Opcode struct {
	ID        OpcodeID
	Name      string
	Family    Family
	Kind      Kind
	Signature Signature

	// IsEnvironmentModifying marks opcodes whose target coordinates are
	// writes that conflict resolution arbitrates. Non-modifying opcodes are
	// always conflict-free, though one may still have a TargetCoordsFn (PEKI
	// does, for its policy's TargetInfo).
	IsEnvironmentModifying bool
	TargetCoordsFn         TargetCoordsFn

	// StackReads is how many data-stack values the body consumes. Operand
	// resolution peeks (never pops) that many values into the instruction's
	// StackOperands; the pops are committed by the VM right before the body
	// runs, so re-resolving between plan and execute stays idempotent.
	StackReads int

	Execute ExecuteFn

	// RegistryIndex is this opcode's position in the registry's
	// registration order, assigned by Register. The thermodynamic policy
	// manager's cache is a grow-on-demand slice addressed by this
	// compact index rather than by the raw (sparse, up to 24-bit) OpcodeID.
	RegistryIndex int
}

// Registry is the dense, opcode-id-keyed instruction table, built once at
// startup.
type Registry struct {
	mu    sync.RWMutex
	byID  map[OpcodeID]*Opcode
	order []*Opcode // insertion order, for GetAllInstructions
}

var defaultRegistry = NewRegistry()

// NewRegistry creates an empty registry. Most callers use the package-level
// default registry populated by init() below; a fresh Registry is useful in
// tests that want a reduced or alternate opcode set.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[OpcodeID]*Opcode)}
}

// Register adds an opcode definition. Safe to call multiple times for the
// same id; a later registration simply replaces the earlier one.
func (r *Registry) Register(op *Opcode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, exists := r.byID[op.ID]; !exists {
		op.RegistryIndex = len(r.order)
		r.order = append(r.order, op)
	} else {
		op.RegistryIndex = existing.RegistryIndex
		r.order[op.RegistryIndex] = op
	}
	r.byID[op.ID] = op
}

// GetPlannerByID returns the opcode definition for id, or nil if unknown.
// Planning an instruction is just &Instruction{Opcode: op, Organism: org},
// since an Opcode carries everything a separate planner object would need.
func (r *Registry) GetPlannerByID(id OpcodeID) *Opcode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// GetSignatureByID returns the operand signature for id, or nil if unknown.
func (r *Registry) GetSignatureByID(id OpcodeID) Signature {
	op := r.GetPlannerByID(id)
	if op == nil {
		return nil
	}
	return op.Signature
}

// GetInstructionLengthByID returns the instruction's total cell length
// (opcode cell + operand cells) for the given environment rank, or 0 if id
// is unknown.
func (r *Registry) GetInstructionLengthByID(id OpcodeID, env *environment.Environment) int {
	op := r.GetPlannerByID(id)
	if op == nil {
		return 0
	}
	return 1 + op.Signature.CellCost(len(env.Shape()))
}

// GetAllInstructions returns every registered opcode, in registration order.
func (r *Registry) GetAllInstructions() []*Opcode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Opcode, len(r.order))
	copy(out, r.order)
	return out
}

// SameVariantGroup reports whether two opcode ids share the same variant
// (arity/addressing-mode group) subfield, the group gene-substitution code
// mutations must stay within so instruction length never changes.
func SameVariantGroup(a, b OpcodeID) bool {
	return a.Variant() == b.Variant()
}

// Default returns the package-level default registry, populated with every
// built-in opcode by init().
func Default() *Registry { return defaultRegistry }

// Plan reads the molecule at org's IP and produces an Instruction bound to
// org. strictTyping toggles whether a non-CODE molecule at IP is treated
// as a NOP (true, the default) or as an instruction decoded purely by
// value bits (false).
func (r *Registry) Plan(org *organism.Organism, env *environment.Environment, strictTyping bool) *Instruction {
	mol := env.GetMolecule(org.IP)

	if mol.IsEmpty() {
		return nopInstruction(org)
	}
	if strictTyping && mol.Type() != molecule.CODE {
		return nopInstruction(org)
	}

	id := OpcodeID(mol.Value())
	op := r.GetPlannerByID(id)
	if op == nil {
		org.Fail("Unknown opcode")
		return nopInstruction(org)
	}

	instr := &Instruction{Opcode: op, Organism: org}
	instr.ResolveOperands(env)
	return instr
}

func nopInstruction(org *organism.Organism) *Instruction {
	instr := &Instruction{Opcode: nopOpcode, Organism: org}
	instr.resolved = true
	return instr
}
