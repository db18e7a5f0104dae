// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package isa

import (
	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/environment"
	"github.com/evochora/evochora-sub011/molecule"
	"github.com/evochora/evochora-sub011/organism"
	"github.com/evochora/evochora-sub011/program"
	"github.com/evochora/evochora-sub011/rng"
)

// ConflictStatus records how an instruction fared in conflict resolution.
type ConflictStatus int

const (
	// NotApplicable is the status every instruction starts the tick with.
	NotApplicable ConflictStatus = iota
	// WonExecution means this instruction was the unique (or winning)
	// writer for every coordinate it targeted.
	WonExecution
	// LostLowerIDWon means another organism with a lower id won the
	// contested coordinate.
	LostLowerIDWon
	// LostTargetOccupied is used by policies (not conflict resolution
	// itself) to record that a POKE's target cell was non-empty.
	LostTargetOccupied
	// LostTargetEmpty is used by policies to record that a PEEK's source
	// cell was empty.
	LostTargetEmpty
	// LostOtherReason covers any other policy- or body-declared loss.
	LostOtherReason
)

func (s ConflictStatus) String() string {
	switch s {
	case NotApplicable:
		return "NOT_APPLICABLE"
	case WonExecution:
		return "WON_EXECUTION"
	case LostLowerIDWon:
		return "LOST_LOWER_ID_WON"
	case LostTargetOccupied:
		return "LOST_TARGET_OCCUPIED"
	case LostTargetEmpty:
		return "LOST_TARGET_EMPTY"
	case LostOtherReason:
		return "LOST_OTHER_REASON"
	default:
		return "UNKNOWN"
	}
}

// ExecutionContext is everything an instruction body needs: the organism it
// is bound to, the environment it reads/writes, the program artifact bound
// by the organism's ProgramID (for embedded debug info/constants), the
// label index for jump resolution, and the random provider for any
// instruction whose behavior is intentionally stochastic.
type ExecutionContext struct {
	Org      *organism.Organism
	Env      *environment.Environment
	Artifact *program.Artifact
	Labels   LabelResolver
	Random   rng.Provider
}

// LabelResolver is the subset of labelindex.Index that instruction bodies
// need; kept as an interface here so isa does not import labelindex and
// invert the dependency the label index already has on isa-free packages.
type LabelResolver interface {
	FindTarget(queryKey uint32, callerPos coord.Vector, callerOwner int64) (int64, error)
}

// Instruction is a single organism's planned action for this tick.
type Instruction struct {
	Opcode   *Opcode
	Organism *organism.Organism

	RawArgs  []molecule.Molecule
	Operands []ResolvedOperand

	// StackOperands holds the values peeked from the data stack for an
	// opcode with StackReads > 0, top of stack first. Shorter than
	// StackReads when the stack underflows; the body decides how to fail.
	StackOperands []ResolvedOperand

	ExecutedInTick bool
	ConflictStatus ConflictStatus

	// resolved caches whether resolveOperands already ran this tick, so a
	// second call (execute() re-resolving after plan()) is cheap and
	// idempotent.
	resolved bool
}

// TargetCoordinates returns the coordinates this instruction targets (the
// cells it intends to modify, or for a read such as PEKI the cell it reads),
// or nil if its opcode has no TargetCoordsFn.
func (instr *Instruction) TargetCoordinates(env *environment.Environment) []coord.Vector {
	if instr.Opcode.TargetCoordsFn == nil {
		return nil
	}
	return instr.Opcode.TargetCoordsFn(instr, env)
}

// Length returns the instruction's total length in cells (opcode cell plus
// operand cells), for IP advancement and for the gene-mutation subsystem's
// arity-preservation check.
func (instr *Instruction) Length(rank int) int {
	return 1 + instr.Opcode.Signature.CellCost(rank)
}

// ResolveOperands reads the raw argument cells behind IP (along DV) and
// resolves them into typed operands. It is safe to call more than once per
// tick: resolution (including any data-stack peek) is idempotent until
// CommitStackReads is called on the organism.
func (instr *Instruction) ResolveOperands(env *environment.Environment) {
	if instr.resolved {
		return
	}
	instr.resolved = true

	org := instr.Organism
	rank := len(env.Shape())
	cursor := org.IP.Clone()

	instr.RawArgs = nil
	instr.Operands = make([]ResolvedOperand, 0, len(instr.Opcode.Signature))

	for _, opType := range instr.Opcode.Signature {
		switch opType {
		case Vector:
			v := make(coord.Vector, rank)
			for d := 0; d < rank; d++ {
				cursor = coord.Add(cursor, org.DV)
				mol := env.GetMolecule(cursor)
				instr.RawArgs = append(instr.RawArgs, mol)
				v[d] = int32(mol.Value())
			}
			instr.Operands = append(instr.Operands, ResolvedOperand{Type: opType, Vector: v})
		default:
			cursor = coord.Add(cursor, org.DV)
			mol := env.GetMolecule(cursor)
			instr.RawArgs = append(instr.RawArgs, mol)
			instr.Operands = append(instr.Operands, resolveScalarOperand(opType, mol))
		}
	}

	if n := instr.Opcode.StackReads; n > 0 {
		for i := 0; i < n; i++ {
			v, ok := org.PeekStack(i)
			if !ok {
				break
			}
			instr.StackOperands = append(instr.StackOperands, ResolvedOperand{Type: Literal, Literal: v, FromStack: true})
		}
		org.MarkStackReadsPending(len(instr.StackOperands))
	}
}

func resolveScalarOperand(opType OperandType, mol molecule.Molecule) ResolvedOperand {
	switch opType {
	case Register, LocationRegister:
		return ResolvedOperand{Type: opType, RegisterID: int(mol.Value())}
	case Literal:
		return ResolvedOperand{Type: opType, Literal: mol}
	case Label:
		// A label cell carries a 20-bit query key in its value bits,
		// consumed by labelindex.Index.FindTarget.
		return ResolvedOperand{Type: opType, Key: mol.Value() & (1<<20 - 1)}
	default: // Immediate
		return ResolvedOperand{Type: opType, Immediate: int64(mol.Value())}
	}
}
