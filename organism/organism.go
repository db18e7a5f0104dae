// Copyright 2024 The Evochora Authors
// This file is part of Evochora.
//
// Evochora is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package organism implements the runtime state of a single Evochora
// organism: its position, register banks, stacks, energy/entropy, and the
// per-tick bookkeeping the VM and policy layer need.
package organism

import (
	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/molecule"
)

// Register bank base offsets. A register id's bank is determined by the
// numeric range it falls in.
const (
	DataRegisterBase        = 0
	ProcRegisterBase        = 1000
	FormalParamRegisterBase = 2000
	LocationRegisterBase    = 3000
)

// Bank sizes, chosen generously for a typical EvoASM program without
// wasting register-file space.
const (
	NumDataRegisters        = 8
	NumProcRegisters        = 4
	NumFormalParamRegisters = 4
	NumLocationRegisters    = 4
)

// Bank identifies which register file a register id addresses.
type Bank int

const (
	BankData Bank = iota
	BankProc
	BankFormalParam
	BankLocation
	bankInvalid
)

// IsValidRegister reports whether id falls within one of the scalar
// register banks (DR/PR/FPR). Location registers are addressed separately
// via GetLocationRegister/SetLocationRegister.
func IsValidRegister(id int) bool {
	b := BankOf(id)
	return b == BankData || b == BankProc || b == BankFormalParam
}

// BankOf classifies a register id by its numeric range.
func BankOf(id int) Bank {
	switch {
	case id >= LocationRegisterBase && id < LocationRegisterBase+NumLocationRegisters:
		return BankLocation
	case id >= FormalParamRegisterBase && id < FormalParamRegisterBase+NumFormalParamRegisters:
		return BankFormalParam
	case id >= ProcRegisterBase && id < ProcRegisterBase+NumProcRegisters:
		return BankProc
	case id >= DataRegisterBase && id < DataRegisterBase+NumDataRegisters:
		return BankData
	default:
		return bankInvalid
	}
}

// Frame is a call-stack return frame.
type Frame struct {
	ReturnIP coord.Vector
	ReturnDV coord.Vector
}

// LastExecutionRecord captures what is observable after an instruction
// executes: the opcode, its raw argument words, the total
// cost charged, and a snapshot of every register operand's pre-execution
// value (for observation/replay).
type LastExecutionRecord struct {
	OpcodeID      uint32
	RawArgs       []molecule.Molecule
	EnergyCost    int64
	EntropyDelta  int64
	PreRegisters  map[int]molecule.Molecule
	Failed        bool
	FailureReason string
}

// Config holds the per-organism limits read once at creation time.
type Config struct {
	MaxEnergy        int64 `toml:"max-energy"`
	MaxEntropy       int64 `toml:"max-entropy"`
	ErrorPenaltyCost int64 `toml:"error-penalty-cost"`
}

// Organism is the runtime state of one organism.
type Organism struct {
	ID        int64
	ParentID  int64
	BirthTick int64
	ProgramID string

	IP       coord.Vector
	DV       coord.Vector
	DP       []coord.Vector
	ActiveDP int

	dataRegs [NumDataRegisters]molecule.Molecule
	procRegs [NumProcRegisters]molecule.Molecule
	fprRegs  [NumFormalParamRegisters]molecule.Molecule
	locRegs  [NumLocationRegisters]coord.Vector

	DataStack []molecule.Molecule
	CallStack []Frame

	ER               int64
	SR               int64
	MaxEnergy        int64
	MaxEntropy       int64
	ErrorPenaltyCost int64

	Dead              bool
	DeathReason       string
	InstructionFailed bool
	FailureReason     string
	SkipIPAdvance     bool

	// stackReadCursor / committed track peeked-but-not-yet-committed data
	// stack reads within the current tick, so resolveOperands can be called
	// twice (plan, then again at the top of execute) idempotently.
	stackReadCursor int
	committed       bool

	LastExecution LastExecutionRecord

	// Spawned accumulates children created by a spawn/fork instruction body
	// this tick. The simulation loop drains it after the execute phase,
	// assigning each child a real id, ParentID, and BirthTick before running
	// birth handlers; this lets isa opcode bodies mint newborns
	// without isa importing the simulation package.
	Spawned []*Organism
}

// SpawnChild queues a newly-constructed organism (ID/ParentID/BirthTick not
// yet set) to be adopted into the population at the end of the current
// tick. Called from within an opcode's Execute body.
func (o *Organism) SpawnChild(child *Organism) {
	o.Spawned = append(o.Spawned, child)
}

// New creates an organism at startIP with the given config.
func New(id, parentID, birthTick int64, programID string, startIP, startDV coord.Vector, cfg Config) *Organism {
	return &Organism{
		ID:               id,
		ParentID:         parentID,
		BirthTick:        birthTick,
		ProgramID:        programID,
		IP:               startIP.Clone(),
		DV:               startDV.Clone(),
		DP:               []coord.Vector{startIP.Clone()},
		ER:               cfg.MaxEnergy,
		SR:               0,
		MaxEnergy:        cfg.MaxEnergy,
		MaxEntropy:       cfg.MaxEntropy,
		ErrorPenaltyCost: cfg.ErrorPenaltyCost,
	}
}

// ResetTickState clears per-tick ephemeral flags at the start of planning.
func (o *Organism) ResetTickState() {
	o.InstructionFailed = false
	o.FailureReason = ""
	o.SkipIPAdvance = false
	o.stackReadCursor = 0
	o.committed = false
}

// Fail marks the organism's current instruction as having failed
// validation; the tick continues.
func (o *Organism) Fail(reason string) {
	o.InstructionFailed = true
	o.FailureReason = reason
}

// Kill marks the organism dead with a human-readable reason.
func (o *Organism) Kill(reason string) {
	if o.Dead {
		return
	}
	o.Dead = true
	o.DeathReason = reason
}

// GetRegister reads a scalar register (DR/PR/FPR bank) by global id.
func (o *Organism) GetRegister(id int) molecule.Molecule {
	switch BankOf(id) {
	case BankData:
		return o.dataRegs[id-DataRegisterBase]
	case BankProc:
		return o.procRegs[id-ProcRegisterBase]
	case BankFormalParam:
		return o.fprRegs[id-FormalParamRegisterBase]
	default:
		return 0
	}
}

// SetRegister writes a scalar register (DR/PR/FPR bank) by global id.
func (o *Organism) SetRegister(id int, v molecule.Molecule) {
	switch BankOf(id) {
	case BankData:
		o.dataRegs[id-DataRegisterBase] = v
	case BankProc:
		o.procRegs[id-ProcRegisterBase] = v
	case BankFormalParam:
		o.fprRegs[id-FormalParamRegisterBase] = v
	}
}

// GetLocationRegister reads a location register (an n-vector) by global id.
func (o *Organism) GetLocationRegister(id int) coord.Vector {
	return o.locRegs[id-LocationRegisterBase]
}

// SetLocationRegister writes a location register by global id.
func (o *Organism) SetLocationRegister(id int, v coord.Vector) {
	o.locRegs[id-LocationRegisterBase] = v
}

// PeekStack returns the value n-from-top (0 = top) without consuming it;
// used by operand resolution, which may run more than once per tick before
// the read is committed.
func (o *Organism) PeekStack(n int) (molecule.Molecule, bool) {
	idx := len(o.DataStack) - 1 - n
	if idx < 0 {
		return 0, false
	}
	return o.DataStack[idx], true
}

// PushStack pushes v onto the data stack.
func (o *Organism) PushStack(v molecule.Molecule) {
	o.DataStack = append(o.DataStack, v)
}

// MarkStackReadsPending records that count values at the top of the stack
// were peeked this planning pass and still need to be committed (consumed)
// when execute() runs.
func (o *Organism) MarkStackReadsPending(count int) {
	if count > o.stackReadCursor {
		o.stackReadCursor = count
	}
}

// CommitStackReads pops the pending peeked values for real. Idempotent
// within a tick: calling it twice without an intervening ResetTickState is a
// no-op the second time.
func (o *Organism) CommitStackReads() {
	if o.committed {
		return
	}
	o.committed = true
	if o.stackReadCursor > len(o.DataStack) {
		o.stackReadCursor = len(o.DataStack)
	}
	o.DataStack = o.DataStack[:len(o.DataStack)-o.stackReadCursor]
}

// TakeEnergy consumes cost energy. The result may go negative; the VM
// performs the death check after applying all deltas.
func (o *Organism) TakeEnergy(cost int64) {
	o.ER -= cost
}

// AddEnergy grants energy, clamped to MaxEnergy.
func (o *Organism) AddEnergy(amount int64) {
	o.ER += amount
	if o.ER > o.MaxEnergy {
		o.ER = o.MaxEnergy
	}
}

// AddEntropy adds delta to SR (may be negative for dissipative instructions).
func (o *Organism) AddEntropy(delta int64) {
	o.SR += delta
	if o.SR < 0 {
		o.SR = 0
	}
}
