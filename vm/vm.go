// Copyright 2024 The Evochora Authors
// This file is part of Evochora.
//
// Package vm implements the plan/execute cycle: for each
// organism, plan reads the molecule at its IP and resolves operands; execute
// commits stack reads, asks the thermodynamic policy for a cost, applies it,
// runs the instruction body under a panic-to-failure boundary, and advances
// IP.
package vm

import (
	"fmt"

	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/environment"
	"github.com/evochora/evochora-sub011/isa"
	"github.com/evochora/evochora-sub011/molecule"
	"github.com/evochora/evochora-sub011/organism"
	"github.com/evochora/evochora-sub011/program"
	"github.com/evochora/evochora-sub011/rng"
	"github.com/evochora/evochora-sub011/thermo"
)

// VM binds the opcode registry and thermodynamic policy manager used to
// plan and execute instructions for a simulation.
type VM struct {
	Registry     *isa.Registry
	Policies     *thermo.Manager
	StrictTyping bool
}

// New creates a VM. strictTyping controls planning: true (the default)
// treats any non-CODE molecule at IP as a NOP; false decodes whatever is
// there purely by value bits.
func New(registry *isa.Registry, policies *thermo.Manager, strictTyping bool) *VM {
	return &VM{Registry: registry, Policies: policies, StrictTyping: strictTyping}
}

// Plan resets org's per-tick ephemeral state and produces an Instruction
// bound to it.
func (v *VM) Plan(org *organism.Organism, env *environment.Environment) *isa.Instruction {
	org.ResetTickState()
	return v.Registry.Plan(org, env, v.StrictTyping)
}

// PeekNextInstruction returns what Plan would produce, without the
// side effect of marking the organism's instruction as failed on an unknown
// opcode.
func (v *VM) PeekNextInstruction(org *organism.Organism, env *environment.Environment) *isa.Instruction {
	failedBefore, reasonBefore := org.InstructionFailed, org.FailureReason
	instr := v.Registry.Plan(org, env, v.StrictTyping)
	org.InstructionFailed, org.FailureReason = failedBefore, reasonBefore
	return instr
}

// Execute runs instr's full lifecycle against org. Execute is a
// no-op if org is already dead. labels resolves JMPI-style operands;
// artifact is the organism's bound program.Artifact (may be nil); random is
// threaded through for any intentionally stochastic instruction body.
func (v *VM) Execute(instr *isa.Instruction, env *environment.Environment, artifact *program.Artifact, labels isa.LabelResolver, random rng.Provider) {
	org := instr.Organism
	if org.Dead {
		return
	}

	org.LastExecution.PreRegisters = snapshotRegisters(instr)

	instr.ResolveOperands(env)
	org.CommitStackReads()

	target := buildTargetInfo(instr, env)

	ctx := &thermo.Context{
		Instruction: instr,
		Organism:    org,
		Env:         env,
		Operands:    instr.Operands,
		Target:      target,
	}
	policy := v.Policies.Resolve(instr.Opcode)
	energyCost, entropyDelta := policy.Resolve(ctx)

	if energyCost >= 0 {
		org.TakeEnergy(energyCost)
	} else {
		org.AddEnergy(-energyCost)
	}
	org.AddEntropy(entropyDelta)

	// A conflict loser is still charged (the policy saw its losing status
	// above) and still advances IP below, but its body never runs: the
	// contested write belongs to the winner alone.
	if instr.ConflictStatus != isa.LostLowerIDWon {
		runBody(org, env, artifact, labels, random, instr)
	}

	totalEnergy := energyCost
	if org.InstructionFailed {
		org.TakeEnergy(org.ErrorPenaltyCost)
		totalEnergy += org.ErrorPenaltyCost
	}

	org.LastExecution.OpcodeID = uint32(instr.Opcode.ID)
	org.LastExecution.RawArgs = instr.RawArgs
	org.LastExecution.EnergyCost = totalEnergy
	org.LastExecution.EntropyDelta = entropyDelta
	org.LastExecution.Failed = org.InstructionFailed
	org.LastExecution.FailureReason = org.FailureReason

	if org.ER <= 0 {
		org.Kill("Ran out of energy")
	} else if org.SR >= org.MaxEntropy {
		org.Kill("Entropy limit exceeded")
	}

	if !org.Dead && !org.SkipIPAdvance {
		advanceIP(org, instr, env)
	}
}

// runBody executes instr's opcode body under the global catch: any panic
// escaping the body becomes an instructionFailed, and
// IP still advances afterward if possible; if advancing itself panics, the
// organism is killed with a fatal reason.
func runBody(org *organism.Organism, env *environment.Environment, artifact *program.Artifact, labels isa.LabelResolver, random rng.Provider, instr *isa.Instruction) {
	defer func() {
		if r := recover(); r != nil {
			org.Fail(fmt.Sprintf("VM Runtime Error: %v", r))
		}
	}()
	execCtx := &isa.ExecutionContext{Org: org, Env: env, Artifact: artifact, Labels: labels, Random: random}
	if err := instr.Opcode.Execute(execCtx, instr); err != nil {
		org.Fail(err.Error())
	}
}

func snapshotRegisters(instr *isa.Instruction) map[int]molecule.Molecule {
	snapshot := make(map[int]molecule.Molecule)
	for _, op := range instr.Operands {
		if op.Type == isa.Register {
			snapshot[op.RegisterID] = instr.Organism.GetRegister(op.RegisterID)
		}
	}
	return snapshot
}

func buildTargetInfo(instr *isa.Instruction, env *environment.Environment) *thermo.TargetInfo {
	coords := instr.TargetCoordinates(env)
	if len(coords) == 0 {
		return nil
	}
	c := coords[0]
	flat := env.FlatIndex(env.Reduce(c))
	return &thermo.TargetInfo{
		Coord:    c,
		Molecule: env.GetMoleculeInt(flat),
		OwnerID:  env.GetOwnerIdInt(flat),
	}
}

// advanceIP moves org's IP forward by instr's length along DV, wrapped in
// its own recover so a panic here, which should never happen in pure
// coordinate arithmetic, kills the organism with a fatal reason
// rather than escaping the tick.
func advanceIP(org *organism.Organism, instr *isa.Instruction, env *environment.Environment) {
	defer func() {
		if r := recover(); r != nil {
			org.Kill(fmt.Sprintf("Fatal VM Error: %v", r))
		}
	}()
	length := int32(instr.Length(len(env.Shape())))
	step := make(coord.Vector, len(org.DV))
	for i := range org.DV {
		step[i] = org.DV[i] * length
	}
	org.IP = env.Reduce(coord.Add(org.IP, step))
}
