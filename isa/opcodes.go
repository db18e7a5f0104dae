// Copyright 2024 The Evochora Authors
// This file is part of Evochora.
//
// Evochora is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package isa

import (
	"fmt"

	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/environment"
	"github.com/evochora/evochora-sub011/molecule"
	"github.com/evochora/evochora-sub011/organism"
)

// Built-in opcode ids. Family/operation/variant subfields are assigned so
// that every arithmetic DR-immediate instruction (ADDI/SUBI/MULI) shares one
// variant group (a gene-substitution operation flip between them never
// changes instruction length), while SETI, which takes a differently
// shaped operand (a typed literal rather than a bare immediate), sits in its
// own variant group.
const (
	opSETI uint8 = iota
	opADDI
	opSUBI
	opMULI
	opJMPI
	opPOKI
	opPEKI
	opFORKI
	opNOP
	opPSHI
	opPOPR
	opCALI
	opRETN
)

const (
	variantImmediateArith uint8 = iota // ADDI/SUBI/MULI: REGISTER, IMMEDIATE
	variantLiteral                     // SETI: REGISTER, LITERAL
	variantLabel                       // JMPI/CALI: LABEL
	variantVectorWrite                 // POKI: REGISTER, VECTOR
	variantVectorRead                  // PEKI: REGISTER, VECTOR
	variantRegisterOnly                // FORKI/POPR: REGISTER
	variantNullary                     // NOP/RETN
	variantPushLiteral                 // PSHI: LITERAL
)

var (
	idSETI  = MakeOpcodeID(uint8(FamilyMisc), opSETI, variantLiteral)
	idADDI  = MakeOpcodeID(uint8(FamilyArithmetic), opADDI, variantImmediateArith)
	idSUBI  = MakeOpcodeID(uint8(FamilyArithmetic), opSUBI, variantImmediateArith)
	idMULI  = MakeOpcodeID(uint8(FamilyArithmetic), opMULI, variantImmediateArith)
	idJMPI  = MakeOpcodeID(uint8(FamilyControl), opJMPI, variantLabel)
	idPOKI  = MakeOpcodeID(uint8(FamilyMemory), opPOKI, variantVectorWrite)
	idPEKI  = MakeOpcodeID(uint8(FamilyMemory), opPEKI, variantVectorRead)
	idFORKI = MakeOpcodeID(uint8(FamilyControl), opFORKI, variantRegisterOnly)
	idNOP   = MakeOpcodeID(uint8(FamilyMisc), opNOP, variantNullary)
	idPSHI  = MakeOpcodeID(uint8(FamilyStack), opPSHI, variantPushLiteral)
	idPOPR  = MakeOpcodeID(uint8(FamilyStack), opPOPR, variantRegisterOnly)
	idCALI  = MakeOpcodeID(uint8(FamilyControl), opCALI, variantLabel)
	idRETN  = MakeOpcodeID(uint8(FamilyControl), opRETN, variantNullary)
)

// nopOpcode is what Registry.Plan falls back to for an empty cell, a
// non-CODE cell under strict typing, or an unknown opcode id.
var nopOpcode = &Opcode{ID: idNOP, Name: "NOP", Family: FamilyMisc, Signature: nil, Execute: execNOP}

func init() {
	reg := Default()
	reg.Register(nopOpcode)
	reg.Register(&Opcode{
		ID: idSETI, Name: "SETI", Family: FamilyMisc,
		Signature: Signature{Register, Literal},
		Execute:   execSETI,
	})
	reg.Register(&Opcode{
		ID: idADDI, Name: "ADDI", Family: FamilyArithmetic,
		Signature: Signature{Register, Immediate},
		Execute:   execADDI,
	})
	reg.Register(&Opcode{
		ID: idSUBI, Name: "SUBI", Family: FamilyArithmetic,
		Signature: Signature{Register, Immediate},
		Execute:   execSUBI,
	})
	reg.Register(&Opcode{
		ID: idMULI, Name: "MULI", Family: FamilyArithmetic,
		Signature: Signature{Register, Immediate},
		Execute:   execMULI,
	})
	reg.Register(&Opcode{
		ID: idJMPI, Name: "JMPI", Family: FamilyControl,
		Signature: Signature{Label},
		Execute:   execJMPI,
	})
	reg.Register(&Opcode{
		ID: idPOKI, Name: "POKI", Family: FamilyMemory, Kind: KindPoke,
		Signature:              Signature{Register, Vector},
		IsEnvironmentModifying: true,
		TargetCoordsFn:         pokiTarget,
		Execute:                execPOKI,
	})
	reg.Register(&Opcode{
		ID: idPEKI, Name: "PEKI", Family: FamilyMemory, Kind: KindPeek,
		Signature:      Signature{Register, Vector},
		TargetCoordsFn: pokiTarget, // read-only, but the thermodynamic policy
		// still needs TargetInfo to apply its ownership-bucket read-rules.
		// IsEnvironmentModifying stays false so conflict resolution never
		// treats a PEKI as a contested write.
		Execute: execPEKI,
	})
	reg.Register(&Opcode{
		ID: idFORKI, Name: "FORKI", Family: FamilyControl,
		Signature: Signature{Register},
		Execute:   execFORKI,
	})
	reg.Register(&Opcode{
		ID: idPSHI, Name: "PSHI", Family: FamilyStack,
		Signature: Signature{Literal},
		Execute:   execPSHI,
	})
	reg.Register(&Opcode{
		ID: idPOPR, Name: "POPR", Family: FamilyStack,
		Signature:  Signature{Register},
		StackReads: 1,
		Execute:    execPOPR,
	})
	reg.Register(&Opcode{
		ID: idCALI, Name: "CALI", Family: FamilyControl,
		Signature: Signature{Label},
		Execute:   execCALI,
	})
	reg.Register(&Opcode{
		ID: idRETN, Name: "RETN", Family: FamilyControl,
		Execute: execRETN,
	})
}

func execNOP(_ *ExecutionContext, _ *Instruction) error { return nil }

func execSETI(ctx *ExecutionContext, instr *Instruction) error {
	reg := instr.Operands[0].RegisterID
	if !organism.IsValidRegister(reg) {
		ctx.Org.Fail(fmt.Sprintf("SETI: invalid register id %d", reg))
		return nil
	}
	ctx.Org.SetRegister(reg, instr.Operands[1].Literal)
	return nil
}

func execADDI(ctx *ExecutionContext, instr *Instruction) error {
	return arith(ctx, instr, func(a, b int64) int64 { return a + b })
}

func execSUBI(ctx *ExecutionContext, instr *Instruction) error {
	return arith(ctx, instr, func(a, b int64) int64 { return a - b })
}

func execMULI(ctx *ExecutionContext, instr *Instruction) error {
	return arith(ctx, instr, func(a, b int64) int64 { return a * b })
}

func arith(ctx *ExecutionContext, instr *Instruction, op func(a, b int64) int64) error {
	reg := instr.Operands[0].RegisterID
	if !organism.IsValidRegister(reg) {
		ctx.Org.Fail(fmt.Sprintf("invalid register id %d", reg))
		return nil
	}
	imm := instr.Operands[1].Immediate
	cur := ctx.Org.GetRegister(reg)
	result := op(int64(cur.Value()), imm)
	if result < 0 {
		result = 0
	}
	ctx.Org.SetRegister(reg, molecule.Pack(molecule.DATA, uint32(result)&molecule.ValueMask, 0))
	return nil
}

// execJMPI resolves the label query key against the label index and, on a
// match, sets IP directly to the target coordinate and suppresses the
// normal IP advance.
func execJMPI(ctx *ExecutionContext, instr *Instruction) error {
	if ctx.Labels == nil {
		ctx.Org.Fail("JMPI: no label index bound")
		return nil
	}
	key := instr.Operands[0].Key
	flat, err := ctx.Labels.FindTarget(key, ctx.Org.IP, ctx.Org.ID)
	if err != nil {
		ctx.Org.Fail(fmt.Sprintf("JMPI: %v", err))
		return nil
	}
	if flat < 0 {
		ctx.Org.Fail("JMPI: no matching label")
		return nil
	}
	ctx.Org.IP = ctx.Env.CoordOf(flat)
	ctx.Org.SkipIPAdvance = true
	return nil
}

// pokiTarget computes the single coordinate a POKI/PEKI operand's VECTOR
// offset names, relative to the organism's current IP: IP + offset,
// reduced modulo the environment's shape.
func pokiTarget(instr *Instruction, env *environment.Environment) []coord.Vector {
	offset := instr.Operands[1].Vector
	c := env.Reduce(coord.Add(instr.Organism.IP, offset))
	return []coord.Vector{c}
}

// execPOKI writes the source register's value as a DATA molecule at the
// target coordinate, taking ownership of the cell for the writing organism.
func execPOKI(ctx *ExecutionContext, instr *Instruction) error {
	reg := instr.Operands[0].RegisterID
	if !organism.IsValidRegister(reg) {
		ctx.Org.Fail(fmt.Sprintf("POKI: invalid register id %d", reg))
		return nil
	}
	coords := pokiTarget(instr, ctx.Env)
	target := coords[0]
	flat := ctx.Env.FlatIndex(target)
	val := ctx.Org.GetRegister(reg)
	ctx.Env.SetMoleculeByIndex(flat, molecule.Pack(molecule.DATA, val.Value(), 0))
	ctx.Env.SetOwner(flat, ctx.Org.ID)
	return nil
}

// execPEKI reads the molecule at the target coordinate into the destination
// register.
func execPEKI(ctx *ExecutionContext, instr *Instruction) error {
	reg := instr.Operands[0].RegisterID
	if !organism.IsValidRegister(reg) {
		ctx.Org.Fail(fmt.Sprintf("PEKI: invalid register id %d", reg))
		return nil
	}
	coords := pokiTarget(instr, ctx.Env)
	target := coords[0]
	flat := ctx.Env.FlatIndex(target)
	ctx.Org.SetRegister(reg, ctx.Env.GetMoleculeInt(flat))
	return nil
}

// execFORKI splits off a child organism running the same program, handing it
// the energy named by the source register and placing it one DV step ahead
// of the parent's current position. The
// child is queued on the parent and does not join the active population, or
// execute, until the simulation loop's post-execute newborn step.
func execFORKI(ctx *ExecutionContext, instr *Instruction) error {
	reg := instr.Operands[0].RegisterID
	if !organism.IsValidRegister(reg) {
		ctx.Org.Fail(fmt.Sprintf("FORKI: invalid register id %d", reg))
		return nil
	}
	share := int64(ctx.Org.GetRegister(reg).Value())
	if share <= 0 || share > ctx.Org.ER {
		ctx.Org.Fail("FORKI: insufficient energy for requested share")
		return nil
	}
	childIP := ctx.Env.Reduce(coord.Add(ctx.Org.IP, ctx.Org.DV))
	child := organism.New(0, 0, 0, ctx.Org.ProgramID, childIP, ctx.Org.DV, organism.Config{
		MaxEnergy:        ctx.Org.MaxEnergy,
		MaxEntropy:       ctx.Org.MaxEntropy,
		ErrorPenaltyCost: ctx.Org.ErrorPenaltyCost,
	})
	child.ER = share
	ctx.Org.TakeEnergy(share)
	ctx.Org.SpawnChild(child)
	return nil
}

// execPSHI pushes the literal operand onto the data stack.
func execPSHI(ctx *ExecutionContext, instr *Instruction) error {
	ctx.Org.PushStack(instr.Operands[0].Literal)
	return nil
}

// execPOPR moves the top of the data stack into the destination register.
// The value was peeked during operand resolution and popped for real by the
// VM's stack-read commit, so the body only consumes the cached operand.
func execPOPR(ctx *ExecutionContext, instr *Instruction) error {
	reg := instr.Operands[0].RegisterID
	if !organism.IsValidRegister(reg) {
		ctx.Org.Fail(fmt.Sprintf("POPR: invalid register id %d", reg))
		return nil
	}
	if len(instr.StackOperands) < 1 {
		ctx.Org.Fail("POPR: data stack underflow")
		return nil
	}
	ctx.Org.SetRegister(reg, instr.StackOperands[0].Literal)
	return nil
}

// execCALI is JMPI plus a return frame: the address of the instruction
// after this CALI, and the current DV, are pushed onto the call stack
// before the jump so RETN can restore them.
func execCALI(ctx *ExecutionContext, instr *Instruction) error {
	if ctx.Labels == nil {
		ctx.Org.Fail("CALI: no label index bound")
		return nil
	}
	key := instr.Operands[0].Key
	flat, err := ctx.Labels.FindTarget(key, ctx.Org.IP, ctx.Org.ID)
	if err != nil {
		ctx.Org.Fail(fmt.Sprintf("CALI: %v", err))
		return nil
	}
	if flat < 0 {
		ctx.Org.Fail("CALI: no matching label")
		return nil
	}
	length := int32(instr.Length(len(ctx.Env.Shape())))
	step := make(coord.Vector, len(ctx.Org.DV))
	for i := range ctx.Org.DV {
		step[i] = ctx.Org.DV[i] * length
	}
	ret := ctx.Env.Reduce(coord.Add(ctx.Org.IP, step))
	ctx.Org.CallStack = append(ctx.Org.CallStack, organism.Frame{ReturnIP: ret, ReturnDV: ctx.Org.DV.Clone()})
	ctx.Org.IP = ctx.Env.CoordOf(flat)
	ctx.Org.SkipIPAdvance = true
	return nil
}

// execRETN pops the youngest call frame and resumes at its return address.
func execRETN(ctx *ExecutionContext, instr *Instruction) error {
	n := len(ctx.Org.CallStack)
	if n == 0 {
		ctx.Org.Fail("RETN: call stack underflow")
		return nil
	}
	frame := ctx.Org.CallStack[n-1]
	ctx.Org.CallStack = ctx.Org.CallStack[:n-1]
	ctx.Org.IP = frame.ReturnIP
	ctx.Org.DV = frame.ReturnDV
	ctx.Org.SkipIPAdvance = true
	return nil
}
