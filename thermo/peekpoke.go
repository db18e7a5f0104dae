// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package thermo

import "github.com/evochora/evochora-sub011/isa"

func init() {
	RegisterConstructor("Peek", func() Policy { return &Peek{Energy: 1, Entropy: 1} })
	RegisterConstructor("Poke", func() Policy { return &Poke{Energy: 1, Entropy: -1} })
	RegisterConstructor("PeekPoke", func() Policy { return &PeekPoke{} })
}

// Peek is a read-only specialization: entropy is typically positive
// (observing the world costs order) and there is no target-occupied
// short-circuit, only a LostTargetEmpty marker for an empty source.
type Peek struct {
	Energy  int64
	Entropy int64
}

func (p *Peek) Initialize(options map[string]interface{}) error {
	if v, ok := firstNumber(options, "energy"); ok {
		p.Energy = v
	}
	if v, ok := firstNumber(options, "entropy"); ok {
		p.Entropy = v
	}
	return nil
}

func (p *Peek) Resolve(ctx *Context) (int64, int64) {
	if isLost(ctx.Instruction.ConflictStatus) {
		return 0, 0
	}
	if ctx.Target != nil && ctx.Target.Molecule.IsEmpty() {
		ctx.Instruction.ConflictStatus = isa.LostTargetEmpty
	}
	return p.Energy, p.Entropy
}

// Poke is a write specialization: entropy is typically negative
// (dissipation), and a non-empty target short-circuits the whole charge to
// zero.
type Poke struct {
	Energy  int64
	Entropy int64
}

func (p *Poke) Initialize(options map[string]interface{}) error {
	if v, ok := firstNumber(options, "energy"); ok {
		p.Energy = v
	}
	if v, ok := firstNumber(options, "entropy"); ok {
		p.Entropy = v
	}
	return nil
}

func (p *Poke) Resolve(ctx *Context) (int64, int64) {
	if ctx.Target != nil && !ctx.Target.Molecule.IsEmpty() {
		ctx.Instruction.ConflictStatus = isa.LostTargetOccupied
		return 0, 0
	}
	if isLost(ctx.Instruction.ConflictStatus) {
		return 0, 0
	}
	return p.Energy, p.Entropy
}

// PeekPoke composes Peek then Poke into one charge. The combined
// instruction's preceding peek already cleared the target cell, so Poke's
// target-occupied short-circuit does not apply here.
type PeekPoke struct {
	Peek Peek
	Poke Poke
}

func (p *PeekPoke) Initialize(options map[string]interface{}) error {
	var cfg struct {
		Peek Peek `json:"peek"`
		Poke Poke `json:"poke"`
	}
	cfg.Peek = Peek{Energy: 1, Entropy: 1}
	cfg.Poke = Poke{Energy: 1, Entropy: -1}
	if err := decodeOptions(options, &cfg); err != nil {
		return err
	}
	p.Peek = cfg.Peek
	p.Poke = cfg.Poke
	return nil
}

func (p *PeekPoke) Resolve(ctx *Context) (int64, int64) {
	if isLost(ctx.Instruction.ConflictStatus) {
		return 0, 0
	}
	if ctx.Target != nil && ctx.Target.Molecule.IsEmpty() {
		ctx.Instruction.ConflictStatus = isa.LostTargetEmpty
	}
	return p.Peek.Energy + p.Poke.Energy, p.Peek.Entropy + p.Poke.Entropy
}
