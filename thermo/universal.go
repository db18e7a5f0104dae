// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package thermo

import (
	"strings"

	"github.com/evochora/evochora-sub011/isa"
	"github.com/evochora/evochora-sub011/molecule"
)

func init() {
	RegisterConstructor("Universal", func() Policy { return &Universal{} })
}

// Rule is a single cost contribution: fixed and/or permille (per-mille of
// the absolute scalar value of the target molecule). Both may be set and
// are summed; entropy requires at least one of Entropy/EntropyPermille or
// the rule is rejected at load time.
type Rule struct {
	Energy          *int64 `json:"energy"`
	EnergyPermille  *int64 `json:"energy-permille"`
	Entropy         *int64 `json:"entropy"`
	EntropyPermille *int64 `json:"entropy-permille"`
}

func (r Rule) validate() error {
	if r.Entropy == nil && r.EntropyPermille == nil {
		return ErrMissingEntropySpec
	}
	return nil
}

func (r Rule) apply(scalar int64) (energy, entropy int64) {
	if r.Energy != nil {
		energy += *r.Energy
	}
	if r.EnergyPermille != nil {
		energy += (*r.EnergyPermille * abs64(scalar)) / 1000
	}
	if r.Entropy != nil {
		entropy += *r.Entropy
	}
	if r.EntropyPermille != nil {
		entropy += (*r.EntropyPermille * abs64(scalar)) / 1000
	}
	return
}

// universalConfig is the JSON-shaped options table Universal.Initialize
// decodes (via decodeOptions): base-energy, base-entropy, optional
// read-rules, optional write-rules.
type universalConfig struct {
	BaseEnergy  int64                      `json:"base-energy"`
	BaseEntropy int64                      `json:"base-entropy"`
	ReadRules   map[string]map[string]Rule `json:"read-rules"`
	WriteRules  map[string]Rule            `json:"write-rules"`
}

// Universal is the unified thermodynamic policy: a base cost plus optional
// ownership/type-keyed read and write rules.
type Universal struct {
	BaseEnergy  int64
	BaseEntropy int64
	ReadRules   map[string]map[string]Rule
	WriteRules  map[string]Rule
}

func (p *Universal) Initialize(options map[string]interface{}) error {
	var cfg universalConfig
	if err := decodeOptions(options, &cfg); err != nil {
		return err
	}
	for _, byType := range cfg.ReadRules {
		for _, rule := range byType {
			if err := rule.validate(); err != nil {
				return err
			}
		}
	}
	for _, rule := range cfg.WriteRules {
		if err := rule.validate(); err != nil {
			return err
		}
	}
	p.BaseEnergy = cfg.BaseEnergy
	p.BaseEntropy = cfg.BaseEntropy
	p.ReadRules = cfg.ReadRules
	p.WriteRules = cfg.WriteRules
	return nil
}

// ownershipBucket classifies the target cell's owner relative to the
// executing organism.
func ownershipBucket(targetOwner, callerID int64) string {
	switch {
	case targetOwner == callerID:
		return "own"
	case targetOwner == 0:
		return "unowned"
	default:
		return "foreign"
	}
}

func (p *Universal) lookupReadRule(bucket string, t molecule.Type) (Rule, bool) {
	byType, ok := p.ReadRules[bucket]
	if !ok {
		return Rule{}, false
	}
	if rule, ok := byType[strings.ToUpper(t.String())]; ok {
		return rule, true
	}
	if rule, ok := byType["_default"]; ok {
		return rule, true
	}
	return Rule{}, false
}

func (p *Universal) lookupWriteRule(t molecule.Type) (Rule, bool) {
	if rule, ok := p.WriteRules[strings.ToUpper(t.String())]; ok {
		return rule, true
	}
	if rule, ok := p.WriteRules["_default"]; ok {
		return rule, true
	}
	return Rule{}, false
}

// Resolve computes the cost: a target-occupied write always
// short-circuits to zero (unless this is the write half of a PeekPoke, whose
// preceding peek already cleared the cell); a losing environment-modifying
// instruction pays only the base cost; otherwise the base cost plus any
// matching read/write rule contribution.
func (p *Universal) Resolve(ctx *Context) (int64, int64) {
	kind := ctx.Instruction.Opcode.Kind

	if kind == isa.KindPoke && ctx.Target != nil && !ctx.Target.Molecule.IsEmpty() {
		ctx.Instruction.ConflictStatus = isa.LostTargetOccupied
		return 0, 0
	}

	if isLost(ctx.Instruction.ConflictStatus) {
		return p.BaseEnergy, p.BaseEntropy
	}

	energy, entropy := p.BaseEnergy, p.BaseEntropy
	if ctx.Target == nil {
		return energy, entropy
	}

	scalar := int64(ctx.Target.Molecule.Value())

	if (kind == isa.KindPeek || kind == isa.KindPeekPoke) && p.ReadRules != nil {
		if ctx.Target.Molecule.IsEmpty() {
			ctx.Instruction.ConflictStatus = isa.LostTargetEmpty
		}
		bucket := ownershipBucket(ctx.Target.OwnerID, ctx.Organism.ID)
		if rule, ok := p.lookupReadRule(bucket, ctx.Target.Molecule.Type()); ok {
			e, s := rule.apply(scalar)
			energy += e
			entropy += s
		}
	}

	if (kind == isa.KindPoke || kind == isa.KindPeekPoke) && p.WriteRules != nil {
		if rule, ok := p.lookupWriteRule(ctx.Target.Molecule.Type()); ok {
			e, s := rule.apply(scalar)
			energy += e
			entropy += s
		}
	}

	return energy, entropy
}
