package thermo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/isa"
	"github.com/evochora/evochora-sub011/molecule"
	"github.com/evochora/evochora-sub011/organism"
)

func newTestOrg() *organism.Organism {
	return organism.New(1, 0, 0, "p", coord.Vector{0}, coord.Vector{1}, organism.Config{MaxEnergy: 1000, MaxEntropy: 1000, ErrorPenaltyCost: 1})
}

func TestFixedCostInitializeDefaultsAndOverrides(t *testing.T) {
	p := &FixedCost{Energy: 1, Entropy: 1}
	require.NoError(t, p.Initialize(map[string]interface{}{"energy": int64(5), "entropy": int64(-2)}))
	assert.Equal(t, int64(5), p.Energy)
	assert.Equal(t, int64(-2), p.Entropy)
}

func TestFixedCostResolve(t *testing.T) {
	p := &FixedCost{Energy: 3, Entropy: 1}
	instr := &isa.Instruction{Opcode: &isa.Opcode{Kind: isa.KindOther}}
	ctx := &Context{Instruction: instr, Organism: newTestOrg()}
	e, s := p.Resolve(ctx)
	assert.Equal(t, int64(3), e)
	assert.Equal(t, int64(1), s)
}

func TestFixedCostTargetOccupiedShortCircuits(t *testing.T) {
	p := &FixedCost{Energy: 3, Entropy: 1}
	instr := &isa.Instruction{Opcode: &isa.Opcode{Kind: isa.KindPoke}}
	ctx := &Context{Instruction: instr, Target: &TargetInfo{Molecule: molecule.Pack(molecule.DATA, 1, 0)}}
	e, s := p.Resolve(ctx)
	assert.Equal(t, int64(0), e)
	assert.Equal(t, int64(0), s)
	assert.Equal(t, isa.LostTargetOccupied, instr.ConflictStatus)
}

func TestUniversalReadRuleByOwnershipBucket(t *testing.T) {
	p := &Universal{}
	opts := map[string]interface{}{
		"base-energy":  float64(1),
		"base-entropy": float64(1),
		"read-rules": map[string]interface{}{
			"own": map[string]interface{}{
				"DATA": map[string]interface{}{"energy": float64(0), "entropy": float64(1)},
			},
			"foreign": map[string]interface{}{
				"DATA": map[string]interface{}{"energy": float64(5), "entropy": float64(2)},
			},
		},
	}
	require.NoError(t, p.Initialize(opts))

	instr := &isa.Instruction{Opcode: &isa.Opcode{Kind: isa.KindPeek}}
	org := newTestOrg()

	ownCtx := &Context{Instruction: instr, Organism: org, Target: &TargetInfo{
		Molecule: molecule.Pack(molecule.DATA, 10, 0), OwnerID: org.ID,
	}}
	e, s := p.Resolve(ownCtx)
	assert.Equal(t, int64(1), e) // base only, rule energy contributes 0
	assert.Equal(t, int64(2), s) // base(1) + rule(1)

	foreignCtx := &Context{Instruction: &isa.Instruction{Opcode: &isa.Opcode{Kind: isa.KindPeek}}, Organism: org, Target: &TargetInfo{
		Molecule: molecule.Pack(molecule.DATA, 10, 0), OwnerID: org.ID + 1,
	}}
	e2, s2 := p.Resolve(foreignCtx)
	assert.Equal(t, int64(6), e2) // base(1) + rule(5)
	assert.Equal(t, int64(3), s2)
}

func TestUniversalRejectsRuleMissingEntropySpec(t *testing.T) {
	p := &Universal{}
	opts := map[string]interface{}{
		"write-rules": map[string]interface{}{
			"DATA": map[string]interface{}{"energy": float64(1)},
		},
	}
	err := p.Initialize(opts)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "entropy") || err == ErrMissingEntropySpec)
}

func TestManagerResolutionOrder(t *testing.T) {
	cfg := &Config{
		Default: PolicyConfig{ClassName: "FixedCost", Options: map[string]interface{}{"energy": int64(1), "entropy": int64(1)}},
		Overrides: OverridesConfig{
			Instructions: map[string]PolicyConfig{
				"ADDI,SUBI": {ClassName: "FixedCost", Options: map[string]interface{}{"energy": int64(9), "entropy": int64(1)}},
			},
			Families: map[string]PolicyConfig{
				"memory": {ClassName: "FixedCost", Options: map[string]interface{}{"energy": int64(4), "entropy": int64(1)}},
			},
		},
	}
	mgr, err := NewManager(cfg)
	require.NoError(t, err)

	reg := isa.NewRegistry()
	addi := &isa.Opcode{ID: isa.MakeOpcodeID(1, 1, 0), Name: "ADDI", Family: isa.FamilyArithmetic}
	poki := &isa.Opcode{ID: isa.MakeOpcodeID(2, 1, 0), Name: "POKI", Family: isa.FamilyMemory}
	nop := &isa.Opcode{ID: isa.MakeOpcodeID(0, 0, 0), Name: "NOP", Family: isa.FamilyMisc}
	reg.Register(addi)
	reg.Register(poki)
	reg.Register(nop)

	e, _ := mgr.Resolve(addi).Resolve(&Context{Instruction: &isa.Instruction{Opcode: addi}})
	assert.Equal(t, int64(9), e, "name override wins")

	e2, _ := mgr.Resolve(poki).Resolve(&Context{Instruction: &isa.Instruction{Opcode: poki}})
	assert.Equal(t, int64(4), e2, "family override wins when no name override")

	e3, _ := mgr.Resolve(nop).Resolve(&Context{Instruction: &isa.Instruction{Opcode: nop}})
	assert.Equal(t, int64(1), e3, "default wins otherwise")
}

func TestManagerMissingDefaultIsConfigError(t *testing.T) {
	_, err := NewManager(&Config{})
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestPeekPokeDisablesPokeOccupiedShortCircuit(t *testing.T) {
	p := &PeekPoke{}
	require.NoError(t, p.Initialize(nil))
	instr := &isa.Instruction{Opcode: &isa.Opcode{Kind: isa.KindPeekPoke}}
	ctx := &Context{Instruction: instr, Target: &TargetInfo{Molecule: molecule.Pack(molecule.DATA, 1, 0)}}
	e, s := p.Resolve(ctx)
	assert.Equal(t, p.Peek.Energy+p.Poke.Energy, e)
	assert.Equal(t, p.Peek.Entropy+p.Poke.Entropy, s)
	assert.NotEqual(t, isa.LostTargetOccupied, instr.ConflictStatus)
}
