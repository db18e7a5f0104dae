package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/environment"
	"github.com/evochora/evochora-sub011/isa"
	"github.com/evochora/evochora-sub011/molecule"
	"github.com/evochora/evochora-sub011/organism"
	"github.com/evochora/evochora-sub011/thermo"
)

func newManager(t *testing.T, energy, entropy int64) *thermo.Manager {
	t.Helper()
	mgr, err := thermo.NewManager(&thermo.Config{
		Default: thermo.PolicyConfig{ClassName: "FixedCost", Options: map[string]interface{}{
			"energy": energy, "entropy": entropy,
		}},
	})
	require.NoError(t, err)
	return mgr
}

func TestExecuteChargesCostAndAdvancesIP(t *testing.T) {
	env := environment.New(coord.Shape{16})
	org := organism.New(1, 0, 0, "p", coord.Vector{0}, coord.Vector{1}, organism.Config{MaxEnergy: 100, MaxEntropy: 100, ErrorPenaltyCost: 5})

	opcodeID := isa.MakeOpcodeID(0, 0, 0)
	registry := isa.NewRegistry()
	registry.Register(&isa.Opcode{ID: opcodeID, Name: "NOP", Execute: func(*isa.ExecutionContext, *isa.Instruction) error { return nil }})

	env.SetMolecule(molecule.Pack(molecule.CODE, uint32(opcodeID), 0), coord.Vector{0})

	v := New(registry, newManager(t, 2, 1), true)
	instr := v.Plan(org, env)
	v.Execute(instr, env, nil, nil, nil)

	assert.Equal(t, int64(98), org.ER)
	assert.Equal(t, int64(1), org.SR)
	assert.Equal(t, coord.Vector{1}, org.IP)
	assert.False(t, org.InstructionFailed)
}

func TestExecutePanicBecomesInstructionFailureAndStillAdvances(t *testing.T) {
	env := environment.New(coord.Shape{16})
	org := organism.New(1, 0, 0, "p", coord.Vector{0}, coord.Vector{1}, organism.Config{MaxEnergy: 100, MaxEntropy: 100, ErrorPenaltyCost: 3})

	opcodeID := isa.MakeOpcodeID(0, 0, 1)
	registry := isa.NewRegistry()
	registry.Register(&isa.Opcode{ID: opcodeID, Name: "BOOM", Execute: func(*isa.ExecutionContext, *isa.Instruction) error {
		panic("kaboom")
	}})
	env.SetMolecule(molecule.Pack(molecule.CODE, uint32(opcodeID), 0), coord.Vector{0})

	v := New(registry, newManager(t, 1, 0), true)
	instr := v.Plan(org, env)
	v.Execute(instr, env, nil, nil, nil)

	assert.True(t, org.InstructionFailed)
	assert.Equal(t, int64(100-1-3), org.ER) // base cost + error penalty
	assert.Equal(t, coord.Vector{1}, org.IP, "IP still advances after a recovered panic")
}

func TestExecuteKillsOrganismOnEnergyExhaustion(t *testing.T) {
	env := environment.New(coord.Shape{16})
	org := organism.New(1, 0, 0, "p", coord.Vector{0}, coord.Vector{1}, organism.Config{MaxEnergy: 1, MaxEntropy: 100, ErrorPenaltyCost: 0})

	opcodeID := isa.MakeOpcodeID(0, 0, 2)
	registry := isa.NewRegistry()
	registry.Register(&isa.Opcode{ID: opcodeID, Name: "NOP2", Execute: func(*isa.ExecutionContext, *isa.Instruction) error { return nil }})
	env.SetMolecule(molecule.Pack(molecule.CODE, uint32(opcodeID), 0), coord.Vector{0})

	v := New(registry, newManager(t, 5, 0), true)
	instr := v.Plan(org, env)
	v.Execute(instr, env, nil, nil, nil)

	assert.True(t, org.Dead)
	assert.Equal(t, "Ran out of energy", org.DeathReason)
}

func TestPeekNextInstructionHasNoSideEffects(t *testing.T) {
	env := environment.New(coord.Shape{16})
	org := organism.New(1, 0, 0, "p", coord.Vector{0}, coord.Vector{1}, organism.Config{MaxEnergy: 100, MaxEntropy: 100})
	// Empty cell -> NOP, but org.InstructionFailed/FailureReason must be
	// restored to whatever they were before peeking.
	org.Fail("pre-existing failure")

	registry := isa.NewRegistry()
	v := New(registry, newManager(t, 1, 0), true)
	_ = v.PeekNextInstruction(org, env)

	assert.True(t, org.InstructionFailed)
	assert.Equal(t, "pre-existing failure", org.FailureReason)
}

// TestStackReadsPeekAtPlanCommitAtExecute drives the full peek-then-commit
// stack flow: planning a POPR-style instruction peeks the top of the data
// stack without consuming it (so re-planning is idempotent), and the pop
// only happens inside Execute, right before the body runs.
func TestStackReadsPeekAtPlanCommitAtExecute(t *testing.T) {
	env := environment.New(coord.Shape{16})
	org := organism.New(1, 0, 0, "p", coord.Vector{0}, coord.Vector{1}, organism.Config{MaxEnergy: 100, MaxEntropy: 100})
	org.PushStack(molecule.Pack(molecule.DATA, 9, 0))

	opcodeID := isa.MakeOpcodeID(4, 0, 0)
	registry := isa.NewRegistry()
	registry.Register(&isa.Opcode{
		ID: opcodeID, Name: "POPR", Family: isa.FamilyStack,
		Signature:  isa.Signature{isa.Register},
		StackReads: 1,
		Execute: func(ctx *isa.ExecutionContext, instr *isa.Instruction) error {
			ctx.Org.SetRegister(instr.Operands[0].RegisterID, instr.StackOperands[0].Literal)
			return nil
		},
	})
	env.SetMolecule(molecule.Pack(molecule.CODE, uint32(opcodeID), 0), coord.Vector{0})
	env.SetMolecule(molecule.Pack(molecule.REGISTER, uint32(organism.DataRegisterBase), 0), coord.Vector{1})

	v := New(registry, newManager(t, 1, 0), true)
	instr := v.Plan(org, env)

	require.Len(t, instr.StackOperands, 1)
	assert.True(t, instr.StackOperands[0].FromStack)
	assert.Len(t, org.DataStack, 1, "planning peeks, never pops")

	v.Execute(instr, env, nil, nil, nil)

	assert.Empty(t, org.DataStack, "the read commits during execute")
	assert.Equal(t, uint32(9), org.GetRegister(organism.DataRegisterBase).Value())
	assert.False(t, org.InstructionFailed)
}
