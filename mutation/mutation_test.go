package mutation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/environment"
	"github.com/evochora/evochora-sub011/isa"
	"github.com/evochora/evochora-sub011/molecule"
	"github.com/evochora/evochora-sub011/organism"
	"github.com/evochora/evochora-sub011/rng"
)

func newTestRegistry() *isa.Registry {
	reg := isa.NewRegistry()
	variantA := uint8(0)
	variantB := uint8(1)
	reg.Register(&isa.Opcode{ID: isa.MakeOpcodeID(1, 1, variantA), Name: "ADDI", Signature: isa.Signature{isa.Register, isa.Immediate}})
	reg.Register(&isa.Opcode{ID: isa.MakeOpcodeID(1, 2, variantA), Name: "SUBI", Signature: isa.Signature{isa.Register, isa.Immediate}})
	reg.Register(&isa.Opcode{ID: isa.MakeOpcodeID(0, 0, variantB), Name: "SETI", Signature: isa.Signature{isa.Register, isa.Literal}})
	return reg
}

func TestAlternativesGroupedByVariant(t *testing.T) {
	reg := newTestRegistry()
	g := NewGeneSubstitution(reg, rng.New(1), 1.0)

	addiID := isa.MakeOpcodeID(1, 1, 0)
	subiID := isa.MakeOpcodeID(1, 2, 0)
	setiID := isa.MakeOpcodeID(0, 0, 1)

	assert.Contains(t, g.alternatives[addiID], subiID)
	assert.NotContains(t, g.alternatives[addiID], setiID)
	assert.Empty(t, g.alternatives[setiID])
}

func TestOnBirthNeverMutatesWithoutOwnedCells(t *testing.T) {
	env := environment.New(coord.Shape{8})
	reg := newTestRegistry()
	g := NewGeneSubstitution(reg, rng.New(1), 1.0)

	child := organism.New(7, 1, 0, "p", coord.Vector{0}, coord.Vector{1}, organism.Config{})
	require.NoError(t, g.OnBirth(child, env))
}

func TestOnBirthMutatesCodeWithinVariantGroup(t *testing.T) {
	env := environment.New(coord.Shape{8})
	reg := newTestRegistry()
	addiID := isa.MakeOpcodeID(1, 1, 0)
	subiID := isa.MakeOpcodeID(1, 2, 0)

	env.SetMolecule(molecule.Pack(molecule.CODE, uint32(addiID), 0), coord.Vector{3})
	env.SetOwner(env.FlatIndex(coord.Vector{3}), 7)

	g := NewGeneSubstitution(reg, rng.New(42), 1.0) // rate 1.0 forces a mutation every call
	child := organism.New(7, 1, 0, "p", coord.Vector{0}, coord.Vector{1}, organism.Config{})

	require.NoError(t, g.OnBirth(child, env))

	mutated := env.GetMolecule(coord.Vector{3})
	assert.Equal(t, molecule.CODE, mutated.Type())
	assert.Equal(t, uint32(subiID), mutated.Value(), "the only same-variant alternative to ADDI is SUBI")
}

func TestOnBirthNeverMutatesAtZeroRate(t *testing.T) {
	env := environment.New(coord.Shape{8})
	reg := newTestRegistry()
	addiID := isa.MakeOpcodeID(1, 1, 0)

	env.SetMolecule(molecule.Pack(molecule.CODE, uint32(addiID), 0), coord.Vector{3})
	env.SetOwner(env.FlatIndex(coord.Vector{3}), 7)

	g := NewGeneSubstitution(reg, rng.New(1), 0.0)
	child := organism.New(7, 1, 0, "p", coord.Vector{0}, coord.Vector{1}, organism.Config{})

	require.NoError(t, g.OnBirth(child, env))

	unchanged := env.GetMolecule(coord.Vector{3})
	assert.Equal(t, uint32(addiID), unchanged.Value())
}

func TestMutateRegisterStaysWithinBank(t *testing.T) {
	g := &GeneSubstitution{}
	random := rng.New(3).AsRng()
	for i := 0; i < 50; i++ {
		mol := molecule.Pack(molecule.REGISTER, uint32(organism.DataRegisterBase+1), 0)
		mutated := g.mutateRegister(mol, random)
		id := int(mutated.Value())
		assert.Equal(t, organism.BankData, organism.BankOf(id))
	}
}

func TestMutateLabelKeyStaysWithinKeySpace(t *testing.T) {
	g := &GeneSubstitution{}
	random := rng.New(9).AsRng()
	mol := molecule.Pack(molecule.LABEL, 5, 0)
	mutated := g.mutateLabelKey(mol, random)
	assert.Less(t, mutated.Value(), uint32(1<<20))
	assert.Equal(t, molecule.LABEL, mutated.Type())
}

func TestMutateDataIsScaleProportionalAndClamped(t *testing.T) {
	g := &GeneSubstitution{Exponent: DefaultDataExponent}
	random := rng.New(11).AsRng()

	// A small value has a floor window of 1: the result never strays past
	// value+1.
	for i := 0; i < 100; i++ {
		mutated := g.mutateData(molecule.Pack(molecule.DATA, 1, 0), random)
		assert.Equal(t, molecule.DATA, mutated.Type())
		assert.LessOrEqual(t, mutated.Value(), uint32(2))
	}

	// A large value may drift by up to round(|value|^0.5).
	for i := 0; i < 100; i++ {
		mutated := g.mutateData(molecule.Pack(molecule.DATA, 10000, 0), random)
		assert.InDelta(t, 10000, int(mutated.Value()), 100)
	}

	// The top of the value range clamps rather than wrapping.
	for i := 0; i < 100; i++ {
		mutated := g.mutateData(molecule.Pack(molecule.DATA, molecule.ValueMask, 0), random)
		assert.LessOrEqual(t, mutated.Value(), molecule.ValueMask)
	}
}

func TestNewGeneSubstitutionDefaultsExponent(t *testing.T) {
	g := NewGeneSubstitution(newTestRegistry(), rng.New(1), 1.0)
	assert.Equal(t, DefaultDataExponent, g.Exponent)
}
