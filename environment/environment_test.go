package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/molecule"
)

type recordingObserver struct {
	labelChanges []int64
	ownerChanges []int64
}

func (r *recordingObserver) OnLabelChange(flatIndex int64, _, _ molecule.Molecule, _ int64) {
	r.labelChanges = append(r.labelChanges, flatIndex)
}
func (r *recordingObserver) OnOwnerChange(flatIndex int64, _ int64, _ uint8) {
	r.ownerChanges = append(r.ownerChanges, flatIndex)
}

func TestToroidalWrap(t *testing.T) {
	env := New(coord.Shape{8, 8})
	env.SetMolecule(molecule.Pack(molecule.DATA, 5, 0), coord.Vector{-1, 8})
	got := env.GetMolecule(coord.Vector{7, 0})
	assert.Equal(t, uint32(5), got.Value())
}

func TestSetMoleculeNotifiesLabelIndex(t *testing.T) {
	env := New(coord.Shape{4, 4})
	obs := &recordingObserver{}
	env.SetObserver(obs)

	env.SetMolecule(molecule.Pack(molecule.LABEL, 10, 0), coord.Vector{1, 1})
	require.Len(t, obs.labelChanges, 1)

	// Overwriting a non-label with a non-label must not notify.
	env.SetMolecule(molecule.Pack(molecule.DATA, 1, 0), coord.Vector{2, 2})
	assert.Len(t, obs.labelChanges, 1)

	// Overwriting the label cell (even with non-label) must notify, since the
	// old word was a LABEL.
	env.SetMolecule(molecule.Pack(molecule.DATA, 0, 0), coord.Vector{1, 1})
	assert.Len(t, obs.labelChanges, 2)
}

func TestOwnershipAndClearing(t *testing.T) {
	env := New(coord.Shape{4, 4})
	obs := &recordingObserver{}
	env.SetObserver(obs)

	flat1 := env.FlatIndex(coord.Vector{0, 0})
	flat2 := env.FlatIndex(coord.Vector{1, 0})
	env.SetMolecule(molecule.Pack(molecule.LABEL, 1, 0), coord.Vector{0, 0})
	env.SetOwner(flat1, 7)
	env.SetOwner(flat2, 7)

	owned := env.GetCellsOwnedBy(7)
	assert.ElementsMatch(t, []int64{flat1, flat2}, owned)
	assert.Equal(t, int64(7), env.GetOwnerIdInt(flat1))

	env.ClearOwnershipFor(7)
	assert.Equal(t, int64(0), env.GetOwnerIdInt(flat1))
	assert.Equal(t, int64(0), env.GetOwnerIdInt(flat2))
	assert.Empty(t, env.GetCellsOwnedBy(7))
	// flat1 held a LABEL, so clearing ownership must have notified.
	assert.Contains(t, obs.ownerChanges, flat1)
}
