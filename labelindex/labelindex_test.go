package labelindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evochora/evochora-sub011/coord"
)

func TestFindTargetExactHammingOneMatches(t *testing.T) {
	shape := coord.Shape{1024, 1024}
	idx := New(shape)

	key := uint32(0b10101010101010101010)
	flat := coord.FlatIndex(coord.Vector{10, 10}, coord.NewStrides(shape))
	idx.AddLabel(key, Entry{FlatIndex: flat, Owner: 1, Marker: 0})

	query := uint32(0b10101010101010101011) // Hamming distance 1
	result, err := idx.FindTarget(query, coord.Vector{10, 10}, 1)
	require.NoError(t, err)
	assert.Equal(t, flat, result)
}

func TestFindTargetBeyondToleranceFails(t *testing.T) {
	shape := coord.Shape{1024, 1024}
	idx := New(shape)

	key := uint32(0b10101010101010101010)
	flat := coord.FlatIndex(coord.Vector{10, 10}, coord.NewStrides(shape))
	idx.AddLabel(key, Entry{FlatIndex: flat, Owner: 1, Marker: 0})

	query := uint32(0b10101010101010100001) // Hamming distance 3 > tolerance 2
	result, err := idx.FindTarget(query, coord.Vector{10, 10}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), result)
}

func TestFindTargetForeignPenaltyPrefersOwn(t *testing.T) {
	shape := coord.Shape{100, 100}
	idx := New(shape)
	strides := coord.NewStrides(shape)

	key := uint32(5)
	ownFlat := coord.FlatIndex(coord.Vector{1, 1}, strides)
	idx.AddLabel(key, Entry{FlatIndex: ownFlat, Owner: 2, Marker: 0})

	result, err := idx.FindTarget(key, coord.Vector{1, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, ownFlat, result)
}

func TestFindTargetFallsBackToForeignInPhase2(t *testing.T) {
	shape := coord.Shape{100, 100}
	idx := New(shape)
	strides := coord.NewStrides(shape)

	key := uint32(9)
	foreignFlat := coord.FlatIndex(coord.Vector{5, 5}, strides)
	idx.AddLabel(key, Entry{FlatIndex: foreignFlat, Owner: 99, Marker: 0})

	result, err := idx.FindTarget(key, coord.Vector{5, 5}, 1)
	require.NoError(t, err)
	assert.Equal(t, foreignFlat, result)
}

func TestRemoveLabel(t *testing.T) {
	shape := coord.Shape{16, 16}
	idx := New(shape)
	key := uint32(3)
	flat := coord.FlatIndex(coord.Vector{2, 2}, coord.NewStrides(shape))
	idx.AddLabel(key, Entry{FlatIndex: flat, Owner: 1})
	idx.RemoveLabel(key, flat)

	result, err := idx.FindTarget(key, coord.Vector{2, 2}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), result)
}

func TestUpdateOwnerVisibleAcrossNeighborBuckets(t *testing.T) {
	shape := coord.Shape{16, 16}
	idx := New(shape)
	key := uint32(3)
	flat := coord.FlatIndex(coord.Vector{2, 2}, coord.NewStrides(shape))
	idx.AddLabel(key, Entry{FlatIndex: flat, Owner: 1})
	idx.UpdateOwner(flat, 5)

	// A neighbor-key lookup (Hamming distance 1) should see the updated owner.
	neighborKey := key ^ 1
	result, err := idx.FindTarget(neighborKey, coord.Vector{2, 2}, 5)
	require.NoError(t, err)
	assert.Equal(t, flat, result)
}

func TestMissingRandomProviderError(t *testing.T) {
	shape := coord.Shape{16, 16}
	idx := New(shape, WithSelectionSpread(1.0, nil))
	_, err := idx.FindTarget(1, coord.Vector{0, 0}, 1)
	assert.ErrorIs(t, err, ErrMissingRandomProvider)
}
