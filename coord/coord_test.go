package coord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReduceWrapsNegative(t *testing.T) {
	shape := Shape{10, 10}
	got := Reduce(Vector{-1, 11}, shape)
	assert.Equal(t, Vector{9, 1}, got)
}

func TestFlatIndexRoundTrip(t *testing.T) {
	shape := Shape{4, 5, 3}
	strides := NewStrides(shape)
	v := Vector{2, 3, 1}
	flat := FlatIndex(v, strides)
	back := FromFlatIndex(flat, shape, strides)
	assert.Equal(t, v, back)
}

func TestSize(t *testing.T) {
	assert.Equal(t, int64(1024*1024), Size(Shape{1024, 1024}))
}

func TestChebyshevToroidalWraps(t *testing.T) {
	shape := Shape{10, 10}
	// (0,0) and (9,9) are adjacent around the torus in both dimensions.
	d := ChebyshevToroidal(Vector{0, 0}, Vector{9, 9}, shape)
	assert.Equal(t, int32(1), d)
}
