package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveForIsDeterministic(t *testing.T) {
	p1 := New(42)
	p2 := New(42)

	d1 := p1.DeriveFor("labelMatching", 7)
	d2 := p2.DeriveFor("labelMatching", 7)

	assert.Equal(t, d1.AsRng().Int63(), d2.AsRng().Int63())
}

func TestDeriveForNamespacesDiffer(t *testing.T) {
	p := New(42)
	a := p.DeriveFor("labelMatching", 7).AsRng().Int63()
	b := p.DeriveFor("mutation", 7).AsRng().Int63()
	assert.NotEqual(t, a, b)
}
