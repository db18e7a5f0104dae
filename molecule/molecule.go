// Copyright 2024 The Evochora Authors
// This file is part of Evochora.
//
// Evochora is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Evochora is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Evochora. If not, see <http://www.gnu.org/licenses/>.

// Package molecule implements the packed 32-bit word that is the atom of the
// Evochora world: every cell, every register value, and every instruction
// argument is a Molecule.
package molecule

import "fmt"

// Type is the small, closed set of molecule type tags.
type Type uint8

const (
	// EMPTY is the zero molecule's implicit type (an empty cell).
	EMPTY Type = iota
	// CODE molecules hold an opcode id in their value bits.
	CODE
	// DATA molecules hold an arbitrary integer payload.
	DATA
	// ENERGY molecules represent a packet of harvestable energy.
	ENERGY
	// STRUCTURE molecules are inert, immovable scaffolding.
	STRUCTURE
	// LABEL molecules are jump targets; writes to LABEL cells notify the
	// label index.
	LABEL
	// LABELREF molecules hold a reference to a label's 20-bit key.
	LABELREF
	// REGISTER molecules hold a register id.
	REGISTER
)

// typeNames is indexed by Type for String().
var typeNames = [...]string{"EMPTY", "CODE", "DATA", "ENERGY", "STRUCTURE", "LABEL", "LABELREF", "REGISTER"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "UNKNOWN"
}

// Bit layout of a Molecule: [marker(4)|type(4)|value(24)].
//
// 24 value bits comfortably cover both the 20-bit label-key space used by
// the label index and the full opcode-id range: an opcode id written into
// a CODE cell always falls within [0, ValueMask].
const (
	valueBits  = 24
	typeBits   = 4
	markerBits = 4

	// ValueMask is the maximum representable value payload.
	ValueMask uint32 = 1<<valueBits - 1
	// TypeShift is the bit offset of the type field.
	TypeShift = valueBits
	// MarkerShift is the bit offset of the marker field.
	MarkerShift = valueBits + typeBits
	// MarkerMask isolates the marker field after shifting right by MarkerShift.
	MarkerMask uint32 = 1<<markerBits - 1
	typeMask   uint32 = 1<<typeBits - 1
)

// Molecule is a packed, value-typed 32-bit world atom. The zero Molecule is
// an empty cell.
type Molecule uint32

// Pack builds a Molecule from its three fields. Value is truncated to
// ValueMask and marker to MarkerMask; callers that need the invariant
// enforced strictly should check beforehand.
func Pack(t Type, value uint32, marker uint8) Molecule {
	return Molecule(uint32(marker&uint8(MarkerMask))<<MarkerShift |
		uint32(t&Type(typeMask))<<TypeShift |
		value&ValueMask)
}

// Unpack decomposes a Molecule into its three fields. Round-tripping
// Pack(Unpack(m)) == m holds for every representable triple.
func (m Molecule) Unpack() (Type, uint32, uint8) {
	return m.Type(), m.Value(), m.Marker()
}

// Type returns the molecule's type tag.
func (m Molecule) Type() Type {
	return Type((uint32(m) >> TypeShift) & typeMask)
}

// Value returns the molecule's value payload.
func (m Molecule) Value() uint32 {
	return uint32(m) & ValueMask
}

// Marker returns the molecule's 4-bit marker, used for in-progress label
// ownership transfer.
func (m Molecule) Marker() uint8 {
	return uint8((uint32(m) >> MarkerShift) & MarkerMask)
}

// IsEmpty reports whether m is the zero molecule.
func (m Molecule) IsEmpty() bool {
	return m == 0
}

// WithMarker returns a copy of m with its marker field replaced.
func (m Molecule) WithMarker(marker uint8) Molecule {
	return Pack(m.Type(), m.Value(), marker)
}

func (m Molecule) String() string {
	return fmt.Sprintf("%s(%d)m%d", m.Type(), m.Value(), m.Marker())
}
