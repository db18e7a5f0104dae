// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package labelindex

import (
	"github.com/evochora/evochora-sub011/molecule"
)

// keyMask truncates a molecule's 24-bit value payload to the 20-bit label
// key space the index matches against.
const keyMask = KeySpace - 1

// OnLabelChange implements environment.ChangeObserver for label writes: a
// cell whose old contents were a LABEL is removed from the index, and a
// cell whose new contents are a LABEL is inserted with the writing cell's
// owner and the new molecule's marker.
func (idx *Index) OnLabelChange(flatIndex int64, oldWord, newWord molecule.Molecule, owner int64) {
	if oldWord.Type() == molecule.LABEL {
		idx.RemoveLabel(oldWord.Value()&keyMask, flatIndex)
	}
	if newWord.Type() == molecule.LABEL {
		idx.AddLabel(newWord.Value()&keyMask, Entry{
			FlatIndex: flatIndex,
			Owner:     owner,
			Marker:    newWord.Marker(),
		})
	}
}

// OnOwnerChange implements environment.ChangeObserver for ownership
// changes to a cell currently holding a LABEL: the stored entry's owner and
// marker are updated in place, visible from every pre-expanded bucket.
func (idx *Index) OnOwnerChange(flatIndex int64, newOwner int64, marker uint8) {
	idx.UpdateOwner(flatIndex, newOwner)
	idx.UpdateMarker(flatIndex, marker)
}
