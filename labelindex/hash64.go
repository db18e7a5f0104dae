// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package labelindex

import "encoding/binary"

// u64Hash adapts a precomputed 64-bit digest to the hash.Hash64 interface
// holiman/bloomfilter/v2 expects, since the filter is keyed by label keys we
// have already folded into a uint64 rather than by an incremental byte
// stream.
type u64Hash uint64

func (h *u64Hash) Write(p []byte) (int, error) {
	if len(p) >= 8 {
		*h = u64Hash(binary.LittleEndian.Uint64(p))
	}
	return len(p), nil
}

func (h *u64Hash) Sum(b []byte) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, uint64(*h))
	return append(b, out...)
}

func (h *u64Hash) Reset()         { *h = 0 }
func (h *u64Hash) Size() int      { return 8 }
func (h *u64Hash) BlockSize() int { return 8 }
func (h *u64Hash) Sum64() uint64  { return uint64(*h) }
