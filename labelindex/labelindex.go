// Copyright 2024 The Evochora Authors
// This file is part of Evochora.
//
// Evochora is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package labelindex implements the Hamming-tolerant fuzzy label resolver:
// given a 20-bit query key and a caller owner, it returns the flat index of
// the best-matching LABEL molecule, or -1.
package labelindex

import (
	"errors"
	"math/bits"

	bloomfilter "github.com/holiman/bloomfilter/v2"

	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/rng"
)

// KeyBits is the width of a label key.
const KeyBits = 20

// KeySpace is the number of distinct 20-bit keys (2^20).
const KeySpace = 1 << KeyBits

// Defaults, tunable at construction time.
const (
	DefaultHammingWeight  = 50
	DefaultForeignPenalty = 100
	DefaultTolerance      = 2
)

// ErrMissingRandomProvider is returned by FindTarget when selectionSpread>0
// but no RandomProvider was configured.
var ErrMissingRandomProvider = errors.New("labelindex: selection spread requires a random provider")

// Entry is a single candidate kept by the index for a (possibly
// Hamming-neighboring) key.
type Entry struct {
	FlatIndex int64
	Owner     int64
	Marker    uint8
}

// IsForeign reports whether e is foreign to callerOwner: owned by someone
// else, or mid-ownership-transfer (non-zero marker).
func (e Entry) IsForeign(callerOwner int64) bool {
	return e.Owner != callerOwner || e.Marker != 0
}

// storedEntry additionally remembers the exact key it was inserted under,
// so RemoveLabel/UpdateOwner/UpdateMarker can find and mutate it across all
// of its pre-expanded neighbor keys without re-deriving the neighbor set.
type storedEntry struct {
	exactKey uint32
	entry    Entry
}

// Index is the fuzzy label resolver. Not safe for concurrent mutation; the
// environment that owns it is single-threaded per tick.
type Index struct {
	shape           coord.Shape
	hammingWeight   int
	foreignPenalty  int
	tolerance       int
	selectionSpread float64
	random          rng.Provider

	// buckets[key] holds every entry whose exact or tolerance-neighboring
	// key equals key; keys are pre-expanded on insert.
	buckets map[uint32][]*storedEntry
	// byFlatIndex lets RemoveLabel/UpdateOwner/UpdateMarker find an entry's
	// storedEntry (and hence its exact key) without a bucket scan.
	byFlatIndex map[int64]*storedEntry

	presence *bloomfilter.Filter
}

// Option configures an Index at construction time.
type Option func(*Index)

// WithTolerance overrides the default Hamming tolerance.
func WithTolerance(tolerance int) Option { return func(i *Index) { i.tolerance = tolerance } }

// WithWeights overrides the default Hamming weight and foreign penalty.
func WithWeights(hammingWeight, foreignPenalty int) Option {
	return func(i *Index) {
		i.hammingWeight = hammingWeight
		i.foreignPenalty = foreignPenalty
	}
}

// WithSelectionSpread enables stochastic phase-1 selection.
func WithSelectionSpread(spread float64, random rng.Provider) Option {
	return func(i *Index) {
		i.selectionSpread = spread
		i.random = random
	}
}

// New builds an empty Index for a world of the given shape (shape is needed
// to score the toroidal distance term).
func New(shape coord.Shape, opts ...Option) *Index {
	// Sized for about a million (2^20) inserted keys at a low false-positive
	// rate; the filter only gates the expensive neighbor-expansion path in
	// FindTarget, so false positives merely cost a wasted scan, never
	// correctness.
	filter, err := bloomfilter.NewOptimal(1<<20, 0.01)
	if err != nil {
		// NewOptimal only fails for degenerate (zero) parameters; the
		// constants above are never degenerate.
		panic(err)
	}
	idx := &Index{
		shape:          shape,
		hammingWeight:  DefaultHammingWeight,
		foreignPenalty: DefaultForeignPenalty,
		tolerance:      DefaultTolerance,
		buckets:        make(map[uint32][]*storedEntry),
		byFlatIndex:    make(map[int64]*storedEntry),
		presence:       filter,
	}
	for _, o := range opts {
		o(idx)
	}
	return idx
}

// neighborKeys returns key and every key within Hamming distance <= tolerance
// of it, within the 20-bit key space.
func neighborKeys(key uint32, tolerance int) []uint32 {
	out := []uint32{key}
	if tolerance >= 1 {
		for b := 0; b < KeyBits; b++ {
			out = append(out, key^(1<<uint(b)))
		}
	}
	if tolerance >= 2 {
		for b1 := 0; b1 < KeyBits; b1++ {
			for b2 := b1 + 1; b2 < KeyBits; b2++ {
				out = append(out, key^(1<<uint(b1))^(1<<uint(b2)))
			}
		}
	}
	return out
}

// AddLabel inserts entry under key, pre-expanding it into every key within
// the index's tolerance.
func (idx *Index) AddLabel(key uint32, entry Entry) {
	stored := &storedEntry{exactKey: key, entry: entry}
	idx.byFlatIndex[entry.FlatIndex] = stored
	idx.presence.Add(keyHash(key))
	for _, k := range neighborKeys(key, idx.tolerance) {
		idx.buckets[k] = append(idx.buckets[k], stored)
	}
}

// RemoveLabel removes the entry at flatIndex from every bucket it was
// pre-expanded into.
func (idx *Index) RemoveLabel(key uint32, flatIndex int64) {
	stored, ok := idx.byFlatIndex[flatIndex]
	if !ok {
		return
	}
	for _, k := range neighborKeys(stored.exactKey, idx.tolerance) {
		idx.buckets[k] = removeStored(idx.buckets[k], stored)
		if len(idx.buckets[k]) == 0 {
			delete(idx.buckets, k)
		}
	}
	delete(idx.byFlatIndex, flatIndex)
	_ = key // key is accepted for API symmetry with AddLabel/the environment's call site
}

func removeStored(list []*storedEntry, target *storedEntry) []*storedEntry {
	for i, s := range list {
		if s == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// UpdateOwner mutates the owner of the entry at flatIndex in place (entries
// are pre-expanded by pointer, so one update is visible from every bucket).
func (idx *Index) UpdateOwner(flatIndex int64, newOwner int64) {
	if stored, ok := idx.byFlatIndex[flatIndex]; ok {
		stored.entry.Owner = newOwner
	}
}

// UpdateMarker mutates the marker of the entry at flatIndex in place.
func (idx *Index) UpdateMarker(flatIndex int64, newMarker uint8) {
	if stored, ok := idx.byFlatIndex[flatIndex]; ok {
		stored.entry.Marker = newMarker
	}
}

// candidate pairs a scored entry with its computed score for selection.
type candidate struct {
	entry Entry
	score float64
}

// FindTarget resolves the flat index of the best-matching LABEL cell for a
// query key issued from caller at position callerPos by organism
// callerOwner. Returns -1 if nothing matches within tolerance.
func (idx *Index) FindTarget(queryKey uint32, callerPos coord.Vector, callerOwner int64) (int64, error) {
	if idx.selectionSpread > 0 && idx.random == nil {
		return -1, ErrMissingRandomProvider
	}

	// Phase 1: the query key's own bucket, non-foreign only. Buckets are
	// pre-expanded, so this already covers every entry within tolerance.
	phase1 := idx.candidatesAt(queryKey, queryKey, callerPos, callerOwner, false)
	if len(phase1) > 0 {
		if idx.selectionSpread > 0 {
			return idx.weightedPick(phase1).FlatIndex, nil
		}
		return idx.lowestTiebreak(phase1).FlatIndex, nil
	}

	// Phase 2: no non-foreign candidate was found; scan every key within
	// tolerance again, this time allowing foreign candidates. Skip the scan entirely
	// if the bloom filter says the key space near queryKey holds nothing.
	if !idx.presenceNear(queryKey) {
		return -1, nil
	}
	phase2 := idx.candidatesWithin(queryKey, callerPos, callerOwner)
	if len(phase2) == 0 {
		return -1, nil
	}
	return idx.lowestTiebreak(phase2).FlatIndex, nil
}

func (idx *Index) presenceNear(queryKey uint32) bool {
	for _, k := range neighborKeys(queryKey, idx.tolerance) {
		if idx.presence.Contains(keyHash(k)) {
			return true
		}
	}
	return false
}

// candidatesAt scans the bucket for exactBucketKey, scoring each stored
// entry against queryKey, optionally excluding foreign candidates.
func (idx *Index) candidatesAt(exactBucketKey, queryKey uint32, callerPos coord.Vector, callerOwner int64, allowForeign bool) []candidate {
	var out []candidate
	for _, stored := range idx.buckets[exactBucketKey] {
		if !allowForeign && stored.entry.IsForeign(callerOwner) {
			continue
		}
		out = append(out, candidate{entry: stored.entry, score: idx.score(queryKey, stored.exactKey, callerPos, stored.entry, callerOwner)})
	}
	return out
}

// candidatesWithin scans every bucket within tolerance of queryKey,
// deduplicating by flat index (an entry may appear in more than one
// neighbor bucket) and keeping only entries whose own key is within
// tolerance of queryKey (a neighbor bucket also holds entries up to twice
// the tolerance away).
func (idx *Index) candidatesWithin(queryKey uint32, callerPos coord.Vector, callerOwner int64) []candidate {
	seen := make(map[int64]bool)
	var out []candidate
	for _, k := range neighborKeys(queryKey, idx.tolerance) {
		for _, stored := range idx.buckets[k] {
			if seen[stored.entry.FlatIndex] {
				continue
			}
			seen[stored.entry.FlatIndex] = true
			if bits.OnesCount32(queryKey^stored.exactKey) > idx.tolerance {
				continue
			}
			out = append(out, candidate{entry: stored.entry, score: idx.score(queryKey, stored.exactKey, callerPos, stored.entry, callerOwner)})
		}
	}
	return out
}

// score ranks a candidate; lower is better.
func (idx *Index) score(queryKey, candidateKey uint32, callerPos coord.Vector, entry Entry, callerOwner int64) float64 {
	hamming := bits.OnesCount32(queryKey ^ candidateKey)
	candidatePos := coord.FromFlatIndex(entry.FlatIndex, idx.shape, coord.NewStrides(idx.shape))
	dist := coord.ChebyshevToroidal(callerPos, candidatePos, idx.shape)
	s := float64(idx.hammingWeight*hamming) + float64(dist)
	if entry.IsForeign(callerOwner) {
		s += float64(idx.foreignPenalty)
	}
	return s
}

// lowestTiebreak picks the lowest score, breaking ties by lowest owner id
// then lowest flat index.
func (idx *Index) lowestTiebreak(cands []candidate) Entry {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.score < best.score ||
			(c.score == best.score && c.entry.Owner < best.entry.Owner) ||
			(c.score == best.score && c.entry.Owner == best.entry.Owner && c.entry.FlatIndex < best.entry.FlatIndex) {
			best = c
		}
	}
	return best.entry
}

// weightedPick implements the optional stochastic phase-1 selection: weight
// = 10000 * spread / (spread + score).
func (idx *Index) weightedPick(cands []candidate) Entry {
	weights := make([]float64, len(cands))
	var total float64
	for i, c := range cands {
		w := 10000 * idx.selectionSpread / (idx.selectionSpread + c.score)
		weights[i] = w
		total += w
	}
	r := idx.random.AsRng().Float64() * total
	var acc float64
	for i, w := range weights {
		acc += w
		if r <= acc {
			return cands[i].entry
		}
	}
	return cands[len(cands)-1].entry
}

// keyHash adapts a uint32 label key into the hash.Hash64 the bloom filter
// expects, spreading the low bits across the full 64-bit space.
func keyHash(key uint32) *u64Hash {
	h := u64Hash(uint64(key) * 0x9E3779B97F4A7C15)
	return &h
}
