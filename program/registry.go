// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package program

import (
	lru "github.com/hashicorp/golang-lru"
)

// Registry is a bounded cache of parsed program artifacts keyed by program
// id. Many organisms typically share one programId; the cache means the bootstrap
// loader (or a spawn/fork instruction minting a child with the same
// programId) never has to re-validate or re-parse the artifact per
// organism.
type Registry struct {
	cache *lru.Cache
}

// NewRegistry creates a Registry holding at most size artifacts.
func NewRegistry(size int) (*Registry, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Registry{cache: cache}, nil
}

// Register associates programID with an already-validated Artifact.
func (r *Registry) Register(programID string, artifact *Artifact) {
	r.cache.Add(programID, artifact)
}

// Get returns the artifact registered for programID, if any.
func (r *Registry) Get(programID string) (*Artifact, bool) {
	v, ok := r.cache.Get(programID)
	if !ok {
		return nil, false
	}
	return v.(*Artifact), true
}
