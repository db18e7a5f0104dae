// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package thermo

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/evochora/evochora-sub011/isa"
)

// Manager resolves, then caches forever, the Policy for a given opcode.
// Resolution order: name override, family override, default.
//
// The cache is a grow-on-demand slice addressed by isa.Opcode.RegistryIndex
// (a dense, small integer assigned at registration time) rather than by the
// raw, sparse OpcodeID: a direct opcode-id-indexed array would be a
// multi-megabyte allocation for a 24-bit id space. Resolution is idempotent
// and lock-free on the fast path; concurrent first resolutions of the same
// opcode are benign.
type Manager struct {
	defaultPolicy   Policy
	nameOverrides   map[string]Policy
	familyOverrides map[string]Policy

	growMu sync.Mutex
	cache  []atomic.Pointer[Policy]
}

// NewManager builds a Manager from cfg, instantiating and initializing every
// referenced policy class up front. Returns a *ConfigError if the default
// policy is missing or any referenced class fails to construct/initialize.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg.Default.ClassName == "" {
		return nil, &ConfigError{Op: "default", Err: ErrMissingDefault}
	}
	def, err := instantiate(cfg.Default)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		defaultPolicy:   def,
		nameOverrides:   make(map[string]Policy),
		familyOverrides: make(map[string]Policy),
	}

	for key, pc := range cfg.Overrides.Instructions {
		p, err := instantiate(pc)
		if err != nil {
			return nil, err
		}
		for _, name := range splitNames(key) {
			m.nameOverrides[name] = p
		}
	}
	for key, pc := range cfg.Overrides.Families {
		p, err := instantiate(pc)
		if err != nil {
			return nil, err
		}
		m.familyOverrides[key] = p
	}

	return m, nil
}

func splitNames(key string) []string {
	parts := strings.Split(key, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Resolve returns the Policy bound to op, resolving and caching it on first
// use. Safe for concurrent callers resolving the same opcode id for the
// first time: resolution is pure and the cache write is a single pointer
// store, so a repeated resolution is benign.
func (m *Manager) Resolve(op *isa.Opcode) Policy {
	idx := op.RegistryIndex
	m.ensureCap(idx)
	if p := m.cache[idx].Load(); p != nil {
		return *p
	}
	resolved := m.resolveSlow(op)
	m.cache[idx].Store(&resolved)
	return resolved
}

func (m *Manager) resolveSlow(op *isa.Opcode) Policy {
	if p, ok := m.nameOverrides[op.Name]; ok {
		return p
	}
	if p, ok := m.familyOverrides[op.Family.String()]; ok {
		return p
	}
	return m.defaultPolicy
}

func (m *Manager) ensureCap(idx int) {
	if idx < len(m.cache) {
		return
	}
	m.growMu.Lock()
	defer m.growMu.Unlock()
	if idx < len(m.cache) {
		return
	}
	grown := make([]atomic.Pointer[Policy], idx+1)
	copy(grown, m.cache)
	m.cache = grown
}
