// Copyright 2024 The Evochora Authors
// This file is part of Evochora.

package sim

import (
	"github.com/evochora/evochora-sub011/coord"
	"github.com/evochora/evochora-sub011/molecule"
)

// EnergyDistribution is a TickPlugin that scatters ENERGY molecules into
// empty, unowned cells at the start of each tick, so organisms have
// something to harvest. The number of packets per tick and the value of
// each packet are fixed at construction; placement is drawn from the
// simulation's random provider, derived under its own namespace so the
// distribution stream stays independent of mutation and label selection.
type EnergyDistribution struct {
	PacketsPerTick int
	PacketValue    uint32
}

// NewEnergyDistribution builds the plugin. packetValue is truncated to the
// molecule value range.
func NewEnergyDistribution(packetsPerTick int, packetValue uint32) *EnergyDistribution {
	return &EnergyDistribution{
		PacketsPerTick: packetsPerTick,
		PacketValue:    packetValue & molecule.ValueMask,
	}
}

// Execute implements TickPlugin. Cells that come up non-empty or owned are
// skipped rather than retried, so a crowded world simply receives less
// energy this tick.
func (p *EnergyDistribution) Execute(s *Simulation) error {
	if s.Random == nil {
		return nil
	}
	random := s.Random.DeriveFor("energyDistribution", s.CurrentTick).AsRng()
	size := coord.Size(s.Env.Shape())
	for i := 0; i < p.PacketsPerTick; i++ {
		flat := random.Int63n(size)
		if !s.Env.GetMoleculeInt(flat).IsEmpty() || s.Env.GetOwnerIdInt(flat) != 0 {
			continue
		}
		s.Env.SetMoleculeByIndex(flat, molecule.Pack(molecule.ENERGY, p.PacketValue, 0))
	}
	return nil
}
