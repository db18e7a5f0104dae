// Copyright 2024 The Evochora Authors
// This file is part of Evochora.
//
// Package sim implements the one-tick simulation loop: tick plugins, then
// plan, then conflict resolution, then execute, then newborn bookkeeping
// and birth handlers.
package sim

import (
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/evochora/evochora-sub011/environment"
	"github.com/evochora/evochora-sub011/internal/xlog"
	"github.com/evochora/evochora-sub011/isa"
	"github.com/evochora/evochora-sub011/labelindex"
	"github.com/evochora/evochora-sub011/organism"
	"github.com/evochora/evochora-sub011/program"
	"github.com/evochora/evochora-sub011/rng"
	"github.com/evochora/evochora-sub011/vm"
)

// TickPlugin runs once per tick, before planning.
type TickPlugin interface {
	Execute(s *Simulation) error
}

// BirthHandler runs once per newborn organism, after execute. It may
// mutate the child's owned cells in env; it must never touch other
// organisms.
type BirthHandler interface {
	OnBirth(child *organism.Organism, env *environment.Environment) error
}

// StatefulBirthHandler is a BirthHandler that carries its own state (e.g. an
// RNG snapshot) across save/load cycles owned by an external persistence
// collaborator. Stateless handlers need not implement it.
type StatefulBirthHandler interface {
	BirthHandler
	SaveState() ([]byte, error)
	LoadState([]byte) error
}

// Simulation owns the world, the organism population, and the tick loop.
type Simulation struct {
	Env       *environment.Environment
	Labels    *labelindex.Index
	Registry  *isa.Registry
	Artifacts *program.Registry
	VM        *vm.VM
	Random    rng.Provider

	Organisms []*organism.Organism

	CurrentTick int64
	Paused      bool

	// ParallelPlan enables fanning the plan phase out across organisms via
	// errgroup: each organism's state is its own, and vm.Plan only
	// reads the shared environment, so this is safe as long as results are
	// written into a pre-sized, index-addressed slice rather than appended,
	// which would reorder under concurrent writers.
	ParallelPlan bool

	nextOrganismID int64
	tickPlugins    []TickPlugin
	birthHandlers  []BirthHandler
	newborns       []*organism.Organism
}

// New builds a Simulation. The caller is expected to follow with
// AddTickPlugin/AddBirthHandler/AddOrganism/SetRandomProvider/
// SetProgramArtifacts as needed before the first Tick.
func New(env *environment.Environment, labels *labelindex.Index, registry *isa.Registry, v *vm.VM) *Simulation {
	if labels != nil {
		env.SetObserver(labels)
	}
	return &Simulation{
		Env:            env,
		Labels:         labels,
		Registry:       registry,
		VM:             v,
		nextOrganismID: 1,
	}
}

// AddTickPlugin registers a plugin to run at the start of every tick, in
// registration order. Must be called before the first Tick.
func (s *Simulation) AddTickPlugin(p TickPlugin) { s.tickPlugins = append(s.tickPlugins, p) }

// AddBirthHandler registers a handler to run once per newborn organism,
// after execute, in registration order.
func (s *Simulation) AddBirthHandler(h BirthHandler) { s.birthHandlers = append(s.birthHandlers, h) }

// SetRandomProvider installs the simulation's sole source of
// non-determinism.
func (s *Simulation) SetRandomProvider(r rng.Provider) { s.Random = r }

// SetProgramArtifacts installs the registry of compiled program artifacts
// organisms reference by ProgramID.
func (s *Simulation) SetProgramArtifacts(r *program.Registry) { s.Artifacts = r }

// AddOrganism appends an already-constructed organism (e.g. a bootstrap
// organism placed from a program.Artifact) to the active population,
// assigning it the next organism id if it does not already have one.
func (s *Simulation) AddOrganism(org *organism.Organism) {
	if org.ID == 0 {
		org.ID = s.nextOrganismID
	}
	if org.ID >= s.nextOrganismID {
		s.nextOrganismID = org.ID + 1
	}
	s.Organisms = append(s.Organisms, org)
}

// AddNewOrganism is AddOrganism for an organism minted mid-simulation
// outside of a spawn/fork instruction (e.g. manual bootstrap after the
// first tick); it does not run birth handlers, unlike the in-tick newborn
// path.
func (s *Simulation) AddNewOrganism(org *organism.Organism) { s.AddOrganism(org) }

func (s *Simulation) artifactFor(org *organism.Organism) *program.Artifact {
	if s.Artifacts == nil {
		return nil
	}
	a, _ := s.Artifacts.Get(org.ProgramID)
	return a
}

// Tick advances the simulation by exactly one tick.
func (s *Simulation) Tick() {
	s.newborns = s.newborns[:0]

	s.runTickPlugins()

	instructions := s.planPhase()
	s.resolveConflicts(instructions)
	s.executePhase(instructions)
	s.collectNewborns()
	s.runBirthHandlers()

	s.CurrentTick++
}

func (s *Simulation) runTickPlugins() {
	for _, p := range s.tickPlugins {
		if err := p.Execute(s); err != nil {
			xlog.Warn("tick plugin failed", "error", err)
		}
	}
}

// planPhase plans one instruction per live organism, preserving
// organism-creation order in its result regardless of whether planning ran
// sequentially or fanned out.
func (s *Simulation) planPhase() []*isa.Instruction {
	live := make([]*organism.Organism, 0, len(s.Organisms))
	for _, org := range s.Organisms {
		if !org.Dead {
			live = append(live, org)
		}
	}

	slots := make([]*isa.Instruction, len(live))
	if !s.ParallelPlan || len(live) < 2 {
		for i, org := range live {
			slots[i] = s.VM.Plan(org, s.Env)
		}
		return slots
	}

	var g errgroup.Group
	for i, org := range live {
		i, org := i, org
		g.Go(func() error {
			slots[i] = s.VM.Plan(org, s.Env)
			return nil
		})
	}
	_ = g.Wait() // s.VM.Plan never returns an error; reset-state writes are per-organism
	return slots
}

// resolveConflicts groups environment-modifying
// instructions by contested coordinate, pick the lowest organism id as
// winner, mark the rest lost. Non-modifying instructions, and
// environment-modifying instructions with no target coordinates, are
// immediately marked executable.
func (s *Simulation) resolveConflicts(instructions []*isa.Instruction) {
	byCoord := make(map[int64][]*isa.Instruction)
	for _, instr := range instructions {
		if !instr.Opcode.IsEnvironmentModifying {
			instr.ExecutedInTick = true
			continue
		}
		coords := instr.TargetCoordinates(s.Env)
		if len(coords) == 0 {
			instr.ExecutedInTick = true
			continue
		}
		for _, c := range coords {
			flat := s.Env.FlatIndex(s.Env.Reduce(c))
			byCoord[flat] = append(byCoord[flat], instr)
		}
	}

	flats := make([]int64, 0, len(byCoord))
	for f := range byCoord {
		flats = append(flats, f)
	}
	sort.Slice(flats, func(i, j int) bool { return flats[i] < flats[j] })

	for _, f := range flats {
		group := byCoord[f]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Organism.ID < group[j].Organism.ID
		})
		group[0].ExecutedInTick = true
		group[0].ConflictStatus = isa.WonExecution
		for _, loser := range group[1:] {
			loser.ExecutedInTick = false
			loser.ConflictStatus = isa.LostLowerIDWon
		}
	}
}

// executePhase runs every planned instruction in plan order, clearing
// ownership for any organism that dies mid-phase before the next
// instruction executes. Conflict losers go through the VM too, charged
// their losing cost with their IP advancing, but the VM never runs
// a loser's body.
func (s *Simulation) executePhase(instructions []*isa.Instruction) {
	// A typed nil *labelindex.Index must not reach the LabelResolver
	// interface, or instruction bodies would see a non-nil resolver that
	// panics on use.
	var labels isa.LabelResolver
	if s.Labels != nil {
		labels = s.Labels
	}
	for _, instr := range instructions {
		org := instr.Organism
		wasAlive := !org.Dead
		s.VM.Execute(instr, s.Env, s.artifactFor(org), labels, s.Random)
		if wasAlive && org.Dead {
			s.Env.ClearOwnershipFor(org.ID)
		}
	}
}

// collectNewborns appends organisms spawned during this tick to the active
// population, assigning each its id, parent id, and birth tick. Newborns
// never execute the tick they are created in.
func (s *Simulation) collectNewborns() {
	for _, parent := range s.Organisms {
		if len(parent.Spawned) == 0 {
			continue
		}
		for _, child := range parent.Spawned {
			child.ID = s.nextOrganismID
			s.nextOrganismID++
			child.ParentID = parent.ID
			child.BirthTick = s.CurrentTick
			s.Organisms = append(s.Organisms, child)
			s.newborns = append(s.newborns, child)
		}
		parent.Spawned = nil
	}
}

// runBirthHandlers runs every registered handler once per newborn, in
// registration order; a handler error is logged and does not abort the
// tick.
func (s *Simulation) runBirthHandlers() {
	for _, child := range s.newborns {
		for _, h := range s.birthHandlers {
			if err := h.OnBirth(child, s.Env); err != nil {
				xlog.Warn("birth handler failed", "organism", child.ID, "error", err)
			}
		}
	}
}
