// Package aggregator folds a stream of snapshots into per-slot record
// buffers, one fixed-size record per demo tick.
package aggregator

import (
	"errors"
	"sort"

	"github.com/demoview/tickpack/internal/record"
	"github.com/demoview/tickpack/pkg/core"
)

// ErrFinished is returned by Push after Finish has been called.
var ErrFinished = errors.New("aggregator already finished")

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithStableSlots keys players by their identity entity id and buildings by
// their collection key instead of by position. Entities without a stable id
// fall back to positional slots.
func WithStableSlots() Option {
	return func(a *Aggregator) {
		a.stable = true
	}
}

// Aggregator accumulates snapshots. A fresh Aggregator must be used for each
// demo.
type Aggregator struct {
	header core.Header
	stable bool

	world        *core.WorldBounds
	worldChanges int

	// lastTick is the demo tick up to which records have been written.
	lastTick uint32
	ticks    int

	playerSlots   *slotTable
	buildingSlots *slotTable
	players       []*slotBuffer
	buildings     []*slotBuffer

	maxBuildings int
	kills        []core.Kill
	identities   map[int]core.UserInfo

	finished bool
}

// New returns an empty Aggregator for a demo described by header.
func New(header core.Header, opts ...Option) *Aggregator {
	a := &Aggregator{
		header:        header,
		playerSlots:   newSlotTable(),
		buildingSlots: newSlotTable(),
		identities:    make(map[int]core.UserInfo),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Push folds one snapshot into the aggregate. Snapshots without world bounds
// are ignored and Push reports false. Every tick in [lastTick, snap.Tick)
// receives one record per entity present in snap.
func (a *Aggregator) Push(snap *core.Snapshot) (bool, error) {
	if a.finished {
		return false, ErrFinished
	}
	if snap == nil || snap.World == nil {
		return false, nil
	}

	if a.world == nil {
		w := *snap.World
		a.world = &w
	} else if *snap.World != *a.world {
		a.worldChanges++
	}

	if snap.Tick > a.lastTick {
		a.fill(snap, int(snap.Tick-a.lastTick))
		a.lastTick = snap.Tick
	}

	a.kills = append(a.kills, snap.Kills...)
	return true, nil
}

func (a *Aggregator) fill(snap *core.Snapshot, span int) {
	world := *a.world

	playerSlots := make([]int, len(snap.Players))
	playerRecs := make([][record.PlayerSize]byte, len(snap.Players))
	claimed := make(map[slotKey]bool, len(snap.Players))
	for i, p := range snap.Players {
		slot := a.playerSlot(i, p, claimed)
		playerSlots[i] = slot
		playerRecs[i] = record.PackPlayer(record.PlayerFromState(p), world)
		if p.Info != nil {
			if _, seen := a.identities[slot]; !seen {
				a.identities[slot] = *p.Info
			}
		}
	}

	keys := make([]uint32, 0, len(snap.Buildings))
	for k := range snap.Buildings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	buildingSlots := make([]int, len(keys))
	buildingRecs := make([][record.BuildingSize]byte, len(keys))
	for i, k := range keys {
		buildingSlots[i] = a.buildingSlot(i, k)
		buildingRecs[i] = record.PackBuilding(record.BuildingFromState(snap.Buildings[k]), world)
	}

	if len(keys) > a.maxBuildings {
		a.maxBuildings = len(keys)
	}

	for n := 0; n < span; n++ {
		for i, slot := range playerSlots {
			a.players[slot].writeAt(a.ticks, playerRecs[i][:])
		}
		for i, slot := range buildingSlots {
			a.buildings[slot].writeAt(a.ticks, buildingRecs[i][:])
		}
		a.ticks++
	}
}

// playerSlot resolves the slot of the player at index. A stable key already
// claimed by an earlier player of the same snapshot falls back to the
// positional key.
func (a *Aggregator) playerSlot(index int, p core.PlayerState, claimed map[slotKey]bool) int {
	key := positional(index)
	if a.stable && p.Info != nil {
		if k := stableKey(uint64(p.Info.EntityID)); !claimed[k] {
			key = k
		}
	}
	claimed[key] = true
	slot, created := a.playerSlots.resolve(key)
	if created {
		a.players = append(a.players, newSlotBuffer(record.PlayerSize, a.capacity()))
	}
	return slot
}

func (a *Aggregator) buildingSlot(index int, key uint32) int {
	k := positional(index)
	if a.stable {
		k = stableKey(uint64(key))
	}
	slot, created := a.buildingSlots.resolve(k)
	if created {
		a.buildings = append(a.buildings, newSlotBuffer(record.BuildingSize, a.capacity()))
	}
	return slot
}

func (a *Aggregator) capacity() int {
	if int(a.header.Ticks) > a.ticks {
		return int(a.header.Ticks)
	}
	return a.ticks
}

// Finish pads every slot buffer to the final tick count. Further pushes fail
// with ErrFinished.
func (a *Aggregator) Finish() {
	if a.finished {
		return
	}
	for _, b := range a.players {
		b.padTo(a.ticks)
	}
	for _, b := range a.buildings {
		b.padTo(a.ticks)
	}
	a.finished = true
}

// Finished reports whether Finish has been called.
func (a *Aggregator) Finished() bool {
	return a.finished
}

// Header returns the demo header the aggregator was created with.
func (a *Aggregator) Header() core.Header {
	return a.header
}

// World returns the bounds used to quantize positions, and false if no
// snapshot with bounds has been pushed.
func (a *Aggregator) World() (core.WorldBounds, bool) {
	if a.world == nil {
		return core.WorldBounds{}, false
	}
	return *a.world, true
}

// WorldChanges counts snapshots whose bounds differed from the first bounds
// seen. Positions in those snapshots are still quantized against the first
// bounds.
func (a *Aggregator) WorldChanges() int {
	return a.worldChanges
}

// Ticks returns the number of records written per slot so far.
func (a *Aggregator) Ticks() int {
	return a.ticks
}

// LastTick returns the demo tick up to which records have been written.
func (a *Aggregator) LastTick() uint32 {
	return a.lastTick
}

// SecondsPerTick is the demo duration divided by the header tick count, or 0
// for a header without ticks.
func (a *Aggregator) SecondsPerTick() float32 {
	if a.header.Ticks == 0 {
		return 0
	}
	return a.header.Duration / float32(a.header.Ticks)
}

// Players returns the player buffers in slot order.
func (a *Aggregator) Players() [][]byte {
	return bytesOf(a.players)
}

// Buildings returns the building buffers in slot order.
func (a *Aggregator) Buildings() [][]byte {
	return bytesOf(a.buildings)
}

// MaxBuildingCount is the largest number of buildings seen in one snapshot.
func (a *Aggregator) MaxBuildingCount() int {
	return a.maxBuildings
}

// Kills returns the kill log in delivery order.
func (a *Aggregator) Kills() []core.Kill {
	return a.kills
}

// Identity returns the identity first observed for a player slot.
func (a *Aggregator) Identity(slot int) (core.UserInfo, bool) {
	info, ok := a.identities[slot]
	return info, ok
}

func bytesOf(bufs []*slotBuffer) [][]byte {
	out := make([][]byte, len(bufs))
	for i, b := range bufs {
		out[i] = b.Bytes()
	}
	return out
}
