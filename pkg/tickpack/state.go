package tickpack

import (
	"github.com/demoview/tickpack/internal/aggregator"
	"github.com/demoview/tickpack/internal/record"
	"github.com/demoview/tickpack/pkg/core"
)

// Stride sizes of the flattened buffer.
const (
	PlayerRecordSize   = record.PlayerSize
	BuildingRecordSize = record.BuildingSize
)

// EncodedState is the immutable result of an encode. Its buffer holds every
// player slot's records followed by every building slot's records, each slot
// covering TickCount ticks.
type EncodedState struct {
	header           core.Header
	world            core.WorldBounds
	intervalPerTick  float32
	playerCount      int
	buildingCount    int
	maxBuildingCount int
	tickCount        int
	data             []byte
	kills            []core.Kill
	identities       []*core.UserInfo
}

func flatten(agg *aggregator.Aggregator) *EncodedState {
	world, _ := agg.World()
	players := agg.Players()
	buildings := agg.Buildings()
	ticks := agg.Ticks()

	data := make([]byte, 0, len(players)*ticks*record.PlayerSize+len(buildings)*ticks*record.BuildingSize)
	for _, b := range players {
		data = append(data, b...)
	}
	for _, b := range buildings {
		data = append(data, b...)
	}

	identities := make([]*core.UserInfo, len(players))
	for slot := range players {
		if info, ok := agg.Identity(slot); ok {
			identities[slot] = &info
		}
	}

	return &EncodedState{
		header:           agg.Header(),
		world:            world,
		intervalPerTick:  agg.SecondsPerTick(),
		playerCount:      len(players),
		buildingCount:    len(buildings),
		maxBuildingCount: agg.MaxBuildingCount(),
		tickCount:        ticks,
		data:             data,
		kills:            append([]core.Kill(nil), agg.Kills()...),
		identities:       identities,
	}
}

// Header returns the demo header.
func (s *EncodedState) Header() core.Header { return s.header }

// MapName returns the map the demo was recorded on.
func (s *EncodedState) MapName() string { return s.header.Map }

// Bounds returns the world bounds positions are quantized against.
func (s *EncodedState) Bounds() core.WorldBounds { return s.world }

// IntervalPerTick returns the demo duration in seconds divided by its tick
// count.
func (s *EncodedState) IntervalPerTick() float32 { return s.intervalPerTick }

// PlayerCount returns the number of player slots.
func (s *EncodedState) PlayerCount() int { return s.playerCount }

// BuildingCount returns the number of building slots in the buffer.
func (s *EncodedState) BuildingCount() int { return s.buildingCount }

// MaxBuildingCount returns the most buildings present at one time.
func (s *EncodedState) MaxBuildingCount() int { return s.maxBuildingCount }

// TickCount returns the number of records per slot.
func (s *EncodedState) TickCount() int { return s.tickCount }

// Data returns the flattened buffer. Callers must not modify it.
func (s *EncodedState) Data() []byte { return s.data }

// Size returns the length of the flattened buffer in bytes.
func (s *EncodedState) Size() int { return len(s.data) }

// PlayerOffset returns the offset of a player slot's first record.
func (s *EncodedState) PlayerOffset(slot int) (int, error) {
	if slot < 0 || slot >= s.playerCount {
		return 0, outOfRange("player slot", slot, s.playerCount)
	}
	return slot * s.tickCount * record.PlayerSize, nil
}

// BuildingOffset returns the offset of a building slot's first record.
func (s *EncodedState) BuildingOffset(slot int) (int, error) {
	if slot < 0 || slot >= s.buildingCount {
		return 0, outOfRange("building slot", slot, s.buildingCount)
	}
	return s.playerCount*s.tickCount*record.PlayerSize + slot*s.tickCount*record.BuildingSize, nil
}

func (s *EncodedState) checkTick(tick int) error {
	if tick < 0 || tick >= s.tickCount {
		return outOfRange("tick", tick, s.tickCount)
	}
	return nil
}

// Player decodes the record of a player slot at a tick.
func (s *EncodedState) Player(tick, slot int) (record.Player, error) {
	base, err := s.PlayerOffset(slot)
	if err != nil {
		return record.Player{}, err
	}
	if err := s.checkTick(tick); err != nil {
		return record.Player{}, err
	}
	var raw [record.PlayerSize]byte
	copy(raw[:], s.data[base+tick*record.PlayerSize:])
	return record.UnpackPlayer(raw, s.world), nil
}

// Building decodes the record of a building slot at a tick. A zero record
// means the building did not exist at that tick.
func (s *EncodedState) Building(tick, slot int) (record.Building, error) {
	base, err := s.BuildingOffset(slot)
	if err != nil {
		return record.Building{}, err
	}
	if err := s.checkTick(tick); err != nil {
		return record.Building{}, err
	}
	var raw [record.BuildingSize]byte
	copy(raw[:], s.data[base+tick*record.BuildingSize:])
	return record.UnpackBuilding(raw, s.world), nil
}

// KillCount returns the number of kills in the demo.
func (s *EncodedState) KillCount() int { return len(s.kills) }

// Kill returns a kill by index.
func (s *EncodedState) Kill(index int) (core.Kill, error) {
	if index < 0 || index >= len(s.kills) {
		return core.Kill{}, outOfRange("kill", index, len(s.kills))
	}
	return s.kills[index], nil
}

// KillTicks returns the tick of every kill.
func (s *EncodedState) KillTicks() []uint32 {
	out := make([]uint32, len(s.kills))
	for i, k := range s.kills {
		out[i] = k.Tick
	}
	return out
}

// KillAttackers returns the attacker id of every kill.
func (s *EncodedState) KillAttackers() []uint16 {
	return s.killIDs(func(k core.Kill) uint16 { return k.AttackerID })
}

// KillAssisters returns the assister id of every kill, core.NoAssister where
// nobody assisted.
func (s *EncodedState) KillAssisters() []uint16 {
	return s.killIDs(func(k core.Kill) uint16 { return k.AssisterID })
}

// KillVictims returns the victim id of every kill.
func (s *EncodedState) KillVictims() []uint16 {
	return s.killIDs(func(k core.Kill) uint16 { return k.VictimID })
}

func (s *EncodedState) killIDs(field func(core.Kill) uint16) []uint16 {
	out := make([]uint16, len(s.kills))
	for i, k := range s.kills {
		out[i] = field(k)
	}
	return out
}

// KillWeapon returns the weapon of the kill at index.
func (s *EncodedState) KillWeapon(index int) (string, error) {
	k, err := s.Kill(index)
	return k.Weapon, err
}

func (s *EncodedState) identity(slot int) (core.UserInfo, error) {
	if slot < 0 || slot >= s.playerCount {
		return core.UserInfo{}, outOfRange("player slot", slot, s.playerCount)
	}
	if info := s.identities[slot]; info != nil {
		return *info, nil
	}
	return core.UserInfo{}, nil
}

// PlayerInfo returns the identity first seen for a player slot. Slots the
// source never identified return a zero UserInfo.
func (s *EncodedState) PlayerInfo(slot int) (core.UserInfo, error) {
	return s.identity(slot)
}

// PlayerName returns the display name of a player slot.
func (s *EncodedState) PlayerName(slot int) (string, error) {
	info, err := s.identity(slot)
	return info.Name, err
}

// PlayerUserID returns the user id of a player slot.
func (s *EncodedState) PlayerUserID(slot int) (uint16, error) {
	info, err := s.identity(slot)
	return info.UserID, err
}

// PlayerEntityID returns the entity id of a player slot.
func (s *EncodedState) PlayerEntityID(slot int) (uint32, error) {
	info, err := s.identity(slot)
	return info.EntityID, err
}

// PlayerSteamID returns the platform id of a player slot.
func (s *EncodedState) PlayerSteamID(slot int) (string, error) {
	info, err := s.identity(slot)
	return info.SteamID, err
}
