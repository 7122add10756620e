package tickpack

import "github.com/demoview/tickpack/pkg/core"

// Manifest is the metadata a viewer needs to slice the flattened buffer.
type Manifest struct {
	Map              string           `json:"map"`
	Server           string           `json:"server,omitempty"`
	Nick             string           `json:"nick,omitempty"`
	Duration         float32          `json:"duration"`
	Boundaries       core.WorldBounds `json:"boundaries"`
	IntervalPerTick  float32          `json:"interval_per_tick"`
	TickCount        int              `json:"tick_count"`
	PlayerCount      int              `json:"player_count"`
	BuildingCount    int              `json:"building_count"`
	MaxBuildingCount int              `json:"max_building_count"`
	PlayerStride     int              `json:"player_stride"`
	BuildingStride   int              `json:"building_stride"`
	Size             int              `json:"size"`
	Players          []ManifestPlayer `json:"players"`
	Kills            []core.Kill      `json:"kills"`
}

// ManifestPlayer is the identity of one player slot.
type ManifestPlayer struct {
	Slot     int    `json:"slot"`
	Name     string `json:"name"`
	UserID   uint16 `json:"user_id"`
	EntityID uint32 `json:"entity_id"`
	SteamID  string `json:"steam_id"`
}

// Manifest returns the metadata view of the state.
func (s *EncodedState) Manifest() Manifest {
	players := make([]ManifestPlayer, s.playerCount)
	for slot := range players {
		info, _ := s.identity(slot)
		players[slot] = ManifestPlayer{
			Slot:     slot,
			Name:     info.Name,
			UserID:   info.UserID,
			EntityID: info.EntityID,
			SteamID:  info.SteamID,
		}
	}
	kills := s.kills
	if kills == nil {
		kills = []core.Kill{}
	}

	return Manifest{
		Map:              s.header.Map,
		Server:           s.header.Server,
		Nick:             s.header.Nick,
		Duration:         s.header.Duration,
		Boundaries:       s.world,
		IntervalPerTick:  s.intervalPerTick,
		TickCount:        s.tickCount,
		PlayerCount:      s.playerCount,
		BuildingCount:    s.buildingCount,
		MaxBuildingCount: s.maxBuildingCount,
		PlayerStride:     PlayerRecordSize,
		BuildingStride:   BuildingRecordSize,
		Size:             len(s.data),
		Players:          players,
		Kills:            kills,
	}
}
