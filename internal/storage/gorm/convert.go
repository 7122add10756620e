package gormstorage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/demoview/tickpack/internal/geo"
	"github.com/demoview/tickpack/internal/model"
	"github.com/demoview/tickpack/internal/storage"
	"github.com/demoview/tickpack/pkg/core"
	"github.com/demoview/tickpack/pkg/tickpack"
	"github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// demoFromState converts an encoded demo into its database row. Player paths
// sample every pathEvery ticks and skip ticks where the player is dead.
func demoFromState(state *tickpack.EncodedState, meta storage.Meta, pathEvery int) (model.Demo, error) {
	if pathEvery < 1 {
		pathEvery = 1
	}

	manifest, err := json.Marshal(state.Manifest())
	if err != nil {
		return model.Demo{}, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	header := state.Header()
	lo, hi := geo.BoundsPoints(state.Bounds())

	demo := model.Demo{
		FileName:         meta.FileName,
		MapName:          header.Map,
		Server:           header.Server,
		Nick:             header.Nick,
		HeaderTicks:      header.Ticks,
		Duration:         header.Duration,
		IntervalPerTick:  state.IntervalPerTick(),
		TickCount:        state.TickCount(),
		PlayerCount:      state.PlayerCount(),
		BuildingCount:    state.BuildingCount(),
		MaxBuildingCount: state.MaxBuildingCount(),
		BoundaryMin:      lo,
		BoundaryMax:      hi,
		Outline:          geo.Outline(state.Bounds()),
		Manifest:         datatypes.JSON(manifest),
		Size:             state.Size(),
		Data:             state.Data(),
	}

	for slot := 0; slot < state.PlayerCount(); slot++ {
		info, err := state.PlayerInfo(slot)
		if err != nil {
			return model.Demo{}, err
		}
		path, err := playerPath(state, slot, pathEvery)
		if err != nil {
			return model.Demo{}, err
		}
		demo.Players = append(demo.Players, model.DemoPlayer{
			Slot:     slot,
			Name:     info.Name,
			UserID:   info.UserID,
			EntityID: info.EntityID,
			SteamID:  info.SteamID,
			Path:     path,
		})
	}

	for i := 0; i < state.KillCount(); i++ {
		kill, err := state.Kill(i)
		if err != nil {
			return model.Demo{}, err
		}
		demo.Kills = append(demo.Kills, model.DemoKill{
			Seq:        i,
			Tick:       kill.Tick,
			AttackerID: kill.AttackerID,
			AssisterID: kill.AssisterID,
			VictimID:   kill.VictimID,
			Weapon:     kill.Weapon,
		})
	}

	return demo, nil
}

func playerPath(state *tickpack.EncodedState, slot, every int) (geom.LineString, error) {
	var positions []core.Vector2
	for tick := 0; tick < state.TickCount(); tick += every {
		p, err := state.Player(tick, slot)
		if err != nil {
			return geom.LineString{}, err
		}
		if p.Health == 0 {
			continue
		}
		positions = append(positions, p.Position)
	}
	return geo.Path(positions), nil
}

// performanceFromState builds the encode timing row of a stored demo
func performanceFromState(demoID uint, state *tickpack.EncodedState, meta storage.Meta) model.EncodePerformance {
	at := meta.EncodedAt
	if at.IsZero() {
		at = time.Now()
	}
	return model.EncodePerformance{
		Time:       at,
		DemoID:     demoID,
		FileName:   meta.FileName,
		DurationMs: float32(meta.EncodeDuration.Microseconds()) / 1000,
		TickCount:  state.TickCount(),
		Bytes:      state.Size(),
	}
}
