// Package storagetest builds encoded demos for storage backend tests.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/demoview/tickpack/internal/source"
	"github.com/demoview/tickpack/internal/storage"
	"github.com/demoview/tickpack/pkg/core"
	"github.com/demoview/tickpack/pkg/tickpack"
	"github.com/stretchr/testify/require"
)

// World is the bounds every fixture snapshot carries.
var World = core.WorldBounds{
	Min: core.Vector2{X: -4096, Y: -4096},
	Max: core.Vector2{X: 4096, Y: 4096},
}

// Header is the header of the fixture demo.
var Header = core.Header{Map: "cp_process_final", Server: "fixture", Nick: "SourceTV", Ticks: 6, Duration: 0.09}

// Snapshots returns six snapshots with two players walking in opposite
// directions, one sentry and a kill at tick 4. The medic dies at tick 4.
func Snapshots() []*core.Snapshot {
	var snaps []*core.Snapshot
	for tick := uint32(1); tick <= 6; tick++ {
		w := World
		f := float32(tick)
		medicHealth := uint16(150)
		if tick >= 4 {
			medicHealth = 0
		}
		snap := &core.Snapshot{
			Tick:  tick,
			World: &w,
			Players: []core.PlayerState{
				{
					Position: core.Vector2{X: 100 * f, Y: 0},
					Health:   125,
					Team:     core.TeamRed,
					Class:    core.ClassSoldier,
					Info:     &core.UserInfo{Name: "soldier", UserID: 2, EntityID: 1, SteamID: "[U:1:1]"},
				},
				{
					Position: core.Vector2{X: -100 * f, Y: 50 * f},
					Health:   medicHealth,
					Team:     core.TeamBlue,
					Class:    core.ClassMedic,
					Info:     &core.UserInfo{Name: "medic", UserID: 3, EntityID: 2, SteamID: "[U:1:2]"},
				},
			},
			Buildings: map[uint32]core.Building{
				7: {Kind: core.KindSentry, Position: core.Vector2{X: 256, Y: 256}, Health: 150, Team: core.TeamRed, Level: 2},
			},
		}
		if tick == 4 {
			snap.Kills = []core.Kill{{Tick: 4, AttackerID: 2, AssisterID: core.NoAssister, VictimID: 3, Weapon: "tf_projectile_rocket"}}
		}
		snaps = append(snaps, snap)
	}
	return snaps
}

// Demo encodes the fixture demo.
func Demo(t testing.TB) *tickpack.EncodedState {
	t.Helper()
	raw, err := source.Marshal(source.CodecNone, Header, Snapshots())
	require.NoError(t, err)
	state, err := tickpack.Encode(context.Background(), raw, nil)
	require.NoError(t, err)
	return state
}

// Meta returns store metadata for the fixture demo.
func Meta(fileName string) storage.Meta {
	return storage.Meta{
		FileName:       fileName,
		SourceSize:     4096,
		EncodeDuration: 12 * time.Millisecond,
		EncodedAt:      time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC),
		Tag:            "scrim",
	}
}
