package gormstorage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/demoview/tickpack/internal/geo"
	"github.com/demoview/tickpack/internal/model"
	"github.com/demoview/tickpack/internal/storage"
	"github.com/demoview/tickpack/internal/storage/storagetest"
	"github.com/demoview/tickpack/pkg/tickpack"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.DatabaseModels...))
	return db
}

func TestNewDefaults(t *testing.T) {
	b := New(Dependencies{})
	require.NotNil(t, b)
	assert.Equal(t, 66, b.deps.PathEvery)
	assert.Equal(t, 2*time.Second, b.deps.FlushInterval)
	assert.NotNil(t, b.deps.Logger)
}

func TestStoreWithoutDB(t *testing.T) {
	b := New(Dependencies{})
	require.NoError(t, b.Init())
	defer b.Close()

	err := b.Store(context.Background(), storagetest.Demo(t), storagetest.Meta("a.tkss"))
	assert.ErrorIs(t, err, ErrNoDB)
}

func TestCloseWithoutInit(t *testing.T) {
	b := New(Dependencies{})
	assert.NoError(t, b.Close())
}

func TestStore(t *testing.T) {
	db := newTestDB(t)
	b := New(Dependencies{DB: db, PathEvery: 1, FlushInterval: time.Hour})
	require.NoError(t, b.Init())

	state := storagetest.Demo(t)
	require.NoError(t, b.Store(context.Background(), state, storagetest.Meta("demos/match.tkss")))
	assert.Equal(t, 1, b.Pending())

	var demo model.Demo
	require.NoError(t, db.Preload("Players").Preload("Kills").First(&demo).Error)

	assert.Equal(t, "demos/match.tkss", demo.FileName)
	assert.Equal(t, "cp_process_final", demo.MapName)
	assert.Equal(t, "fixture", demo.Server)
	assert.Equal(t, uint32(6), demo.HeaderTicks)
	assert.Equal(t, 6, demo.TickCount)
	assert.Equal(t, 2, demo.PlayerCount)
	assert.Equal(t, 1, demo.BuildingCount)
	assert.Equal(t, state.Size(), demo.Size)
	assert.Equal(t, state.Data(), demo.Data)

	bounds, err := geo.BoundsFromPoints(demo.BoundaryMin, demo.BoundaryMax)
	require.NoError(t, err)
	assert.Equal(t, storagetest.World, bounds)

	var manifest tickpack.Manifest
	require.NoError(t, json.Unmarshal(demo.Manifest, &manifest))
	assert.Equal(t, state.Manifest().TickCount, manifest.TickCount)

	require.Len(t, demo.Players, 2)
	assert.Equal(t, "soldier", demo.Players[0].Name)
	assert.Equal(t, "[U:1:2]", demo.Players[1].SteamID)
	// soldier is alive at every tick, medic only for ticks 0 to 2
	assert.Equal(t, 6, geo.PathLength(demo.Players[0].Path))
	assert.Equal(t, 3, geo.PathLength(demo.Players[1].Path))

	require.Len(t, demo.Kills, 1)
	assert.Equal(t, uint32(4), demo.Kills[0].Tick)
	assert.Equal(t, "tf_projectile_rocket", demo.Kills[0].Weapon)

	require.NoError(t, b.Close())
	assert.Equal(t, 0, b.Pending())

	var perf []model.EncodePerformance
	require.NoError(t, db.Find(&perf).Error)
	require.Len(t, perf, 1)
	assert.Equal(t, demo.ID, perf[0].DemoID)
	assert.InDelta(t, 12.0, perf[0].DurationMs, 1e-3)
	assert.Equal(t, state.Size(), perf[0].Bytes)
}

func TestStoreCanceled(t *testing.T) {
	db := newTestDB(t)
	b := New(Dependencies{DB: db, FlushInterval: time.Hour})
	require.NoError(t, b.Init())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Store(ctx, storagetest.Demo(t), storagetest.Meta("a.tkss"))
	require.Error(t, err)
	assert.Equal(t, 0, b.Pending())
}

func TestFlushRequeuesOnError(t *testing.T) {
	db := newTestDB(t)
	b := New(Dependencies{DB: db, FlushInterval: time.Hour})
	require.NoError(t, db.Migrator().DropTable(&model.EncodePerformance{}))

	b.performances.Push(model.EncodePerformance{FileName: "a.tkss"})
	b.flush()
	assert.Equal(t, 1, b.Pending())
}

func TestPlayerPathStride(t *testing.T) {
	state := storagetest.Demo(t)

	path, err := playerPath(state, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, geo.PathLength(path))

	path, err = playerPath(state, 1, 4)
	require.NoError(t, err)
	// tick 0 alive, tick 4 dead
	assert.Equal(t, 0, geo.PathLength(path))
}
