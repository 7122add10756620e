package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Demo{},
	&DemoPlayer{},
	&DemoKill{},
	&EncodePerformance{},
}

////////////////////////
// DEMO MODELS
////////////////////////

// Demo is one encoded demo. Data holds the flattened record buffer.
type Demo struct {
	gorm.Model
	FileName         string          `json:"fileName" gorm:"size:255;index:idx_demo_file_name"`
	MapName          string          `json:"mapName" gorm:"size:127;index:idx_demo_map_name"`
	Server           string          `json:"server" gorm:"size:255"`
	Nick             string          `json:"nick" gorm:"size:127"`
	HeaderTicks      uint32          `json:"headerTicks"`
	Duration         float32         `json:"duration"`
	IntervalPerTick  float32         `json:"intervalPerTick"`
	TickCount        int             `json:"tickCount"`
	PlayerCount      int             `json:"playerCount"`
	BuildingCount    int             `json:"buildingCount"`
	MaxBuildingCount int             `json:"maxBuildingCount"`
	BoundaryMin      geom.Point      `json:"boundaryMin" gorm:"type:geometry"`
	BoundaryMax      geom.Point      `json:"boundaryMax" gorm:"type:geometry"`
	Outline          geom.LineString `json:"outline" gorm:"type:geometry"`
	Manifest         datatypes.JSON  `json:"manifest"`
	Size             int             `json:"size"`
	Data             []byte          `json:"-"`
	Players          []DemoPlayer    `json:"players" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Kills            []DemoKill      `json:"kills" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Demo) TableName() string {
	return "demos"
}

// DemoPlayer is the identity of one player slot in a demo
type DemoPlayer struct {
	ID       uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	DemoID   uint            `json:"demoId" gorm:"index:idx_demoplayer_demo_id"`
	Slot     int             `json:"slot"`
	Name     string          `json:"name" gorm:"size:127"`
	UserID   uint16          `json:"userId"`
	EntityID uint32          `json:"entityId"`
	SteamID  string          `json:"steamId" gorm:"size:64;index:idx_demoplayer_steam_id"`
	Path     geom.LineString `json:"path" gorm:"type:geometry"` // sampled positions while alive
}

func (*DemoPlayer) TableName() string {
	return "demo_players"
}

// DemoKill is one kill event of a demo
type DemoKill struct {
	ID         uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	DemoID     uint   `json:"demoId" gorm:"index:idx_demokill_demo_id"`
	Seq        int    `json:"seq"`
	Tick       uint32 `json:"tick" gorm:"index:idx_demokill_tick"`
	AttackerID uint16 `json:"attackerId"`
	AssisterID uint16 `json:"assisterId"`
	VictimID   uint16 `json:"victimId"`
	Weapon     string `json:"weapon" gorm:"size:64"`
}

func (*DemoKill) TableName() string {
	return "demo_kills"
}

////////////////////////
// PERFORMANCE
////////////////////////

// EncodePerformance records how long one demo took to encode
type EncodePerformance struct {
	Time       time.Time `json:"time" gorm:"index:idx_encodeperformance_time"`
	DemoID     uint      `json:"demoId" gorm:"index:idx_encodeperformance_demo_id"`
	FileName   string    `json:"fileName" gorm:"size:255"`
	DurationMs float32   `json:"durationMs"`
	TickCount  int       `json:"tickCount"`
	Bytes      int       `json:"bytes"`
}

func (*EncodePerformance) TableName() string {
	return "encode_performances"
}
