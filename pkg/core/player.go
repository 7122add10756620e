// pkg/core/player.go
package core

// Team is the side a player or building belongs to.
type Team uint8

const (
	TeamOther Team = iota
	TeamSpectator
	TeamRed
	TeamBlue
)

// Class is a player's class.
type Class uint8

const (
	ClassOther Class = iota
	ClassScout
	ClassSniper
	ClassSoldier
	ClassDemoman
	ClassMedic
	ClassHeavy
	ClassPyro
	ClassSpy
	ClassEngineer
)

// LifeState is whether a player is currently alive.
type LifeState uint8

const (
	LifeAlive LifeState = iota
	LifeDying
	LifeDeath
	LifeRespawnable
)

// UserInfo identifies the person controlling a player slot.
type UserInfo struct {
	Name     string `msgpack:"name" json:"name"`
	UserID   uint16 `msgpack:"userId" json:"userId"`
	EntityID uint32 `msgpack:"entityId" json:"entityId"`
	SteamID  string `msgpack:"steamId" json:"steamId"`
}

// PlayerState is one player's state in a single snapshot.
type PlayerState struct {
	Position  Vector2   `msgpack:"position"`
	ViewAngle float32   `msgpack:"viewAngle"`
	Health    uint16    `msgpack:"health"`
	Team      Team      `msgpack:"team"`
	Class     Class     `msgpack:"class"`
	Charge    uint8     `msgpack:"charge"`
	State     LifeState `msgpack:"state"`
	Info      *UserInfo `msgpack:"info"`
}

// Alive reports whether the source considers the player alive.
func (p PlayerState) Alive() bool {
	return p.State == LifeAlive
}
