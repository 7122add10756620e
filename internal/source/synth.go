package source

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/demoview/tickpack/pkg/core"
)

// SynthOptions sizes a synthetic demo.
type SynthOptions struct {
	Map      string
	Players  int
	Ticks    uint32
	Interval float32 // seconds per tick
	Seed     int64
}

// DefaultSynthOptions is a short 12 player match at 66 ticks per second.
var DefaultSynthOptions = SynthOptions{
	Map:      "cp_synthetic",
	Players:  12,
	Ticks:    66 * 60,
	Interval: 0.015,
	Seed:     1,
}

var synthClasses = []core.Class{
	core.ClassScout, core.ClassSoldier, core.ClassPyro,
	core.ClassDemoman, core.ClassHeavy, core.ClassEngineer,
	core.ClassMedic, core.ClassSniper, core.ClassSpy,
}

var synthWeapons = []string{
	"scattergun", "tf_projectile_rocket", "flamethrower",
	"tf_projectile_pipe", "minigun", "obj_sentrygun",
	"syringegun_medic", "sniperrifle", "knife",
}

// Synth generates a deterministic demo: players walk in circles, die every
// so often and respawn, engineers hold a sentry. Every snapshot carries the
// same world bounds.
func Synth(opts SynthOptions) (core.Header, []*core.Snapshot) {
	if opts.Players < 1 {
		opts.Players = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultSynthOptions.Interval
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	header := core.Header{
		Map:      opts.Map,
		Server:   "synth",
		Nick:     "SourceTV",
		Ticks:    opts.Ticks,
		Duration: float32(opts.Ticks) * opts.Interval,
	}
	world := core.WorldBounds{
		Min: core.Vector2{X: -4096, Y: -4096},
		Max: core.Vector2{X: 4096, Y: 4096},
	}

	type walker struct {
		info    core.UserInfo
		team    core.Team
		class   core.Class
		center  core.Vector2
		radius  float64
		speed   float64
		phase   float64
		deadFor int
	}
	walkers := make([]walker, opts.Players)
	for i := range walkers {
		team := core.TeamRed
		if i%2 == 1 {
			team = core.TeamBlue
		}
		walkers[i] = walker{
			info: core.UserInfo{
				Name:     fmt.Sprintf("player%02d", i+1),
				UserID:   uint16(i + 2),
				EntityID: uint32(i + 1),
				SteamID:  fmt.Sprintf("[U:1:%d]", 1000+i),
			},
			team:   team,
			class:  synthClasses[i%len(synthClasses)],
			center: core.Vector2{X: float32(rng.Intn(6000) - 3000), Y: float32(rng.Intn(6000) - 3000)},
			radius: 100 + rng.Float64()*800,
			speed:  0.002 + rng.Float64()*0.01,
			phase:  rng.Float64() * 2 * math.Pi,
		}
	}

	snaps := make([]*core.Snapshot, 0, opts.Ticks)
	for tick := uint32(1); tick <= opts.Ticks; tick++ {
		w := world
		snap := &core.Snapshot{
			Tick:      tick,
			World:     &w,
			Players:   make([]core.PlayerState, len(walkers)),
			Buildings: map[uint32]core.Building{},
		}

		for i := range walkers {
			p := &walkers[i]
			a := p.phase + p.speed*float64(tick)
			state := core.PlayerState{
				Position: core.Vector2{
					X: p.center.X + float32(p.radius*math.Cos(a)),
					Y: p.center.Y + float32(p.radius*math.Sin(a)),
				},
				ViewAngle: float32(math.Mod(a*180/math.Pi+90, 360)),
				Health:    uint16(50 + rng.Intn(250)),
				Team:      p.team,
				Class:     p.class,
				Info:      &p.info,
			}
			if p.class == core.ClassMedic {
				state.Charge = uint8(tick / 20 % 101)
			}

			if p.deadFor > 0 {
				p.deadFor--
				state.Health = 0
				state.State = core.LifeDeath
			} else if rng.Intn(2000) == 0 {
				p.deadFor = 66 * 5
				state.Health = 0
				state.State = core.LifeDying
				attacker := walkers[(i+1+rng.Intn(len(walkers)))%len(walkers)]
				snap.Kills = append(snap.Kills, core.Kill{
					Tick:       tick,
					AttackerID: attacker.info.UserID,
					AssisterID: core.NoAssister,
					VictimID:   p.info.UserID,
					Weapon:     synthWeapons[int(attacker.class)%len(synthWeapons)],
				})
			}
			snap.Players[i] = state

			if p.class == core.ClassEngineer {
				snap.Buildings[uint32(100+i)] = core.Building{
					Kind:     core.KindSentry,
					Position: p.center,
					Angle:    float32(tick % 360),
					Health:   216,
					Team:     p.team,
					Level:    3,
				}
			}
		}
		snaps = append(snaps, snap)
	}
	return header, snaps
}
