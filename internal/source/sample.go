package source

import (
	"errors"
	"io"

	"github.com/demoview/tickpack/pkg/core"
)

type sampled struct {
	TickSource
	every int
	seen  int

	// state of snapshots dropped since the last one passed on
	kills []core.Kill
	infos map[int]*core.UserInfo
	last  *core.Snapshot
}

// Sample passes on every n-th snapshot of src that carries world bounds,
// starting with the first, and always the last one. Snapshots without bounds
// are dropped outright. Snapshots keep their demo ticks, so the aggregator
// still produces one record per demo tick. Kills of dropped snapshots are
// delivered in order with the next snapshot passed on, and a player without
// identity there takes the identity a dropped snapshot carried at the same
// index. For n <= 1 src is returned unchanged.
func Sample(src TickSource, n int) TickSource {
	if n <= 1 {
		return src
	}
	return &sampled{TickSource: src, every: n}
}

func (s *sampled) Next() (*core.Snapshot, error) {
	for {
		snap, err := s.TickSource.Next()
		if errors.Is(err, io.EOF) && s.last != nil {
			last := s.last
			s.last = nil
			return s.merge(last), nil
		}
		if err != nil {
			return nil, err
		}
		if snap.World == nil {
			continue
		}

		keep := s.seen%s.every == 0
		s.seen++
		if keep {
			s.last = nil
			return s.merge(snap), nil
		}
		s.drop(snap)
	}
}

func (s *sampled) drop(snap *core.Snapshot) {
	s.kills = append(s.kills, snap.Kills...)
	for i, p := range snap.Players {
		if p.Info == nil {
			continue
		}
		if s.infos == nil {
			s.infos = make(map[int]*core.UserInfo)
		}
		if _, ok := s.infos[i]; !ok {
			s.infos[i] = p.Info
		}
	}
	// the kills and identities are already held above
	trimmed := *snap
	trimmed.Kills = nil
	s.last = &trimmed
}

// merge returns snap with the held kills and identities folded in. snap
// itself is not modified.
func (s *sampled) merge(snap *core.Snapshot) *core.Snapshot {
	if len(s.kills) == 0 && len(s.infos) == 0 {
		return snap
	}
	out := *snap

	if len(s.kills) > 0 {
		out.Kills = append(s.kills, snap.Kills...)
		s.kills = nil
	}

	if len(s.infos) > 0 {
		out.Players = make([]core.PlayerState, len(snap.Players))
		copy(out.Players, snap.Players)
		for i := range out.Players {
			if out.Players[i].Info == nil {
				out.Players[i].Info = s.infos[i]
			}
		}
		s.infos = nil
	}
	return &out
}
