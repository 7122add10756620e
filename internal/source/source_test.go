package source

import (
	"errors"
	"io"
	"testing"

	"github.com/demoview/tickpack/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDemo() (core.Header, []*core.Snapshot) {
	header := core.Header{Map: "cp_process_final", Server: "local", Nick: "demoman", Ticks: 3, Duration: 0.045}
	world := &core.WorldBounds{
		Min: core.Vector2{X: -3000, Y: -2000},
		Max: core.Vector2{X: 3000, Y: 2000},
	}
	snaps := []*core.Snapshot{
		{Tick: 1},
		{
			Tick:  2,
			World: world,
			Players: []core.PlayerState{{
				Position:  core.Vector2{X: 12.5, Y: -40},
				ViewAngle: 270,
				Health:    175,
				Team:      core.TeamBlue,
				Class:     core.ClassMedic,
				Charge:    42,
				Info:      &core.UserInfo{Name: "medic", UserID: 4, EntityID: 2, SteamID: "[U:1:4]"},
			}},
			Buildings: map[uint32]core.Building{
				310: {Kind: core.KindTeleporter, IsEntrance: true, Health: 150, Team: core.TeamRed, Level: 1},
			},
		},
		{
			Tick:  3,
			World: world,
			Kills: []core.Kill{{Tick: 3, AttackerID: 4, AssisterID: core.NoAssister, VictimID: 7, Weapon: "syringegun_medic"}},
		},
	}
	return header, snaps
}

func readAll(t *testing.T, r *Reader) []*core.Snapshot {
	t.Helper()
	var out []*core.Snapshot
	for {
		snap, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, snap)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecZstd, CodecGzip} {
		t.Run(codec.String(), func(t *testing.T) {
			header, snaps := testDemo()
			raw, err := Marshal(codec, header, snaps)
			require.NoError(t, err)

			r, err := NewBytesReader(raw)
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, codec, r.Codec())
			assert.Equal(t, header, r.Header())

			got := readAll(t, r)
			require.Len(t, got, len(snaps))
			assert.Nil(t, got[0].World)
			assert.Equal(t, *snaps[1].World, *got[1].World)
			assert.Equal(t, snaps[1].Players, got[1].Players)
			assert.Equal(t, snaps[1].Buildings, got[1].Buildings)
			assert.Equal(t, snaps[2].Kills, got[2].Kills)

			_, err = r.Next()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestHeaderOnly(t *testing.T) {
	raw, err := Marshal(CodecNone, core.Header{Map: "koth_viaduct"}, nil)
	require.NoError(t, err)

	r, err := NewBytesReader(raw)
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestBadContainers(t *testing.T) {
	header, snaps := testDemo()
	good, err := Marshal(CodecNone, header, snaps)
	require.NoError(t, err)

	badVersion := append([]byte(nil), good...)
	badVersion[4] = 9
	badCodec := append([]byte(nil), good...)
	badCodec[5] = 7

	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"empty", nil, ErrBadMagic},
		{"short", []byte("TK"), ErrBadMagic},
		{"magic", []byte("DEMO\x01\x00"), ErrBadMagic},
		{"version", badVersion, ErrUnsupportedVersion},
		{"codec", badCodec, ErrUnsupportedCodec},
		{"no header", good[:prefixSize], io.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBytesReader(tt.raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTruncatedSnapshot(t *testing.T) {
	header, snaps := testDemo()
	raw, err := Marshal(CodecNone, header, snaps)
	require.NoError(t, err)

	r, err := NewBytesReader(raw[:len(raw)-3])
	require.NoError(t, err)

	var lastErr error
	for i := 0; i < len(snaps); i++ {
		if _, lastErr = r.Next(); lastErr != nil {
			break
		}
	}
	require.Error(t, lastErr)
	assert.False(t, errors.Is(lastErr, io.EOF))
}

func TestParseCodec(t *testing.T) {
	for name, want := range map[string]Codec{"": CodecNone, "none": CodecNone, "zstd": CodecZstd, "gzip": CodecGzip} {
		got, err := ParseCodec(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCodec("lz4")
	assert.ErrorIs(t, err, ErrUnsupportedCodec)
}

type sliceSource struct {
	snaps []*core.Snapshot
}

func (s *sliceSource) Header() core.Header { return core.Header{} }

func (s *sliceSource) Next() (*core.Snapshot, error) {
	if len(s.snaps) == 0 {
		return nil, io.EOF
	}
	snap := s.snaps[0]
	s.snaps = s.snaps[1:]
	return snap, nil
}

func TestSample(t *testing.T) {
	w := core.WorldBounds{Max: core.Vector2{X: 100, Y: 100}}
	tests := []struct {
		count int
		want  []uint32
	}{
		{7, []uint32{1, 3, 5, 7}},
		{6, []uint32{1, 3, 5, 6}},
		{1, []uint32{1}},
	}

	for _, tt := range tests {
		var snaps []*core.Snapshot
		for tick := uint32(1); tick <= uint32(tt.count); tick++ {
			snaps = append(snaps, &core.Snapshot{Tick: tick, World: &w})
		}

		var ticks []uint32
		for _, snap := range drain(t, Sample(&sliceSource{snaps: snaps}, 2)) {
			ticks = append(ticks, snap.Tick)
		}
		assert.Equal(t, tt.want, ticks, "%d snapshots", tt.count)
	}

	plain := &sliceSource{}
	assert.Same(t, plain, Sample(plain, 1))
}

func drain(t *testing.T, src TickSource) []*core.Snapshot {
	t.Helper()
	var out []*core.Snapshot
	for {
		snap, err := src.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, snap)
	}
}

func TestSampleCarriesDroppedState(t *testing.T) {
	w := core.WorldBounds{Max: core.Vector2{X: 100, Y: 100}}
	medic := &core.UserInfo{Name: "medic", UserID: 3, EntityID: 2}
	snaps := []*core.Snapshot{
		{Tick: 1, World: &w, Players: []core.PlayerState{{}, {}}},
		{Tick: 2, World: &w, Players: []core.PlayerState{{}, {Info: medic}},
			Kills: []core.Kill{{Tick: 2, AttackerID: 3, VictimID: 2, Weapon: "syringegun"}}},
		{Tick: 3, World: &w, Players: []core.PlayerState{{}, {}},
			Kills: []core.Kill{{Tick: 3, AttackerID: 2, VictimID: 3, Weapon: "scattergun"}}},
		{Tick: 4, World: &w, Players: []core.PlayerState{{}, {}},
			Kills: []core.Kill{{Tick: 4, AttackerID: 3, VictimID: 2, Weapon: "ubersaw"}}},
	}

	out := drain(t, Sample(&sliceSource{snaps: snaps}, 2))
	require.Len(t, out, 3)

	assert.Equal(t, uint32(3), out[1].Tick)
	require.Len(t, out[1].Kills, 2)
	assert.Equal(t, "syringegun", out[1].Kills[0].Weapon)
	assert.Equal(t, "scattergun", out[1].Kills[1].Weapon)
	assert.Same(t, medic, out[1].Players[1].Info)
	assert.Nil(t, out[1].Players[0].Info)
	assert.Nil(t, snaps[2].Players[1].Info, "source snapshot must not change")
	assert.Len(t, snaps[2].Kills, 1)

	// the trailing dropped snapshot is passed on with its own kill
	assert.Equal(t, uint32(4), out[2].Tick)
	require.Len(t, out[2].Kills, 1)
	assert.Equal(t, "ubersaw", out[2].Kills[0].Weapon)
}

func TestSampleIgnoresSnapshotsWithoutWorld(t *testing.T) {
	w := core.WorldBounds{Max: core.Vector2{X: 100, Y: 100}}
	snaps := []*core.Snapshot{
		{Tick: 1, World: &w},
		{Tick: 2, World: &w, Kills: []core.Kill{{Tick: 2, Weapon: "knife"}}},
		{Tick: 3, Kills: []core.Kill{{Tick: 3, Weapon: "bat"}}},
		{Tick: 4, World: &w},
		{Tick: 5, World: &w},
	}

	out := drain(t, Sample(&sliceSource{snaps: snaps}, 2))
	require.Len(t, out, 3)
	assert.Equal(t, uint32(4), out[1].Tick)
	require.Len(t, out[1].Kills, 1)
	assert.Equal(t, "knife", out[1].Kills[0].Weapon)
	assert.Equal(t, uint32(5), out[2].Tick)
	assert.Empty(t, out[2].Kills)
}
