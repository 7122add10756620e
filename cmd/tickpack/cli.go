package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/demoview/tickpack/internal/api"
	"github.com/demoview/tickpack/internal/config"
	"github.com/demoview/tickpack/internal/influx"
	"github.com/demoview/tickpack/internal/logging"
	"github.com/demoview/tickpack/internal/source"
	"github.com/demoview/tickpack/internal/util"
	"github.com/demoview/tickpack/internal/worker"
	"github.com/demoview/tickpack/pkg/tickpack"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var errNoFiles = errors.New("no demo files given")

func runEncode(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("encode", pflag.ContinueOnError)
	configDir := globalFlags(fs)
	fs.Int("sample-every", 1, "keep every n-th snapshot")
	fs.Bool("stable-slots", false, "key slots by entity id instead of position")
	fs.Int("workers", 2, "number of demos encoded in parallel")
	fs.String("storage", "memory", "storage backend (memory, sqlite, postgres, websocket)")
	fs.String("output-dir", "./demos", "export directory of the memory backend")
	fs.Bool("upload", false, "upload exports to the viewer server")
	tag := fs.String("tag", "", "tag stored with every demo")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errNoFiles
	}

	teardown, err := setup(fs, *configDir)
	if err != nil {
		return err
	}
	defer teardown()

	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}()
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	deps := worker.Dependencies{
		Backend: backend,
		Encoder: config.GetEncoderConfig(),
		Logger:  SlogManager.Component("worker"),
		Progress: func(path string, percent int) {
			Logger.Debug("Encoding", "file", path, "percent", percent)
		},
	}

	if viper.GetBool("api.upload") {
		client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
		if err := client.Healthcheck(); err != nil {
			Logger.Warn("Viewer server is not reachable", "error", err)
		}
		deps.Uploader = client
	}

	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		backup := filepath.Join(viper.GetString("logsDir"),
			fmt.Sprintf("influx_backup_%s.lp.gz", SessionStartTime.Format("20060102_150405")))
		im := influx.NewManager(logging.Component(DBLogger, "influx"), backup)
		if err := im.Connect(ctx, influxCfg); err != nil {
			Logger.Warn("InfluxDB disabled", "error", err)
		} else {
			defer im.Close()
			deps.Points = im
			deps.Bucket = influxCfg.Bucket
		}
	}

	manager, err := worker.NewManager(deps)
	if err != nil {
		return err
	}

	jobs := make([]worker.Job, 0, fs.NArg())
	for _, path := range fs.Args() {
		jobs = append(jobs, worker.Job{Path: path, Tag: *tag})
	}

	start := time.Now()
	summary, err := manager.Run(ctx, jobs)
	Logger.Info("Batch finished",
		"stored", summary.Stored,
		"uploaded", summary.Uploaded,
		"failed", len(summary.Failures),
		"duration", time.Since(start))
	for _, f := range summary.Failures {
		fmt.Fprintf(os.Stderr, "%s: %s: %v\n", f.Path, f.Stage, f.Err)
	}
	if err != nil {
		return err
	}
	if len(summary.Failures) > 0 {
		return fmt.Errorf("%d of %d demos failed", len(summary.Failures), len(jobs))
	}
	return nil
}

func runSynth(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("synth", pflag.ContinueOnError)
	configDir := globalFlags(fs)
	opts := source.DefaultSynthOptions
	fs.StringVar(&opts.Map, "map", opts.Map, "map name")
	fs.IntVar(&opts.Players, "players", opts.Players, "number of players")
	fs.Uint32Var(&opts.Ticks, "ticks", opts.Ticks, "number of snapshots")
	fs.Int64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	codecName := fs.String("codec", "", "body codec (none, zstd, gzip), defaults to encoder.synthCodec")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("synth needs exactly one output path")
	}

	teardown, err := setup(fs, *configDir)
	if err != nil {
		return err
	}
	defer teardown()

	if *codecName == "" {
		*codecName = config.GetEncoderConfig().SynthCodec
	}
	codec, err := source.ParseCodec(*codecName)
	if err != nil {
		return err
	}

	header, snaps := source.Synth(opts)
	out := fs.Arg(0)
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()

	w, err := source.NewWriter(f, codec, header)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if err := ctx.Err(); err != nil {
			_ = w.Close()
			return err
		}
		if err := w.Write(snap); err != nil {
			_ = w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		return err
	}
	Logger.Info("Wrote synthetic demo",
		"path", out,
		"map", header.Map,
		"ticks", header.Ticks,
		"players", opts.Players,
		"codec", codec.String(),
		"size", util.HumanBytes(info.Size()))
	return nil
}

func runInspect(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	configDir := globalFlags(fs)
	fs.Int("sample-every", 1, "keep every n-th snapshot")
	fs.Bool("stable-slots", false, "key slots by entity id instead of position")
	tick := fs.Int("tick", -1, "also print every player record at this tick")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("inspect needs exactly one demo")
	}

	teardown, err := setup(fs, *configDir)
	if err != nil {
		return err
	}
	defer teardown()

	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	enc := config.GetEncoderConfig()
	state, err := tickpack.Encode(ctx, raw, nil,
		tickpack.WithLogger(Logger),
		tickpack.WithSampleEvery(enc.SampleEvery),
		tickpack.WithStableSlots(enc.StableSlots))
	if err != nil {
		return err
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if err := out.Encode(state.Manifest()); err != nil {
		return err
	}
	if *tick < 0 {
		return nil
	}

	for slot := 0; slot < state.PlayerCount(); slot++ {
		p, err := state.Player(*tick, slot)
		if err != nil {
			return err
		}
		name, _ := state.PlayerName(slot)
		fmt.Printf("slot %2d %-16s pos=(%.1f, %.1f) angle=%.1f health=%d team=%d class=%d charge=%d\n",
			slot, name, p.Position.X, p.Position.Y, p.Angle.Degrees(), p.Health, p.Team, p.Class, p.Charge)
	}
	return nil
}
