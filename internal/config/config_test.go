package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"encoder": { "sampleEvery": 2 },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, 2, viper.GetInt("encoder.sampleEvery"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./tickpacklogs", viper.GetString("logsDir"))
	assert.Equal(t, 1, viper.GetInt("encoder.sampleEvery"))
	assert.Equal(t, false, viper.GetBool("encoder.stableSlots"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("api.serverUrl"))
	assert.Equal(t, "", viper.GetString("api.apiKey"))
	assert.Equal(t, false, viper.GetBool("api.upload"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "tickpack", viper.GetString("db.database"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./demos", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, "./demos.db", viper.GetString("storage.sqlite.path"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "tickpack", viper.GetString("otel.serviceName"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	// defaults are still registered
	assert.Equal(t, "memory", viper.GetString("storage.type"))
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetEncoderConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		want EncoderConfig
	}{
		{
			name: "defaults",
			body: `{}`,
			want: EncoderConfig{SampleEvery: 1, Workers: 2, SynthCodec: "zstd"},
		},
		{
			name: "override",
			body: `{"encoder": {"sampleEvery": 2, "stableSlots": true, "workers": 8, "synthCodec": "gzip"}}`,
			want: EncoderConfig{SampleEvery: 2, StableSlots: true, Workers: 8, SynthCodec: "gzip"},
		},
		{
			name: "clamped",
			body: `{"encoder": {"sampleEvery": 0, "workers": -1}}`,
			want: EncoderConfig{SampleEvery: 1, Workers: 1, SynthCodec: "zstd"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			require.NoError(t, Load(writeConfig(t, tt.body)))
			assert.Equal(t, tt.want, GetEncoderConfig())
		})
	}
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./demos", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, "./demos.db", cfg.SQLite.Path)
	assert.Equal(t, 64*1024, cfg.WebSocket.ChunkSize)
	assert.Equal(t, 10*time.Second, cfg.WebSocket.AckTimeout)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "path": "/tmp/demos.db" },
			"websocket": { "url": "ws://viewer/stream", "ackTimeout": "1m" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, "/tmp/demos.db", sc.SQLite.Path)
	assert.Equal(t, "ws://viewer/stream", sc.WebSocket.URL)
	assert.Equal(t, time.Minute, sc.WebSocket.AckTimeout)
}

func TestGetDBAndInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"db": { "username": "viewer", "database": "demos" },
		"influx": { "enabled": true, "bucket": "perf" }
	}`)))

	db := GetDBConfig()
	assert.Equal(t, "viewer", db.Username)
	assert.Equal(t, "postgres", db.Password)
	assert.Equal(t, "demos", db.Database)

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "perf", ic.Bucket)
	assert.Equal(t, "tickpack-metrics", ic.Org)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestBindFlags(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"encoder": {"sampleEvery": 3}}`)))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("sample-every", 1, "")
	flags.String("storage", "memory", "")
	require.NoError(t, BindFlags(flags))

	// unset flags do not override the file
	assert.Equal(t, 3, GetEncoderConfig().SampleEvery)

	require.NoError(t, flags.Parse([]string{"--storage", "sqlite"}))
	assert.Equal(t, "sqlite", GetStorageConfig().Type)
}
