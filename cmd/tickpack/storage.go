package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/demoview/tickpack/internal/config"
	"github.com/demoview/tickpack/internal/storage"
	"github.com/demoview/tickpack/internal/storage/memory"
	pgstorage "github.com/demoview/tickpack/internal/storage/postgres"
	sqlitestorage "github.com/demoview/tickpack/internal/storage/sqlite"
	wsstorage "github.com/demoview/tickpack/internal/storage/websocket"
	"github.com/spf13/viper"
)

// pathEvery is the tick stride of player paths in the database backends.
const pathEvery = 66

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend selected")
		return pgstorage.New(config.GetDBConfig(), pathEvery, Logger, DBLogger), nil

	case "sqlite":
		dumpPath := storageCfg.SQLite.Path
		if dumpPath == "" {
			dumpPath = filepath.Join(viper.GetString("logsDir"),
				fmt.Sprintf("%s_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpPath:     dumpPath,
			DumpInterval: 30 * time.Second,
			PathEvery:    pathEvery,
		}, Logger, DBLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend selected", "path", dumpPath)
		return backend, nil

	case "websocket":
		wsCfg := storageCfg.WebSocket
		if wsCfg.URL == "" {
			wsCfg.URL = httpToWS(viper.GetString("api.serverUrl")) + "/api/v1/stream"
		}
		if wsCfg.Secret == "" {
			wsCfg.Secret = viper.GetString("api.apiKey")
		}
		Logger.Info("WebSocket storage backend selected", "url", wsCfg.URL)
		return wsstorage.New(wsCfg, Logger), nil

	case "memory", "":
		Logger.Info("Memory storage backend selected")
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
