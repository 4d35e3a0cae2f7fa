package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"

	"github.com/livepid/tracker/internal/config"
	"github.com/livepid/tracker/internal/storage"
	gormstorage "github.com/livepid/tracker/internal/storage/gorm"
	"github.com/livepid/tracker/internal/storage/memory"
	pgstorage "github.com/livepid/tracker/internal/storage/postgres"
	sqlitestorage "github.com/livepid/tracker/internal/storage/sqlite"
	wsstorage "github.com/livepid/tracker/internal/storage/websocket"
)

// initStorage creates and initializes the configured journal backend.
func initStorage(storageCfg config.StorageConfig, zlog zerolog.Logger, logger *slog.Logger) (storage.Backend, error) {
	logger.Debug("Initializing storage", "type", storageCfg.Type)

	backend, err := createStorageBackend(storageCfg, zlog, logger)
	if err != nil {
		logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		logger.Error("Failed to initialize storage backend", "error", err)
		return nil, err
	}
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig, zlog zerolog.Logger, logger *slog.Logger) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		logger.Info("Postgres storage backend initialized")
		return pgstorage.New(gormstorage.Dependencies{
			Logger: zlog.With().Str("backend", "postgres").Logger(),
		}), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			Path:         storageCfg.SQLite.Path,
			DumpDir:      storageCfg.SQLite.DumpDir,
			DumpInterval: storageCfg.SQLite.DumpInterval,
		}, zlog.With().Str("backend", "sqlite").Logger())
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized")
		return backend, nil

	case "websocket":
		wsURL := httpToWS(storageCfg.WebSocket.URL)
		logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: storageCfg.WebSocket.Secret,
		}, logger), nil

	case "memory", "":
		logger.Info("Memory storage backend initialized")
		return memory.New(storageCfg.Memory), nil

	default:
		logger.Warn("Unknown storage type, using memory", "type", storageCfg.Type)
		return memory.New(storageCfg.Memory), nil
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
