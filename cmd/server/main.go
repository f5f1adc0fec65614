// Package main is the entry point for the code execution service.
//
// main stays minimal: read configuration from the environment, build the
// sandbox runner, and hand everything to the server package. All actual
// logic lives in internal/.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rahin/codelab/internal/sandbox"
	"github.com/rahin/codelab/internal/sandbox/docker"
	"github.com/rahin/codelab/internal/sandbox/process"
	"github.com/rahin/codelab/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// Execution history database. DB_PATH overrides for deployments.
	dbPath := "data/codelab.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Pick the sandbox runner. The process runner spawns python3 directly
	// and assumes an isolation boundary (container/VM) already wraps this
	// whole service; the docker runner provides that boundary itself by
	// running each submission in a disposable container.
	var runner sandbox.Runner
	switch os.Getenv("EXECUTOR") {
	case "docker":
		d, err := docker.New(docker.DefaultConfig(), logger)
		if err != nil {
			logger.Error("failed to start docker runner", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer d.Close()
		runner = d
	default:
		cfg := process.DefaultConfig()
		if bin := os.Getenv("PYTHON_BIN"); bin != "" {
			cfg.PythonBin = bin
		}
		runner = process.New(cfg, logger)
	}

	sb := sandbox.New(runner, logger)

	srv, err := server.New(server.Config{Port: port, DBPath: dbPath}, logger, sb)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// logLevel reads LOG_LEVEL, defaulting to info.
func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
