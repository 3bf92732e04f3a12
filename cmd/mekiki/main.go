// Command mekiki runs one curation pipeline pass and prints the
// trigger-contract JSON to stdout. Schedulers match on the statusCode
// field; the process exits 0 iff it is 200.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashita-ai/mekiki"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	level := slog.LevelInfo
	if os.Getenv("MEKIKI_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	// Logs go to stderr; stdout carries only the trigger-contract JSON.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := mekiki.New(
		mekiki.WithVersion(version),
		mekiki.WithLogger(logger),
	)
	if err != nil {
		slog.Error("startup failed", "error", err)
		emit(map[string]any{"statusCode": 500, "body": "pipeline startup failed"})
		return 1
	}
	defer app.Close(context.Background())

	res, err := app.Run(ctx)
	if err != nil {
		slog.Error("run failed", "error", err)
		emit(map[string]any{"statusCode": 500, "body": "pipeline execution failed"})
		return 1
	}

	emit(res)
	if res.StatusCode != 200 {
		return 1
	}
	return 0
}

func emit(v any) {
	if err := json.NewEncoder(os.Stdout).Encode(v); err != nil {
		slog.Error("result encode failed", "error", err)
	}
}
