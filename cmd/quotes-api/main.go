package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/GeorgiosLymperis/quotefancy/internal/config"
	"github.com/lepinkainen/humanlog"
)

// main starts a small HTTP frontend for the scraper: an HTML form plus
// endpoints that run a scrape and return the export.
// Configuration:
//   - GATEWAY_ADDRESS (default ":8080")
//   - QUOTEFANCY_CONFIG (optional YAML file; QUOTEFANCY_* variables also apply)
func main() {
	slog.SetDefault(slog.New(humanlog.NewHandler(os.Stderr, &humanlog.Options{
		Level: slog.LevelInfo,
	})))

	address := env("GATEWAY_ADDRESS", ":8080")
	cfg, err := config.Load(os.Getenv("QUOTEFANCY_CONFIG"))
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              address,
		Handler:           newServer(cfg).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("gateway listening", "address", address, "site", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// env retrieves an environment variable or returns a default value.
func env(key, defaultKey string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultKey
}
