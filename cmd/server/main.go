package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alienxp03/tradedebate/internal/config"
	"github.com/alienxp03/tradedebate/internal/engine"
	"github.com/alienxp03/tradedebate/web/handlers"
)

func main() {
	port := flag.Int("port", 0, "Server port (default: config server.port)")
	dbPath := flag.String("db", "", "Database path or DSN (default: ~/.tradedebate/tradedebate.db)")
	cfgPath := flag.String("config", "", "Config file path (default: ~/.tradedebate/config.yaml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Initialize slog
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if *debug {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	path := *cfgPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		slog.Error("Failed to load config", "path", path, "error", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Storage.DSN = *dbPath
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		slog.Warn("Configuration incomplete; runs using affected roles will fail", "error", err)
	}

	slog.Info("Initializing storage", "driver", cfg.Storage.Driver)
	store, err := cfg.OpenStorage()
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	registry, err := cfg.CreateRegistry()
	if err != nil {
		slog.Error("Failed to initialize provider registry", "error", err)
		os.Exit(1)
	}

	eng := engine.New(store, registry, cfg.EngineSettings())
	h := handlers.New(eng, handlers.WithWebMaxTurns(cfg.Debate.WebMaxTurns))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		slog.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Shutdown error", "error", err)
		}
		// In-flight runs are cancelled and marked failed while storage is still open.
		h.Close()
	}()

	slog.Info("Starting tradedebate API server", "url", fmt.Sprintf("http://localhost%s", addr))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		h.Close()
		store.Close()
		os.Exit(1)
	}
	<-done
}
