// docsift extracts structured text from document files, served over HTTP or
// as an MCP tool server.
//
// Environment:
//
//	CONFIG          path to a YAML config file (optional)
//	LISTEN          listen address, overrides config (default :8084)
//	JOURNAL_DB      SQLite journal path, overrides config
//	MCP_TRANSPORT   "stdio" to run as an MCP server on stdin/stdout
//	LOG_LEVEL       debug | info | warn | error
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/docsift/api"
	"github.com/hazyhaar/docsift/dbopen"
	"github.com/hazyhaar/docsift/docpipe"
	"github.com/hazyhaar/docsift/journal"
)

const version = "0.1.0"

func main() {
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// MCP stdio mode owns stdout; logs go to stderr either way.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Config.
	cfg := api.DefaultConfig()
	if path := os.Getenv("CONFIG"); path != "" {
		loaded, err := api.LoadConfig(path)
		if err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if v := os.Getenv("LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("JOURNAL_DB"); v != "" {
		cfg.JournalDB = v
	}

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Journal DB.
	journalDB, err := dbopen.Open(cfg.JournalDB, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("journal db", "error", err)
		os.Exit(1)
	}
	defer journalDB.Close()

	jnl := journal.New(journalDB)
	if err := jnl.Init(); err != nil {
		slog.Error("journal init", "error", err)
		os.Exit(1)
	}
	defer jnl.Close()

	// Pipeline.
	pipe := docpipe.New(docpipe.Config{
		MaxFileSize:     cfg.MaxFileBytes(),
		TempDir:         cfg.TempDir,
		ConvertTimeout:  cfg.ConvertTimeout,
		AggressiveClean: cfg.AggressiveClean,
		Logger:          logger,
	})

	// MCP stdio mode: tools over stdin/stdout, no HTTP.
	if env("MCP_TRANSPORT", "") == "stdio" {
		srv := mcp.NewServer(&mcp.Implementation{Name: "docsift", Version: version}, nil)
		pipe.RegisterMCP(srv)
		slog.Info("mcp server starting", "transport", "stdio")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
			slog.Error("mcp server", "error", err)
			os.Exit(1)
		}
		return
	}

	// HTTP server.
	server := api.NewServer(cfg, pipe, jnl, logger)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
