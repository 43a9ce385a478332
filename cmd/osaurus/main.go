// Package main is the entry point for the osaurus gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dinoki-ai/osaurus/internal/backend"
	"github.com/dinoki-ai/osaurus/internal/buildinfo"
	"github.com/dinoki-ai/osaurus/internal/config"
	"github.com/dinoki-ai/osaurus/internal/controlplane"
	"github.com/dinoki-ai/osaurus/internal/events"
	"github.com/dinoki-ai/osaurus/internal/gateway"
	"github.com/dinoki-ai/osaurus/internal/httprouter"
	"github.com/dinoki-ai/osaurus/internal/modelservice"
	"github.com/dinoki-ai/osaurus/internal/toolproxy"
	"github.com/dinoki-ai/osaurus/internal/usage"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "serve":
			runServe(logger, *configPath)
		case "version":
			fmt.Println(buildinfo.String())
			for k, v := range buildinfo.RuntimeInfo() {
				fmt.Printf("  %-12s %s\n", k+":", v)
			}
		case "toolproxy":
			runToolproxy(logger, *configPath)
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
			os.Exit(1)
		}
		return
	}

	fmt.Println("osaurus - local-first LLM chat-completions gateway")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve      Start the HTTP gateway")
	fmt.Println("  toolproxy  Proxy chat completions over stdio JSON-RPC")
	fmt.Println("  version    Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

// loadConfig resolves and parses the config file, reconfiguring logger's
// level from cfg.LogLevel when set. It mirrors the teacher's
// config.FindConfig + config.Load + level-reconfiguration sequence in
// cmd/thane/main.go's runServe.
func loadConfig(logger *slog.Logger, configPath string) (*config.Config, *slog.Logger) {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		// No config file is not fatal: config.Default() covers it.
		logger.Warn("no config file found, using defaults", "error", err)
		return config.Default(), logger
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	logger.Info("config loaded", "path", cfgPath, "port", cfg.Port, "data_dir", cfg.DataDir)
	return cfg, logger
}

// newBackend constructs the Inference Backend adapter. The backend contract
// (spec.md §4.4) is deliberately pluggable and out of this gateway's scope;
// osaurus defaults to the Ollama-wire adapter pointed at the local daemon,
// the same default the teacher's createLLMClient falls back to for unknown
// models.
func newBackend(logger *slog.Logger) backend.Backend {
	ollamaURL := os.Getenv("OSU_OLLAMA_URL")
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	return backend.NewOllamaBackend(ollamaURL, logger)
}

// availabilityFromBackend reports the Model Services osaurus currently
// considers usable. Absent an installed-model discovery mechanism for the
// chosen backend, osaurus treats the system default ("foundation") as
// always available and installed-model matching as a no-op; a production
// backend adapter would replace this with a real inventory query.
func availabilityFromBackend() modelservice.Availability {
	return modelservice.Availability{SystemDefault: true}
}

func runServe(logger *slog.Logger, configPath string) {
	logger.Info("starting osaurus", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "branch", buildinfo.GitBranch, "built", buildinfo.BuildTime)

	cfg, logger := loadConfig(logger, configPath)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	bus := events.New()

	be := newBackend(logger)

	// The routing audit log and usage ledger are best-effort: a gateway
	// that can't open its SQLite files still serves chat completions, just
	// without introspection/cost endpoints (handlers 404 when these are nil).
	auditLog, err := modelservice.NewAuditLog(filepath.Join(cfg.DataDir, "router_audit.db"))
	if err != nil {
		logger.Warn("router audit log disabled", "error", err)
		auditLog = nil
	} else {
		defer auditLog.Close()
	}

	usageStore, err := usage.NewStore(filepath.Join(cfg.DataDir, "usage.db"))
	if err != nil {
		logger.Warn("usage ledger disabled", "error", err)
		usageStore = nil
	} else {
		defer usageStore.Close()
	}

	pipeline := gateway.NewPipeline(be, cfg, availabilityFromBackend, auditLog, bus, logger)
	pipeline.Usage = usageStore

	rt := httprouter.New(httprouter.CORSConfig{AllowedOrigins: cfg.AllowedOrigins})
	pipeline.RegisterRoutes(rt)

	server := controlplane.NewServer(bus, logger)
	defer server.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Host(), cfg.Port)
	if err := server.Start(addr, rt); err != nil {
		logger.Error("failed to start gateway", "addr", addr, "error", err)
		os.Exit(1)
	}
	logger.Info("gateway listening", "addr", addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")
	cancel()

	if err := server.Stop(); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
	logger.Info("osaurus stopped")
}

// runToolproxy runs the stdio JSON-RPC bridge (internal/toolproxy) over the
// process's own stdin/stdout, so osaurus can be embedded as a subprocess
// tool by an MCP-style client instead of spoken to over HTTP.
func runToolproxy(logger *slog.Logger, configPath string) {
	cfg, logger := loadConfig(logger, configPath)

	be := newBackend(logger)
	pipeline := gateway.NewPipeline(be, cfg, availabilityFromBackend, nil, nil, logger)

	srv := toolproxy.NewServer(pipeline, logger)
	if err := srv.Run(context.Background(), os.Stdin, os.Stdout); err != nil {
		logger.Error("toolproxy stopped", "error", err)
		os.Exit(1)
	}
}
