// Command memoryd is the long-running memory store server: it loads
// config, opens storage, starts the scheduler and task queue, and serves
// the MCP tool surface over stdio (and optionally HTTP).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/go-ports/echovault/internal/config"
	"github.com/go-ports/echovault/internal/embedding"
	"github.com/go-ports/echovault/internal/forgetting"
	"github.com/go-ports/echovault/internal/mcpserver"
	"github.com/go-ports/echovault/internal/observability"
	"github.com/go-ports/echovault/internal/redaction"
	"github.com/go-ports/echovault/internal/scheduler"
	"github.com/go-ports/echovault/internal/storage"
	"github.com/go-ports/echovault/internal/taskqueue"
	"github.com/go-ports/echovault/internal/tool"
)

const exitSignal = 130

// maxConcurrentJobs matches the store's documented maxConcurrentJobs
// default; maxConcurrentTaskWorkers is the async task queue's own,
// separate worker pool size.
const (
	maxConcurrentJobs        = 3
	maxConcurrentTaskWorkers = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	var memoryHome string

	root := &cobra.Command{
		Use:           "memoryd",
		Short:         "EchoVault memory store server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), memoryHome)
		},
	}
	root.Flags().StringVar(&memoryHome, "memory-home", "",
		"Override memory home directory (default: $MEMORY_HOME env -> persisted config -> ~/.memory)")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(ctx.Err(), context.Canceled) {
			return exitSignal
		}
		return 1
	}
	return 0
}

func serve(ctx context.Context, memoryHome string) error {
	if memoryHome == "" {
		memoryHome = config.GetMemoryHome()
	}
	if err := os.MkdirAll(memoryHome, 0o755); err != nil {
		return fmt.Errorf("memoryd: create memory home: %w", err)
	}

	cfg, err := config.Load(filepath.Join(memoryHome, "config.yaml"))
	if err != nil {
		return fmt.Errorf("memoryd: load config: %w", err)
	}
	configureLogging(cfg.Log)

	dbPath := cfg.Database
	if dbPath == "" {
		dbPath = filepath.Join(memoryHome, "index.db")
	}
	store, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("memoryd: open storage: %w", err)
	}
	defer store.Close()

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		slog.Warn("memoryd: embedding provider unavailable, continuing text-only", "error", err)
		embedder = nil
	}

	metrics := observability.Init(prometheus.Labels{"service": "echovault"})

	var alerts *observability.AlertManager
	errorLog := observability.NewErrorLog(500, func(e observability.Entry) {
		if alerts != nil {
			alerts.Observe(e)
		}
	})
	alerts = observability.NewAlertManager(errorLog, []observability.Rule{
		{Category: observability.CategoryStorage, Count: 5, Window: 5 * time.Minute, Cooldown: 15 * time.Minute},
		{Category: observability.CategoryEmbedding, Count: 10, Window: 5 * time.Minute, Cooldown: 15 * time.Minute},
	})

	svc := tool.New(store, embedder, nil, metrics, errorLog)
	queue := taskqueue.New(maxConcurrentTaskWorkers, svc.Handlers())
	svc.SetQueue(queue)
	go queue.Run(ctx)

	if patterns, err := redaction.LoadMemoryIgnore(filepath.Join(memoryHome, ".memoryignore")); err != nil {
		slog.Warn("memoryd: failed to load .memoryignore, continuing with built-in patterns only", "error", err)
	} else {
		svc.SetRedactionPatterns(patterns)
	}

	sched := scheduler.New(maxConcurrentJobs, scheduler.WithSelfHealthCheck(func(ctx context.Context) error {
		if _, err := store.CountByKind(ctx); err != nil {
			return fmt.Errorf("storage liveness probe: %w", err)
		}
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		slog.Warn("memoryd: self health-check ran", "heap_bytes", m.HeapAlloc)
		return nil
	}))
	_ = sched.Register(scheduler.HealthCheckJob(512 * 1024 * 1024))

	forgetEngine := forgetting.New(store, forgetting.WithTTLs(cfg.TTL.KindTTLs()))
	_ = sched.Register(scheduler.Job{
		Name: "cleanup", Spec: "@every 1h", Priority: 2, Timeout: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			plan, err := forgetEngine.Plan(ctx, "")
			if err != nil {
				return err
			}
			forgetEngine.Execute(ctx, plan, false)
			return nil
		},
	})

	_ = sched.Register(scheduler.Job{
		Name: "monitoring", Spec: "@every 5m", Priority: 1, Timeout: time.Minute,
		Run: func(ctx context.Context) error {
			if _, tErr := svc.PerformanceStats(ctx); tErr != nil {
				return tErr
			}
			active := alerts.Active()
			if len(active) > 0 {
				slog.Warn("memoryd: active alerts", "count", len(active))
			}
			slog.Info("memoryd: monitoring snapshot", "active_alerts", len(active))
			return nil
		},
	})

	sched.Start()
	defer sched.Stop(10 * time.Second)

	server := mcpserver.NewServer(svc)

	var httpServer *http.Server
	if cfg.Server.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/", mcpserver.NewHTTPHandler(server))
		mux.Handle("/metrics", promhttp.Handler())
		httpServer = &http.Server{Addr: cfg.Server.Listen, Handler: mux}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("memoryd: http listener failed", "error", err)
			}
		}()
		slog.Info("memoryd: serving JSON-RPC over HTTP", "addr", cfg.Server.Listen)
		defer func() { _ = httpServer.Close() }()
	}

	slog.Info("memoryd: serving MCP over stdio")
	return mcpserver.Serve(ctx, svc)
}

func configureLogging(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if cfg.File != "" {
		if f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})))
}
