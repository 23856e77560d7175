package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/taskmatch/internal/assignment"
	"github.com/me/taskmatch/internal/config"
	"github.com/me/taskmatch/internal/eventbus"
	"github.com/me/taskmatch/internal/logging"
	"github.com/me/taskmatch/internal/matcher"
	"github.com/me/taskmatch/internal/runlog"
	"github.com/me/taskmatch/internal/scheduler"
	"github.com/me/taskmatch/internal/seed"
	"github.com/me/taskmatch/internal/server"
	"github.com/me/taskmatch/internal/store"
)

func main() {
	cfg, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (\":memory:\" for ephemeral)")
	flag.StringVar(&cfg.SeedFile, "seed", cfg.SeedFile, "YAML seed file applied at startup (create-only)")
	flag.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Fallback sweep interval across all enabled tenants")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	st, err := store.NewSQLiteStore(cfg.DBPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", cfg.DBPath)

	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load seed file: %v\n", err)
			os.Exit(1)
		}
		if err := f.Apply(context.Background(), st, logger); err != nil {
			fmt.Fprintf(os.Stderr, "apply seed file: %v\n", err)
			os.Exit(1)
		}
		logger.Info("seed applied", "path", cfg.SeedFile)
	}

	bus := eventbus.New()
	machine := assignment.New(st, bus, logger)
	m := matcher.New(st, machine, logger)
	recorder := runlog.New(st, logger)
	sched := scheduler.NewRegistry(st, m, recorder, cfg.SweepInterval, logger)

	srv := server.New(cfg, st, machine, sched, bus, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the assignment timers in the background.
	srv.StartScheduler(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
