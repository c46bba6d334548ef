package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dshills/contractengine/internal/config"
	"github.com/dshills/contractengine/internal/server"
)

// Shutdown waits at least minShutdownGrace, and otherwise as long as one
// in-flight analysis may still run.
const (
	minShutdownGrace = 30 * time.Second
	shutdownMargin   = 10 * time.Second
)

// shutdownGrace is how long a stopping server waits for in-flight requests:
// the write timeout, which no response can outlive, or the worst-case
// analysis time when writes are unbounded.
func shutdownGrace(cfg *config.Config) time.Duration {
	grace := cfg.Server.WriteTimeout
	if grace <= 0 {
		grace = cfg.LLM.AnalysisBudget() + shutdownMargin
	}
	return max(grace, minShutdownGrace)
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, g, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "override server.addr")
	return cmd
}

func runServe(ctx context.Context, g *globalFlags, addr string) error {
	cfg, err := loadConfig(g, func(c *config.Config) {
		if addr != "" {
			c.Server.Addr = addr
		}
	})
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stderr)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine, prof, err := buildEngine(cfg, logger, reg)
	if err != nil {
		return err
	}
	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	logger.Info("contractengine starting",
		"version", version,
		"provider", cfg.LLM.Provider,
		"profile", prof.Name,
		"license_mode", cfg.License.Mode,
		"shutdown_grace", shutdownGrace(cfg),
	)

	srv := server.New(engine, server.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Verifier:     verifier,
		Gatherer:     reg,
		Logger:       logger,
	})
	return srv.Run(ctx, shutdownGrace(cfg))
}
