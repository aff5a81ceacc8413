package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolSnapshot/internal/api"
	"poolSnapshot/internal/config"
	"poolSnapshot/internal/snapshot"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := snapshot.NewMetrics(reg)

	svc, closeSvc, err := newService(ctx, cfg.Common, metrics, logger)
	if err != nil {
		return err
	}
	defer closeSvc()

	sinks, closeSinks, err := newSinks(ctx, "", cfg.PGDSN, cfg.RedisAddr, cfg.RedisStream, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.String("env", cfg.Env),
		zap.Int("sinks", len(sinks)),
	)

	return api.NewServer(svc, sinks, reg, logger).Run(ctx, cfg.Listen, cfg.ShutdownTimeout)
}
