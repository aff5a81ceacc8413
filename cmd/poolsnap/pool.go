package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolSnapshot/internal/config"
	"poolSnapshot/internal/pooldata"
)

func runPool(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSnapshot(cfgFile, cmd.Flags())
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

	svc, closeSvc, err := newService(ctx, cfg.Common, nil, logger)
	if err != nil {
		return err
	}
	defer closeSvc()

	sinks, closeSinks, err := newSinks(ctx, cfg.Out, cfg.PGDSN, cfg.RedisAddr, cfg.RedisStream, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	logger.Info("pool snapshot start",
		zap.String("address", cfg.Address),
		zap.String("chain", cfg.Chain),
		zap.String("env", cfg.Env),
		zap.Int("sinks", len(sinks)),
	)

	snap, err := svc.Snapshot(ctx, pooldata.Request{
		Address: cfg.Address,
		Chain:   cfg.Chain,
		Env:     cfg.Env,
		EndTs:   cfg.EndTs,
	})
	if err != nil {
		return err
	}

	if err := sinks.PutSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
