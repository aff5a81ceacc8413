package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolSnapshot/internal/config"
	"poolSnapshot/internal/pooldata"
	"poolSnapshot/internal/volume"
)

type volumeOutput struct {
	Pool  string        `json:"pool"`
	Chain string        `json:"chain"`
	Start int64         `json:"start"`
	End   int64         `json:"end"`
	Pairs []volume.Pair `json:"pairs"`
	Rows  []volumeRow   `json:"rows"`
}

type volumeRow struct {
	Timestamp int64     `json:"timestamp"`
	Volumes   []float64 `json:"volumes"`
}

func runVolume(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadVolume(cfgFile, cmd.Flags(), time.Now())
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

	end := cfg.End
	snap, err := svc.Snapshot(ctx, pooldata.Request{
		Address: cfg.Address,
		Chain:   cfg.Chain,
		Env:     cfg.Env,
		EndTs:   &end,
	})
	if err != nil {
		return err
	}

	fetcher := volume.NewFetcher(svc.Prices(), cfg.Interval, logger)
	pairs, err := fetcher.PoolVolume(ctx, snap, cfg.Start, cfg.End)
	if err != nil {
		return err
	}

	table := volume.NewTable(pairs)
	out := volumeOutput{
		Pool:  snap.Address,
		Chain: snap.Chain,
		Start: cfg.Start,
		End:   cfg.End,
		Pairs: table.Columns,
	}
	for i, ts := range table.Timestamps {
		out.Rows = append(out.Rows, volumeRow{Timestamp: ts, Volumes: table.Volumes[i]})
	}
	logger.Info("pool volume done", zap.Int("pairs", len(out.Pairs)), zap.Int("days", len(out.Rows)))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
