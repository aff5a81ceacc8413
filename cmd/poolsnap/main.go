package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"poolSnapshot/internal/chain"
	"poolSnapshot/internal/config"
	"poolSnapshot/internal/httpclient"
	"poolSnapshot/internal/pooldata"
	"poolSnapshot/internal/snapshot"
	"poolSnapshot/internal/storage"
	"poolSnapshot/internal/storage/postgres"
	"poolSnapshot/internal/storage/redisfeed"
)

func main() {
	root := &cobra.Command{
		Use:          "poolsnap",
		Short:        "Curve pool snapshot resolver",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Resolve a pool snapshot and print it as JSON",
		RunE:  runPool,
	}
	addCommonFlags(poolCmd)
	poolCmd.Flags().String("address", "", "pool address")
	poolCmd.Flags().String("end", "", "snapshot end time (unix seconds or RFC3339), default now")
	poolCmd.Flags().String("out", "", "append snapshot to this JSONL file")
	poolCmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshot persistence")
	poolCmd.Flags().String("redis-addr", "", "Redis address for snapshot publishing")
	poolCmd.Flags().String("redis-stream", redisfeed.DefaultStream, "Redis stream for snapshot announcements")
	root.AddCommand(poolCmd)

	volumeCmd := &cobra.Command{
		Use:   "volume",
		Short: "Fetch historical volume for every coin pair of a pool",
		RunE:  runVolume,
	}
	addCommonFlags(volumeCmd)
	volumeCmd.Flags().String("address", "", "pool address")
	volumeCmd.Flags().String("start", "", "range start (unix seconds or RFC3339)")
	volumeCmd.Flags().String("end", "", "range end (unix seconds or RFC3339), default now")
	volumeCmd.Flags().Int("days", 7, "range length in days when start is not set")
	volumeCmd.Flags().String("interval", "day", "sampling interval (hour, day, week)")
	root.AddCommand(volumeCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve snapshots over HTTP",
		RunE:  runServe,
	}
	addCommonFlags(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "listen address")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	serveCmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshot persistence")
	serveCmd.Flags().String("redis-addr", "", "Redis address for snapshot publishing")
	serveCmd.Flags().String("redis-stream", redisfeed.DefaultStream, "Redis stream for snapshot announcements")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("chain", "mainnet", "chain name or alias (mainnet, ethereum, arbitrum, ...)")
	cmd.Flags().String("env", "prod", "subgraph deployment (prod, staging)")
	cmd.Flags().String("subgraph-url", "", "subgraph base URL")
	cmd.Flags().String("prices-url", "", "Curve Prices API base URL")
	cmd.Flags().String("rpc", "", "RPC URL for lending pool underlying coins")
	cmd.Flags().Duration("http-timeout", 30*time.Second, "provider request timeout")
	cmd.Flags().Int("max-retries", 3, "maximum retry attempts per provider request")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// newService wires providers and the optional chain client. The returned
// func releases the chain client.
func newService(ctx context.Context, cfg config.Common, metrics *snapshot.Metrics, logger *zap.Logger) (*pooldata.Service, func(), error) {
	httpClient := httpclient.New(
		httpclient.WithTimeout(cfg.HTTPTimeout),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithRetryBackoff(cfg.RetryBackoff),
		httpclient.WithLogger(logger),
	)

	svcCfg := pooldata.Config{
		SubgraphURL: cfg.SubgraphURL,
		PricesURL:   cfg.PricesURL,
		HTTP:        httpClient,
		Logger:      logger,
		Metrics:     metrics,
	}

	closeFn := func() {}
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect rpc: %w", err)
		}
		chainID, err := chainClient.GetChainID(ctx)
		if err != nil {
			chainClient.Close()
			return nil, nil, fmt.Errorf("get chain id: %w", err)
		}
		logger.Info("rpc connected", zap.String("chain_id", chainID.String()))
		svcCfg.Underlying = chain.NewUnderlyingResolver(chainClient, logger)
		closeFn = chainClient.Close
	}

	svc, err := pooldata.New(svcCfg)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return svc, closeFn, nil
}

// newSinks opens every configured snapshot sink.
func newSinks(ctx context.Context, out, pgDSN, redisAddr, redisStream string, logger *zap.Logger) (storage.Multi, func(), error) {
	var sinks storage.Multi
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(out))
	}
	if pgDSN != "" {
		store, err := postgres.NewStore(ctx, pgDSN)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		sinks = append(sinks, store)
	}
	if redisAddr != "" {
		pub := redisfeed.NewPublisher(redisfeed.Options{Addr: redisAddr, Stream: redisStream})
		closers = append(closers, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("close redis", zap.Error(err))
			}
		})
		sinks = append(sinks, pub)
	}
	return sinks, closeAll, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
