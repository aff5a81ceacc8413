package pooldata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolSnapshot/internal/chain"
	"poolSnapshot/internal/chainalias"
	"poolSnapshot/internal/httpclient"
	"poolSnapshot/internal/model"
	"poolSnapshot/internal/snapshot"
	"poolSnapshot/internal/source"
	"poolSnapshot/internal/source/curveprices"
	"poolSnapshot/internal/source/subgraph"
)

// DefaultEnv is the subgraph deployment used when a request names none.
const DefaultEnv = subgraph.EnvProd

var (
	// ErrInvalidRequest is returned for requests rejected before any provider call.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoUnderlyingResolver is returned for lending pools when no chain client is configured.
	ErrNoUnderlyingResolver = errors.New("lending pool needs an underlying coin resolver")
)

// UnderlyingResolver resolves the assets behind lending pool wrapper tokens.
type UnderlyingResolver interface {
	UnderlyingCoins(ctx context.Context, wrappers []string) ([]chain.UnderlyingCoin, error)
}

// Config wires the Service dependencies. Empty URLs use the provider defaults.
type Config struct {
	SubgraphURL string
	PricesURL   string
	HTTP        *httpclient.Client
	Aliases     *chainalias.Resolver
	Underlying  UnderlyingResolver
	Logger      *zap.Logger
	Metrics     *snapshot.Metrics
	Now         func() time.Time
}

// Request identifies the pool snapshot to resolve.
type Request struct {
	Address string
	Chain   string
	Env     string
	EndTs   *int64
}

// Service resolves pool snapshots with subgraph-first, prices-API-second fallback.
type Service struct {
	subgraphs  map[string]*subgraph.Client
	prices     *curveprices.Client
	aliases    *chainalias.Resolver
	underlying UnderlyingResolver
	validator  *snapshot.Validator
	logger     *zap.Logger
	metrics    *snapshot.Metrics
	now        func() time.Time
}

func New(cfg Config) (*Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	aliases := cfg.Aliases
	if aliases == nil {
		aliases = chainalias.Default
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = httpclient.New(httpclient.WithLogger(logger))
	}

	subgraphOpts := []subgraph.Option{subgraph.WithAliases(aliases), subgraph.WithLogger(logger)}
	if cfg.SubgraphURL != "" {
		subgraphOpts = append(subgraphOpts, subgraph.WithBaseURL(cfg.SubgraphURL))
	}
	subgraphs := make(map[string]*subgraph.Client, 2)
	for _, env := range []string{subgraph.EnvProd, subgraph.EnvStaging} {
		client, err := subgraph.New(httpClient, env, subgraphOpts...)
		if err != nil {
			return nil, fmt.Errorf("subgraph %s: %w", env, err)
		}
		subgraphs[env] = client
	}

	pricesOpts := []curveprices.Option{curveprices.WithAliases(aliases), curveprices.WithLogger(logger)}
	if cfg.PricesURL != "" {
		pricesOpts = append(pricesOpts, curveprices.WithBaseURL(cfg.PricesURL))
	}

	return &Service{
		subgraphs:  subgraphs,
		prices:     curveprices.New(httpClient, pricesOpts...),
		aliases:    aliases,
		underlying: cfg.Underlying,
		validator:  snapshot.NewValidator(aliases, nil),
		logger:     logger,
		metrics:    cfg.Metrics,
		now:        cfg.Now,
	}, nil
}

// Prices returns the Curve Prices API client the service falls back to.
func (s *Service) Prices() *curveprices.Client {
	return s.prices
}

// Snapshot resolves the pool named by req.
func (s *Service) Snapshot(ctx context.Context, req Request) (*model.PoolSnapshot, error) {
	req, err := normalize(req)
	if err != nil {
		return nil, err
	}

	assembler := &snapshot.Assembler{
		Primary:   s.subgraphs[req.Env],
		Secondary: s.prices,
		Aliases:   s.aliases,
		Logger:    s.logger.With(zap.String("env", req.Env)),
		Metrics:   s.metrics,
		Now:       s.now,
	}
	snap, err := assembler.Resolve(ctx, req.Address, req.Chain, req.EndTs)
	if err != nil {
		return nil, err
	}

	if snap.Lending {
		if err := s.unwrapLending(ctx, snap); err != nil {
			return nil, fmt.Errorf("pool %s: %w", snap.Address, err)
		}
	}
	s.validator.Validate(snap)

	s.logger.Info("pool snapshot",
		zap.String("pool", snap.Address),
		zap.String("chain", snap.Chain),
		zap.String("name", snap.Name),
		zap.Int64("timestamp", snap.Timestamp),
	)
	return snap, nil
}

// SnapshotSync is Snapshot for callers without a context.
func (s *Service) SnapshotSync(req Request) (*model.PoolSnapshot, error) {
	return s.Snapshot(context.Background(), req)
}

// unwrapLending replaces wrapper coins with their underlying assets and keeps
// the wrappers under Coins.Wrapper.
func (s *Service) unwrapLending(ctx context.Context, snap *model.PoolSnapshot) error {
	if s.underlying == nil {
		return ErrNoUnderlyingResolver
	}
	coins, err := s.underlying.UnderlyingCoins(ctx, snap.Coins.Addresses)
	if err != nil {
		return fmt.Errorf("resolve underlying coins: %w", err)
	}
	if len(coins) != snap.Coins.Len() {
		return fmt.Errorf("resolved %d underlying coins for %d wrappers", len(coins), snap.Coins.Len())
	}

	wrapper := snap.Coins
	unwrapped := model.Coins{
		Names:     make([]string, 0, len(coins)),
		Addresses: make([]string, 0, len(coins)),
		Decimals:  make([]int, 0, len(coins)),
		Wrapper:   &wrapper,
	}
	for i, coin := range coins {
		unwrapped.Names = append(unwrapped.Names, underlyingName(wrapper.Names[i]))
		unwrapped.Addresses = append(unwrapped.Addresses, coin.Address)
		unwrapped.Decimals = append(unwrapped.Decimals, coin.Decimals)
	}
	snap.Coins = unwrapped
	return nil
}

// underlyingName drops the wrapper prefix letter, e.g. cDAI -> DAI.
func underlyingName(name string) string {
	if len(name) <= 1 {
		return name
	}
	return name[1:]
}

func normalize(req Request) (Request, error) {
	req.Address = strings.TrimSpace(req.Address)
	req.Chain = strings.TrimSpace(req.Chain)
	req.Env = strings.ToLower(strings.TrimSpace(req.Env))

	if !common.IsHexAddress(req.Address) {
		return req, fmt.Errorf("%w: address %q", ErrInvalidRequest, req.Address)
	}
	if req.Chain == "" {
		return req, fmt.Errorf("%w: chain is required", ErrInvalidRequest)
	}
	if req.Env == "" {
		req.Env = DefaultEnv
	}
	if _, err := subgraph.EnvSuffix(req.Env); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.EndTs != nil && *req.EndTs <= 0 {
		return req, fmt.Errorf("%w: end timestamp %d", ErrInvalidRequest, *req.EndTs)
	}
	return req, nil
}

// IsProviderFailure reports whether err came from the data providers rather
// than from the request or the pool type.
func IsProviderFailure(err error) bool {
	return errors.Is(err, source.ErrDataUnavailable)
}
