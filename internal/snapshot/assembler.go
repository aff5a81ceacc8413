package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"poolSnapshot/internal/chainalias"
	"poolSnapshot/internal/model"
	"poolSnapshot/internal/source"
)

// Window is the lookback from the end timestamp searched for snapshot rows.
const Window int64 = 24 * 60 * 60

// metapoolCoins is the number of coins a metapool holds itself: its own token
// and the base pool LP token. Providers list the base coins after them.
const metapoolCoins = 2

// Assembler resolves pool snapshots from a primary provider, retrying the
// whole sequence on the secondary provider when the primary fails. A snapshot
// and its base pools always come from the same provider.
type Assembler struct {
	Primary   source.Client
	Secondary source.Client
	Aliases   *chainalias.Resolver
	Logger    *zap.Logger
	Metrics   *Metrics
	Now       func() time.Time
}

// Resolve returns the snapshot of the pool at address as of endTs, or now
// when endTs is nil. Metapools carry their resolved base pool.
func (a *Assembler) Resolve(ctx context.Context, address, chain string, endTs *int64) (*model.PoolSnapshot, error) {
	start := time.Now()
	end := a.now().Unix()
	if endTs != nil {
		end = *endTs
	}

	snap, err := a.resolve(ctx, address, chain, end)
	a.Metrics.observeResolve(start, err)
	if err != nil {
		return nil, err
	}
	a.logger().Debug("pool snapshot resolved",
		zap.String("pool", snap.Address),
		zap.String("chain", snap.Chain),
		zap.String("pool_type", snap.PoolType),
		zap.Bool("metapool", snap.IsMetapool()),
	)
	return snap, nil
}

func (a *Assembler) resolve(ctx context.Context, address, chain string, endTs int64) (*model.PoolSnapshot, error) {
	startTs := endTs - Window
	fail := func(src string, err error) error {
		return &ResolveError{Address: address, Chain: chain, StartTs: startTs, EndTs: endTs, Source: src, Err: err}
	}
	if a.Primary == nil {
		return nil, fail("", errors.New("no primary source configured"))
	}

	pool, err := source.ChecksumAddress(address)
	if err != nil {
		return nil, fail("", err)
	}
	address = pool

	used := a.Primary
	snap, err := a.attempt(ctx, a.Primary, pool, chain, endTs)
	if err != nil && !errors.Is(err, ErrUnsupportedPoolFamily) && a.Secondary != nil {
		a.logger().Warn("primary source failed, falling back",
			zap.String("pool", pool),
			zap.String("chain", chain),
			zap.String("primary", a.Primary.Name()),
			zap.String("secondary", a.Secondary.Name()),
			zap.Error(err),
		)
		a.Metrics.observeFallback(a.Primary.Name(), a.Secondary.Name())
		used = a.Secondary
		snap, err = a.attempt(ctx, a.Secondary, pool, chain, endTs)
	}
	if err != nil {
		return nil, fail(used.Name(), err)
	}
	return snap, nil
}

// attempt resolves the pool and all of its base pools from client alone.
func (a *Assembler) attempt(ctx context.Context, client source.Client, pool, chain string, endTs int64) (*model.PoolSnapshot, error) {
	snap, err := a.tree(ctx, client, pool, chain, endTs, map[string]bool{})
	a.Metrics.observeAttempt(client.Name(), err)
	return snap, err
}

func (a *Assembler) tree(ctx context.Context, client source.Client, pool, chain string, endTs int64, seen map[string]bool) (*model.PoolSnapshot, error) {
	if seen[pool] {
		return nil, fmt.Errorf("base pool cycle at %s: %w", pool, source.ErrMalformedResponse)
	}
	seen[pool] = true

	snap, meta, err := a.fetch(ctx, client, pool, chain, endTs-Window, endTs)
	if err != nil {
		return nil, err
	}
	if !meta.Metapool {
		return snap, nil
	}

	basePool, err := source.ChecksumAddress(meta.BasePool)
	if err != nil {
		return nil, fmt.Errorf("base pool of %s: %v: %w", pool, err, source.ErrMalformedResponse)
	}
	base, err := a.tree(ctx, client, basePool, chain, endTs, seen)
	if err != nil {
		return nil, fmt.Errorf("resolve base pool %s: %w", basePool, err)
	}
	snap.Basepool = base
	return snap, nil
}

func (a *Assembler) fetch(ctx context.Context, client source.Client, pool, chain string, startTs, endTs int64) (*model.PoolSnapshot, *source.Metadata, error) {
	meta, err := client.FetchMetadata(ctx, pool, chain)
	if err != nil {
		return nil, nil, err
	}
	family := model.FamilyOf(meta.PoolType)
	if family == model.FamilyUnsupported {
		return nil, nil, fmt.Errorf("pool type %q: %w", meta.PoolType, ErrUnsupportedPoolFamily)
	}
	params, err := client.FetchParameters(ctx, pool, chain, startTs, endTs)
	if err != nil {
		return nil, nil, err
	}
	balances, err := client.FetchBalances(ctx, pool, chain, startTs, endTs, source.DefaultBalanceUnit)
	if err != nil {
		return nil, nil, err
	}
	if len(params) == 0 || len(balances) == 0 {
		return nil, nil, fmt.Errorf("empty snapshot window: %w", source.ErrDataUnavailable)
	}

	infos := meta.Coins
	if meta.Metapool {
		if len(infos) < metapoolCoins {
			return nil, nil, fmt.Errorf("metapool lists %d coins: %w", len(infos), source.ErrMalformedResponse)
		}
		infos = infos[:metapoolCoins]
	}
	coins, err := buildCoins(infos)
	if err != nil {
		return nil, nil, err
	}

	latestParams, latestBalances := params[0], balances[0]
	reserves, err := buildReserves(latestBalances.Balances, coins.Decimals)
	if err != nil {
		return nil, nil, err
	}
	poolParams, err := ExtractParams(family, latestParams, latestBalances)
	if err != nil {
		return nil, nil, err
	}

	symbol := meta.Symbol
	if symbol == "" {
		symbol = meta.Name
	}
	snap := &model.PoolSnapshot{
		Name:      meta.Name,
		Address:   pool,
		Chain:     a.aliases().Label(chain),
		PoolType:  meta.PoolType,
		Symbol:    symbol,
		Params:    poolParams,
		Coins:     coins,
		Reserves:  reserves,
		Timestamp: endTs,
		Lending:   meta.Lending,
	}
	return snap, meta, nil
}

func buildCoins(infos []source.CoinInfo) (model.Coins, error) {
	coins := model.Coins{
		Names:     make([]string, 0, len(infos)),
		Addresses: make([]string, 0, len(infos)),
		Decimals:  make([]int, 0, len(infos)),
	}
	for i, info := range infos {
		addr, err := source.ChecksumAddress(info.Address)
		if err != nil {
			return model.Coins{}, fmt.Errorf("coin %d: %v: %w", i, err, source.ErrMalformedResponse)
		}
		coins.Names = append(coins.Names, info.Symbol)
		coins.Addresses = append(coins.Addresses, addr)
		coins.Decimals = append(coins.Decimals, info.Decimals)
	}
	return coins, nil
}

func (a *Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Assembler) aliases() *chainalias.Resolver {
	if a.Aliases != nil {
		return a.Aliases
	}
	return chainalias.Default
}

func (a *Assembler) logger() *zap.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return zap.NewNop()
}
