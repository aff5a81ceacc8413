package subgraph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolSnapshot/internal/chainalias"
	"poolSnapshot/internal/httpclient"
	"poolSnapshot/internal/source"
)

// DefaultBaseURL hosts the per-chain volume subgraphs.
const DefaultBaseURL = "https://api.thegraph.com/subgraphs/name/convex-community"

const (
	EnvProd    = "prod"
	EnvStaging = "staging"
)

var ErrUnknownEnv = errors.New("unknown subgraph env")

// Client reads pool data from the Curve volume subgraph of one deployment env.
type Client struct {
	http    *httpclient.Client
	baseURL string
	suffix  string
	env     string
	aliases *chainalias.Resolver
	logger  *zap.Logger
}

// Option configures Client.
type Option func(*Client)

func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = base
	}
}

func WithAliases(aliases *chainalias.Resolver) Option {
	return func(c *Client) {
		c.aliases = aliases
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New returns a client for env, which must be "prod" or "staging".
func New(httpClient *httpclient.Client, env string, opts ...Option) (*Client, error) {
	suffix, err := EnvSuffix(env)
	if err != nil {
		return nil, err
	}
	c := &Client{
		http:    httpClient,
		baseURL: DefaultBaseURL,
		suffix:  suffix,
		env:     env,
		aliases: chainalias.Default,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.New()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.baseURL = strings.TrimSuffix(c.baseURL, "/")
	return c, nil
}

// EnvSuffix returns the deployment name suffix for env.
func EnvSuffix(env string) (string, error) {
	switch env {
	case EnvProd:
		return "", nil
	case EnvStaging:
		return "-test", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEnv, env)
	}
}

func (c *Client) Name() string { return "subgraph-" + c.env }

// Endpoint returns the GraphQL URL for chain.
func (c *Client) Endpoint(chain string) string {
	alias := c.aliases.Label(strings.TrimSpace(chain))
	return fmt.Sprintf("%s/volume-%s%s", c.baseURL, alias, c.suffix)
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

func (c *Client) query(ctx context.Context, chain, op, q string, vars map[string]interface{}, data interface{}) error {
	resp := struct {
		Data   interface{}    `json:"data"`
		Errors []graphQLError `json:"errors"`
	}{Data: data}

	endpoint := c.Endpoint(chain)
	c.logger.Debug("subgraph query", zap.String("op", op), zap.String("endpoint", endpoint))
	if err := c.http.PostJSON(ctx, endpoint, graphQLRequest{Query: q, Variables: vars}, &resp); err != nil {
		return source.Unavailable(op, err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("%s: %s: %w", op, strings.Join(msgs, "; "), source.ErrMalformedResponse)
	}
	return nil
}

const poolQuery = `query Pool($pool: String!) {
  pools(where: {address: $pool}) {
    address
    name
    symbol
    poolType
    metapool
    basePool
    coins
    coinNames
    coinDecimals
    isV2
    creationTx
    creationBlock
  }
}`

type poolDTO struct {
	Address       string   `json:"address"`
	Name          string   `json:"name"`
	Symbol        string   `json:"symbol"`
	PoolType      string   `json:"poolType"`
	Metapool      bool     `json:"metapool"`
	BasePool      string   `json:"basePool"`
	Coins         []string `json:"coins"`
	CoinNames     []string `json:"coinNames"`
	CoinDecimals  []string `json:"coinDecimals"`
	IsV2          bool     `json:"isV2"`
	CreationTx    *string  `json:"creationTx"`
	CreationBlock *string  `json:"creationBlock"`
}

// FetchMetadata loads the static pool description.
func (c *Client) FetchMetadata(ctx context.Context, address, chain string) (*source.Metadata, error) {
	pool, err := source.ChecksumAddress(address)
	if err != nil {
		return nil, err
	}

	var data struct {
		Pools []poolDTO `json:"pools"`
	}
	vars := map[string]interface{}{"pool": strings.ToLower(pool)}
	if err := c.query(ctx, chain, "fetch metadata", poolQuery, vars, &data); err != nil {
		return nil, err
	}
	if len(data.Pools) == 0 {
		return nil, fmt.Errorf("pool %s not indexed on %s: %w", pool, c.aliases.Label(chain), source.ErrDataUnavailable)
	}

	dto := data.Pools[0]
	if dto.CreationTx == nil || dto.CreationBlock == nil || *dto.CreationTx == "" {
		return nil, fmt.Errorf("pool %s: %w", pool, source.ErrIncompleteMetadata)
	}
	block, err := strconv.ParseUint(*dto.CreationBlock, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("creation block %q: %w", *dto.CreationBlock, source.ErrMalformedResponse)
	}
	if len(dto.Coins) == 0 || len(dto.Coins) != len(dto.CoinNames) || len(dto.Coins) != len(dto.CoinDecimals) {
		return nil, fmt.Errorf("pool %s coin lists misaligned: %w", pool, source.ErrMalformedResponse)
	}

	meta := &source.Metadata{
		Name:            dto.Name,
		Symbol:          dto.Symbol,
		PoolType:        strings.ToLower(dto.PoolType),
		Metapool:        dto.Metapool,
		BasePool:        dto.BasePool,
		DeploymentTx:    *dto.CreationTx,
		DeploymentBlock: block,
		Version:         "v1",
	}
	if dto.IsV2 {
		meta.Version = "v2"
	}
	if meta.PoolType == "lending" {
		meta.Lending = true
		meta.PoolType = "main"
	}
	for i := range dto.Coins {
		decimals, err := strconv.Atoi(dto.CoinDecimals[i])
		if err != nil {
			return nil, fmt.Errorf("coin %d decimals %q: %w", i, dto.CoinDecimals[i], source.ErrMalformedResponse)
		}
		meta.Coins = append(meta.Coins, source.CoinInfo{
			Symbol:   dto.CoinNames[i],
			Address:  dto.Coins[i],
			Decimals: decimals,
		})
	}
	if meta.Metapool && meta.BasePool == "" {
		return nil, fmt.Errorf("metapool %s without base pool: %w", pool, source.ErrMalformedResponse)
	}
	return meta, nil
}

const snapshotQuery = `query Snapshots($pool: String!, $start: BigInt!, $end: BigInt!) {
  dailyPoolSnapshots(
    orderBy: timestamp
    orderDirection: desc
    where: {pool: $pool, timestamp_gte: $start, timestamp_lte: $end}
  ) {
    timestamp
    A
    fee
    adminFee
    offPegFeeMultiplier
    virtualPrice
    gamma
    midFee
    outFee
    feeGamma
    allowedExtraProfit
    adjustmentStep
    maHalfTime
    priceScale
    priceOracle
    lastPrices
    xcpProfit
    xcpProfitA
    reserves
    pool {
      coinDecimals
    }
  }
}`

type snapshotDTO struct {
	Timestamp           string              `json:"timestamp"`
	A                   decimal.NullDecimal `json:"A"`
	Fee                 decimal.NullDecimal `json:"fee"`
	AdminFee            decimal.NullDecimal `json:"adminFee"`
	OffPegFeeMultiplier decimal.NullDecimal `json:"offPegFeeMultiplier"`
	VirtualPrice        decimal.NullDecimal `json:"virtualPrice"`
	Gamma               decimal.NullDecimal `json:"gamma"`
	MidFee              decimal.NullDecimal `json:"midFee"`
	OutFee              decimal.NullDecimal `json:"outFee"`
	FeeGamma            decimal.NullDecimal `json:"feeGamma"`
	AllowedExtraProfit  decimal.NullDecimal `json:"allowedExtraProfit"`
	AdjustmentStep      decimal.NullDecimal `json:"adjustmentStep"`
	MaHalfTime          decimal.NullDecimal `json:"maHalfTime"`
	PriceScale          []decimal.Decimal   `json:"priceScale"`
	PriceOracle         []decimal.Decimal   `json:"priceOracle"`
	LastPrices          []decimal.Decimal   `json:"lastPrices"`
	XcpProfit           decimal.NullDecimal `json:"xcpProfit"`
	XcpProfitA          decimal.NullDecimal `json:"xcpProfitA"`
	Reserves            []decimal.Decimal   `json:"reserves"`
	Pool                struct {
		CoinDecimals []string `json:"coinDecimals"`
	} `json:"pool"`
}

func (c *Client) snapshots(ctx context.Context, op, address, chain string, startTs, endTs int64) ([]snapshotDTO, error) {
	pool, err := source.ChecksumAddress(address)
	if err != nil {
		return nil, err
	}

	var data struct {
		Snapshots []snapshotDTO `json:"dailyPoolSnapshots"`
	}
	vars := map[string]interface{}{
		"pool":  strings.ToLower(pool),
		"start": strconv.FormatInt(startTs, 10),
		"end":   strconv.FormatInt(endTs, 10),
	}
	if err := c.query(ctx, chain, op, snapshotQuery, vars, &data); err != nil {
		return nil, err
	}
	if len(data.Snapshots) == 0 {
		return nil, fmt.Errorf("%s: no snapshots for %s in [%d, %d]: %w", op, pool, startTs, endTs, source.ErrDataUnavailable)
	}
	return data.Snapshots, nil
}

// FetchParameters loads parameter rows in [startTs, endTs], newest first.
func (c *Client) FetchParameters(ctx context.Context, address, chain string, startTs, endTs int64) ([]source.ParamSnapshot, error) {
	rows, err := c.snapshots(ctx, "fetch parameters", address, chain, startTs, endTs)
	if err != nil {
		return nil, err
	}

	out := make([]source.ParamSnapshot, 0, len(rows))
	for _, row := range rows {
		ts, err := strconv.ParseInt(row.Timestamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("snapshot timestamp %q: %w", row.Timestamp, source.ErrMalformedResponse)
		}
		out = append(out, source.ParamSnapshot{
			Timestamp:           ts,
			A:                   source.Nullable(row.A),
			Fee:                 source.Nullable(row.Fee),
			AdminFee:            source.Nullable(row.AdminFee),
			VirtualPrice:        source.Nullable(row.VirtualPrice),
			OffpegFeeMultiplier: source.Nullable(row.OffPegFeeMultiplier),
			Gamma:               source.Nullable(row.Gamma),
			MidFee:              source.Nullable(row.MidFee),
			OutFee:              source.Nullable(row.OutFee),
			FeeGamma:            source.Nullable(row.FeeGamma),
			AllowedExtraProfit:  source.Nullable(row.AllowedExtraProfit),
			AdjustmentStep:      source.Nullable(row.AdjustmentStep),
			MaHalfTime:          source.Nullable(row.MaHalfTime),
			PriceScale:          row.PriceScale,
			PriceOracle:         row.PriceOracle,
			XcpProfit:           source.Nullable(row.XcpProfit),
			XcpProfitA:          source.Nullable(row.XcpProfitA),
		})
	}
	return out, nil
}

// FetchBalances loads balance rows in [startTs, endTs], newest first. Daily
// snapshots are the only granularity the subgraph offers, so unit is ignored.
// Balances are raw reserves scaled down by coin decimals; token prices are
// relative to the first coin, built from the pool's last prices.
func (c *Client) FetchBalances(ctx context.Context, address, chain string, startTs, endTs int64, unit string) ([]source.BalanceSnapshot, error) {
	rows, err := c.snapshots(ctx, "fetch balances", address, chain, startTs, endTs)
	if err != nil {
		return nil, err
	}

	out := make([]source.BalanceSnapshot, 0, len(rows))
	for _, row := range rows {
		ts, err := strconv.ParseInt(row.Timestamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("snapshot timestamp %q: %w", row.Timestamp, source.ErrMalformedResponse)
		}
		if len(row.Reserves) > len(row.Pool.CoinDecimals) {
			return nil, fmt.Errorf("snapshot %d has %d reserves for %d coins: %w",
				ts, len(row.Reserves), len(row.Pool.CoinDecimals), source.ErrMalformedResponse)
		}

		balances := make([]float64, 0, len(row.Reserves))
		for i, reserve := range row.Reserves {
			decimals, err := strconv.Atoi(row.Pool.CoinDecimals[i])
			if err != nil {
				return nil, fmt.Errorf("coin %d decimals %q: %w", i, row.Pool.CoinDecimals[i], source.ErrMalformedResponse)
			}
			balances = append(balances, reserve.Shift(int32(-decimals)).InexactFloat64())
		}

		prices := make([]float64, 0, len(row.LastPrices)+1)
		prices = append(prices, 1)
		for _, p := range row.LastPrices {
			prices = append(prices, p.Shift(-18).InexactFloat64())
		}

		out = append(out, source.BalanceSnapshot{
			Timestamp:   ts,
			Balances:    balances,
			TokenPrices: prices,
		})
	}
	return out, nil
}
