package curveprices

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolSnapshot/internal/chainalias"
	"poolSnapshot/internal/httpclient"
	"poolSnapshot/internal/source"
)

const (
	// DefaultBaseURL is the public Curve Prices API root.
	DefaultBaseURL = "https://prices.curve.fi/v1/"

	// DefaultVolumeInterval is the sampling interval for pair volume.
	DefaultVolumeInterval = "day"

	name = "curve-prices"
)

// Client reads pool data from the Curve Prices API.
type Client struct {
	http    *httpclient.Client
	baseURL string
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

// New returns a client backed by httpClient.
func New(httpClient *httpclient.Client, opts ...Option) *Client {
	c := &Client{
		http:    httpClient,
		baseURL: DefaultBaseURL,
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
	if !strings.HasSuffix(c.baseURL, "/") {
		c.baseURL += "/"
	}
	return c
}

func (c *Client) Name() string { return name }

type coinDTO struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

type metadataDTO struct {
	Name            string    `json:"name"`
	Symbol          string    `json:"symbol"`
	PoolType        string    `json:"pool_type"`
	Coins           []coinDTO `json:"coins"`
	Metapool        bool      `json:"metapool"`
	BasePool        string    `json:"base_pool"`
	VyperVersion    *string   `json:"vyper_version"`
	DeploymentTx    *string   `json:"deployment_tx"`
	DeploymentBlock *uint64   `json:"deployment_block"`
}

// FetchMetadata loads the static pool description.
func (c *Client) FetchMetadata(ctx context.Context, address, chain string) (*source.Metadata, error) {
	pool, chainID, err := c.target(address, chain)
	if err != nil {
		return nil, err
	}

	var dto metadataDTO
	endpoint := c.baseURL + fmt.Sprintf("pools/%s/%s/metadata", chainID, pool)
	c.logger.Debug("fetch metadata", zap.String("source", name), zap.String("pool", pool), zap.String("chain", chainID))
	if err := c.http.GetJSON(ctx, endpoint, nil, &dto); err != nil {
		return nil, source.Unavailable("fetch metadata", err)
	}

	if dto.VyperVersion == nil || dto.DeploymentTx == nil || dto.DeploymentBlock == nil {
		return nil, fmt.Errorf("pool %s on %s: %w", pool, chainID, source.ErrIncompleteMetadata)
	}
	if len(dto.Coins) == 0 {
		return nil, fmt.Errorf("pool %s on %s: no coins: %w", pool, chainID, source.ErrMalformedResponse)
	}

	meta := &source.Metadata{
		Name:            dto.Name,
		Symbol:          dto.Symbol,
		PoolType:        dto.PoolType,
		Metapool:        dto.Metapool,
		BasePool:        dto.BasePool,
		Version:         *dto.VyperVersion,
		DeploymentTx:    *dto.DeploymentTx,
		DeploymentBlock: *dto.DeploymentBlock,
	}
	if strings.EqualFold(meta.PoolType, "lending") {
		meta.Lending = true
		meta.PoolType = "main"
	}
	for _, coin := range dto.Coins {
		meta.Coins = append(meta.Coins, source.CoinInfo{
			Symbol:   coin.Symbol,
			Address:  coin.Address,
			Decimals: coin.Decimals,
		})
	}
	if meta.Metapool && meta.BasePool == "" {
		return nil, fmt.Errorf("metapool %s without base pool: %w", pool, source.ErrMalformedResponse)
	}
	return meta, nil
}

type paramsDTO struct {
	Timestamp           int64               `json:"timestamp"`
	A                   decimal.NullDecimal `json:"a"`
	Fee                 decimal.NullDecimal `json:"fee"`
	AdminFee            decimal.NullDecimal `json:"admin_fee"`
	VirtualPrice        decimal.NullDecimal `json:"virtual_price"`
	OffpegFeeMultiplier decimal.NullDecimal `json:"offpeg_fee_multiplier"`
	Gamma               decimal.NullDecimal `json:"gamma"`
	MidFee              decimal.NullDecimal `json:"mid_fee"`
	OutFee              decimal.NullDecimal `json:"out_fee"`
	FeeGamma            decimal.NullDecimal `json:"fee_gamma"`
	AllowedExtraProfit  decimal.NullDecimal `json:"allowed_extra_profit"`
	AdjustmentStep      decimal.NullDecimal `json:"adjustment_step"`
	MaHalfTime          decimal.NullDecimal `json:"ma_half_time"`
	PriceScale          []decimal.Decimal   `json:"price_scale"`
	PriceOracle         []decimal.Decimal   `json:"price_oracle"`
	XcpProfit           decimal.NullDecimal `json:"xcp_profit"`
	XcpProfitA          decimal.NullDecimal `json:"xcp_profit_a"`
}

type paramsResponse struct {
	Data []paramsDTO `json:"data"`
}

// FetchParameters loads parameter rows in [startTs, endTs], newest first.
func (c *Client) FetchParameters(ctx context.Context, address, chain string, startTs, endTs int64) ([]source.ParamSnapshot, error) {
	pool, chainID, err := c.target(address, chain)
	if err != nil {
		return nil, err
	}

	var resp paramsResponse
	endpoint := c.baseURL + fmt.Sprintf("snapshots/%s/%s", chainID, pool)
	query := window(startTs, endTs)
	if err := c.http.GetJSON(ctx, endpoint, query, &resp); err != nil {
		return nil, source.Unavailable("fetch parameters", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no parameters for %s on %s in [%d, %d]: %w", pool, chainID, startTs, endTs, source.ErrDataUnavailable)
	}

	out := make([]source.ParamSnapshot, 0, len(resp.Data))
	for _, row := range resp.Data {
		out = append(out, source.ParamSnapshot{
			Timestamp:           row.Timestamp,
			A:                   source.Nullable(row.A),
			Fee:                 source.Nullable(row.Fee),
			AdminFee:            source.Nullable(row.AdminFee),
			VirtualPrice:        source.Nullable(row.VirtualPrice),
			OffpegFeeMultiplier: source.Nullable(row.OffpegFeeMultiplier),
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

type balanceDTO struct {
	Timestamp   int64     `json:"timestamp"`
	Balances    []float64 `json:"balances"`
	TokenPrices []float64 `json:"token_prices"`
}

type balanceResponse struct {
	Data []balanceDTO `json:"data"`
}

// FetchBalances loads balance rows in [startTs, endTs], newest first.
func (c *Client) FetchBalances(ctx context.Context, address, chain string, startTs, endTs int64, unit string) ([]source.BalanceSnapshot, error) {
	pool, chainID, err := c.target(address, chain)
	if err != nil {
		return nil, err
	}
	if unit == "" {
		unit = source.DefaultBalanceUnit
	}

	var resp balanceResponse
	endpoint := c.baseURL + fmt.Sprintf("snapshots/%s/%s/tvl", chainID, pool)
	query := window(startTs, endTs)
	query.Set("unit", unit)
	if err := c.http.GetJSON(ctx, endpoint, query, &resp); err != nil {
		return nil, source.Unavailable("fetch balances", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no balances for %s on %s in [%d, %d]: %w", pool, chainID, startTs, endTs, source.ErrDataUnavailable)
	}

	out := make([]source.BalanceSnapshot, 0, len(resp.Data))
	for _, row := range resp.Data {
		out = append(out, source.BalanceSnapshot{
			Timestamp:   row.Timestamp,
			Balances:    row.Balances,
			TokenPrices: row.TokenPrices,
		})
	}
	return out, nil
}

// VolumeRow is one interval of pair volume, denominated in the main token.
type VolumeRow struct {
	Timestamp int64   `json:"timestamp"`
	Volume    float64 `json:"volume"`
	Fees      float64 `json:"fees"`
}

type volumeResponse struct {
	Data []VolumeRow `json:"data"`
}

// FetchPoolPairVolume loads historical volume for one coin pair of a pool.
func (c *Client) FetchPoolPairVolume(ctx context.Context, address, mainToken, referenceToken, chain string, startTs, endTs int64, interval string) ([]VolumeRow, error) {
	pool, chainID, err := c.target(address, chain)
	if err != nil {
		return nil, err
	}
	mainAddr, err := source.ChecksumAddress(mainToken)
	if err != nil {
		return nil, fmt.Errorf("main token: %w", err)
	}
	reference, err := source.ChecksumAddress(referenceToken)
	if err != nil {
		return nil, fmt.Errorf("reference token: %w", err)
	}
	if interval == "" {
		interval = DefaultVolumeInterval
	}

	var resp volumeResponse
	endpoint := c.baseURL + fmt.Sprintf("volume/%s/%s", chainID, pool)
	query := window(startTs, endTs)
	query.Set("main_token", mainAddr)
	query.Set("reference_token", reference)
	query.Set("interval", interval)
	if err := c.http.GetJSON(ctx, endpoint, query, &resp); err != nil {
		return nil, source.Unavailable("fetch pair volume", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no volume for %s (%s/%s) on %s in [%d, %d]: %w",
			pool, mainAddr, reference, chainID, startTs, endTs, source.ErrDataUnavailable)
	}
	return resp.Data, nil
}

func (c *Client) target(address, chain string) (string, string, error) {
	pool, err := source.ChecksumAddress(address)
	if err != nil {
		return "", "", err
	}
	chainID := c.aliases.ToCanonical(strings.TrimSpace(chain))
	if chainID == "" {
		return "", "", errors.New("chain is required")
	}
	return pool, chainID, nil
}

func window(startTs, endTs int64) url.Values {
	return url.Values{
		"start": {strconv.FormatInt(startTs, 10)},
		"end":   {strconv.FormatInt(endTs, 10)},
	}
}
