package snapshot

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"poolSnapshot/internal/source"
)

type sourceCall struct {
	Op      string
	Address string
	Chain   string
	StartTs int64
	EndTs   int64
}

// fakeSource serves canned rows keyed by checksummed pool address.
type fakeSource struct {
	name     string
	metadata map[string]*source.Metadata
	params   map[string][]source.ParamSnapshot
	balances map[string][]source.BalanceSnapshot
	metaErr  error

	mu    sync.Mutex
	calls []sourceCall
}

func newFakeSource(name string) *fakeSource {
	return &fakeSource{
		name:     name,
		metadata: map[string]*source.Metadata{},
		params:   map[string][]source.ParamSnapshot{},
		balances: map[string][]source.BalanceSnapshot{},
	}
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) record(call sourceCall) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeSource) Calls() []sourceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sourceCall(nil), f.calls...)
}

func (f *fakeSource) FetchMetadata(ctx context.Context, address, chain string) (*source.Metadata, error) {
	f.record(sourceCall{Op: "metadata", Address: address, Chain: chain})
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	meta, ok := f.metadata[checksum(address)]
	if !ok {
		return nil, fmt.Errorf("%s: no pool %s: %w", f.name, address, source.ErrDataUnavailable)
	}
	return meta, nil
}

func (f *fakeSource) FetchParameters(ctx context.Context, address, chain string, startTs, endTs int64) ([]source.ParamSnapshot, error) {
	f.record(sourceCall{Op: "parameters", Address: address, Chain: chain, StartTs: startTs, EndTs: endTs})
	rows := f.params[checksum(address)]
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no parameters: %w", f.name, source.ErrDataUnavailable)
	}
	return rows, nil
}

func (f *fakeSource) FetchBalances(ctx context.Context, address, chain string, startTs, endTs int64, unit string) ([]source.BalanceSnapshot, error) {
	f.record(sourceCall{Op: "balances", Address: address, Chain: chain, StartTs: startTs, EndTs: endTs})
	rows := f.balances[checksum(address)]
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no balances: %w", f.name, source.ErrDataUnavailable)
	}
	return rows, nil
}

func checksum(address string) string {
	return common.HexToAddress(address).Hex()
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func decs(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, decimal.RequireFromString(v))
	}
	return out
}

const (
	pool3Crv    = "0xbebc44782c7db0a1a60cb6fe97d0b483032ff1c7"
	poolFrax    = "0xd632f22692fac7611d2aa1c0d552930d43caed3b"
	poolTri     = "0xd51a44d3fae010294c616388b506acda1bfaae46"
	poolCrvUSD  = "0x4dece678ceceb27446b35c672dc7d61f30bad69e"
	tokenDAI    = "0x6b175474e89094c44da98b954eedeac495271d0f"
	tokenUSDC   = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	tokenUSDT   = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	tokenFRAX   = "0x853d955acef822db058eb8505911ed77f175b99e"
	token3Crv   = "0x6c3f90f043a72fa612cbac8115ee7e52bde6e490"
	tokenWBTC   = "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599"
	tokenWETH   = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	tokenCrvUSD = "0xf939e0a03fb07f59a73314e73794be0e57ac1b4e"
)

func stableParams(ts int64) source.ParamSnapshot {
	return source.ParamSnapshot{
		Timestamp:    ts,
		A:            dec("2000"),
		Fee:          dec("1000000"),
		AdminFee:     dec("5000000000"),
		VirtualPrice: dec("1025000000000000000"),
	}
}

func cryptoParams(ts int64) source.ParamSnapshot {
	return source.ParamSnapshot{
		Timestamp:          ts,
		A:                  dec("1707629"),
		Gamma:              dec("11809167828997"),
		FeeGamma:           dec("500000000000000"),
		MidFee:             dec("3000000"),
		OutFee:             dec("30000000"),
		AllowedExtraProfit: dec("2000000000000"),
		AdjustmentStep:     dec("490000000000000"),
		MaHalfTime:         dec("600"),
		PriceScale:         decs("37000000000000000000000", "2000000000000000000000"),
		PriceOracle:        decs("37100000000000000000000", "2010000000000000000000"),
		AdminFee:           dec("5000000000"),
		XcpProfit:          dec("1050000000000000000"),
		XcpProfitA:         dec("1040000000000000000"),
		VirtualPrice:       dec("1030000000000000000"),
	}
}

// seed3Pool registers the stableswap base pool.
func seed3Pool(f *fakeSource) {
	addr := checksum(pool3Crv)
	f.metadata[addr] = &source.Metadata{
		Name:     "Curve.fi DAI/USDC/USDT",
		Symbol:   "3Crv",
		PoolType: "main",
		Coins: []source.CoinInfo{
			{Symbol: "DAI", Address: tokenDAI, Decimals: 18},
			{Symbol: "USDC", Address: tokenUSDC, Decimals: 6},
			{Symbol: "USDT", Address: tokenUSDT, Decimals: 6},
		},
	}
	f.params[addr] = []source.ParamSnapshot{stableParams(1_700_000_000), stableParams(1_699_950_000)}
	f.balances[addr] = []source.BalanceSnapshot{
		{Timestamp: 1_700_000_000, Balances: []float64{1000.5, 2000.25, 3000.125}, TokenPrices: []float64{1, 1, 1}},
		{Timestamp: 1_699_950_000, Balances: []float64{1, 1, 1}, TokenPrices: []float64{1, 1, 1}},
	}
}

// seedFrax registers a metapool over 3pool. The provider lists the base
// coins after the metapool's own two coins.
func seedFrax(f *fakeSource) {
	addr := checksum(poolFrax)
	f.metadata[addr] = &source.Metadata{
		Name:     "Curve.fi Factory USD Metapool: Frax",
		Symbol:   "FRAX3CRV-f",
		PoolType: "factory",
		Metapool: true,
		BasePool: pool3Crv,
		Coins: []source.CoinInfo{
			{Symbol: "FRAX", Address: tokenFRAX, Decimals: 18},
			{Symbol: "3Crv", Address: token3Crv, Decimals: 18},
			{Symbol: "DAI", Address: tokenDAI, Decimals: 18},
			{Symbol: "USDC", Address: tokenUSDC, Decimals: 6},
			{Symbol: "USDT", Address: tokenUSDT, Decimals: 6},
		},
	}
	p := stableParams(1_700_000_000)
	p.OffpegFeeMultiplier = dec("20000000000")
	f.params[addr] = []source.ParamSnapshot{p}
	f.balances[addr] = []source.BalanceSnapshot{
		{Timestamp: 1_700_000_000, Balances: []float64{500, 400, 1, 2, 3}, TokenPrices: []float64{1, 1.02}},
	}
}

func seedTricrypto(f *fakeSource) {
	addr := checksum(poolTri)
	f.metadata[addr] = &source.Metadata{
		Name:     "Curve.fi USD-BTC-ETH",
		Symbol:   "crv3crypto",
		PoolType: "crypto",
		Coins: []source.CoinInfo{
			{Symbol: "USDT", Address: tokenUSDT, Decimals: 6},
			{Symbol: "WBTC", Address: tokenWBTC, Decimals: 8},
			{Symbol: "WETH", Address: tokenWETH, Decimals: 18},
		},
	}
	f.params[addr] = []source.ParamSnapshot{cryptoParams(1_700_000_000)}
	f.balances[addr] = []source.BalanceSnapshot{
		{Timestamp: 1_699_990_000, Balances: []float64{1500, 2.5, 3}, TokenPrices: []float64{1, 37000.5, 2000.25}},
	}
}

func seedCrvUSD(f *fakeSource) {
	addr := checksum(poolCrvUSD)
	f.metadata[addr] = &source.Metadata{
		Name:     "crvUSD/USDC",
		PoolType: "crvusd",
		Coins: []source.CoinInfo{
			{Symbol: "USDC", Address: tokenUSDC, Decimals: 6},
			{Symbol: "crvUSD", Address: tokenCrvUSD, Decimals: 18},
		},
	}
	f.params[addr] = []source.ParamSnapshot{stableParams(1_700_000_000)}
	f.balances[addr] = []source.BalanceSnapshot{
		{Timestamp: 1_700_000_000, Balances: []float64{1, 2}, TokenPrices: []float64{1, 1}},
	}
}
