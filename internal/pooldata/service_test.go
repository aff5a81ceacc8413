package pooldata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolSnapshot/internal/chain"
	"poolSnapshot/internal/httpclient"
	"poolSnapshot/internal/snapshot"
)

const (
	stethPool    = "0xDC24316b9AE028F1497c275EB9192a3Ea0f67022"
	stethToken   = "0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84"
	compoundPool = "0xA2B47E3D5c44877cca798226B7B8118F9BFb7A56"
	cDAI         = "0x5d3a536E4D6DbD6114cc1Ead35777bAB948E3643"
	cUSDC        = "0x39AA39c021dfbaE8faC545936693aC917d5E7563"
)

const subgraphPoolBody = `{"data": {"pools": [{
	"address": "0xdc24316b9ae028f1497c275eb9192a3ea0f67022",
	"name": "Curve.fi ETH/stETH",
	"symbol": "steCRV",
	"poolType": "MAIN",
	"metapool": false,
	"coins": ["0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee", "0xae7ab96520de3a18e5e111b5eaab095312d7fe84"],
	"coinNames": ["ETH", "stETH"],
	"coinDecimals": ["18", "18"],
	"creationTx": "0x1",
	"creationBlock": "11592551"
}]}}`

const subgraphSnapshotsBody = `{"data": {"dailyPoolSnapshots": [{
	"timestamp": "1700000000",
	"A": "50",
	"fee": "1000000",
	"adminFee": "5000000000",
	"virtualPrice": "1100000000000000000",
	"offPegFeeMultiplier": null,
	"reserves": ["1000000000000000000000", "2000000000000000000000"],
	"lastPrices": ["999000000000000000"],
	"pool": {"coinDecimals": ["18", "18"]}
}]}}`

type providers struct {
	subgraphStatus int
	lending        bool
	pricesCalls    atomic.Int32

	mu            sync.Mutex
	subgraphPaths []string
}

func (p *providers) paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subgraphPaths...)
}

func (p *providers) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			p.mu.Lock()
			p.subgraphPaths = append(p.subgraphPaths, r.URL.Path)
			p.mu.Unlock()
			if p.subgraphStatus != 0 {
				w.WriteHeader(p.subgraphStatus)
				return
			}
			var req struct {
				Query string `json:"query"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if strings.Contains(req.Query, "dailyPoolSnapshots") {
				w.Write([]byte(subgraphSnapshotsBody))
				return
			}
			w.Write([]byte(subgraphPoolBody))
			return
		}

		p.pricesCalls.Add(1)
		switch {
		case strings.HasSuffix(r.URL.Path, "/metadata"):
			if p.lending {
				w.Write([]byte(`{"name": "Curve.fi cDAI/cUSDC", "pool_type": "lending", "metapool": false,
					"coins": [
						{"symbol": "cDAI", "address": "` + cDAI + `", "decimals": 8},
						{"symbol": "cUSDC", "address": "` + cUSDC + `", "decimals": 8}
					],
					"vyper_version": "0.1.0b16", "deployment_tx": "0x2", "deployment_block": 9554040}`))
				return
			}
			w.Write([]byte(`{"name": "Curve.fi ETH/stETH", "symbol": "steCRV", "pool_type": "main", "metapool": false,
				"coins": [
					{"symbol": "ETH", "address": "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE", "decimals": 18},
					{"symbol": "stETH", "address": "` + stethToken + `", "decimals": 18}
				],
				"vyper_version": "0.2.8", "deployment_tx": "0x1", "deployment_block": 11592551}`))
		case strings.HasSuffix(r.URL.Path, "/tvl"):
			w.Write([]byte(`{"data": [{"timestamp": 1700000000, "balances": [10.5, 20.25], "token_prices": [2000, 1999]}]}`))
		default:
			w.Write([]byte(`{"data": [{"timestamp": 1700000000, "a": 50, "fee": 1000000, "admin_fee": 5000000000,
				"virtual_price": 1100000000000000000, "offpeg_fee_multiplier": null}]}`))
		}
	}
}

func newTestService(t *testing.T, p *providers, underlying UnderlyingResolver) *Service {
	t.Helper()
	server := httptest.NewServer(p.handler(t))
	t.Cleanup(server.Close)

	svc, err := New(Config{
		SubgraphURL: server.URL + "/subgraphs",
		PricesURL:   server.URL + "/v1/",
		HTTP:        httpclient.New(httpclient.WithMaxRetries(0), httpclient.WithRetryBackoff(time.Millisecond)),
		Underlying:  underlying,
		Now:         func() time.Time { return time.Unix(1_700_000_100, 0) },
	})
	require.NoError(t, err)
	return svc
}

func TestSnapshotFromSubgraph(t *testing.T) {
	p := &providers{}
	svc := newTestService(t, p, nil)

	snap, err := svc.Snapshot(context.Background(), Request{Address: stethPool, Chain: "ethereum"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/subgraphs/volume-mainnet", "/subgraphs/volume-mainnet", "/subgraphs/volume-mainnet"}, p.paths())
	assert.Equal(t, int32(0), p.pricesCalls.Load())
	assert.Equal(t, "mainnet", snap.Chain)
	assert.Equal(t, "main", snap.PoolType)
	assert.Equal(t, []string{"WETH", "stETH"}, snap.Coins.Names)
	assert.Equal(t, snapshot.DefaultWrappedTokens["ethereum"].Address, snap.Coins.Addresses[0])
	assert.Equal(t, "1000000000000000000000", snap.Reserves.ByCoin[0].String())
	assert.Equal(t, int64(1_700_000_100), snap.Timestamp)
}

func TestSnapshotStagingEnv(t *testing.T) {
	p := &providers{}
	svc := newTestService(t, p, nil)

	_, err := svc.Snapshot(context.Background(), Request{Address: stethPool, Chain: "mainnet", Env: "staging"})
	require.NoError(t, err)
	paths := p.paths()
	require.NotEmpty(t, paths)
	assert.Equal(t, "/subgraphs/volume-mainnet-test", paths[0])
}

func TestSnapshotFallsBackToPrices(t *testing.T) {
	p := &providers{subgraphStatus: http.StatusBadGateway}
	svc := newTestService(t, p, nil)

	snap, err := svc.Snapshot(context.Background(), Request{Address: stethPool, Chain: "mainnet"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), p.pricesCalls.Load())
	assert.Equal(t, "WETH", snap.Coins.Names[0])
	assert.Equal(t, "10500000000000000000", snap.Reserves.ByCoin[0].String())
	assert.Equal(t, "20250000000000000000", snap.Reserves.UnnormalizedByCoin[1].String())
}

func TestSnapshotRejectsBadRequests(t *testing.T) {
	p := &providers{}
	svc := newTestService(t, p, nil)

	for _, req := range []Request{
		{Address: "0x1234", Chain: "mainnet"},
		{Address: stethPool, Chain: ""},
		{Address: stethPool, Chain: "mainnet", Env: "dev"},
	} {
		_, err := svc.Snapshot(context.Background(), req)
		assert.True(t, errors.Is(err, ErrInvalidRequest), "%+v", req)
	}
	assert.Empty(t, p.paths())
	assert.Equal(t, int32(0), p.pricesCalls.Load())
}

type fakeUnderlying struct {
	coins []chain.UnderlyingCoin
	got   []string
}

func (f *fakeUnderlying) UnderlyingCoins(ctx context.Context, wrappers []string) ([]chain.UnderlyingCoin, error) {
	f.got = wrappers
	return f.coins, nil
}

func TestSnapshotLendingPool(t *testing.T) {
	p := &providers{subgraphStatus: http.StatusServiceUnavailable, lending: true}
	underlying := &fakeUnderlying{coins: []chain.UnderlyingCoin{
		{Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18},
		{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
	}}
	svc := newTestService(t, p, underlying)

	snap, err := svc.SnapshotSync(Request{Address: compoundPool, Chain: "mainnet"})
	require.NoError(t, err)

	assert.Equal(t, []string{common.HexToAddress(cDAI).Hex(), common.HexToAddress(cUSDC).Hex()}, underlying.got)
	assert.Equal(t, []string{"DAI", "USDC"}, snap.Coins.Names)
	assert.Equal(t, []int{18, 6}, snap.Coins.Decimals)
	require.NotNil(t, snap.Coins.Wrapper)
	assert.Equal(t, []string{"cDAI", "cUSDC"}, snap.Coins.Wrapper.Names)
	assert.Equal(t, []int{8, 8}, snap.Coins.Wrapper.Decimals)
}

func TestSnapshotLendingPoolWithoutResolver(t *testing.T) {
	p := &providers{subgraphStatus: http.StatusServiceUnavailable, lending: true}
	svc := newTestService(t, p, nil)

	_, err := svc.Snapshot(context.Background(), Request{Address: compoundPool, Chain: "mainnet"})
	assert.True(t, errors.Is(err, ErrNoUnderlyingResolver))
}

func TestUnderlyingName(t *testing.T) {
	assert.Equal(t, "DAI", underlyingName("cDAI"))
	assert.Equal(t, "USDC", underlyingName("aUSDC"))
	assert.Equal(t, "x", underlyingName("x"))
}
