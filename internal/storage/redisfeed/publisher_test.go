package redisfeed

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolSnapshot/internal/model"
)

func newTestPublisher(t *testing.T) (*Publisher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewPublisherWithClient(rdb, ""), mr
}

func snapshotFixture() *model.PoolSnapshot {
	return &model.PoolSnapshot{
		Name:     "Curve.fi DAI/USDC/USDT",
		Address:  "0xbEbc44782C7dB0a1A60Cb6fe97d0b483032FF1C7",
		Chain:    "mainnet",
		PoolType: "main",
		Symbol:   "3Crv",
		Params: model.Params{Family: model.FamilyStableswap, Stableswap: &model.StableswapParams{
			A: big.NewInt(2000), Fee: big.NewInt(1000000), AdminFee: big.NewInt(5000000000), VirtualPrice: big.NewInt(1),
		}},
		Coins:     model.Coins{Names: []string{"DAI"}, Addresses: []string{"0x6B175474E89094C44Da98b954EedeAC495271d0F"}, Decimals: []int{18}},
		Reserves:  model.Reserves{ByCoin: []*big.Int{big.NewInt(1)}, UnnormalizedByCoin: []*big.Int{big.NewInt(1)}},
		Timestamp: 1700000000,
	}
}

func TestPutSnapshot(t *testing.T) {
	pub, mr := newTestPublisher(t)
	ctx := context.Background()

	require.NoError(t, pub.PutSnapshot(ctx, snapshotFixture()))

	key := "pool:snapshot:mainnet:0xbebc44782c7db0a1a60cb6fe97d0b483032ff1c7"
	assert.Equal(t, key, SnapshotKey("mainnet", "0xbEbc44782C7dB0a1A60Cb6fe97d0b483032FF1C7"))
	assert.Equal(t, "main", mr.HGet(key, "pool_type"))
	assert.Equal(t, "stableswap", mr.HGet(key, "family"))
	assert.Equal(t, "1700000000", mr.HGet(key, "timestamp"))

	entries, err := mr.Stream(DefaultStream)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Values, key)

	data, err := pub.LatestSnapshot(ctx, "mainnet", "0xbEbc44782C7dB0a1A60Cb6fe97d0b483032FF1C7")
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "3Crv", decoded["symbol"])
}

func TestLatestSnapshotMissing(t *testing.T) {
	pub, _ := newTestPublisher(t)
	data, err := pub.LatestSnapshot(context.Background(), "mainnet", "0x0")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestPutSnapshotOverwrites(t *testing.T) {
	pub, mr := newTestPublisher(t)
	ctx := context.Background()

	snap := snapshotFixture()
	require.NoError(t, pub.PutSnapshot(ctx, snap))
	snap.Timestamp = 1700086400
	require.NoError(t, pub.PutSnapshot(ctx, snap))

	key := SnapshotKey(snap.Chain, snap.Address)
	assert.Equal(t, "1700086400", mr.HGet(key, "timestamp"))
	entries, err := mr.Stream(DefaultStream)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
