package volume

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolSnapshot/internal/model"
	"poolSnapshot/internal/snapshot"
	"poolSnapshot/internal/source/curveprices"
)

// mainnetWETH is quoted by the prices API under the native sentinel.
var mainnetWETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

// PairSource returns historical volume for one coin pair of a pool.
type PairSource interface {
	FetchPoolPairVolume(ctx context.Context, address, mainToken, referenceToken, chain string, startTs, endTs int64, interval string) ([]curveprices.VolumeRow, error)
}

// Pair is one tradeable coin pair and the pool that trades it.
type Pair struct {
	Pool      string    `json:"pool"`
	Symbols   [2]string `json:"symbols"`
	Addresses [2]string `json:"addresses"`
}

// PairVolume is the volume history of one pair.
type PairVolume struct {
	Pair
	Rows []curveprices.VolumeRow
}

// Fetcher loads per-pair volume for pool snapshots.
type Fetcher struct {
	source   PairSource
	interval string
	logger   *zap.Logger
}

func NewFetcher(source PairSource, interval string, logger *zap.Logger) *Fetcher {
	if interval == "" {
		interval = curveprices.DefaultVolumeInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{source: source, interval: interval, logger: logger}
}

// PoolVolume fetches volume in [startTs, endTs] for every coin pair of snap.
func (f *Fetcher) PoolVolume(ctx context.Context, snap *model.PoolSnapshot, startTs, endTs int64) ([]PairVolume, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is nil")
	}
	if startTs > endTs {
		return nil, fmt.Errorf("invalid range: start %d > end %d", startTs, endTs)
	}

	pairs, err := Pairs(snap)
	if err != nil {
		return nil, err
	}

	f.logger.Info("fetching pool volume",
		zap.String("pool", snap.Address),
		zap.Int("pairs", len(pairs)),
		zap.Int64("start", startTs),
		zap.Int64("end", endTs),
	)

	out := make([]PairVolume, 0, len(pairs))
	for _, pair := range pairs {
		mainToken := pair.Addresses[0]
		if common.HexToAddress(mainToken) == mainnetWETH {
			mainToken = snapshot.NativeSentinel
		}
		rows, err := f.source.FetchPoolPairVolume(ctx, pair.Pool, mainToken, pair.Addresses[1], snap.Chain, startTs, endTs, f.interval)
		if err != nil {
			return nil, fmt.Errorf("volume %s/%s: %w", pair.Symbols[0], pair.Symbols[1], err)
		}
		f.logger.Debug("pair volume", zap.String("pool", pair.Pool),
			zap.String("pair", pair.Symbols[0]+"/"+pair.Symbols[1]), zap.Int("rows", len(rows)))
		out = append(out, PairVolume{Pair: pair, Rows: rows})
	}
	return out, nil
}

// Pairs lists the coin pairs of snap in combination order. For metapools the
// coin list is the metapool's own coins except the base LP token followed by
// the base pool coins; pairs touching a metapool coin trade on the metapool
// and the remaining base-only pairs trade on the base pool.
func Pairs(snap *model.PoolSnapshot) ([]Pair, error) {
	names, addresses := coinLists(snap)
	if len(names) != len(addresses) {
		return nil, fmt.Errorf("pool %s has %d coin names for %d addresses", snap.Address, len(names), len(addresses))
	}

	nMeta := len(names)
	if snap.IsMetapool() {
		nMeta = snap.Coins.Len() - 1
	}

	var pairs []Pair
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			pool := snap.Address
			if i >= nMeta {
				pool = snap.Basepool.Address
			}
			pairs = append(pairs, Pair{
				Pool:      pool,
				Symbols:   [2]string{names[i], names[j]},
				Addresses: [2]string{addresses[i], addresses[j]},
			})
		}
	}
	return pairs, nil
}

func coinLists(snap *model.PoolSnapshot) ([]string, []string) {
	addresses := snap.Coins.Addresses
	if snap.Coins.Wrapper != nil {
		addresses = snap.Coins.Wrapper.Addresses
	}
	names := snap.Coins.Names
	if !snap.IsMetapool() || len(names) == 0 {
		return names, addresses
	}

	base := snap.Basepool.Coins
	metaNames := append(append([]string(nil), names[:len(names)-1]...), base.Names...)
	metaAddrs := append(append([]string(nil), addresses[:len(addresses)-1]...), base.Addresses...)
	return metaNames, metaAddrs
}

// Table aligns pair volumes by timestamp, filling missing days with zero.
// Columns follow the order of pairs.
type Table struct {
	Timestamps []int64
	Columns    []Pair
	Volumes    [][]float64
}

func NewTable(pairs []PairVolume) Table {
	index := map[int64]int{}
	var timestamps []int64
	for _, pv := range pairs {
		for _, row := range pv.Rows {
			if _, ok := index[row.Timestamp]; !ok {
				index[row.Timestamp] = 0
				timestamps = append(timestamps, row.Timestamp)
			}
		}
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	for i, ts := range timestamps {
		index[ts] = i
	}

	table := Table{Timestamps: timestamps, Volumes: make([][]float64, len(timestamps))}
	for i := range table.Volumes {
		table.Volumes[i] = make([]float64, len(pairs))
	}
	for col, pv := range pairs {
		table.Columns = append(table.Columns, pv.Pair)
		for _, row := range pv.Rows {
			table.Volumes[index[row.Timestamp]][col] += row.Volume
		}
	}
	return table
}
