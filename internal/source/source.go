package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DefaultBalanceUnit is the sampling unit requested for balance snapshots.
const DefaultBalanceUnit = "day"

// Client fetches pool data from one provider.
type Client interface {
	Name() string
	FetchMetadata(ctx context.Context, address, chain string) (*Metadata, error)
	FetchParameters(ctx context.Context, address, chain string, startTs, endTs int64) ([]ParamSnapshot, error)
	FetchBalances(ctx context.Context, address, chain string, startTs, endTs int64, unit string) ([]BalanceSnapshot, error)
}

// CoinInfo describes one pool coin as reported by a provider.
type CoinInfo struct {
	Symbol   string
	Address  string
	Decimals int
}

// Metadata is the static description of a pool.
type Metadata struct {
	Name            string
	Symbol          string
	PoolType        string
	Coins           []CoinInfo
	Metapool        bool
	BasePool        string
	Lending         bool
	Version         string
	DeploymentTx    string
	DeploymentBlock uint64
}

// ParamSnapshot is one parameter row. Optional fields are nil when the
// provider did not report them.
type ParamSnapshot struct {
	Timestamp           int64
	A                   *decimal.Decimal
	Fee                 *decimal.Decimal
	AdminFee            *decimal.Decimal
	VirtualPrice        *decimal.Decimal
	OffpegFeeMultiplier *decimal.Decimal
	Gamma               *decimal.Decimal
	MidFee              *decimal.Decimal
	OutFee              *decimal.Decimal
	FeeGamma            *decimal.Decimal
	AllowedExtraProfit  *decimal.Decimal
	AdjustmentStep      *decimal.Decimal
	MaHalfTime          *decimal.Decimal
	PriceScale          []decimal.Decimal
	PriceOracle         []decimal.Decimal
	XcpProfit           *decimal.Decimal
	XcpProfitA          *decimal.Decimal
}

// BalanceSnapshot is one balances/TVL row. Balances are token amounts in
// whole units; TokenPrices are USD quotes.
type BalanceSnapshot struct {
	Timestamp   int64
	Balances    []float64
	TokenPrices []float64
}

// ChecksumAddress validates a hex address and returns its EIP-55 form.
func ChecksumAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address: %q", address)
	}
	return common.HexToAddress(address).Hex(), nil
}

// Nullable returns a pointer to the value of v, or nil when v is null.
func Nullable(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}
