package model

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// StableswapParams are the raw stableswap pool parameters.
type StableswapParams struct {
	A            *big.Int `json:"A"`
	Fee          *big.Int `json:"fee"`
	FeeMul       *big.Int `json:"fee_mul"`
	AdminFee     *big.Int `json:"admin_fee"`
	VirtualPrice *big.Int `json:"virtual_price"`
}

// CryptoswapParams are the raw cryptoswap pool parameters.
type CryptoswapParams struct {
	A                   *big.Int   `json:"A"`
	Gamma               *big.Int   `json:"gamma"`
	FeeGamma            *big.Int   `json:"fee_gamma"`
	MidFee              *big.Int   `json:"mid_fee"`
	OutFee              *big.Int   `json:"out_fee"`
	AllowedExtraProfit  *big.Int   `json:"allowed_extra_profit"`
	AdjustmentStep      *big.Int   `json:"adjustment_step"`
	MaHalfTime          *big.Int   `json:"ma_half_time"`
	PriceScale          []*big.Int `json:"price_scale"`
	PriceOracle         []*big.Int `json:"price_oracle"`
	LastPrices          []*big.Int `json:"last_prices"`
	LastPricesTimestamp int64      `json:"last_prices_timestamp"`
	AdminFee            *big.Int   `json:"admin_fee"`
	XcpProfit           *big.Int   `json:"xcp_profit"`
	XcpProfitA          *big.Int   `json:"xcp_profit_a"`
	VirtualPrice        *big.Int   `json:"virtual_price"`
}

// Params holds the parameter set of exactly one family.
type Params struct {
	Family     Family
	Stableswap *StableswapParams
	Cryptoswap *CryptoswapParams
}

// MarshalJSON encodes only the fields of the active family.
func (p Params) MarshalJSON() ([]byte, error) {
	switch p.Family {
	case FamilyStableswap:
		if p.Stableswap == nil {
			return nil, fmt.Errorf("stableswap params missing")
		}
		return json.Marshal(p.Stableswap)
	case FamilyCryptoswap:
		if p.Cryptoswap == nil {
			return nil, fmt.Errorf("cryptoswap params missing")
		}
		return json.Marshal(p.Cryptoswap)
	default:
		return nil, fmt.Errorf("params for %s family", p.Family)
	}
}
