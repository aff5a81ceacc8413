package snapshot

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"poolSnapshot/internal/model"
	"poolSnapshot/internal/source"
)

// ExtractParams builds the parameter set of family from the authoritative
// parameter and balance rows.
func ExtractParams(family model.Family, params source.ParamSnapshot, balances source.BalanceSnapshot) (model.Params, error) {
	switch family {
	case model.FamilyStableswap:
		p, err := stableswapParams(params)
		if err != nil {
			return model.Params{}, err
		}
		return model.Params{Family: family, Stableswap: p}, nil
	case model.FamilyCryptoswap:
		p, err := cryptoswapParams(params, balances)
		if err != nil {
			return model.Params{}, err
		}
		return model.Params{Family: family, Cryptoswap: p}, nil
	default:
		return model.Params{}, fmt.Errorf("%s: %w", family, ErrUnsupportedPoolFamily)
	}
}

// fields collects the first missing required field.
type fields struct {
	missing string
}

func (f *fields) required(name string, v *decimal.Decimal) *big.Int {
	if v == nil {
		if f.missing == "" {
			f.missing = name
		}
		return nil
	}
	return v.BigInt()
}

func (f *fields) list(name string, vs []decimal.Decimal) []*big.Int {
	if vs == nil {
		if f.missing == "" {
			f.missing = name
		}
		return nil
	}
	out := make([]*big.Int, len(vs))
	for i, v := range vs {
		out[i] = v.BigInt()
	}
	return out
}

func (f *fields) err() error {
	if f.missing == "" {
		return nil
	}
	return fmt.Errorf("parameter %q missing: %w", f.missing, source.ErrMalformedResponse)
}

func stableswapParams(row source.ParamSnapshot) (*model.StableswapParams, error) {
	var f fields
	p := &model.StableswapParams{
		A:            f.required("a", row.A),
		Fee:          f.required("fee", row.Fee),
		AdminFee:     f.required("admin_fee", row.AdminFee),
		VirtualPrice: f.required("virtual_price", row.VirtualPrice),
	}
	if row.OffpegFeeMultiplier != nil {
		p.FeeMul = row.OffpegFeeMultiplier.BigInt()
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	return p, nil
}

func cryptoswapParams(row source.ParamSnapshot, balances source.BalanceSnapshot) (*model.CryptoswapParams, error) {
	var f fields
	p := &model.CryptoswapParams{
		A:                   f.required("a", row.A),
		Gamma:               f.required("gamma", row.Gamma),
		FeeGamma:            f.required("fee_gamma", row.FeeGamma),
		MidFee:              f.required("mid_fee", row.MidFee),
		OutFee:              f.required("out_fee", row.OutFee),
		AllowedExtraProfit:  f.required("allowed_extra_profit", row.AllowedExtraProfit),
		AdjustmentStep:      f.required("adjustment_step", row.AdjustmentStep),
		MaHalfTime:          f.required("ma_half_time", row.MaHalfTime),
		PriceScale:          f.list("price_scale", row.PriceScale),
		PriceOracle:         f.list("price_oracle", row.PriceOracle),
		LastPricesTimestamp: balances.Timestamp,
		AdminFee:            f.required("admin_fee", row.AdminFee),
		XcpProfit:           f.required("xcp_profit", row.XcpProfit),
		XcpProfitA:          f.required("xcp_profit_a", row.XcpProfitA),
		VirtualPrice:        f.required("virtual_price", row.VirtualPrice),
	}
	if err := f.err(); err != nil {
		return nil, err
	}

	lastPrices, err := LastPrices(balances.TokenPrices)
	if err != nil {
		return nil, err
	}
	p.LastPrices = lastPrices
	return p, nil
}

// LastPrices converts USD token prices into 18-decimal prices of every coin
// after the first, quoted in the first coin.
func LastPrices(tokenPrices []float64) ([]*big.Int, error) {
	if len(tokenPrices) == 0 {
		return nil, fmt.Errorf("token prices missing: %w", source.ErrMalformedResponse)
	}
	base := decimal.NewFromFloat(tokenPrices[0])
	if !base.IsPositive() {
		return nil, fmt.Errorf("base token price %v: %w", tokenPrices[0], source.ErrMalformedResponse)
	}

	out := make([]*big.Int, 0, len(tokenPrices)-1)
	for _, usd := range tokenPrices[1:] {
		price := decimal.NewFromFloat(usd).Shift(normalizedDecimals).Div(base).Floor()
		out = append(out, price.BigInt())
	}
	return out, nil
}
