package model

import "math/big"

// Coins are index-aligned token descriptions of a pool.
type Coins struct {
	Names     []string `json:"names"`
	Addresses []string `json:"addresses"`
	Decimals  []int    `json:"decimals"`
	Wrapper   *Coins   `json:"wrapper,omitempty"`
}

// Len returns the number of coins.
func (c Coins) Len() int {
	return len(c.Names)
}

// Reserves are pool balances scaled to 18 decimals (ByCoin) and to each
// token's own decimals (UnnormalizedByCoin).
type Reserves struct {
	ByCoin             []*big.Int `json:"by_coin"`
	UnnormalizedByCoin []*big.Int `json:"unnormalized_by_coin"`
}

// PoolSnapshot is the provider-agnostic state of a pool at Timestamp.
type PoolSnapshot struct {
	Name      string        `json:"name"`
	Address   string        `json:"address"`
	Chain     string        `json:"chain"`
	PoolType  string        `json:"pool_type"`
	Symbol    string        `json:"symbol"`
	Params    Params        `json:"params"`
	Coins     Coins         `json:"coins"`
	Reserves  Reserves      `json:"reserves"`
	Basepool  *PoolSnapshot `json:"basepool"`
	Timestamp int64         `json:"timestamp"`

	// Lending marks pools whose coins are interest-bearing wrappers.
	Lending bool `json:"-"`
}

// IsMetapool reports whether the snapshot pairs against a base pool.
func (p *PoolSnapshot) IsMetapool() bool {
	return p != nil && p.Basepool != nil
}

// Flatten returns the snapshot followed by its nested base pools.
func (p *PoolSnapshot) Flatten() []*PoolSnapshot {
	var out []*PoolSnapshot
	for cur := p; cur != nil; cur = cur.Basepool {
		out = append(out, cur)
	}
	return out
}
