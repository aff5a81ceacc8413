package snapshot

import (
	"github.com/ethereum/go-ethereum/common"

	"poolSnapshot/internal/chainalias"
	"poolSnapshot/internal/model"
)

// NativeSentinel is the placeholder address pools use for the chain's native asset.
const NativeSentinel = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// WrappedToken is the ERC20 that stands in for a native asset.
type WrappedToken struct {
	Address string
	Name    string
}

// DefaultWrappedTokens maps canonical chains to their wrapped native token.
var DefaultWrappedTokens = map[string]WrappedToken{
	"ethereum": {Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Name: "WETH"},
	"polygon":  {Address: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", Name: "WMATIC"},
	"arbitrum": {Address: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", Name: "WETH"},
	"optimism": {Address: "0x4200000000000000000000000000000000000006", Name: "WETH"},
	"base":     {Address: "0x4200000000000000000000000000000000000006", Name: "WETH"},
}

// Validator rewrites native-asset placeholders in snapshot coins.
type Validator struct {
	aliases *chainalias.Resolver
	wrapped map[string]WrappedToken
}

// NewValidator returns a Validator over the given chain table. A nil table
// uses DefaultWrappedTokens.
func NewValidator(aliases *chainalias.Resolver, wrapped map[string]WrappedToken) *Validator {
	if aliases == nil {
		aliases = chainalias.Default
	}
	if wrapped == nil {
		wrapped = DefaultWrappedTokens
	}
	return &Validator{aliases: aliases, wrapped: wrapped}
}

// Validate replaces the native sentinel in the top-level coins with the
// chain's wrapped token. Base pools and wrapper coins are left untouched.
func (v *Validator) Validate(snapshot *model.PoolSnapshot) {
	if snapshot == nil {
		return
	}
	token, ok := v.wrapped[v.aliases.ToCanonical(snapshot.Chain)]
	if !ok {
		return
	}
	sentinel := common.HexToAddress(NativeSentinel)
	for i, addr := range snapshot.Coins.Addresses {
		if !common.IsHexAddress(addr) || common.HexToAddress(addr) != sentinel {
			continue
		}
		snapshot.Coins.Addresses[i] = common.HexToAddress(token.Address).Hex()
		if i < len(snapshot.Coins.Names) {
			snapshot.Coins.Names[i] = token.Name
		}
	}
}
