package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// UnderlyingCoin is the asset behind an interest-bearing wrapper token.
type UnderlyingCoin struct {
	Address  string
	Decimals int
}

// UnderlyingResolver looks up underlying assets of wrapper tokens on chain.
type UnderlyingResolver struct {
	caller ContractCaller
	logger *zap.Logger
}

func NewUnderlyingResolver(caller ContractCaller, logger *zap.Logger) *UnderlyingResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnderlyingResolver{caller: caller, logger: logger}
}

// UnderlyingCoins returns the underlying coin of every wrapper, in order.
func (r *UnderlyingResolver) UnderlyingCoins(ctx context.Context, wrappers []string) ([]UnderlyingCoin, error) {
	if r == nil || r.caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}

	out := make([]UnderlyingCoin, 0, len(wrappers))
	for _, wrapper := range wrappers {
		if !common.IsHexAddress(wrapper) {
			return nil, fmt.Errorf("invalid wrapper address: %q", wrapper)
		}
		coin, err := r.underlyingCoin(ctx, common.HexToAddress(wrapper))
		if err != nil {
			return nil, fmt.Errorf("underlying of %s: %w", wrapper, err)
		}
		out = append(out, coin)
	}
	return out, nil
}

func (r *UnderlyingResolver) underlyingCoin(ctx context.Context, wrapper common.Address) (UnderlyingCoin, error) {
	lendingABI, err := lendingTokenABIInstance()
	if err != nil {
		return UnderlyingCoin{}, fmt.Errorf("parse lending token abi: %w", err)
	}
	tokenABI, err := erc20ABIInstance()
	if err != nil {
		return UnderlyingCoin{}, fmt.Errorf("parse erc20 abi: %w", err)
	}

	values, err := r.call(ctx, wrapper, lendingABI, "underlying")
	if err != nil {
		r.logger.Debug("underlying call failed", zap.String("token", wrapper.Hex()), zap.Error(err))
		values, err = r.call(ctx, wrapper, lendingABI, "UNDERLYING_ASSET_ADDRESS")
		if err != nil {
			return UnderlyingCoin{}, err
		}
	}
	underlying, err := asAddress(values[0])
	if err != nil {
		return UnderlyingCoin{}, err
	}

	values, err = r.call(ctx, underlying, tokenABI, "decimals")
	if err != nil {
		return UnderlyingCoin{}, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return UnderlyingCoin{}, err
	}

	return UnderlyingCoin{Address: underlying.Hex(), Decimals: int(decimals)}, nil
}

func (r *UnderlyingResolver) call(ctx context.Context, to common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := r.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
