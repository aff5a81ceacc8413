package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// lendingTokenABIJSON covers the two getters interest-bearing wrappers use to
// expose their underlying asset (Compound style and Aave style).
const lendingTokenABIJSON = `[
  {"inputs": [], "name": "underlying", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "UNDERLYING_ASSET_ADDRESS", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

var (
	lendingTokenABI     abi.ABI
	lendingTokenABIOnce sync.Once
	lendingTokenABIErr  error
	erc20ABI            abi.ABI
	erc20ABIOnce        sync.Once
	erc20ABIErr         error
)

func lendingTokenABIInstance() (abi.ABI, error) {
	lendingTokenABIOnce.Do(func() {
		lendingTokenABI, lendingTokenABIErr = abi.JSON(strings.NewReader(lendingTokenABIJSON))
	})
	return lendingTokenABI, lendingTokenABIErr
}

func erc20ABIInstance() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}
