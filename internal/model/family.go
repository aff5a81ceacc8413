package model

import "strings"

// Family is the AMM family a pool type tag belongs to.
type Family int

const (
	FamilyUnsupported Family = iota
	FamilyStableswap
	FamilyCryptoswap
)

func (f Family) String() string {
	switch f {
	case FamilyStableswap:
		return "stableswap"
	case FamilyCryptoswap:
		return "cryptoswap"
	default:
		return "unsupported"
	}
}

// poolTypeFamilies lists every provider pool type tag with a known family.
// Tags absent from the table (crvusd included) are unsupported.
var poolTypeFamilies = map[string]Family{
	"main":              FamilyStableswap,
	"factory":           FamilyStableswap,
	"stableswapng":      FamilyStableswap,
	"crypto":            FamilyCryptoswap,
	"factory_crypto":    FamilyCryptoswap,
	"factory_tricrypto": FamilyCryptoswap,
	"twocryptong":       FamilyCryptoswap,
}

// FamilyOf maps a provider pool type tag to its AMM family.
func FamilyOf(poolType string) Family {
	if family, ok := poolTypeFamilies[strings.ToLower(strings.TrimSpace(poolType))]; ok {
		return family
	}
	return FamilyUnsupported
}

// KnownPoolTypes returns the tags FamilyOf recognizes.
func KnownPoolTypes() []string {
	out := make([]string, 0, len(poolTypeFamilies))
	for tag := range poolTypeFamilies {
		out = append(out, tag)
	}
	return out
}
