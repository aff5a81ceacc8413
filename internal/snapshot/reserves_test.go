package snapshot

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolSnapshot/internal/source"
)

func TestBuildReserves(t *testing.T) {
	reserves, err := buildReserves([]float64{1.5, 0.123456789}, []int{18, 6})
	require.NoError(t, err)

	assert.Equal(t, []*big.Int{big.NewInt(1500000000000000000), big.NewInt(123456789000000000)}, reserves.ByCoin)
	assert.Equal(t, []*big.Int{big.NewInt(1500000000000000000), big.NewInt(123456)}, reserves.UnnormalizedByCoin)
}

func TestBuildReservesFloors(t *testing.T) {
	reserves, err := buildReserves([]float64{0.0000015}, []int{6})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), reserves.UnnormalizedByCoin[0])
}

func TestBuildReservesShortBalances(t *testing.T) {
	_, err := buildReserves([]float64{1}, []int{18, 18})
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrMalformedResponse))
}
