package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoundHalfUp(t *testing.T) {
	require.Equal(t, "44.41", Round(decimal.RequireFromString("44.4125")).String())
	require.Equal(t, "0.35", Round(decimal.RequireFromString("0.345")).String())
	require.Equal(t, "10", Round(decimal.RequireFromString("10")).String())
}

func TestRoundToClampsPlaces(t *testing.T) {
	d := decimal.RequireFromString("1.234567891")
	require.Equal(t, "1.23456789", RoundTo(d, 12).String())
	require.Equal(t, "1", RoundTo(d, -1).String())
}

func TestRoundAvoidsFloatDrift(t *testing.T) {
	sum := FromFloat(0.1).Add(FromFloat(0.2))
	require.True(t, Round(sum).Equal(decimal.RequireFromString("0.3")))
}

func TestRoundIdempotent(t *testing.T) {
	d := decimal.RequireFromString("278.1575")
	once := Round(d)
	require.True(t, once.Equal(Round(once)))
}
