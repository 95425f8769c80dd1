package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterSetHash(t *testing.T) {
	a := ParameterSet{"sma_period": 20, "rsi_max": 50}
	b := ParameterSet{"rsi_max": 50, "sma_period": 20}
	assert.Equal(t, a.Hash(), b.Hash()) // insertion order is irrelevant

	c := a.Clone()
	assert.Equal(t, a.Hash(), c.Hash())

	c["rsi_max"] = 51
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.Equal(t, 50.0, a["rsi_max"]) // clone is a copy

	assert.NotEqual(t, a.Hash(), ParameterSet{"sma_period": 20}.Hash())
}

func TestParameterSetAccessors(t *testing.T) {
	ps := ParameterSet{"sma_period": 20.4, "pyramiding": 1}
	assert.Equal(t, 20, ps.Int("sma_period", 0))
	assert.Equal(t, 14, ps.Int("rsi_period", 14))
	assert.Equal(t, 20.4, ps.Get("sma_period", 0))
	assert.Equal(t, 2.0, ps.Get("atr_mult", 2))
	assert.True(t, ps.Bool("pyramiding"))
	assert.False(t, ps.Bool("trailing"))
}

func TestSpaceValidateRejectsOutOfRange(t *testing.T) {
	sp := ParameterSpace{
		{Name: "sma_period", Min: 10, Max: 200, Step: 10},
		{Name: "rsi_max", Min: 0, Max: 100, Step: 5},
	}

	require.NoError(t, sp.Validate(ParameterSet{"sma_period": 10, "rsi_max": 100}))

	err := sp.Validate(ParameterSet{"sma_period": 201})
	require.Error(t, err)
	assert.True(t, IsInvalidParameter(err)) // rejected, never clamped

	err = sp.Validate(ParameterSet{"rsi_max": -1})
	assert.True(t, IsInvalidParameter(err))
}

func TestSpaceValidateIgnoresUndeclared(t *testing.T) {
	sp := ParameterSpace{{Name: "sma_period", Min: 10, Max: 200, Step: 10}}
	assert.NoError(t, sp.Validate(ParameterSet{"min_vol_ratio": 999}))
}

func TestSpaceValidateNonFinite(t *testing.T) {
	sp := ParameterSpace{{Name: "sma_period", Min: 10, Max: 200, Step: 10}}
	assert.Error(t, sp.Validate(ParameterSet{"sma_period": math.NaN()}))
	assert.Error(t, sp.Validate(ParameterSet{"sma_period": math.Inf(1)}))
}

func TestSpaceValidateInvertedRange(t *testing.T) {
	sp := ParameterSpace{{Name: "x", Min: 10, Max: 5, Step: 1}}
	err := sp.Validate(ParameterSet{})
	assert.True(t, IsInvalidParameter(err))
}

func TestGridSize(t *testing.T) {
	sp := ParameterSpace{
		{Name: "sma_period", Min: 10, Max: 30, Step: 10}, // 3 points
		{Name: "rsi_max", Min: 40, Max: 60, Step: 10},    // 3 points
	}
	assert.Equal(t, 9, sp.GridSize())

	withBool := append(sp, ParameterRange{Name: "pyramiding", Bool: true})
	assert.Equal(t, 18, withBool.GridSize())

	fixed := ParameterSpace{{Name: "sma_period", Min: 20, Max: 20}}
	assert.Equal(t, 1, fixed.GridSize())
}
