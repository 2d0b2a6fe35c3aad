package feature

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constProvider(name, source string, value float64) Provider {
	return func(r *Registry) {
		r.Register(name, source, func(Input) (Output, error) {
			return Output{Value: Numeric(value)}, nil
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "rsi_14", Normalize("RSI-14"))
	assert.Equal(t, "rsi_14", Normalize("rsi.14"))
	assert.Equal(t, "trend_strength", Normalize("  Trend Strength "))
	assert.Equal(t, "macd_hist", Normalize("MACD__hist"))
}

func TestRegistryFirstWins(t *testing.T) {
	reg := NewRegistry(
		constProvider("RSI", "alpha", 1),
		constProvider("rsi", "beta", 2),
	)
	reg.Build(false)

	fn, err := reg.Get("Rsi")
	require.NoError(t, err)
	out, err := fn(Input{})
	require.NoError(t, err)
	v, ok := out.Value.Float()
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	conflicts := reg.Conflicts()
	require.Len(t, conflicts, 1)
	assert.Equal(t, "rsi", conflicts[0].Name)
	assert.Equal(t, "alpha", conflicts[0].Kept)
	assert.Equal(t, "beta", conflicts[0].Losing)
}

func TestRegistryNotFound(t *testing.T) {
	reg := NewRegistry()
	reg.Build(false)

	_, err := reg.Get("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistryBuildIdempotent(t *testing.T) {
	calls := 0
	reg := NewRegistry(func(r *Registry) {
		calls++
		r.Register("x", "p", func(Input) (Output, error) { return Output{}, nil })
	})
	reg.Build(false)
	reg.Build(false)
	assert.Equal(t, 1, calls)

	reg.Build(true)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"x"}, reg.Names())
}
