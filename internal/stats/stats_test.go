package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedian(t *testing.T) {
	testCases := []struct {
		name string
		in   []float64
		want float64
	}{
		{"single", []float64{3}, 3},
		{"odd", []float64{5, 1, 3}, 3},
		{"even_midpoint", []float64{0, 1}, 0.5},
		{"even_unsorted", []float64{4, 1, 3, 2}, 2.5},
		{"negative", []float64{-2, -1, -3}, -2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Median(tc.in)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestMedian_DoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_, err := Median(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestMedian_Empty(t *testing.T) {
	_, err := Median(nil)
	assert.True(t, errors.Is(err, ErrEmpty))
	assert.True(t, math.IsNaN(MustMedian(nil)))
}

func TestPopStdDev(t *testing.T) {
	t.Run("population not sample", func(t *testing.T) {
		sd, err := PopStdDev([]float64{-0.5, 0.5})
		require.NoError(t, err)
		assert.InDelta(t, 0.5, sd, 1e-12)
	})
	t.Run("constant input is exactly zero", func(t *testing.T) {
		sd, err := PopStdDev([]float64{1.25, 1.25, 1.25, 1.25})
		require.NoError(t, err)
		assert.Equal(t, 0.0, sd)
	})
	t.Run("single value", func(t *testing.T) {
		sd, err := PopStdDev([]float64{7})
		require.NoError(t, err)
		assert.Equal(t, 0.0, sd)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := PopStdDev(nil)
		assert.ErrorIs(t, err, ErrEmpty)
	})
}

func TestPopStdDevAbout(t *testing.T) {
	xs := []float64{0, 0, 3}

	sd, err := PopStdDevAbout(xs, 0)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(3), sd, 1e-12)

	mean, err := PopStdDev(xs)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(2), mean, 1e-12, "spread about the mean differs")

	sd, err = PopStdDevAbout([]float64{2, 2}, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sd)

	_, err = PopStdDevAbout(nil, 0)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMeanMinMax(t *testing.T) {
	xs := []float64{2, -1, 5}
	assert.InDelta(t, 2.0, Mean(xs), 1e-12)
	assert.Equal(t, -1.0, Min(xs))
	assert.Equal(t, 5.0, Max(xs))

	assert.True(t, math.IsNaN(Mean(nil)))
	assert.True(t, math.IsNaN(Min(nil)))
	assert.True(t, math.IsNaN(Max(nil)))
}
