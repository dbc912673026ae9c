package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitScalerStatistics(t *testing.T) {
	rows := [][]float64{
		{1, 10},
		{2, 10},
		{3, 10},
	}
	s, err := FitScaler(rows)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, s.Mean[0], 1e-9)
	assert.InDelta(t, 1.0, s.Std[0], 1e-9)
	// zero-variance columns scale by 1 instead of dividing by zero
	assert.Equal(t, 1.0, s.Std[1])

	scaled, err := s.TransformRow([]float64{2, 10})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, scaled[0], 1e-9)
	assert.InDelta(t, 0.0, scaled[1], 1e-9)
}

func TestScalerTransformMatchesRow(t *testing.T) {
	rows := [][]float64{{1, 4}, {3, 8}, {5, 12}}
	s, err := FitScaler(rows)
	require.NoError(t, err)

	all, err := s.Transform(rows)
	require.NoError(t, err)
	for i, row := range rows {
		single, err := s.TransformRow(row)
		require.NoError(t, err)
		assert.Equal(t, single, all[i])
	}
}

func TestScalerShapeErrors(t *testing.T) {
	_, err := FitScaler(nil)
	assert.Error(t, err)

	_, err = FitScaler([][]float64{{1, 2}, {3}})
	assert.Error(t, err)

	s, err := FitScaler([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	_, err = s.TransformRow([]float64{1})
	assert.Error(t, err)
}
