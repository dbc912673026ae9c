package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelGobRoundTripForest(t *testing.T) {
	x, y := separableSet(40, 11)
	forest, err := TrainRandomForest(x, y, RandomForestConfig{NumTrees: 10, Seed: 1})
	require.NoError(t, err)

	blob, err := EncodeModel(forest)
	require.NoError(t, err)
	restored, err := DecodeModel(blob)
	require.NoError(t, err)

	probes := [][]float64{
		{0.5, 0.5, 0.5},
		{5.5, 5.5, 5.5},
		{2.5, 2.5, 2.5},
	}
	for _, probe := range probes {
		wantValue, wantConf := forest.PredictValue(probe)
		gotValue, gotConf := restored.PredictValue(probe)
		assert.InDelta(t, wantValue, gotValue, 1e-6)
		assert.InDelta(t, wantConf, gotConf, 1e-6)
	}
}

func TestModelGobRoundTripBoosting(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	y := []float64{2, 4, 6, 8, 10, 12}
	model, err := TrainGradientBoosting(x, y, GradientBoostingConfig{NumTrees: 20, Seed: 2})
	require.NoError(t, err)

	blob, err := EncodeModel(model)
	require.NoError(t, err)
	restored, err := DecodeModel(blob)
	require.NoError(t, err)

	for _, probe := range [][]float64{{1.5}, {3.5}, {5.5}} {
		wantValue, wantConf := model.PredictValue(probe)
		gotValue, gotConf := restored.PredictValue(probe)
		assert.InDelta(t, wantValue, gotValue, 1e-6)
		assert.Equal(t, wantConf, gotConf)
	}
}

func TestDecodeModelRejectsGarbage(t *testing.T) {
	_, err := DecodeModel([]byte("not a gob"))
	assert.Error(t, err)
}

func TestScalerGobRoundTrip(t *testing.T) {
	s, err := FitScaler([][]float64{{1, 10}, {2, 20}, {3, 30}})
	require.NoError(t, err)

	blob, err := EncodeScaler(s)
	require.NoError(t, err)
	restored, err := DecodeScaler(blob)
	require.NoError(t, err)

	assert.Equal(t, s.Mean, restored.Mean)
	assert.Equal(t, s.Std, restored.Std)
}
