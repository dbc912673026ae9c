package ml

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separableSet builds two well-separated clusters labelled 0 and 1.
func separableSet(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		if i%2 == 0 {
			x[i] = []float64{rng.Float64(), rng.Float64(), rng.Float64()}
		} else {
			x[i] = []float64{5 + rng.Float64(), 5 + rng.Float64(), 5 + rng.Float64()}
			y[i] = 1
		}
	}
	return x, y
}

func TestRandomForestSeparableClasses(t *testing.T) {
	x, y := separableSet(60, 11)
	forest, err := TrainRandomForest(x, y, RandomForestConfig{NumTrees: 30, Seed: 1})
	require.NoError(t, err)

	label, confidence := forest.Predict([]float64{0.5, 0.5, 0.5})
	assert.Equal(t, 0.0, label)
	assert.Greater(t, confidence, 0.5)

	label, confidence = forest.Predict([]float64{5.5, 5.5, 5.5})
	assert.Equal(t, 1.0, label)
	assert.Greater(t, confidence, 0.5)
}

func TestRandomForestProbabilitiesSumToOne(t *testing.T) {
	x, y := separableSet(40, 11)
	forest, err := TrainRandomForest(x, y, RandomForestConfig{NumTrees: 10, Seed: 1})
	require.NoError(t, err)

	probs := forest.PredictProba([]float64{2.5, 2.5, 2.5})
	require.Len(t, probs, 2)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)
}

func TestRandomForestPreservesOriginalLabels(t *testing.T) {
	// labels need not be 0-based class indexes
	x := [][]float64{{0}, {0.1}, {0.2}, {10}, {10.1}, {10.2}}
	y := []float64{3, 3, 3, 7, 7, 7}
	forest, err := TrainRandomForest(x, y, RandomForestConfig{NumTrees: 10, Seed: 1})
	require.NoError(t, err)

	label, _ := forest.Predict([]float64{0.05})
	assert.Equal(t, 3.0, label)
	label, _ = forest.Predict([]float64{10.05})
	assert.Equal(t, 7.0, label)
}

func TestRandomForestDeterministicBySeed(t *testing.T) {
	x, y := separableSet(40, 11)
	a, err := TrainRandomForest(x, y, RandomForestConfig{NumTrees: 15, Seed: 9})
	require.NoError(t, err)
	b, err := TrainRandomForest(x, y, RandomForestConfig{NumTrees: 15, Seed: 9})
	require.NoError(t, err)

	probe := []float64{1.5, 1.5, 1.5}
	valueA, confA := a.Predict(probe)
	valueB, confB := b.Predict(probe)
	assert.Equal(t, valueA, valueB)
	assert.Equal(t, confA, confB)
}

func TestRandomForestInputValidation(t *testing.T) {
	_, err := TrainRandomForest(nil, nil, RandomForestConfig{})
	assert.Error(t, err)

	_, err = TrainRandomForest([][]float64{{1}}, []float64{1, 2}, RandomForestConfig{})
	assert.Error(t, err)
}
