package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// RandomForest is a bagged ensemble of classification trees. Fields are
// exported for gob persistence; Classes holds the original label values in
// index order.
type RandomForest struct {
	Trees   []*TreeNode
	Classes []float64
}

// RandomForestConfig tunes training.
type RandomForestConfig struct {
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	Seed            int64
}

func (c *RandomForestConfig) defaults() {
	if c.NumTrees <= 0 {
		c.NumTrees = 100
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 12
	}
	if c.MinSamplesSplit <= 0 {
		c.MinSamplesSplit = 2
	}
}

// TrainRandomForest fits a forest on the given samples. Labels may be any
// float values; they are index-encoded internally.
func TrainRandomForest(x [][]float64, y []float64, cfg RandomForestConfig) (*RandomForest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("train forest: %d samples, %d labels", len(x), len(y))
	}
	cfg.defaults()

	classes := distinctSorted(y)
	classIndex := make(map[float64]int, len(classes))
	for i, c := range classes {
		classIndex[c] = i
	}
	encoded := make([]float64, len(y))
	for i, v := range y {
		encoded[i] = float64(classIndex[v])
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	maxFeatures := int(math.Sqrt(float64(len(x[0]))))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	forest := &RandomForest{Classes: classes}
	for t := 0; t < cfg.NumTrees; t++ {
		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = rng.Intn(len(x))
		}
		tree := buildTree(x, encoded, sample, 0, treeConfig{
			maxDepth:        cfg.MaxDepth,
			minSamplesSplit: cfg.MinSamplesSplit,
			maxFeatures:     maxFeatures,
			classes:         len(classes),
			rng:             rng,
		})
		forest.Trees = append(forest.Trees, tree)
	}
	return forest, nil
}

// PredictProba averages the per-tree class distributions for x.
func (f *RandomForest) PredictProba(x []float64) []float64 {
	probs := make([]float64, len(f.Classes))
	if len(f.Trees) == 0 {
		return probs
	}
	for _, tree := range f.Trees {
		dist := tree.ClassDistribution(x, len(f.Classes))
		floats.Add(probs, dist)
	}
	floats.Scale(1/float64(len(f.Trees)), probs)
	return probs
}

// Predict returns the majority-vote class label and its probability.
func (f *RandomForest) Predict(x []float64) (float64, float64) {
	probs := f.PredictProba(x)
	if len(probs) == 0 {
		return 0, 0
	}
	best := floats.MaxIdx(probs)
	return f.Classes[best], probs[best]
}

func distinctSorted(values []float64) []float64 {
	seen := make(map[float64]struct{}, len(values))
	var out []float64
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}
