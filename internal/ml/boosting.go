package ml

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// GradientBoosting is an additive ensemble of shallow regression trees fit
// on residuals. Fields are exported for gob persistence.
type GradientBoosting struct {
	InitValue    float64
	LearningRate float64
	Trees        []*TreeNode
}

// GradientBoostingConfig tunes training.
type GradientBoostingConfig struct {
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	LearningRate    float64
	Seed            int64
}

func (c *GradientBoostingConfig) defaults() {
	if c.NumTrees <= 0 {
		c.NumTrees = 100
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 3
	}
	if c.MinSamplesSplit <= 0 {
		c.MinSamplesSplit = 2
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.1
	}
}

// TrainGradientBoosting fits the ensemble with least-squares loss.
func TrainGradientBoosting(x [][]float64, y []float64, cfg GradientBoostingConfig) (*GradientBoosting, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("train boosting: %d samples, %d labels", len(x), len(y))
	}
	cfg.defaults()

	model := &GradientBoosting{
		InitValue:    stat.Mean(y, nil),
		LearningRate: cfg.LearningRate,
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	idx := make([]int, len(x))
	current := make([]float64, len(y))
	residuals := make([]float64, len(y))
	for i := range current {
		current[i] = model.InitValue
		idx[i] = i
	}

	for t := 0; t < cfg.NumTrees; t++ {
		for i := range y {
			residuals[i] = y[i] - current[i]
		}
		tree := buildTree(x, residuals, idx, 0, treeConfig{
			maxDepth:        cfg.MaxDepth,
			minSamplesSplit: cfg.MinSamplesSplit,
			rng:             rng,
		})
		model.Trees = append(model.Trees, tree)
		for i, row := range x {
			current[i] += cfg.LearningRate * tree.RegressionValue(row)
		}
	}
	return model, nil
}

// Predict returns the boosted estimate for x.
func (g *GradientBoosting) Predict(x []float64) float64 {
	value := g.InitValue
	for _, tree := range g.Trees {
		value += g.LearningRate * tree.RegressionValue(x)
	}
	return value
}
