package ml

import (
	"math"
	"math/rand"
	"sort"
)

// TreeNode is one node of a CART decision tree. Leaf nodes carry either a
// regression value or per-class counts; split nodes carry the feature index
// and threshold. Fields are exported for gob persistence.
type TreeNode struct {
	Feature     int
	Threshold   float64
	Left        *TreeNode
	Right       *TreeNode
	Value       float64
	ClassCounts []float64
	Leaf        bool
}

type treeConfig struct {
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int // 0 means use all features
	classes         int // 0 means regression
	rng             *rand.Rand
}

// buildTree grows a tree on the given row indexes. Splits minimise Gini
// impurity for classification and squared error for regression.
func buildTree(x [][]float64, y []float64, idx []int, depth int, cfg treeConfig) *TreeNode {
	if len(idx) == 0 {
		return &TreeNode{Leaf: true}
	}
	node := &TreeNode{}
	if cfg.classes > 0 {
		node.ClassCounts = classCounts(y, idx, cfg.classes)
	} else {
		node.Value = meanAt(y, idx)
	}

	if depth >= cfg.maxDepth || len(idx) < cfg.minSamplesSplit || isPure(y, idx) {
		node.Leaf = true
		return node
	}

	feature, threshold, ok := bestSplit(x, y, idx, cfg)
	if !ok {
		node.Leaf = true
		return node
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		node.Leaf = true
		return node
	}

	node.Feature = feature
	node.Threshold = threshold
	node.Left = buildTree(x, y, left, depth+1, cfg)
	node.Right = buildTree(x, y, right, depth+1, cfg)
	return node
}

func bestSplit(x [][]float64, y []float64, idx []int, cfg treeConfig) (int, float64, bool) {
	features := candidateFeatures(len(x[0]), cfg)
	bestImpurity := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	values := make([]float64, 0, len(idx))
	for _, feature := range features {
		values = values[:0]
		for _, i := range idx {
			values = append(values, x[i][feature])
		}
		sort.Float64s(values)

		for k := 1; k < len(values); k++ {
			if values[k] == values[k-1] {
				continue
			}
			threshold := (values[k] + values[k-1]) / 2
			impurity := splitImpurity(x, y, idx, feature, threshold, cfg)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func splitImpurity(x [][]float64, y []float64, idx []int, feature int, threshold float64, cfg treeConfig) float64 {
	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return math.Inf(1)
	}
	total := float64(len(idx))
	if cfg.classes > 0 {
		return float64(len(left))/total*gini(y, left, cfg.classes) +
			float64(len(right))/total*gini(y, right, cfg.classes)
	}
	return float64(len(left))/total*mse(y, left) + float64(len(right))/total*mse(y, right)
}

func candidateFeatures(total int, cfg treeConfig) []int {
	if cfg.maxFeatures <= 0 || cfg.maxFeatures >= total {
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := cfg.rng.Perm(total)
	return perm[:cfg.maxFeatures]
}

func gini(y []float64, idx []int, classes int) float64 {
	counts := classCounts(y, idx, classes)
	total := float64(len(idx))
	impurity := 1.0
	for _, c := range counts {
		p := c / total
		impurity -= p * p
	}
	return impurity
}

func mse(y []float64, idx []int) float64 {
	mean := meanAt(y, idx)
	var sum float64
	for _, i := range idx {
		d := y[i] - mean
		sum += d * d
	}
	return sum / float64(len(idx))
}

func classCounts(y []float64, idx []int, classes int) []float64 {
	counts := make([]float64, classes)
	for _, i := range idx {
		counts[int(y[i])]++
	}
	return counts
}

func meanAt(y []float64, idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

func isPure(y []float64, idx []int) bool {
	first := y[idx[0]]
	for _, i := range idx[1:] {
		if y[i] != first {
			return false
		}
	}
	return true
}

// predict walks the tree to the leaf for x.
func (n *TreeNode) predict(x []float64) *TreeNode {
	node := n
	for !node.Leaf && node.Left != nil && node.Right != nil {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

// RegressionValue returns the leaf mean for x.
func (n *TreeNode) RegressionValue(x []float64) float64 {
	return n.predict(x).Value
}

// ClassDistribution returns the normalised leaf class distribution for x.
func (n *TreeNode) ClassDistribution(x []float64, classes int) []float64 {
	leaf := n.predict(x)
	probs := make([]float64, classes)
	if len(leaf.ClassCounts) != classes {
		return probs
	}
	var total float64
	for _, c := range leaf.ClassCounts {
		total += c
	}
	if total == 0 {
		return probs
	}
	for i, c := range leaf.ClassCounts {
		probs[i] = c / total
	}
	return probs
}
