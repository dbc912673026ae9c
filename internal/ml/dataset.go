package ml

import (
	"fmt"
	"math/rand"
)

// Dataset pairs feature rows with target values.
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len returns the sample count.
func (d Dataset) Len() int { return len(d.X) }

// DistinctTargets counts unique target values.
func (d Dataset) DistinctTargets() int {
	seen := make(map[float64]struct{}, len(d.Y))
	for _, v := range d.Y {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// TrainTestSplit partitions the dataset. When stratify is set the class
// proportions of the target are preserved in both partitions.
func TrainTestSplit(d Dataset, testFraction float64, stratify bool, seed int64) (train, test Dataset, err error) {
	if d.Len() == 0 || d.Len() != len(d.Y) {
		return train, test, fmt.Errorf("split: %d rows, %d targets", d.Len(), len(d.Y))
	}
	if testFraction <= 0 || testFraction >= 1 {
		return train, test, fmt.Errorf("split: test fraction %v out of range", testFraction)
	}

	rng := rand.New(rand.NewSource(seed))
	var groups [][]int
	if stratify {
		byClass := make(map[float64][]int)
		for i, v := range d.Y {
			byClass[v] = append(byClass[v], i)
		}
		for _, c := range distinctSorted(d.Y) {
			groups = append(groups, byClass[c])
		}
	} else {
		all := make([]int, d.Len())
		for i := range all {
			all[i] = i
		}
		groups = [][]int{all}
	}

	for _, group := range groups {
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		testSize := int(float64(len(group)) * testFraction)
		if testSize == 0 && len(group) > 1 {
			testSize = 1
		}
		for k, i := range group {
			if k < testSize {
				test.X = append(test.X, d.X[i])
				test.Y = append(test.Y, d.Y[i])
			} else {
				train.X = append(train.X, d.X[i])
				train.Y = append(train.Y, d.Y[i])
			}
		}
	}
	if train.Len() == 0 || test.Len() == 0 {
		return train, test, fmt.Errorf("split: not enough samples (%d) for a %v test fraction", d.Len(), testFraction)
	}
	return train, test, nil
}
