package ml

import (
	"math"
)

// ClassificationMetrics holds weighted-average quality scores.
type ClassificationMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// EvaluateClassification computes accuracy and support-weighted precision,
// recall and F1 over predicted vs. actual labels.
func EvaluateClassification(actual, predicted []float64) ClassificationMetrics {
	var m ClassificationMetrics
	if len(actual) == 0 || len(actual) != len(predicted) {
		return m
	}

	var correct int
	for i := range actual {
		if actual[i] == predicted[i] {
			correct++
		}
	}
	m.Accuracy = float64(correct) / float64(len(actual))

	classes := distinctSorted(actual)
	total := float64(len(actual))
	for _, class := range classes {
		var tp, fp, fn, support float64
		for i := range actual {
			actualIs := actual[i] == class
			predictedIs := predicted[i] == class
			if actualIs {
				support++
			}
			switch {
			case actualIs && predictedIs:
				tp++
			case !actualIs && predictedIs:
				fp++
			case actualIs && !predictedIs:
				fn++
			}
		}
		var precision, recall float64
		if tp+fp > 0 {
			precision = tp / (tp + fp)
		}
		if tp+fn > 0 {
			recall = tp / (tp + fn)
		}
		var f1 float64
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		weight := support / total
		m.Precision += weight * precision
		m.Recall += weight * recall
		m.F1 += weight * f1
	}
	return m
}

// RegressionAccuracy maps regression error onto a pseudo-accuracy in [0,1]:
// 1 - mean(|error| / max(|actual|, 1)).
func RegressionAccuracy(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return 0
	}
	var sum float64
	for i := range actual {
		denom := math.Abs(actual[i])
		if denom < 1 {
			denom = 1
		}
		sum += math.Abs(actual[i]-predicted[i]) / denom
	}
	return 1 - sum/float64(len(actual))
}
