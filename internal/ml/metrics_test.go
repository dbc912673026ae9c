package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateClassificationPerfect(t *testing.T) {
	labels := []float64{0, 1, 0, 1, 1}
	m := EvaluateClassification(labels, labels)
	assert.Equal(t, 1.0, m.Accuracy)
	assert.Equal(t, 1.0, m.Precision)
	assert.Equal(t, 1.0, m.Recall)
	assert.Equal(t, 1.0, m.F1)
}

func TestEvaluateClassificationMixed(t *testing.T) {
	actual := []float64{0, 0, 1, 1}
	predicted := []float64{0, 1, 1, 1}
	m := EvaluateClassification(actual, predicted)

	assert.InDelta(t, 0.75, m.Accuracy, 1e-9)
	// class 0: precision 1, recall 0.5; class 1: precision 2/3, recall 1
	assert.InDelta(t, 0.5*1+0.5*(2.0/3.0), m.Precision, 1e-9)
	assert.InDelta(t, 0.5*0.5+0.5*1, m.Recall, 1e-9)
}

func TestEvaluateClassificationDegenerate(t *testing.T) {
	m := EvaluateClassification(nil, nil)
	assert.Zero(t, m.Accuracy)

	m = EvaluateClassification([]float64{1, 0}, []float64{1})
	assert.Zero(t, m.Accuracy)
}

func TestRegressionAccuracy(t *testing.T) {
	actual := []float64{2, 4}
	assert.Equal(t, 1.0, RegressionAccuracy(actual, actual))

	// errors are relative to max(|actual|, 1)
	got := RegressionAccuracy([]float64{2, 4}, []float64{3, 4})
	assert.InDelta(t, 1-0.25, got, 1e-9)

	// small denominators clamp to 1 so the score stays bounded
	got = RegressionAccuracy([]float64{0.1}, []float64{0.2})
	assert.InDelta(t, 0.9, got, 1e-9)

	assert.Zero(t, RegressionAccuracy(nil, nil))
}
