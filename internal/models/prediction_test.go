package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketRiskDropout(t *testing.T) {
	cases := []struct {
		value float64
		want  RiskLevel
	}{
		{0.75, RiskCritical},
		{0.71, RiskCritical},
		{0.7, RiskHigh},
		{0.55, RiskHigh},
		{0.5, RiskMedium},
		{0.4, RiskMedium},
		{0.3, RiskLow},
		{0.1, RiskLow},
		{0, RiskLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BucketRisk(PredictionDropout, tc.value), "dropout value %v", tc.value)
	}
}

func TestBucketRiskGradeScale(t *testing.T) {
	cases := []struct {
		value float64
		want  RiskLevel
	}{
		{1.8, RiskCritical},
		{1.99, RiskCritical},
		{2.0, RiskHigh},
		{2.4, RiskHigh},
		{2.5, RiskMedium},
		{2.9, RiskMedium},
		{3.0, RiskLow},
		{3.5, RiskLow},
		{4.0, RiskLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BucketRisk(PredictionGrade, tc.value), "grade value %v", tc.value)
	}
	// attendance and behavior predictions follow the grade scale
	assert.Equal(t, RiskCritical, BucketRisk(PredictionAttendance, 1.5))
	assert.Equal(t, RiskLow, BucketRisk(PredictionBehavior, 3.2))
}

func TestRiskLevelRank(t *testing.T) {
	assert.Equal(t, 1, RiskLow.Rank())
	assert.Equal(t, 2, RiskMedium.Rank())
	assert.Equal(t, 3, RiskHigh.Rank())
	assert.Equal(t, 4, RiskCritical.Rank())
	assert.Equal(t, 0, RiskLevel("bogus").Rank())
}
