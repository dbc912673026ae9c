package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttendanceSummaryRate(t *testing.T) {
	rate, ok := AttendanceSummary{TotalCount: 20, PresentCount: 15, LateCount: 3, AbsentCount: 2}.Rate()
	assert.True(t, ok)
	assert.InDelta(t, 0.9, rate, 1e-9)

	// late still counts as attended
	rate, ok = AttendanceSummary{TotalCount: 10, LateCount: 10}.Rate()
	assert.True(t, ok)
	assert.Equal(t, 1.0, rate)

	_, ok = AttendanceSummary{}.Rate()
	assert.False(t, ok)
}
