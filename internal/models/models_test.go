package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformDueDay(t *testing.T) {
	tests := []struct {
		name     string
		cycleDay int
		month    time.Month
		year     int
		expected int
	}{
		{name: "within month", cycleDay: 15, month: time.June, year: 2024, expected: 15},
		{name: "clamped to 30 day month", cycleDay: 31, month: time.June, year: 2024, expected: 30},
		{name: "leap february", cycleDay: 31, month: time.February, year: 2024, expected: 29},
		{name: "common february", cycleDay: 30, month: time.February, year: 2023, expected: 28},
		{name: "zero treated as first", cycleDay: 0, month: time.March, year: 2024, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Platform{BillingCycleDay: tt.cycleDay}
			assert.Equal(t, tt.expected, p.DueDay(tt.month, tt.year))
		})
	}
}

func TestPlatformDueDate(t *testing.T) {
	p := Platform{BillingCycleDay: 31}
	due := p.DueDate(time.June, 2024)
	assert.Equal(t, time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC), due)
}

func TestScheduledTaskNextDue(t *testing.T) {
	rule := "FREQ=MONTHLY;BYMONTHDAY=1"
	task := ScheduledTask{
		Due:               time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC),
		TaskType:          ScheduledTaskTypeRecurring,
		RecurringInterval: &rule,
	}

	next := task.NextDue(time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, time.February, 1, 8, 0, 0, 0, time.UTC), next)

	oneTime := ScheduledTask{Due: task.Due, TaskType: ScheduledTaskTypeOneTime}
	assert.Equal(t, task.Due, oneTime.NextDue(time.Now()))
}

func TestScheduledTaskIntArg(t *testing.T) {
	task := ScheduledTask{Arguments: map[string]interface{}{
		"month":  float64(6),
		"year":   "2024",
		"broken": "june",
	}}

	month, ok, err := task.IntArg("month")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 6, month)

	year, ok, err := task.IntArg("year")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2024, year)

	_, ok, err = task.IntArg("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = task.IntArg("broken")
	assert.Error(t, err)
}
