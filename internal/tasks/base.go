package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"subsplit_app_echo/internal/models"
)

// BuildScheduledTask is a helper to build ScheduledTask records generically
func BuildScheduledTask(taskName string, args interface{}, due time.Time, recurringInterval *string, taskType models.ScheduledTaskType, maxAttempt int) (*models.ScheduledTask, error) {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var mapArgs map[string]interface{}
	if err := json.Unmarshal(argsBytes, &mapArgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}
	if mapArgs == nil {
		mapArgs = map[string]interface{}{}
	}
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	return &models.ScheduledTask{
		TaskName:          taskName,
		Arguments:         mapArgs,
		Due:               due,
		RecurringInterval: recurringInterval,
		Status:            models.ScheduledTaskStatusActive,
		TaskType:          taskType,
		MaxAttempt:        maxAttempt,
	}, nil
}

// Default recurrences, evaluated in the application time zone.
const (
	MonthlyChargesRule = "FREQ=MONTHLY;BYMONTHDAY=1;BYHOUR=6;BYMINUTE=0;BYSECOND=0"
	DailyRemindersRule = "FREQ=DAILY;BYHOUR=9;BYMINUTE=0;BYSECOND=0"
)

// EnsureDefaultTasks creates the recurring charge generation and reminder
// tasks unless an active task with the same name already exists.
func EnsureDefaultTasks(ctx context.Context, db *gorm.DB, now time.Time) ([]models.ScheduledTask, error) {
	defaults := []struct {
		name string
		rule string
	}{
		{"generate_monthly_charges", MonthlyChargesRule},
		{"process_reminders", DailyRemindersRule},
	}

	var created []models.ScheduledTask
	for _, d := range defaults {
		var count int64
		if err := db.WithContext(ctx).Model(&models.ScheduledTask{}).
			Where("task_name = ? AND status = ?", d.name, models.ScheduledTaskStatusActive).
			Count(&count).Error; err != nil {
			return created, fmt.Errorf("checking %s: %w", d.name, err)
		}
		if count > 0 {
			continue
		}

		rule := d.rule
		task, err := BuildScheduledTask(d.name, map[string]interface{}{}, now, &rule, models.ScheduledTaskTypeRecurring, 1)
		if err != nil {
			return created, err
		}
		// first occurrence of the rule, not now itself
		task.Due = task.NextDue(now)

		if err := db.WithContext(ctx).Create(task).Error; err != nil {
			return created, fmt.Errorf("creating %s: %w", d.name, err)
		}
		created = append(created, *task)
	}
	return created, nil
}
