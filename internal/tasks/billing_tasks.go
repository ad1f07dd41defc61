package tasks

import (
	"context"
	"fmt"
	"time"

	"subsplit_app_echo/internal/billing"
	"subsplit_app_echo/internal/models"
)

// GenerateChargesArgs selects the billing period. Zero values mean the
// current month in the application time zone.
type GenerateChargesArgs struct {
	Month int `json:"month,omitempty"`
	Year  int `json:"year,omitempty"`
}

// GenerateChargesTaskDef runs monthly charge generation.
type GenerateChargesTaskDef struct {
	generator *billing.Generator
	loc       *time.Location
	now       func() time.Time
}

func NewGenerateChargesTask(generator *billing.Generator, loc *time.Location) *GenerateChargesTaskDef {
	if loc == nil {
		loc = time.UTC
	}
	return &GenerateChargesTaskDef{generator: generator, loc: loc, now: time.Now}
}

// TaskID returns the unique identifier for this task
func (t *GenerateChargesTaskDef) TaskID() string {
	return "generate_monthly_charges"
}

// CreateTask builds a one-time ScheduledTask for the given period
func (t *GenerateChargesTaskDef) CreateTask(args GenerateChargesArgs, due time.Time) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), args, due, nil, models.ScheduledTaskTypeOneTime, 1)
}

// period resolves the month and year a run should bill.
func (t *GenerateChargesTaskDef) period(task models.ScheduledTask) (int, int, error) {
	now := t.now().In(t.loc)
	month, year := int(now.Month()), now.Year()

	if m, ok, err := task.IntArg("month"); err != nil {
		return 0, 0, err
	} else if ok && m != 0 {
		month = m
	}
	if y, ok, err := task.IntArg("year"); err != nil {
		return 0, 0, err
	} else if ok && y != 0 {
		year = y
	}
	return month, year, nil
}

// HandleExecution generates the charges for the resolved period
func (t *GenerateChargesTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	if t.generator == nil {
		return nil, fmt.Errorf("charge generator not configured")
	}
	month, year, err := t.period(task)
	if err != nil {
		return nil, err
	}

	created, err := t.generator.GenerateMonthlyCharges(ctx, month, year)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"status":        "success",
		"month":         month,
		"year":          year,
		"created_count": created,
	}, nil
}
