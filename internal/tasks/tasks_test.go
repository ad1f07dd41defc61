package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"subsplit_app_echo/internal/billing"
	"subsplit_app_echo/internal/dbtest"
	"subsplit_app_echo/internal/models"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newRunner(db *gorm.DB, registry *Registry) *Runner {
	r := NewRunner(db, registry, zerolog.Nop())
	r.now = func() time.Time { return fixedNow }
	return r
}

func createTask(t *testing.T, db *gorm.DB, task *models.ScheduledTask) {
	t.Helper()
	require.NoError(t, db.Create(task).Error)
}

func historyFor(t *testing.T, db *gorm.DB, taskID uint) []models.ScheduledTaskHistory {
	t.Helper()
	var rows []models.ScheduledTaskHistory
	require.NoError(t, db.Where("scheduled_task_id = ?", taskID).Order("attempt_number").Find(&rows).Error)
	return rows
}

func reloadTask(t *testing.T, db *gorm.DB, id uint) models.ScheduledTask {
	t.Helper()
	var task models.ScheduledTask
	require.NoError(t, db.First(&task, id).Error)
	return task
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	DefineTasks(r, Deps{Logger: zerolog.Nop()})

	assert.Equal(t, []string{"generate_monthly_charges", "log_info", "process_reminders"}, r.Names())

	handler, ok := r.Get("log_info")
	require.True(t, ok)
	result, err := handler(context.Background(), models.ScheduledTask{Arguments: map[string]interface{}{"message": "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hi", result["message"])

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRunnerOneTimeTask(t *testing.T) {
	db := dbtest.Open(t)
	registry := NewRegistry()
	registry.RegisterTask(NewLogInfoTask(zerolog.Nop()))

	task, err := BuildScheduledTask("log_info", map[string]string{"message": "ping"}, fixedNow.Add(-time.Minute), nil, models.ScheduledTaskTypeOneTime, 3)
	require.NoError(t, err)
	createTask(t, db, task)

	future, err := BuildScheduledTask("log_info", nil, fixedNow.Add(time.Hour), nil, models.ScheduledTaskTypeOneTime, 1)
	require.NoError(t, err)
	createTask(t, db, future)

	assert.Equal(t, 1, newRunner(db, registry).RunDue(context.Background()))

	reloaded := reloadTask(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusDone, reloaded.Status)
	require.NotNil(t, reloaded.LastRun)

	history := historyFor(t, db, task.ID)
	require.Len(t, history, 1)
	assert.Equal(t, "success", history[0].Status)
	assert.Equal(t, "ping", history[0].Result["message"])

	assert.Equal(t, models.ScheduledTaskStatusActive, reloadTask(t, db, future.ID).Status)
}

func TestRunnerRetriesThenFails(t *testing.T) {
	db := dbtest.Open(t)
	registry := NewRegistry()
	calls := 0
	registry.Register("flaky", func(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
		calls++
		return nil, errors.New("boom")
	})

	task, err := BuildScheduledTask("flaky", nil, fixedNow.Add(-time.Minute), nil, models.ScheduledTaskTypeOneTime, 3)
	require.NoError(t, err)
	createTask(t, db, task)

	newRunner(db, registry).RunDue(context.Background())

	assert.Equal(t, 3, calls)
	history := historyFor(t, db, task.ID)
	require.Len(t, history, 3)
	assert.Equal(t, "failure", history[2].Status)
	assert.Equal(t, "boom", history[2].Result["error"])
	assert.Equal(t, models.ScheduledTaskStatusFailure, reloadTask(t, db, task.ID).Status)
}

func TestRunnerRecurringReschedules(t *testing.T) {
	db := dbtest.Open(t)
	registry := NewRegistry()
	registry.RegisterTask(NewLogInfoTask(zerolog.Nop()))

	rule := "FREQ=DAILY;BYHOUR=9;BYMINUTE=0;BYSECOND=0"
	due := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	task, err := BuildScheduledTask("log_info", nil, due, &rule, models.ScheduledTaskTypeRecurring, 1)
	require.NoError(t, err)
	createTask(t, db, task)

	newRunner(db, registry).RunDue(context.Background())

	reloaded := reloadTask(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusActive, reloaded.Status)
	assert.True(t, reloaded.Due.Equal(time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)), "due %s", reloaded.Due)
}

func TestRunnerUnknownHandler(t *testing.T) {
	db := dbtest.Open(t)
	task, err := BuildScheduledTask("nope", nil, fixedNow.Add(-time.Minute), nil, models.ScheduledTaskTypeOneTime, 1)
	require.NoError(t, err)
	createTask(t, db, task)

	newRunner(db, NewRegistry()).RunDue(context.Background())

	assert.Equal(t, models.ScheduledTaskStatusFailure, reloadTask(t, db, task.ID).Status)
	history := historyFor(t, db, task.ID)
	require.Len(t, history, 1)
	assert.Equal(t, "handler_not_found", history[0].Status)
}

func TestGenerateChargesTask(t *testing.T) {
	db := dbtest.Open(t)
	member := models.Member{Name: "ana", Email: "ana@example.com", Active: true}
	require.NoError(t, db.Create(&member).Error)
	platform := models.Platform{Name: "Netflix", Cost: decimal.NewFromInt(20000), BillingCycleDay: 10, PaymentStrategy: models.PaymentStrategyEqual}
	require.NoError(t, db.Create(&platform).Error)
	require.NoError(t, db.Create(&models.Subscription{MemberID: member.ID, PlatformID: platform.ID}).Error)

	task := NewGenerateChargesTask(billing.NewGenerator(db, zerolog.Nop()), time.UTC)
	task.now = func() time.Time { return fixedNow }

	result, err := task.HandleExecution(context.Background(), models.ScheduledTask{
		Arguments: map[string]interface{}{"month": float64(2), "year": "2024"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result["month"])
	assert.Equal(t, 2024, result["year"])
	assert.Equal(t, 1, result["created_count"])

	result, err = task.HandleExecution(context.Background(), models.ScheduledTask{})
	require.NoError(t, err)
	assert.Equal(t, 6, result["month"])

	_, err = task.HandleExecution(context.Background(), models.ScheduledTask{
		Arguments: map[string]interface{}{"month": "june"},
	})
	assert.Error(t, err)
}

func TestTriggerFromArgs(t *testing.T) {
	trigger, err := triggerFromArgs(models.ScheduledTask{Arguments: map[string]interface{}{"member_id": float64(7)}})
	require.NoError(t, err)
	require.NotNil(t, trigger.MemberID)
	assert.EqualValues(t, 7, *trigger.MemberID)
	assert.Nil(t, trigger.ChargeID)
	assert.True(t, trigger.Manual())

	trigger, err = triggerFromArgs(models.ScheduledTask{})
	require.NoError(t, err)
	assert.False(t, trigger.Manual())
}

func TestEnsureDefaultTasks(t *testing.T) {
	db := dbtest.Open(t)

	created, err := EnsureDefaultTasks(context.Background(), db, fixedNow)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.True(t, created[0].Due.Equal(time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)), "due %s", created[0].Due)
	assert.True(t, created[1].Due.Equal(time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)), "due %s", created[1].Due)

	again, err := EnsureDefaultTasks(context.Background(), db, fixedNow)
	require.NoError(t, err)
	assert.Empty(t, again)
}
