package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"subsplit_app_echo/internal/metrics"
	"subsplit_app_echo/internal/models"
)

// Runner executes scheduled tasks whose due time has passed.
type Runner struct {
	db       *gorm.DB
	registry *Registry
	log      zerolog.Logger
	now      func() time.Time
}

func NewRunner(db *gorm.DB, registry *Registry, log zerolog.Logger) *Runner {
	return &Runner{
		db:       db,
		registry: registry,
		log:      log.With().Str("component", "task_runner").Logger(),
		now:      time.Now,
	}
}

// RunDue processes every active task that is due and returns how many ran.
func (r *Runner) RunDue(ctx context.Context) int {
	var pendingTasks []models.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, r.now()).
		Order("due ASC").
		Find(&pendingTasks).Error
	if err != nil {
		r.log.Error().Err(err).Msg("fetching pending tasks")
		return 0
	}
	if len(pendingTasks) == 0 {
		r.log.Debug().Msg("no pending tasks")
		return 0
	}

	r.log.Info().Int("count", len(pendingTasks)).Msg("found pending tasks")
	ran := 0
	for _, task := range pendingTasks {
		if ctx.Err() != nil {
			break
		}
		r.Execute(ctx, task)
		ran++
	}
	return ran
}

// Execute runs one task, retrying up to MaxAttempt times, records a history
// row per attempt and moves the task to its next state.
func (r *Runner) Execute(ctx context.Context, task models.ScheduledTask) {
	log := r.log.With().Uint("task_id", task.ID).Str("task", task.TaskName).Logger()
	if task.Arguments == nil {
		task.Arguments = make(map[string]interface{})
	}

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Error().Msg("task handler not found, marking as failure")
		now := r.now()
		r.recordHistory(log, models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           now,
			Status:          "handler_not_found",
			AttemptNumber:   1,
			Arguments:       task.Arguments,
			Result:          map[string]interface{}{"error": "Handler not found"},
		})
		r.update(log, task, map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": now,
		})
		metrics.TaskRuns.WithLabelValues(task.TaskName, "handler_not_found").Inc()
		return
	}

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	var (
		startTime time.Time
		err       error
	)
	for attempt := 1; attempt <= maxAttempt; attempt++ {
		startTime = r.now()
		var result map[string]interface{}
		result, err = handler(ctx, task)
		runtimeMs := int(r.now().Sub(startTime).Milliseconds())

		status := "success"
		if err != nil {
			status = "failure"
			result = map[string]interface{}{"error": err.Error()}
			log.Error().Err(err).Int("attempt", attempt).Msg("task failed")
		} else {
			log.Info().Int("attempt", attempt).Int("runtime_ms", runtimeMs).Msg("task completed")
		}

		r.recordHistory(log, models.ScheduledTaskHistory{
			ScheduledTaskID: task.ID,
			TaskName:        task.TaskName,
			RunAt:           startTime,
			Runtime:         runtimeMs,
			Status:          status,
			AttemptNumber:   attempt,
			Arguments:       task.Arguments,
			Result:          result,
		})
		metrics.TaskRuns.WithLabelValues(task.TaskName, status).Inc()

		if err == nil || ctx.Err() != nil {
			break
		}
	}

	updates := map[string]interface{}{"last_run": startTime}
	switch {
	case err != nil:
		updates["status"] = models.ScheduledTaskStatusFailure
	case task.TaskType == models.ScheduledTaskTypeRecurring:
		nextDue := task.NextDue(r.now())
		// only reschedule forward, otherwise the task would run again on the next tick
		if nextDue.After(task.Due) {
			updates["status"] = models.ScheduledTaskStatusActive
			updates["due"] = nextDue
		} else {
			updates["status"] = models.ScheduledTaskStatusDone
		}
	default:
		updates["status"] = models.ScheduledTaskStatusDone
	}
	r.update(log, task, updates)
}

func (r *Runner) recordHistory(log zerolog.Logger, h models.ScheduledTaskHistory) {
	if err := r.db.Create(&h).Error; err != nil {
		log.Error().Err(err).Msg("recording task history")
	}
}

func (r *Runner) update(log zerolog.Logger, task models.ScheduledTask, updates map[string]interface{}) {
	if err := r.db.Model(&models.ScheduledTask{}).Where("id = ?", task.ID).Updates(updates).Error; err != nil {
		log.Error().Err(err).Msg("updating task state")
	}
}
