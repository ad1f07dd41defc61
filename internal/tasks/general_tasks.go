package tasks

import (
	"context"

	"github.com/rs/zerolog"

	"subsplit_app_echo/internal/models"
)

// LogInfoTaskDef writes its message argument to the log. Handy to check a worker is alive.
type LogInfoTaskDef struct {
	log zerolog.Logger
}

func NewLogInfoTask(log zerolog.Logger) *LogInfoTaskDef {
	return &LogInfoTaskDef{log: log}
}

// TaskID returns the unique identifier for this task
func (t *LogInfoTaskDef) TaskID() string {
	return "log_info"
}

// HandleExecution handles logging information
func (t *LogInfoTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	message, ok := task.Arguments["message"].(string)
	if !ok {
		message = "No message provided"
	}
	t.log.Info().Str("task", t.TaskID()).Uint("task_id", task.ID).Msg(message)

	return map[string]interface{}{
		"status":  "success",
		"message": message,
	}, nil
}
