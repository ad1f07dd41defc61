package tasks

import (
	"context"
	"fmt"

	"subsplit_app_echo/internal/models"
	"subsplit_app_echo/internal/reminders"
)

// ProcessRemindersTaskDef runs the reminder dispatcher. Without arguments it
// is the automatic daily run; member_id or charge_id make it a manual send.
type ProcessRemindersTaskDef struct {
	dispatcher *reminders.Dispatcher
}

func NewProcessRemindersTask(dispatcher *reminders.Dispatcher) *ProcessRemindersTaskDef {
	return &ProcessRemindersTaskDef{dispatcher: dispatcher}
}

// TaskID returns the unique identifier for this task
func (t *ProcessRemindersTaskDef) TaskID() string {
	return "process_reminders"
}

func triggerFromArgs(task models.ScheduledTask) (reminders.Trigger, error) {
	var trigger reminders.Trigger
	for key, dst := range map[string]**uint{"charge_id": &trigger.ChargeID, "member_id": &trigger.MemberID} {
		v, ok, err := task.IntArg(key)
		if err != nil {
			return trigger, err
		}
		if ok && v > 0 {
			id := uint(v)
			*dst = &id
		}
	}
	return trigger, nil
}

// HandleExecution dispatches reminders and reports per-batch outcomes
func (t *ProcessRemindersTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	if t.dispatcher == nil {
		return nil, fmt.Errorf("reminder dispatcher not configured")
	}
	trigger, err := triggerFromArgs(task)
	if err != nil {
		return nil, err
	}

	report, err := t.dispatcher.ProcessReminders(ctx, trigger)
	if err != nil {
		return nil, err
	}

	details := make([]map[string]interface{}, 0, len(report.Batches))
	failed := 0
	for _, b := range report.Batches {
		if b.Status == reminders.BatchFailed {
			failed++
		}
		details = append(details, map[string]interface{}{
			"member_id":    b.MemberID,
			"type":         string(b.Type),
			"charges_sent": b.ChargesSent,
			"status":       string(b.Status),
		})
	}
	return map[string]interface{}{
		"status":     "success",
		"candidates": report.Candidates,
		"processed":  report.Processed(),
		"failed":     failed,
		"details":    details,
	}, nil
}
