package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"subsplit_app_echo/internal/reminders"
)

// ReminderProcessor runs the reminder dispatcher. *reminders.Dispatcher satisfies it.
type ReminderProcessor interface {
	ProcessReminders(ctx context.Context, trigger reminders.Trigger) (*reminders.Report, error)
}

type ReminderHandler struct {
	processor ReminderProcessor
}

func NewReminderHandler(processor ReminderProcessor) *ReminderHandler {
	return &ReminderHandler{processor: processor}
}

// ProcessRemindersResponse is the body of a successful run.
type ProcessRemindersResponse struct {
	Success   bool                    `json:"success"`
	Processed int                     `json:"processed"`
	Message   string                  `json:"message,omitempty"`
	Details   []reminders.BatchResult `json:"details,omitempty"`
}

// ProcessReminders runs the dispatcher. An empty body is an automatic run;
// charge_id or member_id send a manual reminder to that member.
func (h *ReminderHandler) ProcessReminders(c echo.Context) error {
	var trigger reminders.Trigger
	if err := c.Bind(&trigger); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	report, err := h.processor.ProcessReminders(c.Request().Context(), trigger)
	if err != nil {
		return err
	}

	if report.Candidates == 0 {
		return c.JSON(http.StatusOK, ProcessRemindersResponse{
			Success: true,
			Message: "No charges to process",
		})
	}
	return c.JSON(http.StatusOK, ProcessRemindersResponse{
		Success:   true,
		Processed: report.Processed(),
		Details:   report.Batches,
	})
}
