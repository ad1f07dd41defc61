// Package reminders decides which pending charges deserve a reminder and
// delivers them to members by email or WhatsApp.
package reminders

import (
	"time"

	"subsplit_app_echo/internal/models"
)

const (
	// PreReminderDays is how many days before the due date the "pre" reminder goes out.
	PreReminderDays = 5
	// OverdueReminderDays is how many days after the due date the "overdue" reminder goes out.
	OverdueReminderDays = 5
)

// civilDate drops the clock and zone, keeping the calendar day as seen in t's location.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the whole calendar days from today to due; negative once due has passed.
// due is a date column and is read in its stored location, today in the caller's.
func DaysUntil(due, today time.Time) int {
	diff := civilDate(due).Sub(civilDate(today))
	return int(diff.Hours() / 24)
}

// Classify returns the milestone the charge has reached today, or ReminderNone
// when it is not on a milestone or that milestone was already sent.
func Classify(charge models.Charge, today time.Time) models.ReminderType {
	var t models.ReminderType
	switch DaysUntil(charge.DueDate, today) {
	case PreReminderDays:
		t = models.ReminderPre
	case 0:
		t = models.ReminderDue
	case -OverdueReminderDays:
		t = models.ReminderOverdue
	default:
		return models.ReminderNone
	}

	if charge.LastReminded() == t {
		return models.ReminderNone
	}
	return t
}
