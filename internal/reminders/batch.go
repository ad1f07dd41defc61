package reminders

import (
	"time"

	"github.com/shopspring/decimal"

	"subsplit_app_echo/internal/models"
)

// Batch is one notification: a member, a reminder type and the charges it covers.
type Batch struct {
	Member  models.Member
	Type    models.ReminderType
	Charges []models.Charge
}

func (b Batch) Total() decimal.Decimal {
	total := decimal.Zero
	for _, c := range b.Charges {
		total = total.Add(c.Amount)
	}
	return total
}

// PlatformNames lists platforms in charge order, once each.
func (b Batch) PlatformNames() []string {
	seen := make(map[string]bool, len(b.Charges))
	names := make([]string, 0, len(b.Charges))
	for _, c := range b.Charges {
		name := c.Platform.Name
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// EarliestDue is the soonest due date among the batch's charges.
func (b Batch) EarliestDue() time.Time {
	var earliest time.Time
	for i, c := range b.Charges {
		if i == 0 || c.DueDate.Before(earliest) {
			earliest = c.DueDate
		}
	}
	return earliest
}

func (b Batch) ChargeIDs() []uint {
	ids := make([]uint, len(b.Charges))
	for i, c := range b.Charges {
		ids[i] = c.ID
	}
	return ids
}
