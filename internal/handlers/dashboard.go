package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"subsplit_app_echo/internal/apperr"
	"subsplit_app_echo/internal/models"
)

// DashboardHandler serves the overview figures of the admin dashboard
type DashboardHandler struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(db *gorm.DB, loc *time.Location) *DashboardHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardHandler{db: db, loc: loc, now: time.Now}
}

// DashboardSummary totals the current state of the group.
type DashboardSummary struct {
	Members        int64           `json:"members"`
	Platforms      int64           `json:"platforms"`
	MonthlyCost    decimal.Decimal `json:"monthly_cost"`
	PendingCount   int             `json:"pending_count"`
	PendingTotal   decimal.Decimal `json:"pending_total"`
	OverdueCount   int             `json:"overdue_count"`
	PaidThisMonth  decimal.Decimal `json:"paid_this_month"`
	UpcomingCharge *models.Charge  `json:"upcoming_charge,omitempty"`
}

// Summary returns the dashboard figures
func (h *DashboardHandler) Summary(c echo.Context) error {
	ctx := c.Request().Context()
	summary := DashboardSummary{
		MonthlyCost:   decimal.Zero,
		PendingTotal:  decimal.Zero,
		PaidThisMonth: decimal.Zero,
	}

	if err := h.db.WithContext(ctx).Model(&models.Member{}).Where("active = ?", true).Count(&summary.Members).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "counting members")
	}

	var platforms []models.Platform
	if err := h.db.WithContext(ctx).Find(&platforms).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "loading platforms")
	}
	summary.Platforms = int64(len(platforms))
	for _, p := range platforms {
		summary.MonthlyCost = summary.MonthlyCost.Add(p.Cost)
	}

	var pending []models.Charge
	if err := h.db.WithContext(ctx).Preload("Member").Preload("Platform").
		Where("status = ?", models.ChargeStatusPending).
		Order("due_date ASC").
		Find(&pending).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "loading pending charges")
	}

	now := h.now().In(h.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	summary.PendingCount = len(pending)
	for i, ch := range pending {
		summary.PendingTotal = summary.PendingTotal.Add(ch.Amount)
		if ch.DueDate.Before(today) {
			summary.OverdueCount++
		} else if summary.UpcomingCharge == nil {
			summary.UpcomingCharge = &pending[i]
		}
	}

	var paid []models.PaymentHistory
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, h.loc)
	if err := h.db.WithContext(ctx).Where("payment_date >= ?", monthStart.UTC()).Find(&paid).Error; err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "loading payments")
	}
	for _, p := range paid {
		summary.PaidThisMonth = summary.PaidThisMonth.Add(p.AmountPaid)
	}

	return c.JSON(http.StatusOK, summary)
}

// Helper to safely get string from context
func getStringFromContext(c echo.Context, key string) string {
	val := c.Get(key)
	if val == nil {
		return ""
	}
	strVal, ok := val.(string)
	if !ok {
		return ""
	}
	return strVal
}
