package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStrategy decides how a platform's monthly cost is split
type PaymentStrategy string

const (
	// PaymentStrategyEqual divides the cost evenly among all subscribers
	PaymentStrategyEqual PaymentStrategy = "equal"
	// PaymentStrategyRotation charges the full cost to one subscriber per period
	PaymentStrategyRotation PaymentStrategy = "rotation"
)

// Valid reports whether s is a known strategy
func (s PaymentStrategy) Valid() bool {
	return s == PaymentStrategyEqual || s == PaymentStrategyRotation
}

// Platform represents a shared subscription service (e.g. a streaming account)
type Platform struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name            string          `gorm:"type:varchar(255);not null" json:"name"`
	Cost            decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"cost"`
	BillingCycleDay int             `gorm:"default:1" json:"billing_cycle_day"`
	PaymentStrategy PaymentStrategy `gorm:"type:varchar(20);default:'equal'" json:"payment_strategy"`
	TotalSlots      int             `gorm:"default:0" json:"total_slots"`
	ActiveSlots     int             `gorm:"default:0" json:"active_slots"`
	Icon            string          `gorm:"type:varchar(255)" json:"icon"`

	// Version is bumped on every roster mutation and used as a compare-and-set guard.
	Version int `gorm:"default:0" json:"version"`

	// Relationships
	Subscriptions []Subscription `gorm:"foreignKey:PlatformID" json:"subscriptions,omitempty"`
}

// DueDay returns the billing cycle day clamped to the length of the given month
func (p Platform) DueDay(month time.Month, year int) int {
	day := p.BillingCycleDay
	if day < 1 {
		day = 1
	}
	if last := DaysIn(month, year); day > last {
		day = last
	}
	return day
}

// DueDate returns the calendar date a charge for (month, year) falls due
func (p Platform) DueDate(month time.Month, year int) time.Time {
	return time.Date(year, month, p.DueDay(month, year), 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the number of days in month of year
func DaysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
