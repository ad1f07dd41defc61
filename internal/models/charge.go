package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ChargeStatus is the payment state of a charge
type ChargeStatus string

const (
	ChargeStatusPending ChargeStatus = "pending"
	ChargeStatusPaid    ChargeStatus = "paid"
)

// ReminderType identifies a reminder milestone
type ReminderType string

const (
	ReminderNone    ReminderType = ""
	ReminderPre     ReminderType = "pre"
	ReminderDue     ReminderType = "due"
	ReminderOverdue ReminderType = "overdue"
	ReminderManual  ReminderType = "manual"
)

// Charge is what one member owes for one platform in one billing period
type Charge struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	MemberID   uint            `gorm:"index;not null" json:"member_id"`
	PlatformID uint            `gorm:"index;not null" json:"platform_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Month      int             `gorm:"not null" json:"month"`
	Year       int             `gorm:"not null" json:"year"`
	DueDate    time.Time       `gorm:"type:date;not null" json:"due_date"`
	Status     ChargeStatus    `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	// Reminder de-duplication state, only written by the reminder dispatcher.
	LastReminderAt   *time.Time    `json:"last_reminder_at"`
	LastReminderType *ReminderType `gorm:"type:varchar(20)" json:"last_reminder_type"`

	// Relationships
	Member   Member   `gorm:"foreignKey:MemberID" json:"member,omitempty"`
	Platform Platform `gorm:"foreignKey:PlatformID" json:"platform,omitempty"`
}

// LastReminded returns the last reminder type sent for this charge, or ReminderNone
func (c Charge) LastReminded() ReminderType {
	if c.LastReminderType == nil {
		return ReminderNone
	}
	return *c.LastReminderType
}
