package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentHistory records a charge being marked as paid. Rows are never updated.
type PaymentHistory struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ChargeID    uint            `gorm:"uniqueIndex;not null" json:"charge_id"`
	AmountPaid  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount_paid"`
	PaymentDate time.Time       `json:"payment_date"`
	Method      string          `gorm:"type:varchar(50)" json:"method"`
	Notes       string          `gorm:"type:text" json:"notes"`

	// Relationships
	Charge Charge `gorm:"foreignKey:ChargeID" json:"charge,omitempty"`
}

// TableName keeps the singular audit table name
func (PaymentHistory) TableName() string {
	return "payment_history"
}
