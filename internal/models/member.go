package models

import (
	"time"

	"gorm.io/gorm"
)

// Member is a person sharing one or more platform subscriptions
type Member struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name   string `gorm:"type:varchar(255);not null" json:"name"`
	Email  string `gorm:"type:varchar(255)" json:"email"`
	Phone  string `gorm:"type:varchar(50)" json:"phone"`
	Active bool   `gorm:"default:true" json:"active"`

	// Relationships
	Subscriptions []Subscription `gorm:"foreignKey:MemberID" json:"subscriptions,omitempty"`
	Charges       []Charge       `gorm:"foreignKey:MemberID" json:"charges,omitempty"`
}

// HasEmail reports whether reminders can be mailed to the member
func (m Member) HasEmail() bool {
	return m.Email != ""
}
