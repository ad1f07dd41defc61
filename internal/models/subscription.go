package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subscription links a Member to a Platform roster.
// RotationOrder is only meaningful for rotation platforms; ShareCost is the
// member's portion under the equal strategy and informational otherwise.
type Subscription struct {
	MemberID   uint `gorm:"primaryKey;autoIncrement:false" json:"member_id"`
	PlatformID uint `gorm:"primaryKey;autoIncrement:false;index" json:"platform_id"`

	RotationOrder *int            `json:"rotation_order"`
	ShareCost     decimal.Decimal `gorm:"type:decimal(15,2)" json:"share_cost"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Member   Member   `gorm:"foreignKey:MemberID" json:"member,omitempty"`
	Platform Platform `gorm:"foreignKey:PlatformID" json:"platform,omitempty"`
}
