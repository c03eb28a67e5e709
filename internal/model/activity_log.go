package model

import (
	"time"
)

// ActivityLog is an append-only audit entry. Rows are never updated or deleted.
type ActivityLog struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	UserID    uint      `json:"user_id" gorm:"index;not null"`
	Action    string    `json:"action" gorm:"type:varchar(200);not null"`
	User      *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	CreatedAt time.Time `json:"created_at"`
}
