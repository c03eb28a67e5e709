package model

import (
	"time"
)

// Role identifies what a user is allowed to do in the marketplace.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleFarmer   Role = "farmer"
	RoleConsumer Role = "consumer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFarmer, RoleConsumer:
		return true
	}
	return false
}

// User represents a registered account. Accounts are never deleted.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"type:varchar(150);uniqueIndex;not null"`
	Phone     string    `json:"phone" gorm:"type:varchar(20);uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"type:varchar(255);not null"`
	Role      Role      `json:"role" gorm:"type:varchar(50);not null"`
	Language  string    `json:"language" gorm:"type:varchar(10);default:'en'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
