package model

import (
	"time"

	"gorm.io/gorm"
)

// Product is a listing owned by exactly one farmer. Price is per kg.
// Quantity never goes below zero; the order acceptance flow is the only
// thing that decrements it.
type Product struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	Name      string         `json:"name" gorm:"type:varchar(100);not null"`
	Price     float64        `json:"price" gorm:"not null"`
	Quantity  int            `json:"quantity" gorm:"not null;check:quantity >= 0"`
	Category  string         `json:"category" gorm:"type:varchar(50)"`
	Location  string         `json:"location" gorm:"type:varchar(150);default:'Not specified'"`
	Image     string         `json:"image" gorm:"type:varchar(150);default:'default.jpg'"`
	FarmerID  uint           `json:"farmer_id" gorm:"index;not null"`
	Farmer    *User          `json:"farmer,omitempty" gorm:"foreignKey:FarmerID"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
