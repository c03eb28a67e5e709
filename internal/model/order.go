package model

import (
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending  OrderStatus = "Pending"
	OrderAccepted OrderStatus = "Accepted"
	OrderRejected OrderStatus = "Rejected"
)

// Accepted and Rejected are terminal.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:  {OrderAccepted: true, OrderRejected: true},
	OrderAccepted: {},
	OrderRejected: {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// Order joins a consumer to a product. The farmer ID is denormalized from the
// product so incoming orders can be listed without a join.
type Order struct {
	ID         uint        `json:"id" gorm:"primarykey"`
	ProductID  uint        `json:"product_id" gorm:"index;not null"`
	ConsumerID uint        `json:"consumer_id" gorm:"index;not null"`
	FarmerID   uint        `json:"farmer_id" gorm:"index;not null"`
	Quantity   int         `json:"quantity" gorm:"not null;default:1"`
	Status     OrderStatus `json:"status" gorm:"type:varchar(50);default:'Pending'"`
	Product    *Product    `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Consumer   *User       `json:"consumer,omitempty" gorm:"foreignKey:ConsumerID"`
	Farmer     *User       `json:"farmer,omitempty" gorm:"foreignKey:FarmerID"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
