// Package market implements the order lifecycle and inventory mutations.
//
// Placing an order never reserves stock; inventory is decremented only when
// the farmer accepts, inside a single transaction with a guarded conditional
// update so concurrent accepts can never oversell or double-decrement.
package market

import (
	"errors"
	"fmt"

	"farmmarket/internal/model"

	"gorm.io/gorm"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrBadQuantity       = errors.New("quantity must be positive")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotOwner          = errors.New("order belongs to another farmer")
	ErrAlreadyDecided    = errors.New("order is no longer pending")
)

// PlaceOrder validates the requested quantity against current stock and
// creates a Pending order. Stock is not touched here, so two consumers can
// both pass this check against the same available quantity; acceptance
// re-checks under a transaction.
func PlaceOrder(db *gorm.DB, consumerID, productID uint, quantity int) (*model.Order, error) {
	if quantity <= 0 {
		return nil, ErrBadQuantity
	}

	var product model.Product
	if err := db.First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	if quantity > product.Quantity {
		return nil, ErrInsufficientStock
	}

	order := model.Order{
		ProductID:  product.ID,
		ConsumerID: consumerID,
		FarmerID:   product.FarmerID,
		Quantity:   quantity,
		Status:     model.OrderPending,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		entry := model.ActivityLog{
			UserID: consumerID,
			Action: fmt.Sprintf("Placed order for %dkg of %s", quantity, product.Name),
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	order.Product = &product
	return &order, nil
}

// AcceptOrder transitions a Pending order to Accepted and decrements the
// product quantity by the ordered amount. The decrement and the status flip
// are both conditional updates inside one transaction: the decrement only
// lands while quantity >= order quantity, and the flip only lands while the
// order is still Pending. Either guard failing rolls the whole thing back.
func AcceptOrder(db *gorm.DB, farmerID, orderID uint) (*model.Order, error) {
	order, err := ownedOrder(db, farmerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderPending {
		return nil, ErrAlreadyDecided
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", order.ID, model.OrderPending).
			Update("status", model.OrderAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyDecided
		}

		res = tx.Model(&model.Product{}).
			Where("id = ? AND quantity >= ?", order.ProductID, order.Quantity).
			Update("quantity", gorm.Expr("quantity - ?", order.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientStock
		}

		entry := model.ActivityLog{
			UserID: farmerID,
			Action: fmt.Sprintf("Accepted order #%d", order.ID),
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	order.Status = model.OrderAccepted
	return order, nil
}

// RejectOrder transitions a Pending order to Rejected. Stock is untouched.
func RejectOrder(db *gorm.DB, farmerID, orderID uint) (*model.Order, error) {
	order, err := ownedOrder(db, farmerID, orderID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(order.Status, model.OrderRejected) {
		return nil, ErrAlreadyDecided
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", order.ID, model.OrderPending).
			Update("status", model.OrderRejected)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyDecided
		}

		entry := model.ActivityLog{
			UserID: farmerID,
			Action: fmt.Sprintf("Rejected order #%d", order.ID),
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	order.Status = model.OrderRejected
	return order, nil
}

func ownedOrder(db *gorm.DB, farmerID, orderID uint) (*model.Order, error) {
	var order model.Order
	if err := db.Preload("Product").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.FarmerID != farmerID {
		return nil, ErrNotOwner
	}
	return &order, nil
}

// SearchProducts returns products whose name, category or location contains
// the query, case-insensitively. An empty query returns everything.
func SearchProducts(db *gorm.DB, query string) ([]model.Product, error) {
	var products []model.Product
	q := db.Preload("Farmer")
	if query != "" {
		pattern := "%" + query + "%"
		q = q.Where(
			"LOWER(name) LIKE LOWER(?) OR LOWER(category) LIKE LOWER(?) OR LOWER(location) LIKE LOWER(?)",
			pattern, pattern, pattern,
		)
	}
	if err := q.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
