package trading

import (
	"errors"
	"fmt"

	"github.com/ksred/exchange-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateOrder(order *types.Order) error {
	if err := d.db.Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %v: %w", err, types.ErrStoreUnavailable)
	}
	return nil
}

// GetOrder returns nil without error when the order does not exist
func (d *Database) GetOrder(orderID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %v: %w", err, types.ErrStoreUnavailable)
	}
	return &order, nil
}

// SaveOrder upserts the full order record
func (d *Database) SaveOrder(order *types.Order) error {
	if err := d.db.Save(order).Error; err != nil {
		return fmt.Errorf("failed to save order: %v: %w", err, types.ErrStoreUnavailable)
	}
	return nil
}

// DeleteOrder hard-deletes an order record, reporting how many rows matched
func (d *Database) DeleteOrder(orderID string) (int64, error) {
	res := d.db.Unscoped().Where("order_id = ?", orderID).Delete(&types.Order{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete order: %v: %w", res.Error, types.ErrStoreUnavailable)
	}
	return res.RowsAffected, nil
}

func (d *Database) ListOrders() ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %v: %w", err, types.ErrStoreUnavailable)
	}
	return orders, nil
}
