package settlement

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

// ApplyTrade persists both filled orders and moves quantity/consideration
// between the counterparties in a single transaction
func (d *Database) ApplyTrade(buy, sell *types.Order, base, quote string, quantity, consideration float64) error {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(buy).Error; err != nil {
			return fmt.Errorf("failed to save buy order: %v: %w", err, types.ErrStoreUnavailable)
		}
		if err := tx.Save(sell).Error; err != nil {
			return fmt.Errorf("failed to save sell order: %v: %w", err, types.ErrStoreUnavailable)
		}

		// buyer pays quote, receives base; seller the reverse
		if err := adjustBalance(tx, buy.UserID, quote, -consideration); err != nil {
			return err
		}
		if err := adjustBalance(tx, buy.UserID, base, quantity); err != nil {
			return err
		}
		if err := adjustBalance(tx, sell.UserID, base, -quantity); err != nil {
			return err
		}
		return adjustBalance(tx, sell.UserID, quote, consideration)
	})
	return err
}

// GetBalance returns one user balance row
func (d *Database) GetBalance(userID, currency string) (*types.Balance, error) {
	var balance types.Balance
	err := d.db.Where("user_id = ? AND currency = ?", userID, currency).First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("balance %s/%s: %w", userID, currency, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get balance: %v: %w", err, types.ErrStoreUnavailable)
	}
	return &balance, nil
}

func adjustBalance(tx *gorm.DB, userID, currency string, delta float64) error {
	res := tx.Model(&types.Balance{}).
		Where("user_id = ? AND currency = ?", userID, currency).
		UpdateColumn("amount", gorm.Expr("amount + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("failed to adjust balance %s/%s: %v: %w", userID, currency, res.Error, types.ErrStoreUnavailable)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("balance %s/%s: %w", userID, currency, types.ErrNotFound)
	}
	return nil
}
