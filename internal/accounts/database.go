package accounts

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

// CreateUser persists a user together with its zeroed balance rows
func (d *Database) CreateUser(user *types.User) error {
	err := d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %v: %w", err, types.ErrStoreUnavailable)
	}
	return nil
}

// GetUser returns nil without error when the user does not exist
func (d *Database) GetUser(userID string) (*types.User, error) {
	var user types.User
	err := d.db.Preload("Balances").Where("user_id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %v: %w", err, types.ErrStoreUnavailable)
	}
	return &user, nil
}

func (d *Database) ListUsers() ([]types.User, error) {
	var users []types.User
	if err := d.db.Preload("Balances").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %v: %w", err, types.ErrStoreUnavailable)
	}
	return users, nil
}

// DeleteUser removes a user and its balance rows, reporting matched rows
func (d *Database) DeleteUser(userID string) (int64, error) {
	var deleted int64
	err := d.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Where("user_id = ?", userID).Delete(&types.User{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		if deleted == 0 {
			return nil
		}
		return tx.Unscoped().Where("user_id = ?", userID).Delete(&types.Balance{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete user: %v: %w", err, types.ErrStoreUnavailable)
	}
	return deleted, nil
}

// UserExists checks presence without loading balances
func (d *Database) UserExists(userID string) (bool, error) {
	var count int64
	err := d.db.Model(&types.User{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check user: %v: %w", err, types.ErrStoreUnavailable)
	}
	return count > 0, nil
}
