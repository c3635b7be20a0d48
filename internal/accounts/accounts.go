package accounts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/exchange-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service manages users and their per-currency balances
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateUser creates a user holding a zero balance in every supported
// currency
func (s *Service) CreateUser() (*types.User, error) {
	user := &types.User{
		UserID:    uuid.New().String(),
		CreatedAt: time.Now(),
	}
	for _, currency := range types.Currencies {
		user.Balances = append(user.Balances, types.Balance{
			UserID:   user.UserID,
			Currency: currency,
			Amount:   0,
		})
	}

	if err := s.db.CreateUser(user); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.UserID).Msg("new user created")
	return user, nil
}

func (s *Service) GetUser(userID string) (*types.User, error) {
	user, err := s.db.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
	}
	return user, nil
}

func (s *Service) ListUsers() ([]types.User, error) {
	return s.db.ListUsers()
}

func (s *Service) DeleteUser(userID string) error {
	deleted, err := s.db.DeleteUser(userID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
	}
	return nil
}

// UserExists reports whether a user id resolves
func (s *Service) UserExists(userID string) (bool, error) {
	return s.db.UserExists(userID)
}
