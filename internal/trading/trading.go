package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/exchange-api/internal/matching"
	"github.com/ksred/exchange-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// UserDirectory resolves whether a user exists before an order is accepted
type UserDirectory interface {
	UserExists(userID string) (bool, error)
}

// Service orchestrates the order lifecycle: validate, persist, book, match.
// Matching and event publication happen inside the engine under the pair's
// lock; by the time a create or cancel returns, the result is fully settled.
type Service struct {
	db     *Database
	engine *matching.Engine
	users  UserDirectory
}

func NewService(gormDB *gorm.DB, engine *matching.Engine, users UserDirectory) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		engine: engine,
		users:  users,
	}
}

// GetDB exposes the order store for wiring
func (s *Service) GetDB() *Database {
	return s.db
}

// CreateOrder validates and persists an order, books it and drains any
// matches it triggers. Validation rejects before any state mutation.
func (s *Service) CreateOrder(ctx context.Context, req *types.CreateOrderRequest) (*types.Order, error) {
	if req.Side != types.SideBuy && req.Side != types.SideSell {
		return nil, fmt.Errorf("side must be %q or %q: %w", types.SideBuy, types.SideSell, types.ErrInvalidRequest)
	}
	if !types.IsValidPair(req.Pair) {
		return nil, fmt.Errorf("unknown pair %q: %w", req.Pair, types.ErrInvalidRequest)
	}
	if req.Price <= 0 {
		return nil, fmt.Errorf("price must be positive: %w", types.ErrInvalidRequest)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", types.ErrInvalidRequest)
	}

	exists, err := s.users.UserExists(req.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", req.UserID, types.ErrNotFound)
	}

	now := time.Now()
	order := &types.Order{
		OrderID:           uuid.New().String(),
		UserID:            req.UserID,
		Pair:              req.Pair,
		Side:              req.Side,
		Price:             req.Price,
		Quantity:          req.Quantity,
		RemainingQuantity: req.Quantity,
		Status:            types.StatusOpen,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.db.CreateOrder(order); err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", order.OrderID).
		Str("pair", order.Pair).
		Str("side", order.Side).
		Msg("new order created")

	if err := s.engine.Submit(ctx, order); err != nil {
		// the record must not stay open if it never reached the book, or a
		// restart rebuild would resurrect an order the caller saw rejected
		order.Status = types.StatusCancelled
		order.UpdatedAt = time.Now()
		if saveErr := s.db.SaveOrder(order); saveErr != nil {
			log.Error().Err(saveErr).Str("order_id", order.OrderID).Msg("failed to cancel unbooked order")
		}
		return nil, err
	}

	// re-read so the caller sees the settled state, not the pre-match one
	return s.db.GetOrder(order.OrderID)
}

// CancelOrder terminates an open order and removes it from the book
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*types.Order, error) {
	return s.engine.Cancel(ctx, orderID)
}

func (s *Service) GetOrder(orderID string) (*types.Order, error) {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, types.ErrNotFound)
	}
	return order, nil
}

func (s *Service) ListOrders() ([]types.Order, error) {
	return s.db.ListOrders()
}

// DeleteOrder hard-deletes a terminal order record outside the matching
// path. Open orders are still resting in a book and must be cancelled first,
// so their book entry is removed through the engine; deleting the record
// underneath a live entry would wedge the pair's match loop. Status leaves
// "open" exactly once, so the check cannot go stale after it passes.
func (s *Service) DeleteOrder(orderID string) error {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("order %s: %w", orderID, types.ErrNotFound)
	}
	if order.Status == types.StatusOpen {
		return fmt.Errorf("order is still open, cancel it first: %w", types.ErrInvalidRequest)
	}

	deleted, err := s.db.DeleteOrder(orderID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("order %s: %w", orderID, types.ErrNotFound)
	}
	return nil
}
