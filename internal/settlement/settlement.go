package settlement

import (
	"fmt"

	"github.com/ksred/exchange-api/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service applies a matched trade's balance deltas. The buyer pays the quote
// consideration and receives the base quantity; the seller the reverse. The
// four balance writes and both order status writes commit in one
// transaction, so either the whole match lands or none of it does.
//
// There is no solvency check: a trade can drive a balance negative. Known
// gap, kept for compatibility with the existing settlement behavior.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// Settle commits one trade
func (s *Service) Settle(trade *types.Trade, buy, sell *types.Order) error {
	logger := log.With().
		Str("pair", trade.Pair).
		Str("buy_order_id", trade.BuyOrderID).
		Str("sell_order_id", trade.SellOrderID).
		Str("service", "settlement").
		Logger()

	base, quote, ok := types.SplitPair(trade.Pair)
	if !ok {
		return fmt.Errorf("malformed pair %q: %w", trade.Pair, types.ErrInvalidRequest)
	}

	consideration := decimal.NewFromFloat(trade.Price).
		Mul(decimal.NewFromFloat(trade.Quantity)).
		InexactFloat64()

	err := s.db.ApplyTrade(buy, sell, base, quote, trade.Quantity, consideration)
	if err != nil {
		logger.Error().Err(err).Msg("failed to apply trade")
		return err
	}

	logger.Info().
		Float64("price", trade.Price).
		Float64("quantity", trade.Quantity).
		Float64("consideration", consideration).
		Msg("trade settled")

	return nil
}
