package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ksred/exchange-api/internal/events"
	"github.com/ksred/exchange-api/internal/orderbook"
	"github.com/ksred/exchange-api/internal/types"
	"github.com/rs/zerolog/log"
)

// OrderStore is the canonical order record store the engine reads and writes
type OrderStore interface {
	GetOrder(orderID string) (*types.Order, error)
	SaveOrder(order *types.Order) error
}

// Settler commits a matched trade: both orders' terminal states and the four
// balance deltas as one atomic unit.
type Settler interface {
	Settle(trade *types.Trade, buy, sell *types.Order) error
}

// Engine drains crossing interest from a pair's book after every insert.
// All book mutation, matching and settlement for one pair runs under that
// pair's lock, so concurrent submissions for the same pair cannot interleave
// their read-modify-write sequences. Different pairs proceed in parallel.
type Engine struct {
	books   *orderbook.Service
	store   OrderStore
	settler Settler
	bus     events.Publisher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(books *orderbook.Service, store OrderStore, settler Settler, bus events.Publisher) *Engine {
	return &Engine{
		books:   books,
		store:   store,
		settler: settler,
		bus:     bus,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (e *Engine) pairLock(pair string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[pair]
	if !ok {
		l = &sync.Mutex{}
		e.locks[pair] = l
	}
	return l
}

// Submit books an open order and runs the match loop for its pair. The
// caller observes the fully settled outcome: by the time Submit returns, any
// trades the insert triggered are committed and published.
func (e *Engine) Submit(ctx context.Context, order *types.Order) error {
	l := e.pairLock(order.Pair)
	l.Lock()
	defer l.Unlock()

	if err := e.books.Insert(ctx, orderbook.NewEntry(order)); err != nil {
		return err
	}

	e.bus.Publish(events.Event{Pair: order.Pair, Kind: events.KindCreated, Payload: order})

	log.Info().
		Str("order_id", order.OrderID).
		Str("pair", order.Pair).
		Str("side", order.Side).
		Float64("price", order.Price).
		Msg("order booked")

	return e.matchPair(ctx, order.Pair)
}

// Cancel terminates an open order without invoking the match loop. It runs
// under the pair lock so an order cannot be matched once cancellation has
// begun, and vice versa.
func (e *Engine) Cancel(ctx context.Context, orderID string) (*types.Order, error) {
	// resolve the pair outside the lock; status is re-checked inside
	order, err := e.store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, types.ErrNotFound)
	}

	l := e.pairLock(order.Pair)
	l.Lock()
	defer l.Unlock()

	order, err = e.store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, types.ErrNotFound)
	}
	if order.Status != types.StatusOpen {
		return nil, fmt.Errorf("order is already %s: %w", order.Status, types.ErrInvalidRequest)
	}

	order.Status = types.StatusCancelled
	order.UpdatedAt = time.Now()
	if err := e.store.SaveOrder(order); err != nil {
		return nil, err
	}

	e.books.Remove(ctx, order.Pair, order.Side, order.OrderID)

	e.bus.Publish(events.Event{Pair: order.Pair, Kind: events.KindCancelled, Payload: order})

	log.Info().Str("order_id", order.OrderID).Msg("order cancelled")

	return order, nil
}

// matchPair repeatedly matches top-of-book interest while bids cross asks.
// The narrow contract is deliberate: a match requires the two resting
// quantities to be exactly equal, so no partial fills are produced and any
// unequal remainder stays resting. Trade price is the maker's price, the
// earlier-submitted of the two orders.
func (e *Engine) matchPair(ctx context.Context, pair string) error {
	for {
		bid, hasBid := e.books.BestBid(pair)
		ask, hasAsk := e.books.BestAsk(pair)
		if !hasBid || !hasAsk {
			return nil
		}
		if bid.Price < ask.Price {
			return nil
		}

		buy, err := e.store.GetOrder(bid.OrderID)
		if err != nil {
			return err
		}
		sell, err := e.store.GetOrder(ask.OrderID)
		if err != nil {
			return err
		}
		if buy == nil || sell == nil {
			return fmt.Errorf("booked order missing from store: %w", types.ErrStoreUnavailable)
		}

		if buy.RemainingQuantity != sell.RemainingQuantity {
			return nil
		}

		price := sell.Price
		if buy.CreatedAt.Before(sell.CreatedAt) {
			price = buy.Price
		}
		quantity := buy.RemainingQuantity

		now := time.Now()
		buy.RemainingQuantity = 0
		buy.Status = types.StatusFilled
		buy.UpdatedAt = now
		sell.RemainingQuantity = 0
		sell.Status = types.StatusFilled
		sell.UpdatedAt = now

		trade := &types.Trade{
			BuyOrderID:  buy.OrderID,
			SellOrderID: sell.OrderID,
			Pair:        pair,
			Price:       price,
			Quantity:    quantity,
			Timestamp:   now,
		}

		// commit orders and balances together; the book is only touched
		// after the commit so a failed settlement leaves no partial state
		if err := e.settler.Settle(trade, buy, sell); err != nil {
			return fmt.Errorf("settlement failed for trade %s/%s: %w", buy.OrderID, sell.OrderID, err)
		}

		e.books.Remove(ctx, pair, buy.Side, buy.OrderID)
		e.books.Remove(ctx, pair, sell.Side, sell.OrderID)

		e.bus.Publish(events.Event{Pair: pair, Kind: events.KindTraded, Payload: trade})

		log.Info().
			Str("pair", pair).
			Str("buy_order_id", buy.OrderID).
			Str("sell_order_id", sell.OrderID).
			Float64("price", price).
			Float64("quantity", quantity).
			Msg("trade executed")
	}
}
