package matching_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/exchange-api/internal/accounts"
	"github.com/ksred/exchange-api/internal/database"
	"github.com/ksred/exchange-api/internal/events"
	"github.com/ksred/exchange-api/internal/matching"
	"github.com/ksred/exchange-api/internal/orderbook"
	"github.com/ksred/exchange-api/internal/settlement"
	"github.com/ksred/exchange-api/internal/trading"
	"github.com/ksred/exchange-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures published events for assertions
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event{}, r.events...)
}

func (r *recorder) ofKind(kind events.Kind) []events.Event {
	var matched []events.Event
	for _, e := range r.all() {
		if e.Kind == kind {
			matched = append(matched, e)
		}
	}
	return matched
}

type fixture struct {
	engine   *matching.Engine
	books    *orderbook.Service
	orders   *trading.Database
	balances *settlement.Database
	accounts *accounts.Service
	bus      *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	books := orderbook.NewService(nil)
	orders := trading.NewDatabase(db)
	bus := &recorder{}
	engine := matching.NewEngine(books, orders, settlement.NewService(db), bus)

	return &fixture{
		engine:   engine,
		books:    books,
		orders:   orders,
		balances: settlement.NewDatabase(db),
		accounts: accounts.NewService(db),
		bus:      bus,
	}
}

func (f *fixture) newUser(t *testing.T) string {
	t.Helper()
	user, err := f.accounts.CreateUser()
	require.NoError(t, err)
	return user.UserID
}

func (f *fixture) newOrder(t *testing.T, userID, pair, side string, price, quantity float64) *types.Order {
	t.Helper()
	now := time.Now()
	order := &types.Order{
		OrderID:           uuid.New().String(),
		UserID:            userID,
		Pair:              pair,
		Side:              side,
		Price:             price,
		Quantity:          quantity,
		RemainingQuantity: quantity,
		Status:            types.StatusOpen,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, f.orders.CreateOrder(order))
	return order
}

func (f *fixture) submit(t *testing.T, userID, pair, side string, price, quantity float64) *types.Order {
	t.Helper()
	order := f.newOrder(t, userID, pair, side, price, quantity)
	require.NoError(t, f.engine.Submit(context.Background(), order))
	return order
}

func (f *fixture) balance(t *testing.T, userID, currency string) float64 {
	t.Helper()
	balance, err := f.balances.GetBalance(userID, currency)
	require.NoError(t, err)
	return balance.Amount
}

func (f *fixture) reload(t *testing.T, orderID string) *types.Order {
	t.Helper()
	order, err := f.orders.GetOrder(orderID)
	require.NoError(t, err)
	require.NotNil(t, order)
	return order
}

func TestCrossingOrdersTrade(t *testing.T) {
	f := newFixture(t)
	buyer := f.newUser(t)
	seller := f.newUser(t)

	// empty book: the buy rests with no match
	buy := f.submit(t, buyer, "BTC-USD", types.SideBuy, 50000, 1)
	assert.Equal(t, types.StatusOpen, f.reload(t, buy.OrderID).Status)
	assert.Empty(t, f.bus.ofKind(events.KindTraded))

	// a sell at the same price and quantity crosses and fills both
	sell := f.submit(t, seller, "BTC-USD", types.SideSell, 50000, 1)

	assert.Equal(t, types.StatusFilled, f.reload(t, buy.OrderID).Status)
	assert.Equal(t, types.StatusFilled, f.reload(t, sell.OrderID).Status)
	assert.Equal(t, 0.0, f.reload(t, buy.OrderID).RemainingQuantity)

	_, ok := f.books.BestBid("BTC-USD")
	assert.False(t, ok)
	_, ok = f.books.BestAsk("BTC-USD")
	assert.False(t, ok)

	traded := f.bus.ofKind(events.KindTraded)
	require.Len(t, traded, 1)
	trade := traded[0].Payload.(*types.Trade)
	assert.Equal(t, buy.OrderID, trade.BuyOrderID)
	assert.Equal(t, sell.OrderID, trade.SellOrderID)
	assert.Equal(t, 50000.0, trade.Price)
	assert.Equal(t, 1.0, trade.Quantity)

	// settlement moved quantity and consideration between the users
	assert.Equal(t, 1.0, f.balance(t, buyer, "BTC"))
	assert.Equal(t, -50000.0, f.balance(t, buyer, "USD"))
	assert.Equal(t, -1.0, f.balance(t, seller, "BTC"))
	assert.Equal(t, 50000.0, f.balance(t, seller, "USD"))
}

func TestNoMatchWithoutCross(t *testing.T) {
	f := newFixture(t)
	buyer := f.newUser(t)
	seller := f.newUser(t)

	buy := f.submit(t, buyer, "BTC-USD", types.SideBuy, 99, 1)
	sell := f.submit(t, seller, "BTC-USD", types.SideSell, 100, 1)

	assert.Equal(t, types.StatusOpen, f.reload(t, buy.OrderID).Status)
	assert.Equal(t, types.StatusOpen, f.reload(t, sell.OrderID).Status)
	assert.Empty(t, f.bus.ofKind(events.KindTraded))
}

func TestUnequalQuantitiesDoNotMatch(t *testing.T) {
	f := newFixture(t)
	buyer := f.newUser(t)
	seller := f.newUser(t)

	// prices cross but quantities differ: the narrow contract produces no
	// partial fill and both orders keep resting
	buy := f.submit(t, buyer, "BTC-USD", types.SideBuy, 100, 2)
	sell := f.submit(t, seller, "BTC-USD", types.SideSell, 100, 1)

	assert.Equal(t, types.StatusOpen, f.reload(t, buy.OrderID).Status)
	assert.Equal(t, types.StatusOpen, f.reload(t, sell.OrderID).Status)
	assert.Equal(t, 2.0, f.reload(t, buy.OrderID).RemainingQuantity)
	assert.Empty(t, f.bus.ofKind(events.KindTraded))
}

func TestMakerPriceWins(t *testing.T) {
	f := newFixture(t)
	buyer := f.newUser(t)
	seller := f.newUser(t)

	f.submit(t, seller, "ETH-USD", types.SideSell, 3000, 1)
	time.Sleep(2 * time.Millisecond)
	f.submit(t, buyer, "ETH-USD", types.SideBuy, 3100, 1)

	traded := f.bus.ofKind(events.KindTraded)
	require.Len(t, traded, 1)
	trade := traded[0].Payload.(*types.Trade)
	assert.Equal(t, 3000.0, trade.Price)
}

func TestBetterPricedAskMatchesFirst(t *testing.T) {
	f := newFixture(t)
	buyer := f.newUser(t)
	seller := f.newUser(t)

	cheap := f.submit(t, seller, "LTC-USD", types.SideSell, 100, 1)
	expensive := f.submit(t, seller, "LTC-USD", types.SideSell, 101, 1)
	f.submit(t, buyer, "LTC-USD", types.SideBuy, 100, 1)

	assert.Equal(t, types.StatusFilled, f.reload(t, cheap.OrderID).Status)
	assert.Equal(t, types.StatusOpen, f.reload(t, expensive.OrderID).Status)

	traded := f.bus.ofKind(events.KindTraded)
	require.Len(t, traded, 1)
	assert.Equal(t, cheap.OrderID, traded[0].Payload.(*types.Trade).SellOrderID)
}

func TestConservationAcrossTrade(t *testing.T) {
	f := newFixture(t)
	buyer := f.newUser(t)
	seller := f.newUser(t)

	f.submit(t, seller, "XRP-USD", types.SideSell, 0.5, 100)
	f.submit(t, buyer, "XRP-USD", types.SideBuy, 0.5, 100)

	assert.Equal(t, -f.balance(t, seller, "XRP"), f.balance(t, buyer, "XRP"))
	assert.Equal(t, -f.balance(t, seller, "USD"), f.balance(t, buyer, "USD"))
}

func TestCancelRemovesRestingOrder(t *testing.T) {
	f := newFixture(t)
	buyer := f.newUser(t)

	buy := f.submit(t, buyer, "ETH-USD", types.SideBuy, 3000, 2)

	cancelled, err := f.engine.Cancel(context.Background(), buy.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, cancelled.Status)

	_, ok := f.books.BestBid("ETH-USD")
	assert.False(t, ok)
	require.Len(t, f.bus.ofKind(events.KindCancelled), 1)
}

func TestCancelTerminality(t *testing.T) {
	f := newFixture(t)
	buyer := f.newUser(t)
	seller := f.newUser(t)

	buy := f.submit(t, buyer, "BTC-USD", types.SideBuy, 50000, 1)
	f.submit(t, seller, "BTC-USD", types.SideSell, 50000, 1)

	// a filled order cannot be cancelled
	_, err := f.engine.Cancel(context.Background(), buy.OrderID)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	// neither can an already-cancelled one
	resting := f.submit(t, buyer, "BCH-USD", types.SideBuy, 400, 1)
	_, err = f.engine.Cancel(context.Background(), resting.OrderID)
	require.NoError(t, err)
	_, err = f.engine.Cancel(context.Background(), resting.OrderID)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = f.engine.Cancel(context.Background(), "no-such-order")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDuplicateSubmitConflicts(t *testing.T) {
	f := newFixture(t)
	buyer := f.newUser(t)

	buy := f.submit(t, buyer, "BTC-USD", types.SideBuy, 100, 1)
	err := f.engine.Submit(context.Background(), buy)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestConcurrentSubmissionsSerializePerPair(t *testing.T) {
	f := newFixture(t)
	buyer := f.newUser(t)
	seller := f.newUser(t)

	const n = 8
	for i := 0; i < n; i++ {
		f.submit(t, seller, "BTC-USD", types.SideSell, 100, 1)
	}

	buys := make([]*types.Order, n)
	for i := range buys {
		buys[i] = f.newOrder(t, buyer, "BTC-USD", types.SideBuy, 100, 1)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, order := range buys {
		wg.Add(1)
		go func(o *types.Order) {
			defer wg.Done()
			errs <- f.engine.Submit(context.Background(), o)
		}(order)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// every order filled and both sides drained
	_, ok := f.books.BestBid("BTC-USD")
	assert.False(t, ok)
	_, ok = f.books.BestAsk("BTC-USD")
	assert.False(t, ok)
	for _, o := range buys {
		assert.Equal(t, types.StatusFilled, f.reload(t, o.OrderID).Status)
	}

	// no resting sell traded more than once
	traded := f.bus.ofKind(events.KindTraded)
	require.Len(t, traded, n)
	sellFills := map[string]int{}
	for _, e := range traded {
		sellFills[e.Payload.(*types.Trade).SellOrderID]++
	}
	require.Len(t, sellFills, n)
	for id, fills := range sellFills {
		assert.Equal(t, 1, fills, "sell %s", id)
	}

	// n trades at 100x1 net out to n BTC against 100n USD
	assert.Equal(t, float64(n), f.balance(t, buyer, "BTC"))
	assert.Equal(t, float64(-100*n), f.balance(t, buyer, "USD"))
}

func TestCreatedEventPrecedesTrade(t *testing.T) {
	f := newFixture(t)
	buyer := f.newUser(t)
	seller := f.newUser(t)

	f.submit(t, seller, "BTC-USD", types.SideSell, 50000, 1)
	f.submit(t, buyer, "BTC-USD", types.SideBuy, 50000, 1)

	published := f.bus.all()
	require.Len(t, published, 3)
	assert.Equal(t, events.KindCreated, published[0].Kind)
	assert.Equal(t, events.KindCreated, published[1].Kind)
	assert.Equal(t, events.KindTraded, published[2].Kind)
}
