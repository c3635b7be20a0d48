package orderbook

import (
	"context"
	"sort"
	"sync"

	"github.com/ksred/exchange-api/internal/types"
	"github.com/rs/zerolog/log"
)

// RecoverySource hydrates order records when rebuilding books at startup
type RecoverySource interface {
	GetOrder(orderID string) (*types.Order, error)
	ListOrders() ([]types.Order, error)
}

// Service owns one Book per pair and keeps the mirror in step with it.
// Callers are responsible for serializing mutations per pair; the internal
// lock only guards the book map itself.
type Service struct {
	mu     sync.RWMutex
	books  map[string]*Book
	mirror Mirror
}

// NewService creates a book service. mirror may be nil, in which case books
// are memory-only.
func NewService(mirror Mirror) *Service {
	return &Service{
		books:  make(map[string]*Book),
		mirror: mirror,
	}
}

func (s *Service) book(pair string) *Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[pair]
	if !ok {
		b = NewBook(pair)
		s.books[pair] = b
	}
	return b
}

// Insert adds an order's entry to its pair book and mirrors it. A mirror
// failure rolls the in-memory insert back so no partial state is left behind.
func (s *Service) Insert(ctx context.Context, e Entry) error {
	book := s.book(e.Pair)
	if err := book.Insert(e); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.Add(ctx, e.Pair, sideKey(e.Side), e.Price, e.OrderID); err != nil {
			book.Remove(e.OrderID)
			return err
		}
	}
	return nil
}

// Remove deletes an order's entry from its pair book. Mirror failures after
// the in-memory removal are logged, not surfaced: by the time an entry is
// removed the order's terminal status is already committed, and a stale
// mirror member is pruned on the next rebuild.
func (s *Service) Remove(ctx context.Context, pair, side, orderID string) bool {
	removed := s.book(pair).Remove(orderID)
	if removed && s.mirror != nil {
		if err := s.mirror.Remove(ctx, pair, sideKey(side), orderID); err != nil {
			log.Warn().Err(err).
				Str("pair", pair).
				Str("order_id", orderID).
				Msg("failed to remove order from book mirror")
		}
	}
	return removed
}

// BestBid returns the top bid entry for a pair
func (s *Service) BestBid(pair string) (Entry, bool) {
	return s.book(pair).BestBid()
}

// BestAsk returns the top ask entry for a pair
func (s *Service) BestAsk(pair string) (Entry, bool) {
	return s.book(pair).BestAsk()
}

// TopBids returns up to n bids for a pair, best first
func (s *Service) TopBids(pair string, n int) []Entry {
	return s.book(pair).TopN(types.SideBuy, n)
}

// TopAsks returns up to n asks for a pair, best first
func (s *Service) TopAsks(pair string, n int) []Entry {
	return s.book(pair).TopN(types.SideSell, n)
}

// Rebuild reconstructs the in-memory books at process start. When a mirror is
// configured its members are read back and hydrated from the order store;
// members whose orders are gone or no longer open are pruned. Without a
// mirror, or when the mirror holds nothing, books are seeded from the open
// orders in the store.
func (s *Service) Rebuild(ctx context.Context, store RecoverySource) error {
	restored := 0
	if s.mirror != nil {
		for _, pair := range types.Pairs {
			for _, side := range []string{types.SideBuy, types.SideSell} {
				var members []Member
				var err error
				if side == types.SideBuy {
					members, err = s.mirror.RangeDescending(ctx, pair, sideKey(side), 0, -1)
				} else {
					members, err = s.mirror.RangeAscending(ctx, pair, sideKey(side), 0, -1)
				}
				if err != nil {
					return err
				}

				entries := make([]Entry, 0, len(members))
				for _, m := range members {
					order, err := store.GetOrder(m.OrderID)
					if err != nil {
						return err
					}
					if order == nil || order.Status != types.StatusOpen ||
						order.Pair != pair || order.Side != side {
						// stale member left behind by a crash mid-removal
						if err := s.mirror.Remove(ctx, pair, sideKey(side), m.OrderID); err != nil {
							log.Warn().Err(err).Str("order_id", m.OrderID).Msg("failed to prune stale mirror member")
						}
						continue
					}
					entries = append(entries, NewEntry(order))
				}

				// mirror scores rank by price only; re-establish time
				// priority within a level before inserting
				sort.Slice(entries, func(i, j int) bool {
					return entries[i].CreatedAt.Before(entries[j].CreatedAt)
				})
				for _, e := range entries {
					if err := s.book(pair).Insert(e); err != nil {
						return err
					}
					restored++
				}
			}
		}
	}

	if restored > 0 {
		log.Info().Int("orders", restored).Msg("order books rebuilt from mirror")
		return nil
	}

	orders, err := store.ListOrders()
	if err != nil {
		return err
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	for i := range orders {
		if orders[i].Status != types.StatusOpen {
			continue
		}
		if err := s.Insert(ctx, NewEntry(&orders[i])); err != nil {
			return err
		}
		restored++
	}
	if restored > 0 {
		log.Info().Int("orders", restored).Msg("order books rebuilt from order store")
	}
	return nil
}
