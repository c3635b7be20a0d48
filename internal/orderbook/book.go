package orderbook

import (
	"container/list"
	"fmt"
	"time"

	"github.com/google/btree"
	"github.com/ksred/exchange-api/internal/types"
)

// Entry is the ranking key a book holds for a resting order. The book never
// stores order payload; the canonical record lives in the order store.
type Entry struct {
	OrderID   string
	Pair      string
	Side      string
	Price     float64
	CreatedAt time.Time
}

// NewEntry builds the book entry for an order
func NewEntry(order *types.Order) Entry {
	return Entry{
		OrderID:   order.OrderID,
		Pair:      order.Pair,
		Side:      order.Side,
		Price:     order.Price,
		CreatedAt: order.CreatedAt,
	}
}

// priceLevel groups every resting order at one price. Orders within a level
// are ranked by CreatedAt, earliest at the front.
type priceLevel struct {
	price  float64
	orders *list.List
}

// insert places the entry by its CreatedAt rank. Arrival order normally
// tracks submission order under the per-pair lock, so this walks at most a
// step or two from the back; rebuild paths may insert out of order.
func (p *priceLevel) insert(e Entry) *list.Element {
	for at := p.orders.Back(); at != nil; at = at.Prev() {
		if !at.Value.(Entry).CreatedAt.After(e.CreatedAt) {
			return p.orders.InsertAfter(e, at)
		}
	}
	return p.orders.PushFront(e)
}

func (p *priceLevel) Less(than btree.Item) bool {
	return p.price < than.(*priceLevel).price
}

type orderRef struct {
	level *priceLevel
	elem  *list.Element
}

type bookSide struct {
	tree   *btree.BTree
	levels map[float64]*priceLevel
}

func newBookSide() *bookSide {
	return &bookSide{
		tree:   btree.New(16),
		levels: make(map[float64]*priceLevel),
	}
}

func (s *bookSide) insert(e Entry) *orderRef {
	level, ok := s.levels[e.Price]
	if !ok {
		level = &priceLevel{price: e.Price, orders: list.New()}
		s.levels[e.Price] = level
		s.tree.ReplaceOrInsert(level)
	}
	return &orderRef{level: level, elem: level.insert(e)}
}

func (s *bookSide) remove(ref *orderRef) {
	ref.level.orders.Remove(ref.elem)
	if ref.level.orders.Len() == 0 {
		s.tree.Delete(ref.level)
		delete(s.levels, ref.level.price)
	}
}

// best returns the entry with the highest priority on this side: the
// maximum-price level for bids, the minimum-price level for asks, earliest
// submission first within the level.
func (s *bookSide) best(descending bool) (Entry, bool) {
	var item btree.Item
	if descending {
		item = s.tree.Max()
	} else {
		item = s.tree.Min()
	}
	if item == nil {
		return Entry{}, false
	}
	front := item.(*priceLevel).orders.Front()
	return front.Value.(Entry), true
}

func (s *bookSide) topN(descending bool, n int) []Entry {
	entries := make([]Entry, 0, n)
	collect := func(item btree.Item) bool {
		level := item.(*priceLevel)
		for e := level.orders.Front(); e != nil; e = e.Next() {
			if len(entries) == n {
				return false
			}
			entries = append(entries, e.Value.(Entry))
		}
		return true
	}
	if descending {
		s.tree.Descend(collect)
	} else {
		s.tree.Ascend(collect)
	}
	return entries
}

func (s *bookSide) len() int {
	total := 0
	for _, level := range s.levels {
		total += level.orders.Len()
	}
	return total
}

// Book is a single pair's order book: bids ranked by price descending, asks
// by price ascending, ties broken by earliest submission. An id index makes
// arbitrary removal O(log n) even when the order is not at the top.
type Book struct {
	pair  string
	bids  *bookSide
	asks  *bookSide
	index map[string]*orderRef
}

func NewBook(pair string) *Book {
	return &Book{
		pair:  pair,
		bids:  newBookSide(),
		asks:  newBookSide(),
		index: make(map[string]*orderRef),
	}
}

func (b *Book) side(side string) *bookSide {
	if side == types.SideBuy {
		return b.bids
	}
	return b.asks
}

// Insert adds a resting order's entry to its side. Reusing an order id that
// is still in the book fails with a conflict.
func (b *Book) Insert(e Entry) error {
	if _, exists := b.index[e.OrderID]; exists {
		return fmt.Errorf("order %s already in %s book: %w", e.OrderID, b.pair, types.ErrConflict)
	}
	b.index[e.OrderID] = b.side(e.Side).insert(e)
	return nil
}

// Remove deletes an entry by order id. Removing an absent id is a no-op and
// reports false.
func (b *Book) Remove(orderID string) bool {
	ref, ok := b.index[orderID]
	if !ok {
		return false
	}
	side := b.side(ref.elem.Value.(Entry).Side)
	side.remove(ref)
	delete(b.index, orderID)
	return true
}

// BestBid returns the highest-priced bid, earliest first on ties
func (b *Book) BestBid() (Entry, bool) {
	return b.bids.best(true)
}

// BestAsk returns the lowest-priced ask, earliest first on ties
func (b *Book) BestAsk() (Entry, bool) {
	return b.asks.best(false)
}

// TopN returns up to n entries for a side in ranked order
func (b *Book) TopN(side string, n int) []Entry {
	if side == types.SideBuy {
		return b.bids.topN(true, n)
	}
	return b.asks.topN(false, n)
}

// Len reports the number of resting orders on one side
func (b *Book) Len(side string) int {
	return b.side(side).len()
}
