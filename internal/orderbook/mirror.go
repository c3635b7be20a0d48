package orderbook

import (
	"context"
	"fmt"

	"github.com/ksred/exchange-api/internal/types"
	"github.com/redis/go-redis/v9"
)

// Redis key layout for book membership, kept for compatibility with external
// consumers: orderbook:<pair>:bids and orderbook:<pair>:asks, scored by price.
const (
	keyBids = "bids"
	keyAsks = "asks"
)

func sideKey(side string) string {
	if side == types.SideBuy {
		return keyBids
	}
	return keyAsks
}

// Member is one element of a mirrored book side
type Member struct {
	OrderID string
	Price   float64
}

// Mirror persists book membership per pair and side as an ordered set scored
// by price. The in-memory book stays authoritative for ranking; the mirror
// exists for durability and for the documented key layout.
type Mirror interface {
	Add(ctx context.Context, pair, side string, price float64, orderID string) error
	Remove(ctx context.Context, pair, side, orderID string) error
	RangeAscending(ctx context.Context, pair, side string, start, stop int64) ([]Member, error)
	RangeDescending(ctx context.Context, pair, side string, start, stop int64) ([]Member, error)
}

// RedisMirror implements Mirror on redis sorted sets
type RedisMirror struct {
	client redis.UniversalClient
}

func NewRedisMirror(client redis.UniversalClient) *RedisMirror {
	return &RedisMirror{client: client}
}

func (m *RedisMirror) key(pair, side string) string {
	return fmt.Sprintf("orderbook:%s:%s", pair, side)
}

func (m *RedisMirror) Add(ctx context.Context, pair, side string, price float64, orderID string) error {
	err := m.client.ZAdd(ctx, m.key(pair, side), redis.Z{Score: price, Member: orderID}).Err()
	if err != nil {
		return fmt.Errorf("zadd %s: %v: %w", m.key(pair, side), err, types.ErrStoreUnavailable)
	}
	return nil
}

func (m *RedisMirror) Remove(ctx context.Context, pair, side, orderID string) error {
	err := m.client.ZRem(ctx, m.key(pair, side), orderID).Err()
	if err != nil {
		return fmt.Errorf("zrem %s: %v: %w", m.key(pair, side), err, types.ErrStoreUnavailable)
	}
	return nil
}

func (m *RedisMirror) RangeAscending(ctx context.Context, pair, side string, start, stop int64) ([]Member, error) {
	results, err := m.client.ZRangeWithScores(ctx, m.key(pair, side), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange %s: %v: %w", m.key(pair, side), err, types.ErrStoreUnavailable)
	}
	return toMembers(results), nil
}

func (m *RedisMirror) RangeDescending(ctx context.Context, pair, side string, start, stop int64) ([]Member, error) {
	results, err := m.client.ZRevRangeWithScores(ctx, m.key(pair, side), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %v: %w", m.key(pair, side), err, types.ErrStoreUnavailable)
	}
	return toMembers(results), nil
}

func toMembers(results []redis.Z) []Member {
	members := make([]Member, 0, len(results))
	for _, z := range results {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		members = append(members, Member{OrderID: id, Price: z.Score})
	}
	return members
}
