package types

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Order sides
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order statuses. An order leaves "open" exactly once and never comes back.
const (
	StatusOpen      = "open"
	StatusCancelled = "cancelled"
	StatusFilled    = "filled"
)

// Pairs lists the tradable instruments. Each pair is <base>-<quote>.
var Pairs = []string{"BTC-USD", "ETH-USD", "LTC-USD", "XRP-USD", "BCH-USD"}

// Currencies lists every currency a user holds a balance in.
var Currencies = []string{"BTC", "ETH", "LTC", "XRP", "BCH", "USD"}

// IsValidPair reports whether pair is a supported instrument
func IsValidPair(pair string) bool {
	for _, p := range Pairs {
		if p == pair {
			return true
		}
	}
	return false
}

// SplitPair decomposes a pair into its base and quote currency codes
func SplitPair(pair string) (base, quote string, ok bool) {
	base, quote, ok = strings.Cut(pair, "-")
	if base == "" || quote == "" {
		return "", "", false
	}
	return base, quote, ok
}

type Order struct {
	gorm.Model        `json:"-"`
	OrderID           string    `gorm:"uniqueIndex" json:"id"`
	UserID            string    `json:"user_id"`
	Pair              string    `json:"pair"`
	Side              string    `json:"side"` // buy or sell
	Price             float64   `json:"price"`
	Quantity          float64   `json:"quantity"`
	RemainingQuantity float64   `json:"remaining_quantity"`
	Status            string    `json:"status"` // open, cancelled, filled
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type User struct {
	gorm.Model `json:"-"`
	UserID     string    `gorm:"uniqueIndex" json:"id"`
	Balances   []Balance `gorm:"foreignKey:UserID;references:UserID" json:"balances"`
	CreatedAt  time.Time `json:"created_at"`
}

type Balance struct {
	gorm.Model `json:"-"`
	UserID     string  `gorm:"index:idx_user_currency,unique" json:"user_id"`
	Currency   string  `gorm:"index:idx_user_currency,unique" json:"currency"`
	Amount     float64 `json:"amount"`
}

// Trade is produced once per match. Trades are not persisted; they exist for
// settlement and for the traded event payload.
type Trade struct {
	BuyOrderID  string    `json:"buy_order_id"`
	SellOrderID string    `json:"sell_order_id"`
	Pair        string    `json:"pair"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"quantity"`
	Timestamp   time.Time `json:"timestamp"`
}

type CreateOrderRequest struct {
	UserID   string  `json:"user_id" binding:"required,uuid"`
	Pair     string  `json:"pair" binding:"required"`
	Side     string  `json:"side" binding:"required"`
	Price    float64 `json:"price" binding:"required,gt=0"`
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
}
