package orderbook

import (
	"github.com/gin-gonic/gin"
	"github.com/ksred/exchange-api/internal/types"
	"github.com/ksred/exchange-api/pkg/response"
)

const defaultDepth = 10

// GinHandlers contains HTTP handlers for order book endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type depthEntry struct {
	OrderID string  `json:"order_id"`
	Price   float64 `json:"price"`
}

// GetDepthHandler handles GET requests for the top of a pair's book
// URL parameter: pair
func (h *GinHandlers) GetDepthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pair := c.Param("pair")
		if !types.IsValidPair(pair) {
			response.BadRequest(c, "unknown pair")
			return
		}

		bids := toDepth(h.service.TopBids(pair, defaultDepth))
		asks := toDepth(h.service.TopAsks(pair, defaultDepth))

		response.Success(c, gin.H{
			"pair": pair,
			"bids": bids,
			"asks": asks,
		})
	}
}

func toDepth(entries []Entry) []depthEntry {
	depth := make([]depthEntry, 0, len(entries))
	for _, e := range entries {
		depth = append(depth, depthEntry{OrderID: e.OrderID, Price: e.Price})
	}
	return depth
}
