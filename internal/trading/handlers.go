package trading

import (
	"github.com/gin-gonic/gin"
	"github.com/ksred/exchange-api/internal/types"
	"github.com/ksred/exchange-api/pkg/response"
)

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateOrderHandler handles POST requests to create new orders
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.CreateOrder(c.Request.Context(), &req)
		response.Handle(c, order, err)
	}
}

// CancelOrderHandler handles POST requests to cancel an open order
// URL parameter: id
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.CancelOrder(c.Request.Context(), c.Param("id"))
		response.Handle(c, order, err)
	}
}

// GetOrderHandler handles GET requests for a single order
// URL parameter: id
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.GetOrder(c.Param("id"))
		response.Handle(c, order, err)
	}
}

// ListOrdersHandler handles GET requests for all orders
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.service.ListOrders()
		response.Handle(c, orders, err)
	}
}

// DeleteOrderHandler handles DELETE requests to remove an order record
// URL parameter: id
func (h *GinHandlers) DeleteOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.DeleteOrder(c.Param("id")); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "order deleted"})
	}
}
