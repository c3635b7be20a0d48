package accounts

import (
	"github.com/gin-gonic/gin"
	"github.com/ksred/exchange-api/pkg/response"
)

// GinHandlers contains HTTP handlers for user endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateUserHandler handles POST requests to create a user
func (h *GinHandlers) CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.service.CreateUser()
		response.Handle(c, user, err)
	}
}

// GetUserHandler handles GET requests for a single user with balances
// URL parameter: id
func (h *GinHandlers) GetUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.service.GetUser(c.Param("id"))
		response.Handle(c, user, err)
	}
}

// ListUsersHandler handles GET requests for all users
func (h *GinHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := h.service.ListUsers()
		response.Handle(c, users, err)
	}
}

// DeleteUserHandler handles DELETE requests to remove a user
// URL parameter: id
func (h *GinHandlers) DeleteUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.DeleteUser(c.Param("id")); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "user deleted"})
	}
}
