package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/exchange-api/internal/accounts"
	"github.com/ksred/exchange-api/internal/database"
	"github.com/ksred/exchange-api/internal/events"
	"github.com/ksred/exchange-api/internal/matching"
	"github.com/ksred/exchange-api/internal/orderbook"
	"github.com/ksred/exchange-api/internal/settlement"
	"github.com/ksred/exchange-api/internal/trading"
	"github.com/ksred/exchange-api/internal/ws"
	"github.com/ksred/exchange-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the exchange API server with graceful shutdown
// support. Every component is constructed once here and passed explicitly;
// there are no package-level service instances.
func main() {
	// Initialize database
	db, err := database.NewDatabase(os.Getenv("DB_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Optional redis mirror for the order books
	var mirror orderbook.Mirror
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			pingCancel()
			zlog.Fatal().Err(err).Str("addr", addr).Msg("Failed to connect to redis")
		}
		pingCancel()
		mirror = orderbook.NewRedisMirror(client)
		zlog.Info().Str("addr", addr).Msg("Order book mirror enabled")
	}

	// Initialize services and handlers
	books := orderbook.NewService(mirror)
	bookHandlers := orderbook.NewGinHandlers(books)

	hub := events.NewHub()
	wsHandler := ws.NewHandler(hub)

	accountsService := accounts.NewService(db)
	accountsHandlers := accounts.NewGinHandlers(accountsService)

	settlementService := settlement.NewService(db)

	orderStore := trading.NewDatabase(db)
	engine := matching.NewEngine(books, orderStore, settlementService, hub)

	tradingService := trading.NewService(db, engine, accountsService)
	tradingHandlers := trading.NewGinHandlers(tradingService)

	// Rebuild the books from the mirror (or the order store) before serving
	rebuildCtx, rebuildCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := books.Rebuild(rebuildCtx, orderStore); err != nil {
		rebuildCancel()
		zlog.Fatal().Err(err).Msg("Failed to rebuild order books")
	}
	rebuildCancel()

	// Initialize router
	router := gin.Default()

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, tradingHandlers, accountsHandlers, bookHandlers, wsHandler)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// Parameters:
//   - router: The main Gin router instance
//   - tradingHandlers: Handlers for order management
//   - accountsHandlers: Handlers for users and balances
//   - bookHandlers: Handlers for order book depth
//   - wsHandler: Websocket handler for pair subscriptions
func setupRoutes(
	router *gin.Engine,
	tradingHandlers *trading.GinHandlers,
	accountsHandlers *accounts.GinHandlers,
	bookHandlers *orderbook.GinHandlers,
	wsHandler *ws.Handler,
) {
	v1 := router.Group("/api/v1")
	{
		// Order routes
		v1.GET("/orders", tradingHandlers.ListOrdersHandler())
		v1.GET("/order/:id", tradingHandlers.GetOrderHandler())
		v1.POST("/order", tradingHandlers.CreateOrderHandler())
		v1.POST("/order/cancel/:id", tradingHandlers.CancelOrderHandler())
		v1.DELETE("/order/:id", tradingHandlers.DeleteOrderHandler())

		// Order book routes
		v1.GET("/orderbook/:pair", bookHandlers.GetDepthHandler())

		// User routes
		v1.GET("/users", accountsHandlers.ListUsersHandler())
		v1.GET("/user/:id", accountsHandlers.GetUserHandler())
		v1.POST("/user", accountsHandlers.CreateUserHandler())
		v1.DELETE("/user/:id", accountsHandlers.DeleteUserHandler())
	}

	// Real-time pair subscriptions
	router.GET("/ws", wsHandler.Serve())
}
