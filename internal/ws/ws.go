package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ksred/exchange-api/internal/events"
	"github.com/ksred/exchange-api/internal/types"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 64

// Handler upgrades HTTP connections and bridges them to the event hub.
// Clients send {"action":"subscribe"|"unsubscribe","pair":"BTC-USD"} frames
// and receive event frames {"event":...,"data":...,"timestamp":...}.
type Handler struct {
	hub      *events.Hub
	upgrader websocket.Upgrader
}

func NewHandler(hub *events.Hub) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type clientFrame struct {
	Action string `json:"action"`
	Pair   string `json:"pair"`
}

// Serve handles one websocket connection
func (h *Handler) Serve() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		sub := events.NewSubscriber(subscriberBuffer)
		done := make(chan struct{})

		log.Info().Str("remote", conn.RemoteAddr().String()).Msg("client connected")

		// single writer per connection: everything, acks included, goes
		// through the subscriber channel
		go func() {
			defer conn.Close()
			for {
				select {
				case msg := <-sub.C():
					if err := conn.WriteJSON(msg); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			var frame clientFrame
			if err := conn.ReadJSON(&frame); err != nil {
				break
			}
			h.handleFrame(sub, frame)
		}

		close(done)
		h.hub.Drop(sub)
		log.Info().Str("remote", conn.RemoteAddr().String()).Msg("client disconnected")
	}
}

func (h *Handler) handleFrame(sub *events.Subscriber, frame clientFrame) {
	if !types.IsValidPair(frame.Pair) {
		sub.Deliver(events.Message{
			Event:     "error",
			Data:      gin.H{"message": "unknown pair"},
			Timestamp: time.Now().UnixMilli(),
		})
		return
	}

	switch frame.Action {
	case "subscribe":
		h.hub.Subscribe(sub, frame.Pair)
		sub.Deliver(events.Message{
			Event:     "subscribed",
			Data:      gin.H{"pair": frame.Pair},
			Timestamp: time.Now().UnixMilli(),
		})
	case "unsubscribe":
		h.hub.Unsubscribe(sub, frame.Pair)
		sub.Deliver(events.Message{
			Event:     "unsubscribed",
			Data:      gin.H{"pair": frame.Pair},
			Timestamp: time.Now().UnixMilli(),
		})
	}
}
