package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serverAddress = "http://localhost:8080"

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// apiResponse is the server's JSON envelope
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// simulationClient handles HTTP communication with the exchange API
type simulationClient struct {
	baseURL string
	client  *http.Client
}

func newSimulationClient() *simulationClient {
	return &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// call performs one API request and decodes the envelope's data field into out
func (sc *simulationClient) call(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if !envelope.Success {
		if envelope.Error != nil {
			return fmt.Errorf("%s %s: %s (%s)", method, path, envelope.Error.Message, envelope.Error.Code)
		}
		return fmt.Errorf("%s %s: request failed with status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

func (sc *simulationClient) createUser() (string, error) {
	var user struct {
		ID string `json:"id"`
	}
	if err := sc.call(http.MethodPost, "/api/v1/user", nil, &user); err != nil {
		return "", err
	}
	return user.ID, nil
}

type orderResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (sc *simulationClient) createOrder(userID, pair, side string, price, quantity float64) (*orderResult, error) {
	body := map[string]any{
		"user_id":  userID,
		"pair":     pair,
		"side":     side,
		"price":    price,
		"quantity": quantity,
	}
	var order orderResult
	if err := sc.call(http.MethodPost, "/api/v1/order", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (sc *simulationClient) cancelOrder(orderID string) (*orderResult, error) {
	var order orderResult
	if err := sc.call(http.MethodPost, "/api/v1/order/cancel/"+orderID, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// listenEvents subscribes to pairs over the websocket and logs every event
// until the connection closes
func listenEvents(pairs []string, ready chan<- struct{}, done <-chan struct{}) {
	wsURL := strings.Replace(serverAddress, "http://", "ws://", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("websocket dial failed")
	}

	go func() {
		<-done
		conn.Close()
	}()

	for _, pair := range pairs {
		err := conn.WriteJSON(map[string]string{"action": "subscribe", "pair": pair})
		if err != nil {
			log.Fatal().Err(err).Msg("subscribe failed")
		}
	}

	acked := 0
	for {
		var msg struct {
			Event     string          `json:"event"`
			Data      json.RawMessage `json:"data"`
			Timestamp int64           `json:"timestamp"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		log.Info().
			Str("event", msg.Event).
			RawJSON("data", msg.Data).
			Int64("timestamp", msg.Timestamp).
			Msg("received event")

		if msg.Event == "subscribed" {
			acked++
			if acked == len(pairs) {
				close(ready)
			}
		}
	}
}

// main drives an end-to-end scenario against a running server: two users, a
// crossing pair of BTC-USD orders that should trade, and an ETH-USD order
// that is cancelled before it can match.
func main() {
	sc := newSimulationClient()

	ready := make(chan struct{})
	done := make(chan struct{})
	go listenEvents([]string{"BTC-USD", "ETH-USD"}, ready, done)

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		log.Fatal().Msg("timed out waiting for subscriptions")
	}

	alice, err := sc.createUser()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create first user")
	}
	bob, err := sc.createUser()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create second user")
	}
	log.Info().Str("buyer", alice).Str("seller", bob).Msg("users created")

	// resting sell, then a crossing buy of the same quantity
	sell, err := sc.createOrder(bob, "BTC-USD", "sell", 50000, 1)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create sell order")
	}
	log.Info().Str("order_id", sell.ID).Str("status", sell.Status).Msg("sell order placed")

	buy, err := sc.createOrder(alice, "BTC-USD", "buy", 50000, 1)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create buy order")
	}
	log.Info().Str("order_id", buy.ID).Str("status", buy.Status).Msg("buy order placed")

	if buy.Status != "filled" {
		log.Warn().Str("status", buy.Status).Msg("expected the crossing buy to fill")
	}

	// an order that never matches, cancelled before a counterparty arrives
	resting, err := sc.createOrder(alice, "ETH-USD", "buy", 3000, 2)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create resting order")
	}
	cancelled, err := sc.cancelOrder(resting.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to cancel order")
	}
	log.Info().Str("order_id", cancelled.ID).Str("status", cancelled.Status).Msg("order cancelled")

	// allow the tail of the event stream to arrive
	time.Sleep(2 * time.Second)
	close(done)

	log.Info().Msg("simulation complete")
}
