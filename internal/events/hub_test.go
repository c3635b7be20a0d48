package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(sub *Subscriber) []Message {
	var msgs []Message
	for {
		select {
		case msg := <-sub.C():
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestPublishReachesOnlyPairRoom(t *testing.T) {
	hub := NewHub()
	ltc := NewSubscriber(8)
	btc := NewSubscriber(8)
	hub.Subscribe(ltc, "LTC-USD")
	hub.Subscribe(btc, "BTC-USD")

	hub.Publish(Event{Pair: "LTC-USD", Kind: KindTraded, Payload: "trade"})

	msgs := drain(ltc)
	require.Len(t, msgs, 1)
	assert.Equal(t, "tradeExecuted", msgs[0].Event)
	assert.Equal(t, "trade", msgs[0].Data)
	assert.NotZero(t, msgs[0].Timestamp)

	assert.Empty(t, drain(btc))
}

func TestPublishOrderAndWireNames(t *testing.T) {
	hub := NewHub()
	sub := NewSubscriber(8)
	hub.Subscribe(sub, "BTC-USD")

	hub.Publish(Event{Pair: "BTC-USD", Kind: KindCreated})
	hub.Publish(Event{Pair: "BTC-USD", Kind: KindCancelled})
	hub.Publish(Event{Pair: "BTC-USD", Kind: KindTraded})

	msgs := drain(sub)
	require.Len(t, msgs, 3)
	assert.Equal(t, "newOrder", msgs[0].Event)
	assert.Equal(t, "cancelOrder", msgs[1].Event)
	assert.Equal(t, "tradeExecuted", msgs[2].Event)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := NewSubscriber(8)
	hub.Subscribe(sub, "ETH-USD")
	hub.Unsubscribe(sub, "ETH-USD")

	hub.Publish(Event{Pair: "ETH-USD", Kind: KindCreated})
	assert.Empty(t, drain(sub))
}

func TestDropRemovesFromAllRooms(t *testing.T) {
	hub := NewHub()
	sub := NewSubscriber(8)
	hub.Subscribe(sub, "BTC-USD")
	hub.Subscribe(sub, "ETH-USD")
	hub.Drop(sub)

	hub.Publish(Event{Pair: "BTC-USD", Kind: KindCreated})
	hub.Publish(Event{Pair: "ETH-USD", Kind: KindCreated})
	assert.Empty(t, drain(sub))
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	sub := NewSubscriber(1)
	hub.Subscribe(sub, "BTC-USD")

	hub.Publish(Event{Pair: "BTC-USD", Kind: KindCreated, Payload: "first"})
	// buffer full: this must not block and the message is dropped
	hub.Publish(Event{Pair: "BTC-USD", Kind: KindCreated, Payload: "second"})

	msgs := drain(sub)
	require.Len(t, msgs, 1)
	assert.Equal(t, "first", msgs[0].Data)
}
