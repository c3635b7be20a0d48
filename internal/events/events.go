package events

// Kind identifies an order lifecycle event
type Kind string

const (
	KindCreated   Kind = "created"
	KindCancelled Kind = "cancelled"
	KindTraded    Kind = "traded"
)

// WireName maps an event kind to the name subscribers see on the socket
func (k Kind) WireName() string {
	switch k {
	case KindCreated:
		return "newOrder"
	case KindCancelled:
		return "cancelOrder"
	case KindTraded:
		return "tradeExecuted"
	}
	return string(k)
}

// Event is a pair-scoped lifecycle notification
type Event struct {
	Pair    string
	Kind    Kind
	Payload any
}

// Publisher is the sink the order pipeline emits into
type Publisher interface {
	Publish(event Event)
}
