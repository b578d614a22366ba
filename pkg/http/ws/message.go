package ws

import "encoding/json"

// MessageType constants for the live leaderboard socket.
const (
	// Client -> Server
	TypePing        = "ping"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"

	// Server -> Client
	TypeLeaderboardUpdate = "leaderboard_update"
	TypeSubscriptions     = "subscriptions"
	TypePong              = "pong"
	TypeError             = "error"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// LeaderboardUpdatePayload carries the new top of one board.
type LeaderboardUpdatePayload struct {
	Period      string             `json:"period"`
	DurationSec int                `json:"durationSec"`
	Scope       string             `json:"scope"`
	Subject     string             `json:"subject"`
	Top         []LeaderboardEntry `json:"top"`
	RoundID     string             `json:"roundId,omitempty"`
	UpdatedAt   string             `json:"updatedAt"`
}

// LeaderboardEntry is one ranked row as sent to clients.
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	UserID     string  `json:"userId"`
	Score      int     `json:"score"`
	Accuracy   float64 `json:"accuracy"`
	Speed      float64 `json:"speed"`
	Grade      string  `json:"grade"`
	Percentile int     `json:"percentile"`
	Stanine    int     `json:"stanine"`
}

// SubscribePayload selects one board for subscribe and unsubscribe.
type SubscribePayload struct {
	Period      string `json:"period"`
	DurationSec int    `json:"durationSec"`
}

// SubscriptionsPayload lists the topics a socket follows after a change.
type SubscriptionsPayload struct {
	Topics []string `json:"topics"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw}, nil
}
