package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"MarketLens/internal/model"
)

// MessageType discriminates inbound envelopes.
type MessageType string

const (
	TypeTick MessageType = "tick"
	TypeLog  MessageType = "log"
	TypeInfo MessageType = "info"
)

// SubscribeType is the outbound full-replacement subscription message type.
const SubscribeType = "subscribe_charts_list"

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type tickPayload struct {
	Code           string  `json:"code"`
	TradePrice     float64 `json:"trade_price"`
	TradeTimestamp int64   `json:"trade_timestamp"` // unix millis
}

// LogPayload is carried by log and info messages.
type LogPayload struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

// Message is a decoded inbound envelope. Exactly one of Tick and Log is set.
type Message struct {
	Type MessageType
	Tick *model.Tick
	Log  *LogPayload
}

// SubscribeRequest is sent whenever the subscription set changes and after every connect.
type SubscribeRequest struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// Decode parses one inbound frame.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeTick:
		var p tickPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Message{}, fmt.Errorf("%w: tick payload: %v", ErrMalformed, err)
		}
		if p.Code == "" || p.TradePrice <= 0 || p.TradeTimestamp <= 0 {
			return Message{}, fmt.Errorf("%w: tick missing code, price or timestamp", ErrMalformed)
		}
		return Message{Type: TypeTick, Tick: &model.Tick{
			Symbol: p.Code,
			Price:  p.TradePrice,
			Time:   time.UnixMilli(p.TradeTimestamp),
		}}, nil
	case TypeLog, TypeInfo:
		var p LogPayload
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				return Message{}, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
			}
		}
		if env.Type == TypeInfo && p.Level == "" {
			p.Level = "info"
		}
		return Message{Type: env.Type, Log: &p}, nil
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}
