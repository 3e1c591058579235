package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"
)

type MessageType string

const (
	MsgHello     MessageType = "hello"
	MsgStatic    MessageType = "static"
	MsgHeartbeat MessageType = "heartbeat"
	MsgInterval  MessageType = "interval"
)

// Close codes sent to the peer.
const (
	CloseNormal            = websocket.CloseNormalClosure
	CloseGoingAway         = websocket.CloseGoingAway
	CloseUnsupportedData   = websocket.CloseUnsupportedData
	CloseInternalError     = websocket.CloseInternalServerErr
	CloseProtocolViolation = 4000
)

const (
	ReasonHeartbeatTimeout     = "heartbeat has not been received"
	ReasonTooManyHeartbeats    = "Too many heartbeats"
	ReasonUnsupportedOperation = "Unsupported Operation"
	ReasonUnsupportedData      = "Unsupported Data"
	ReasonSendBufferFull       = "send buffer full"
)

var ErrUnsupportedData = errors.New("unsupported data")

// maxIntervalMs is the largest interval that still fits in a time.Duration.
const maxIntervalMs = math.MaxInt64 / int64(time.Millisecond)

// heartbeatAck is the fixed reply to every accepted heartbeat.
var heartbeatAck = []byte(`{"type":"heartbeat"}`)

// WSMessage is an outbound frame carrying a payload.
type WSMessage struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

type inboundMessage struct {
	Type     MessageType `json:"type"`
	Interval *int64      `json:"interval,omitempty"`
}

// parseInbound decodes one client text frame. Any structural problem,
// including an interval message without a positive interval, is reported
// as ErrUnsupportedData.
func parseInbound(data []byte) (inboundMessage, error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return inboundMessage{}, fmt.Errorf("%w: %v", ErrUnsupportedData, err)
	}
	if msg.Type == MsgInterval {
		if msg.Interval == nil || *msg.Interval <= 0 {
			return inboundMessage{}, fmt.Errorf("%w: interval must be a positive number of milliseconds", ErrUnsupportedData)
		}
		if *msg.Interval > maxIntervalMs {
			return inboundMessage{}, fmt.Errorf("%w: interval %d ms out of range", ErrUnsupportedData, *msg.Interval)
		}
	}
	return msg, nil
}

func encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}
