package events

import (
	"encoding/json"
	"time"
)

// Message is a websocket frame exchanged with a collaboration client
type Message[D AnyPayload] struct {
	Op        Opcode `json:"op"`
	Timestamp int64  `json:"t"`
	Data      D      `json:"d"`
	Sequence  uint64 `json:"s,omitempty"`
}

type AnyPayload interface {
	json.RawMessage | HelloPayload | AckPayload | ErrorPayload | DispatchPayload |
		SubscribePayload | ActionPayload
}

func NewMessage[D AnyPayload](op Opcode, data D) Message[D] {
	return Message[D]{
		Op:        op,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

func (e Message[D]) ToRaw() Message[json.RawMessage] {
	if x, ok := any(e.Data).(json.RawMessage); ok {
		return Message[json.RawMessage]{
			Op:        e.Op,
			Timestamp: e.Timestamp,
			Data:      x,
			Sequence:  e.Sequence,
		}
	}

	raw, _ := json.Marshal(e.Data)

	return Message[json.RawMessage]{
		Op:        e.Op,
		Timestamp: e.Timestamp,
		Data:      raw,
		Sequence:  e.Sequence,
	}
}

func ConvertMessage[D AnyPayload](c Message[json.RawMessage]) (Message[D], error) {
	var d D
	err := json.Unmarshal(c.Data, &d)

	return Message[D]{
		Op:        c.Op,
		Timestamp: c.Timestamp,
		Data:      d,
		Sequence:  c.Sequence,
	}, err
}

type Opcode uint8

const (
	OpcodeDispatch  Opcode = 0 // R - Server dispatches an envelope to the client
	OpcodeHello     Opcode = 1 // R - Server greets the client
	OpcodeHeartbeat Opcode = 2 // R - Keep the connection alive
	OpcodeAck       Opcode = 5 // R - Acknowledgement of an action
	OpcodeError     Opcode = 6 // R - Extra error context

	OpcodeSubscribe   Opcode = 35 // S - Subscribe to a board's channels
	OpcodeUnsubscribe Opcode = 36 // S - Unsubscribe from a board's channels
	OpcodeAction      Opcode = 38 // S - Submit a collaboration action
)

func (op Opcode) String() string {
	switch op {
	case OpcodeDispatch:
		return "DISPATCH"
	case OpcodeHello:
		return "HELLO"
	case OpcodeHeartbeat:
		return "HEARTBEAT"
	case OpcodeAck:
		return "ACK"
	case OpcodeError:
		return "ERROR"
	case OpcodeSubscribe:
		return "SUBSCRIBE"
	case OpcodeUnsubscribe:
		return "UNSUBSCRIBE"
	case OpcodeAction:
		return "ACTION"
	default:
		return "UNDOCUMENTED_OPERATION"
	}
}

type CloseCode uint16

const (
	CloseCodeServerError      CloseCode = 4000 // an error occured on the server's end
	CloseCodeUnknownOperation CloseCode = 4001 // the client sent an unexpected opcode
	CloseCodeInvalidPayload   CloseCode = 4002 // the client sent a payload that couldn't be decoded
	CloseCodeAuthFailure      CloseCode = 4003 // the client presented a token that failed verification
	CloseCodeRestart          CloseCode = 4006 // the server is restarting and the client should reconnect
	CloseCodeTimeout          CloseCode = 4008 // the client was idle for too long
)

func (c CloseCode) String() string {
	switch c {
	case CloseCodeServerError:
		return "Internal Server Error"
	case CloseCodeUnknownOperation:
		return "Unknown Operation"
	case CloseCodeInvalidPayload:
		return "Invalid Payload"
	case CloseCodeAuthFailure:
		return "Authentication Failed"
	case CloseCodeRestart:
		return "Server is restarting"
	case CloseCodeTimeout:
		return "Timeout"
	default:
		return "Undocumented Closure"
	}
}

type HelloPayload struct {
	HeartbeatInterval uint32 `json:"heartbeat_interval"`
	SessionID         string `json:"session_id"`
	// Actor is absent for guests
	Actor *IdentityPayload `json:"actor,omitempty"`
}

type IdentityPayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type AckPayload struct {
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type DispatchPayload struct {
	// Channel is the logical channel the envelope was published on
	Channel string          `json:"channel"`
	Body    json.RawMessage `json:"body"`
}

type SubscribePayload struct {
	BoardID int64 `json:"board_id"`
}

type ActionPayload struct {
	Action  Action          `json:"action"`
	BoardID int64           `json:"board_id"`
	Body    json.RawMessage `json:"body,omitempty"`
}
