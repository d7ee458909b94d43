package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// OpCode identifies the purpose of an envelope.
type OpCode int

const (
	OpEvent     OpCode = 0 // Server → client data push
	OpHello     OpCode = 1 // Server → client handshake result
	OpPing      OpCode = 2 // Client → server heartbeat
	OpPong      OpCode = 3 // Server → client heartbeat reply
	OpReconnect OpCode = 5 // Server → client: connection invalid, reconnect
	OpResumeAck OpCode = 6 // Server → client: resume accepted
)

// String returns the string representation of the opcode.
func (op OpCode) String() string {
	switch op {
	case OpEvent:
		return "Event"
	case OpHello:
		return "Hello"
	case OpPing:
		return "Ping"
	case OpPong:
		return "Pong"
	case OpReconnect:
		return "Reconnect"
	case OpResumeAck:
		return "ResumeAck"
	default:
		return "Unknown"
	}
}

// Hello status codes. Only HelloOK opens the session; every other code
// discards the connection attempt.
const (
	HelloOK            = 0
	HelloMissingParams = 40100
	HelloInvalidToken  = 40101
	HelloTokenVerify   = 40102
	HelloTokenExpired  = 40103
)

// Reconnect status codes. Each one means the server refused to resume the
// prior session; the client must drop its sequence and session id before
// reconnecting.
const (
	ResumeMissingParams  = 40106
	ResumeSessionExpired = 40107
	ResumeInvalidSN      = 40108
)

// Envelope errors.
var (
	ErrEmptyFrame = errors.New("protocol: empty frame")
)

// Envelope is one discrete frame exchanged over the gateway connection.
// The payload is kept as raw JSON; its shape is determined by the opcode.
type Envelope struct {
	Op       OpCode          `json:"s"`
	Payload  json.RawMessage `json:"d,omitempty"`
	Sequence *int64          `json:"sn,omitempty"`
}

// HasSequence reports whether the envelope carries a sequence number.
func (e *Envelope) HasSequence() bool {
	return e.Sequence != nil
}

// HelloPayload is the handshake result delivered with OpHello.
type HelloPayload struct {
	Code      int    `json:"code"`
	SessionID string `json:"session_id,omitempty"`
}

// OK reports whether the handshake succeeded.
func (h *HelloPayload) OK() bool {
	return h.Code == HelloOK
}

// ReconnectPayload carries the resume-failure reason with OpReconnect.
type ReconnectPayload struct {
	Code int `json:"code"`
}

// DecodeEnvelope parses a plaintext JSON frame into an envelope. The payload
// is left raw for per-opcode decoding.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	return &env, nil
}

// DecodeHello parses the payload of an OpHello envelope.
func DecodeHello(payload json.RawMessage) (*HelloPayload, error) {
	var h HelloPayload
	if err := json.Unmarshal(payload, &h); err != nil {
		return nil, fmt.Errorf("protocol: decode hello: %w", err)
	}
	return &h, nil
}

// DecodeReconnect parses the payload of an OpReconnect envelope. A missing
// or malformed payload decodes to code 0, which callers treat the same as an
// unspecified resume failure.
func DecodeReconnect(payload json.RawMessage) *ReconnectPayload {
	var r ReconnectPayload
	if len(payload) > 0 {
		// Best effort: the reconnect command stands even without a code.
		_ = json.Unmarshal(payload, &r)
	}
	return &r
}

// EncodePing builds the client heartbeat envelope carrying the most recent
// delivered sequence number.
func EncodePing(sequence int64) []byte {
	data, err := json.Marshal(struct {
		Op OpCode `json:"s"`
		SN int64  `json:"sn"`
	}{Op: OpPing, SN: sequence})
	if err != nil {
		// Marshalling two integers cannot fail.
		panic(fmt.Sprintf("protocol: encode ping: %v", err))
	}
	return data
}
