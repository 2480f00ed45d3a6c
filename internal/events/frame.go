package events

import (
	"encoding/json"
	"fmt"
)

// Frame is the unit of exchange on the websocket. Inbound frames may
// carry an id; when present the handler answers with an ack frame
// bearing the same id. Outbound frames never carry one.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeFrame parses a raw websocket text message into a Frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("decode frame: missing type")
	}
	return f, nil
}

// Encode builds the wire bytes for an outbound frame. Payloads are
// structs from this package, so a marshal failure is a programming
// error; it is surfaced to the caller rather than panicking.
func Encode(frameType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", frameType, err)
	}
	return json.Marshal(Frame{Type: frameType, Payload: raw})
}

// EncodeAck builds an ack frame answering the inbound frame id.
func EncodeAck(id string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode ack payload: %w", err)
	}
	return json.Marshal(Frame{Type: OutAck, ID: id, Payload: raw})
}
