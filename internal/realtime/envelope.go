package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBadHandshake is returned when the first frame is not an auth frame
var ErrBadHandshake = errors.New("expected auth frame")

// Envelope is the JSON frame exchanged in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AuthFrame is the first frame a client sends
type AuthFrame struct {
	Auth struct {
		Token string `json:"token"`
	} `json:"auth"`
}

// EncodeFrame builds an envelope for event carrying payload
func EncodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// EncodeAuthFrame builds the handshake frame carrying token
func EncodeAuthFrame(token string) ([]byte, error) {
	var f AuthFrame
	f.Auth.Token = token
	return json.Marshal(f)
}

// parseAuthFrame extracts the bearer token from a handshake frame. A frame
// that parses but carries no token yields an empty string.
func parseAuthFrame(data []byte) (string, error) {
	var f AuthFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadHandshake, err)
	}
	return f.Auth.Token, nil
}
