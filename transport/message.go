package transport

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MethodPing is answered by every transport with PongResult.
const MethodPing = "ping"

// PongResult is the result of a ping.
const PongResult = "pong"

// Message is an RPC request or response. A response carries the ID of
// the request it answers.
type Message struct {
	ID         string          `json:"id"`
	Method     string          `json:"method,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	IsResponse bool            `json:"response,omitempty"`
}

// NewRequest creates a request with a fresh message ID.
func NewRequest(method string, params any) (*Message, error) {
	msg := &Message{
		ID:     uuid.NewString(),
		Method: method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding params: %w", err)
		}
		msg.Params = raw
	}
	return msg, nil
}

// NewPing creates a ping request.
func NewPing() *Message {
	return &Message{ID: uuid.NewString(), Method: MethodPing}
}

// NewResponse creates a response to req carrying result.
func NewResponse(req *Message, result any) (*Message, error) {
	msg := &Message{
		ID:         req.ID,
		Method:     req.Method,
		IsResponse: true,
	}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encoding result: %w", err)
		}
		msg.Result = raw
	}
	return msg, nil
}

// NewErrorResponse creates a response to req reporting err.
func NewErrorResponse(req *Message, err error) *Message {
	return &Message{
		ID:         req.ID,
		Method:     req.Method,
		Error:      err.Error(),
		IsResponse: true,
	}
}

// Validate checks that the message can be sent.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}
	if m.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidMessage)
	}
	if !m.IsResponse && m.Method == "" {
		return fmt.Errorf("%w: request without method", ErrInvalidMessage)
	}
	return nil
}

// DecodeResult unmarshals the response result into v.
func (m *Message) DecodeResult(v any) error {
	if m.Error != "" {
		return fmt.Errorf("remote error: %s", m.Error)
	}
	if len(m.Result) == 0 {
		return nil
	}
	return json.Unmarshal(m.Result, v)
}
