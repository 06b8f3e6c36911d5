// Package rpc defines the line-oriented JSON-RPC 2.0 wire types exchanged
// with the codex app server.
//
// Each line on the wire is exactly one message. Messages are decoded once at
// the transport boundary into a tagged Message value; downstream code
// switches on Kind instead of re-testing field presence.
package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the JSON-RPC protocol version sent on every outbound message.
const Version = "2.0"

// Kind identifies the wire-level variant of a message.
type Kind int

const (
	// KindInvalid marks a message that matches no variant.
	KindInvalid Kind = iota

	// KindRequest is a message with an id and a method (needs a reply).
	KindRequest

	// KindNotification is a message with a method and no id.
	KindNotification

	// KindResponse is a message with an id and a result or error.
	KindResponse
)

// Error is a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Message is the decoded form of one wire line. The same struct covers all
// three variants; Classify tags it with the variant its fields imply.
//
// IDs are kept as raw JSON so integer and string ids round-trip byte-exact
// when echoed in a response.
type Message struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Classify returns the variant implied by the message's field shape.
// Exactly one variant holds for any valid message:
//
//   - Response: has an id, and a result or error field
//   - Request: has an id and a method, and lacks result/error
//   - Notification: lacks an id and has a method
func (m *Message) Classify() Kind {
	hasID := len(m.ID) > 0 && !bytes.Equal(m.ID, []byte("null"))

	switch {
	case hasID && (m.Result != nil || m.Error != nil):
		return KindResponse
	case hasID && m.Method != "":
		return KindRequest
	case !hasID && m.Method != "":
		return KindNotification
	default:
		return KindInvalid
	}
}

// Encode serializes a message to one newline-terminated wire line.
func Encode(msg *Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	return append(data, '\n'), nil
}

// Decode parses one wire line into a Message. It returns an error for lines
// that are not a JSON object; the transport drops those lines.
func Decode(line []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("decode line: %w", err)
	}

	return &msg, nil
}

// NewRequest builds an outbound request with an integer id.
func NewRequest(id int64, method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}

	return &Message{
		JSONRPC: Version,
		ID:      json.RawMessage(strconv.FormatInt(id, 10)),
		Method:  method,
		Params:  raw,
	}, nil
}

// NewNotification builds an outbound notification.
func NewNotification(method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}

	return &Message{JSONRPC: Version, Method: method, Params: raw}, nil
}

// NewResult builds a success response echoing the given raw id.
func NewResult(id json.RawMessage, result any) (*Message, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	return &Message{JSONRPC: Version, ID: id, Result: raw}, nil
}

// NewError builds an error response echoing the given raw id.
func NewError(id json.RawMessage, code int, message string) *Message {
	return &Message{
		JSONRPC: Version,
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}

// IDKey normalizes a raw id to a string map key. Integer ids normalize to
// their decimal form, string ids to their unquoted form; anything else keeps
// its raw bytes so distinct ids stay distinct.
func IDKey(id json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(id))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return string(id)
	}

	switch key := v.(type) {
	case json.Number:
		return key.String()
	case string:
		return key
	default:
		return string(id)
	}
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	return raw, nil
}
