package wire

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// Errors
var (
	ErrUnrecognizedFrame = errors.New("unrecognized frame")
	ErrEmptyArgs         = errors.New("no args")
)

// Operation tags.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpAuth        = "auth"
	OpPing        = "ping"
	OpPong        = "pong"
)

// Request is an outbound operation frame.
type Request struct {
	ReqID string `json:"req_id,omitempty"`
	Op    string `json:"op"`
	Args  []any  `json:"args,omitempty"`
}

// SubscribeFrame encodes {"req_id":..,"op":"subscribe","args":[topics]}.
func SubscribeFrame(reqID string, topics []string) ([]byte, error) {
	return topicFrame(reqID, OpSubscribe, topics)
}

// UnsubscribeFrame encodes {"req_id":..,"op":"unsubscribe","args":[topics]}.
func UnsubscribeFrame(reqID string, topics []string) ([]byte, error) {
	return topicFrame(reqID, OpUnsubscribe, topics)
}

func topicFrame(reqID, op string, topics []string) ([]byte, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyArgs)
	}
	args := make([]any, len(topics))
	for i, t := range topics {
		args[i] = t
	}
	return json.Marshal(Request{ReqID: reqID, Op: op, Args: args})
}

// AuthFrame encodes {"req_id":..,"op":"auth","args":[apiKey, expires, signature]}.
func AuthFrame(reqID string, args []any) ([]byte, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: %w", OpAuth, ErrEmptyArgs)
	}
	return json.Marshal(Request{ReqID: reqID, Op: OpAuth, Args: args})
}

// Kind classifies an inbound frame.
type Kind int

const (
	KindUnknown  Kind = iota
	KindData          // topic frame
	KindResponse      // successful op acknowledgment
	KindError         // op acknowledgment with success=false
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindResponse:
		return "response"
	case KindError:
		return "error"
	}
	return "unknown"
}

// Response is an op acknowledgment from the server.
type Response struct {
	Success bool   `json:"success"`
	RetMsg  string `json:"ret_msg"`
	ConnID  string `json:"conn_id"`
	ReqID   string `json:"req_id"`
	Op      string `json:"op"`
}

// Frame is a topic data frame.
type Frame struct {
	ID           string          `json:"id,omitempty"`
	Topic        string          `json:"topic"`
	Type         string          `json:"type,omitempty"` // "snapshot" or "delta"
	Ts           int64           `json:"ts,omitempty"`
	CTs          int64           `json:"cts,omitempty"`
	CreationTime int64           `json:"creationTime,omitempty"`
	Data         json.RawMessage `json:"data"`
}

// Message is a decoded inbound frame.
type Message struct {
	Kind     Kind
	Response Response
	Frame    Frame
}

// envelope covers both frame shapes so each message is unmarshalled once.
type envelope struct {
	Success      *bool           `json:"success"`
	RetMsg       string          `json:"ret_msg"`
	ConnID       string          `json:"conn_id"`
	ReqID        string          `json:"req_id"`
	Op           string          `json:"op"`
	ID           string          `json:"id"`
	Topic        string          `json:"topic"`
	Type         string          `json:"type"`
	Ts           int64           `json:"ts"`
	CTs          int64           `json:"cts"`
	CreationTime int64           `json:"creationTime"`
	Data         json.RawMessage `json:"data"`
}

// Decode classifies and decodes a raw inbound frame.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}

	switch {
	case env.Topic != "":
		return Message{
			Kind: KindData,
			Frame: Frame{
				ID:           env.ID,
				Topic:        env.Topic,
				Type:         env.Type,
				Ts:           env.Ts,
				CTs:          env.CTs,
				CreationTime: env.CreationTime,
				Data:         env.Data,
			},
		}, nil

	case env.Op != "":
		resp := Response{
			Success: env.Success == nil || *env.Success,
			RetMsg:  env.RetMsg,
			ConnID:  env.ConnID,
			ReqID:   env.ReqID,
			Op:      env.Op,
		}
		kind := KindResponse
		if !resp.Success {
			kind = KindError
		}
		return Message{Kind: kind, Response: resp}, nil
	}

	return Message{}, ErrUnrecognizedFrame
}

// Marshal encodes an arbitrary outbound payload.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// RequestID extracts "req_id" from an encoded payload, if present.
func RequestID(payload []byte) string {
	var head struct {
		ReqID string `json:"req_id"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return ""
	}
	return head.ReqID
}
