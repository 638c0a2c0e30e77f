package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/wagiedev/workerlink-go/internal/errors"
)

// FrameKind tags the variant carried by a Frame.
type FrameKind string

const (
	// KindRequest asks the other side to run an action.
	KindRequest FrameKind = "request"
	// KindSuccess carries the result of a request.
	KindSuccess FrameKind = "response-success"
	// KindFailure carries the failure of a request.
	KindFailure FrameKind = "response-failure"
)

// Frame is the unit exchanged over a Transport.
//
// Wire format:
//
//	{"kind":"request","id":"01J...","action":"ping","payload":{"n":1}}
//	{"kind":"response-success","id":"01J...","result":{"n":2}}
//	{"kind":"response-failure","id":"01J...","error":{"kind":"UnknownAction","message":"..."}}
type Frame struct {
	Kind FrameKind `json:"kind"`

	// ID is the correlation id linking a response to its request.
	ID string `json:"id"`

	Action  string          `json:"action,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Encode serializes the frame.
func (f *Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// DecodeFrame parses and validates one frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame

	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &errors.FrameDecodeError{RawData: string(data), Err: err}
	}

	if f.ID == "" {
		return nil, &errors.FrameDecodeError{RawData: string(data), Err: fmt.Errorf("missing correlation id")}
	}

	switch f.Kind {
	case KindRequest:
		if f.Action == "" {
			return nil, &errors.FrameDecodeError{RawData: string(data), Err: fmt.Errorf("request without action")}
		}
	case KindSuccess:
	case KindFailure:
		if f.Error == nil {
			return nil, &errors.FrameDecodeError{RawData: string(data), Err: fmt.Errorf("failure without error info")}
		}
	default:
		return nil, &errors.FrameDecodeError{RawData: string(data), Err: fmt.Errorf("unknown frame kind %q", f.Kind)}
	}

	return &f, nil
}

func newRequestFrame(id, action string, payload json.RawMessage) *Frame {
	return &Frame{Kind: KindRequest, ID: id, Action: action, Payload: payload}
}

func newSuccessFrame(id string, result json.RawMessage) *Frame {
	return &Frame{Kind: KindSuccess, ID: id, Result: result}
}

func newFailureFrame(id, kind, message string) *Frame {
	return &Frame{Kind: KindFailure, ID: id, Error: &ErrorInfo{Kind: kind, Message: message}}
}

// marshalValue turns a payload or result into raw JSON.
// json.RawMessage values pass through unchanged; nil stays absent.
func marshalValue(v any) (json.RawMessage, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return val, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return data, nil
}
