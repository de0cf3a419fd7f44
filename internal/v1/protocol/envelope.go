package protocol

import (
	"encoding/json"
	"errors"
	"unicode/utf8"

	"github.com/abdibrokhim/yaps-relay/internal/v1/metrics"
)

// MaxFrameBytes bounds an inbound frame to admit small images while
// keeping a single malicious or buggy client from exhausting memory.
const MaxFrameBytes = 16 * 1024 * 1024

// Envelope is the wire shape of every frame: {"event": <name>, "data": <object>}.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ErrFrameTooLarge, ErrInvalidUTF8, ErrMalformedEnvelope, and ErrUnknownEvent
// are the distinct rejection reasons the codec counts in metrics.ProtocolErrors.
var (
	ErrFrameTooLarge     = errors.New("protocol: frame exceeds size limit")
	ErrInvalidUTF8       = errors.New("protocol: frame is not valid UTF-8")
	ErrMalformedEnvelope = errors.New("protocol: frame is not a valid envelope")
	ErrUnknownEvent      = errors.New("protocol: unknown event")
)

// Decode parses a raw text frame into an Envelope, rejecting frames that are
// oversized, not valid UTF-8 JSON, missing the event/data shape, or carrying
// an event name outside the enumerated inbound set. Every rejection is
// counted in metrics.ProtocolErrors; callers should drop the frame and keep
// the connection open rather than treat this as a transport failure.
func Decode(raw []byte) (Envelope, error) {
	if len(raw) > MaxFrameBytes {
		metrics.ProtocolErrors.WithLabelValues("frame_too_large").Inc()
		return Envelope{}, ErrFrameTooLarge
	}
	if !utf8.Valid(raw) {
		metrics.ProtocolErrors.WithLabelValues("invalid_utf8").Inc()
		return Envelope{}, ErrInvalidUTF8
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		metrics.ProtocolErrors.WithLabelValues("malformed_json").Inc()
		return Envelope{}, ErrMalformedEnvelope
	}
	if env.Event == "" || env.Data == nil {
		metrics.ProtocolErrors.WithLabelValues("missing_fields").Inc()
		return Envelope{}, ErrMalformedEnvelope
	}
	if !env.Event.IsInbound() {
		metrics.ProtocolErrors.WithLabelValues("unknown_event").Inc()
		return Envelope{}, ErrUnknownEvent
	}
	return env, nil
}

// Encode marshals an outbound event and payload into a wire frame.
func Encode(event Event, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// DecodePayload is the generic helper handlers use to cast an envelope's raw
// data into the struct shape a given event expects. It accepts either raw
// JSON bytes or an already-typed value, so handler unit tests can hand it
// pre-built structs instead of round-tripping through JSON.
func DecodePayload[T any](data any) (T, bool) {
	var out T
	switch v := data.(type) {
	case json.RawMessage:
		if err := json.Unmarshal(v, &out); err != nil {
			return out, false
		}
		return out, true
	case []byte:
		if err := json.Unmarshal(v, &out); err != nil {
			return out, false
		}
		return out, true
	case T:
		return v, true
	default:
		return out, false
	}
}
