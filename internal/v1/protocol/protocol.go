// Package protocol defines the typed wire envelope and its MessagePack codec.
//
// Every message on the wire — control and audio alike — is one Envelope,
// encoded in a self-describing binary format that preserves raw byte payloads
// (audio_data is never re-interpreted as text).
package protocol

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MessageType is the envelope discriminator.
type MessageType string

const (
	// Control
	TypeAuth      MessageType = "auth"
	TypeJoinRoom  MessageType = "join_room"
	TypeLeaveRoom MessageType = "leave_room"
	TypeRoomInfo  MessageType = "room_info"
	TypeError     MessageType = "error"
	TypeSystem    MessageType = "system"

	// Audio
	TypeAudioStream MessageType = "audio_stream"

	// AI
	TypeAIRequest  MessageType = "ai_request"
	TypeAIResponse MessageType = "ai_response"
)

var knownTypes = map[MessageType]struct{}{
	TypeAuth:        {},
	TypeJoinRoom:    {},
	TypeLeaveRoom:   {},
	TypeRoomInfo:    {},
	TypeError:       {},
	TypeSystem:      {},
	TypeAudioStream: {},
	TypeAIRequest:   {},
	TypeAIResponse:  {},
}

// DefaultMaxBytes is the default decode size limit for a single envelope.
const DefaultMaxBytes = 1 << 20

// DecodeErrorKind discriminates decode failures.
type DecodeErrorKind string

const (
	// KindUnknownType: decoded shape is a valid envelope but carries an
	// unrecognized type discriminator. The frame is dropped, the connection
	// stays open.
	KindUnknownType DecodeErrorKind = "unknown_type"
	// KindMalformed: the bytes are not a map with a string type discriminator.
	KindMalformed DecodeErrorKind = "malformed"
	// KindTooLarge: the raw frame exceeds the size limit. The connection is
	// closed.
	KindTooLarge DecodeErrorKind = "too_large"
)

// DecodeError is returned by Decode with the failure kind attached.
type DecodeError struct {
	Kind DecodeErrorKind
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("decode %s", e.Kind)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeKind extracts the DecodeErrorKind from err, or "" when err is not a
// DecodeError.
func DecodeKind(err error) DecodeErrorKind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Envelope is the typed wire message wrapping all traffic.
type Envelope struct {
	Type    MessageType    `msgpack:"type"`
	Payload map[string]any `msgpack:"payload"`
}

// Encode serializes the envelope to MessagePack.
func Encode(e Envelope) ([]byte, error) {
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses a MessagePack envelope, enforcing maxBytes (DefaultMaxBytes
// when maxBytes <= 0). Failures carry a DecodeError kind; see §DecodeErrorKind
// for the caller's drop-vs-close contract.
func Decode(data []byte, maxBytes int) (Envelope, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(data) > maxBytes {
		return Envelope{}, &DecodeError{Kind: KindTooLarge, Err: fmt.Errorf("%d bytes exceeds limit %d", len(data), maxBytes)}
	}

	var e Envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Envelope{}, &DecodeError{Kind: KindMalformed, Err: err}
	}
	if e.Type == "" {
		return Envelope{}, &DecodeError{Kind: KindMalformed, Err: errors.New("missing type discriminator")}
	}
	if _, ok := knownTypes[e.Type]; !ok {
		return Envelope{}, &DecodeError{Kind: KindUnknownType, Err: fmt.Errorf("type %q", e.Type)}
	}
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	return e, nil
}

// AudioPayload is the typed view of an audio_stream envelope payload.
type AudioPayload struct {
	ParticipantID string
	AudioData     []byte
	TimestampMs   uint64
	// Codec names the payload encoding ("pcm16" by default). The core never
	// interprets it; it travels for the benefit of clients and the recorder
	// decoder.
	Codec string
}

// CodecPCM16 is the default audio payload codec label.
const CodecPCM16 = "pcm16"

// NewAudioEnvelope builds an audio_stream envelope.
func NewAudioEnvelope(p AudioPayload) Envelope {
	codec := p.Codec
	if codec == "" {
		codec = CodecPCM16
	}
	return Envelope{
		Type: TypeAudioStream,
		Payload: map[string]any{
			"participant_id": p.ParticipantID,
			"audio_data":     p.AudioData,
			"timestamp":      p.TimestampMs,
			"codec":          codec,
		},
	}
}

// Audio extracts the typed audio payload. ok is false when the envelope is
// not an audio_stream or its payload has the wrong shape.
func (e Envelope) Audio() (AudioPayload, bool) {
	if e.Type != TypeAudioStream {
		return AudioPayload{}, false
	}
	data, ok := asBytes(e.Payload["audio_data"])
	if !ok {
		return AudioPayload{}, false
	}
	p := AudioPayload{AudioData: data}
	p.ParticipantID, _ = e.Payload["participant_id"].(string)
	p.TimestampMs = asUint64(e.Payload["timestamp"])
	if c, ok := e.Payload["codec"].(string); ok {
		p.Codec = c
	}
	return p, true
}

// NewSystemEnvelope builds a system notification envelope.
func NewSystemEnvelope(message string) Envelope {
	return Envelope{
		Type:    TypeSystem,
		Payload: map[string]any{"message": message},
	}
}

// NewErrorEnvelope builds an error envelope.
func NewErrorEnvelope(message string) Envelope {
	return Envelope{
		Type:    TypeError,
		Payload: map[string]any{"message": message},
	}
}

// SystemMessage returns the "message" field of a system or error payload.
func (e Envelope) SystemMessage() string {
	m, _ := e.Payload["message"].(string)
	return m
}

func asBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		// Tolerate encoders that packed audio as str instead of bin.
		return []byte(b), true
	default:
		return nil, false
	}
}

// asUint64 normalizes the integer shapes the msgpack decoder can hand back
// for a timestamp field.
func asUint64(v any) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case int64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case int:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case uint:
		return uint64(n)
	case int8:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case uint8:
		return uint64(n)
	case int16:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case uint16:
		return uint64(n)
	case int32:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case uint32:
		return uint64(n)
	case float64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	default:
		return 0
	}
}
