package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestRoundTrip_Audio(t *testing.T) {
	in := NewAudioEnvelope(AudioPayload{
		ParticipantID: "p-1",
		AudioData:     []byte{0x00, 0x01, 0xFE, 0xFF},
		TimestampMs:   1234567,
	})

	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data, 0)
	require.NoError(t, err)
	assert.Equal(t, TypeAudioStream, out.Type)

	p, ok := out.Audio()
	require.True(t, ok)
	assert.Equal(t, "p-1", p.ParticipantID)
	assert.True(t, bytes.Equal([]byte{0x00, 0x01, 0xFE, 0xFF}, p.AudioData), "raw bytes must survive the codec")
	assert.Equal(t, uint64(1234567), p.TimestampMs)
	assert.Equal(t, CodecPCM16, p.Codec)
}

func TestRoundTrip_AllTypes(t *testing.T) {
	for mt := range knownTypes {
		in := Envelope{Type: mt, Payload: map[string]any{"message": "hi"}}

		data, err := Encode(in)
		require.NoError(t, err)

		out, err := Decode(data, 0)
		require.NoError(t, err, "type %s", mt)
		assert.Equal(t, mt, out.Type)
		assert.Equal(t, "hi", out.SystemMessage())
	}
}

func TestEncode_NilPayload(t *testing.T) {
	data, err := Encode(Envelope{Type: TypeSystem})
	require.NoError(t, err)

	out, err := Decode(data, 0)
	require.NoError(t, err)
	assert.NotNil(t, out.Payload)
}

func TestDecode_UnknownType(t *testing.T) {
	data, err := msgpack.Marshal(map[string]any{
		"type":    "telepathy",
		"payload": map[string]any{},
	})
	require.NoError(t, err)

	_, err = Decode(data, 0)
	require.Error(t, err)
	assert.Equal(t, KindUnknownType, DecodeKind(err))
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string][]byte{
		"garbage":      {0xDE, 0xAD, 0xBE, 0xEF},
		"not a map":    mustMarshal(t, []int{1, 2, 3}),
		"missing type": mustMarshal(t, map[string]any{"payload": map[string]any{}}),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data, 0)
			require.Error(t, err)
			assert.Equal(t, KindMalformed, DecodeKind(err))
		})
	}
}

func TestDecode_TooLarge(t *testing.T) {
	big := NewAudioEnvelope(AudioPayload{
		ParticipantID: "p-1",
		AudioData:     make([]byte, DefaultMaxBytes+1),
	})
	data, err := Encode(big)
	require.NoError(t, err)

	_, err = Decode(data, DefaultMaxBytes)
	require.Error(t, err)
	assert.Equal(t, KindTooLarge, DecodeKind(err))
}

func TestDecode_CustomLimit(t *testing.T) {
	data, err := Encode(NewSystemEnvelope("hello"))
	require.NoError(t, err)

	_, err = Decode(data, len(data))
	assert.NoError(t, err)

	_, err = Decode(data, len(data)-1)
	assert.Equal(t, KindTooLarge, DecodeKind(err))
}

func TestDecodeKind_NonDecodeError(t *testing.T) {
	assert.Equal(t, DecodeErrorKind(""), DecodeKind(assert.AnError))
	assert.Equal(t, DecodeErrorKind(""), DecodeKind(nil))
}

func TestAudio_WrongShape(t *testing.T) {
	_, ok := NewSystemEnvelope("x").Audio()
	assert.False(t, ok)

	e := Envelope{Type: TypeAudioStream, Payload: map[string]any{"audio_data": 42}}
	_, ok = e.Audio()
	assert.False(t, ok)
}

func TestAudio_TimestampShapes(t *testing.T) {
	// Interop: the timestamp may arrive as any integer shape depending on the
	// sending client's encoder.
	for _, v := range []any{int64(99), uint64(99), int(99), int8(99), uint16(99), float64(99)} {
		e := Envelope{Type: TypeAudioStream, Payload: map[string]any{
			"audio_data": []byte{1},
			"timestamp":  v,
		}}
		p, ok := e.Audio()
		require.True(t, ok)
		assert.Equal(t, uint64(99), p.TimestampMs)
	}
}

func TestNewErrorEnvelope(t *testing.T) {
	e := NewErrorEnvelope("boom")
	assert.Equal(t, TypeError, e.Type)
	assert.Equal(t, "boom", e.SystemMessage())
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := msgpack.Marshal(v)
	require.NoError(t, err)
	return data
}
