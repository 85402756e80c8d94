// Package audio defines the audio frame value and small helpers shared by the
// room fabric, the agent pipelines, and the jitter buffer.
package audio

// Default frame parameters: 16 kHz mono s16le, 20 ms per frame.
const (
	DefaultSampleRate      = 16000
	DefaultFrameDurationMs = 20
	BytesPerSample         = 2
)

// Frame is one atomic audio payload. Data is opaque to the core; the codec is
// the client's concern.
type Frame struct {
	Data        []byte
	TimestampMs uint64
	DurationMs  uint16
}

// FrameBytes returns the size in bytes of one PCM frame for the given sample
// rate and frame duration (16-bit mono).
func FrameBytes(sampleRate, frameDurationMs uint) int {
	return int(sampleRate) * int(frameDurationMs) / 1000 * BytesPerSample
}

// ChunkPCM splits a PCM buffer into frames of frameBytes each, stamping them
// with consecutive timestamps starting at startMs. A non-empty remainder
// shorter than frameBytes is emitted as a final short frame.
func ChunkPCM(pcm []byte, frameBytes int, startMs uint64, durationMs uint16) []Frame {
	if frameBytes <= 0 || len(pcm) == 0 {
		return nil
	}
	frames := make([]Frame, 0, (len(pcm)+frameBytes-1)/frameBytes)
	ts := startMs
	for off := 0; off < len(pcm); off += frameBytes {
		end := off + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := make([]byte, end-off)
		copy(chunk, pcm[off:end])
		frames = append(frames, Frame{Data: chunk, TimestampMs: ts, DurationMs: durationMs})
		ts += uint64(durationMs)
	}
	return frames
}
