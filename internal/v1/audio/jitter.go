package audio

import "sort"

// JitterBuffer keeps frames in timestamp order with a bounded depth. It is a
// library: the broadcast path is timestamp-agnostic, but pipeline inputs that
// are sensitive to order route through it.
//
// JitterBuffer is not safe for concurrent use; each inbound stream owns one.
type JitterBuffer struct {
	bufferMs        uint
	frameDurationMs uint
	frames          []Frame
	lastPopped      uint64
	popped          bool
}

// NewJitterBuffer returns a buffer holding at most
// bufferMs/frameDurationMs x 2 frames, allowing some burst.
func NewJitterBuffer(bufferMs, frameDurationMs uint) *JitterBuffer {
	if frameDurationMs == 0 {
		frameDurationMs = DefaultFrameDurationMs
	}
	return &JitterBuffer{
		bufferMs:        bufferMs,
		frameDurationMs: frameDurationMs,
	}
}

// MaxDepth returns the bounded depth of the buffer.
func (j *JitterBuffer) MaxDepth() int {
	return int(j.bufferMs*2) / int(j.frameDurationMs)
}

// Push inserts a frame in timestamp order. Frames older than the last popped
// timestamp are dropped; when the depth bound is exceeded the oldest frame is
// evicted.
func (j *JitterBuffer) Push(f Frame) {
	if j.popped && f.TimestampMs < j.lastPopped {
		return
	}

	j.frames = append(j.frames, f)
	sort.SliceStable(j.frames, func(a, b int) bool {
		return j.frames[a].TimestampMs < j.frames[b].TimestampMs
	})

	if max := j.MaxDepth(); max > 0 && len(j.frames) > max {
		j.frames = j.frames[1:]
	}
}

// Pop returns the lowest-timestamp frame, or false when the buffer is empty.
func (j *JitterBuffer) Pop() (Frame, bool) {
	if len(j.frames) == 0 {
		return Frame{}, false
	}
	f := j.frames[0]
	j.frames = j.frames[1:]
	j.lastPopped = f.TimestampMs
	j.popped = true
	return f, true
}

// Len returns the number of buffered frames.
func (j *JitterBuffer) Len() int {
	return len(j.frames)
}
