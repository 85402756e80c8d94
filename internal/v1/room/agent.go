package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/voxhall/voxhall/internal/v1/audio"
	"github.com/voxhall/voxhall/internal/v1/logging"
	"github.com/voxhall/voxhall/internal/v1/metrics"
	"github.com/voxhall/voxhall/internal/v1/pipeline"
	"github.com/voxhall/voxhall/internal/v1/protocol"
	"github.com/voxhall/voxhall/internal/v1/types"
)

// virtualParticipant is the in-room handle of an agent: delivery enqueues
// onto a bounded queue instead of writing a socket. It implements
// types.Participant.
type virtualParticipant struct {
	id   types.ParticipantIDType
	name types.DisplayNameType

	queue     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newVirtualParticipant(id types.ParticipantIDType, name types.DisplayNameType, queueDepth int) *virtualParticipant {
	return &virtualParticipant{
		id:     id,
		name:   name,
		queue:  make(chan []byte, queueDepth),
		closed: make(chan struct{}),
	}
}

var _ types.Participant = (*virtualParticipant)(nil)

func (v *virtualParticipant) GetID() types.ParticipantIDType        { return v.id }
func (v *virtualParticipant) GetDisplayName() types.DisplayNameType { return v.name }
func (v *virtualParticipant) IsAgent() bool                         { return true }

// DeliverAudio enqueues the encoded envelope for the agent loop. When the
// queue is full the frame is dropped and counted; the fan-out never blocks
// on a slow agent.
func (v *virtualParticipant) DeliverAudio(data []byte) error {
	select {
	case <-v.closed:
		return nil // delivery after close is a no-op
	default:
	}

	select {
	case v.queue <- data:
		return nil
	case <-v.closed:
		return nil
	default:
		metrics.AgentQueueDrops.WithLabelValues(string(v.id)).Inc()
		return nil
	}
}

// DeliverControl discards control traffic; agents only consume audio.
func (v *virtualParticipant) DeliverControl(protocol.Envelope) error {
	return nil
}

// Close ends the input stream. Pending queued frames are discarded.
func (v *virtualParticipant) Close() {
	v.closeOnce.Do(func() {
		close(v.closed)
	})
}

// runAgentLoop bridges room fan-out and the agent pipeline with two
// cooperative tasks: the source drains the input queue, re-decodes the
// broadcast envelopes, reorders frames through a jitter buffer, and feeds
// the pipeline; the sink wraps pipeline output in audio_stream envelopes and
// publishes them back under the agent's id. A pipeline that stops yielding
// after input for longer than the stall timeout is treated as fatal.
func (m *Manager) runAgentLoop(ctx context.Context, roomID types.RoomIDType, vp *virtualParticipant, agent pipeline.Agent, task *agentTask) {
	defer close(task.done)

	metrics.ActiveAgentTasks.Inc()
	defer metrics.ActiveAgentTasks.Dec()

	lctx := logging.WithParticipant(logging.WithRoom(ctx, string(roomID)), string(vp.id))
	logging.Info(lctx, "Starting agent loop", zap.String("display_name", string(vp.name)))

	err := m.driveAgent(ctx, roomID, vp, agent)

	switch {
	case err == nil || errors.Is(err, context.Canceled):
		logging.Info(lctx, "Agent loop finished")
	default:
		metrics.PipelineFatals.WithLabelValues(fatalReason(err)).Inc()
		logging.Error(lctx, "Agent loop crashed", zap.Error(err))
	}

	// Always detach from the room, whatever the exit path.
	m.Leave(context.Background(), roomID, vp.id)
}

var errPipelineStall = errors.New("pipeline stalled: no output after input within timeout")

func fatalReason(err error) string {
	if errors.Is(err, errPipelineStall) {
		return "stall"
	}
	return "error"
}

func (m *Manager) driveAgent(ctx context.Context, roomID types.RoomIDType, vp *virtualParticipant, agent pipeline.Agent) error {
	pipeIn := make(chan audio.Frame, 16)

	out, err := agent.ProcessAudioStream(ctx, pipeIn)
	if err != nil {
		close(pipeIn)
		return fmt.Errorf("start pipeline: %w", err)
	}

	// lastInput/lastOutput drive the stall watchdog.
	var lastInput, lastOutput atomic.Int64

	g, gctx := errgroup.WithContext(ctx)

	// Source task: queue -> decode -> jitter buffer -> pipeline input.
	g.Go(func() error {
		defer close(pipeIn)

		jb := audio.NewJitterBuffer(m.opts.JitterBufferMs, m.opts.FrameDurationMs)
		feed := func(f audio.Frame) bool {
			jb.Push(f)
			for {
				next, ok := jb.Pop()
				if !ok {
					return true
				}
				select {
				case pipeIn <- next:
					lastInput.Store(time.Now().UnixNano())
				case <-gctx.Done():
					return false
				}
			}
		}

		for {
			select {
			case data := <-vp.queue:
				env, err := protocol.Decode(data, m.opts.MaxEnvelopeBytes)
				if err != nil {
					logging.Debug(gctx, "Agent source dropped undecodable envelope",
						zap.String("participant_id", string(vp.id)), zap.Error(err))
					continue
				}
				p, ok := env.Audio()
				if !ok {
					// Non-audio envelopes are discarded.
					continue
				}
				if !feed(audio.Frame{Data: p.AudioData, TimestampMs: p.TimestampMs, DurationMs: audio.DefaultFrameDurationMs}) {
					return gctx.Err()
				}
			case <-vp.closed:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	// Sink task: pipeline output -> envelope -> room broadcast. sinkDone also
	// releases the watchdog once the pipeline has fully drained.
	sinkDone := make(chan struct{})
	g.Go(func() error {
		defer close(sinkDone)
		for {
			select {
			case f, ok := <-out:
				if !ok {
					return nil
				}
				lastOutput.Store(time.Now().UnixNano())
				env := protocol.NewAudioEnvelope(protocol.AudioPayload{
					ParticipantID: string(vp.id),
					AudioData:     f.Data,
					TimestampMs:   f.TimestampMs,
				})
				data, err := protocol.Encode(env)
				if err != nil {
					return fmt.Errorf("encode agent frame: %w", err)
				}
				m.BroadcastAudio(gctx, roomID, vp.id, data)
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	// Watchdog: fatal when input arrived but the pipeline yielded nothing
	// for the whole stall window.
	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-sinkDone:
				return nil
			case <-ticker.C:
				in := lastInput.Load()
				if in == 0 {
					continue
				}
				if lastOutput.Load() >= in {
					continue
				}
				if time.Since(time.Unix(0, in)) > m.opts.PipelineStallTimeout {
					return errPipelineStall
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}
