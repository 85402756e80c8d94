package room

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/internal/v1/logging"
	"github.com/voxhall/voxhall/internal/v1/metrics"
	"github.com/voxhall/voxhall/internal/v1/pipeline"
	"github.com/voxhall/voxhall/internal/v1/protocol"
	"github.com/voxhall/voxhall/internal/v1/types"
)

// maxDeliveryFailures is the eviction threshold for consecutive per-recipient
// delivery failures.
const maxDeliveryFailures = 3

// Options tune the manager's agent plumbing. Zero values take defaults.
type Options struct {
	// AgentQueueDepth bounds each agent's inbound frame queue.
	AgentQueueDepth int
	// PipelineStallTimeout tears down an agent whose pipeline stops yielding
	// after input.
	PipelineStallTimeout time.Duration
	// MaxEnvelopeBytes bounds envelopes the agent source task re-decodes.
	MaxEnvelopeBytes int
	// JitterBufferMs sizes the reorder buffer on the agent input path.
	JitterBufferMs uint
	// FrameDurationMs is the nominal frame duration used by the jitter buffer.
	FrameDurationMs uint
}

func (o Options) withDefaults() Options {
	if o.AgentQueueDepth <= 0 {
		o.AgentQueueDepth = 128
	}
	if o.PipelineStallTimeout <= 0 {
		o.PipelineStallTimeout = 30 * time.Second
	}
	if o.MaxEnvelopeBytes <= 0 {
		o.MaxEnvelopeBytes = protocol.DefaultMaxBytes
	}
	if o.JitterBufferMs == 0 {
		o.JitterBufferMs = 60
	}
	if o.FrameDurationMs == 0 {
		o.FrameDurationMs = 20
	}
	return o
}

// agentTask is the handle for a running agent loop.
type agentTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager serves as the central coordinator for all voice rooms in the
// system. It owns the room registry, the live agent tasks, and the fan-out
// discipline.
type Manager struct {
	mu       sync.Mutex
	rooms    map[types.RoomIDType]*Room
	agents   map[types.ParticipantIDType]*agentTask
	failures map[types.ParticipantIDType]int

	registry *pipeline.Registry
	recorder types.Recorder
	presence types.PresenceService
	opts     Options
}

// NewManager creates a Manager. recorder and presence may be nil.
func NewManager(registry *pipeline.Registry, recorder types.Recorder, presence types.PresenceService, opts Options) *Manager {
	return &Manager{
		rooms:    make(map[types.RoomIDType]*Room),
		agents:   make(map[types.ParticipantIDType]*agentTask),
		failures: make(map[types.ParticipantIDType]int),
		registry: registry,
		recorder: recorder,
		presence: presence,
		opts:     opts.withDefaults(),
	}
}

// getOrCreateRoomLocked returns the room, creating it on first join.
// Caller must hold m.mu.
func (m *Manager) getOrCreateRoomLocked(ctx context.Context, roomID types.RoomIDType) *Room {
	if r, ok := m.rooms[roomID]; ok {
		return r
	}
	logging.Info(ctx, "Creating new room", zap.String("room_id", string(roomID)))
	r := NewRoom(roomID)
	m.rooms[roomID] = r
	metrics.ActiveRooms.Inc()
	return r
}

// GetRoom returns the room with the given id.
func (m *Manager) GetRoom(roomID types.RoomIDType) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

// RoomCount returns the number of live rooms.
func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// AgentTaskCount returns the number of live agent loops.
func (m *Manager) AgentTaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.agents)
}

// agentNameForRoom derives the auto-attached agent from the room id.
func agentNameForRoom(roomID types.RoomIDType) string {
	if strings.Contains(string(roomID), "mock") {
		return "mock-conversation"
	}
	return "echo"
}

// Join creates the room if absent, adds the participant, and announces the
// join to the other members. A repeat join with the same id closes the old
// entry first. When the first human joins an "ai-" room, exactly one agent
// is attached; the rule is decided while holding the manager lock and the
// agent task is created after releasing it.
func (m *Manager) Join(ctx context.Context, roomID types.RoomIDType, p types.Participant) {
	ctx = logging.WithRoom(ctx, string(roomID))

	m.mu.Lock()
	r, exists := m.rooms[roomID]
	if !exists {
		if p.IsAgent() {
			// Agents never create rooms: the room was destroyed between the
			// attach decision and the join.
			m.mu.Unlock()
			p.Close()
			return
		}
		r = m.getOrCreateRoomLocked(ctx, roomID)
	}
	_, prior := r.Add(p)
	if prior != nil {
		// Stale duplicate: its failure streak dies with it.
		delete(m.failures, p.GetID())
	}

	var priorTask *agentTask
	if prior != nil && prior.IsAgent() {
		priorTask = m.detachAgentLocked(prior.GetID())
	}

	spawnAgent := roomID.HasAgentPrefix() && !p.IsAgent() && prior == nil && r.HumanCount() == 1
	m.mu.Unlock()

	if prior != nil {
		logging.Info(ctx, "Duplicate join, closing prior participant",
			zap.String("participant_id", string(p.GetID())))
		prior.Close()
	}
	if priorTask != nil {
		priorTask.cancel()
	}

	metrics.RoomParticipants.WithLabelValues(string(roomID)).Set(float64(r.Len()))
	logging.Info(ctx, "Participant joined",
		zap.String("participant_id", string(p.GetID())),
		zap.String("display_name", string(p.GetDisplayName())))

	if m.presence != nil {
		if err := m.presence.SetAdd(ctx, presenceKey(roomID), string(p.GetID())); err != nil {
			logging.Warn(ctx, "Presence SetAdd failed", zap.Error(err))
		}
	}

	m.BroadcastControl(ctx, roomID,
		protocol.NewSystemEnvelope(fmt.Sprintf("%s has joined the room", p.GetDisplayName())),
		p.GetID())

	if spawnAgent {
		name := agentNameForRoom(roomID)
		go func() {
			if _, err := m.AddAgent(context.Background(), roomID, name); err != nil {
				logging.Error(ctx, "Auto-agent attach failed",
					zap.String("agent_name", name), zap.Error(err))
			}
		}()
	}
}

// Leave removes the participant, cancels its agent task if it was an agent,
// announces the departure, and garbage-collects the room once no humans
// remain (cancelling every remaining agent task).
func (m *Manager) Leave(ctx context.Context, roomID types.RoomIDType, participantID types.ParticipantIDType) {
	ctx = logging.WithRoom(ctx, string(roomID))

	m.mu.Lock()
	r, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return
	}

	removed, existed := r.Remove(participantID)
	if !existed {
		m.mu.Unlock()
		return
	}
	delete(m.failures, participantID)

	var cancelled []*agentTask
	if removed.IsAgent() {
		if t := m.detachAgentLocked(participantID); t != nil {
			cancelled = append(cancelled, t)
		}
	}

	var orphans []types.Participant
	destroyed := false
	if r.IsEmptyOfHumans() {
		for _, agentID := range r.AgentIDs() {
			if t := m.detachAgentLocked(agentID); t != nil {
				cancelled = append(cancelled, t)
			}
			if p, ok := r.Remove(agentID); ok {
				orphans = append(orphans, p)
				delete(m.failures, agentID)
			}
		}
		delete(m.rooms, roomID)
		destroyed = true
	}
	m.mu.Unlock()

	for _, t := range cancelled {
		t.cancel()
	}
	removed.Close()
	for _, p := range orphans {
		p.Close()
	}

	logging.Info(ctx, "Participant left",
		zap.String("participant_id", string(participantID)))

	if m.recorder != nil {
		if err := m.recorder.CloseSession(string(roomID), string(participantID)); err != nil {
			logging.Warn(ctx, "Recorder close failed", zap.Error(err))
		}
	}
	if m.presence != nil {
		if err := m.presence.SetRem(ctx, presenceKey(roomID), string(participantID)); err != nil {
			logging.Warn(ctx, "Presence SetRem failed", zap.Error(err))
		}
		for _, p := range orphans {
			_ = m.presence.SetRem(ctx, presenceKey(roomID), string(p.GetID()))
		}
	}

	if destroyed {
		metrics.ActiveRooms.Dec()
		metrics.RoomParticipants.DeleteLabelValues(string(roomID))
		logging.Info(ctx, "Room destroyed", zap.Int("cancelled_agents", len(cancelled)))
		return
	}

	metrics.RoomParticipants.WithLabelValues(string(roomID)).Set(float64(r.Len()))
	m.BroadcastControl(ctx, roomID,
		protocol.NewSystemEnvelope(fmt.Sprintf("%s has left", removed.GetDisplayName())), "")
}

// BroadcastAudio fans an encoded audio envelope out to every participant in
// the room except the sender. A single failed delivery never blocks the
// others; the frame is also handed to the recorder, best-effort.
func (m *Manager) BroadcastAudio(ctx context.Context, roomID types.RoomIDType, senderID types.ParticipantIDType, data []byte) {
	m.mu.Lock()
	r, ok := m.rooms[roomID]
	m.mu.Unlock()
	if !ok {
		return
	}

	if m.recorder != nil {
		go func() {
			if err := m.recorder.LogAudio(ctx, string(roomID), string(senderID), data); err != nil {
				logging.Warn(ctx, "Recorder write failed",
					zap.String("room_id", string(roomID)),
					zap.String("participant_id", string(senderID)),
					zap.Error(err))
			}
		}()
	}

	metrics.AudioFramesBroadcast.WithLabelValues(string(roomID)).Inc()

	// Deliveries are non-blocking enqueues invoked in call order so the
	// per-sender/per-receiver FIFO holds; the write pumps drain concurrently.
	snapshot, _ := r.Snapshot()
	var evict []types.ParticipantIDType
	for _, p := range snapshot {
		if p.GetID() == senderID {
			continue
		}
		if err := p.DeliverAudio(data); err != nil {
			if m.recordFailure(ctx, roomID, p, err) {
				evict = append(evict, p.GetID())
			}
		} else {
			m.clearFailures(p.GetID())
		}
	}
	m.evictAsync(ctx, roomID, evict)
}

// BroadcastControl fans a control envelope out with the same discipline as
// BroadcastAudio. excludeID may be empty to reach everyone.
func (m *Manager) BroadcastControl(ctx context.Context, roomID types.RoomIDType, env protocol.Envelope, excludeID types.ParticipantIDType) {
	m.mu.Lock()
	r, ok := m.rooms[roomID]
	m.mu.Unlock()
	if !ok {
		return
	}

	snapshot, _ := r.Snapshot()
	var evict []types.ParticipantIDType
	for _, p := range snapshot {
		if excludeID != "" && p.GetID() == excludeID {
			continue
		}
		if err := p.DeliverControl(env); err != nil {
			if m.recordFailure(ctx, roomID, p, err) {
				evict = append(evict, p.GetID())
			}
		} else {
			m.clearFailures(p.GetID())
		}
	}
	m.evictAsync(ctx, roomID, evict)
}

// AddAgent allocates an agent participant, joins it to the room, and spawns
// its loop. Returns the new participant id. A failure after the join rolls
// the partial join back.
func (m *Manager) AddAgent(ctx context.Context, roomID types.RoomIDType, agentName string) (types.ParticipantIDType, error) {
	ctx = logging.WithRoom(ctx, string(roomID))

	agent, err := m.registry.Get(agentName)
	if err != nil {
		return "", fmt.Errorf("add agent %q: %w", agentName, err)
	}

	agentID := types.ParticipantIDType("agent-" + uuid.NewString()[:6])
	displayName := types.DisplayNameType("AI-" + agentName)
	vp := newVirtualParticipant(agentID, displayName, m.opts.AgentQueueDepth)

	m.Join(ctx, roomID, vp)

	loopCtx, cancel := context.WithCancel(context.Background())
	task := &agentTask{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if _, stillThere := m.rooms[roomID]; !stillThere {
		// The room vanished between join and spawn; roll back.
		m.mu.Unlock()
		cancel()
		vp.Close()
		return "", fmt.Errorf("add agent %q: room %s is gone", agentName, roomID)
	}
	m.agents[agentID] = task
	m.mu.Unlock()

	go m.runAgentLoop(loopCtx, roomID, vp, agent, task)

	logging.Info(ctx, "Agent attached",
		zap.String("participant_id", string(agentID)),
		zap.String("agent_name", agentName))
	return agentID, nil
}

// Shutdown cancels every agent task and closes every participant.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	var tasks []*agentTask
	for id, t := range m.agents {
		tasks = append(tasks, t)
		delete(m.agents, id)
	}
	var all []types.Participant
	for id, r := range m.rooms {
		snapshot, _ := r.Snapshot()
		all = append(all, snapshot...)
		delete(m.rooms, id)
		metrics.ActiveRooms.Dec()
		metrics.RoomParticipants.DeleteLabelValues(string(id))
	}
	m.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, p := range all {
		p.Close()
	}
	for _, t := range tasks {
		select {
		case <-t.done:
		case <-ctx.Done():
			return
		}
	}
	logging.Info(ctx, "Manager shut down", zap.Int("participants_closed", len(all)))
}

// detachAgentLocked removes the task handle without cancelling it; the
// caller cancels after releasing m.mu. Caller must hold m.mu.
func (m *Manager) detachAgentLocked(id types.ParticipantIDType) *agentTask {
	t, ok := m.agents[id]
	if !ok {
		return nil
	}
	delete(m.agents, id)
	return t
}

// recordFailure bumps the participant's consecutive-failure streak and
// reports whether it crossed the eviction threshold.
func (m *Manager) recordFailure(ctx context.Context, roomID types.RoomIDType, p types.Participant, err error) bool {
	metrics.DeliveryFailures.WithLabelValues(string(roomID)).Inc()
	logging.Warn(ctx, "Delivery failed",
		zap.String("room_id", string(roomID)),
		zap.String("participant_id", string(p.GetID())),
		zap.Error(err))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[p.GetID()]++
	return m.failures[p.GetID()] >= maxDeliveryFailures
}

func (m *Manager) clearFailures(id types.ParticipantIDType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, id)
}

// evictAsync kicks unhealthy participants out without blocking the fan-out
// caller.
func (m *Manager) evictAsync(ctx context.Context, roomID types.RoomIDType, ids []types.ParticipantIDType) {
	for _, id := range ids {
		logging.Warn(ctx, "Evicting participant after repeated delivery failures",
			zap.String("room_id", string(roomID)),
			zap.String("participant_id", string(id)))
		go m.Leave(context.Background(), roomID, id)
	}
}

func presenceKey(roomID types.RoomIDType) string {
	return "room:" + string(roomID) + ":participants"
}
