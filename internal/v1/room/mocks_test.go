package room

import (
	"context"
	"errors"
	"sync"

	"github.com/voxhall/voxhall/internal/v1/protocol"
	"github.com/voxhall/voxhall/internal/v1/types"
)

// mockParticipant implements types.Participant for testing.
type mockParticipant struct {
	id    types.ParticipantIDType
	name  types.DisplayNameType
	agent bool

	mu        sync.Mutex
	audio     [][]byte
	control   []protocol.Envelope
	closed    bool
	failAudio bool
}

func newMockParticipant(id, name string) *mockParticipant {
	return &mockParticipant{
		id:   types.ParticipantIDType(id),
		name: types.DisplayNameType(name),
	}
}

func (m *mockParticipant) GetID() types.ParticipantIDType        { return m.id }
func (m *mockParticipant) GetDisplayName() types.DisplayNameType { return m.name }
func (m *mockParticipant) IsAgent() bool                         { return m.agent }

func (m *mockParticipant) DeliverAudio(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAudio {
		return errors.New("mock delivery failure")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.audio = append(m.audio, buf)
	return nil
}

func (m *mockParticipant) DeliverControl(env protocol.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAudio {
		return errors.New("mock delivery failure")
	}
	m.control = append(m.control, env)
	return nil
}

func (m *mockParticipant) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockParticipant) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockParticipant) setFailing(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAudio = fail
}

func (m *mockParticipant) audioFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.audio))
	copy(out, m.audio)
	return out
}

func (m *mockParticipant) controlEnvelopes() []protocol.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.Envelope, len(m.control))
	copy(out, m.control)
	return out
}

// mockRecorder implements types.Recorder for testing.
type mockRecorder struct {
	mu     sync.Mutex
	writes map[string][][]byte
	closes []string
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{writes: make(map[string][][]byte)}
}

func (m *mockRecorder) LogAudio(ctx context.Context, roomID, senderID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roomID + "_" + senderID
	buf := make([]byte, len(data))
	copy(buf, data)
	m.writes[key] = append(m.writes[key], buf)
	return nil
}

func (m *mockRecorder) CloseSession(roomID, senderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes = append(m.closes, roomID+"_"+senderID)
	return nil
}

func (m *mockRecorder) writeCount(roomID, senderID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes[roomID+"_"+senderID])
}

// mockPresence implements types.PresenceService for testing.
type mockPresence struct {
	mu      sync.Mutex
	members map[string]map[string]struct{}
}

func newMockPresence() *mockPresence {
	return &mockPresence{members: make(map[string]map[string]struct{})}
}

func (m *mockPresence) SetAdd(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[key] == nil {
		m.members[key] = make(map[string]struct{})
	}
	m.members[key][value] = struct{}{}
	return nil
}

func (m *mockPresence) SetRem(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members[key], value)
	return nil
}

func (m *mockPresence) SetMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for v := range m.members[key] {
		out = append(out, v)
	}
	return out, nil
}

func (m *mockPresence) Close() error { return nil }
