// Package types defines shared types and interfaces for the application.
package types

import (
	"context"

	"github.com/voxhall/voxhall/internal/v1/protocol"
)

// --- Core Domain Types ---

// ParticipantIDType represents a unique identifier for a participant. It is
// opaque, process-unique, and stable for the lifetime of the connection.
type ParticipantIDType string

// RoomIDType represents a client-supplied room identifier.
type RoomIDType string

// DisplayNameType represents the human-readable name for a participant.
type DisplayNameType string

// AgentRoomPrefix marks rooms that get an agent attached automatically when
// the first human joins.
const AgentRoomPrefix = "ai-"

// HasAgentPrefix reports whether the room id triggers automatic agent
// attachment.
func (r RoomIDType) HasAgentPrefix() bool {
	return len(r) >= len(AgentRoomPrefix) && string(r[:len(AgentRoomPrefix)]) == AgentRoomPrefix
}

// --- Shared Interfaces ---

// Participant is the capability set shared by the two endpoint variants:
// socket-backed humans and queue-backed agents.
//
// DeliverAudio and DeliverControl must not block the caller's fan-out loop;
// implementations either hand off to a pump goroutine or drop. Close releases
// the underlying resource (socket vs queue) and is idempotent.
type Participant interface {
	GetID() ParticipantIDType
	GetDisplayName() DisplayNameType
	// DeliverAudio hands an already-encoded audio_stream envelope to the
	// participant. The fan-out path stays codec-agnostic: agents re-decode,
	// humans forward the bytes verbatim.
	DeliverAudio(data []byte) error
	// DeliverControl hands a control envelope to the participant.
	DeliverControl(env protocol.Envelope) error
	// IsAgent reports whether this participant is a synthetic one.
	IsAgent() bool
	Close()
}

// Recorder is the external on-disk audio logger. Best-effort: the core logs
// and ignores its errors, and holds no locks while calling it.
type Recorder interface {
	LogAudio(ctx context.Context, roomID string, senderID string, data []byte) error
	CloseSession(roomID string, senderID string) error
}

// PresenceService mirrors room membership into an external store. Optional;
// a nil service disables mirroring.
type PresenceService interface {
	SetAdd(ctx context.Context, key string, value string) error
	SetRem(ctx context.Context, key string, value string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
	Close() error
}
