package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the voice room server.
//
// Naming convention: namespace_subsystem_name
// - namespace: voice_room (application-level grouping)
// - subsystem: websocket, room, agent, pipeline (feature-level grouping)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, participants, agent tasks)
// - Counter: Cumulative events (frames broadcast, drops, failures)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "voice_room",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of active rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "voice_room",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomParticipants tracks the number of participants in each room.
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "voice_room",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of participants in each room",
	}, []string{"room_id"})

	// AudioFramesBroadcast counts audio envelopes fanned out per room.
	AudioFramesBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voice_room",
		Subsystem: "room",
		Name:      "audio_frames_broadcast_total",
		Help:      "Total audio envelopes fanned out to room members",
	}, []string{"room_id"})

	// DeliveryFailures counts failed per-recipient deliveries.
	DeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voice_room",
		Subsystem: "room",
		Name:      "delivery_failures_total",
		Help:      "Total failed deliveries to individual participants",
	}, []string{"room_id"})

	// DecodeErrors counts envelope decode failures by kind.
	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voice_room",
		Subsystem: "websocket",
		Name:      "decode_errors_total",
		Help:      "Total envelope decode failures",
	}, []string{"kind"})

	// ActiveAgentTasks tracks the current number of running agent loops.
	ActiveAgentTasks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "voice_room",
		Subsystem: "agent",
		Name:      "tasks_active",
		Help:      "Current number of running agent loops",
	})

	// AgentQueueDrops counts frames dropped because an agent input queue was full.
	AgentQueueDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voice_room",
		Subsystem: "agent",
		Name:      "queue_drops_total",
		Help:      "Total frames dropped on full agent input queues",
	}, []string{"agent_id"})

	// PipelineFatals counts agent pipelines torn down on error or stall.
	PipelineFatals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voice_room",
		Subsystem: "pipeline",
		Name:      "fatals_total",
		Help:      "Total agent pipelines torn down on error or stall",
	}, []string{"reason"})

	// CircuitBreakerState tracks the current state of a circuit breaker
	// (0: Closed, 1: Open, 2: Half-Open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "voice_room",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks requests rejected by a circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voice_room",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
