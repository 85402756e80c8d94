package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/internal/v1/logging"
	"github.com/voxhall/voxhall/internal/v1/metrics"
	"github.com/voxhall/voxhall/internal/v1/protocol"
	"github.com/voxhall/voxhall/internal/v1/room"
	"github.com/voxhall/voxhall/internal/v1/types"
)

// wsConnection defines the interface for WebSocket connection operations.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error) // Read the next message from the connection
	WriteMessage(messageType int, data []byte) error     // Write a message to the connection
	Close() error                                        // Close the connection
	SetWriteDeadline(t time.Time) error
}

var (
	errClientClosed   = errors.New("client closed")
	errSendBufferFull = errors.New("send buffer full")
)

// Client represents a single human's connection to a voice room. It
// implements types.Participant; delivery enqueues onto one shared send
// channel so control and audio envelopes keep their relative order per
// receiver.
type Client struct {
	conn    wsConnection
	manager *room.Manager

	roomID      types.RoomIDType
	ID          types.ParticipantIDType
	DisplayName types.DisplayNameType

	maxEnvelopeBytes int

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// newClient wires a connection to the room fabric.
func newClient(conn wsConnection, manager *room.Manager, roomID types.RoomIDType, id types.ParticipantIDType, name types.DisplayNameType, maxEnvelopeBytes int) *Client {
	return &Client{
		conn:             conn,
		manager:          manager,
		roomID:           roomID,
		ID:               id,
		DisplayName:      name,
		maxEnvelopeBytes: maxEnvelopeBytes,
		send:             make(chan []byte, 256),
		closed:           make(chan struct{}),
	}
}

var _ types.Participant = (*Client)(nil)

func (c *Client) GetID() types.ParticipantIDType        { return c.ID }
func (c *Client) GetDisplayName() types.DisplayNameType { return c.DisplayName }
func (c *Client) IsAgent() bool                         { return false }

// DeliverAudio hands the already-encoded envelope to the write pump. It
// never blocks; a full buffer is a delivery failure and counts toward
// eviction.
func (c *Client) DeliverAudio(data []byte) error {
	return c.enqueue(data)
}

// DeliverControl encodes the envelope and hands it to the write pump.
func (c *Client) DeliverControl(env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) error {
	select {
	case <-c.closed:
		return errClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.closed:
		return errClientClosed
	default:
		return errSendBufferFull
	}
}

// Close tears the socket down. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// readPump continuously processes incoming WebSocket messages. On exit —
// clean close, socket error, leave_room, or panic — the participant always
// leaves the room.
func (c *Client) readPump() {
	ctx := logging.WithParticipant(logging.WithRoom(context.Background(), string(c.roomID)), string(c.ID))

	defer func() {
		if r := recover(); r != nil {
			logging.Error(ctx, "Recovered from panic in read loop", zap.Any("panic", r))
		}
		c.manager.Leave(context.Background(), c.roomID, c.ID)
		c.Close()
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			// Text frames are reserved.
			continue
		}

		env, err := protocol.Decode(data, c.maxEnvelopeBytes)
		if err != nil {
			kind := protocol.DecodeKind(err)
			metrics.DecodeErrors.WithLabelValues(string(kind)).Inc()
			if kind == protocol.KindTooLarge {
				logging.Warn(ctx, "Oversized envelope, closing connection", zap.Error(err))
				return
			}
			// Bad envelope: drop the frame, keep the socket.
			logging.Warn(ctx, "Dropping undecodable envelope", zap.Error(err))
			continue
		}

		switch env.Type {
		case protocol.TypeAudioStream:
			// Frames already tagged with this sender's id are forwarded
			// verbatim; any other participant_id is replaced with the
			// sender's id and the envelope re-encoded.
			if p, ok := env.Audio(); ok && p.ParticipantID != string(c.ID) {
				p.ParticipantID = string(c.ID)
				if retagged, err := protocol.Encode(protocol.NewAudioEnvelope(p)); err == nil {
					data = retagged
				}
			}
			c.manager.BroadcastAudio(ctx, c.roomID, c.ID, data)
		case protocol.TypeLeaveRoom:
			return
		default:
			logging.Debug(ctx, "Received control envelope", zap.String("type", string(env.Type)))
		}
	}
}

// writePump drains the send channel onto the socket.
func (c *Client) writePump() {
	defer c.Close()
	writeWait := 10 * time.Second

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				logging.Warn(context.Background(), "Error writing message",
					zap.String("participant_id", string(c.ID)), zap.Error(err))
				return
			}
		case <-c.closed:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
