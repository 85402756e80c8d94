// Package recording persists per-stream audio to disk.
//
// Files are opened lazily on the first frame of a (room, sender) stream and
// appended to thereafter: recordings/{roomId}_{participantId}.pcm, raw
// little-endian signed 16-bit PCM, no header. All operations are best-effort;
// the room fabric logs and ignores recorder errors.
package recording

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/voxhall/voxhall/internal/v1/logging"
)

// Logger records every broadcast audio stream to its own file. It owns its
// locks; callers hold none while invoking it.
type Logger struct {
	storagePath string

	mu    sync.Mutex
	files map[string]*os.File
}

// NewLogger creates the storage directory if needed and returns a ready
// Logger.
func NewLogger(storagePath string) (*Logger, error) {
	if storagePath == "" {
		storagePath = "recordings"
	}
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return nil, fmt.Errorf("recording: create storage dir: %w", err)
	}
	return &Logger{
		storagePath: storagePath,
		files:       make(map[string]*os.File),
	}, nil
}

func streamKey(roomID, participantID string) string {
	return roomID + "_" + participantID
}

func (l *Logger) filename(roomID, participantID string) string {
	return filepath.Join(l.storagePath, streamKey(roomID, participantID)+".pcm")
}

// LogAudio appends raw bytes to the stream's file, opening it on first call.
func (l *Logger) LogAudio(ctx context.Context, roomID string, participantID string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	key := streamKey(roomID, participantID)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.files[key]
	if !ok {
		name := l.filename(roomID, participantID)
		var err error
		f, err = os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("recording: open %s: %w", name, err)
		}
		l.files[key] = f
		logging.Info(ctx, "Started recording",
			zap.String("room_id", roomID),
			zap.String("participant_id", participantID),
			zap.String("file", name))
	}

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("recording: write %s: %w", key, err)
	}
	return nil
}

// CloseSession closes the stream's file. Idempotent: closing an unknown
// stream is a no-op.
func (l *Logger) CloseSession(roomID string, participantID string) error {
	key := streamKey(roomID, participantID)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.files[key]
	if !ok {
		return nil
	}
	delete(l.files, key)
	if err := f.Close(); err != nil {
		return fmt.Errorf("recording: close %s: %w", key, err)
	}
	logging.Info(context.Background(), "Closed recording",
		zap.String("room_id", roomID),
		zap.String("participant_id", participantID))
	return nil
}

// Close closes every open stream file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for key, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("recording: close %s: %w", key, err)
		}
		delete(l.files, key)
	}
	return firstErr
}
