package recording

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAudio_AppendsToStreamFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.LogAudio(ctx, "room1", "alice", []byte{1, 2}))
	require.NoError(t, l.LogAudio(ctx, "room1", "alice", []byte{3, 4}))
	require.NoError(t, l.LogAudio(ctx, "room1", "bob", []byte{9}))

	require.NoError(t, l.Close())

	got, err := os.ReadFile(filepath.Join(dir, "room1_alice.pcm"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)

	got, err = os.ReadFile(filepath.Join(dir, "room1_bob.pcm"))
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, got)
}

func TestLogAudio_EmptyDataIsNoop(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.LogAudio(context.Background(), "room1", "alice", nil))
	_, err = os.Stat(filepath.Join(dir, "room1_alice.pcm"))
	assert.True(t, os.IsNotExist(err), "no file should be opened for empty data")
}

func TestCloseSession_Idempotent(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.LogAudio(context.Background(), "room1", "alice", []byte{1}))
	require.NoError(t, l.CloseSession("room1", "alice"))
	require.NoError(t, l.CloseSession("room1", "alice"))
	require.NoError(t, l.CloseSession("never", "opened"))
}

func TestLogAudio_ReopenAfterClose(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.LogAudio(ctx, "r", "p", []byte{1}))
	require.NoError(t, l.CloseSession("r", "p"))
	require.NoError(t, l.LogAudio(ctx, "r", "p", []byte{2}))
	require.NoError(t, l.Close())

	got, err := os.ReadFile(filepath.Join(dir, "r_p.pcm"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got, "append mode must survive close/reopen")
}

func TestLogAudio_Concurrent(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)
	defer l.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = l.LogAudio(context.Background(), "r", "p", []byte{0xAB})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, l.Close())

	got, err := os.ReadFile(filepath.Join(dir, "r_p.pcm"))
	require.NoError(t, err)
	assert.Len(t, got, 8*50)
}
