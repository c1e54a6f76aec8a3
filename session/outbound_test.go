package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martichou/rquickshare-go/events"
	"github.com/martichou/rquickshare-go/wire"
)

// TestSendLoopAttachesHeaderToEveryChunk locks in spec.md §8 scenario 5's
// literal wire sequence for a 600 KiB file: two data chunks (512 KiB, 88
// KiB) then one zero-body last-chunk message, each carrying the file's
// PayloadHeader, not a separate header-only priming frame up front.
func TestSendLoopAttachesHeaderToEveryChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	content := make([]byte, bytesChunkSize+88*1024)
	for i := range content {
		content[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, content, 0o644))

	client, server := loopbackPair(t)
	defer client.Close()
	defer server.Close()

	s := newSession(client, Deps{Bus: events.New(16)}, make(chan Command))
	s.fileRecords[42] = &FileRecord{PayloadID: 42, Path: path, TotalSize: int64(len(content))}
	s.meta.AckBytes = 0

	done := make(chan error, 1)
	go func() { done <- s.sendLoop() }()

	var frames []*wire.PayloadTransferFrame
	for {
		body, err := readFrame(server)
		require.NoError(t, err)
		off, err := wire.UnmarshalOfflineFrame(body)
		require.NoError(t, err)
		require.NotNil(t, off.V1)
		require.Equal(t, wire.V1FrameTypePayloadTransfer, off.V1.Type)
		pt := off.V1.PayloadTransfer
		frames = append(frames, pt)
		if pt.Chunk.Flags&wire.PayloadChunkFlagLastChunk != 0 {
			break
		}
	}

	require.NoError(t, <-done)
	require.Len(t, frames, 3, "expected exactly two data chunks plus one last-chunk message")

	for i, pt := range frames {
		require.NotNilf(t, pt.Header, "frame %d missing PayloadHeader", i)
		require.Equal(t, int64(42), pt.Header.ID)
		require.Equal(t, "big.bin", pt.Header.FileName)
	}

	require.Equal(t, int64(bytesChunkSize), int64(len(frames[0].Chunk.Body)))
	require.Equal(t, 88*1024, len(frames[1].Chunk.Body))
	require.Empty(t, frames[2].Chunk.Body)
	require.NotZero(t, frames[2].Chunk.Flags&wire.PayloadChunkFlagLastChunk)
}
