package session

import (
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/martichou/rquickshare-go/endpoint"
	"github.com/martichou/rquickshare-go/events"
	"github.com/martichou/rquickshare-go/internal/downloadpath"
	"github.com/martichou/rquickshare-go/logging"
)

// loopbackPair dials a fresh TCP loopback listener and returns the two
// connected ends. A real socket (rather than net.Pipe) is used so OS send
// buffers absorb the handshake traffic without requiring every Read/Write
// call on each side to line up in lockstep.
func loopbackPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	select {
	case server = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("listener never accepted the dialed connection")
	}
	return client, server
}

func testDeps(t *testing.T, bus *events.Bus, downloadRoot *downloadpath.Store, name string) Deps {
	t.Helper()
	id, err := endpoint.NewIdentity()
	require.NoError(t, err)
	return Deps{
		Identity:     id,
		DeviceName:   func() string { return name },
		DownloadRoot: downloadRoot,
		Bus:          bus,
		Log:          logging.New("test:" + name),
	}
}

// TestSendReceiveFileEndToEnd exercises spec.md §8 scenario 1 (single file
// receive) and scenario 5 (send one file) as one round trip: a loopback TCP
// connection carries the full UKEY2 handshake, paired-key exchange,
// Introduction, consent, and payload transfer between an outbound and an
// inbound session.
func TestSendReceiveFileEndToEnd(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	content := []byte("hello from the sender, this is a small test payload")
	srcPath := filepath.Join(srcDir, "note.txt")
	require.NoError(t, os.WriteFile(srcPath, content, 0o644))

	outConn, inConn := loopbackPair(t)

	bus := events.New(16)
	downloadRoot := downloadpath.NewStore()
	downloadRoot.Set(dstDir)

	senderDeps := testDeps(t, bus, downloadpath.NewStore(), "sender-device")
	receiverDeps := testDeps(t, bus, downloadRoot, "receiver-device")

	receiverCommands := make(chan Command, 1)
	receiverCommands <- Command{SessionID: "receiver", Action: ConsentAccept}
	senderCommands := make(chan Command, 1)

	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		RunOutbound(outConn, senderDeps, SendInfo{
			SessionID: "sender",
			PeerName:  "receiver-device",
			Files:     []string{srcPath},
		}, senderCommands)
	}()

	receiverDone := make(chan struct{})
	go func() {
		defer close(receiverDone)
		RunInbound(inConn, receiverDeps, receiverCommands)
	}()

	waitOrFail(t, senderDone, "outbound session never finished")
	waitOrFail(t, receiverDone, "inbound session never finished")

	got, err := os.ReadFile(filepath.Join(dstDir, "note.txt"))
	require.NoError(t, err)
	require.Equal(t, content, got)
}

// TestReceiverDeclinesTransfer exercises spec.md §8 scenario 2: the
// receiver declines consent, and no destination file is ever created.
func TestReceiverDeclinesTransfer(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	srcPath := filepath.Join(srcDir, "note.txt")
	require.NoError(t, os.WriteFile(srcPath, []byte("should never arrive"), 0o644))

	outConn, inConn := loopbackPair(t)

	bus := events.New(16)
	downloadRoot := downloadpath.NewStore()
	downloadRoot.Set(dstDir)

	senderDeps := testDeps(t, bus, downloadpath.NewStore(), "sender-device")
	receiverDeps := testDeps(t, bus, downloadRoot, "receiver-device")

	receiverCommands := make(chan Command, 1)
	receiverCommands <- Command{SessionID: "receiver", Action: ConsentDecline}
	senderCommands := make(chan Command, 1)

	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		RunOutbound(outConn, senderDeps, SendInfo{
			SessionID: "sender",
			PeerName:  "receiver-device",
			Files:     []string{srcPath},
		}, senderCommands)
	}()

	receiverDone := make(chan struct{})
	go func() {
		defer close(receiverDone)
		RunInbound(inConn, receiverDeps, receiverCommands)
	}()

	waitOrFail(t, senderDone, "outbound session never finished")
	waitOrFail(t, receiverDone, "inbound session never finished")

	_, err := os.Stat(filepath.Join(dstDir, "note.txt"))
	require.True(t, os.IsNotExist(err))
}

// TestSendReceiveMultiChunkFile forces a file across multiple
// bytesChunkSize-sized PayloadTransferFrame writes, exercising offset
// tracking and positional writes across continuation chunks. The sender
// attaches the file's PayloadHeader to every chunk, so each chunk is matched
// to its file record by the header's payload id.
func TestSendReceiveMultiChunkFile(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	content := make([]byte, bytesChunkSize*2+12345)
	rand.New(rand.NewSource(1)).Read(content)
	srcPath := filepath.Join(srcDir, "big.bin")
	require.NoError(t, os.WriteFile(srcPath, content, 0o644))

	outConn, inConn := loopbackPair(t)

	bus := events.New(16)
	downloadRoot := downloadpath.NewStore()
	downloadRoot.Set(dstDir)

	senderDeps := testDeps(t, bus, downloadpath.NewStore(), "sender-device")
	receiverDeps := testDeps(t, bus, downloadRoot, "receiver-device")

	receiverCommands := make(chan Command, 1)
	receiverCommands <- Command{SessionID: "receiver", Action: ConsentAccept}
	senderCommands := make(chan Command, 1)

	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		RunOutbound(outConn, senderDeps, SendInfo{
			SessionID: "sender",
			PeerName:  "receiver-device",
			Files:     []string{srcPath},
		}, senderCommands)
	}()

	receiverDone := make(chan struct{})
	go func() {
		defer close(receiverDone)
		RunInbound(inConn, receiverDeps, receiverCommands)
	}()

	waitOrFail(t, senderDone, "outbound session never finished")
	waitOrFail(t, receiverDone, "inbound session never finished")

	got, err := os.ReadFile(filepath.Join(dstDir, "big.bin"))
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func waitOrFail(t *testing.T, done <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal(msg)
	}
}
