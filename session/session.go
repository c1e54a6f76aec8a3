package session

import (
	"crypto/ecdh"
	"net"

	"github.com/martichou/rquickshare-go/crypto"
	"github.com/martichou/rquickshare-go/endpoint"
	"github.com/martichou/rquickshare-go/events"
	"github.com/martichou/rquickshare-go/internal/downloadpath"
	"github.com/martichou/rquickshare-go/logging"
	"github.com/martichou/rquickshare-go/wire"
)

// Deps bundles the collaborators every session needs, so the TCP
// supervisor only has to build one of these per accepted/dialed
// connection (spec.md §4.7).
type Deps struct {
	Identity     *endpoint.Identity
	DeviceName   func() string
	DownloadRoot *downloadpath.Store
	Bus          *events.Bus
	Log          *logging.Logger
}

// Session holds all per-connection state (spec.md §3 "Session state").
// It owns its socket exclusively; nothing outside the session's own
// goroutine touches these fields, so no locking is needed on the hot path
// (spec.md §5 "Shared state").
type Session struct {
	id   string
	conn net.Conn
	deps Deps

	state  State
	remote *endpoint.RemoteDeviceInfo

	channel        *crypto.Channel
	encryptionDone bool
	pin            string

	pendingPayloads map[int64][]byte
	fileRecords     map[int64]*FileRecord
	meta            TransferMetadata

	// currentFilePayloadID is the payload id of the file chunk frames
	// currently in flight: a file chunk that arrives without a Header falls
	// back to whichever file payload was last announced.
	currentFilePayloadID int64

	// pendingTextPayloadID/pendingWifiMetadata track the single non-file
	// payload a transfer's Introduction frame may describe (spec.md §4.1
	// step 7: exactly one of files/text/wifi).
	pendingTextPayloadID int64
	pendingWifiMetadata  *wire.WifiCredentialsMetadata

	commands <-chan Command
}

func newSession(conn net.Conn, deps Deps, commands <-chan Command) *Session {
	id := conn.RemoteAddr().String()
	return &Session{
		id:              id,
		conn:            conn,
		deps:            deps,
		state:           Initial,
		pendingPayloads: make(map[int64][]byte),
		fileRecords:     make(map[int64]*FileRecord),
		meta:            TransferMetadata{ID: id, Source: id},
		commands:        commands,
	}
}

// setState transitions and emits a state event on the bus (spec.md §4.1
// "Transitions emit a state event on the bus").
func (s *Session) setState(st State) {
	s.state = st
	s.deps.Bus.Publish(events.Event{Kind: events.KindMessage, SessionID: s.id, Message: s.meta})
}

func (s *Session) emitMeta() {
	s.deps.Bus.Publish(events.Event{Kind: events.KindMessage, SessionID: s.id, Message: s.meta})
}

func (s *Session) emitDisconnected() {
	if s.state.Terminal() {
		return
	}
	s.sendDisconnection()
	s.setState(Disconnected)
}

// sendDisconnection sends a best-effort offline Disconnection frame
// (spec.md §4.1 "Cancellation and disconnection"), encrypted if keys
// exist, else clear.
func (s *Session) sendDisconnection() {
	frame := (&wire.OfflineFrame{
		Version: wire.OfflineFrameVersionV1,
		V1:      &wire.V1Frame{Type: wire.V1FrameTypeDisconnection},
	}).Marshal()
	_ = s.writeOfflineFrame(frame)
}

// --- pre-handshake (clear) I/O ---

func (s *Session) readUkey2() (*wire.Ukey2Message, error) {
	body, err := readFrame(s.conn)
	if err != nil {
		return nil, err
	}
	return wire.UnmarshalUkey2Message(body)
}

func (s *Session) writeUkey2(msgType int32, data []byte) error {
	msg := (&wire.Ukey2Message{MessageType: msgType, MessageData: data}).Marshal()
	return writeFrame(s.conn, msg)
}

func (s *Session) readOfflineFrameClear() (*wire.OfflineFrame, error) {
	body, err := readFrame(s.conn)
	if err != nil {
		return nil, err
	}
	return wire.UnmarshalOfflineFrame(body)
}

func (s *Session) writeOfflineFrameClear(frameBytes []byte) error {
	return writeFrame(s.conn, frameBytes)
}

// --- post-handshake (encrypted) I/O ---

// writeOfflineFrame sends offline-frame bytes, encrypted once the channel
// is up, clear otherwise (spec.md §3 "prior to that ... frames are sent/
// received in clear framing").
func (s *Session) writeOfflineFrame(frameBytes []byte) error {
	if !s.encryptionDone {
		return s.writeOfflineFrameClear(frameBytes)
	}
	sealed, err := sealFrame(s.channel, frameBytes)
	if err != nil {
		return err
	}
	return writeFrame(s.conn, sealed)
}

func (s *Session) readOfflineFrame() (*wire.OfflineFrame, error) {
	body, err := readFrame(s.conn)
	if err != nil {
		return nil, err
	}
	if !s.encryptionDone {
		return wire.UnmarshalOfflineFrame(body)
	}
	plain, err := openFrame(s.channel, body)
	if err != nil {
		return nil, err
	}
	return wire.UnmarshalOfflineFrame(plain)
}

// writeSharingFrame wraps a sharing Frame in an offline PayloadTransferFrame
// sent as two chunks, each independently AES-encrypted with its own
// sequence number (spec.md §4.3 "Sharing frames over the channel").
func (s *Session) writeSharingFrame(payloadID int64, frameBytes []byte) error {
	first := (&wire.OfflineFrame{
		Version: wire.OfflineFrameVersionV1,
		V1: &wire.V1Frame{
			Type: wire.V1FrameTypePayloadTransfer,
			PayloadTransfer: &wire.PayloadTransferFrame{
				PacketType: wire.PacketTypeData,
				Header: &wire.PayloadHeader{
					ID:        payloadID,
					Type:      wire.PayloadTypeBytes,
					TotalSize: int64(len(frameBytes)),
				},
				Chunk: &wire.PayloadChunk{Offset: 0, Flags: 0, Body: frameBytes},
			},
		},
	}).Marshal()
	if err := s.writeOfflineFrame(first); err != nil {
		return err
	}

	last := (&wire.OfflineFrame{
		Version: wire.OfflineFrameVersionV1,
		V1: &wire.V1Frame{
			Type: wire.V1FrameTypePayloadTransfer,
			PayloadTransfer: &wire.PayloadTransferFrame{
				PacketType: wire.PacketTypeData,
				Chunk:      &wire.PayloadChunk{Offset: int64(len(frameBytes)), Flags: wire.PayloadChunkFlagLastChunk},
			},
		},
	}).Marshal()
	return s.writeOfflineFrame(last)
}

// finalizeKeys runs the HKDF ladder and PIN derivation and installs the
// Channel for the given role (spec.md §4.3).
func (s *Session) finalizeKeys(priv *ecdh.PrivateKey, peerPub *ecdh.PublicKey, ukeyInfo []byte, serverRole bool) error {
	shared, err := crypto.SharedSecret(priv, peerPub)
	if err != nil {
		return err
	}
	keys, err := crypto.DeriveKeys(shared, ukeyInfo)
	if err != nil {
		return err
	}
	s.pin = crypto.DerivePIN(keys.AuthString)
	s.meta.PinCode = s.pin

	var decrypt, recvHMAC, encrypt, sendHMAC []byte
	if serverRole {
		decrypt, recvHMAC, encrypt, sendHMAC = keys.ServerRoleKeys()
	} else {
		decrypt, recvHMAC, encrypt, sendHMAC = keys.ClientRoleKeys()
	}
	s.channel = crypto.NewChannel(decrypt, recvHMAC, encrypt, sendHMAC)
	s.encryptionDone = true
	return nil
}
