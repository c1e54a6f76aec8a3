package session

import (
	"fmt"
	"mime"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/martichou/rquickshare-go/apperrors"
	"github.com/martichou/rquickshare-go/crypto"
	"github.com/martichou/rquickshare-go/endpoint"
	"github.com/martichou/rquickshare-go/wire"
)

// RunOutbound drives a client-role session: it dials, introduces the local
// files, and streams them once the peer consents (spec.md §4.1 "Outbound
// flow"). It owns conn exclusively and closes it on return.
func RunOutbound(conn net.Conn, deps Deps, info SendInfo, commands <-chan Command) {
	s := newSession(conn, deps, commands)
	defer conn.Close()
	s.id = info.SessionID
	s.remote = &endpoint.RemoteDeviceInfo{Name: info.PeerName}
	s.meta = TransferMetadata{ID: s.id, Source: deps.DeviceName(), PayloadKind: PayloadKindFiles}

	if err := s.runOutbound(info.Files); err != nil {
		if err == apperrors.ErrNotAnError {
			return
		}
		deps.Log.Errorf("outbound %s: %v", s.id, err)
		s.emitDisconnected()
	}
}

func (s *Session) runOutbound(files []string) error {
	// Step 1: ConnectionRequest.
	endpointInfo, err := endpoint.GenEndpointInfo(endpoint.DeviceTypeLaptop, s.deps.DeviceName())
	if err != nil {
		return err
	}
	req := (&wire.OfflineFrame{
		Version: wire.OfflineFrameVersionV1,
		V1: &wire.V1Frame{
			Type: wire.V1FrameTypeConnectionRequest,
			ConnectionRequest: &wire.ConnectionRequest{
				Endpoint1ID:  s.deps.Identity.InstanceName(),
				EndpointName: s.deps.DeviceName(),
				EndpointInfo: endpointInfo,
			},
		},
	}).Marshal()
	if err := s.writeOfflineFrameClear(req); err != nil {
		return err
	}

	// Step 2: UKEY2 ClientInit with commitment to our own ClientFinish.
	priv, err := crypto.GenerateP256Keypair()
	if err != nil {
		return err
	}
	x, y, err := crypto.GenericPublicKeyCoords(priv.PublicKey())
	if err != nil {
		return err
	}
	clientFinish := &wire.Ukey2ClientFinish{
		PublicKey: (&wire.GenericPublicKey{Type: wire.GenericPublicKeyTypeEcP256, EcP256: &wire.EcP256PublicKey{X: x, Y: y}}).Marshal(),
	}
	clientFinishBytes := clientFinish.Marshal()
	commitment := crypto.CommitToClientFinish(clientFinishBytes)

	random := make([]byte, 32)
	if _, err := readRandomInto(random); err != nil {
		return err
	}
	clientInit := &wire.Ukey2ClientInit{
		Version: ukey2Version,
		Random:  random,
		CipherCommitments: []wire.CipherCommitment{
			{HandshakeCipher: wire.Ukey2HandshakeCipherP256SHA512, Commitment: commitment},
		},
		NextProtocol: nextProtocol,
	}
	clientInitBytes := clientInit.Marshal()
	if err := s.writeUkey2(wire.Ukey2MessageTypeClientInit, clientInitBytes); err != nil {
		return err
	}
	s.setState(SentUkeyClientInit)

	// Step 3: UKEY2 ServerInit.
	serverInitMsg, err := s.readUkey2()
	if err != nil {
		return err
	}
	if serverInitMsg.MessageType == wire.Ukey2MessageTypeAlert {
		alert, _ := wire.UnmarshalUkey2Alert(serverInitMsg.MessageData)
		return fmt.Errorf("session: peer sent UKEY2 alert type %d: %w", alertType(alert), apperrors.ErrUnexpectedFrame)
	}
	if serverInitMsg.MessageType != wire.Ukey2MessageTypeServerInit {
		return apperrors.ErrUnexpectedFrame
	}
	serverInit, err := wire.UnmarshalUkey2ServerInit(serverInitMsg.MessageData)
	if err != nil {
		return fmt.Errorf("session: decode ServerInit: %w", err)
	}
	if serverInit.Version != ukey2Version || serverInit.HandshakeCipher != wire.Ukey2HandshakeCipherP256SHA512 {
		return apperrors.ErrBadHandshakeCipher
	}
	peerKey, err := wire.UnmarshalGenericPublicKey(serverInit.PublicKey)
	if err != nil {
		return fmt.Errorf("session: decode server public key: %w", err)
	}
	peerPub, err := crypto.PublicKeyFromCoords(peerKey.EcP256.X, peerKey.EcP256.Y)
	if err != nil {
		return err
	}

	ukeyInfo := append(append([]byte(nil), clientInitBytes...), serverInitMsg.MessageData...)
	if err := s.finalizeKeys(priv, peerPub, ukeyInfo, false); err != nil {
		return err
	}

	if err := s.writeUkey2(wire.Ukey2MessageTypeClientFinish, clientFinishBytes); err != nil {
		return err
	}
	s.setState(SentUkeyClientFinish)

	// ConnectionResponse (offline, always Accept on our side since we
	// dialed expecting to be accepted).
	connResp := (&wire.OfflineFrame{
		Version: wire.OfflineFrameVersionV1,
		V1: &wire.V1Frame{
			Type:               wire.V1FrameTypeConnectionResponse,
			ConnectionResponse: &wire.OfflineConnectionResponse{Status: wire.ConnectionStatusAccept, OsInfo: wire.OfflineConnectionResponseOsInfoLinux},
		},
	}).Marshal()
	if err := s.writeOfflineFrame(connResp); err != nil {
		return err
	}

	peerConnResp, err := s.readOfflineFrame()
	if err != nil {
		return err
	}
	if peerConnResp.V1 == nil || peerConnResp.V1.Type != wire.V1FrameTypeConnectionResponse {
		return apperrors.ErrUnexpectedFrame
	}
	s.setState(SentConnectionResponse)

	// Step 4: our PairedKeyEncryption.
	secretIDHash := make([]byte, 6)
	signedData := make([]byte, 72)
	if _, err := readRandomInto(secretIDHash); err != nil {
		return err
	}
	if _, err := readRandomInto(signedData); err != nil {
		return err
	}
	if err := s.sendSharingV1(&wire.SharingV1Frame{
		Type:                wire.SharingFrameTypePairedKeyEncryption,
		PairedKeyEncryption: &wire.PairedKeyEncryptionFrame{SecretIDHash: secretIDHash, SignedData: signedData},
	}); err != nil {
		return err
	}
	s.setState(SentPairedKeyEncryption)

	// Step 5: peer's PairedKeyEncryption + our PairedKeyResult.
	peerPKE, err := s.nextSharingFrame()
	if err != nil {
		return err
	}
	if peerPKE.Type != wire.SharingFrameTypePairedKeyEncryption {
		return apperrors.ErrUnexpectedFrame
	}
	if err := s.sendSharingV1(&wire.SharingV1Frame{
		Type:            wire.SharingFrameTypePairedKeyResult,
		PairedKeyResult: &wire.PairedKeyResultFrame{Status: wire.PairedKeyResultUnable},
	}); err != nil {
		return err
	}

	// Step 6: peer's PairedKeyResult, then build and send our Introduction.
	peerPKR, err := s.nextSharingFrame()
	if err != nil {
		return err
	}
	if peerPKR.Type != wire.SharingFrameTypePairedKeyResult {
		return apperrors.ErrUnexpectedFrame
	}
	s.setState(ReceivedPairedKeyResult)

	fileMeta, err := scanFiles(files)
	if err != nil {
		return err
	}
	s.meta.PayloadPreview = make([]string, 0, len(fileMeta))
	var total int64
	for i, fm := range fileMeta {
		id, err := randomInt64()
		if err != nil {
			return err
		}
		fileMeta[i].PayloadID = id
		s.fileRecords[id] = &FileRecord{PayloadID: id, Path: files[i], TotalSize: fm.Size}
		s.meta.PayloadPreview = append(s.meta.PayloadPreview, fm.Name)
		total += fm.Size
	}
	s.meta.TotalBytes = total
	s.emitMeta()

	if err := s.sendSharingV1(&wire.SharingV1Frame{
		Type:         wire.SharingFrameTypeIntroduction,
		Introduction: &wire.IntroductionFrame{FileMetadata: fileMeta},
	}); err != nil {
		return err
	}
	s.setState(SentIntroduction)

	// Step 7: peer's consent response.
	resp, err := s.nextSharingFrame()
	if err != nil {
		return err
	}
	if resp.Type != wire.SharingFrameTypeResponse || resp.ConnectionResponse == nil {
		return apperrors.ErrUnexpectedFrame
	}
	switch resp.ConnectionResponse.Status {
	case wire.ConnectionStatusAccept:
		s.setState(SendingFiles)
		return s.sendLoop()
	default:
		s.setState(Disconnected)
		return nil
	}
}

func alertType(a *wire.Ukey2Alert) int32 {
	if a == nil {
		return 0
	}
	return a.Type
}

// scanFiles opens each path to read its size and sniff its content type,
// building the FileMetadata the Introduction frame carries (spec.md §4.1
// "Outbound flow" step 6).
func scanFiles(paths []string) ([]wire.FileMetadata, error) {
	out := make([]wire.FileMetadata, 0, len(paths))
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("session: stat %s: %w", p, err)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(p))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		out = append(out, wire.FileMetadata{
			Name:     filepath.Base(p),
			Type:     fileTypeFromMime(mimeType),
			Size:     st.Size(),
			MimeType: mimeType,
		})
	}
	return out, nil
}

func fileTypeFromMime(mimeType string) int32 {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return wire.FileTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return wire.FileTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return wire.FileTypeAudio
	default:
		return wire.FileTypeUnknown
	}
}

// sendLoop streams every file's bytes in bytesChunkSize chunks, watching for
// a non-blocking TransferCancel in between chunks (spec.md §4.1 step 7 /
// "Cancellation and disconnection").
func (s *Session) sendLoop() error {
	for _, rec := range s.fileRecords {
		f, err := os.Open(rec.Path)
		if err != nil {
			return fmt.Errorf("session: open %s: %w", rec.Path, err)
		}

		header := &wire.PayloadHeader{
			ID:        rec.PayloadID,
			Type:      wire.PayloadTypeFile,
			TotalSize: rec.TotalSize,
			FileName:  filepath.Base(rec.Path),
		}

		buf := make([]byte, bytesChunkSize)
		var offset int64
		for {
			if s.pollCancel() {
				f.Close()
				s.sendDisconnection()
				s.setState(Cancelled)
				return nil
			}
			n, readErr := f.Read(buf)
			if n > 0 {
				if err := s.writeOfflineFrame((&wire.OfflineFrame{
					Version: wire.OfflineFrameVersionV1,
					V1: &wire.V1Frame{
						Type: wire.V1FrameTypePayloadTransfer,
						PayloadTransfer: &wire.PayloadTransferFrame{
							PacketType: wire.PacketTypeData,
							Header:     header,
							Chunk:      &wire.PayloadChunk{Offset: offset, Body: append([]byte(nil), buf[:n]...)},
						},
					},
				}).Marshal()); err != nil {
					f.Close()
					return err
				}
				offset += int64(n)
				s.meta.AckBytes += int64(n)
				s.emitMeta()
			}
			if readErr != nil {
				break
			}
		}
		f.Close()

		if err := s.writeOfflineFrame((&wire.OfflineFrame{
			Version: wire.OfflineFrameVersionV1,
			V1: &wire.V1Frame{
				Type: wire.V1FrameTypePayloadTransfer,
				PayloadTransfer: &wire.PayloadTransferFrame{
					PacketType: wire.PacketTypeData,
					Header:     header,
					Chunk:      &wire.PayloadChunk{Offset: offset, Flags: wire.PayloadChunkFlagLastChunk},
				},
			},
		}).Marshal()); err != nil {
			return err
		}
	}
	s.setState(Finished)
	return nil
}

// pollCancel drains a pending TransferCancel command without blocking
// (spec.md §4.1 "Cancellation and disconnection").
func (s *Session) pollCancel() bool {
	select {
	case cmd, ok := <-s.commands:
		return ok && cmd.Action == TransferCancel
	default:
		return false
	}
}
