package session

import (
	"fmt"
	"net"

	"github.com/martichou/rquickshare-go/apperrors"
	"github.com/martichou/rquickshare-go/crypto"
	"github.com/martichou/rquickshare-go/endpoint"
	"github.com/martichou/rquickshare-go/internal/downloadpath"
	"github.com/martichou/rquickshare-go/wire"
)

const nextProtocol = "AES_256_CBC-HMAC_SHA256"
const ukey2Version = 1
const bytesChunkSize = 512 * 1024

// RunInbound drives a server-role session end to end (spec.md §4.1
// "Inbound flow"). It owns conn exclusively and closes it on return.
func RunInbound(conn net.Conn, deps Deps, commands <-chan Command) {
	s := newSession(conn, deps, commands)
	defer conn.Close()

	if err := s.runInbound(); err != nil {
		if err == apperrors.ErrNotAnError {
			return
		}
		if s.state == Initial {
			// Likely a port scan; stay silent (spec.md §4.7).
			return
		}
		deps.Log.Errorf("inbound %s: %v", s.id, err)
		s.emitDisconnected()
	}
}

func (s *Session) runInbound() error {
	// Step 1: ConnectionRequest.
	req, err := s.readOfflineFrameClear()
	if err != nil {
		return err
	}
	if req.V1 == nil || req.V1.Type != wire.V1FrameTypeConnectionRequest || req.V1.ConnectionRequest == nil {
		return apperrors.ErrUnexpectedFrame
	}
	remote, err := endpoint.RemoteDeviceInfoFromConnectionRequest(req.V1.ConnectionRequest.EndpointInfo)
	if err != nil {
		return fmt.Errorf("session: connection request: %w", err)
	}
	s.remote = remote
	s.meta.Source = remote.Name
	s.setState(ReceivedConnectionRequest)

	// Step 2: UKEY2 ClientInit.
	clientInitMsg, err := s.readUkey2()
	if err != nil {
		return err
	}
	if clientInitMsg.MessageType != wire.Ukey2MessageTypeClientInit {
		return apperrors.ErrUnexpectedFrame
	}
	clientInit, err := wire.UnmarshalUkey2ClientInit(clientInitMsg.MessageData)
	if err != nil {
		return fmt.Errorf("session: decode ClientInit: %w", err)
	}
	if clientInit.Version != ukey2Version {
		_ = s.sendAlert(wire.AlertTypeBadVersion)
		return apperrors.ErrBadVersion
	}
	if len(clientInit.Random) != 32 {
		_ = s.sendAlert(wire.AlertTypeBadRandom)
		return apperrors.ErrBadRandom
	}
	var commitment []byte
	for _, cc := range clientInit.CipherCommitments {
		if cc.HandshakeCipher == wire.Ukey2HandshakeCipherP256SHA512 {
			commitment = cc.Commitment
			break
		}
	}
	if commitment == nil {
		_ = s.sendAlert(wire.AlertTypeBadHandshakeCipher)
		return apperrors.ErrBadHandshakeCipher
	}
	if clientInit.NextProtocol != nextProtocol {
		_ = s.sendAlert(wire.AlertTypeBadNextProtocol)
		return apperrors.ErrBadNextProtocol
	}

	priv, err := crypto.GenerateP256Keypair()
	if err != nil {
		return err
	}
	x, y, err := crypto.GenericPublicKeyCoords(priv.PublicKey())
	if err != nil {
		return err
	}
	serverInit := &wire.Ukey2ServerInit{
		Version:         ukey2Version,
		Random:          make([]byte, 32),
		HandshakeCipher: wire.Ukey2HandshakeCipherP256SHA512,
		PublicKey: (&wire.GenericPublicKey{
			Type:   wire.GenericPublicKeyTypeEcP256,
			EcP256: &wire.EcP256PublicKey{X: x, Y: y},
		}).Marshal(),
	}
	if _, err := readRandomInto(serverInit.Random); err != nil {
		return err
	}
	serverInitBytes := serverInit.Marshal()
	if err := s.writeUkey2(wire.Ukey2MessageTypeServerInit, serverInitBytes); err != nil {
		return err
	}
	s.setState(SentUkeyServerInit)

	// Step 3: UKEY2 ClientFinish.
	clientFinishMsg, err := s.readUkey2()
	if err != nil {
		return err
	}
	if clientFinishMsg.MessageType != wire.Ukey2MessageTypeClientFinish {
		return apperrors.ErrUnexpectedFrame
	}
	if !hmacEqualBytes(crypto.CommitToClientFinish(clientFinishMsg.MessageData), commitment) {
		_ = s.sendAlert(wire.AlertTypeIncorrectCommitment)
		return apperrors.ErrCommitmentMismatch
	}
	clientFinish, err := wire.UnmarshalUkey2ClientFinish(clientFinishMsg.MessageData)
	if err != nil {
		return fmt.Errorf("session: decode ClientFinish: %w", err)
	}
	peerKey, err := wire.UnmarshalGenericPublicKey(clientFinish.PublicKey)
	if err != nil {
		return fmt.Errorf("session: decode peer public key: %w", err)
	}
	peerPub, err := crypto.PublicKeyFromCoords(peerKey.EcP256.X, peerKey.EcP256.Y)
	if err != nil {
		return err
	}
	ukeyInfo := append(append([]byte(nil), clientInitMsg.MessageData...), serverInitBytes...)
	if err := s.finalizeKeys(priv, peerPub, ukeyInfo, true); err != nil {
		return err
	}
	s.setState(ReceivedUkeyClientFinish)

	// Step 4: ConnectionResponse (offline) + PairedKeyEncryption.
	connResp := (&wire.OfflineFrame{
		Version: wire.OfflineFrameVersionV1,
		V1: &wire.V1Frame{
			Type: wire.V1FrameTypeConnectionResponse,
			ConnectionResponse: &wire.OfflineConnectionResponse{
				Status: wire.ConnectionStatusAccept,
				OsInfo: wire.OfflineConnectionResponseOsInfoLinux,
			},
		},
	}).Marshal()
	if err := s.writeOfflineFrame(connResp); err != nil {
		return err
	}
	s.setState(SentConnectionResponse)

	secretIDHash := make([]byte, 6)
	signedData := make([]byte, 72)
	if _, err := readRandomInto(secretIDHash); err != nil {
		return err
	}
	if _, err := readRandomInto(signedData); err != nil {
		return err
	}
	pke := (&wire.SharingV1Frame{
		Type:                wire.SharingFrameTypePairedKeyEncryption,
		PairedKeyEncryption: &wire.PairedKeyEncryptionFrame{SecretIDHash: secretIDHash, SignedData: signedData},
	})
	if err := s.sendSharingV1(pke); err != nil {
		return err
	}

	// Step 5/6: peer's PairedKeyEncryption reply + our PairedKeyResult.
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
	s.setState(SentPairedKeyResult)

	peerPKR, err := s.nextSharingFrame()
	if err != nil {
		return err
	}
	if peerPKR.Type != wire.SharingFrameTypePairedKeyResult {
		return apperrors.ErrUnexpectedFrame
	}
	s.setState(ReceivedPairedKeyResult)

	// Step 7: Introduction.
	intro, err := s.nextSharingFrame()
	if err != nil {
		return err
	}
	if intro.Type != wire.SharingFrameTypeIntroduction || intro.Introduction == nil {
		return apperrors.ErrUnexpectedFrame
	}
	if err := s.classifyIntroduction(intro.Introduction); err != nil {
		return err
	}
	s.setState(WaitingForUserConsent)

	// Step 8: wait for user consent, filtered by session id upstream.
	action, err := s.waitForConsent()
	if err != nil {
		return err
	}
	switch action {
	case ConsentDecline:
		_ = s.sendSharingV1(&wire.SharingV1Frame{
			Type:               wire.SharingFrameTypeResponse,
			ConnectionResponse: &wire.ConnectionResponseFrame{Status: wire.ConnectionStatusReject},
		})
		s.setState(Rejected)
		return nil
	case TransferCancel:
		s.sendDisconnection()
		s.setState(Cancelled)
		return nil
	}

	if err := s.openDestinationFiles(); err != nil {
		return err
	}
	if err := s.sendSharingV1(&wire.SharingV1Frame{
		Type:               wire.SharingFrameTypeResponse,
		ConnectionResponse: &wire.ConnectionResponseFrame{Status: wire.ConnectionStatusAccept},
	}); err != nil {
		return err
	}
	s.setState(ReceivingFiles)

	// Steps 9-11: payload transfer loop.
	return s.receiveLoop()
}

func (s *Session) sendAlert(alertType int32) error {
	alert := (&wire.Ukey2Alert{Type: alertType}).Marshal()
	return s.writeUkey2(wire.Ukey2MessageTypeAlert, alert)
}

func (s *Session) sendSharingV1(v *wire.SharingV1Frame) error {
	payloadID, err := randomInt64()
	if err != nil {
		return err
	}
	frame := (&wire.Frame{Version: wire.OfflineFrameVersionV1, V1: v}).Marshal()
	return s.writeSharingFrame(payloadID, frame)
}

// nextSharingFrame reads offline frames until a complete sharing Frame
// arrives via PayloadTransfer (Bytes), per spec.md §4.1 step 9's reassembly
// rule, and decodes it.
func (s *Session) nextSharingFrame() (*wire.SharingV1Frame, error) {
	for {
		off, err := s.readOfflineFrame()
		if err != nil {
			return nil, err
		}
		if off.V1 == nil {
			continue
		}
		switch off.V1.Type {
		case wire.V1FrameTypePayloadTransfer:
			body, done, err := s.reassembleBytesPayload(off.V1.PayloadTransfer)
			if err != nil {
				return nil, err
			}
			if !done {
				continue
			}
			frame, err := wire.UnmarshalFrame(body)
			if err != nil {
				return nil, fmt.Errorf("session: decode sharing frame: %w", err)
			}
			if frame.V1 == nil {
				return nil, apperrors.ErrUnexpectedFrame
			}
			return frame.V1, nil
		case wire.V1FrameTypeDisconnection:
			s.setState(Disconnected)
			return nil, apperrors.ErrNotAnError
		default:
			continue
		}
	}
}

// reassembleBytesPayload accumulates chunks for a Bytes payload and reports
// whether the last-chunk flag closed it out (spec.md §4.1 step 9).
func (s *Session) reassembleBytesPayload(pt *wire.PayloadTransferFrame) (body []byte, done bool, err error) {
	if pt == nil || pt.Chunk == nil {
		return nil, false, apperrors.ErrUnexpectedFrame
	}
	var id int64
	if pt.Header != nil {
		id = pt.Header.ID
	} else {
		// Continuation chunk: the id must already be pending; since this
		// handshake layer only ever juggles one sharing frame at a time we
		// key by the single in-flight id.
		for k := range s.pendingPayloads {
			id = k
			break
		}
	}
	buf := s.pendingPayloads[id]
	if int64(len(buf)) != pt.Chunk.Offset {
		return nil, false, apperrors.ErrOffsetMismatch
	}
	buf = append(buf, pt.Chunk.Body...)
	if int64(len(buf)) > 5*1024*1024 {
		return nil, false, apperrors.ErrPayloadTooLarge
	}
	if pt.Chunk.Flags&wire.PayloadChunkFlagLastChunk != 0 {
		delete(s.pendingPayloads, id)
		return buf, true, nil
	}
	s.pendingPayloads[id] = buf
	return nil, false, nil
}

func (s *Session) classifyIntroduction(intro *wire.IntroductionFrame) error {
	switch {
	case len(intro.FileMetadata) > 0:
		s.meta.PayloadKind = PayloadKindFiles
		var total int64
		root := s.deps.DownloadRoot.Root()
		claimed := make(map[string]struct{}, len(intro.FileMetadata))
		for _, fm := range intro.FileMetadata {
			dest, err := downloadpath.DisambiguateBatch(root, fm.Name, claimed)
			if err != nil {
				return err
			}
			claimed[dest] = struct{}{}
			s.fileRecords[fm.PayloadID] = &FileRecord{PayloadID: fm.PayloadID, Path: dest, TotalSize: fm.Size}
			s.meta.PayloadPreview = append(s.meta.PayloadPreview, fm.Name)
			total += fm.Size
		}
		s.meta.TotalBytes = total
	case len(intro.TextMetadata) == 1:
		tm := intro.TextMetadata[0]
		if tm.Type == wire.TextTypeUrl {
			s.meta.PayloadKind = PayloadKindUrl
		} else {
			s.meta.PayloadKind = PayloadKindText
		}
		s.fileRecords[tm.PayloadID] = nil // marks a pending text payload id
		s.pendingTextPayloadID = tm.PayloadID
		s.meta.TotalBytes = tm.Size
	case len(intro.WifiMetadata) == 1:
		wm := intro.WifiMetadata[0]
		s.meta.PayloadKind = PayloadKindWiFi
		s.pendingWifiMetadata = &wm
		s.pendingTextPayloadID = wm.PayloadID
	default:
		return apperrors.ErrUnexpectedFrame
	}
	s.emitMeta()
	return nil
}

func (s *Session) waitForConsent() (Action, error) {
	for cmd := range s.commands {
		switch cmd.Action {
		case ConsentAccept, ConsentDecline, TransferCancel:
			return cmd.Action, nil
		}
	}
	return TransferCancel, apperrors.ErrNotAnError
}

func (s *Session) openDestinationFiles() error {
	for _, rec := range s.fileRecords {
		if rec == nil {
			continue
		}
		f, err := openForWrite(rec.Path)
		if err != nil {
			return fmt.Errorf("session: open destination %s: %w", rec.Path, err)
		}
		rec.Handle = f
	}
	return nil
}

// receiveLoop handles steps 9-11 of the inbound flow: payload chunks for
// files and the final text/url/wifi bytes payload, plus keepalives.
func (s *Session) receiveLoop() error {
	for {
		off, err := s.readOfflineFrame()
		if err != nil {
			return err
		}
		if off.V1 == nil {
			continue
		}
		switch off.V1.Type {
		case wire.V1FrameTypeKeepAlive:
			if err := s.writeOfflineFrame((&wire.OfflineFrame{
				Version: wire.OfflineFrameVersionV1,
				V1:      &wire.V1Frame{Type: wire.V1FrameTypeKeepAlive},
			}).Marshal()); err != nil {
				return err
			}
		case wire.V1FrameTypeDisconnection:
			s.setState(Disconnected)
			return nil
		case wire.V1FrameTypePayloadTransfer:
			finished, err := s.handlePayloadTransfer(off.V1.PayloadTransfer)
			if err != nil {
				return err
			}
			if finished {
				s.setState(Finished)
				return nil
			}
		default:
			return apperrors.ErrUnexpectedFrame
		}
	}
}

func (s *Session) handlePayloadTransfer(pt *wire.PayloadTransferFrame) (finished bool, err error) {
	if pt == nil || pt.Chunk == nil {
		return false, apperrors.ErrUnexpectedFrame
	}
	id := s.currentFilePayloadID
	if pt.Header != nil {
		id = pt.Header.ID
	}
	if rec, ok := s.fileRecords[id]; ok && rec != nil {
		s.currentFilePayloadID = id
		return s.handleFileChunk(rec, pt.Chunk)
	}
	// Bytes payload for text/url/wifi, or an embedded sharing frame
	// (cancel / further introductions).
	body, done, err := s.reassembleBytesPayload(pt)
	if err != nil {
		return false, err
	}
	if !done {
		return false, nil
	}
	if id == s.pendingTextPayloadID && s.pendingTextPayloadID != 0 {
		return s.finalizeTextOrWifi(body)
	}
	frame, err := wire.UnmarshalFrame(body)
	if err != nil || frame.V1 == nil {
		return false, nil
	}
	if frame.V1.Type == wire.SharingFrameTypeCancel {
		s.setState(Cancelled)
		return true, nil
	}
	return false, nil
}

func (s *Session) handleFileChunk(rec *FileRecord, chunk *wire.PayloadChunk) (finished bool, err error) {
	if chunk.Offset != rec.BytesTransferred {
		return false, apperrors.ErrOffsetMismatch
	}
	if len(chunk.Body) > 0 {
		if _, err := rec.Handle.WriteAt(chunk.Body, chunk.Offset); err != nil {
			return false, fmt.Errorf("session: write file chunk: %w", err)
		}
		rec.BytesTransferred += int64(len(chunk.Body))
		s.meta.AckBytes += int64(len(chunk.Body))
		s.emitMeta()
	}
	if chunk.Flags&wire.PayloadChunkFlagLastChunk != 0 && len(chunk.Body) == 0 {
		rec.Handle.Close()
		delete(s.fileRecords, rec.PayloadID)
		if len(s.fileRecords) == 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *Session) finalizeTextOrWifi(body []byte) (finished bool, err error) {
	switch s.meta.PayloadKind {
	case PayloadKindText:
		s.meta.Text = string(body)
	case PayloadKindUrl:
		s.meta.URL = string(body)
	case PayloadKindWiFi:
		if s.pendingWifiMetadata == nil {
			return false, apperrors.ErrUnexpectedFrame
		}
		pw, err := parseWifiPassword(body, s.pendingWifiMetadata.SecurityType)
		if err != nil {
			return false, err
		}
		s.meta.WiFi = &WiFiCredentials{
			SSID:         s.pendingWifiMetadata.SSID,
			Password:     pw,
			SecurityType: securityTypeName[s.pendingWifiMetadata.SecurityType],
		}
	}
	s.meta.AckBytes = int64(len(body))
	s.emitMeta()
	return true, nil
}
