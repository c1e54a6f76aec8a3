package session

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/martichou/rquickshare-go/apperrors"
	"github.com/martichou/rquickshare-go/crypto"
	"github.com/martichou/rquickshare-go/wire"
)

// maxFrameSize is spec.md §4.1's 5 MiB fatal bound on any single frame.
const maxFrameSize = 5 * 1024 * 1024

// readFrame reads one 4-byte-big-endian-length-prefixed frame (spec.md
// §4.1 "Frame layer").
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrShortFrame, err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return nil, apperrors.ErrFrameTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrShortFrame, err)
	}
	return body, nil
}

// writeFrame writes one length-prefixed frame.
func writeFrame(w io.Writer, body []byte) error {
	if len(body) > maxFrameSize {
		return apperrors.ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("session: write frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("session: write frame body: %w", err)
	}
	return nil
}

// sealFrame builds the full post-handshake wire object for one offline
// frame: DeviceToDeviceMessage → AES-CBC → HeaderAndBody → HMAC →
// SecureMessage (spec.md §4.3).
func sealFrame(ch *crypto.Channel, offlineFrameBytes []byte) ([]byte, error) {
	seq := ch.NextSendSeq()
	d2d := (&wire.DeviceToDeviceMessage{SequenceNumber: seq, Message: offlineFrameBytes}).Marshal()

	iv, ciphertext, err := ch.Encrypt(d2d)
	if err != nil {
		return nil, err
	}

	meta := (&wire.GcmMetadata{Type: wire.GcmMetadataTypeDeviceToDevice, Version: 1}).Marshal()
	header := (&wire.Header{
		SignatureScheme:  wire.SigSchemeHMACSHA256,
		EncryptionScheme: wire.EncSchemeAES256CBC,
		IV:               iv,
		PublicMetadata:   meta,
	}).Marshal()

	hb := (&wire.HeaderAndBody{Header: header, Body: ciphertext}).Marshal()
	sig := ch.Sign(hb)
	sm := (&wire.SecureMessage{HeaderAndBody: hb, Signature: sig}).Marshal()
	return sm, nil
}

// openFrame reverses sealFrame, returning the plaintext offline frame bytes
// (spec.md §4.3 "Decryption").
func openFrame(ch *crypto.Channel, secureMessageBytes []byte) ([]byte, error) {
	sm, err := wire.UnmarshalSecureMessage(secureMessageBytes)
	if err != nil {
		return nil, fmt.Errorf("session: decode SecureMessage: %w", err)
	}
	if err := ch.Verify(sm.HeaderAndBody, sm.Signature); err != nil {
		return nil, err
	}
	hb, err := wire.UnmarshalHeaderAndBody(sm.HeaderAndBody)
	if err != nil {
		return nil, fmt.Errorf("session: decode HeaderAndBody: %w", err)
	}
	header, err := wire.UnmarshalHeader(hb.Header)
	if err != nil {
		return nil, fmt.Errorf("session: decode Header: %w", err)
	}
	plaintext, err := ch.Decrypt(header.IV, hb.Body)
	if err != nil {
		return nil, fmt.Errorf("session: decrypt body: %w", err)
	}
	d2d, err := wire.UnmarshalDeviceToDeviceMessage(plaintext)
	if err != nil {
		return nil, fmt.Errorf("session: decode DeviceToDeviceMessage: %w", err)
	}
	if err := ch.CheckRecvSeq(d2d.SequenceNumber); err != nil {
		return nil, err
	}
	return d2d.Message, nil
}
