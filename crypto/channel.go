package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync/atomic"

	"github.com/martichou/rquickshare-go/apperrors"
)

// Channel is the post-handshake encrypted transport from spec.md §4.3: a
// DeviceToDeviceMessage (sequence_number + inner frame) is AES-256-CBC/PKCS7
// encrypted under a fresh IV, wrapped in HeaderAndBody, then the whole
// HeaderAndBody is HMAC-SHA256'd with the role's HMAC key to yield the outer
// SecureMessage signature. Each side keeps its own send and receive counter,
// incremented before use (spec.md §3 invariant). Wire-level marshaling of
// DeviceToDeviceMessage/HeaderAndBody/SecureMessage lives in package wire;
// Channel only deals in the AEAD-equivalent byte operations.
type Channel struct {
	encryptKey []byte
	sendHMAC   []byte
	decryptKey []byte
	recvHMAC   []byte

	sendSeq atomic.Int32
	recvSeq atomic.Int32
}

// NewChannel builds a Channel from the four per-role keys (see
// DerivedKeys.ServerRoleKeys / ClientRoleKeys).
func NewChannel(decryptKey, recvHMAC, encryptKey, sendHMAC []byte) *Channel {
	return &Channel{
		encryptKey: append([]byte(nil), encryptKey...),
		sendHMAC:   append([]byte(nil), sendHMAC...),
		decryptKey: append([]byte(nil), decryptKey...),
		recvHMAC:   append([]byte(nil), recvHMAC...),
	}
}

// NextSendSeq increments and returns the next outbound sequence number.
func (c *Channel) NextSendSeq() int32 { return c.sendSeq.Add(1) }

// CheckRecvSeq increments the expected receive counter and compares it
// against got, the sequence_number decoded from the inbound
// DeviceToDeviceMessage. A mismatch is protocol-fatal (spec.md §3).
func (c *Channel) CheckRecvSeq(got int32) error {
	want := c.recvSeq.Add(1)
	if got != want {
		return fmt.Errorf("%w: want %d got %d", apperrors.ErrSequenceMismatch, want, got)
	}
	return nil
}

// Encrypt AES-256-CBC/PKCS7-encrypts plaintext under a fresh random IV,
// returning the IV and ciphertext to be carried in HeaderAndBody.
func (c *Channel) Encrypt(plaintext []byte) (iv, ciphertext []byte, err error) {
	iv = make([]byte, aes.BlockSize)
	if _, err = rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("crypto: generate iv: %w", err)
	}
	ciphertext, err = aesCBCEncryptPKCS7(c.encryptKey, iv, plaintext)
	if err != nil {
		return nil, nil, err
	}
	return iv, ciphertext, nil
}

// Decrypt reverses Encrypt using the receiver's decrypt key.
func (c *Channel) Decrypt(iv, ciphertext []byte) ([]byte, error) {
	return aesCBCDecryptPKCS7(c.decryptKey, iv, ciphertext)
}

// Sign computes the HMAC-SHA256 of the serialized HeaderAndBody under the
// sender's HMAC key.
func (c *Channel) Sign(headerAndBody []byte) []byte {
	return hmacSHA256(c.sendHMAC, headerAndBody)
}

// Verify checks, in constant time, that signature is the HMAC-SHA256 of
// headerAndBody under the receiver's HMAC key (spec.md §4.3 Decryption).
func (c *Channel) Verify(headerAndBody, signature []byte) error {
	expected := hmacSHA256(c.recvHMAC, headerAndBody)
	if !hmac.Equal(expected, signature) {
		return apperrors.ErrHMACMismatch
	}
	return nil
}

func hmacSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

func aesCBCEncryptPKCS7(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func aesCBCDecryptPKCS7(key, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("crypto: ciphertext not block-aligned")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes cipher: %w", err)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	padLen := blockSize - len(b)%blockSize
	padded := make([]byte, len(b)+padLen)
	copy(padded, b)
	for i := len(b); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("crypto: empty plaintext")
	}
	padLen := int(b[len(b)-1])
	if padLen == 0 || padLen > len(b) {
		return nil, fmt.Errorf("crypto: invalid pkcs7 padding")
	}
	return b[:len(b)-padLen], nil
}
