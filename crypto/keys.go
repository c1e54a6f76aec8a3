package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

// GenerateP256Keypair creates a fresh ephemeral ECDH keypair on P-256, used
// both for the UKEY2 handshake and freshly per-connection (spec.md §4.1 step
// 2 / Outbound step 2): unlike the Rust original's hardcoded test keypair
// (original_source/core_lib/src/utils.rs gen_ecdsa_keypair, an undiagnosed
// Android-interop workaround), this spec generates a real random key per the
// Open Questions discipline of not reproducing unexplained behavior.
func GenerateP256Keypair() (*ecdh.PrivateKey, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate P-256 key: %w", err)
	}
	return priv, nil
}

// GenericPublicKeyCoords returns the big-endian signed representation of the
// public key's X and Y coordinates, as required for the UKEY2
// GenericPublicKey.EcP256 wire message (spec.md §4.1 step 2): a leading 0x00
// is prepended whenever the natural big-endian encoding's high bit is set,
// matching the semantics of a signed big-integer encoding.
func GenericPublicKeyCoords(pub *ecdh.PublicKey) (x, y []byte, err error) {
	raw := pub.Bytes() // uncompressed point: 0x04 || X(32) || Y(32)
	if len(raw) != 65 || raw[0] != 0x04 {
		return nil, nil, fmt.Errorf("crypto: unexpected P-256 public key encoding")
	}
	x = signedBigEndian(raw[1:33])
	y = signedBigEndian(raw[33:65])
	return x, y, nil
}

// signedBigEndian prepends a 0x00 byte when the input's high bit is set, so
// the result decodes as a non-negative big-endian signed integer.
func signedBigEndian(b []byte) []byte {
	if len(b) > 0 && b[0]&0x80 != 0 {
		out := make([]byte, len(b)+1)
		copy(out[1:], b)
		return out
	}
	return b
}

// unsignedFromSigned strips a single leading 0x00 byte previously added by
// signedBigEndian, recovering the raw fixed-width coordinate. coordSize is
// the expected unsigned width (32 for P-256).
func unsignedFromSigned(b []byte, coordSize int) ([]byte, error) {
	if len(b) == coordSize+1 && b[0] == 0x00 {
		b = b[1:]
	}
	if len(b) > coordSize {
		return nil, fmt.Errorf("crypto: coordinate longer than expected")
	}
	if len(b) < coordSize {
		out := make([]byte, coordSize)
		copy(out[coordSize-len(b):], b)
		return out, nil
	}
	return b, nil
}

// PublicKeyFromCoords reconstructs an uncompressed P-256 public key from the
// signed-big-endian X/Y coordinates carried in a GenericPublicKey.
func PublicKeyFromCoords(x, y []byte) (*ecdh.PublicKey, error) {
	xb, err := unsignedFromSigned(x, 32)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode X: %w", err)
	}
	yb, err := unsignedFromSigned(y, 32)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode Y: %w", err)
	}
	raw := make([]byte, 65)
	raw[0] = 0x04
	copy(raw[1:33], xb)
	copy(raw[33:65], yb)
	pub, err := ecdh.P256().NewPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid P-256 public key: %w", err)
	}
	return pub, nil
}
