// Package crypto implements the UKEY2 authenticated key exchange and the
// post-handshake AES-256-CBC + HMAC-SHA256 channel described in spec.md §4.3.
package crypto

import (
	"crypto/ecdh"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	authSaltUKEY2 = "UKEY2 v1 auth"
	nextSaltUKEY2 = "UKEY2 v1 next"
)

// fixedSalt1/fixedSalt2 are the constant HKDF salts from spec.md §4.3 used to
// derive the per-role D2D and transport keys.
var (
	fixedSalt1 = mustHex("82AA55A0D397F88346CA1CEE8D3909B95F13FA7DEB1D4AB38376B8256DA85510")
	fixedSalt2 = mustHex("BF9D2A53C63616D75DB0A7165B91C1EF73E537F2427405FA23610A4BE657642E")
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// hkdfExpand runs HKDF-SHA256 extract-then-expand, matching
// original_source/core_lib/src/utils.rs hkdf_extract_expand.
func hkdfExpand(salt, ikm, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("crypto: hkdf expand: %w", err)
	}
	return out, nil
}

// SharedSecret computes SHA256(ECDH(priv, peerPub).x) per spec.md §4.3.
func SharedSecret(priv *ecdh.PrivateKey, peerPub *ecdh.PublicKey) ([]byte, error) {
	raw, err := priv.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("crypto: ecdh: %w", err)
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}

// DerivedKeys holds the four transport keys and the authentication string
// produced by the UKEY2 + D2D key ladder.
type DerivedKeys struct {
	AuthString  []byte
	ClientKey   [32]byte
	ClientHMAC  [32]byte
	ServerKey   [32]byte
	ServerHMAC  [32]byte
}

// DeriveKeys runs the full ladder from spec.md §4.3: UKEY2 auth/next secrets,
// then the D2D client/server secrets, then the AES/HMAC keys for each role.
// ukeyInfo is client_init_wire_bytes || server_init_wire_bytes.
func DeriveKeys(shared, ukeyInfo []byte) (*DerivedKeys, error) {
	authString, err := hkdfExpand([]byte(authSaltUKEY2), shared, ukeyInfo, 32)
	if err != nil {
		return nil, err
	}
	nextSecret, err := hkdfExpand([]byte(nextSaltUKEY2), shared, ukeyInfo, 32)
	if err != nil {
		return nil, err
	}

	d2dClient, err := hkdfExpand(fixedSalt1, nextSecret, []byte("client"), 32)
	if err != nil {
		return nil, err
	}
	d2dServer, err := hkdfExpand(fixedSalt1, nextSecret, []byte("server"), 32)
	if err != nil {
		return nil, err
	}

	clientKey, err := hkdfExpand(fixedSalt2, d2dClient, []byte("ENC:2"), 32)
	if err != nil {
		return nil, err
	}
	clientHMAC, err := hkdfExpand(fixedSalt2, d2dClient, []byte("SIG:1"), 32)
	if err != nil {
		return nil, err
	}
	serverKey, err := hkdfExpand(fixedSalt2, d2dServer, []byte("ENC:2"), 32)
	if err != nil {
		return nil, err
	}
	serverHMAC, err := hkdfExpand(fixedSalt2, d2dServer, []byte("SIG:1"), 32)
	if err != nil {
		return nil, err
	}

	dk := &DerivedKeys{AuthString: authString}
	copy(dk.ClientKey[:], clientKey)
	copy(dk.ClientHMAC[:], clientHMAC)
	copy(dk.ServerKey[:], serverKey)
	copy(dk.ServerHMAC[:], serverHMAC)
	return dk, nil
}

// ServerRoleKeys returns (decrypt, recvHMAC, encrypt, sendHMAC) for the
// inbound (server) role, per spec.md §4.3's role mapping.
func (dk *DerivedKeys) ServerRoleKeys() (decrypt, recvHMAC, encrypt, sendHMAC []byte) {
	return dk.ClientKey[:], dk.ClientHMAC[:], dk.ServerKey[:], dk.ServerHMAC[:]
}

// ClientRoleKeys returns (decrypt, recvHMAC, encrypt, sendHMAC) for the
// outbound (client) role, the reverse of ServerRoleKeys.
func (dk *DerivedKeys) ClientRoleKeys() (decrypt, recvHMAC, encrypt, sendHMAC []byte) {
	return dk.ServerKey[:], dk.ServerHMAC[:], dk.ClientKey[:], dk.ClientHMAC[:]
}

// DerivePIN computes the four-digit authentication PIN from the UKEY2 auth
// string, per spec.md §4.3: a 9973-modulus rolling hash over the bytes
// interpreted as signed int8s, formatted as %04d of the absolute value.
// Matches original_source/core_lib/src/utils.rs to_four_digit_string exactly.
func DerivePIN(authString []byte) string {
	const modulo = 9973
	const multiplierStep = 31

	hash := 0
	multiplier := 1
	for _, raw := range authString {
		b := int(int8(raw))
		hash = (hash + b*multiplier) % modulo
		multiplier = (multiplier * multiplierStep) % modulo
	}
	if hash < 0 {
		hash = -hash
	}
	return fmt.Sprintf("%04d", hash)
}
