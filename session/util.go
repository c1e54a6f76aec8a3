package session

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/binary"
	"os"
)

// readRandomInto fills buf with cryptographically random bytes, used for
// the UKEY2 server random and the unpairable PairedKeyEncryption fields
// (spec.md §4.1 steps 2/5).
func readRandomInto(buf []byte) (int, error) {
	return rand.Read(buf)
}

// randomInt64 generates a payload id (spec.md §4.2 "Payload ids are
// arbitrary, non-zero, and unique per session").
func randomInt64() (int64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	v := int64(binary.BigEndian.Uint64(b[:]))
	if v < 0 {
		v = -v
	}
	if v == 0 {
		v = 1
	}
	return v, nil
}

// hmacEqualBytes is a constant-time byte comparison, used for the ClientInit
// commitment check (spec.md §4.1 step 3).
func hmacEqualBytes(a, b []byte) bool {
	return hmac.Equal(a, b)
}

// openForWrite creates (or truncates) the destination file for an incoming
// file payload (spec.md §4.1 step 9 "open destination files").
func openForWrite(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}
