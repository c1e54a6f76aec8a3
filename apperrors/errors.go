// Package apperrors holds the small set of sentinel errors that carry
// protocol-level meaning across the crypto, wire, and session packages.
package apperrors

import "errors"

// ErrNotAnError unwinds a session's handler loop after a clean terminal
// state (Finished, Rejected, Cancelled, Disconnected). It is never logged
// or surfaced to the UI; callers check for it with errors.Is and stop.
var ErrNotAnError = errors.New("not an error: terminal state reached")

// Protocol-fatal errors (spec.md §7): wrong UKEY2 version/random/cipher,
// sequence mismatch, HMAC mismatch, cipher-commitment mismatch.
var (
	ErrBadVersion        = errors.New("ukey2: unsupported version")
	ErrBadRandom         = errors.New("ukey2: invalid random length")
	ErrBadHandshakeCipher = errors.New("ukey2: no acceptable handshake cipher")
	ErrBadNextProtocol   = errors.New("ukey2: unsupported next protocol")
	ErrCommitmentMismatch = errors.New("ukey2: commitment does not match client finish")
	ErrSequenceMismatch  = errors.New("channel: sequence number mismatch")
	ErrHMACMismatch      = errors.New("channel: hmac verification failed")
	ErrUnexpectedFrame   = errors.New("session: unexpected frame for current state")
)

// Transport-fatal errors (spec.md §7): oversize frame, malformed prefix.
var (
	ErrFrameTooLarge = errors.New("transport: frame exceeds 5 MiB limit")
	ErrShortFrame    = errors.New("transport: connection closed mid-frame")
)

// Payload-bound errors (spec.md §3 invariants).
var (
	ErrPayloadTooLarge = errors.New("payload: total size exceeds 5 MiB bound")
	ErrOffsetMismatch  = errors.New("payload: chunk offset does not match buffered length")
)
