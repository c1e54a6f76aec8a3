package crypto

import "crypto/sha512"

// CommitToClientFinish computes the SHA-512 commitment over the full
// ClientFinish message bytes, sent inside the ClientInit's cipher
// commitment (spec.md §4.1 step 2 / Outbound step 2).
func CommitToClientFinish(clientFinishBytes []byte) []byte {
	sum := sha512.Sum512(clientFinishBytes)
	return sum[:]
}
