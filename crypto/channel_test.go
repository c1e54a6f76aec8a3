package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChannelPair() (send, recv *Channel) {
	encKey := make([]byte, 32)
	hmacKey := make([]byte, 32)
	for i := range encKey {
		encKey[i] = byte(i)
		hmacKey[i] = byte(255 - i)
	}
	// Both channels use encKey for encrypt and decrypt and hmacKey for sign
	// and verify, so either one can open what the other seals.
	send = NewChannel(encKey, hmacKey, encKey, hmacKey)
	recv = NewChannel(encKey, hmacKey, encKey, hmacKey)
	return send, recv
}

func TestChannelEncryptDecryptRoundTrip(t *testing.T) {
	send, recv := testChannelPair()
	iv, ciphertext, err := send.Encrypt([]byte("hello offline frame"))
	require.NoError(t, err)

	plain, err := recv.Decrypt(iv, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello offline frame"), plain)
}

func TestChannelSignVerify(t *testing.T) {
	send, recv := testChannelPair()
	hb := []byte("header-and-body-bytes")
	sig := send.Sign(hb)
	require.NoError(t, recv.Verify(hb, sig))
}

func TestChannelVerifyRejectsFlippedByte(t *testing.T) {
	send, recv := testChannelPair()
	hb := []byte("header-and-body-bytes")
	sig := send.Sign(hb)
	sig[0] ^= 0xFF
	assert.Error(t, recv.Verify(hb, sig))
}

func TestChannelVerifyRejectsTamperedBody(t *testing.T) {
	send, recv := testChannelPair()
	hb := []byte("header-and-body-bytes")
	sig := send.Sign(hb)
	tampered := append([]byte(nil), hb...)
	tampered[len(tampered)-1] ^= 0x01
	assert.Error(t, recv.Verify(tampered, sig))
}

func TestChannelSendSeqMonotonic(t *testing.T) {
	ch := &Channel{}
	first := ch.NextSendSeq()
	second := ch.NextSendSeq()
	third := ch.NextSendSeq()
	assert.Equal(t, int32(1), first)
	assert.Equal(t, int32(2), second)
	assert.Equal(t, int32(3), third)
}

func TestChannelCheckRecvSeqInOrder(t *testing.T) {
	ch := &Channel{}
	require.NoError(t, ch.CheckRecvSeq(1))
	require.NoError(t, ch.CheckRecvSeq(2))
	require.NoError(t, ch.CheckRecvSeq(3))
}

func TestChannelCheckRecvSeqRejectsReplay(t *testing.T) {
	ch := &Channel{}
	require.NoError(t, ch.CheckRecvSeq(1))
	assert.Error(t, ch.CheckRecvSeq(1))
}

func TestChannelCheckRecvSeqRejectsOutOfOrder(t *testing.T) {
	ch := &Channel{}
	require.NoError(t, ch.CheckRecvSeq(1))
	assert.Error(t, ch.CheckRecvSeq(3))
}
