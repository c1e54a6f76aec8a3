package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestP256KeypairRoundTripThroughCoords(t *testing.T) {
	priv, err := GenerateP256Keypair()
	require.NoError(t, err)

	x, y, err := GenericPublicKeyCoords(priv.PublicKey())
	require.NoError(t, err)

	pub, err := PublicKeyFromCoords(x, y)
	require.NoError(t, err)
	assert.Equal(t, priv.PublicKey().Bytes(), pub.Bytes())
}

func TestSharedSecretAgreesBothDirections(t *testing.T) {
	alicePriv, err := GenerateP256Keypair()
	require.NoError(t, err)
	bobPriv, err := GenerateP256Keypair()
	require.NoError(t, err)

	aliceShared, err := SharedSecret(alicePriv, bobPriv.PublicKey())
	require.NoError(t, err)
	bobShared, err := SharedSecret(bobPriv, alicePriv.PublicKey())
	require.NoError(t, err)

	assert.Equal(t, aliceShared, bobShared)
}

func TestDerivePINIsDeterministic(t *testing.T) {
	authString := make([]byte, 32)
	for i := range authString {
		authString[i] = byte(i * 7)
	}
	first := DerivePIN(authString)
	second := DerivePIN(authString)
	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
}

func TestDerivePINDiffersForDifferentInput(t *testing.T) {
	a := DerivePIN([]byte{1, 2, 3, 4})
	b := DerivePIN([]byte{5, 6, 7, 8})
	assert.NotEqual(t, a, b)
}

func TestDeriveKeysServerClientRoleKeysAreSwapped(t *testing.T) {
	keys := &DerivedKeys{}
	for i := 0; i < 32; i++ {
		keys.ClientKey[i] = byte(i)
		keys.ClientHMAC[i] = byte(i + 1)
		keys.ServerKey[i] = byte(i + 2)
		keys.ServerHMAC[i] = byte(i + 3)
	}

	sDec, sRecvHMAC, sEnc, sSendHMAC := keys.ServerRoleKeys()
	cDec, cRecvHMAC, cEnc, cSendHMAC := keys.ClientRoleKeys()

	assert.Equal(t, sDec, cEnc)
	assert.Equal(t, sEnc, cDec)
	assert.Equal(t, sRecvHMAC, cSendHMAC)
	assert.Equal(t, sSendHMAC, cRecvHMAC)
}
