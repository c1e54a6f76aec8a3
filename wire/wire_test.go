package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestSecureMessageRoundTrip(t *testing.T) {
	h := &Header{
		SignatureScheme:  SigSchemeHMACSHA256,
		EncryptionScheme: EncSchemeAES256CBC,
		IV:               []byte("0123456789abcdef"),
		PublicMetadata:   (&GcmMetadata{Type: GcmMetadataTypeDeviceToDevice, Version: 1}).Marshal(),
	}
	hb := &HeaderAndBody{Header: h.Marshal(), Body: []byte("ciphertext-bytes")}
	sm := &SecureMessage{HeaderAndBody: hb.Marshal(), Signature: []byte("sig")}

	decoded, err := UnmarshalSecureMessage(sm.Marshal())
	require.NoError(t, err)
	assert.Equal(t, sm.Signature, decoded.Signature)

	decodedHB, err := UnmarshalHeaderAndBody(decoded.HeaderAndBody)
	require.NoError(t, err)
	assert.Equal(t, hb.Body, decodedHB.Body)

	decodedH, err := UnmarshalHeader(decodedHB.Header)
	require.NoError(t, err)
	assert.Equal(t, h.IV, decodedH.IV)
	assert.Equal(t, h.SignatureScheme, decodedH.SignatureScheme)
	assert.Equal(t, h.EncryptionScheme, decodedH.EncryptionScheme)

	decodedMeta, err := UnmarshalGcmMetadata(decodedH.PublicMetadata)
	require.NoError(t, err)
	assert.Equal(t, int32(GcmMetadataTypeDeviceToDevice), decodedMeta.Type)
}

func TestDeviceToDeviceMessageRoundTrip(t *testing.T) {
	d := &DeviceToDeviceMessage{SequenceNumber: 7, Message: []byte("offline-frame-bytes")}
	got, err := UnmarshalDeviceToDeviceMessage(d.Marshal())
	require.NoError(t, err)
	assert.Equal(t, d.SequenceNumber, got.SequenceNumber)
	assert.Equal(t, d.Message, got.Message)
}

func TestUkey2ClientInitRoundTrip(t *testing.T) {
	c := &Ukey2ClientInit{
		Version: 1,
		Random:  make([]byte, 32),
		CipherCommitments: []CipherCommitment{
			{HandshakeCipher: Ukey2HandshakeCipherP256SHA512, Commitment: []byte("sha512-commitment")},
		},
		NextProtocol: "AES_256_CBC-HMAC_SHA256",
	}
	got, err := UnmarshalUkey2ClientInit(c.Marshal())
	require.NoError(t, err)
	assert.Equal(t, c.Version, got.Version)
	assert.Equal(t, c.NextProtocol, got.NextProtocol)
	require.Len(t, got.CipherCommitments, 1)
	assert.Equal(t, c.CipherCommitments[0].HandshakeCipher, got.CipherCommitments[0].HandshakeCipher)
	assert.Equal(t, c.CipherCommitments[0].Commitment, got.CipherCommitments[0].Commitment)
}

func TestGenericPublicKeyRoundTrip(t *testing.T) {
	k := &GenericPublicKey{
		Type:   GenericPublicKeyTypeEcP256,
		EcP256: &EcP256PublicKey{X: []byte{0x00, 0xAB, 0xCD}, Y: []byte{0x01, 0x02}},
	}
	got, err := UnmarshalGenericPublicKey(k.Marshal())
	require.NoError(t, err)
	require.NotNil(t, got.EcP256)
	assert.Equal(t, k.EcP256.X, got.EcP256.X)
	assert.Equal(t, k.EcP256.Y, got.EcP256.Y)
}

func TestOfflineFramePayloadTransferRoundTrip(t *testing.T) {
	f := &OfflineFrame{
		Version: OfflineFrameVersionV1,
		V1: &V1Frame{
			Type: V1FrameTypePayloadTransfer,
			PayloadTransfer: &PayloadTransferFrame{
				PacketType: PacketTypeData,
				Header: &PayloadHeader{
					ID:        1234,
					Type:      PayloadTypeFile,
					TotalSize: 4096,
					FileName:  "photo.jpg",
				},
				Chunk: &PayloadChunk{Offset: 0, Flags: 0, Body: []byte("chunk-bytes")},
			},
		},
	}
	got, err := UnmarshalOfflineFrame(f.Marshal())
	require.NoError(t, err)
	require.NotNil(t, got.V1)
	require.NotNil(t, got.V1.PayloadTransfer)
	assert.Equal(t, f.V1.PayloadTransfer.Header.FileName, got.V1.PayloadTransfer.Header.FileName)
	assert.Equal(t, f.V1.PayloadTransfer.Chunk.Body, got.V1.PayloadTransfer.Chunk.Body)
}

func TestConnectionRequestRoundTrip(t *testing.T) {
	cr := &ConnectionRequest{
		Endpoint1ID:  "AB12",
		EndpointName: "Pixel 8",
		EndpointInfo: []byte{0x01, 0x02, 0x03},
	}
	got, err := UnmarshalConnectionRequest(cr.Marshal())
	require.NoError(t, err)
	assert.Equal(t, cr.Endpoint1ID, got.Endpoint1ID)
	assert.Equal(t, cr.EndpointName, got.EndpointName)
	assert.Equal(t, cr.EndpointInfo, got.EndpointInfo)
}

func TestIntroductionFrameWifiCredentials(t *testing.T) {
	intro := &IntroductionFrame{
		WifiMetadata: []WifiCredentialsMetadata{
			{SSID: "MyNet", SecurityType: WifiSecurityWpaPsk, PayloadID: 7},
		},
	}
	got, err := UnmarshalIntroductionFrame(intro.Marshal())
	require.NoError(t, err)
	require.Len(t, got.WifiMetadata, 1)
	assert.Equal(t, "MyNet", got.WifiMetadata[0].SSID)
	assert.Equal(t, int32(WifiSecurityWpaPsk), got.WifiMetadata[0].SecurityType)
	assert.Equal(t, int64(7), got.WifiMetadata[0].PayloadID)
}

func TestIntroductionFrameTextUrl(t *testing.T) {
	intro := &IntroductionFrame{
		TextMetadata: []TextMetadata{
			{TextTitle: "Hello", Type: TextTypeUrl, PayloadID: 9},
		},
	}
	got, err := UnmarshalIntroductionFrame(intro.Marshal())
	require.NoError(t, err)
	require.Len(t, got.TextMetadata, 1)
	assert.Equal(t, int32(TextTypeUrl), got.TextMetadata[0].Type)
	assert.Equal(t, "Hello", got.TextMetadata[0].TextTitle)
}

func TestSharingFrameConnectionResponse(t *testing.T) {
	f := &Frame{
		Version: OfflineFrameVersionV1,
		V1: &SharingV1Frame{
			Type:               SharingFrameTypeResponse,
			ConnectionResponse: &ConnectionResponseFrame{Status: ConnectionStatusAccept},
		},
	}
	got, err := UnmarshalFrame(f.Marshal())
	require.NoError(t, err)
	require.NotNil(t, got.V1)
	require.NotNil(t, got.V1.ConnectionResponse)
	assert.Equal(t, int32(ConnectionStatusAccept), got.V1.ConnectionResponse.Status)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	base := (&DeviceToDeviceMessage{SequenceNumber: 1, Message: []byte("m")}).Marshal()
	base = protowire.AppendTag(base, 99, protowire.VarintType)
	base = protowire.AppendVarint(base, 42)

	got, err := UnmarshalDeviceToDeviceMessage(base)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.SequenceNumber)
	assert.Equal(t, []byte("m"), got.Message)
}
