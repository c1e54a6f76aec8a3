package endpoint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointInfoRoundTrip(t *testing.T) {
	cases := []struct {
		deviceType DeviceType
		name       string
	}{
		{DeviceTypeUnknown, ""},
		{DeviceTypePhone, "a"},
		{DeviceTypeTablet, "Pixel 8 Pro"},
		{DeviceTypeLaptop, strings.Repeat("x", maxNameLen)},
	}
	for _, tc := range cases {
		info, err := GenEndpointInfo(tc.deviceType, tc.name)
		require.NoError(t, err)

		gotType, gotName, err := ParseEndpointInfo(info)
		require.NoError(t, err)
		assert.Equal(t, tc.deviceType, gotType)
		assert.Equal(t, tc.name, gotName)
	}
}

func TestEndpointInfoNameTooLong(t *testing.T) {
	_, err := GenEndpointInfo(DeviceTypeLaptop, strings.Repeat("x", maxNameLen+1))
	assert.Error(t, err)
}

func TestTXTRoundTrip(t *testing.T) {
	info, err := GenEndpointInfo(DeviceTypePhone, "My Phone")
	require.NoError(t, err)

	encoded := EncodeTXT(info)
	assert.NotContains(t, encoded, "=")

	decoded, err := DecodeTXT(encoded)
	require.NoError(t, err)
	assert.Equal(t, info, decoded)
}

func TestInstanceNameShape(t *testing.T) {
	id, err := NewIdentity()
	require.NoError(t, err)
	name := id.InstanceName()
	assert.NotEmpty(t, name)
	assert.NotContains(t, name, "=")
}

func TestRemoteDeviceInfoFromConnectionRequest(t *testing.T) {
	info, err := GenEndpointInfo(DeviceTypeLaptop, "Workstation")
	require.NoError(t, err)

	rdi, err := RemoteDeviceInfoFromConnectionRequest(info)
	require.NoError(t, err)
	assert.Equal(t, "Workstation", rdi.Name)
	assert.Equal(t, DeviceTypeLaptop, rdi.DeviceType)
}

func TestRemoteDeviceInfoTooShort(t *testing.T) {
	_, err := RemoteDeviceInfoFromConnectionRequest(make([]byte, 10))
	assert.Error(t, err)
}
