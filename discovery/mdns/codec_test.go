package mdns

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martichou/rquickshare-go/endpoint"
)

func TestVisibilityString(t *testing.T) {
	assert.Equal(t, "Invisible", Invisible.String())
	assert.Equal(t, "Visible", Visible.String())
	assert.Equal(t, "Temporarily", Temporarily.String())
}

func TestDecodeTXTRoundTrip(t *testing.T) {
	info, err := endpoint.GenEndpointInfo(endpoint.DeviceTypeLaptop, "My Laptop")
	require.NoError(t, err)
	record := "n=" + endpoint.EncodeTXT(info)

	deviceType, name, err := decodeTXT([]string{"unrelated=1", record})
	require.NoError(t, err)
	assert.Equal(t, endpoint.DeviceTypeLaptop, deviceType)
	assert.Equal(t, "My Laptop", name)
}

func TestDecodeTXTMissingRecord(t *testing.T) {
	_, _, err := decodeTXT([]string{"unrelated=1"})
	assert.Error(t, err)
}

func TestFirstNonLocalIPv4FiltersLocalAddresses(t *testing.T) {
	local := localIPv4Set()
	var localAddr string
	for ip := range local {
		localAddr = ip
		break
	}
	if localAddr == "" {
		t.Skip("no local IPv4 addresses bound in this environment")
	}

	got := firstNonLocalIPv4([]net.IP{net.ParseIP(localAddr), net.ParseIP("203.0.113.5")})
	assert.Equal(t, "203.0.113.5", got)
}
