package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWifiPasswordScenario(t *testing.T) {
	// spec.md §7 scenario 4
	b := []byte{0x0A, 0x06, 'a', 'b', 'c', '1', '2', '3', 0x10, 0x00}
	got, err := parseWifiPassword(b, 2) // WpaPsk
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)
}

func TestParseWifiPasswordOpen(t *testing.T) {
	got, err := parseWifiPassword(nil, 1) // Open
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestParseWifiPasswordUnknown(t *testing.T) {
	got, err := parseWifiPassword(nil, 99)
	require.NoError(t, err)
	assert.Equal(t, "Unknown(99)", got)
}

func TestParseWifiPasswordMalformed(t *testing.T) {
	_, err := parseWifiPassword([]byte{0x01}, 2)
	assert.Error(t, err)
}
