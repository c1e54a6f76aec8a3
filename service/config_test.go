package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martichou/rquickshare-go/discovery/mdns"
)

func TestNewBuildsServiceWithConfiguredName(t *testing.T) {
	svc, err := New(Config{DeviceName: "My Laptop", DownloadPath: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "My Laptop", svc.deviceNameFn())
}

func TestNewFallsBackToHostnameWhenNameEmpty(t *testing.T) {
	svc, err := New(Config{})
	require.NoError(t, err)
	assert.NotEmpty(t, svc.deviceNameFn())
}

func TestNewDefaultsVisibilityToInvisible(t *testing.T) {
	svc, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, mdns.Invisible, svc.cfg.Visibility)
}
