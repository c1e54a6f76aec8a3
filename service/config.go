package service

import "github.com/martichou/rquickshare-go/discovery/mdns"

// Config holds the options recognized at construction time (spec.md §4.8).
type Config struct {
	// Visibility is the initial mDNS registration state.
	Visibility mdns.Visibility
	// PortNumber is the TCP listen port; 0 picks a random ephemeral port.
	PortNumber int
	// DownloadPath overrides the OS "Downloads" directory as the
	// destination root, when non-empty.
	DownloadPath string
	// DeviceName replaces the OS hostname in the endpoint info, when
	// non-empty.
	DeviceName string
}
