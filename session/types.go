package session

import (
	"os"

	"github.com/martichou/rquickshare-go/endpoint"
)

// PayloadKind classifies the transfer-metadata snapshot's payload
// (spec.md §3).
type PayloadKind int

const (
	PayloadKindFiles PayloadKind = iota
	PayloadKindText
	PayloadKindUrl
	PayloadKindWiFi
)

// WiFiCredentials is the decoded Wi-Fi payload (spec.md §4.1 "Wi-Fi
// credentials parsing").
type WiFiCredentials struct {
	SSID         string
	Password     string
	SecurityType string
}

// TransferMetadata is the UI-facing snapshot emitted whenever a session's
// state advances meaningfully (spec.md §3).
type TransferMetadata struct {
	ID             string
	Source         string
	PinCode        string
	PayloadKind    PayloadKind
	PayloadPreview []string // file names, or the single text/url/wifi preview
	Text           string
	URL            string
	WiFi           *WiFiCredentials
	TotalBytes     int64
	AckBytes       int64
}

// FileRecord tracks one file's on-disk destination and transfer progress
// (spec.md §3).
type FileRecord struct {
	PayloadID        int64
	Path             string
	TotalSize        int64
	BytesTransferred int64
	Handle           *os.File
}

// Action is a UI-issued consent/cancel command routed to a session by id
// (spec.md §4.8).
type Action int

const (
	ConsentAccept Action = iota
	ConsentDecline
	TransferCancel
)

// Command carries an Action targeted at a specific session id over the
// shared command broadcast channel (spec.md §5 "Consent-action routing").
type Command struct {
	SessionID string
	Action    Action
}

// SendInfo describes an outbound send request (spec.md §4.7/§4.8).
type SendInfo struct {
	SessionID string
	PeerName  string
	PeerAddr  string
	Files     []string
}

// RemoteDevice is a convenience alias so callers don't need to import
// package endpoint solely for this type.
type RemoteDevice = endpoint.RemoteDeviceInfo
