// Package endpoint builds and parses the identifiers this system advertises
// and discovers over mDNS/BLE and exchanges in the offline ConnectionRequest
// frame (spec.md §3/§4.2).
package endpoint

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// DeviceType mirrors spec.md §3's remote device info device_type enum.
type DeviceType int

const (
	DeviceTypeUnknown DeviceType = 0
	DeviceTypePhone    DeviceType = 1
	DeviceTypeTablet   DeviceType = 2
	DeviceTypeLaptop   DeviceType = 3
)

// mdnsServiceSuffix bytes identify this as a Nearby Share/Quick Share
// WifiLan service instance (spec.md §4.4).
var mdnsServiceSuffix = []byte{0xFC, 0x9F, 0x5E}

// ServiceType is the mDNS service type this system registers and browses.
const ServiceType = "_FC9F5ED42C8A._tcp"

// BLEServiceUUIDString is the 128-bit BLE service UUID advertised/scanned
// for presence (spec.md §3).
const BLEServiceUUIDString = "0000fe2c-0000-1000-8000-00805f9b34fb"

// Identity is the endpoint id (4 random bytes) generated once at service
// start (spec.md §3). The device name is not held here.
type Identity struct {
	ID [4]byte
}

// NewIdentity generates a fresh random endpoint id.
func NewIdentity() (*Identity, error) {
	id := &Identity{}
	if _, err := rand.Read(id.ID[:]); err != nil {
		return nil, fmt.Errorf("endpoint: generate id: %w", err)
	}
	return id, nil
}

// InstanceName builds the base64url-no-pad mDNS instance name:
// 0x23 || endpoint_id[4] || 0xFC 0x9F 0x5E || 0x00 0x00 (spec.md §4.4).
func (id *Identity) InstanceName() string {
	buf := make([]byte, 0, 10)
	buf = append(buf, 0x23)
	buf = append(buf, id.ID[:]...)
	buf = append(buf, mdnsServiceSuffix...)
	buf = append(buf, 0x00, 0x00)
	return base64.RawURLEncoding.EncodeToString(buf)
}
