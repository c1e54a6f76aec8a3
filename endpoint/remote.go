package endpoint

import "fmt"

// RemoteDeviceInfo is spec.md §3's per-connection peer identity.
type RemoteDeviceInfo struct {
	Name       string
	DeviceType DeviceType
}

// RemoteDeviceInfoFromConnectionRequest parses the offline ConnectionRequest
// frame's endpoint_info bytes into a RemoteDeviceInfo (spec.md §4.1 step 1:
// "Validate minimum 18 bytes + name_len").
func RemoteDeviceInfoFromConnectionRequest(info []byte) (*RemoteDeviceInfo, error) {
	deviceType, name, err := ParseEndpointInfo(info)
	if err != nil {
		return nil, fmt.Errorf("endpoint: connection request: %w", err)
	}
	return &RemoteDeviceInfo{Name: name, DeviceType: deviceType}, nil
}

// Info is the discovered-endpoint record the mDNS browser maintains and
// emits (spec.md §3 "Discovered endpoint").
type Info struct {
	FullName   string
	ID         string // "ip:port"
	Name       string
	IP         string
	Port       int
	DeviceType DeviceType
	Present    bool
}
