package endpoint

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const maxNameLen = 255

// GenEndpointInfo builds the raw endpoint_info byte string broadcast both in
// the mDNS TXT "n" property and in the offline ConnectionRequest frame
// (spec.md §3/§4.4): [device_type<<1] || 16 random bytes || [name_len] ||
// name_utf8.
func GenEndpointInfo(deviceType DeviceType, name string) ([]byte, error) {
	if len(name) > maxNameLen {
		return nil, fmt.Errorf("endpoint: device name exceeds %d bytes", maxNameLen)
	}
	nameBytes := []byte(name)
	buf := make([]byte, 0, 1+16+1+len(nameBytes))
	buf = append(buf, byte(deviceType)<<1)
	random := make([]byte, 16)
	if _, err := rand.Read(random); err != nil {
		return nil, fmt.Errorf("endpoint: generate random: %w", err)
	}
	buf = append(buf, random...)
	buf = append(buf, byte(len(nameBytes)))
	buf = append(buf, nameBytes...)
	return buf, nil
}

// ParseEndpointInfo recovers (device_type, name) from a raw endpoint_info
// byte string (spec.md §3's remote device info decoding): byte 0 bits 1-3
// are the device type, byte 17 is the name length, bytes 18.. are the name.
func ParseEndpointInfo(buf []byte) (DeviceType, string, error) {
	const minLen = 1 + 16 + 1
	if len(buf) < minLen {
		return 0, "", fmt.Errorf("endpoint: endpoint_info shorter than %d bytes", minLen)
	}
	deviceType := DeviceType((buf[0] >> 1) & 0x07)
	nameLen := int(buf[17])
	if len(buf) < minLen+nameLen {
		return 0, "", fmt.Errorf("endpoint: endpoint_info truncated before name")
	}
	name := string(buf[minLen : minLen+nameLen])
	return deviceType, name, nil
}

// EncodeTXT base64url-no-pad encodes the endpoint_info for the mDNS "n" TXT
// property.
func EncodeTXT(info []byte) string {
	return base64.RawURLEncoding.EncodeToString(info)
}

// DecodeTXT reverses EncodeTXT.
func DecodeTXT(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("endpoint: decode TXT n property: %w", err)
	}
	return b, nil
}
